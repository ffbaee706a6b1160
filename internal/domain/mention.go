package domain

import (
	"strings"
	"time"
)

// Mention is a normalized post that addresses the bot account.
type Mention struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId,omitempty"`
	AuthorID       string    `json:"authorId"`
	AuthorHandle   string    `json:"authorHandle,omitempty"`
	Text           string    `json:"text"`
	CreatedAt      time.Time `json:"createdAt"`
}

// IsReply reports whether the mention continues an existing thread.
func (m Mention) IsReply() bool {
	return m.ConversationID != "" && m.ConversationID != m.ID
}

// CompareIDs orders two mention ids. Numeric ids (snowflakes) compare by
// value without parsing, so ids wider than 64 bits still order correctly.
// Anything else falls back to lexicographic order, which suits time-ordered
// ids such as UUIDv7.
func CompareIDs(a, b string) int {
	if isDigits(a) && isDigits(b) {
		a = strings.TrimLeft(a, "0")
		b = strings.TrimLeft(b, "0")
		if len(a) != len(b) {
			if len(a) < len(b) {
				return -1
			}
			return 1
		}
	}
	return strings.Compare(a, b)
}

// MaxID returns the larger of two ids. An empty id is treated as absent.
func MaxID(a, b string) string {
	if a == "" {
		return b
	}
	if b == "" {
		return a
	}
	if CompareIDs(a, b) >= 0 {
		return a
	}
	return b
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// WithHandlePrefix addresses text to handle ("@handle text"). Text that
// already starts with the handle is returned unchanged.
func WithHandlePrefix(handle, text string) string {
	handle = strings.TrimPrefix(strings.TrimSpace(handle), "@")
	if handle == "" {
		return text
	}
	at := "@" + handle
	lower := strings.ToLower(text)
	if strings.HasPrefix(lower, strings.ToLower(at)) {
		rest := lower[len(at):]
		if rest == "" || !isHandleChar(rest[0]) {
			return text
		}
	}
	return at + " " + text
}

func isHandleChar(c byte) bool {
	return c == '_' || (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z')
}
