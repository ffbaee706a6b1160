package domain

import "time"

// Turn is one entry in a per-user conversation history.
type Turn struct {
	FromUser       bool      `json:"fromUser"`
	IsReply        bool      `json:"isReply"`
	Text           string    `json:"text"`
	MessageID      string    `json:"messageId"`
	ConversationID string    `json:"conversationId,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
	Handle         string    `json:"handle,omitempty"`
}

// UserTurn records the mention a user sent.
func UserTurn(m Mention) Turn {
	return Turn{
		FromUser:       true,
		IsReply:        m.IsReply(),
		Text:           m.Text,
		MessageID:      m.ID,
		ConversationID: m.ConversationID,
		Timestamp:      m.CreatedAt,
		Handle:         m.AuthorHandle,
	}
}

// BotTurn records the reply the bot published.
func BotTurn(published Mention) Turn {
	return Turn{
		FromUser:       false,
		IsReply:        true,
		Text:           published.Text,
		MessageID:      published.ID,
		ConversationID: published.ConversationID,
		Timestamp:      published.CreatedAt,
		Handle:         published.AuthorHandle,
	}
}

// TurnFilter selects turns from a history window.
type TurnFilter func(Turn) bool

// ByUser keeps turns written by the user.
func ByUser(t Turn) bool { return t.FromUser }

// ByBot keeps turns written by the bot.
func ByBot(t Turn) bool { return !t.FromUser }

// FilterTurns returns the turns accepted by keep, preserving order.
func FilterTurns(turns []Turn, keep TurnFilter) []Turn {
	out := make([]Turn, 0, len(turns))
	for _, t := range turns {
		if keep(t) {
			out = append(out, t)
		}
	}
	return out
}
