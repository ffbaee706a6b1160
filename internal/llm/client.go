// Package llm talks to language-model completion providers.
//
// Each provider implements Client over plain role-tagged messages. Completer
// sits on top and turns a history window plus a new prompt into reply text,
// mapping provider failures onto the retryable and non-retryable error
// classes the responder acts on.
package llm

import (
	"context"
	"fmt"
	"time"
)

// Role tags who authored a prompt message.
type Role uint8

const (
	RoleSystem Role = iota
	RoleUser
	RoleAssistant
)

// String returns the wire name shared by the chat APIs.
func (r Role) String() string {
	switch r {
	case RoleSystem:
		return "system"
	case RoleUser:
		return "user"
	case RoleAssistant:
		return "assistant"
	default:
		return fmt.Sprintf("role(%d)", r)
	}
}

// Message is a single entry of a prompt.
type Message struct {
	Role    Role
	Content string
}

// SystemMessage builds the instructions entry.
func SystemMessage(content string) Message { return Message{Role: RoleSystem, Content: content} }

// UserMessage builds a user-authored entry.
func UserMessage(content string) Message { return Message{Role: RoleUser, Content: content} }

// AssistantMessage builds a bot-authored entry.
func AssistantMessage(content string) Message { return Message{Role: RoleAssistant, Content: content} }

// CompletionRequest is the input to a Complete call.
type CompletionRequest struct {
	Model       string
	Messages    []Message
	MaxTokens   int
	Temperature *float64
}

// System returns the content of the leading system entry and the remaining
// messages, for providers that take instructions out of band.
func (r CompletionRequest) System() (string, []Message) {
	if len(r.Messages) > 0 && r.Messages[0].Role == RoleSystem {
		return r.Messages[0].Content, r.Messages[1:]
	}
	return "", r.Messages
}

// CompletionResponse is the result of a completion.
type CompletionResponse struct {
	Content    string        `json:"content"`
	StopReason string        `json:"stopReason,omitempty"`
	Usage      Usage         `json:"usage"`
	Model      string        `json:"model,omitempty"`
	Duration   time.Duration `json:"duration,omitempty"`
}

// Usage tracks token consumption.
type Usage struct {
	InputTokens  int `json:"inputTokens"`
	OutputTokens int `json:"outputTokens"`
}

// Client is the interface all completion providers implement.
type Client interface {
	// Complete sends a request and returns the full response. Implementations
	// keep no state between calls.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// Name returns the provider name (e.g., "openai", "claude").
	Name() string
}

// ProviderError is returned when a provider call fails. Code is the HTTP
// status, or 0 when no response arrived.
type ProviderError struct {
	Provider string
	Message  string
	Code     int
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Code > 0 {
		return fmt.Sprintf("%s: %d %s", e.Provider, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

func (e *ProviderError) Unwrap() error { return e.Err }
