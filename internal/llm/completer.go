package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/soyeahso/replybot/internal/domain"
	"github.com/soyeahso/replybot/internal/logging"
)

// CompleterConfig tunes every request the Completer sends.
type CompleterConfig struct {
	Model       string
	MaxTokens   int
	Temperature *float64
	Timeout     time.Duration
}

// Completer turns a history window and a new prompt into reply text.
// It holds no conversation state; each call sends the full context.
type Completer struct {
	client Client
	cfg    CompleterConfig
	log    *logging.Logger
}

// NewCompleter wraps a provider client.
func NewCompleter(client Client, cfg CompleterConfig, log *logging.Logger) *Completer {
	return &Completer{
		client: client,
		cfg:    cfg,
		log:    log.Sub("llm." + client.Name()),
	}
}

// BuildPrompt lays out the model input: the instructions, the history
// re-tagged by author, then the new prompt as the final user entry.
func BuildPrompt(instructions string, history []domain.Turn, prompt string) []Message {
	msgs := make([]Message, 0, len(history)+2)
	msgs = append(msgs, SystemMessage(instructions))
	for _, t := range history {
		if t.FromUser {
			msgs = append(msgs, UserMessage(t.Text))
		} else {
			msgs = append(msgs, AssistantMessage(t.Text))
		}
	}
	return append(msgs, UserMessage(prompt))
}

// Complete returns the model's reply. Errors are *domain.InvalidPromptError,
// *domain.UpstreamError (retryable) or *domain.UpstreamRejectedError.
func (c *Completer) Complete(ctx context.Context, instructions string, history []domain.Turn, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", &domain.InvalidPromptError{Reason: "prompt is empty"}
	}
	if !utf8.ValidString(prompt) {
		return "", &domain.InvalidPromptError{Reason: "prompt is not valid UTF-8"}
	}

	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	req := CompletionRequest{
		Model:       c.cfg.Model,
		Messages:    BuildPrompt(instructions, history, prompt),
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
	}

	resp, err := c.client.Complete(ctx, req)
	if err != nil {
		return "", classify(c.client.Name(), err)
	}

	reply := strings.TrimSpace(resp.Content)
	if reply == "" {
		return "", &domain.UpstreamError{Provider: c.client.Name(), Err: errors.New("empty completion")}
	}

	c.log.Debug().
		Int("history", len(history)).
		Int("inputTokens", resp.Usage.InputTokens).
		Int("outputTokens", resp.Usage.OutputTokens).
		Dur("duration", resp.Duration).
		Msg("completion done")
	return reply, nil
}

// classify maps a provider failure onto the completion error taxonomy.
// Client-side refusals are final; throttling, server faults and network
// trouble are worth another attempt.
func classify(provider string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		switch pe.Code {
		case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden,
			http.StatusNotFound, http.StatusUnprocessableEntity:
			return &domain.UpstreamRejectedError{Provider: provider, Code: pe.Code, Err: err}
		}
	}
	return &domain.UpstreamError{Provider: provider, Err: err}
}
