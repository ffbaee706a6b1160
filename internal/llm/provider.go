package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/soyeahso/replybot/internal/config"
)

// NewFromConfig builds the provider client named by the completion section.
func NewFromConfig(ctx context.Context, cfg config.CompletionConfig) (Client, error) {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	switch cfg.Provider {
	case "openai", "":
		return NewOpenAIClient(cfg.APIKey, cfg.Model, cfg.BaseURL, timeout), nil
	case "claude":
		return NewClaudeAPIClient(cfg.APIKey, cfg.Model, cfg.BaseURL, timeout), nil
	case "gemini":
		return NewGeminiAPIClient(ctx, cfg.APIKey, cfg.Model, cfg.BaseURL, timeout)
	case "ollama":
		return NewOllamaAPIClient(cfg.BaseURL, cfg.Model, timeout), nil
	default:
		return nil, fmt.Errorf("unknown completion provider %q", cfg.Provider)
	}
}
