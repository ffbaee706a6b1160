package llm

import (
	"context"
	"net/http"
	"strings"
	"time"
)

const (
	defaultClaudeBaseURL   = "https://api.anthropic.com"
	defaultClaudeMaxTokens = 1024
)

// ClaudeAPIClient is a direct HTTP client for the Anthropic Messages API.
type ClaudeAPIClient struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

// NewClaudeAPIClient creates a new Claude API client. An empty baseURL
// selects the public endpoint.
func NewClaudeAPIClient(apiKey, model, baseURL string, timeout time.Duration) *ClaudeAPIClient {
	if baseURL == "" {
		baseURL = defaultClaudeBaseURL
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &ClaudeAPIClient{
		apiKey:  apiKey,
		model:   model,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// Complete sends a non-streaming completion request to the Messages API.
func (c *ClaudeAPIClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()

	model := req.Model
	if model == "" {
		model = c.model
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultClaudeMaxTokens
	}

	system, msgs := req.System()
	body := claudeRequest{
		Model:       model,
		System:      system,
		MaxTokens:   maxTokens,
		Temperature: req.Temperature,
		Messages:    make([]claudeMessage, len(msgs)),
	}
	for i, m := range msgs {
		body.Messages[i] = claudeMessage{Role: m.Role.String(), Content: m.Content}
	}

	headers := map[string]string{
		"x-api-key":         c.apiKey,
		"anthropic-version": "2023-06-01",
	}

	var result claudeResponse
	if err := postJSON(ctx, c.client, c.Name(), c.baseURL+"/v1/messages", headers, body, &result); err != nil {
		return nil, err
	}

	var text strings.Builder
	for _, block := range result.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	return &CompletionResponse{
		Content:    text.String(),
		StopReason: result.StopReason,
		Model:      result.Model,
		Usage: Usage{
			InputTokens:  result.Usage.InputTokens,
			OutputTokens: result.Usage.OutputTokens,
		},
		Duration: time.Since(start),
	}, nil
}

// Name returns the provider name.
func (c *ClaudeAPIClient) Name() string {
	return "claude"
}

type claudeRequest struct {
	Model       string          `json:"model"`
	System      string          `json:"system,omitempty"`
	Messages    []claudeMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens"`
	Temperature *float64        `json:"temperature,omitempty"`
}

type claudeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type claudeResponse struct {
	ID         string `json:"id"`
	Model      string `json:"model"`
	StopReason string `json:"stop_reason"`
	Content    []struct {
		Type string `json:"type"`
		Text string `json:"text,omitempty"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}
