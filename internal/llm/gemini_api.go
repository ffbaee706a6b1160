package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"google.golang.org/genai"
)

// GeminiAPIClient talks to the Gemini API through the genai SDK.
type GeminiAPIClient struct {
	client *genai.Client
	model  string
}

// NewGeminiAPIClient creates a Gemini client. baseURL may be empty.
func NewGeminiAPIClient(ctx context.Context, apiKey, model, baseURL string, timeout time.Duration) (*GeminiAPIClient, error) {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      apiKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  &http.Client{Timeout: timeout},
		HTTPOptions: genai.HTTPOptions{BaseURL: baseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &GeminiAPIClient{client: client, model: model}, nil
}

// Complete sends a generateContent request. The system entry travels as
// the system instruction; assistant turns use Gemini's model role.
func (g *GeminiAPIClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()

	model := req.Model
	if model == "" {
		model = g.model
	}

	system, msgs := req.System()
	contents := make([]*genai.Content, len(msgs))
	for i, m := range msgs {
		role := genai.RoleUser
		if m.Role == RoleAssistant {
			role = genai.RoleModel
		}
		contents[i] = genai.NewContentFromText(m.Content, role)
	}

	conf := &genai.GenerateContentConfig{}
	if system != "" {
		conf.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	if req.MaxTokens > 0 {
		conf.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.Temperature != nil {
		t := float32(*req.Temperature)
		conf.Temperature = &t
	}

	result, err := g.client.Models.GenerateContent(ctx, model, contents, conf)
	if err != nil {
		return nil, geminiError(err)
	}

	resp := &CompletionResponse{
		Model:    model,
		Content:  result.Text(),
		Duration: time.Since(start),
	}
	if len(result.Candidates) > 0 {
		resp.StopReason = string(result.Candidates[0].FinishReason)
	}
	if u := result.UsageMetadata; u != nil {
		resp.Usage = Usage{
			InputTokens:  int(u.PromptTokenCount),
			OutputTokens: int(u.CandidatesTokenCount),
		}
	}
	return resp, nil
}

// geminiError carries the SDK's HTTP status into a ProviderError so the
// completer can classify it.
func geminiError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &ProviderError{Provider: "gemini", Code: apiErr.Code, Message: apiErr.Message, Err: err}
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return &ProviderError{Provider: "gemini", Code: apiErrPtr.Code, Message: apiErrPtr.Message, Err: err}
	}
	return &ProviderError{Provider: "gemini", Message: "request failed: " + err.Error(), Err: err}
}

// Name returns the provider name.
func (g *GeminiAPIClient) Name() string {
	return "gemini"
}
