package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Client is an abstraction over LLM providers
type Client interface {
	// GenerateContent generates free-form text using the specified model tier
	GenerateContent(ctx context.Context, prompt string, tier ModelTier) (string, error)
	// GenerateJSON asks for a JSON reply and returns the raw candidate text
	GenerateJSON(ctx context.Context, prompt string, tier ModelTier) (string, error)
	// GetModel returns the model name configured for a tier
	GetModel(tier ModelTier) string
	// Close releases any resources held by the client
	Close() error
}

// NewClient creates a new LLM client based on configuration
func NewClient(ctx context.Context, config *Config, apiKey string) (Client, error) {
	if config == nil {
		config = DefaultConfig()
	}

	switch config.Provider {
	case ProviderGemini:
		return NewGeminiClient(ctx, config, apiKey)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", config.Provider)
	}
}

// GeminiClient implements Client for Google Gemini
type GeminiClient struct {
	client *genai.Client
	config *Config
}

// NewGeminiClient creates a new Gemini client
func NewGeminiClient(ctx context.Context, config *Config, apiKey string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiClient{
		client: client,
		config: config,
	}, nil
}

// GenerateContent generates free-form text. Chat replies use a warmer
// temperature than structured scoring.
func (c *GeminiClient) GenerateContent(ctx context.Context, prompt string, tier ModelTier) (string, error) {
	model, err := c.model(tier)
	if err != nil {
		return "", err
	}
	model.SetTemperature(c.config.ChatTemperature)

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", classifyError(err)
	}

	return extractTextFromResponse(resp)
}

// GenerateJSON requests an application/json reply. The returned text is the
// untouched candidate text; callers strip fences and decode.
func (c *GeminiClient) GenerateJSON(ctx context.Context, prompt string, tier ModelTier) (string, error) {
	model, err := c.model(tier)
	if err != nil {
		return "", err
	}
	model.SetTemperature(c.config.JSONTemperature)
	model.ResponseMIMEType = "application/json"

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", classifyError(err)
	}

	return extractTextFromResponse(resp)
}

// GetModel returns the model name for a tier
func (c *GeminiClient) GetModel(tier ModelTier) string {
	return c.config.GetModel(tier)
}

// Close releases resources held by the client
func (c *GeminiClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

func (c *GeminiClient) model(tier ModelTier) (*genai.GenerativeModel, error) {
	modelName := c.config.GetModel(tier)
	if modelName == "" {
		return nil, fmt.Errorf("no model configured for tier %s", tier)
	}
	return c.client.GenerativeModel(modelName), nil
}

// classifyError maps SDK errors onto the model error taxonomy. A blocked
// prompt or candidate is a reply we cannot use; anything else is transport.
func classifyError(err error) error {
	var blocked *genai.BlockedError
	if errors.As(err, &blocked) {
		return &ModelResponseError{Message: "response blocked by safety filters", Cause: err}
	}
	return &ModelUnavailableError{Cause: err}
}

// extractTextFromResponse joins the text parts of the first candidate.
// When there is no text, Raw describes the envelope instead.
func extractTextFromResponse(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", &ModelResponseError{Message: "no candidates in response", Raw: describeResponse(resp)}
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", &ModelResponseError{Message: "no content in first candidate", Raw: describeResponse(resp)}
	}

	var parts []string
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			parts = append(parts, string(text))
		}
	}

	if len(parts) == 0 {
		return "", &ModelResponseError{Message: "no text parts in first candidate", Raw: describeResponse(resp)}
	}

	return strings.Join(parts, ""), nil
}

// describeResponse summarizes a response that carried no text, e.g.
// "candidates=1 finish_reason=FinishReasonSafety parts=[genai.Blob]".
func describeResponse(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return "response=nil"
	}

	fields := []string{fmt.Sprintf("candidates=%d", len(resp.Candidates))}
	if fb := resp.PromptFeedback; fb != nil {
		fields = append(fields, "block_reason="+fb.BlockReason.String())
	}
	if len(resp.Candidates) > 0 {
		candidate := resp.Candidates[0]
		fields = append(fields, "finish_reason="+candidate.FinishReason.String())
		if candidate.Content != nil {
			kinds := make([]string, 0, len(candidate.Content.Parts))
			for _, part := range candidate.Content.Parts {
				kinds = append(kinds, fmt.Sprintf("%T", part))
			}
			fields = append(fields, "parts=["+strings.Join(kinds, ",")+"]")
		}
	}
	return strings.Join(fields, " ")
}
