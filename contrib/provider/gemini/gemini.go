package gemini

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/sweetpotato0/studygen/llm"
	"google.golang.org/api/option"
)

// Config holds Gemini provider configuration
type Config struct {
	APIKey           string
	Model            string
	DefaultMaxTokens int
}

// DefaultConfig returns default Gemini configuration
func DefaultConfig(apiKey string) *Config {
	return &Config{
		APIKey:           apiKey,
		Model:            "gemini-1.5-pro",
		DefaultMaxTokens: 8192,
	}
}

// Provider implements llm.Completer for Google Gemini.
type Provider struct {
	config *Config
	client *genai.Client
}

var _ llm.Completer = (*Provider)(nil)

// New creates a Gemini provider. Close releases the underlying client.
func New(ctx context.Context, config *Config) (*Provider, error) {
	if config == nil {
		config = DefaultConfig("")
	}
	if config.APIKey == "" {
		return nil, fmt.Errorf("Gemini API key not configured")
	}
	if config.Model == "" {
		config.Model = "gemini-1.5-pro"
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(config.APIKey))
	if err != nil {
		return nil, fmt.Errorf("create Gemini client: %w", err)
	}
	return &Provider{config: config, client: client}, nil
}

// Complete implements llm.Completer. A model handle is built per call so
// concurrent callers never share generation settings.
func (p *Provider) Complete(ctx context.Context, prompt string, opts llm.Options) (string, error) {
	model := p.client.GenerativeModel(p.config.Model)
	model.SetTemperature(float32(opts.Temperature))
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = p.config.DefaultMaxTokens
	}
	model.SetMaxOutputTokens(int32(maxTokens))
	if opts.ForceJSON {
		model.ResponseMIMEType = "application/json"
	}

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("Gemini API error: %w", err)
	}
	return responseText(resp)
}

// Close releases the client connection.
func (p *Provider) Close() error {
	return p.client.Close()
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		if resp != nil && resp.PromptFeedback != nil {
			return "", fmt.Errorf("no candidates in response (block reason %v)", resp.PromptFeedback.BlockReason)
		}
		return "", fmt.Errorf("no candidates in response")
	}
	cand := resp.Candidates[0]
	if cand.Content == nil {
		return "", fmt.Errorf("no content in candidate (finish reason %v)", cand.FinishReason)
	}
	var b strings.Builder
	for _, part := range cand.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("no text parts in candidate")
	}
	return b.String(), nil
}
