package claude

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/param"
	"github.com/sweetpotato0/studygen/llm"
)

const jsonInstruction = "Reply with a single JSON object and nothing else."

// Config holds Claude provider configuration
type Config struct {
	APIKey           string
	Model            string
	BaseURL          string
	System           string
	DefaultMaxTokens int64
	MaxRetries       int
}

// DefaultConfig returns default Claude configuration
func DefaultConfig(apiKey, baseURL string) *Config {
	return &Config{
		APIKey:           apiKey,
		BaseURL:          baseURL,
		Model:            "claude-sonnet-4-5-20250929",
		System:           "You write rigorous study material grounded only on the evidence you are given.",
		DefaultMaxTokens: 4096,
		MaxRetries:       2,
	}
}

// Provider implements llm.Completer on the Messages API.
type Provider struct {
	config *Config
	client anthropic.Client
}

var _ llm.Completer = (*Provider)(nil)

// New creates a new Claude provider using official SDK
func New(config *Config) *Provider {
	if config == nil {
		config = DefaultConfig("", "")
	}
	if config.Model == "" {
		config.Model = "claude-sonnet-4-5-20250929"
	}
	if config.DefaultMaxTokens <= 0 {
		config.DefaultMaxTokens = 4096
	}

	options := []option.RequestOption{
		option.WithAPIKey(config.APIKey),
		option.WithMaxRetries(config.MaxRetries),
	}
	if config.BaseURL != "" {
		options = append(options, option.WithBaseURL(config.BaseURL))
	}

	return &Provider{
		config: config,
		client: anthropic.NewClient(options...),
	}
}

// Complete implements llm.Completer. JSON mode is requested through the
// system prompt since the Messages API has no response format switch.
func (p *Provider) Complete(ctx context.Context, prompt string, opts llm.Options) (string, error) {
	maxTokens := p.config.DefaultMaxTokens
	if opts.MaxTokens > 0 {
		maxTokens = int64(opts.MaxTokens)
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.config.Model),
		Messages:  []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(prompt))},
		MaxTokens: maxTokens,
	}

	system := p.config.System
	if opts.ForceJSON {
		system = strings.TrimSpace(system + "\n" + jsonInstruction)
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if opts.Temperature > 0 {
		params.Temperature = param.NewOpt(opts.Temperature)
	}

	apiMessage, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("Claude API error: %w", err)
	}

	var b strings.Builder
	for _, content := range apiMessage.Content {
		if content.Type == "text" {
			b.WriteString(content.Text)
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("no text content returned from Claude")
	}
	return b.String(), nil
}
