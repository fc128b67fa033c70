package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/cotbench/cotbench/internal/ports"
)

// Anthropic provider constants.
const (
	AnthropicDefaultModel     = "claude-3-5-sonnet-20241022"
	anthropicDefaultMaxTokens = 2048
)

func init() {
	RegisterProviderFactory("anthropic", newAnthropicProvider)
}

type anthropicProvider struct {
	client anthropic.Client
	model  string
}

func newAnthropicProvider(config ClientConfig) (CoreLLM, error) {
	if config.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}
	model := config.Model
	if model == "" {
		model = AnthropicDefaultModel
	}

	opts := []option.RequestOption{option.WithAPIKey(config.APIKey)}
	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}

	return &anthropicProvider{
		client: anthropic.NewClient(opts...),
		model:  model,
	}, nil
}

func (p *anthropicProvider) DoRequest(ctx context.Context, prompt string, opts ports.GenerateOptions) (string, error) {
	model := p.model
	if opts.Model != "" {
		model = opts.Model
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = anthropicDefaultMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if opts.Temperature > 0 {
		params.Temperature = anthropic.Float(clamp(opts.Temperature, 0.0, 1.0))
	}

	message, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return "", p.wrapError(err)
	}

	var text strings.Builder
	for _, block := range message.Content {
		switch content := block.AsAny().(type) {
		case anthropic.TextBlock:
			text.WriteString(content.Text)
		}
	}
	if text.Len() == 0 {
		return "", ErrEmptyResponse
	}
	return text.String(), nil
}

func (p *anthropicProvider) GetModel() string { return p.model }

func (p *anthropicProvider) wrapError(err error) error {
	var anthropicErr *anthropic.Error
	if errors.As(err, &anthropicErr) {
		switch anthropicErr.StatusCode {
		case 401:
			return fmt.Errorf("anthropic authentication failed: %w", err)
		case 429:
			return fmt.Errorf("anthropic rate limit exceeded: %w", err)
		case 500, 502, 503, 504:
			return fmt.Errorf("anthropic server error (%d): %w", anthropicErr.StatusCode, err)
		default:
			return fmt.Errorf("anthropic API error (%d): %w", anthropicErr.StatusCode, err)
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("anthropic request timeout: %w", err)
	}
	return fmt.Errorf("anthropic request failed: %w", err)
}
