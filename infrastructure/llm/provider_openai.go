package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"github.com/cotbench/cotbench/internal/ports"
)

// OpenAIDefaultModel is used when no model is configured for the OpenAI
// provider.
const OpenAIDefaultModel = "gpt-4o-mini"

func init() {
	RegisterProviderFactory("openai", newOpenAIProvider)
}

// openAIProvider implements CoreLLM against OpenAI's chat completion API.
// It also serves OpenAI-compatible endpoints via BaseURL.
type openAIProvider struct {
	client *openai.Client
	model  string
}

func newOpenAIProvider(config ClientConfig) (CoreLLM, error) {
	if config.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}
	model := config.Model
	if model == "" {
		model = OpenAIDefaultModel
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}
	if config.Timeout > 0 {
		clientConfig.HTTPClient = &http.Client{Timeout: config.Timeout}
	}

	return &openAIProvider{
		client: openai.NewClientWithConfig(clientConfig),
		model:  model,
	}, nil
}

func (p *openAIProvider) DoRequest(ctx context.Context, prompt string, opts ports.GenerateOptions) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}
	if opts.Model != "" {
		req.Model = opts.Model
	}
	if opts.Temperature > 0 {
		req.Temperature = float32(clamp(opts.Temperature, 0.0, 2.0))
	}
	if opts.MaxTokens > 0 {
		req.MaxTokens = opts.MaxTokens
	}

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", p.wrapError(err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoResponseChoice
	}
	return resp.Choices[0].Message.Content, nil
}

func (p *openAIProvider) GetModel() string { return p.model }

func (p *openAIProvider) wrapError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case 401:
			return fmt.Errorf("openai authentication failed: %w", err)
		case 429:
			return fmt.Errorf("openai rate limit exceeded: %w", err)
		case 500, 502, 503, 504:
			return fmt.Errorf("openai server error (%d): %w", apiErr.HTTPStatusCode, err)
		default:
			return fmt.Errorf("openai API error (%d): %w", apiErr.HTTPStatusCode, err)
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("openai request timeout: %w", err)
	}
	return fmt.Errorf("openai request failed: %w", err)
}
