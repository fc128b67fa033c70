package llm

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/cotbench/cotbench/internal/ports"
)

// GoogleDefaultModel is used when no model is configured for the Google
// provider.
const GoogleDefaultModel = "gemini-2.0-flash"

func init() {
	RegisterProviderFactory("google", newGoogleProvider)
}

type googleProvider struct {
	client *genai.Client
	model  string
}

func newGoogleProvider(config ClientConfig) (CoreLLM, error) {
	if config.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}
	model := config.Model
	if model == "" {
		model = GoogleDefaultModel
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating google client: %w", err)
	}

	return &googleProvider{client: client, model: model}, nil
}

func (p *googleProvider) DoRequest(ctx context.Context, prompt string, opts ports.GenerateOptions) (string, error) {
	model := p.model
	if opts.Model != "" {
		model = opts.Model
	}

	genConfig := &genai.GenerateContentConfig{}
	if opts.Temperature > 0 {
		genConfig.Temperature = genai.Ptr(float32(clamp(opts.Temperature, 0.0, 2.0)))
	}
	if opts.MaxTokens > 0 {
		genConfig.MaxOutputTokens = int32(opts.MaxTokens)
	}

	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}
	resp, err := p.client.Models.GenerateContent(ctx, model, contents, genConfig)
	if err != nil {
		return "", fmt.Errorf("google request failed: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

func (p *googleProvider) GetModel() string { return p.model }
