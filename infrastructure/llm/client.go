// Package llm provides the model clients behind the harness: provider
// implementations for OpenAI, Anthropic, and Google abstracted behind a
// common core interface, composable middleware for retry and rate limiting,
// and the OpenAI embedder used by the vector index.
//
// Providers register themselves into a factory table; NewClient assembles
// the middleware chain around the chosen provider and returns a
// ports.LLMClient the rest of the system consumes.
package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/cotbench/cotbench/internal/ports"
)

// CoreLLM is the minimal surface a provider must implement. Middleware
// wraps CoreLLM values, so resilience features compose without touching
// provider code.
type CoreLLM interface {
	// DoRequest sends a prompt and returns the completion text.
	DoRequest(ctx context.Context, prompt string, opts ports.GenerateOptions) (string, error)

	// GetModel returns the configured model name.
	GetModel() string
}

// Middleware wraps a CoreLLM to add cross-cutting behavior. Middleware is
// applied in reverse order so the first entry is the outermost wrapper.
type Middleware func(CoreLLM) CoreLLM

// ClientConfig holds provider and middleware configuration.
type ClientConfig struct {
	// APIKey authenticates against the provider.
	APIKey string

	// Model selects the model; empty selects the provider default.
	Model string

	// BaseURL overrides the provider's default endpoint when set.
	BaseURL string

	// Timeout bounds individual requests; zero means no timeout.
	Timeout time.Duration

	// Middleware is applied around the provider, first entry outermost.
	Middleware []Middleware
}

// ProviderFactory builds a provider from configuration.
type ProviderFactory func(ClientConfig) (CoreLLM, error)

var providerFactories = map[string]ProviderFactory{}

// RegisterProviderFactory adds a provider to the factory table. Called from
// provider init functions.
func RegisterProviderFactory(providerType string, factory ProviderFactory) {
	providerFactories[providerType] = factory
}

var _ ports.LLMClient = (*Client)(nil)

// Client adapts a middleware-wrapped CoreLLM to ports.LLMClient.
type Client struct {
	core CoreLLM
}

// NewClient creates a client for the named provider with the middleware
// chain from config applied.
func NewClient(providerType string, config ClientConfig) (*Client, error) {
	if config.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}

	factory, ok := providerFactories[providerType]
	if !ok {
		return nil, fmt.Errorf("unknown provider %q", providerType)
	}
	core, err := factory(config)
	if err != nil {
		return nil, fmt.Errorf("creating %s provider: %w", providerType, err)
	}

	for i := len(config.Middleware) - 1; i >= 0; i-- {
		core = config.Middleware[i](core)
	}
	return &Client{core: core}, nil
}

// Complete implements ports.LLMClient.
func (c *Client) Complete(ctx context.Context, prompt string, opts ports.GenerateOptions) (string, error) {
	return c.core.DoRequest(ctx, prompt, opts)
}

// Model implements ports.LLMClient.
func (c *Client) Model() string { return c.core.GetModel() }

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
