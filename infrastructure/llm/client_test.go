package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cotbench/cotbench/internal/ports"
)

// orderTaggingMiddleware appends its tag to a shared slice when invoked, so
// tests can assert middleware application order.
func orderTaggingMiddleware(tag string, order *[]string) Middleware {
	return func(next CoreLLM) CoreLLM {
		return &taggedLLM{next: next, tag: tag, order: order}
	}
}

type taggedLLM struct {
	next  CoreLLM
	tag   string
	order *[]string
}

func (t *taggedLLM) DoRequest(ctx context.Context, prompt string, opts ports.GenerateOptions) (string, error) {
	*t.order = append(*t.order, t.tag)
	return t.next.DoRequest(ctx, prompt, opts)
}

func (t *taggedLLM) GetModel() string { return t.next.GetModel() }

func TestNewClient_UnknownProvider(t *testing.T) {
	_, err := NewClient("does-not-exist", ClientConfig{APIKey: "key"})
	require.Error(t, err, "unknown provider should fail")
	assert.Contains(t, err.Error(), "unknown provider", "error should name the problem")
}

func TestNewClient_EmptyAPIKey(t *testing.T) {
	_, err := NewClient("openai", ClientConfig{})
	require.ErrorIs(t, err, ErrEmptyAPIKey, "missing API key should be rejected before provider lookup")
}

func TestNewClient_AppliesMiddlewareFirstEntryOutermost(t *testing.T) {
	// Given a registered test provider and two tagging middleware
	mock := NewMockCoreLLM()
	RegisterProviderFactory("order-test", func(ClientConfig) (CoreLLM, error) {
		return mock, nil
	})

	var order []string
	client, err := NewClient("order-test", ClientConfig{
		APIKey: "key",
		Middleware: []Middleware{
			orderTaggingMiddleware("outer", &order),
			orderTaggingMiddleware("inner", &order),
		},
	})
	require.NoError(t, err)

	// When making a request
	response, err := client.Complete(context.Background(), "prompt", ports.GenerateOptions{})

	// Then the first middleware entry runs first
	require.NoError(t, err)
	assert.Equal(t, "test response", response)
	assert.Equal(t, []string{"outer", "inner"}, order, "first middleware entry should be outermost")
	assert.Equal(t, 1, mock.GetCallCount(), "provider should be reached once")
}

func TestClient_ModelDelegatesToCore(t *testing.T) {
	mock := NewMockCoreLLM()
	mock.Model = "delegated-model"
	RegisterProviderFactory("model-test", func(ClientConfig) (CoreLLM, error) {
		return mock, nil
	})

	client, err := NewClient("model-test", ClientConfig{APIKey: "key"})
	require.NoError(t, err)
	assert.Equal(t, "delegated-model", client.Model())
}

func TestRegisteredProviders(t *testing.T) {
	for _, name := range []string{"openai", "anthropic", "google"} {
		_, ok := providerFactories[name]
		assert.True(t, ok, "provider %q should self-register", name)
	}
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 0.0, clamp(-1, 0, 2))
	assert.Equal(t, 2.0, clamp(3, 0, 2))
	assert.Equal(t, 0.7, clamp(0.7, 0, 2))
}
