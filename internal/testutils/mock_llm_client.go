// Package testutils provides deterministic test doubles for the external
// collaborators: a pattern-matching mock LLM client and a stub embedder with
// controllable geometry.
package testutils

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/cotbench/cotbench/internal/ports"
)

var _ ports.LLMClient = (*MockLLMClient)(nil)

// MockResponse is one pre-configured response pattern for the mock client.
type MockResponse struct {
	// Pattern is matched against prompts by substring. The empty pattern is
	// the fallback for unmatched prompts.
	Pattern string
	// Response is the text returned for matching prompts.
	Response string
	// Err, when set, is returned instead of the response.
	Err error
}

// MockLLMClient implements ports.LLMClient with deterministic
// substring-matched responses, optional per-pattern error injection, and
// call recording. Safe for concurrent use.
type MockLLMClient struct {
	model string

	mu        sync.Mutex
	responses []MockResponse
	calls     []string
}

// NewMockLLMClient creates a mock client with no configured responses.
// Unmatched prompts return a generic completion unless a fallback pattern
// ("") is added.
func NewMockLLMClient(model string) *MockLLMClient {
	return &MockLLMClient{model: model}
}

// AddResponse registers a response pattern. Patterns are checked in
// registration order; the first match wins.
func (m *MockLLMClient) AddResponse(r MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, r)
}

// Complete returns the first registered response whose pattern is a
// substring of the prompt.
func (m *MockLLMClient) Complete(ctx context.Context, prompt string, opts ports.GenerateOptions) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, prompt)

	var fallback *MockResponse
	for i := range m.responses {
		r := &m.responses[i]
		if r.Pattern == "" {
			if fallback == nil {
				fallback = r
			}
			continue
		}
		if strings.Contains(prompt, r.Pattern) {
			if r.Err != nil {
				return "", r.Err
			}
			return r.Response, nil
		}
	}
	if fallback != nil {
		if fallback.Err != nil {
			return "", fallback.Err
		}
		return fallback.Response, nil
	}
	return "mock completion", nil
}

// Model returns the mock model identifier.
func (m *MockLLMClient) Model() string { return m.model }

// Calls returns a copy of all prompts seen so far.
func (m *MockLLMClient) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns how many completions were requested.
func (m *MockLLMClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

var _ ports.Embedder = (*StubEmbedder)(nil)

// StubEmbedder implements ports.Embedder with controllable geometry: exact
// vectors can be pinned per text, and unpinned texts get a deterministic
// hash-derived vector so distinct texts land far apart.
type StubEmbedder struct {
	dim int

	mu     sync.Mutex
	pinned map[string][]float32
	err    error
}

// NewStubEmbedder creates a stub embedder producing vectors of the given
// dimensionality.
func NewStubEmbedder(dim int) *StubEmbedder {
	return &StubEmbedder{dim: dim, pinned: make(map[string][]float32)}
}

// Pin fixes the vector returned for an exact text. The vector is padded or
// truncated to the embedder's dimensionality.
func (e *StubEmbedder) Pin(text string, vec []float32) {
	fixed := make([]float32, e.dim)
	copy(fixed, vec)
	e.mu.Lock()
	e.pinned[text] = fixed
	e.mu.Unlock()
}

// Fail makes every subsequent Embed call return err. Pass nil to clear.
func (e *StubEmbedder) Fail(err error) {
	e.mu.Lock()
	e.err = err
	e.mu.Unlock()
}

// Embed returns the pinned vector for text, or a deterministic hash-derived
// vector otherwise.
func (e *StubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return nil, e.err
	}
	if vec, ok := e.pinned[text]; ok {
		out := make([]float32, e.dim)
		copy(out, vec)
		return out, nil
	}

	// FNV-1a spread across the vector keeps distinct unpinned texts at
	// large mutual distances.
	var h uint64 = 14695981039346656037
	vec := make([]float32, e.dim)
	for i := 0; i < e.dim; i++ {
		for _, b := range []byte(fmt.Sprintf("%s|%d", text, i)) {
			h ^= uint64(b)
			h *= 1099511628211
		}
		vec[i] = float32(h%2000)/1000.0 - 1.0
	}
	return vec, nil
}

// Dimension returns the fixed vector length.
func (e *StubEmbedder) Dimension() int { return e.dim }
