package llm

import (
	"context"
	"sync"
	"time"

	"github.com/cotbench/cotbench/internal/ports"
)

// MockCoreLLM is a configurable CoreLLM for middleware tests. It tracks
// calls and supports scripted failures so retry and rate-limit behavior can
// be asserted precisely.
type MockCoreLLM struct {
	mu sync.Mutex

	// Response configuration.
	Response      string
	Error         error
	Model         string
	ResponseDelay time.Duration

	// FailUntilAttempt fails the first N calls, then succeeds.
	FailUntilAttempt int

	// Tracking.
	CallCount      int
	LastPrompt     string
	LastOpts       ports.GenerateOptions
	CallTimestamps []time.Time
}

// NewMockCoreLLM creates a mock with default successful behavior.
func NewMockCoreLLM() *MockCoreLLM {
	return &MockCoreLLM{
		Response: "test response",
		Model:    "test-model",
	}
}

// DoRequest implements CoreLLM with the configured behavior.
func (m *MockCoreLLM) DoRequest(ctx context.Context, prompt string, opts ports.GenerateOptions) (string, error) {
	m.mu.Lock()
	m.CallCount++
	call := m.CallCount
	m.LastPrompt = prompt
	m.LastOpts = opts
	m.CallTimestamps = append(m.CallTimestamps, time.Now())
	delay := m.ResponseDelay
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailUntilAttempt > 0 && call <= m.FailUntilAttempt {
		if m.Error != nil {
			return "", m.Error
		}
		return "", &testError{message: "simulated failure"}
	}
	if m.Error != nil {
		return "", m.Error
	}
	return m.Response, nil
}

// GetModel returns the configured model name.
func (m *MockCoreLLM) GetModel() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Model
}

// GetCallCount returns the number of DoRequest calls.
func (m *MockCoreLLM) GetCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CallCount
}

// GetTimeBetweenCalls returns the duration between two calls by index, or
// nil when either index is out of range.
func (m *MockCoreLLM) GetTimeBetweenCalls(call1, call2 int) *time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	if call1 < 0 || call2 < 0 || call1 >= len(m.CallTimestamps) || call2 >= len(m.CallTimestamps) {
		return nil
	}
	duration := m.CallTimestamps[call2].Sub(m.CallTimestamps[call1])
	return &duration
}

type testError struct {
	message string
}

func (e *testError) Error() string { return e.message }
