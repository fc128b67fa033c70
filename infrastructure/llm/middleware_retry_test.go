package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cotbench/cotbench/internal/ports"
)

func TestRetryMiddleware_SuccessOnFirstAttempt(t *testing.T) {
	// Given a mock that succeeds immediately
	mock := NewMockCoreLLM()
	wrapped := RetryMiddleware(3, 10*time.Millisecond)(mock)

	// When making a request
	response, err := wrapped.DoRequest(context.Background(), "test prompt", ports.GenerateOptions{})

	// Then it should succeed without retries
	require.NoError(t, err, "request should succeed")
	assert.Equal(t, "test response", response, "response should match")
	assert.Equal(t, 1, mock.GetCallCount(), "should only call once on success")
}

func TestRetryMiddleware_RetriesOnTransientError(t *testing.T) {
	// Given a mock that fails twice then succeeds
	mock := NewMockCoreLLM()
	mock.FailUntilAttempt = 2
	wrapped := RetryMiddleware(3, time.Millisecond)(mock)

	// When making a request
	response, err := wrapped.DoRequest(context.Background(), "test prompt", ports.GenerateOptions{})

	// Then it should eventually succeed after retries
	require.NoError(t, err, "request should eventually succeed")
	assert.Equal(t, "test response", response, "response should match")
	assert.Equal(t, 3, mock.GetCallCount(), "should retry until success")
}

func TestRetryMiddleware_FailsAfterMaxRetries(t *testing.T) {
	// Given a mock that always fails
	mock := NewMockCoreLLM()
	mock.Error = errors.New("persistent error")
	wrapped := RetryMiddleware(2, time.Millisecond)(mock)

	// When making a request
	_, err := wrapped.DoRequest(context.Background(), "test prompt", ports.GenerateOptions{})

	// Then it should fail after exhausting retries
	require.Error(t, err, "request should fail")
	assert.Contains(t, err.Error(), "request failed after 3 attempts", "error should indicate retry exhaustion")
	assert.Contains(t, err.Error(), "persistent error", "error should contain original error")
	assert.Equal(t, 3, mock.GetCallCount(), "should attempt max retries + 1")
}

func TestRetryMiddleware_FixedDelayBetweenAttempts(t *testing.T) {
	// Given a mock that fails twice with a measurable delay configured
	mock := NewMockCoreLLM()
	mock.FailUntilAttempt = 2
	delay := 20 * time.Millisecond
	wrapped := RetryMiddleware(3, delay)(mock)

	// When making a request
	_, err := wrapped.DoRequest(context.Background(), "test prompt", ports.GenerateOptions{})

	// Then the gap between attempts should be at least the configured delay
	require.NoError(t, err, "request should eventually succeed")
	require.Equal(t, 3, mock.GetCallCount(), "should make expected number of attempts")

	gap := mock.GetTimeBetweenCalls(0, 1)
	require.NotNil(t, gap, "should have a gap between first and second attempt")
	assert.GreaterOrEqual(t, gap.Milliseconds(), delay.Milliseconds(), "gap should be at least the fixed delay")
}

func TestRetryMiddleware_RespectsContextCancellation(t *testing.T) {
	// Given a mock that always fails slowly
	mock := NewMockCoreLLM()
	mock.Error = errors.New("slow error")
	mock.ResponseDelay = 20 * time.Millisecond
	wrapped := RetryMiddleware(5, 30*time.Millisecond)(mock)

	// When making a request with a short timeout
	ctx, cancel := context.WithTimeout(context.Background(), 40*time.Millisecond)
	defer cancel()
	_, err := wrapped.DoRequest(ctx, "test prompt", ports.GenerateOptions{})

	// Then it should fail before exhausting all retries
	require.Error(t, err, "request should fail")
	assert.Less(t, mock.GetCallCount(), 6, "should stop retrying on context cancellation")
}

func TestRetryMiddleware_PreservesPromptAndOptions(t *testing.T) {
	// Given a mock that fails once
	mock := NewMockCoreLLM()
	mock.FailUntilAttempt = 1
	wrapped := RetryMiddleware(3, time.Millisecond)(mock)

	// When making a request with options
	opts := ports.GenerateOptions{Temperature: 0.7, MaxTokens: 100}
	_, err := wrapped.DoRequest(context.Background(), "test prompt", opts)

	// Then prompt and options should be preserved across retries
	require.NoError(t, err, "request should succeed")
	assert.Equal(t, "test prompt", mock.LastPrompt, "prompt should be preserved")
	assert.Equal(t, opts, mock.LastOpts, "options should be preserved")
}

func TestRetryMiddleware_PassesThroughModel(t *testing.T) {
	mock := NewMockCoreLLM()
	wrapped := RetryMiddleware(3, time.Millisecond)(mock)
	assert.Equal(t, "test-model", wrapped.GetModel(), "should pass through GetModel")
}

func TestRetryMiddleware_NegativeRetriesClampedToZero(t *testing.T) {
	// Given a mock that always fails and a negative retry budget
	mock := NewMockCoreLLM()
	mock.Error = errors.New("boom")
	wrapped := RetryMiddleware(-1, time.Millisecond)(mock)

	// When making a request
	_, err := wrapped.DoRequest(context.Background(), "test prompt", ports.GenerateOptions{})

	// Then exactly one attempt should be made
	require.Error(t, err, "request should fail")
	assert.Equal(t, 1, mock.GetCallCount(), "should make a single attempt")
}
