package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/cotbench/cotbench/internal/ports"
)

// Retry defaults. A fixed delay between attempts is deliberate: the
// dominant transient failure here is provider rate limiting, where backing
// off a constant interval behaves at least as well as exponential growth
// over three attempts.
const (
	DefaultMaxRetries = 3
	DefaultRetryDelay = 5 * time.Second
)

type retryLLM struct {
	next       CoreLLM
	maxRetries int
	delay      time.Duration
}

// RetryMiddleware retries failed requests up to maxRetries additional
// attempts with a fixed delay, respecting context cancellation between
// attempts.
func RetryMiddleware(maxRetries int, delay time.Duration) Middleware {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return func(next CoreLLM) CoreLLM {
		return &retryLLM{next: next, maxRetries: maxRetries, delay: delay}
	}
}

func (r *retryLLM) DoRequest(ctx context.Context, prompt string, opts ports.GenerateOptions) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		response, err := r.next.DoRequest(ctx, prompt, opts)
		if err == nil {
			return response, nil
		}
		lastErr = err

		if ctx.Err() != nil || attempt == r.maxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(r.delay):
		}
	}
	return "", fmt.Errorf("request failed after %d attempts: %w", r.maxRetries+1, lastErr)
}

func (r *retryLLM) GetModel() string { return r.next.GetModel() }
