package llm

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/cotbench/cotbench/internal/ports"
)

type rateLimitedLLM struct {
	next    CoreLLM
	limiter *rate.Limiter
}

// RateLimitMiddleware enforces a token-bucket rate limit across all callers
// sharing the wrapped client. limit is requests per second; burst allows
// short spikes above the sustained rate.
func RateLimitMiddleware(limit rate.Limit, burst int) Middleware {
	limiter := rate.NewLimiter(limit, burst)
	return func(next CoreLLM) CoreLLM {
		return &rateLimitedLLM{next: next, limiter: limiter}
	}
}

func (r *rateLimitedLLM) DoRequest(ctx context.Context, prompt string, opts ports.GenerateOptions) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit: %w", err)
	}
	return r.next.DoRequest(ctx, prompt, opts)
}

func (r *rateLimitedLLM) GetModel() string { return r.next.GetModel() }
