package main

import (
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/cotbench/cotbench/infrastructure/llm"
	"github.com/cotbench/cotbench/internal/application"
	"github.com/cotbench/cotbench/internal/ports"
	"github.com/cotbench/cotbench/internal/strategies"
	"github.com/cotbench/cotbench/internal/vecindex"
)

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.DisableStacktrace = true
	return cfg.Build()
}

// buildClient assembles a provider client with the retry and rate-limit
// middleware from config. Retry wraps the limiter so every attempt,
// including retries, waits for a token.
func buildClient(cfg application.ModelConfig) (ports.LLMClient, error) {
	var mw []llm.Middleware
	mw = append(mw, llm.RetryMiddleware(cfg.MaxRetries, cfg.RetryDelay()))
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		mw = append(mw, llm.RateLimitMiddleware(rate.Limit(cfg.RequestsPerSecond), burst))
	}

	client, err := llm.NewClient(cfg.Provider, llm.ClientConfig{
		APIKey:     cfg.APIKey,
		Model:      cfg.Model,
		BaseURL:    cfg.BaseURL,
		Timeout:    cfg.Timeout(),
		Middleware: mw,
	})
	if err != nil {
		return nil, fmt.Errorf("building %s client: %w", cfg.Provider, err)
	}
	return client, nil
}

// modelClients holds the three model roles a run needs. Judge and reasoning
// share the answer client when their configuration is identical.
type modelClients struct {
	answer    ports.LLMClient
	judge     ports.LLMClient
	reasoning ports.LLMClient
}

func buildClients(cfg *application.Config) (modelClients, error) {
	answer, err := buildClient(cfg.Answer)
	if err != nil {
		return modelClients{}, err
	}
	clients := modelClients{answer: answer, judge: answer, reasoning: answer}

	if cfg.Judge != cfg.Answer {
		if clients.judge, err = buildClient(cfg.Judge); err != nil {
			return modelClients{}, err
		}
	}
	if cfg.Reasoning != cfg.Answer {
		if clients.reasoning, err = buildClient(cfg.Reasoning); err != nil {
			return modelClients{}, err
		}
	}
	return clients, nil
}

func buildEmbedder(cfg *application.Config) (ports.Embedder, error) {
	return llm.NewOpenAIEmbedder(llm.EmbedderConfig{
		APIKey:    cfg.Embedding.APIKey,
		Model:     cfg.Embedding.Model,
		Dimension: cfg.Embedding.Dimension,
	})
}

// buildStrategies constructs the full strategy set in their canonical order.
func buildStrategies(clients modelClients, examples ports.ExampleSource, k int, logger *zap.Logger) ([]ports.Strategy, error) {
	fewShot, err := strategies.NewFewShot(examples, k)
	if err != nil {
		return nil, err
	}
	autoCoT, err := strategies.NewAutoCoT(examples, clients.answer, k, logger)
	if err != nil {
		return nil, err
	}
	autoReason, err := strategies.NewAutoReason(clients.reasoning, logger)
	if err != nil {
		return nil, err
	}
	combined, err := strategies.NewCombined(examples, clients.reasoning, k, logger)
	if err != nil {
		return nil, err
	}
	return []ports.Strategy{
		strategies.NewBaseline(),
		strategies.NewZeroShot(strategies.DefaultCoTSuffix),
		fewShot,
		autoCoT,
		autoReason,
		combined,
	}, nil
}

func openIndex(cfg *application.Config, logger *zap.Logger) (*vecindex.Index, error) {
	embedder, err := buildEmbedder(cfg)
	if err != nil {
		return nil, fmt.Errorf("building embedder: %w", err)
	}
	idx, err := vecindex.New(cfg.Storage.IndexDir, embedder, logger)
	if err != nil {
		return nil, fmt.Errorf("opening vector index: %w", err)
	}
	return idx, nil
}
