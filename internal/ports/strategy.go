package ports

import (
	"context"

	"github.com/cotbench/cotbench/internal/domain"
)

// Strategy is a prompting strategy: it turns a question into a prompt and
// turns the raw completion back into a structured response. The core never
// needs to know which variant it holds.
type Strategy interface {
	// Name returns the strategy's stable identifier (e.g. "few_shot"),
	// used as the grouping key in results and storage.
	Name() string

	// GeneratePrompt builds the prompt for a question. Strategies that
	// retrieve examples or pre-generate reasoning chains may perform I/O
	// here and should respect context cancellation.
	GeneratePrompt(ctx context.Context, question string) (string, error)

	// ProcessResponse extracts a structured response from the raw
	// completion. It never fails: extraction falls back to the raw text
	// when no structured answer can be located.
	ProcessResponse(raw string) domain.ModelResponse
}

// Example is one retrieved (question, answer) pair used as an in-context
// demonstration by few-shot style strategies.
type Example struct {
	Question string
	Answer   string
}

// ExampleSource answers "k most similar questions" queries for strategies
// that build few-shot prompts. Implementations exclude near-exact matches of
// the query so a strategy never retrieves the question it is currently
// answering.
type ExampleSource interface {
	Similar(ctx context.Context, query string, k int) ([]Example, error)
}
