package strategies

import (
	"context"
	"fmt"
	"strings"

	"github.com/cotbench/cotbench/internal/domain"
	"github.com/cotbench/cotbench/internal/ports"
)

// DefaultNumExamples is how many retrieved demonstrations few-shot style
// strategies include by default.
const DefaultNumExamples = 2

var _ ports.Strategy = (*FewShot)(nil)

// FewShot prefixes the question with the k most similar (question, answer)
// pairs retrieved from the vector index, in plain Q/A format without
// reasoning traces.
type FewShot struct {
	examples ports.ExampleSource
	k        int
}

// NewFewShot creates the few-shot strategy. k values below 1 select
// DefaultNumExamples.
func NewFewShot(examples ports.ExampleSource, k int) (*FewShot, error) {
	if examples == nil {
		return nil, fmt.Errorf("example source cannot be nil")
	}
	if k < 1 {
		k = DefaultNumExamples
	}
	return &FewShot{examples: examples, k: k}, nil
}

// Name implements ports.Strategy.
func (*FewShot) Name() string { return NameFewShot }

// Description summarizes the strategy for stored metadata.
func (*FewShot) Description() string {
	return "similar questions retrieved as in-context examples"
}

// GeneratePrompt retrieves similar questions and builds the Q/A prompt.
// Retrieval failures propagate: a few-shot prompt without examples would
// silently degrade into a baseline measurement.
func (f *FewShot) GeneratePrompt(ctx context.Context, question string) (string, error) {
	examples, err := f.examples.Similar(ctx, question, f.k)
	if err != nil {
		return "", fmt.Errorf("retrieving examples: %w", err)
	}

	var b strings.Builder
	for _, ex := range examples {
		fmt.Fprintf(&b, "Q: %s\nA: %s\n\n", ex.Question, ex.Answer)
	}
	fmt.Fprintf(&b, "Q: %s\nA:", question)
	return b.String(), nil
}

// ProcessResponse extracts the answer; the plain Q/A format elicits no
// reasoning trace.
func (f *FewShot) ProcessResponse(raw string) domain.ModelResponse {
	return domain.ModelResponse{
		Answer:       extractAnswer(raw),
		FullResponse: raw,
		HasReasoning: false,
		Metadata: strategyDetails(f.Name(), f.Description(),
			map[string]any{"num_examples": f.k}),
	}
}
