package strategies

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/cotbench/cotbench/internal/domain"
	"github.com/cotbench/cotbench/internal/ports"
)

var _ ports.Strategy = (*AutoCoT)(nil)

// AutoCoT retrieves similar questions and generates a chain-of-thought
// demonstration for each one with the model itself, then presents those
// reasoned examples before the target question.
type AutoCoT struct {
	examples ports.ExampleSource
	client   ports.LLMClient
	k        int
	prefix   string
	logger   *zap.Logger
}

// NewAutoCoT creates the Auto-CoT strategy. The client generates the
// demonstration reasoning chains.
func NewAutoCoT(examples ports.ExampleSource, client ports.LLMClient, k int, logger *zap.Logger) (*AutoCoT, error) {
	if examples == nil {
		return nil, fmt.Errorf("example source cannot be nil")
	}
	if client == nil {
		return nil, fmt.Errorf("llm client cannot be nil")
	}
	if k < 1 {
		k = DefaultNumExamples
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AutoCoT{
		examples: examples,
		client:   client,
		k:        k,
		prefix:   DefaultCoTSuffix,
		logger:   logger,
	}, nil
}

// Name implements ports.Strategy.
func (*AutoCoT) Name() string { return NameAutoCoT }

// Description summarizes the strategy for stored metadata.
func (*AutoCoT) Description() string {
	return "retrieved examples with generated chain-of-thought demonstrations"
}

// GeneratePrompt builds reasoned demonstrations for the retrieved examples
// and appends the target question. Demonstration generation is best-effort:
// when the model call fails, a minimal canned chain keeps the example
// usable instead of dropping it.
func (a *AutoCoT) GeneratePrompt(ctx context.Context, question string) (string, error) {
	examples, err := a.examples.Similar(ctx, question, a.k)
	if err != nil {
		return "", fmt.Errorf("retrieving examples: %w", err)
	}

	var b strings.Builder
	for _, ex := range examples {
		cot := a.generateDemonstration(ctx, ex)
		fmt.Fprintf(&b, "Q: %s\nA: %s\n\n", ex.Question, cot)
	}
	fmt.Fprintf(&b, "Q: %s\nA:", question)
	return b.String(), nil
}

func (a *AutoCoT) generateDemonstration(ctx context.Context, ex ports.Example) string {
	prompt := fmt.Sprintf(
		"Write a detailed chain-of-thought for the following question that arrives at the given answer.\n\n"+
			"Question: %s\nAnswer: %s\n\n"+
			"Begin with %q, explain each reasoning step, and end by stating the answer.",
		ex.Question, ex.Answer, a.prefix)

	cot, err := a.client.Complete(ctx, prompt, ports.GenerateOptions{Temperature: 0.3})
	if err != nil {
		a.logger.Warn("demonstration generation failed, using canned chain",
			zap.String("example_question", ex.Question),
			zap.Error(err))
		return fmt.Sprintf("%s The question asks: %s. Working through it directly, the answer is %s.",
			a.prefix, ex.Question, ex.Answer)
	}

	cot = strings.TrimSpace(cot)
	if !strings.HasPrefix(cot, a.prefix) {
		cot = a.prefix + " " + cot
	}
	return cot
}

// ProcessResponse keeps the whole completion as both answer and reasoning:
// Auto-CoT responses interleave the two and splitting them loses
// information the judge needs.
func (a *AutoCoT) ProcessResponse(raw string) domain.ModelResponse {
	trimmed := strings.TrimSpace(raw)
	return domain.ModelResponse{
		Answer:       trimmed,
		FullResponse: raw,
		HasReasoning: true,
		Reasoning:    trimmed,
		Metadata: strategyDetails(a.Name(), a.Description(),
			map[string]any{"num_examples": a.k, "cot_prefix": a.prefix}),
	}
}
