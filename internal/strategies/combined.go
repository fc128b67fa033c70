package strategies

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/cotbench/cotbench/internal/domain"
	"github.com/cotbench/cotbench/internal/ports"
)

var _ ports.Strategy = (*Combined)(nil)

// Combined layers the other techniques: retrieved similar questions, each
// with a reasoning chain pre-generated by the reasoning model, followed by
// the target question with the zero-shot trigger.
type Combined struct {
	examples ports.ExampleSource
	reasoner ports.LLMClient
	k        int
	logger   *zap.Logger
}

// NewCombined creates the combined strategy.
func NewCombined(examples ports.ExampleSource, reasoner ports.LLMClient, k int, logger *zap.Logger) (*Combined, error) {
	if examples == nil {
		return nil, fmt.Errorf("example source cannot be nil")
	}
	if reasoner == nil {
		return nil, fmt.Errorf("reasoning client cannot be nil")
	}
	if k < 1 {
		k = DefaultNumExamples
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Combined{examples: examples, reasoner: reasoner, k: k, logger: logger}, nil
}

// Name implements ports.Strategy.
func (*Combined) Name() string { return NameCombined }

// Description summarizes the strategy for stored metadata.
func (*Combined) Description() string {
	return "retrieved examples with reasoning chains plus zero-shot trigger"
}

// GeneratePrompt retrieves examples, equips each with a reasoning chain,
// and closes with the target question plus the chain-of-thought trigger.
// Retrieval failures propagate; per-example chain generation degrades to a
// direct statement of the answer.
func (c *Combined) GeneratePrompt(ctx context.Context, question string) (string, error) {
	examples, err := c.examples.Similar(ctx, question, c.k)
	if err != nil {
		return "", fmt.Errorf("retrieving examples: %w", err)
	}

	var b strings.Builder
	for _, ex := range examples {
		chain := c.exampleChain(ctx, ex)
		fmt.Fprintf(&b, "Q: %s\nA: %s\nThe answer is %s.\n\n", ex.Question, chain, ex.Answer)
	}
	fmt.Fprintf(&b, "Q: %s\nA: %s", question, DefaultCoTSuffix)
	return b.String(), nil
}

func (c *Combined) exampleChain(ctx context.Context, ex ports.Example) string {
	prompt := fmt.Sprintf("%s\n\nQuestion: %s", reasoningChainInstruction, ex.Question)
	chain, err := c.reasoner.Complete(ctx, prompt, ports.GenerateOptions{Temperature: 0.3})
	if err != nil {
		c.logger.Warn("example chain generation failed, stating answer directly",
			zap.String("example_question", ex.Question),
			zap.Error(err))
		return fmt.Sprintf("Working through the question step by step leads to %s.", ex.Answer)
	}
	return strings.TrimSpace(chain)
}

// ProcessResponse splits the completion into reasoning and final answer.
func (c *Combined) ProcessResponse(raw string) domain.ModelResponse {
	reasoning, answer := splitReasoningAndAnswer(raw)
	if answer == "" {
		answer = extractAnswer(raw)
	}
	return domain.ModelResponse{
		Answer:       answer,
		FullResponse: raw,
		HasReasoning: reasoning != "",
		Reasoning:    reasoning,
		Metadata: strategyDetails(c.Name(), c.Description(),
			map[string]any{"num_examples": c.k, "reasoning_model": c.reasoner.Model()}),
	}
}
