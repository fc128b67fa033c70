package strategies

import (
	"context"

	"github.com/cotbench/cotbench/internal/domain"
	"github.com/cotbench/cotbench/internal/ports"
)

// DefaultCoTSuffix is the canonical zero-shot chain-of-thought trigger.
const DefaultCoTSuffix = "Let's think step by step."

var _ ports.Strategy = (*ZeroShot)(nil)

// ZeroShot appends a chain-of-thought trigger phrase to the question,
// eliciting step-by-step reasoning without any examples.
type ZeroShot struct {
	suffix string
}

// NewZeroShot creates the zero-shot strategy. An empty suffix selects
// DefaultCoTSuffix.
func NewZeroShot(suffix string) *ZeroShot {
	if suffix == "" {
		suffix = DefaultCoTSuffix
	}
	return &ZeroShot{suffix: suffix}
}

// Name implements ports.Strategy.
func (*ZeroShot) Name() string { return NameZeroShot }

// Description summarizes the strategy for stored metadata.
func (*ZeroShot) Description() string { return "chain-of-thought trigger appended to the question" }

// GeneratePrompt appends the trigger phrase on its own line.
func (z *ZeroShot) GeneratePrompt(_ context.Context, question string) (string, error) {
	return question + "\n" + z.suffix, nil
}

// ProcessResponse splits the completion into reasoning and final answer.
func (z *ZeroShot) ProcessResponse(raw string) domain.ModelResponse {
	reasoning, answer := splitReasoningAndAnswer(raw)
	if answer == "" {
		answer = extractAnswer(raw)
	}
	return domain.ModelResponse{
		Answer:       answer,
		FullResponse: raw,
		HasReasoning: reasoning != "",
		Reasoning:    reasoning,
		Metadata: strategyDetails(z.Name(), z.Description(),
			map[string]any{"prompt_suffix": z.suffix}),
	}
}
