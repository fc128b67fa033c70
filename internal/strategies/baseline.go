package strategies

import (
	"context"

	"github.com/cotbench/cotbench/internal/domain"
	"github.com/cotbench/cotbench/internal/ports"
)

// Strategy name constants, used as grouping keys in results and storage.
const (
	NameBaseline   = "baseline"
	NameZeroShot   = "zero_shot"
	NameFewShot    = "few_shot"
	NameAutoCoT    = "auto_cot"
	NameAutoReason = "auto_reason"
	NameCombined   = "combined"
)

var _ ports.Strategy = (*Baseline)(nil)

// Baseline asks the question verbatim with no chain-of-thought prompting.
// It is the control arm every other strategy is compared against.
type Baseline struct{}

// NewBaseline creates the baseline strategy.
func NewBaseline() *Baseline { return &Baseline{} }

// Name implements ports.Strategy.
func (*Baseline) Name() string { return NameBaseline }

// Description summarizes the strategy for stored metadata.
func (*Baseline) Description() string { return "direct question, no chain-of-thought prompting" }

// GeneratePrompt returns the question unchanged.
func (*Baseline) GeneratePrompt(_ context.Context, question string) (string, error) {
	return question, nil
}

// ProcessResponse extracts a concise answer; the baseline elicits no
// reasoning trace.
func (b *Baseline) ProcessResponse(raw string) domain.ModelResponse {
	return domain.ModelResponse{
		Answer:       extractAnswer(raw),
		FullResponse: raw,
		HasReasoning: false,
		Metadata:     strategyDetails(b.Name(), b.Description()),
	}
}

func strategyDetails(name, description string, extra ...map[string]any) map[string]any {
	details := map[string]any{
		"name":        name,
		"description": description,
	}
	for _, m := range extra {
		for k, v := range m {
			details[k] = v
		}
	}
	return map[string]any{"strategy_details": details}
}
