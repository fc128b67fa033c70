package strategies

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/cotbench/cotbench/internal/domain"
	"github.com/cotbench/cotbench/internal/ports"
)

// reasoningChainInstruction asks the reasoning model to decompose without
// answering; the answering model draws the conclusion itself.
const reasoningChainInstruction = "You will be given a question. Decompose it into a sequence of " +
	"logical reasoning steps. Write down only the reasoning process; do not answer the question."

var _ ports.Strategy = (*AutoReason)(nil)

// AutoReason uses a stronger reasoning model to pre-generate a reasoning
// trace for the question, then hands question plus trace to the answering
// model.
type AutoReason struct {
	reasoner ports.LLMClient
	logger   *zap.Logger
}

// NewAutoReason creates the AutoReason strategy backed by a reasoning-model
// client.
func NewAutoReason(reasoner ports.LLMClient, logger *zap.Logger) (*AutoReason, error) {
	if reasoner == nil {
		return nil, fmt.Errorf("reasoning client cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AutoReason{reasoner: reasoner, logger: logger}, nil
}

// Name implements ports.Strategy.
func (*AutoReason) Name() string { return NameAutoReason }

// Description summarizes the strategy for stored metadata.
func (*AutoReason) Description() string {
	return "reasoning trace pre-generated by a stronger model"
}

// GeneratePrompt asks the reasoning model for a trace and embeds it under
// the question. A failed reasoning call degrades to a generic skeleton
// trace rather than failing the task.
func (a *AutoReason) GeneratePrompt(ctx context.Context, question string) (string, error) {
	chain := a.generateChain(ctx, question)
	return fmt.Sprintf("%s\n\nReasoning trace:\n%s", question, chain), nil
}

func (a *AutoReason) generateChain(ctx context.Context, question string) string {
	prompt := fmt.Sprintf("%s\n\nQuestion: %s", reasoningChainInstruction, question)
	chain, err := a.reasoner.Complete(ctx, prompt, ports.GenerateOptions{Temperature: 0.3})
	if err != nil {
		a.logger.Warn("reasoning chain generation failed, using skeleton trace",
			zap.Error(err))
		return "1. Identify what the question asks.\n2. Extract the relevant facts.\n3. Derive the answer from them."
	}
	return strings.TrimSpace(chain)
}

// ProcessResponse extracts the final answer and whatever reasoning the
// answering model produced on top of the provided trace.
func (a *AutoReason) ProcessResponse(raw string) domain.ModelResponse {
	reasoning, answer := splitReasoningAndAnswer(raw)
	if answer == "" {
		answer = extractAnswer(raw)
	}
	return domain.ModelResponse{
		Answer:       answer,
		FullResponse: raw,
		HasReasoning: reasoning != "",
		Reasoning:    reasoning,
		Metadata: strategyDetails(a.Name(), a.Description(),
			map[string]any{"reasoning_model": a.reasoner.Model()}),
	}
}
