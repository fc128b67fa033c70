package convlog

import (
	"context"

	"go.uber.org/zap"

	"github.com/cotbench/cotbench/internal/domain"
	"github.com/cotbench/cotbench/internal/ports"
)

// BatchOptions filters which logged conversations a batch run evaluates.
// Zero values mean "no filter".
type BatchOptions struct {
	Strategy  string
	SessionID string
}

// BatchSummary reports a batch evaluation's outcome.
type BatchSummary struct {
	Evaluated int
	Failed    int
}

// BatchEvaluator scores previously logged conversations that were skipped
// at generation time (log-only runs or judge outages). Each evaluated entry
// is stamped in place so repeated batch runs never double-score.
type BatchEvaluator struct {
	logs      *Logger
	evaluator ports.Evaluator
	logger    *zap.Logger
}

// NewBatchEvaluator wires a batch evaluator over a log tree.
func NewBatchEvaluator(logs *Logger, evaluator ports.Evaluator, logger *zap.Logger) *BatchEvaluator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BatchEvaluator{logs: logs, evaluator: evaluator, logger: logger}
}

// Run evaluates every unevaluated entry matching the options. Entry-level
// failures are logged and counted, never fatal; the returned error covers
// log-tree access problems and context cancellation only.
func (b *BatchEvaluator) Run(ctx context.Context, opts BatchOptions) (BatchSummary, error) {
	var entries []Entry
	var err error
	if opts.SessionID != "" {
		entries, err = b.logs.BySession(opts.SessionID)
		if err == nil {
			filtered := entries[:0]
			for _, e := range entries {
				if !e.Evaluated && (opts.Strategy == "" || e.Strategy == opts.Strategy) {
					filtered = append(filtered, e)
				}
			}
			entries = filtered
		}
	} else {
		entries, err = b.logs.Unevaluated(opts.Strategy)
	}
	if err != nil {
		return BatchSummary{}, err
	}

	b.logger.Info("starting batch evaluation", zap.Int("entries", len(entries)))

	var summary BatchSummary
	for i := range entries {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		if err := b.evaluateEntry(ctx, &entries[i]); err != nil {
			summary.Failed++
			b.logger.Error("failed to evaluate logged conversation",
				zap.String("path", entries[i].Path),
				zap.Error(err))
			continue
		}
		summary.Evaluated++
	}

	b.logger.Info("batch evaluation complete",
		zap.Int("evaluated", summary.Evaluated),
		zap.Int("failed", summary.Failed))
	return summary, nil
}

func (b *BatchEvaluator) evaluateEntry(ctx context.Context, e *Entry) error {
	q := domain.Question{
		ID:              e.QuestionID,
		Text:            e.Question,
		ReferenceAnswer: e.ReferenceAnswer,
		Category:        e.Category,
		Difficulty:      e.Difficulty,
	}
	resp := domain.ModelResponse{
		Answer:       e.ModelAnswer,
		FullResponse: e.FullResponse,
		HasReasoning: e.HasReasoning,
		Reasoning:    e.Reasoning,
		Metadata:     e.Metadata,
	}

	record, err := b.evaluator.Evaluate(ctx, q, resp, e.Strategy)
	if err != nil {
		return err
	}
	return b.logs.MarkEvaluated(e.Path, record.Metrics)
}
