package evaluation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cotbench/cotbench/internal/domain"
	"github.com/cotbench/cotbench/internal/ports"
)

var _ ports.Evaluator = (*Aggregator)(nil)

// Aggregator owns the evaluation records of a single session and is the
// in-memory source of truth for them. Records are grouped by strategy name;
// a fresh Aggregator per run keeps sessions from bleeding into each other.
//
// All judge and lexical scoring happens before the mutex is taken, so
// concurrent Evaluate calls from orchestrator workers serialize only on the
// cheap slice append.
type Aggregator struct {
	sessionID string
	judge     *Judge
	logger    *zap.Logger

	mu      sync.Mutex
	results map[string][]domain.EvaluationRecord
}

// NewAggregator creates an empty aggregator for one session.
func NewAggregator(sessionID string, judge *Judge, logger *zap.Logger) (*Aggregator, error) {
	if judge == nil {
		return nil, fmt.Errorf("judge cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{
		sessionID: sessionID,
		judge:     judge,
		logger:    logger,
		results:   make(map[string][]domain.EvaluationRecord),
	}, nil
}

// SessionID returns the session this aggregator belongs to.
func (a *Aggregator) SessionID() string { return a.sessionID }

// Evaluate scores a model response and appends the resulting record under
// the strategy's name. Accuracy is always judge-scored; reasoning quality is
// scored only when the response carries a reasoning trace; lexical
// similarity is computed deterministically alongside. Judge degradation
// (transport or parse failure) yields a zero-score metric with a diagnostic
// explanation, never an error: scoring trouble must not abort a run.
func (a *Aggregator) Evaluate(ctx context.Context, q domain.Question, resp domain.ModelResponse, strategy string) (domain.EvaluationRecord, error) {
	if err := ctx.Err(); err != nil {
		return domain.EvaluationRecord{}, err
	}

	metrics := map[string]domain.MetricResult{
		domain.MetricAccuracy:          a.judge.ScoreAccuracy(ctx, q.Text, q.ReferenceAnswer, resp.Answer),
		domain.MetricLexicalSimilarity: LexicalSimilarity(resp.Answer, q.ReferenceAnswer),
	}
	if resp.HasReasoning && resp.Reasoning != "" {
		metrics[domain.MetricReasoningQuality] = a.judge.ScoreReasoning(ctx, q.Text, resp.Reasoning)
	}

	record := domain.EvaluationRecord{
		RecordID:        uuid.NewString(),
		QuestionID:      q.ID,
		Question:        q.Text,
		ReferenceAnswer: q.ReferenceAnswer,
		ModelAnswer:     resp.Answer,
		FullResponse:    resp.FullResponse,
		HasReasoning:    resp.HasReasoning,
		Reasoning:       resp.Reasoning,
		Strategy:        strategy,
		Category:        q.Category,
		Difficulty:      q.Difficulty,
		Metrics:         metrics,
		Timestamp:       domain.Timestamp(time.Now()),
	}

	a.Append(record)

	a.logger.Debug("evaluated response",
		zap.String("question_id", q.ID),
		zap.String("strategy", strategy),
		zap.Float64("accuracy", metrics[domain.MetricAccuracy].Score))
	return record, nil
}

// Append stores an already-scored record under its strategy. Used by
// Evaluate and by batch re-evaluation of logged conversations.
func (a *Aggregator) Append(record domain.EvaluationRecord) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.results[record.Strategy] = append(a.results[record.Strategy], record)
}

// Records returns a snapshot of all records grouped by strategy. The
// returned map and slices are copies; mutating them does not affect the
// aggregator.
func (a *Aggregator) Records() map[string][]domain.EvaluationRecord {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make(map[string][]domain.EvaluationRecord, len(a.results))
	for strategy, records := range a.results {
		cp := make([]domain.EvaluationRecord, len(records))
		copy(cp, records)
		out[strategy] = cp
	}
	return out
}

// Count returns the total number of records across all strategies.
func (a *Aggregator) Count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for _, records := range a.results {
		n += len(records)
	}
	return n
}

// Aggregate computes per-strategy statistics from the current record set.
// It is recomputed from scratch on every call rather than cached: records
// keep arriving while a run is in flight. Records missing a well-formed
// accuracy metric still count toward TotalQuestions but are excluded from
// every average and breakdown.
func (a *Aggregator) Aggregate() map[string]domain.StrategyMetrics {
	snapshot := a.Records()

	out := make(map[string]domain.StrategyMetrics, len(snapshot))
	for strategy, records := range snapshot {
		out[strategy] = aggregateStrategy(records)
	}
	return out
}

func aggregateStrategy(records []domain.EvaluationRecord) domain.StrategyMetrics {
	sums := make(map[string]float64)
	counts := make(map[string]int)

	type slice struct {
		count   int
		correct float64
	}
	byDifficulty := make(map[domain.Difficulty]*slice)
	byCategory := make(map[string]*slice)

	for i := range records {
		r := &records[i]
		for name, m := range r.Metrics {
			sums[name] += m.Score
			counts[name]++
		}

		acc, ok := r.Accuracy()
		if !ok {
			continue
		}
		if r.Difficulty != "" {
			s := byDifficulty[r.Difficulty]
			if s == nil {
				s = &slice{}
				byDifficulty[r.Difficulty] = s
			}
			s.count++
			s.correct += acc.Score
		}
		if r.Category != "" {
			s := byCategory[r.Category]
			if s == nil {
				s = &slice{}
				byCategory[r.Category] = s
			}
			s.count++
			s.correct += acc.Score
		}
	}

	sm := domain.StrategyMetrics{
		TotalQuestions: len(records),
		Metrics:        make(map[string]domain.MetricAverage, len(sums)),
	}
	for name, sum := range sums {
		sm.Metrics[name] = domain.MetricAverage{
			AverageScore: sum / float64(counts[name]),
			Count:        counts[name],
		}
	}
	if len(byDifficulty) > 0 {
		sm.DifficultyBreakdown = make(map[domain.Difficulty]domain.BreakdownEntry, len(byDifficulty))
		for d, s := range byDifficulty {
			sm.DifficultyBreakdown[d] = domain.BreakdownEntry{
				Count:    s.count,
				Accuracy: s.correct / float64(s.count),
			}
		}
	}
	if len(byCategory) > 0 {
		sm.CategoryBreakdown = make(map[string]domain.BreakdownEntry, len(byCategory))
		for c, s := range byCategory {
			sm.CategoryBreakdown[c] = domain.BreakdownEntry{
				Count:    s.count,
				Accuracy: s.correct / float64(s.count),
			}
		}
	}
	return sm
}
