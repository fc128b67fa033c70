package ports

import (
	"context"

	"github.com/cotbench/cotbench/internal/domain"
)

// Evaluator scores a structured model response against a question's
// reference answer and records the outcome. The orchestrator calls it once
// per successful task unless the run is log-only.
type Evaluator interface {
	Evaluate(ctx context.Context, q domain.Question, resp domain.ModelResponse, strategy string) (domain.EvaluationRecord, error)
}

// ResultAggregator is an Evaluator that also owns the scored records of one
// session and can derive aggregate statistics from them on demand.
type ResultAggregator interface {
	Evaluator

	// SessionID identifies the session this aggregator belongs to. The
	// orchestrator adopts it so records, conversation logs, and the session
	// descriptor all carry the same identifier.
	SessionID() string

	// Records returns a snapshot of all records grouped by strategy.
	Records() map[string][]domain.EvaluationRecord

	// Aggregate computes per-strategy statistics from the current records.
	Aggregate() map[string]domain.StrategyMetrics
}

// ConversationSink persists raw (question, response) exchanges for later
// batch evaluation. Logging is best-effort from the orchestrator's point of
// view: a sink failure fails the task, not the run.
type ConversationSink interface {
	// LogConversation writes one exchange and returns a handle (typically a
	// file path) that can later be marked as evaluated.
	LogConversation(q domain.Question, resp domain.ModelResponse, strategy, sessionID string) (string, error)
}

// ResultSink receives a completed run's results. The in-memory aggregator is
// the source of truth; flat-file storage and the relational backup are
// replicas fed through this interface and may diverge transiently.
// Cross-sink consistency is eventual, not transactional.
type ResultSink interface {
	Flush(ctx context.Context, session domain.Session, results map[string][]domain.EvaluationRecord, overall map[string]domain.StrategyMetrics) error
}
