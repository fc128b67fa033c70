package ports

import "time"

// RunMetrics receives orchestrator task outcomes for observability backends.
// Implementations must be safe for concurrent use; a nil RunMetrics is
// treated as a no-op by callers.
type RunMetrics interface {
	// TaskSucceeded records one completed (question, strategy) task.
	TaskSucceeded(strategy string)

	// TaskFailed records one failed task.
	TaskFailed(strategy string)

	// ObserveTaskDuration records how long one task took end to end.
	ObserveTaskDuration(strategy string, d time.Duration)
}
