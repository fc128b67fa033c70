// Package domain defines the core value types shared across the evaluation
// harness: questions, model responses, evaluation records, sessions, and the
// aggregate statistics derived from them.
// Types in this package are plain data with no behavior beyond validation
// helpers, keeping them safe to copy across goroutines.
package domain

import "time"

// Difficulty classifies how hard a question is expected to be.
// It drives the per-difficulty accuracy breakdown in aggregate reports.
type Difficulty string

// Supported difficulty levels. Unknown values are preserved as-is when
// loading datasets but are excluded from the difficulty breakdown.
const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Difficulties lists the known levels in report order.
var Difficulties = []Difficulty{DifficultyEasy, DifficultyMedium, DifficultyHard}

// Question is a single dataset entry: a prompt with its reference answer and
// classification metadata. Questions are immutable once loaded; the harness
// only ever reads them.
type Question struct {
	// ID uniquely identifies the question within its dataset.
	ID string `json:"id"`

	// Text is the question as presented to the model.
	Text string `json:"question"`

	// ReferenceAnswer is the ground-truth answer used by the judge.
	ReferenceAnswer string `json:"answer"`

	// Category groups questions by topic (e.g. "arithmetic", "geography").
	Category string `json:"category,omitempty"`

	// Difficulty is the expected hardness of the question.
	Difficulty Difficulty `json:"difficulty,omitempty"`
}

// Timestamp converts a time to the fractional Unix seconds representation
// used throughout persisted results.
func Timestamp(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
