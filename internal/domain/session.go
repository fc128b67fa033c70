package domain

import (
	"fmt"
	"time"
)

// Session describes one orchestrator run. A session owns the evaluation
// records produced during the run via the session ID foreign key in the
// backup store; EndTime and TotalQuestions are finalized when the run
// completes.
type Session struct {
	// SessionID is time-derived and unique per run.
	SessionID string `json:"session_id"`

	// ResultPrefix optionally namespaces result artifacts for this run.
	ResultPrefix string `json:"result_prefix,omitempty"`

	// Dataset names the question set evaluated in this run.
	Dataset string `json:"dataset,omitempty"`

	// Model names the answering model used in this run.
	Model string `json:"model,omitempty"`

	StartTime      float64 `json:"start_time"`
	EndTime        float64 `json:"end_time,omitempty"`
	TotalQuestions int     `json:"total_questions"`
}

// NewSessionID derives a session identifier from the current time.
// Nanosecond granularity keeps IDs unique across rapid successive runs on
// the same machine.
func NewSessionID(now time.Time) string {
	return fmt.Sprintf("%d", now.UnixNano())
}
