package ports

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across the core.
var (
	// ErrEmptyQuery is returned by similarity lookups given an empty query.
	ErrEmptyQuery = errors.New("query text cannot be empty")

	// ErrDimensionMismatch is returned when an embedding's length does not
	// match the index's fixed dimensionality.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// EmbeddingError wraps a failure from the embedding collaborator. The
// vector index propagates these rather than swallowing them: callers decide
// whether a failed add or search aborts their operation.
type EmbeddingError struct {
	// Text is a short prefix of the input that failed to embed.
	Text string
	// Err is the underlying provider error.
	Err error
}

// Error implements the error interface.
func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embedding failed for %q: %v", e.Text, e.Err)
}

// Unwrap exposes the underlying provider error for errors.Is/As.
func (e *EmbeddingError) Unwrap() error { return e.Err }

// NewEmbeddingError builds an EmbeddingError, truncating the offending text
// to keep error strings bounded.
func NewEmbeddingError(text string, err error) *EmbeddingError {
	const maxLen = 64
	if len(text) > maxLen {
		text = text[:maxLen] + "..."
	}
	return &EmbeddingError{Text: text, Err: err}
}
