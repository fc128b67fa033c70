package llm

import "errors"

// Sentinel errors shared across providers.
var (
	// ErrEmptyAPIKey is returned when a provider is configured without
	// credentials.
	ErrEmptyAPIKey = errors.New("API key cannot be empty")

	// ErrEmptyResponse is returned when a provider responds with no usable
	// content.
	ErrEmptyResponse = errors.New("provider returned empty response")

	// ErrNoResponseChoice is returned when a chat completion carries no
	// choices.
	ErrNoResponseChoice = errors.New("no response choices returned")
)
