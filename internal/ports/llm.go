// Package ports defines the interfaces between the evaluation core and its
// external collaborators: model providers, embedders, prompting strategies,
// and result sinks. The core depends only on these contracts, which keeps
// every collaborator swappable with a test double.
package ports

import "context"

// GenerateOptions carries the per-call parameters for a completion request.
// A zero Model means "use the client's configured default".
type GenerateOptions struct {
	// Model selects a specific model identifier for this call.
	Model string

	// Temperature controls sampling randomness. The harness uses low
	// temperatures for judging and moderate ones for answering.
	Temperature float64

	// MaxTokens bounds the completion length. Zero means provider default.
	MaxTokens int
}

// LLMClient is the model-calling collaborator. Implementations handle
// authentication, request formatting, retries, and rate limiting; the core
// treats the call as opaque text-in, text-out.
type LLMClient interface {
	// Complete sends a completion request and returns the generated text.
	// Implementations retry transient failures internally; an error return
	// means retries were exhausted or the failure was permanent.
	Complete(ctx context.Context, prompt string, opts GenerateOptions) (string, error)

	// Model returns the default model identifier for logging and reports.
	Model() string
}

// Embedder converts text into a fixed-length float vector. The vector
// dimensionality is fixed per embedder; a vector index constructed against
// one dimensionality is incompatible with any other.
type Embedder interface {
	// Embed computes the embedding for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimension returns the fixed length of vectors this embedder produces.
	Dimension() int
}
