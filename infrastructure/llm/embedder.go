package llm

import (
	"context"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/cotbench/cotbench/internal/ports"
)

// Embedder defaults. text-embedding-3-small supports requesting reduced
// output dimensions, which keeps the on-disk index small without a
// measurable loss in neighbor quality at this corpus size.
const (
	DefaultEmbeddingModel     = "text-embedding-3-small"
	DefaultEmbeddingDimension = 1024
)

// EmbedderConfig holds configuration for the OpenAI embedder.
type EmbedderConfig struct {
	// APIKey authenticates against the embeddings endpoint.
	APIKey string

	// Model selects the embedding model; empty selects the default.
	Model string

	// Dimension requests a specific output dimensionality. Zero selects
	// the default.
	Dimension int

	// BaseURL overrides the default endpoint when set.
	BaseURL string

	// Timeout bounds individual requests; zero means no timeout.
	Timeout time.Duration
}

var _ ports.Embedder = (*OpenAIEmbedder)(nil)

// OpenAIEmbedder implements ports.Embedder against OpenAI's embeddings API.
type OpenAIEmbedder struct {
	client    *openai.Client
	model     string
	dimension int
}

// NewOpenAIEmbedder creates an embedder from config.
func NewOpenAIEmbedder(config EmbedderConfig) (*OpenAIEmbedder, error) {
	if config.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}
	model := config.Model
	if model == "" {
		model = DefaultEmbeddingModel
	}
	dimension := config.Dimension
	if dimension <= 0 {
		dimension = DefaultEmbeddingDimension
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}
	if config.Timeout > 0 {
		clientConfig.HTTPClient = &http.Client{Timeout: config.Timeout}
	}

	return &OpenAIEmbedder{
		client:    openai.NewClientWithConfig(clientConfig),
		model:     model,
		dimension: dimension,
	}, nil
}

// Embed implements ports.Embedder.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ports.NewEmbeddingError(text, fmt.Errorf("empty text"))
	}

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      []string{text},
		Model:      openai.EmbeddingModel(e.model),
		Dimensions: e.dimension,
	})
	if err != nil {
		return nil, ports.NewEmbeddingError(text, err)
	}
	if len(resp.Data) == 0 {
		return nil, ports.NewEmbeddingError(text, ErrEmptyResponse)
	}

	vector := resp.Data[0].Embedding
	if len(vector) != e.dimension {
		return nil, ports.NewEmbeddingError(text,
			fmt.Errorf("expected %d dimensions, got %d", e.dimension, len(vector)))
	}
	return vector, nil
}

// Dimension implements ports.Embedder.
func (e *OpenAIEmbedder) Dimension() int { return e.dimension }
