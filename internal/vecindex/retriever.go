package vecindex

import (
	"context"

	"go.uber.org/zap"

	"github.com/cotbench/cotbench/internal/ports"
)

// NearExactThreshold is the squared L2 distance below which the closest
// search result is treated as the query itself and excluded. Normalized
// embeddings of the same text land at distance ~0; genuinely distinct
// questions sit well above this.
const NearExactThreshold = 0.05

var _ ports.ExampleSource = (*Retriever)(nil)

// Retriever answers "k most similar questions" queries on top of an Index,
// optionally excluding near-exact matches so a few-shot strategy never
// retrieves the question it is currently answering.
type Retriever struct {
	index  *Index
	logger *zap.Logger
}

// NewRetriever builds a Retriever over the given index.
func NewRetriever(index *Index, logger *zap.Logger) *Retriever {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retriever{index: index, logger: logger}
}

// Similar implements ports.ExampleSource with near-exact exclusion enabled.
func (r *Retriever) Similar(ctx context.Context, query string, k int) ([]ports.Example, error) {
	return r.GetSimilar(ctx, query, k, true)
}

// GetSimilar returns up to k (question, answer) pairs most similar to the
// query, closest first.
//
// When excludeNearExact is set, k+1 results are fetched and the first is
// dropped if and only if its distance falls below NearExactThreshold; when
// the closest result is a genuine neighbor the extra fetch is simply
// truncated away. Records missing either a question or an answer are
// silently skipped — defensive filtering, not an error.
func (r *Retriever) GetSimilar(ctx context.Context, query string, k int, excludeNearExact bool) ([]ports.Example, error) {
	if query == "" {
		return nil, ports.ErrEmptyQuery
	}
	if k <= 0 {
		return nil, nil
	}

	fetch := k
	if excludeNearExact {
		fetch = k + 1
	}

	results, err := r.index.Search(ctx, query, fetch)
	if err != nil {
		return nil, err
	}

	if excludeNearExact && len(results) > 0 && results[0].Distance < NearExactThreshold {
		r.logger.Debug("excluding near-exact match from retrieval",
			zap.String("question", results[0].Record.Question),
			zap.Float64("distance", results[0].Distance))
		results = results[1:]
	}
	if len(results) > k {
		results = results[:k]
	}

	examples := make([]ports.Example, 0, len(results))
	for _, res := range results {
		if res.Record.Question == "" || res.Record.Answer == "" {
			continue
		}
		examples = append(examples, ports.Example{
			Question: res.Record.Question,
			Answer:   res.Record.Answer,
		})
	}
	return examples, nil
}
