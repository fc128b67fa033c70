// Package dataset loads question sets from JSON files and seeds the vector
// index from them.
package dataset

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/cotbench/cotbench/internal/domain"
	"github.com/cotbench/cotbench/internal/vecindex"
)

// LoadQuestions reads a JSON array of questions. Entries missing the
// question text or reference answer are skipped with a warning; entries
// missing an ID get a positional one so downstream grouping keys stay
// stable.
func LoadQuestions(path string, logger *zap.Logger) ([]domain.Question, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading question file: %w", err)
	}
	var raw []domain.Question
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decoding question file %s: %w", path, err)
	}

	questions := make([]domain.Question, 0, len(raw))
	for i, q := range raw {
		if q.Text == "" || q.ReferenceAnswer == "" {
			logger.Warn("skipping incomplete question",
				zap.Int("position", i),
				zap.String("id", q.ID))
			continue
		}
		if q.ID == "" {
			q.ID = fmt.Sprintf("q%d", i+1)
		}
		questions = append(questions, q)
	}

	logger.Info("questions loaded",
		zap.String("path", path),
		zap.Int("count", len(questions)))
	return questions, nil
}

// SeedIndex populates the vector index from a question set. The index is
// rebuilt when forceRebuild is set or it is empty; otherwise the existing
// contents are kept as-is. Returns the number of questions indexed in this
// call (zero when the existing index was reused).
func SeedIndex(ctx context.Context, idx *vecindex.Index, questions []domain.Question, forceRebuild bool, logger *zap.Logger) (int, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if !forceRebuild && idx.Len() > 0 {
		logger.Info("reusing existing vector index", zap.Int("records", idx.Len()))
		return 0, nil
	}

	if err := idx.Clear(); err != nil {
		return 0, fmt.Errorf("clearing index before rebuild: %w", err)
	}

	for _, q := range questions {
		_, err := idx.Add(ctx, q.Text, vecindex.Record{
			Answer:     q.ReferenceAnswer,
			Category:   q.Category,
			Difficulty: q.Difficulty,
		})
		if err != nil {
			return 0, fmt.Errorf("indexing question %s: %w", q.ID, err)
		}
	}

	logger.Info("vector index seeded", zap.Int("records", idx.Len()))
	return len(questions), nil
}
