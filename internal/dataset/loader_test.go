package dataset

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cotbench/cotbench/internal/domain"
	"github.com/cotbench/cotbench/internal/testutils"
	"github.com/cotbench/cotbench/internal/vecindex"
)

func writeQuestionFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "questions.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadQuestions(t *testing.T) {
	path := writeQuestionFile(t, `[
		{"id": "q1", "question": "What is 2+2?", "answer": "4", "category": "arithmetic", "difficulty": "easy"},
		{"question": "Capital of France?", "answer": "Paris"},
		{"id": "broken", "question": "", "answer": "orphan"}
	]`)

	questions, err := LoadQuestions(path, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.Len(t, questions, 2, "incomplete entry skipped")

	assert.Equal(t, "q1", questions[0].ID)
	assert.Equal(t, domain.DifficultyEasy, questions[0].Difficulty)
	assert.Equal(t, "q2", questions[1].ID, "missing id gets a positional one")
}

func TestLoadQuestionsMissingFile(t *testing.T) {
	_, err := LoadQuestions(filepath.Join(t.TempDir(), "absent.json"), zaptest.NewLogger(t))
	assert.Error(t, err)
}

func TestLoadQuestionsInvalidJSON(t *testing.T) {
	path := writeQuestionFile(t, `{"not": "an array"}`)
	_, err := LoadQuestions(path, zaptest.NewLogger(t))
	assert.Error(t, err)
}

func TestSeedIndexBuildsWhenEmpty(t *testing.T) {
	embedder := testutils.NewStubEmbedder(8)
	idx, err := vecindex.New(t.TempDir(), embedder, zaptest.NewLogger(t))
	require.NoError(t, err)

	questions := []domain.Question{
		{ID: "q1", Text: "2+2=?", ReferenceAnswer: "4", Category: "arithmetic"},
		{ID: "q2", Text: "3+3=?", ReferenceAnswer: "6", Category: "arithmetic"},
	}
	n, err := SeedIndex(context.Background(), idx, questions, false, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, idx.Len())
}

func TestSeedIndexReusesExisting(t *testing.T) {
	embedder := testutils.NewStubEmbedder(8)
	idx, err := vecindex.New(t.TempDir(), embedder, zaptest.NewLogger(t))
	require.NoError(t, err)

	questions := []domain.Question{{ID: "q1", Text: "2+2=?", ReferenceAnswer: "4"}}
	_, err = SeedIndex(context.Background(), idx, questions, false, zaptest.NewLogger(t))
	require.NoError(t, err)

	// Without force, a populated index is left alone.
	n, err := SeedIndex(context.Background(), idx,
		append(questions, domain.Question{ID: "q2", Text: "3+3=?", ReferenceAnswer: "6"}),
		false, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 1, idx.Len())
}

func TestSeedIndexForceRebuild(t *testing.T) {
	embedder := testutils.NewStubEmbedder(8)
	idx, err := vecindex.New(t.TempDir(), embedder, zaptest.NewLogger(t))
	require.NoError(t, err)

	_, err = SeedIndex(context.Background(), idx,
		[]domain.Question{{ID: "q1", Text: "2+2=?", ReferenceAnswer: "4"}},
		false, zaptest.NewLogger(t))
	require.NoError(t, err)

	n, err := SeedIndex(context.Background(), idx,
		[]domain.Question{
			{ID: "q1", Text: "2+2=?", ReferenceAnswer: "4"},
			{ID: "q2", Text: "3+3=?", ReferenceAnswer: "6"},
		}, true, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, idx.Len())
}
