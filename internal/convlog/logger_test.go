package convlog

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cotbench/cotbench/internal/domain"
	"github.com/cotbench/cotbench/internal/evaluation"
	"github.com/cotbench/cotbench/internal/testutils"
)

func newTestLogger(t *testing.T) *Logger {
	t.Helper()
	l, err := NewLogger(t.TempDir(), "", zaptest.NewLogger(t))
	require.NoError(t, err)
	return l
}

func sampleQuestion(id string) domain.Question {
	return domain.Question{
		ID:              id,
		Text:            "What is 2+2?",
		ReferenceAnswer: "4",
		Category:        "arithmetic",
		Difficulty:      domain.DifficultyEasy,
	}
}

func sampleResponse() domain.ModelResponse {
	return domain.ModelResponse{
		Answer:       "4",
		FullResponse: "The answer is 4.",
		Metadata:     map[string]any{"examples_used": 2.0},
	}
}

func TestLogConversationWritesStrategyScopedFile(t *testing.T) {
	l := newTestLogger(t)

	path, err := l.LogConversation(sampleQuestion("q1"), sampleResponse(), "few_shot", "s1")
	require.NoError(t, err)

	assert.Equal(t, "few_shot", filepath.Base(filepath.Dir(path)))
	base := filepath.Base(path)
	assert.True(t, strings.HasPrefix(base, "q1-"), "filename starts with question id: %s", base)
	assert.True(t, strings.HasSuffix(base, ".json"))

	entries, err := l.Unevaluated("")
	require.NoError(t, err)
	require.Len(t, entries, 1)

	e := entries[0]
	assert.Equal(t, "q1", e.QuestionID)
	assert.Equal(t, "s1", e.SessionID)
	assert.Equal(t, "4", e.ModelAnswer)
	assert.False(t, e.Evaluated)
	assert.Equal(t, path, e.Path)
	assert.Equal(t, 2.0, e.Metadata["examples_used"], "strategy metadata carried through")
}

func TestLogConversationResultPrefixNestsTree(t *testing.T) {
	root := t.TempDir()
	l, err := NewLogger(root, "nightly", zaptest.NewLogger(t))
	require.NoError(t, err)

	path, err := l.LogConversation(sampleQuestion("q1"), sampleResponse(), "baseline", "s1")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "nightly"), l.Dir())
	assert.True(t, strings.HasPrefix(path, filepath.Join(root, "nightly", "baseline")))
}

func TestUnevaluatedFiltersByStrategy(t *testing.T) {
	l := newTestLogger(t)

	_, err := l.LogConversation(sampleQuestion("q1"), sampleResponse(), "baseline", "s1")
	require.NoError(t, err)
	_, err = l.LogConversation(sampleQuestion("q2"), sampleResponse(), "zero_shot", "s1")
	require.NoError(t, err)

	entries, err := l.Unevaluated("zero_shot")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "q2", entries[0].QuestionID)
}

func TestMarkEvaluatedExcludesFromUnevaluated(t *testing.T) {
	l := newTestLogger(t)

	path, err := l.LogConversation(sampleQuestion("q1"), sampleResponse(), "baseline", "s1")
	require.NoError(t, err)

	result := map[string]domain.MetricResult{
		domain.MetricAccuracy: {Score: 1, Explanation: "correct"},
	}
	require.NoError(t, l.MarkEvaluated(path, result))

	entries, err := l.Unevaluated("")
	require.NoError(t, err)
	assert.Empty(t, entries)

	all, err := l.BySession("s1")
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.True(t, all[0].Evaluated)
	assert.Equal(t, 1.0, all[0].EvaluationResult[domain.MetricAccuracy].Score)
	assert.Positive(t, all[0].EvaluationTimestamp)
}

func TestAddEvaluationMetricsMergesKeys(t *testing.T) {
	l := newTestLogger(t)

	path, err := l.LogConversation(sampleQuestion("q1"), sampleResponse(), "baseline", "s1")
	require.NoError(t, err)

	require.NoError(t, l.MarkEvaluated(path, map[string]domain.MetricResult{
		domain.MetricAccuracy: {Score: 1, Explanation: "correct"},
	}))
	require.NoError(t, l.AddEvaluationMetrics(path, map[string]domain.MetricResult{
		domain.MetricReasoningQuality: {Score: 7, Explanation: "decent"},
	}))

	entries, err := l.BySession("s1")
	require.NoError(t, err)
	require.Len(t, entries, 1)

	result := entries[0].EvaluationResult
	assert.Equal(t, 1.0, result[domain.MetricAccuracy].Score, "existing key preserved")
	assert.Equal(t, 7.0, result[domain.MetricReasoningQuality].Score, "new key added")
}

func TestSessionsListsDistinctIDs(t *testing.T) {
	l := newTestLogger(t)

	for _, sid := range []string{"s2", "s1", "s2"} {
		_, err := l.LogConversation(sampleQuestion("q-"+sid), sampleResponse(), "baseline", sid)
		require.NoError(t, err)
	}

	sessions, err := l.Sessions()
	require.NoError(t, err)
	assert.Equal(t, []string{"s1", "s2"}, sessions)
}

func TestScanSkipsCorruptEntries(t *testing.T) {
	l := newTestLogger(t)

	_, err := l.LogConversation(sampleQuestion("q1"), sampleResponse(), "baseline", "s1")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(
		filepath.Join(l.Dir(), "baseline", "broken-1.json"), []byte("{truncated"), 0o644))

	entries, err := l.Unevaluated("")
	require.NoError(t, err, "a corrupt file never fails the scan")
	assert.Len(t, entries, 1)
}

func TestBatchEvaluatorScoresUnevaluatedLogs(t *testing.T) {
	l := newTestLogger(t)

	judgeClient := testutils.NewMockLLMClient("judge-model")
	judgeClient.AddResponse(testutils.MockResponse{Response: `{"score": 1, "explanation": "ok"}`})
	judge, err := evaluation.NewJudge(judgeClient)
	require.NoError(t, err)
	agg, err := evaluation.NewAggregator("s1", judge, zaptest.NewLogger(t))
	require.NoError(t, err)

	for _, id := range []string{"q1", "q2", "q3"} {
		_, err := l.LogConversation(sampleQuestion(id), sampleResponse(), "baseline", "s1")
		require.NoError(t, err)
	}
	// One already evaluated entry must be skipped.
	path, err := l.LogConversation(sampleQuestion("q4"), sampleResponse(), "baseline", "s1")
	require.NoError(t, err)
	require.NoError(t, l.MarkEvaluated(path, map[string]domain.MetricResult{
		domain.MetricAccuracy: {Score: 0},
	}))

	batch := NewBatchEvaluator(l, agg, zaptest.NewLogger(t))
	summary, err := batch.Run(context.Background(), BatchOptions{})
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Evaluated)
	assert.Zero(t, summary.Failed)
	assert.Equal(t, 3, agg.Count())

	remaining, err := l.Unevaluated("")
	require.NoError(t, err)
	assert.Empty(t, remaining, "all entries stamped after the batch")
}

func TestBatchEvaluatorSessionFilter(t *testing.T) {
	l := newTestLogger(t)

	judgeClient := testutils.NewMockLLMClient("judge-model")
	judgeClient.AddResponse(testutils.MockResponse{Response: `{"score": 1, "explanation": "ok"}`})
	judge, err := evaluation.NewJudge(judgeClient)
	require.NoError(t, err)
	agg, err := evaluation.NewAggregator("s1", judge, zaptest.NewLogger(t))
	require.NoError(t, err)

	_, err = l.LogConversation(sampleQuestion("q1"), sampleResponse(), "baseline", "s1")
	require.NoError(t, err)
	_, err = l.LogConversation(sampleQuestion("q2"), sampleResponse(), "baseline", "s2")
	require.NoError(t, err)

	batch := NewBatchEvaluator(l, agg, zaptest.NewLogger(t))
	summary, err := batch.Run(context.Background(), BatchOptions{SessionID: "s1"})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Evaluated)
	remaining, err := l.Unevaluated("")
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "s2", remaining[0].SessionID)
}
