package vecindex

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cotbench/cotbench/internal/ports"
	"github.com/cotbench/cotbench/internal/testutils"
)

const testDim = 8

func newTestIndex(t *testing.T, dir string) (*Index, *testutils.StubEmbedder) {
	t.Helper()
	embedder := testutils.NewStubEmbedder(testDim)
	idx, err := New(dir, embedder, zaptest.NewLogger(t))
	require.NoError(t, err)
	return idx, embedder
}

func TestIndexAddAssignsSequentialOrdinals(t *testing.T) {
	idx, _ := newTestIndex(t, t.TempDir())
	ctx := context.Background()

	for i, text := range []string{"first", "second", "third"} {
		ordinal, err := idx.Add(ctx, text, Record{Answer: "a"})
		require.NoError(t, err)
		assert.Equal(t, i, ordinal)
	}
	assert.Equal(t, 3, idx.Len())
}

func TestIndexSearchClampsK(t *testing.T) {
	idx, _ := newTestIndex(t, t.TempDir())
	ctx := context.Background()

	_, err := idx.Add(ctx, "only entry", Record{Answer: "a"})
	require.NoError(t, err)

	results, err := idx.Search(ctx, "query", 10)
	require.NoError(t, err)
	assert.Len(t, results, 1, "k clamps to stored count")

	results, err = idx.Search(ctx, "query", 0)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestIndexSearchEmptyIndex(t *testing.T) {
	idx, _ := newTestIndex(t, t.TempDir())

	results, err := idx.Search(context.Background(), "anything", 5)
	require.NoError(t, err)
	assert.Empty(t, results, "empty index yields empty result, not an error")
}

func TestIndexSearchOrdersByDistance(t *testing.T) {
	idx, embedder := newTestIndex(t, t.TempDir())
	ctx := context.Background()

	embedder.Pin("near", []float32{1, 0, 0, 0})
	embedder.Pin("far", []float32{9, 9, 9, 9})
	embedder.Pin("query", []float32{1, 0.1, 0, 0})

	_, err := idx.Add(ctx, "far", Record{Answer: "f"})
	require.NoError(t, err)
	_, err = idx.Add(ctx, "near", Record{Answer: "n"})
	require.NoError(t, err)

	results, err := idx.Search(ctx, "query", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "near", results[0].Record.Question)
	assert.Equal(t, "far", results[1].Record.Question)
	assert.Less(t, results[0].Distance, results[1].Distance)
}

func TestIndexAddPropagatesEmbeddingError(t *testing.T) {
	idx, embedder := newTestIndex(t, t.TempDir())

	boom := errors.New("provider down")
	embedder.Fail(boom)

	_, err := idx.Add(context.Background(), "text", Record{})
	require.Error(t, err)

	var embErr *ports.EmbeddingError
	require.ErrorAs(t, err, &embErr)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, idx.Len(), "failed add leaves the index unchanged")
}

func TestIndexPersistAndReload(t *testing.T) {
	dir := t.TempDir()
	idx, _ := newTestIndex(t, dir)
	ctx := context.Background()

	_, err := idx.Add(ctx, "What is 2+2?", Record{Answer: "4", Category: "arithmetic"})
	require.NoError(t, err)
	_, err = idx.Add(ctx, "Capital of France?", Record{Answer: "Paris", Category: "geography"})
	require.NoError(t, err)

	// A second index over the same directory sees the persisted state.
	reloaded, _ := newTestIndex(t, dir)
	assert.Equal(t, 2, reloaded.Len())

	results, err := reloaded.Search(ctx, "What is 2+2?", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "What is 2+2?", results[0].Record.Question)
	assert.Equal(t, "4", results[0].Record.Answer)
	assert.Equal(t, 0, results[0].Record.Ordinal)
}

func TestIndexLoadCorruptVectorFileStartsEmpty(t *testing.T) {
	dir := t.TempDir()
	idx, _ := newTestIndex(t, dir)
	_, err := idx.Add(context.Background(), "entry", Record{Answer: "a"})
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, vectorFileName), []byte("garbage"), 0o644))

	reloaded, _ := newTestIndex(t, dir)
	assert.Equal(t, 0, reloaded.Len(), "corrupt file degrades to empty index")
}

func TestIndexClearRemovesStateAndFiles(t *testing.T) {
	dir := t.TempDir()
	idx, _ := newTestIndex(t, dir)
	_, err := idx.Add(context.Background(), "entry", Record{Answer: "a"})
	require.NoError(t, err)

	require.NoError(t, idx.Clear())
	assert.Equal(t, 0, idx.Len())

	_, err = os.Stat(filepath.Join(dir, vectorFileName))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(dir, metadataFileName))
	assert.True(t, os.IsNotExist(err))
}

func TestIndexConcurrentAddKeepsOrdinalsAligned(t *testing.T) {
	idx, _ := newTestIndex(t, t.TempDir())
	ctx := context.Background()

	const n = 16
	var wg sync.WaitGroup
	ordinals := make([]int, n)
	texts := make([]string, n)
	for i := 0; i < n; i++ {
		texts[i] = string(rune('a'+i)) + "-question"
	}
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ord, err := idx.Add(ctx, texts[i], Record{Answer: "x"})
			assert.NoError(t, err)
			ordinals[i] = ord
		}(i)
	}
	wg.Wait()

	require.Equal(t, n, idx.Len())
	seen := make(map[int]bool, n)
	for _, ord := range ordinals {
		assert.False(t, seen[ord], "ordinal %d assigned twice", ord)
		seen[ord] = true
	}

	// Every text's own search must find itself at distance ~0 under its
	// assigned ordinal: vectors and metadata never desynchronize.
	for i, text := range texts {
		results, err := idx.Search(ctx, text, 1)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, text, results[0].Record.Question)
		assert.Equal(t, ordinals[i], results[0].Record.Ordinal)
	}
}
