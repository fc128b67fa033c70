// Package vecindex implements the question vector index used for
// few-shot example retrieval: a flat (brute-force) L2 index over fixed-length
// embeddings with a parallel metadata list, persisted as a binary vector file
// and a JSON metadata file written and read together.
//
// A flat index is deliberate: corpora are small (hundreds to low thousands of
// questions) and exact nearest-neighbor results matter more than sub-linear
// search for example selection. L2 distance over normalized embeddings
// approximates cosine similarity well enough for this workload.
package vecindex

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/cotbench/cotbench/internal/domain"
	"github.com/cotbench/cotbench/internal/ports"
)

const (
	vectorFileName   = "vectors.bin"
	metadataFileName = "metadata.json"

	// vectorFileMagic guards against loading a vector file produced by an
	// unrelated tool or a truncated write.
	vectorFileMagic = uint32(0x43564958) // "CVIX"
)

// Record is the metadata stored alongside each indexed vector. Ordinal
// always equals the record's position in the vector list; insertion is
// append-only, so ordinals are stable for the record's lifetime.
type Record struct {
	Ordinal    int               `json:"id"`
	Question   string            `json:"question"`
	Answer     string            `json:"answer"`
	Category   string            `json:"category,omitempty"`
	Difficulty domain.Difficulty `json:"difficulty,omitempty"`
}

// SearchResult pairs a metadata record with its squared L2 distance from the
// query embedding.
type SearchResult struct {
	Record   Record
	Distance float64
}

// Index is a flat vector index with persistence. All mutation and read paths
// are guarded by a single mutex: concurrent Add calls from orchestrator
// workers must not interleave vector and metadata appends, or ordinals would
// desynchronize from their vectors.
type Index struct {
	dir      string
	dim      int
	embedder ports.Embedder
	logger   *zap.Logger
	tracer   trace.Tracer

	mu      sync.Mutex
	vectors [][]float32
	records []Record
}

// New opens the index stored in dir, creating the directory if needed.
// If either persisted file is missing or corrupt the index starts empty;
// corruption is logged, never fatal. The index dimensionality is fixed to
// the embedder's and never renegotiated.
func New(dir string, embedder ports.Embedder, logger *zap.Logger) (*Index, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}

	idx := &Index{
		dir:      dir,
		dim:      embedder.Dimension(),
		embedder: embedder,
		logger:   logger,
		tracer:   otel.Tracer("vecindex"),
	}

	if err := idx.load(); err != nil {
		logger.Warn("failed to load persisted index, starting empty",
			zap.String("dir", dir),
			zap.Error(err))
		idx.vectors = nil
		idx.records = nil
	}

	logger.Info("vector index ready",
		zap.String("dir", dir),
		zap.Int("dimension", idx.dim),
		zap.Int("records", len(idx.records)))
	return idx, nil
}

// Len returns the number of indexed records.
func (idx *Index) Len() int {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return len(idx.records)
}

// Add embeds text, appends the vector and its metadata (with the text and
// assigned ordinal injected), persists both files, and returns the ordinal.
// Embedding failures propagate as *ports.EmbeddingError; they are never
// swallowed here.
func (idx *Index) Add(ctx context.Context, text string, meta Record) (int, error) {
	ctx, span := idx.tracer.Start(ctx, "Index.Add")
	defer span.End()

	vec, err := idx.embedder.Embed(ctx, text)
	if err != nil {
		span.RecordError(err)
		return 0, ports.NewEmbeddingError(text, err)
	}
	if len(vec) != idx.dim {
		return 0, fmt.Errorf("%w: got %d, index dimension %d",
			ports.ErrDimensionMismatch, len(vec), idx.dim)
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	ordinal := len(idx.records)
	meta.Ordinal = ordinal
	meta.Question = text
	idx.vectors = append(idx.vectors, vec)
	idx.records = append(idx.records, meta)

	if err := idx.persistLocked(); err != nil {
		// The in-memory append stands; the caller decides whether a
		// persistence failure is fatal for its workflow.
		idx.logger.Error("failed to persist index after add", zap.Error(err))
		return ordinal, err
	}

	span.SetAttributes(attribute.Int("index.ordinal", ordinal))
	return ordinal, nil
}

// Search embeds the query and returns up to k nearest records by squared L2
// distance, closest first. k is clamped to the number of stored records; an
// empty index yields an empty result for any k, never an error.
func (idx *Index) Search(ctx context.Context, query string, k int) ([]SearchResult, error) {
	ctx, span := idx.tracer.Start(ctx, "Index.Search",
		trace.WithAttributes(attribute.Int("search.k", k)))
	defer span.End()

	if k <= 0 {
		return nil, nil
	}

	vec, err := idx.embedder.Embed(ctx, query)
	if err != nil {
		span.RecordError(err)
		return nil, ports.NewEmbeddingError(query, err)
	}
	if len(vec) != idx.dim {
		return nil, fmt.Errorf("%w: got %d, index dimension %d",
			ports.ErrDimensionMismatch, len(vec), idx.dim)
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if len(idx.records) == 0 {
		return nil, nil
	}
	if k > len(idx.records) {
		k = len(idx.records)
	}

	results := make([]SearchResult, len(idx.records))
	for i, stored := range idx.vectors {
		results[i] = SearchResult{
			Record:   idx.records[i],
			Distance: squaredL2(vec, stored),
		}
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].Distance < results[j].Distance
	})

	span.SetAttributes(attribute.Int("search.results", k))
	return results[:k], nil
}

// Clear discards all vectors and metadata, deletes the persisted files, and
// reinitializes to an empty index with the same dimensionality.
func (idx *Index) Clear() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.vectors = nil
	idx.records = nil

	var firstErr error
	for _, name := range []string{vectorFileName, metadataFileName} {
		if err := os.Remove(filepath.Join(idx.dir, name)); err != nil && !os.IsNotExist(err) {
			if firstErr == nil {
				firstErr = fmt.Errorf("removing %s: %w", name, err)
			}
		}
	}
	idx.logger.Info("vector index cleared", zap.String("dir", idx.dir))
	return firstErr
}

// Persist writes the current vectors and metadata to disk.
func (idx *Index) Persist() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.persistLocked()
}

func (idx *Index) persistLocked() error {
	if err := idx.writeVectors(); err != nil {
		return fmt.Errorf("writing vector file: %w", err)
	}
	data, err := json.MarshalIndent(idx.records, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(idx.dir, metadataFileName), data, 0o644); err != nil {
		return fmt.Errorf("writing metadata file: %w", err)
	}
	return nil
}

func (idx *Index) writeVectors() error {
	f, err := os.Create(filepath.Join(idx.dir, vectorFileName))
	if err != nil {
		return err
	}
	defer f.Close()

	header := []uint32{vectorFileMagic, uint32(idx.dim), uint32(len(idx.vectors))}
	for _, v := range header {
		if err := binary.Write(f, binary.LittleEndian, v); err != nil {
			return err
		}
	}
	for _, vec := range idx.vectors {
		if err := binary.Write(f, binary.LittleEndian, vec); err != nil {
			return err
		}
	}
	return f.Sync()
}

// load reads both persisted files. Both must exist and agree on record
// count; any mismatch or decode failure is reported so the caller can fall
// back to an empty index.
func (idx *Index) load() error {
	vecPath := filepath.Join(idx.dir, vectorFileName)
	metaPath := filepath.Join(idx.dir, metadataFileName)

	if _, err := os.Stat(vecPath); os.IsNotExist(err) {
		return nil // fresh index
	}
	if _, err := os.Stat(metaPath); os.IsNotExist(err) {
		return fmt.Errorf("vector file present but metadata file missing")
	}

	vectors, err := readVectors(vecPath, idx.dim)
	if err != nil {
		return fmt.Errorf("reading vector file: %w", err)
	}

	data, err := os.ReadFile(metaPath)
	if err != nil {
		return fmt.Errorf("reading metadata file: %w", err)
	}
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("decoding metadata: %w", err)
	}

	if len(vectors) != len(records) {
		return fmt.Errorf("vector/metadata count mismatch: %d vectors, %d records",
			len(vectors), len(records))
	}

	idx.vectors = vectors
	idx.records = records
	return nil
}

func readVectors(path string, wantDim int) ([][]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var magic, dim, count uint32
	for _, p := range []*uint32{&magic, &dim, &count} {
		if err := binary.Read(f, binary.LittleEndian, p); err != nil {
			return nil, err
		}
	}
	if magic != vectorFileMagic {
		return nil, fmt.Errorf("bad magic %#x", magic)
	}
	if int(dim) != wantDim {
		return nil, fmt.Errorf("%w: file dimension %d, index dimension %d",
			ports.ErrDimensionMismatch, dim, wantDim)
	}

	vectors := make([][]float32, 0, count)
	for i := uint32(0); i < count; i++ {
		vec := make([]float32, dim)
		if err := binary.Read(f, binary.LittleEndian, vec); err != nil {
			return nil, fmt.Errorf("vector %d: %w", i, err)
		}
		vectors = append(vectors, vec)
	}
	return vectors, nil
}

func squaredL2(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	// Guard against NaN poisoning the sort below.
	if math.IsNaN(sum) {
		return math.Inf(1)
	}
	return sum
}
