package evaluation

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/cotbench/cotbench/internal/domain"
	"github.com/cotbench/cotbench/internal/ports"
)

const resultsFileName = "evaluation_results.json"

var _ ports.ResultSink = (*FileStore)(nil)

// FileStore persists evaluation results as a flat JSON file keyed by
// strategy name, merging into whatever the file already holds so repeated
// runs accumulate rather than clobber each other. A per-session summary file
// carries the session descriptor and the aggregate metrics.
type FileStore struct {
	dir    string
	logger *zap.Logger
}

// NewFileStore creates a file store rooted at dir, creating it if needed.
func NewFileStore(dir string, logger *zap.Logger) (*FileStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating results directory: %w", err)
	}
	return &FileStore{dir: dir, logger: logger}, nil
}

// ResultsPath returns the path of the merged results file for a session,
// honoring its result prefix.
func (s *FileStore) ResultsPath(session domain.Session) string {
	name := resultsFileName
	if session.ResultPrefix != "" {
		name = session.ResultPrefix + "_" + resultsFileName
	}
	return filepath.Join(s.dir, name)
}

// sessionSummary is the shape of the per-session summary file.
type sessionSummary struct {
	Session        domain.Session                    `json:"session"`
	OverallMetrics map[string]domain.StrategyMetrics `json:"overall_metrics"`
}

// Flush merges the run's records into the results file and writes the
// session summary.
//
// Merge semantics: for each strategy present in memory, existing on-disk
// records are updated in place when a memory record shares their question
// ID, and new question IDs are appended; strategies present only on disk
// are left untouched. An unreadable or undecodable existing file degrades
// to overwrite-with-memory after a warning, so a corrupt file never blocks
// saving fresh results.
func (s *FileStore) Flush(ctx context.Context, session domain.Session, results map[string][]domain.EvaluationRecord, overall map[string]domain.StrategyMetrics) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path := s.ResultsPath(session)
	existing := s.readExisting(path)
	merged := mergeResults(existing, results)

	data, err := json.MarshalIndent(merged, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding results: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing results file: %w", err)
	}

	if err := s.writeSummary(session, overall); err != nil {
		return err
	}

	s.logger.Info("results flushed to file store",
		zap.String("path", path),
		zap.Int("strategies", len(merged)))
	return nil
}

func (s *FileStore) readExisting(path string) map[string][]domain.EvaluationRecord {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		s.logger.Warn("existing results file unreadable, overwriting",
			zap.String("path", path), zap.Error(err))
		return nil
	}
	var existing map[string][]domain.EvaluationRecord
	if err := json.Unmarshal(data, &existing); err != nil {
		s.logger.Warn("existing results file undecodable, overwriting",
			zap.String("path", path), zap.Error(err))
		return nil
	}
	return existing
}

func (s *FileStore) writeSummary(session domain.Session, overall map[string]domain.StrategyMetrics) error {
	summary := sessionSummary{Session: session, OverallMetrics: overall}
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding session summary: %w", err)
	}
	name := fmt.Sprintf("summary_%s.json", session.SessionID)
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0o644); err != nil {
		return fmt.Errorf("writing session summary: %w", err)
	}
	return nil
}

func mergeResults(existing, memory map[string][]domain.EvaluationRecord) map[string][]domain.EvaluationRecord {
	if existing == nil {
		existing = make(map[string][]domain.EvaluationRecord, len(memory))
	}
	for strategy, records := range memory {
		existing[strategy] = upsertByQuestionID(existing[strategy], records)
	}
	return existing
}

// upsertByQuestionID folds incoming records into base: a shared question ID
// replaces the old record in place, a new one appends. Disk order is
// preserved for untouched records.
func upsertByQuestionID(base, incoming []domain.EvaluationRecord) []domain.EvaluationRecord {
	pos := make(map[string]int, len(base))
	for i := range base {
		pos[base[i].QuestionID] = i
	}
	for _, rec := range incoming {
		if i, ok := pos[rec.QuestionID]; ok {
			base[i] = rec
			continue
		}
		pos[rec.QuestionID] = len(base)
		base = append(base, rec)
	}
	return base
}
