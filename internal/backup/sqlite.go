// Package backup persists evaluation results to a SQLite database as a
// durable replica of the in-memory aggregator. Upserts are keyed on the
// natural identity of each row, so re-running a backup for the same session
// is idempotent.
package backup

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/cotbench/cotbench/internal/domain"
	"github.com/cotbench/cotbench/internal/ports"
)

const schema = `
CREATE TABLE IF NOT EXISTS evaluation_results (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    question_id TEXT NOT NULL,
    strategy TEXT NOT NULL,
    dataset TEXT,
    model TEXT,
    question TEXT NOT NULL,
    reference_answer TEXT,
    model_answer TEXT,
    reasoning TEXT,
    category TEXT,
    difficulty TEXT,
    accuracy_score REAL,
    accuracy_explanation TEXT,
    reasoning_score REAL,
    reasoning_explanation TEXT,
    metrics_json TEXT,
    timestamp REAL NOT NULL,
    session_id TEXT,
    UNIQUE(question_id, strategy, session_id)
);

CREATE TABLE IF NOT EXISTS sessions (
    session_id TEXT PRIMARY KEY,
    result_prefix TEXT,
    dataset TEXT,
    model TEXT,
    start_time REAL,
    end_time REAL,
    total_questions INTEGER
);

CREATE TABLE IF NOT EXISTS strategy_metadata (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id TEXT,
    strategy TEXT NOT NULL,
    name TEXT,
    description TEXT,
    parameters TEXT,
    UNIQUE(session_id, strategy)
);

CREATE TABLE IF NOT EXISTS overall_metrics (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id TEXT,
    strategy TEXT NOT NULL,
    total_questions INTEGER,
    avg_accuracy REAL,
    avg_reasoning_quality REAL,
    metrics_json TEXT,
    timestamp REAL,
    UNIQUE(session_id, strategy)
);
`

var _ ports.ResultSink = (*Store)(nil)

// Store is the SQLite-backed durable replica. A single *sql.DB handle is
// safe for concurrent use; SQLite serializes writers internally.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open creates or opens the database at path and ensures the schema exists.
// Parent directories are created as needed.
func Open(path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	logger.Info("backup database ready", zap.String("path", path))
	return &Store{db: db, logger: logger}, nil
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// Flush implements ports.ResultSink: it upserts every evaluation row, then
// the per-strategy aggregate metrics, then the session descriptor, all in
// one transaction. Re-flushing a session replaces its rows in place.
func (s *Store) Flush(ctx context.Context, session domain.Session, results map[string][]domain.EvaluationRecord, overall map[string]domain.StrategyMetrics) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting backup transaction: %w", err)
	}
	defer tx.Rollback()

	total := 0
	for _, records := range results {
		for i := range records {
			if err := upsertResult(ctx, tx, session, &records[i]); err != nil {
				return err
			}
			total++
		}
	}
	for strategy, metrics := range overall {
		if err := upsertOverallMetrics(ctx, tx, session, strategy, metrics); err != nil {
			return err
		}
	}
	if err := upsertSession(ctx, tx, session); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing backup: %w", err)
	}
	s.logger.Info("results backed up",
		zap.String("session_id", session.SessionID),
		zap.Int("records", total))
	return nil
}

func upsertResult(ctx context.Context, tx *sql.Tx, session domain.Session, r *domain.EvaluationRecord) error {
	metricsJSON, err := json.Marshal(r.Metrics)
	if err != nil {
		return fmt.Errorf("encoding metrics for %s: %w", r.QuestionID, err)
	}
	acc := r.Metrics[domain.MetricAccuracy]
	rq := r.Metrics[domain.MetricReasoningQuality]

	_, err = tx.ExecContext(ctx, `
INSERT OR REPLACE INTO evaluation_results
(question_id, strategy, dataset, model, question, reference_answer,
 model_answer, reasoning, category, difficulty,
 accuracy_score, accuracy_explanation, reasoning_score, reasoning_explanation,
 metrics_json, timestamp, session_id)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.QuestionID, r.Strategy, session.Dataset, session.Model,
		r.Question, r.ReferenceAnswer, r.ModelAnswer, r.Reasoning,
		r.Category, string(r.Difficulty),
		acc.Score, acc.Explanation, rq.Score, rq.Explanation,
		string(metricsJSON), r.Timestamp, session.SessionID)
	if err != nil {
		return fmt.Errorf("upserting result %s/%s: %w", r.QuestionID, r.Strategy, err)
	}
	return nil
}

func upsertOverallMetrics(ctx context.Context, tx *sql.Tx, session domain.Session, strategy string, m domain.StrategyMetrics) error {
	metricsJSON, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encoding overall metrics for %s: %w", strategy, err)
	}
	_, err = tx.ExecContext(ctx, `
INSERT OR REPLACE INTO overall_metrics
(session_id, strategy, total_questions, avg_accuracy, avg_reasoning_quality,
 metrics_json, timestamp)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		session.SessionID, strategy, m.TotalQuestions,
		m.Metrics[domain.MetricAccuracy].AverageScore,
		m.Metrics[domain.MetricReasoningQuality].AverageScore,
		string(metricsJSON), session.EndTime)
	if err != nil {
		return fmt.Errorf("upserting overall metrics for %s: %w", strategy, err)
	}
	return nil
}

func upsertSession(ctx context.Context, tx *sql.Tx, session domain.Session) error {
	_, err := tx.ExecContext(ctx, `
INSERT OR REPLACE INTO sessions
(session_id, result_prefix, dataset, model, start_time, end_time, total_questions)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		session.SessionID, session.ResultPrefix, session.Dataset, session.Model,
		session.StartTime, session.EndTime, session.TotalQuestions)
	if err != nil {
		return fmt.Errorf("upserting session %s: %w", session.SessionID, err)
	}
	return nil
}

// SaveStrategyMetadata upserts descriptive metadata for a strategy within a
// session. Parameters are stored as JSON.
func (s *Store) SaveStrategyMetadata(ctx context.Context, sessionID, strategy, name, description string, parameters map[string]any) error {
	params, err := json.Marshal(parameters)
	if err != nil {
		return fmt.Errorf("encoding strategy parameters: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
INSERT OR REPLACE INTO strategy_metadata
(session_id, strategy, name, description, parameters)
VALUES (?, ?, ?, ?, ?)`,
		sessionID, strategy, name, description, string(params))
	if err != nil {
		return fmt.Errorf("upserting strategy metadata for %s: %w", strategy, err)
	}
	return nil
}

// GetSessions returns all backed-up sessions, most recent first.
func (s *Store) GetSessions(ctx context.Context) ([]domain.Session, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT session_id, result_prefix, dataset, model, start_time, end_time, total_questions
FROM sessions
ORDER BY start_time DESC`)
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer rows.Close()

	var sessions []domain.Session
	for rows.Next() {
		var sess domain.Session
		var prefix, dataset, model sql.NullString
		var start, end sql.NullFloat64
		if err := rows.Scan(&sess.SessionID, &prefix, &dataset, &model, &start, &end, &sess.TotalQuestions); err != nil {
			return nil, fmt.Errorf("scanning session row: %w", err)
		}
		sess.ResultPrefix = prefix.String
		sess.Dataset = dataset.String
		sess.Model = model.String
		sess.StartTime = start.Float64
		sess.EndTime = end.Float64
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// SessionResults is a reconstructed view of one backed-up session.
type SessionResults struct {
	Session        domain.Session                     `json:"session"`
	Results        map[string][]domain.EvaluationRecord `json:"results"`
	OverallMetrics map[string]domain.StrategyMetrics  `json:"overall_metrics"`
}

// GetSessionResults rebuilds the grouped-by-strategy result set for a
// session from its backed-up rows. A missing session yields sql.ErrNoRows.
func (s *Store) GetSessionResults(ctx context.Context, sessionID string) (*SessionResults, error) {
	var sess domain.Session
	var prefix, dataset, model sql.NullString
	var start, end sql.NullFloat64
	err := s.db.QueryRowContext(ctx, `
SELECT session_id, result_prefix, dataset, model, start_time, end_time, total_questions
FROM sessions WHERE session_id = ?`, sessionID).
		Scan(&sess.SessionID, &prefix, &dataset, &model, &start, &end, &sess.TotalQuestions)
	if err != nil {
		return nil, err
	}
	sess.ResultPrefix = prefix.String
	sess.Dataset = dataset.String
	sess.Model = model.String
	sess.StartTime = start.Float64
	sess.EndTime = end.Float64

	results, err := s.sessionRecords(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	overall, err := s.sessionOverallMetrics(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	return &SessionResults{Session: sess, Results: results, OverallMetrics: overall}, nil
}

func (s *Store) sessionRecords(ctx context.Context, sessionID string) (map[string][]domain.EvaluationRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT question_id, strategy, question, reference_answer, model_answer, reasoning,
       category, difficulty, accuracy_score, accuracy_explanation,
       reasoning_score, reasoning_explanation, metrics_json, timestamp
FROM evaluation_results
WHERE session_id = ?
ORDER BY strategy, timestamp`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("querying session results: %w", err)
	}
	defer rows.Close()

	results := make(map[string][]domain.EvaluationRecord)
	for rows.Next() {
		var r domain.EvaluationRecord
		var difficulty string
		var accScore, rqScore sql.NullFloat64
		var accExpl, rqExpl, metricsJSON sql.NullString
		if err := rows.Scan(&r.QuestionID, &r.Strategy, &r.Question, &r.ReferenceAnswer,
			&r.ModelAnswer, &r.Reasoning, &r.Category, &difficulty,
			&accScore, &accExpl, &rqScore, &rqExpl, &metricsJSON, &r.Timestamp); err != nil {
			return nil, fmt.Errorf("scanning result row: %w", err)
		}
		r.Difficulty = domain.Difficulty(difficulty)
		r.HasReasoning = r.Reasoning != ""

		// The JSON blob is authoritative when present; the flat columns
		// cover rows written before it existed.
		if metricsJSON.Valid && metricsJSON.String != "" {
			if err := json.Unmarshal([]byte(metricsJSON.String), &r.Metrics); err != nil {
				r.Metrics = nil
			}
		}
		if r.Metrics == nil {
			r.Metrics = map[string]domain.MetricResult{
				domain.MetricAccuracy: {Score: accScore.Float64, Explanation: accExpl.String},
			}
			if rqScore.Valid && rqScore.Float64 > 0 {
				r.Metrics[domain.MetricReasoningQuality] = domain.MetricResult{
					Score: rqScore.Float64, Explanation: rqExpl.String,
				}
			}
		}
		results[r.Strategy] = append(results[r.Strategy], r)
	}
	return results, rows.Err()
}

func (s *Store) sessionOverallMetrics(ctx context.Context, sessionID string) (map[string]domain.StrategyMetrics, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT strategy, metrics_json FROM overall_metrics WHERE session_id = ?`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("querying overall metrics: %w", err)
	}
	defer rows.Close()

	overall := make(map[string]domain.StrategyMetrics)
	for rows.Next() {
		var strategy, metricsJSON string
		if err := rows.Scan(&strategy, &metricsJSON); err != nil {
			return nil, fmt.Errorf("scanning overall metrics row: %w", err)
		}
		var m domain.StrategyMetrics
		if err := json.Unmarshal([]byte(metricsJSON), &m); err != nil {
			return nil, fmt.Errorf("decoding overall metrics for %s: %w", strategy, err)
		}
		overall[strategy] = m
	}
	return overall, rows.Err()
}

// ExportToJSON writes a session's reconstructed results to a JSON file and
// returns its path. An empty outputPath defaults to backup_<session>.json in
// the database's directory convention.
func (s *Store) ExportToJSON(ctx context.Context, sessionID, outputPath string) (string, error) {
	results, err := s.GetSessionResults(ctx, sessionID)
	if err != nil {
		return "", fmt.Errorf("loading session %s: %w", sessionID, err)
	}

	if outputPath == "" {
		outputPath = filepath.Join("results", fmt.Sprintf("backup_%s.json", sessionID))
	}
	if dir := filepath.Dir(outputPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("creating export directory: %w", err)
		}
	}

	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding export: %w", err)
	}
	if err := os.WriteFile(outputPath, data, 0o644); err != nil {
		return "", fmt.Errorf("writing export: %w", err)
	}

	s.logger.Info("session exported",
		zap.String("session_id", sessionID),
		zap.String("path", outputPath))
	return outputPath, nil
}

// Strategies returns the distinct strategy names seen in a session, sorted.
func (s *Store) Strategies(ctx context.Context, sessionID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT DISTINCT strategy FROM evaluation_results WHERE session_id = ?`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("querying strategies: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, rows.Err()
}
