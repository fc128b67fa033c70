// Package convlog stores raw model exchanges as one JSON file per
// conversation, grouped into per-strategy directories. Logged conversations
// can be evaluated later in batch, which decouples expensive judge calls
// from response generation.
package convlog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cotbench/cotbench/internal/domain"
	"github.com/cotbench/cotbench/internal/ports"
)

var _ ports.ConversationSink = (*Logger)(nil)

// Entry is one logged conversation. Evaluated and EvaluationResult start
// empty and are filled in when a batch evaluation processes the entry.
type Entry struct {
	QuestionID      string            `json:"question_id"`
	Question        string            `json:"question"`
	ReferenceAnswer string            `json:"reference_answer"`
	ModelAnswer     string            `json:"model_answer"`
	FullResponse    string            `json:"full_response"`
	HasReasoning    bool              `json:"has_reasoning"`
	Reasoning       string            `json:"reasoning,omitempty"`
	Strategy        string            `json:"strategy"`
	Category        string            `json:"category,omitempty"`
	Difficulty      domain.Difficulty `json:"difficulty,omitempty"`
	Metadata        map[string]any    `json:"metadata,omitempty"`
	Timestamp       float64           `json:"timestamp"`
	SessionID       string            `json:"session_id"`

	Evaluated           bool                           `json:"evaluated"`
	EvaluationResult    map[string]domain.MetricResult `json:"evaluation_result,omitempty"`
	EvaluationTimestamp float64                        `json:"evaluation_timestamp,omitempty"`

	// Path is where the entry lives on disk. Populated when listing, never
	// serialized.
	Path string `json:"-"`
}

// Logger writes conversation entries under dir/<strategy>/<id>-<unix>.json.
// An optional result prefix nests the whole tree one level deeper so
// separate evaluation tasks keep separate logs.
type Logger struct {
	dir    string
	logger *zap.Logger
	now    func() time.Time
}

// NewLogger creates a conversation logger rooted at dir.
func NewLogger(dir, resultPrefix string, logger *zap.Logger) (*Logger, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if resultPrefix != "" {
		dir = filepath.Join(dir, resultPrefix)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating conversation log directory: %w", err)
	}
	return &Logger{dir: dir, logger: logger, now: time.Now}, nil
}

// Dir returns the root directory of this logger's tree.
func (l *Logger) Dir() string { return l.dir }

// LogConversation implements ports.ConversationSink. It returns the path of
// the written file, which doubles as the handle for later evaluation
// marking.
func (l *Logger) LogConversation(q domain.Question, resp domain.ModelResponse, strategy, sessionID string) (string, error) {
	strategyDir := filepath.Join(l.dir, strategy)
	if err := os.MkdirAll(strategyDir, 0o755); err != nil {
		return "", fmt.Errorf("creating strategy directory: %w", err)
	}

	now := l.now()
	entry := Entry{
		QuestionID:      q.ID,
		Question:        q.Text,
		ReferenceAnswer: q.ReferenceAnswer,
		ModelAnswer:     resp.Answer,
		FullResponse:    resp.FullResponse,
		HasReasoning:    resp.HasReasoning,
		Reasoning:       resp.Reasoning,
		Strategy:        strategy,
		Category:        q.Category,
		Difficulty:      q.Difficulty,
		Metadata:        resp.Metadata,
		Timestamp:       domain.Timestamp(now),
		SessionID:       sessionID,
	}

	path := filepath.Join(strategyDir, fmt.Sprintf("%s-%d.json", q.ID, now.Unix()))
	if _, err := os.Stat(path); err == nil {
		// Same question logged twice within a second; disambiguate.
		path = filepath.Join(strategyDir, fmt.Sprintf("%s-%d.json", q.ID, now.UnixNano()))
	}

	if err := writeEntry(path, &entry); err != nil {
		return "", err
	}
	l.logger.Debug("conversation logged",
		zap.String("question_id", q.ID),
		zap.String("strategy", strategy),
		zap.String("path", path))
	return path, nil
}

// Unevaluated returns entries not yet evaluated, across all strategies when
// strategy is empty. Unreadable files are logged and skipped.
func (l *Logger) Unevaluated(strategy string) ([]Entry, error) {
	return l.scan(func(e *Entry) bool {
		if e.Evaluated {
			return false
		}
		return strategy == "" || e.Strategy == strategy
	})
}

// BySession returns all entries belonging to one session.
func (l *Logger) BySession(sessionID string) ([]Entry, error) {
	return l.scan(func(e *Entry) bool { return e.SessionID == sessionID })
}

// Sessions returns the distinct session IDs present in the log tree,
// sorted.
func (l *Logger) Sessions() ([]string, error) {
	entries, err := l.scan(func(*Entry) bool { return true })
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var ids []string
	for i := range entries {
		if id := entries[i].SessionID; id != "" && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// MarkEvaluated stamps an entry with its evaluation result. The entry's
// conversation fields are left untouched; only the evaluation block and
// timestamp change.
func (l *Logger) MarkEvaluated(path string, result map[string]domain.MetricResult) error {
	entry, err := readEntry(path)
	if err != nil {
		return err
	}
	entry.Evaluated = true
	entry.EvaluationResult = result
	entry.EvaluationTimestamp = domain.Timestamp(l.now())
	return writeEntry(path, entry)
}

// AddEvaluationMetrics merges metric results into an entry's evaluation
// block, creating it if absent. Existing metric keys are overwritten, keys
// not named are preserved.
func (l *Logger) AddEvaluationMetrics(path string, metrics map[string]domain.MetricResult) error {
	entry, err := readEntry(path)
	if err != nil {
		return err
	}
	if entry.EvaluationResult == nil {
		entry.EvaluationResult = make(map[string]domain.MetricResult, len(metrics))
	}
	for name, m := range metrics {
		entry.EvaluationResult[name] = m
	}
	entry.Evaluated = true
	entry.EvaluationTimestamp = domain.Timestamp(l.now())
	return writeEntry(path, entry)
}

// scan walks every strategy directory and returns the entries accepted by
// keep, with Path populated. Files that fail to decode are skipped with a
// warning so one corrupt log never hides the rest.
func (l *Logger) scan(keep func(*Entry) bool) ([]Entry, error) {
	dirs, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, fmt.Errorf("reading log directory: %w", err)
	}

	var entries []Entry
	for _, d := range dirs {
		if !d.IsDir() {
			continue
		}
		strategyDir := filepath.Join(l.dir, d.Name())
		files, err := os.ReadDir(strategyDir)
		if err != nil {
			l.logger.Warn("skipping unreadable strategy directory",
				zap.String("dir", strategyDir), zap.Error(err))
			continue
		}
		for _, f := range files {
			if f.IsDir() || !strings.HasSuffix(f.Name(), ".json") {
				continue
			}
			path := filepath.Join(strategyDir, f.Name())
			entry, err := readEntry(path)
			if err != nil {
				l.logger.Warn("skipping unreadable log entry",
					zap.String("path", path), zap.Error(err))
				continue
			}
			entry.Path = path
			if keep(entry) {
				entries = append(entries, *entry)
			}
		}
	}
	return entries, nil
}

func readEntry(path string) (*Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading log entry: %w", err)
	}
	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("decoding log entry %s: %w", path, err)
	}
	return &entry, nil
}

func writeEntry(path string, entry *Entry) error {
	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding log entry: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing log entry: %w", err)
	}
	return nil
}
