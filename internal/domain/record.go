package domain

// ModelResponse is the structured output a strategy extracts from a raw
// model completion. Answer, FullResponse, and HasReasoning are always
// populated; Reasoning is set only when the strategy elicited an explicit
// reasoning trace. Metadata is an open extension map for strategy-specific
// details (retrieved examples, reasoning chains, template parameters) and is
// carried through to conversation logs untouched.
type ModelResponse struct {
	// Answer is the extracted final answer.
	// When extraction fails, strategies fall back to the raw response text
	// rather than leaving this empty.
	Answer string `json:"answer"`

	// FullResponse is the unmodified model completion.
	FullResponse string `json:"full_response"`

	// HasReasoning reports whether the strategy elicited an explicit
	// reasoning trace from the model.
	HasReasoning bool `json:"has_reasoning"`

	// Reasoning is the extracted reasoning trace, empty when HasReasoning
	// is false.
	Reasoning string `json:"reasoning,omitempty"`

	// Metadata carries strategy-specific details.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// MetricResult is one scored metric: a numeric score plus the judge's (or a
// deterministic scorer's) explanation.
type MetricResult struct {
	Score       float64 `json:"score"`
	Explanation string  `json:"explanation"`
}

// Well-known metric names.
const (
	// MetricAccuracy is the judge-scored strict binary correctness metric
	// (0 or 1).
	MetricAccuracy = "accuracy"

	// MetricReasoningQuality is the judge-scored 1-10 reasoning quality
	// metric, computed only for responses carrying a reasoning trace.
	MetricReasoningQuality = "reasoning_quality"

	// MetricLexicalSimilarity is the deterministic Levenshtein-based
	// similarity between the model answer and the reference answer.
	MetricLexicalSimilarity = "lexical_similarity"
)

// EvaluationRecord is the scored outcome of one (question, strategy)
// evaluation attempt. A record is created exactly once per attempt and its
// answer fields never change afterwards; later metric amendment may append
// keys to Metrics but does not replace existing core fields.
type EvaluationRecord struct {
	// RecordID uniquely identifies this record across sessions and sinks.
	RecordID string `json:"record_id,omitempty"`

	QuestionID      string     `json:"question_id"`
	Question        string     `json:"question"`
	ReferenceAnswer string     `json:"reference_answer"`
	ModelAnswer     string     `json:"model_answer"`
	FullResponse    string     `json:"full_response"`
	HasReasoning    bool       `json:"has_reasoning"`
	Reasoning       string     `json:"reasoning,omitempty"`
	Strategy        string     `json:"strategy"`
	Category        string     `json:"category"`
	Difficulty      Difficulty `json:"difficulty"`

	// Metrics maps metric name to its result. Accuracy is always present;
	// reasoning quality only when the response carried reasoning.
	Metrics map[string]MetricResult `json:"metrics"`

	// Timestamp is fractional Unix seconds at record creation.
	Timestamp float64 `json:"timestamp"`
}

// Accuracy returns the record's accuracy metric and whether it is present
// and well-formed.
func (r *EvaluationRecord) Accuracy() (MetricResult, bool) {
	m, ok := r.Metrics[MetricAccuracy]
	return m, ok
}
