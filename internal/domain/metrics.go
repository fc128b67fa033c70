package domain

// MetricAverage is the mean of one metric over the records that carried a
// well-formed value for it. Count reports how many records contributed, which
// can be fewer than the strategy's total when some records degraded or were
// skipped.
type MetricAverage struct {
	AverageScore float64 `json:"average_score"`
	Count        int     `json:"count"`
}

// BreakdownEntry is the per-slice accuracy for one difficulty level or
// category.
type BreakdownEntry struct {
	Count    int     `json:"count"`
	Accuracy float64 `json:"accuracy"`
}

// StrategyMetrics is the aggregate view of one strategy's records. It is
// derived on demand from the current record set and never cached: the
// underlying records grow as a run progresses.
type StrategyMetrics struct {
	// TotalQuestions counts all records for the strategy, including records
	// whose accuracy metric was malformed or absent.
	TotalQuestions int `json:"total_questions"`

	// Metrics holds per-metric averages (accuracy always, reasoning quality
	// and lexical similarity when present on any record).
	Metrics map[string]MetricAverage `json:"metrics"`

	// DifficultyBreakdown slices accuracy by difficulty level; levels with
	// no records are omitted.
	DifficultyBreakdown map[Difficulty]BreakdownEntry `json:"difficulty_breakdown,omitempty"`

	// CategoryBreakdown slices accuracy by question category; empty
	// categories are omitted.
	CategoryBreakdown map[string]BreakdownEntry `json:"category_breakdown,omitempty"`
}
