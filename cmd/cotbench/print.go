package main

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/cotbench/cotbench/internal/domain"
)

// printStrategyMetrics renders per-strategy aggregates as an aligned table.
// Strategies print in name order so output is stable across runs.
func printStrategyMetrics(out io.Writer, overall map[string]domain.StrategyMetrics) {
	if len(overall) == 0 {
		fmt.Fprintln(out, "no results")
		return
	}

	names := make([]string, 0, len(overall))
	for name := range overall {
		names = append(names, name)
	}
	sort.Strings(names)

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "STRATEGY\tQUESTIONS\tACCURACY\tREASONING\tLEXICAL")
	for _, name := range names {
		sm := overall[name]
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\n",
			name,
			sm.TotalQuestions,
			formatAverage(sm.Metrics[domain.MetricAccuracy]),
			formatAverage(sm.Metrics[domain.MetricReasoningQuality]),
			formatAverage(sm.Metrics[domain.MetricLexicalSimilarity]))
	}
	_ = w.Flush()

	for _, name := range names {
		printBreakdowns(out, name, overall[name])
	}
}

func formatAverage(avg domain.MetricAverage) string {
	if avg.Count == 0 {
		return "-"
	}
	return fmt.Sprintf("%.3f (n=%d)", avg.AverageScore, avg.Count)
}

func printBreakdowns(out io.Writer, strategy string, sm domain.StrategyMetrics) {
	if len(sm.DifficultyBreakdown) == 0 && len(sm.CategoryBreakdown) == 0 {
		return
	}
	fmt.Fprintf(out, "\n%s breakdowns:\n", strategy)

	if len(sm.DifficultyBreakdown) > 0 {
		keys := make([]string, 0, len(sm.DifficultyBreakdown))
		for d := range sm.DifficultyBreakdown {
			keys = append(keys, string(d))
		}
		sort.Strings(keys)
		for _, k := range keys {
			e := sm.DifficultyBreakdown[domain.Difficulty(k)]
			fmt.Fprintf(out, "  difficulty %s: accuracy %.3f (n=%d)\n", k, e.Accuracy, e.Count)
		}
	}
	if len(sm.CategoryBreakdown) > 0 {
		keys := make([]string, 0, len(sm.CategoryBreakdown))
		for c := range sm.CategoryBreakdown {
			keys = append(keys, c)
		}
		sort.Strings(keys)
		for _, k := range keys {
			e := sm.CategoryBreakdown[k]
			fmt.Fprintf(out, "  category %s: accuracy %.3f (n=%d)\n", k, e.Accuracy, e.Count)
		}
	}
}
