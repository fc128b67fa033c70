package evaluation

import (
	"fmt"
	"strings"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/cases"

	"github.com/cotbench/cotbench/internal/domain"
)

var foldCaser = cases.Fold()

// LexicalSimilarity scores how close the model answer is to the reference
// answer as normalized Levenshtein similarity in [0, 1] over case-folded,
// whitespace-trimmed text. It is deterministic and complements the judge's
// accuracy verdict; it never replaces it.
func LexicalSimilarity(answer, reference string) domain.MetricResult {
	a := foldCaser.String(strings.TrimSpace(answer))
	b := foldCaser.String(strings.TrimSpace(reference))

	if a == b {
		return domain.MetricResult{
			Score:       1,
			Explanation: "answer matches reference after case folding",
		}
	}

	longest := len([]rune(a))
	if l := len([]rune(b)); l > longest {
		longest = l
	}
	if longest == 0 {
		return domain.MetricResult{Score: 1, Explanation: "both texts empty"}
	}

	dist := levenshtein.ComputeDistance(a, b)
	score := 1 - float64(dist)/float64(longest)
	if score < 0 {
		score = 0
	}
	return domain.MetricResult{
		Score:       score,
		Explanation: fmt.Sprintf("edit distance %d over length %d", dist, longest),
	}
}
