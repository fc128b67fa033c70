package evaluation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLexicalSimilarity(t *testing.T) {
	tests := []struct {
		name      string
		answer    string
		reference string
		want      float64
	}{
		{
			name:      "identical text",
			answer:    "Paris",
			reference: "Paris",
			want:      1,
		},
		{
			name:      "case and whitespace differences fold away",
			answer:    "  PARIS  ",
			reference: "paris",
			want:      1,
		},
		{
			name:      "both empty",
			answer:    "",
			reference: "   ",
			want:      1,
		},
		{
			name:      "single edit over five runes",
			answer:    "pariz",
			reference: "paris",
			want:      0.8,
		},
		{
			name:      "nothing in common",
			answer:    "xyz",
			reference: "abc",
			want:      0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := LexicalSimilarity(tt.answer, tt.reference)
			assert.InDelta(t, tt.want, got.Score, 1e-9)
			assert.NotEmpty(t, got.Explanation)
		})
	}
}

func TestLexicalSimilarityNeverNegative(t *testing.T) {
	got := LexicalSimilarity("a", "zzzzzzzzzz")
	assert.GreaterOrEqual(t, got.Score, 0.0)
	assert.LessOrEqual(t, got.Score, 1.0)
}
