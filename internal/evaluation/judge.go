// Package evaluation implements the scoring half of the harness: the judge
// that grades model answers via a second LLM, the deterministic lexical
// similarity metric, and the session-scoped aggregator that owns evaluation
// records in memory and derives per-strategy statistics from them.
package evaluation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"text/template"

	"github.com/go-playground/validator/v10"

	"github.com/cotbench/cotbench/internal/domain"
	"github.com/cotbench/cotbench/internal/ports"
)

// Judge scoring parameters. The accuracy metric is strict binary
// correctness; reasoning quality is a 1-10 integer scale.
const (
	accuracyMin = 0.0
	accuracyMax = 1.0

	reasoningMin = 1.0
	reasoningMax = 10.0

	// judgeTemperature keeps scoring consistent across repeated calls.
	judgeTemperature = 0.3

	// judgeMaxTokens leaves room for an explanation without letting the
	// judge ramble.
	judgeMaxTokens = 512
)

var accuracyPromptTmpl = template.Must(template.New("accuracy").Parse(
	`You are grading an answer for strict correctness.

Question: {{.Question}}
Reference answer: {{.Reference}}
Candidate answer: {{.Candidate}}

Score 1 if the candidate answer is correct with respect to the reference
answer, and 0 if it is not. Partial credit is not allowed.

Respond with JSON only, in exactly this format:
{"score": <0 or 1>, "explanation": "<brief justification>"}`))

var reasoningPromptTmpl = template.Must(template.New("reasoning").Parse(
	`You are assessing the quality of a reasoning trace.

Question: {{.Question}}
Reasoning trace: {{.Candidate}}

Consider clarity, logical soundness, and whether the steps are justified.
Score an integer from 1 (very poor reasoning) to 10 (excellent reasoning).

Respond with JSON only, in exactly this format:
{"score": <1-10>, "explanation": "<brief justification>"}`))

// judgeVerdict is the structured response expected from the judge model.
type judgeVerdict struct {
	Score       float64 `json:"score"`
	Explanation string  `json:"explanation" validate:"required"`
}

// Judge grades answers by delegating to a judge-model client. It is
// stateless and safe for concurrent use.
type Judge struct {
	client   ports.LLMClient
	validate *validator.Validate
}

// NewJudge creates a Judge backed by the given model client.
func NewJudge(client ports.LLMClient) (*Judge, error) {
	if client == nil {
		return nil, fmt.Errorf("judge client cannot be nil")
	}
	return &Judge{client: client, validate: validator.New()}, nil
}

// ScoreAccuracy grades a candidate answer against the reference answer on
// the strict binary scale. Scoring never fails: a judge transport error or
// unparseable judge output degrades to a zero-score result carrying a
// diagnostic explanation, because a formatting quirk in judge output must
// not abort a batch run.
func (j *Judge) ScoreAccuracy(ctx context.Context, question, reference, candidate string) domain.MetricResult {
	prompt, err := renderJudgePrompt(accuracyPromptTmpl, question, reference, candidate)
	if err != nil {
		return degraded(fmt.Sprintf("failed to build judge prompt: %v", err))
	}
	return j.score(ctx, prompt, accuracyMin, accuracyMax)
}

// ScoreReasoning grades a reasoning trace on the 1-10 scale, with the same
// degradation behavior as ScoreAccuracy.
func (j *Judge) ScoreReasoning(ctx context.Context, question, reasoning string) domain.MetricResult {
	prompt, err := renderJudgePrompt(reasoningPromptTmpl, question, "", reasoning)
	if err != nil {
		return degraded(fmt.Sprintf("failed to build judge prompt: %v", err))
	}
	return j.score(ctx, prompt, reasoningMin, reasoningMax)
}

func (j *Judge) score(ctx context.Context, prompt string, min, max float64) domain.MetricResult {
	raw, err := j.client.Complete(ctx, prompt, ports.GenerateOptions{
		Temperature: judgeTemperature,
		MaxTokens:   judgeMaxTokens,
	})
	if err != nil {
		return degraded(fmt.Sprintf("judge call failed: %v", err))
	}

	verdict, err := j.parseVerdict(raw)
	if err != nil {
		return degraded(fmt.Sprintf("unparseable judge output: %v", err))
	}

	score := verdict.Score
	if score < min {
		score = min
	}
	if score > max {
		score = max
	}
	return domain.MetricResult{Score: score, Explanation: verdict.Explanation}
}

// parseVerdict extracts the structured verdict from the raw judge output.
// It tolerates responses wrapped in code-fence markers and falls back to
// regex extraction of the score when JSON decoding fails.
func (j *Judge) parseVerdict(raw string) (judgeVerdict, error) {
	jsonStr := extractJSON(raw)
	if jsonStr != "" {
		var v judgeVerdict
		if err := json.Unmarshal([]byte(jsonStr), &v); err == nil {
			if err := j.validate.Struct(v); err == nil {
				return v, nil
			}
			// Score present but explanation missing: keep the score.
			return judgeVerdict{Score: v.Score, Explanation: "judge omitted explanation"}, nil
		}
	}

	if score, ok := extractScore(raw); ok {
		return judgeVerdict{Score: score, Explanation: "score recovered from malformed judge output"}, nil
	}
	return judgeVerdict{}, fmt.Errorf("no score found in %d-char response", len(raw))
}

func degraded(diagnostic string) domain.MetricResult {
	return domain.MetricResult{Score: 0, Explanation: diagnostic}
}

func renderJudgePrompt(tmpl *template.Template, question, reference, candidate string) (string, error) {
	var buf bytes.Buffer
	err := tmpl.Execute(&buf, struct {
		Question  string
		Reference string
		Candidate string
	}{question, reference, candidate})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

var scorePattern = regexp.MustCompile(`"score"\s*:\s*(-?[0-9]+(?:\.[0-9]+)?)`)

// extractScore recovers a numeric score from judge output whose JSON failed
// to decode (truncated explanation strings are the usual culprit).
func extractScore(raw string) (float64, bool) {
	m := scorePattern.FindStringSubmatch(raw)
	if m == nil {
		return 0, false
	}
	var score float64
	if _, err := fmt.Sscanf(m[1], "%f", &score); err != nil {
		return 0, false
	}
	return score, true
}

// extractJSON locates a JSON object inside a response that may carry
// markdown fences or surrounding prose. It returns the empty string when no
// balanced object is found.
func extractJSON(response string) string {
	response = strings.TrimSpace(response)

	if i := strings.Index(response, "```json"); i != -1 {
		rest := response[i+7:]
		if end := strings.Index(rest, "```"); end != -1 {
			return strings.TrimSpace(rest[:end])
		}
	}
	if i := strings.Index(response, "```"); i != -1 {
		rest := response[i+3:]
		if nl := strings.Index(rest, "\n"); nl != -1 {
			rest = rest[nl+1:]
		}
		if end := strings.Index(rest, "```"); end != -1 {
			candidate := strings.TrimSpace(rest[:end])
			if strings.HasPrefix(candidate, "{") {
				return candidate
			}
		}
	}

	start := strings.Index(response, "{")
	if start == -1 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(response); i++ {
		c := response[i]
		if escaped {
			escaped = false
			continue
		}
		switch {
		case c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return response[start : i+1]
			}
		}
	}
	return ""
}
