package strategies

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cotbench/cotbench/internal/ports"
	"github.com/cotbench/cotbench/internal/testutils"
)

// stubExamples is a canned ExampleSource.
type stubExamples struct {
	examples []ports.Example
	err      error
}

func (s *stubExamples) Similar(_ context.Context, _ string, k int) ([]ports.Example, error) {
	if s.err != nil {
		return nil, s.err
	}
	if k > len(s.examples) {
		k = len(s.examples)
	}
	return s.examples[:k], nil
}

var arithmeticExamples = &stubExamples{examples: []ports.Example{
	{Question: "3+3=?", Answer: "6"},
	{Question: "5+5=?", Answer: "10"},
}}

func TestExtractAnswer(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     string
	}{
		{"explicit answer marker", "Adding them gives four. The answer is 4.", "4"},
		{"answer colon marker", "Answer: Paris", "Paris"},
		{"trailing number", "First we add 2 and 2, which gives 4", "4"},
		{"last sentence fallback", "It depends. Paris is the capital of France.", "Paris is the capital of France"},
		{"json passthrough", `{"result": [1, 2, 3]}`, `{"result": [1, 2, 3]}`},
		{"truncated json passthrough", `{"result": [1, 2`, `{"result": [1, 2`},
		{"empty input", "", ""},
		{"whole response fallback", "maybe", "maybe"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractAnswer(tt.response))
		})
	}
}

func TestSplitReasoningAndAnswer(t *testing.T) {
	response := "First, note that 2+2 means adding 2 twice.\nThat gives us 4.\nThe answer is 4."
	reasoning, answer := splitReasoningAndAnswer(response)
	assert.Equal(t, "4", answer)
	assert.Contains(t, reasoning, "adding 2 twice")
	assert.NotContains(t, reasoning, "The answer is")

	// No marker: last line is the answer, the rest is reasoning.
	reasoning, answer = splitReasoningAndAnswer("Step one.\nStep two.\n42")
	assert.Equal(t, "42", answer)
	assert.Equal(t, "Step one.\nStep two.", reasoning)
}

func TestBaseline(t *testing.T) {
	b := NewBaseline()
	assert.Equal(t, "baseline", b.Name())

	prompt, err := b.GeneratePrompt(context.Background(), "What is 2+2?")
	require.NoError(t, err)
	assert.Equal(t, "What is 2+2?", prompt, "question passes through untouched")

	resp := b.ProcessResponse("The answer is 4.")
	assert.Equal(t, "4", resp.Answer)
	assert.False(t, resp.HasReasoning)
	assert.Empty(t, resp.Reasoning)
}

func TestZeroShot(t *testing.T) {
	z := NewZeroShot("")
	assert.Equal(t, "zero_shot", z.Name())

	prompt, err := z.GeneratePrompt(context.Background(), "What is 2+2?")
	require.NoError(t, err)
	assert.Equal(t, "What is 2+2?\nLet's think step by step.", prompt)

	resp := z.ProcessResponse("2+2 means adding 2 twice.\nThe answer is 4.")
	assert.Equal(t, "4", resp.Answer)
	assert.True(t, resp.HasReasoning)
	assert.Contains(t, resp.Reasoning, "adding 2 twice")
}

func TestFewShotPromptFormat(t *testing.T) {
	f, err := NewFewShot(arithmeticExamples, 2)
	require.NoError(t, err)
	assert.Equal(t, "few_shot", f.Name())

	prompt, err := f.GeneratePrompt(context.Background(), "2+2=?")
	require.NoError(t, err)
	assert.Equal(t, "Q: 3+3=?\nA: 6\n\nQ: 5+5=?\nA: 10\n\nQ: 2+2=?\nA:", prompt)
}

func TestFewShotRetrievalErrorPropagates(t *testing.T) {
	f, err := NewFewShot(&stubExamples{err: errors.New("index offline")}, 2)
	require.NoError(t, err)

	_, err = f.GeneratePrompt(context.Background(), "2+2=?")
	assert.Error(t, err)
}

func TestFewShotResponseHasNoReasoning(t *testing.T) {
	f, err := NewFewShot(arithmeticExamples, 2)
	require.NoError(t, err)

	resp := f.ProcessResponse("4")
	assert.Equal(t, "4", resp.Answer)
	assert.False(t, resp.HasReasoning)
}

func TestAutoCoTGeneratesDemonstrations(t *testing.T) {
	client := testutils.NewMockLLMClient("answer-model")
	client.AddResponse(testutils.MockResponse{
		Pattern:  "3+3=?",
		Response: "Let's think step by step. Three plus three is six.",
	})
	client.AddResponse(testutils.MockResponse{
		Pattern:  "5+5=?",
		Response: "Five plus five is ten.", // missing prefix, must be added
	})

	a, err := NewAutoCoT(arithmeticExamples, client, 2, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, "auto_cot", a.Name())

	prompt, err := a.GeneratePrompt(context.Background(), "2+2=?")
	require.NoError(t, err)

	assert.Contains(t, prompt, "Q: 3+3=?\nA: Let's think step by step. Three plus three is six.")
	assert.Contains(t, prompt, "Q: 5+5=?\nA: Let's think step by step. Five plus five is ten.")
	assert.True(t, strings.HasSuffix(prompt, "Q: 2+2=?\nA:"))
	assert.Equal(t, 2, client.CallCount(), "one demonstration call per example")
}

func TestAutoCoTDemonstrationFallback(t *testing.T) {
	client := testutils.NewMockLLMClient("answer-model")
	client.AddResponse(testutils.MockResponse{Err: errors.New("model down")})

	a, err := NewAutoCoT(arithmeticExamples, client, 1, zaptest.NewLogger(t))
	require.NoError(t, err)

	prompt, err := a.GeneratePrompt(context.Background(), "2+2=?")
	require.NoError(t, err, "demonstration failure never fails the prompt")
	assert.Contains(t, prompt, "Let's think step by step.")
	assert.Contains(t, prompt, "the answer is 6")
}

func TestAutoCoTResponseKeepsWholeCompletion(t *testing.T) {
	client := testutils.NewMockLLMClient("answer-model")
	a, err := NewAutoCoT(arithmeticExamples, client, 2, zaptest.NewLogger(t))
	require.NoError(t, err)

	resp := a.ProcessResponse("  Let's think step by step. 2+2 is 4. The answer is 4.  ")
	assert.Equal(t, "Let's think step by step. 2+2 is 4. The answer is 4.", resp.Answer)
	assert.True(t, resp.HasReasoning)
	assert.Equal(t, resp.Answer, resp.Reasoning)
}

func TestAutoReasonEmbedsChain(t *testing.T) {
	reasoner := testutils.NewMockLLMClient("reasoning-model")
	reasoner.AddResponse(testutils.MockResponse{
		Pattern:  "What is 2+2?",
		Response: "1. The question asks for a sum.\n2. Add the operands.",
	})

	a, err := NewAutoReason(reasoner, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, "auto_reason", a.Name())

	prompt, err := a.GeneratePrompt(context.Background(), "What is 2+2?")
	require.NoError(t, err)
	assert.Contains(t, prompt, "What is 2+2?")
	assert.Contains(t, prompt, "Reasoning trace:\n1. The question asks for a sum.")
}

func TestAutoReasonChainFallback(t *testing.T) {
	reasoner := testutils.NewMockLLMClient("reasoning-model")
	reasoner.AddResponse(testutils.MockResponse{Err: errors.New("unavailable")})

	a, err := NewAutoReason(reasoner, zaptest.NewLogger(t))
	require.NoError(t, err)

	prompt, err := a.GeneratePrompt(context.Background(), "What is 2+2?")
	require.NoError(t, err)
	assert.Contains(t, prompt, "Identify what the question asks")
}

func TestCombinedPromptLayersAllTechniques(t *testing.T) {
	reasoner := testutils.NewMockLLMClient("reasoning-model")
	reasoner.AddResponse(testutils.MockResponse{
		Pattern:  "3+3=?",
		Response: "Break the sum into known parts.",
	})
	reasoner.AddResponse(testutils.MockResponse{
		Pattern:  "5+5=?",
		Response: "Double the operand.",
	})

	c, err := NewCombined(arithmeticExamples, reasoner, 2, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, "combined", c.Name())

	prompt, err := c.GeneratePrompt(context.Background(), "2+2=?")
	require.NoError(t, err)

	assert.Contains(t, prompt, "Q: 3+3=?\nA: Break the sum into known parts.\nThe answer is 6.")
	assert.Contains(t, prompt, "Q: 5+5=?\nA: Double the operand.\nThe answer is 10.")
	assert.True(t, strings.HasSuffix(prompt, "Q: 2+2=?\nA: Let's think step by step."))
}

func TestCombinedResponseSplitsReasoning(t *testing.T) {
	reasoner := testutils.NewMockLLMClient("reasoning-model")
	c, err := NewCombined(arithmeticExamples, reasoner, 2, zaptest.NewLogger(t))
	require.NoError(t, err)

	resp := c.ProcessResponse("Two plus two groups the units.\nThe answer is 4.")
	assert.Equal(t, "4", resp.Answer)
	assert.True(t, resp.HasReasoning)
}

func TestStrategyMetadataCarriesDetails(t *testing.T) {
	z := NewZeroShot("")
	resp := z.ProcessResponse("The answer is 4.")

	details, ok := resp.Metadata["strategy_details"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "zero_shot", details["name"])
	assert.Equal(t, DefaultCoTSuffix, details["prompt_suffix"])
}
