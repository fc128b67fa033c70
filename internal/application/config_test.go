package application

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalConfig = `
answer:
  provider: openai
  api_key: test-key
`

func TestParse_MinimalConfigGetsDefaults(t *testing.T) {
	cfg, err := Parse([]byte(minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.Answer.Provider)
	assert.Equal(t, DefaultMaxRetries, cfg.Answer.MaxRetries)
	assert.Equal(t, DefaultRetryDelaySeconds, cfg.Answer.RetryDelaySeconds)
	assert.Equal(t, DefaultResultsDir, cfg.Storage.ResultsDir)
	assert.Equal(t, DefaultIndexDir, cfg.Storage.IndexDir)
	assert.Equal(t, DefaultConversationLogDir, cfg.Storage.ConversationLogDir)
	assert.Equal(t, DefaultBackupDBPath, cfg.Storage.BackupDBPath)
	assert.Equal(t, DefaultFewShotExamples, cfg.Run.FewShotExamples)
}

func TestParse_JudgeAndReasoningInheritAnswer(t *testing.T) {
	cfg, err := Parse([]byte(`
answer:
  provider: anthropic
  api_key: test-key
  model: answer-model
judge:
  model: judge-model
`))
	require.NoError(t, err)

	assert.Equal(t, "anthropic", cfg.Judge.Provider, "judge should inherit the answer provider")
	assert.Equal(t, "test-key", cfg.Judge.APIKey, "judge should inherit the answer key")
	assert.Equal(t, "judge-model", cfg.Judge.Model, "judge model override should survive inheritance")
	assert.Equal(t, "anthropic", cfg.Reasoning.Provider, "reasoning should inherit the answer provider")
	assert.Empty(t, cfg.Reasoning.Model, "reasoning model stays empty when not configured")
}

func TestParse_ExplicitJudgeProviderNotOverwritten(t *testing.T) {
	cfg, err := Parse([]byte(`
answer:
  provider: openai
  api_key: answer-key
judge:
  provider: google
  api_key: judge-key
`))
	require.NoError(t, err)

	assert.Equal(t, "google", cfg.Judge.Provider)
	assert.Equal(t, "judge-key", cfg.Judge.APIKey)
}

func TestParse_ExpandsEnvironmentVariables(t *testing.T) {
	t.Setenv("COTBENCH_TEST_KEY", "secret-from-env")

	cfg, err := Parse([]byte(`
answer:
  provider: openai
  api_key: ${COTBENCH_TEST_KEY}
`))
	require.NoError(t, err)

	assert.Equal(t, "secret-from-env", cfg.Answer.APIKey)
	assert.Equal(t, "secret-from-env", cfg.Embedding.APIKey, "embedding key falls back to answer key")
}

func TestParse_RejectsMissingProvider(t *testing.T) {
	_, err := Parse([]byte(`
answer:
  api_key: test-key
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "answer.provider")
}

func TestParse_RejectsMissingAPIKey(t *testing.T) {
	_, err := Parse([]byte(`
answer:
  provider: openai
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "answer.api_key")
}

func TestParse_RejectsUnknownProvider(t *testing.T) {
	_, err := Parse([]byte(`
answer:
  provider: cohere
  api_key: test-key
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
}

func TestParse_InvalidYAML(t *testing.T) {
	_, err := Parse([]byte("answer: [not a mapping"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing config")
}

func TestModelConfig_Durations(t *testing.T) {
	m := ModelConfig{RetryDelaySeconds: 5, TimeoutSeconds: 30}
	assert.Equal(t, "5s", m.RetryDelay().String())
	assert.Equal(t, "30s", m.Timeout().String())
}
