// Package application holds the harness configuration: YAML decoding,
// defaulting, and validation for the model providers, storage paths, and
// run parameters.
package application

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration for a harness run.
// API keys support ${VAR} expansion so config files can be committed
// without secrets.
type Config struct {
	// Answer configures the model under evaluation.
	Answer ModelConfig `yaml:"answer" validate:"required"`
	// Judge configures the model that scores responses. When the provider
	// is empty it falls back to the Answer configuration.
	Judge ModelConfig `yaml:"judge"`
	// Reasoning configures the model used by strategies that generate
	// reasoning chains before answering. Falls back to Answer when empty.
	Reasoning ModelConfig `yaml:"reasoning"`
	// Embedding configures the embedder backing the vector index.
	Embedding EmbeddingConfig `yaml:"embedding"`
	// Run holds execution parameters.
	Run RunConfig `yaml:"run"`
	// Storage holds filesystem and database locations.
	Storage StorageConfig `yaml:"storage"`
}

// ModelConfig selects a provider and model plus the resilience settings
// applied to its calls.
type ModelConfig struct {
	// Provider names the backing provider implementation.
	Provider string `yaml:"provider" validate:"omitempty,oneof=openai anthropic google"`
	// APIKey authenticates against the provider; ${VAR} references are
	// expanded from the environment.
	APIKey string `yaml:"api_key"`
	// Model overrides the provider's default model when set.
	Model string `yaml:"model"`
	// BaseURL overrides the provider endpoint, for OpenAI-compatible
	// gateways.
	BaseURL string `yaml:"base_url" validate:"omitempty,url"`
	// MaxRetries is the number of additional attempts after a failed call.
	MaxRetries int `yaml:"max_retries" validate:"min=0,max=10"`
	// RetryDelaySeconds is the fixed delay between attempts.
	RetryDelaySeconds int `yaml:"retry_delay_seconds" validate:"min=0,max=300"`
	// RequestsPerSecond caps the sustained call rate; zero disables the
	// limiter.
	RequestsPerSecond float64 `yaml:"requests_per_second" validate:"min=0"`
	// Burst allows short spikes above the sustained rate.
	Burst int `yaml:"burst" validate:"min=0"`
	// TimeoutSeconds bounds individual requests; zero means no timeout.
	TimeoutSeconds int `yaml:"timeout_seconds" validate:"min=0,max=3600"`
}

// EmbeddingConfig configures the embedder.
type EmbeddingConfig struct {
	// APIKey authenticates against the embeddings endpoint; falls back to
	// the answer model's key when empty.
	APIKey string `yaml:"api_key"`
	// Model selects the embedding model.
	Model string `yaml:"model"`
	// Dimension is the requested vector length. All index data on disk
	// must have been written at the same dimension.
	Dimension int `yaml:"dimension" validate:"min=0,max=4096"`
}

// RunConfig holds execution parameters for an evaluation run.
type RunConfig struct {
	// Strategies filters which prompting strategies run; empty runs all.
	Strategies []string `yaml:"strategies"`
	// MaxQuestions truncates the dataset; zero runs every question.
	MaxQuestions int `yaml:"max_questions" validate:"min=0"`
	// Concurrency bounds the worker pool; zero or one runs sequentially.
	Concurrency int `yaml:"concurrency" validate:"min=0,max=256"`
	// FewShotExamples is how many similar questions retrieval-based
	// strategies include in their prompts.
	FewShotExamples int `yaml:"few_shot_examples" validate:"min=0,max=20"`
}

// StorageConfig holds filesystem and database locations.
type StorageConfig struct {
	// DatasetPath is the JSON question file.
	DatasetPath string `yaml:"dataset_path"`
	// ResultsDir receives the merged results file and session summaries.
	ResultsDir string `yaml:"results_dir"`
	// IndexDir holds the persisted vector index.
	IndexDir string `yaml:"index_dir"`
	// ConversationLogDir holds per-strategy conversation logs.
	ConversationLogDir string `yaml:"conversation_log_dir"`
	// BackupDBPath is the SQLite backup database file.
	BackupDBPath string `yaml:"backup_db_path"`
}

// Configuration defaults.
const (
	DefaultResultsDir         = "results"
	DefaultIndexDir           = "vector_index"
	DefaultConversationLogDir = "conversation_logs"
	DefaultBackupDBPath       = "results/backup.db"
	DefaultMaxRetries         = 3
	DefaultRetryDelaySeconds  = 5
	DefaultFewShotExamples    = 2
)

// Load reads, expands, defaults, and validates the configuration at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return Parse(data)
}

// Parse decodes configuration from raw YAML.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	expandModel := func(m *ModelConfig) {
		m.APIKey = os.ExpandEnv(m.APIKey)
		if m.MaxRetries == 0 {
			m.MaxRetries = DefaultMaxRetries
		}
		if m.RetryDelaySeconds == 0 {
			m.RetryDelaySeconds = DefaultRetryDelaySeconds
		}
	}
	expandModel(&c.Answer)

	// Judge and reasoning inherit the answer configuration when not
	// configured, matching the common single-provider setup.
	if c.Judge.Provider == "" {
		judge := c.Answer
		judge.Model = c.Judge.Model
		c.Judge = judge
	} else {
		expandModel(&c.Judge)
	}
	if c.Reasoning.Provider == "" {
		reasoning := c.Answer
		reasoning.Model = c.Reasoning.Model
		c.Reasoning = reasoning
	} else {
		expandModel(&c.Reasoning)
	}

	c.Embedding.APIKey = os.ExpandEnv(c.Embedding.APIKey)
	if c.Embedding.APIKey == "" {
		c.Embedding.APIKey = c.Answer.APIKey
	}

	if c.Run.FewShotExamples == 0 {
		c.Run.FewShotExamples = DefaultFewShotExamples
	}
	if c.Storage.ResultsDir == "" {
		c.Storage.ResultsDir = DefaultResultsDir
	}
	if c.Storage.IndexDir == "" {
		c.Storage.IndexDir = DefaultIndexDir
	}
	if c.Storage.ConversationLogDir == "" {
		c.Storage.ConversationLogDir = DefaultConversationLogDir
	}
	if c.Storage.BackupDBPath == "" {
		c.Storage.BackupDBPath = DefaultBackupDBPath
	}
}

// Validate checks struct tags plus the cross-field rules tags cannot
// express.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Answer.Provider == "" {
		return fmt.Errorf("invalid config: answer.provider is required")
	}
	if c.Answer.APIKey == "" {
		return fmt.Errorf("invalid config: answer.api_key is required")
	}
	return nil
}

// RetryDelay returns the configured retry delay as a duration.
func (m ModelConfig) RetryDelay() time.Duration {
	return time.Duration(m.RetryDelaySeconds) * time.Second
}

// Timeout returns the configured request timeout as a duration.
func (m ModelConfig) Timeout() time.Duration {
	return time.Duration(m.TimeoutSeconds) * time.Second
}
