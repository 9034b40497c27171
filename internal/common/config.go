package common

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"

	"github.com/ternarybob/dlq-recover/internal/interfaces"
)

// Config represents the pipeline-wide configuration (§6 "Configuration").
// It is shared by all three components - each binary only reads the sections
// relevant to its stage.
type Config struct {
	Environment string        `toml:"environment" validate:"omitempty,oneof=development production"`
	Logging     LoggingConfig `toml:"logging"`
	Storage     StorageConfig `toml:"storage"`
	Monitor     MonitorConfig `toml:"monitor"`
	Analyzer    AnalyzerConfig `toml:"analyzer"`
	Executor    ExecutorConfig `toml:"executor"`
	Claude      ClaudeConfig  `toml:"claude"`
	Features    FeatureConfig `toml:"features"`
}

// LoggingConfig controls the structured logger (§6 log schema).
type LoggingConfig struct {
	Level      string   `toml:"level" validate:"omitempty,oneof=trace debug info warn error"`
	Output     []string `toml:"output"`      // "stdout", "file"
	TimeFormat string   `toml:"time_format"` // default "15:04:05.000"
}

// StorageConfig points at the BadgerDB database backing the Ledger, the
// classification Record store and the Semantic-Cache (§3, §5 "Shared state").
type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration.
type BadgerConfig struct {
	Path           string `toml:"path" validate:"required"`
	ResetOnStartup bool   `toml:"reset_on_startup"`
}

// MonitorConfig holds every option the Monitor consults (§6).
type MonitorConfig struct {
	DLQNamePattern     string `toml:"dlq_name_pattern"`     // default "-dlq"
	MaxMessagesPerPoll int    `toml:"max_messages_per_poll"` // default 10
	VisibilityTimeoutS int    `toml:"visibility_timeout_s"`  // default 300
	LongPollWaitS      int    `toml:"long_poll_wait_s"`      // default 5-10
	MaxRetriesMonitor  int    `toml:"max_retries_monitor"`   // hard-cap in Ledger path, default 3
	Schedule           string `toml:"schedule"`              // cron expression, default "*/5 * * * *"
	LedgerTTLDays      int    `toml:"ledger_ttl_days"`       // default 7
	SystemicWindowMS   int    `toml:"systemic_window_ms"`    // default 900_000 (deployment lookback)
}

// AnalyzerConfig holds every option the Analyzer consults (§6). Whether the
// LLM classification stage runs at all is a pipeline-wide feature flag, see
// FeatureConfig.
type AnalyzerConfig struct {
	ConfidenceThreshold float64 `toml:"confidence_threshold" validate:"gte=0,lte=1"` // default 0.85
	SystemicMinSimilar  int     `toml:"systemic_min_similar"`                        // default 10
	CacheTTLHours       int     `toml:"cache_ttl_hours"`                             // default 1
	RecordTTLDays       int     `toml:"record_ttl_days"`                             // default 30
}

// ExecutorConfig holds every option the Executor consults (§6). Whether
// auto-replay and incident integration are enabled are pipeline-wide feature
// flags, see FeatureConfig.
type ExecutorConfig struct {
	MaxRetriesExecutor int    `toml:"max_retries_executor"` // hard-cap in Retry handler, default 5
	BackoffBaseS       int    `toml:"backoff_base_s"`       // default 30
	BackoffMaxS        int    `toml:"backoff_max_s"`        // default 900
	ProjectName        string `toml:"project_name" validate:"required"` // used in incident source id and dedup key
}

// ClaudeConfig contains the LLM classification stage's model configuration.
type ClaudeConfig struct {
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`       // default "claude-haiku-4-5-20251001"
	MaxTokens   int     `toml:"max_tokens"`  // default llm_max_tokens
	Temperature float32 `toml:"temperature"` // default 0.2
	TimeoutMS   int     `toml:"timeout_ms"`  // default 10_000
}

// FeatureConfig holds the pipeline's boolean feature flags (§6).
type FeatureConfig struct {
	AutoReplayEnabled          bool `toml:"auto_replay_enabled"`
	LLMClassificationEnabled   bool `toml:"llm_classification_enabled"`
	IncidentIntegrationEnabled bool `toml:"incident_integration_enabled"`
}

// NewDefaultConfig creates a configuration carrying every default named in §6.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Logging: LoggingConfig{
			Level:      "info",
			Output:     []string{"stdout"},
			TimeFormat: "15:04:05.000",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data/dlq-recover.badger",
			},
		},
		Monitor: MonitorConfig{
			DLQNamePattern:     "-dlq",
			MaxMessagesPerPoll: 10,
			VisibilityTimeoutS: 300,
			LongPollWaitS:      10,
			MaxRetriesMonitor:  3,
			Schedule:           "*/5 * * * *",
			LedgerTTLDays:      7,
			SystemicWindowMS:   900_000,
		},
		Analyzer: AnalyzerConfig{
			ConfidenceThreshold: 0.85,
			SystemicMinSimilar:  10,
			CacheTTLHours:       1,
			RecordTTLDays:       30,
		},
		Executor: ExecutorConfig{
			MaxRetriesExecutor: 5,
			BackoffBaseS:       30,
			BackoffMaxS:        900,
			ProjectName:        "dlq-recover",
		},
		Claude: ClaudeConfig{
			Model:       "claude-haiku-4-5-20251001",
			MaxTokens:   512,
			Temperature: 0.2,
			TimeoutMS:   10_000,
		},
		Features: FeatureConfig{
			AutoReplayEnabled:          true,
			LLMClassificationEnabled:   true,
			IncidentIntegrationEnabled: true,
		},
	}
}

// LoadFromFile loads configuration from a single TOML file, falling back to
// defaults when path is empty.
func LoadFromFile(kvStorage interfaces.KeyValueStorage, path string) (*Config, error) {
	config := NewDefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if kvStorage != nil {
		ctx := context.Background()
		if apiKey, err := kvStorage.Get(ctx, "anthropic_api_key"); err == nil && apiKey != "" {
			config.Claude.APIKey = apiKey
		}
	}

	applyEnvOverrides(config)

	if err := validator.New().Struct(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config.
// Environment variables take priority over file and default values.
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("DLQ_ENV"); env != "" {
		config.Environment = env
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		config.Claude.APIKey = key
	}
	if v := os.Getenv("DLQ_DLQ_NAME_PATTERN"); v != "" {
		config.Monitor.DLQNamePattern = v
	}
	if v := os.Getenv("DLQ_MAX_MESSAGES_PER_POLL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Monitor.MaxMessagesPerPoll = n
		}
	}
	if v := os.Getenv("DLQ_CONFIDENCE_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.Analyzer.ConfidenceThreshold = f
		}
	}
	if v := os.Getenv("DLQ_LLM_CLASSIFICATION_ENABLED"); v != "" {
		config.Features.LLMClassificationEnabled = v == "true"
	}
}

// ResolveAPIKey resolves an API key with priority: env var > KV store > config fallback.
func ResolveAPIKey(ctx context.Context, kvStorage interfaces.KeyValueStorage, envVar, configFallback string) (string, error) {
	if envValue := os.Getenv(envVar); envValue != "" {
		return envValue, nil
	}
	if kvStorage != nil {
		if apiKey, err := kvStorage.Get(ctx, "anthropic_api_key"); err == nil && apiKey != "" {
			return apiKey, nil
		}
	}
	if configFallback != "" {
		return configFallback, nil
	}
	return "", fmt.Errorf("API key not found in %s, KV store, or config", envVar)
}

// MonitorVisibilityTimeout returns the Monitor's configured visibility window as a duration.
func (c *Config) MonitorVisibilityTimeout() time.Duration {
	return time.Duration(c.Monitor.VisibilityTimeoutS) * time.Second
}

// MonitorLongPollWait returns the Monitor's configured long-poll wait as a duration.
func (c *Config) MonitorLongPollWait() time.Duration {
	return time.Duration(c.Monitor.LongPollWaitS) * time.Second
}

// IsProduction reports whether the pipeline is running in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
