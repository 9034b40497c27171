package common

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ternarybob/dlq-recover/internal/interfaces"
)

func TestNewDefaultConfig_MatchesDocumentedDefaults(t *testing.T) {
	cfg := NewDefaultConfig()

	if cfg.Monitor.MaxRetriesMonitor != 3 {
		t.Errorf("Monitor.MaxRetriesMonitor = %d, want 3", cfg.Monitor.MaxRetriesMonitor)
	}
	if cfg.Executor.MaxRetriesExecutor != 5 {
		t.Errorf("Executor.MaxRetriesExecutor = %d, want 5", cfg.Executor.MaxRetriesExecutor)
	}
	if cfg.Analyzer.ConfidenceThreshold != 0.85 {
		t.Errorf("Analyzer.ConfidenceThreshold = %v, want 0.85", cfg.Analyzer.ConfidenceThreshold)
	}
	if cfg.Analyzer.SystemicMinSimilar != 10 {
		t.Errorf("Analyzer.SystemicMinSimilar = %d, want 10", cfg.Analyzer.SystemicMinSimilar)
	}
	if cfg.Executor.BackoffBaseS != 30 || cfg.Executor.BackoffMaxS != 900 {
		t.Errorf("backoff base/max = %d/%d, want 30/900", cfg.Executor.BackoffBaseS, cfg.Executor.BackoffMaxS)
	}
}

func TestMonitorVisibilityTimeout_ConvertsSecondsToDuration(t *testing.T) {
	cfg := NewDefaultConfig()
	if got := cfg.MonitorVisibilityTimeout(); got != 300*time.Second {
		t.Errorf("MonitorVisibilityTimeout() = %v, want 300s", got)
	}
}

func TestIsProduction(t *testing.T) {
	cfg := NewDefaultConfig()
	if cfg.IsProduction() {
		t.Error("default environment should not be production")
	}
	cfg.Environment = "production"
	if !cfg.IsProduction() {
		t.Error("expected IsProduction true after setting environment")
	}
}

func TestLoadFromFile_EmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := LoadFromFile(nil, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Executor.ProjectName != "dlq-recover" {
		t.Errorf("ProjectName = %q, want dlq-recover default", cfg.Executor.ProjectName)
	}
}

func TestLoadFromFile_OverridesFromTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	toml := `
environment = "production"

[monitor]
max_messages_per_poll = 25

[executor]
project_name = "custom-project"
`
	if err := os.WriteFile(path, []byte(toml), 0644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg, err := LoadFromFile(nil, path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Environment != "production" {
		t.Errorf("Environment = %q, want production", cfg.Environment)
	}
	if cfg.Monitor.MaxMessagesPerPoll != 25 {
		t.Errorf("MaxMessagesPerPoll = %d, want 25", cfg.Monitor.MaxMessagesPerPoll)
	}
	if cfg.Executor.ProjectName != "custom-project" {
		t.Errorf("ProjectName = %q, want custom-project", cfg.Executor.ProjectName)
	}
}

func TestLoadFromFile_MissingFileErrors(t *testing.T) {
	if _, err := LoadFromFile(nil, "/nonexistent/path/config.toml"); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestApplyEnvOverrides_TakesPriorityOverFileAndDefaults(t *testing.T) {
	os.Setenv("DLQ_MAX_MESSAGES_PER_POLL", "42")
	os.Setenv("DLQ_CONFIDENCE_THRESHOLD", "0.5")
	defer os.Unsetenv("DLQ_MAX_MESSAGES_PER_POLL")
	defer os.Unsetenv("DLQ_CONFIDENCE_THRESHOLD")

	cfg := NewDefaultConfig()
	applyEnvOverrides(cfg)

	if cfg.Monitor.MaxMessagesPerPoll != 42 {
		t.Errorf("MaxMessagesPerPoll = %d, want 42", cfg.Monitor.MaxMessagesPerPoll)
	}
	if cfg.Analyzer.ConfidenceThreshold != 0.5 {
		t.Errorf("ConfidenceThreshold = %v, want 0.5", cfg.Analyzer.ConfidenceThreshold)
	}
}

type stubKV struct {
	values map[string]string
}

func (s *stubKV) Get(ctx context.Context, key string) (string, error) {
	if v, ok := s.values[key]; ok {
		return v, nil
	}
	return "", fmt.Errorf("not found")
}
func (s *stubKV) GetPair(ctx context.Context, key string) (*interfaces.KeyValuePair, error) {
	return nil, fmt.Errorf("not implemented")
}
func (s *stubKV) Set(ctx context.Context, key, value, description string) error { return nil }
func (s *stubKV) Upsert(ctx context.Context, key, value, description string) (bool, error) {
	return false, nil
}
func (s *stubKV) Delete(ctx context.Context, key string) error    { return nil }
func (s *stubKV) DeleteAll(ctx context.Context) error              { return nil }
func (s *stubKV) List(ctx context.Context) ([]interfaces.KeyValuePair, error) {
	return nil, nil
}
func (s *stubKV) GetAll(ctx context.Context) (map[string]string, error) { return nil, nil }
func (s *stubKV) ListByPrefix(ctx context.Context, prefix string) ([]interfaces.KeyValuePair, error) {
	return nil, nil
}

func TestResolveAPIKey_PriorityEnvThenKVThenConfig(t *testing.T) {
	kv := &stubKV{values: map[string]string{"anthropic_api_key": "kv-key"}}

	// KV store wins over config fallback when env var unset.
	key, err := ResolveAPIKey(context.Background(), kv, "ANTHROPIC_API_KEY", "config-key")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key != "kv-key" {
		t.Errorf("ResolveAPIKey = %q, want kv-key", key)
	}

	// Env var wins over everything.
	os.Setenv("ANTHROPIC_API_KEY", "env-key")
	defer os.Unsetenv("ANTHROPIC_API_KEY")
	key, err = ResolveAPIKey(context.Background(), kv, "ANTHROPIC_API_KEY", "config-key")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key != "env-key" {
		t.Errorf("ResolveAPIKey = %q, want env-key", key)
	}
}

func TestResolveAPIKey_FallsBackToConfigWhenNothingElseAvailable(t *testing.T) {
	key, err := ResolveAPIKey(context.Background(), nil, "ANTHROPIC_API_KEY", "config-key")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key != "config-key" {
		t.Errorf("ResolveAPIKey = %q, want config-key", key)
	}
}

func TestResolveAPIKey_ErrorsWhenNoSourceHasAKey(t *testing.T) {
	if _, err := ResolveAPIKey(context.Background(), nil, "ANTHROPIC_API_KEY", ""); err == nil {
		t.Fatal("expected error when no API key is available anywhere")
	}
}
