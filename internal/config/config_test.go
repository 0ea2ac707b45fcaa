package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaults(t *testing.T) {
	cfg := Default()

	if cfg.Adjustment.MaxAdjustment != 3.0 {
		t.Errorf("max_adjustment = %v, want 3.0", cfg.Adjustment.MaxAdjustment)
	}
	if cfg.Adjustment.RecentEntries != 3 {
		t.Errorf("recent_entries = %v, want 3", cfg.Adjustment.RecentEntries)
	}
	if cfg.Retrieval.SameTickerLimit != 3 {
		t.Errorf("same_ticker_limit = %v, want 3", cfg.Retrieval.SameTickerLimit)
	}
	if cfg.Compaction.BatchSize != 10 {
		t.Errorf("batch_size = %v, want 10", cfg.Compaction.BatchSize)
	}
	if cfg.ListenAddr() != "127.0.0.1:38710" {
		t.Errorf("listen addr = %q", cfg.ListenAddr())
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != Default().Server.Port {
		t.Errorf("port = %d, want default", cfg.Server.Port)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[server]
port = 9000

[llm]
provider = "ollama"
ollama_model = "llama3.2"

[adjustment]
max_adjustment = 2.0
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.LLM.Provider != "ollama" {
		t.Errorf("provider = %q, want ollama", cfg.LLM.Provider)
	}
	if cfg.Adjustment.MaxAdjustment != 2.0 {
		t.Errorf("max_adjustment = %v, want 2.0", cfg.Adjustment.MaxAdjustment)
	}
	// Untouched sections keep their defaults.
	if cfg.Compaction.BatchSize != 10 {
		t.Errorf("batch_size = %v, want default 10", cfg.Compaction.BatchSize)
	}
}

func TestLoadEnvKeyFallback(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-test-env")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LLM.AnthropicKey != "sk-test-env" {
		t.Errorf("anthropic key = %q, want env value", cfg.LLM.AnthropicKey)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[adjustment]
loss_threshold = 5.0
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error for positive loss_threshold")
	}
}
