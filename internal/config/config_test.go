package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Engine.MaxWords != 30 {
		t.Fatalf("max words = %d, want 30", cfg.Engine.MaxWords)
	}
	if cfg.Storage.DatabasePath != filepath.Join(dir, "mindshift.db") {
		t.Fatalf("db path = %q", cfg.Storage.DatabasePath)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	content := `
engine:
  max_words: 12
llm:
  provider: gemini
  model: gemini-2.5-pro
  timeout: 5s
`
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Engine.MaxWords != 12 {
		t.Fatalf("max words = %d, want 12", cfg.Engine.MaxWords)
	}
	if cfg.LLM.Model != "gemini-2.5-pro" {
		t.Fatalf("model = %q", cfg.LLM.Model)
	}
	if cfg.LLMTimeout() != 5*time.Second {
		t.Fatalf("timeout = %v, want 5s", cfg.LLMTimeout())
	}
}

func TestLoadRejectsNonPositiveThresholds(t *testing.T) {
	dir := t.TempDir()
	content := "engine:\n  max_words: -3\n  max_auto_advance: 0\n"
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Engine.MaxWords != 30 || cfg.Engine.MaxAutoAdvance != 5 {
		t.Fatalf("thresholds not clamped: %+v", cfg.Engine)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("MINDSHIFT_API_KEY", "key-from-env")
	t.Setenv("MINDSHIFT_MODEL", "gemini-2.5-pro")
	t.Setenv("MINDSHIFT_DB_PATH", "/tmp/override.db")

	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LLM.APIKey != "key-from-env" {
		t.Fatalf("api key = %q", cfg.LLM.APIKey)
	}
	if cfg.LLM.Model != "gemini-2.5-pro" {
		t.Fatalf("model = %q", cfg.LLM.Model)
	}
	if cfg.Storage.DatabasePath != "/tmp/override.db" {
		t.Fatalf("db path = %q", cfg.Storage.DatabasePath)
	}
}

func TestGeminiKeyFallback(t *testing.T) {
	t.Setenv("MINDSHIFT_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "gemini-env-key")

	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LLM.APIKey != "gemini-env-key" {
		t.Fatalf("api key = %q, want the GEMINI_API_KEY fallback", cfg.LLM.APIKey)
	}
}

func TestLLMTimeoutDefault(t *testing.T) {
	cfg := &Config{}
	if cfg.LLMTimeout() != 15*time.Second {
		t.Fatalf("timeout = %v, want 15s default", cfg.LLMTimeout())
	}
}
