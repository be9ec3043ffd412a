// Package config loads mindshift configuration from <datadir>/config.yaml
// with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all mindshift configuration.
type Config struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Engine tuning
	Engine EngineConfig `yaml:"engine"`

	// LLM configuration for the AI assistance gateway
	LLM LLMConfig `yaml:"llm"`

	// Storage configuration
	Storage StorageConfig `yaml:"storage"`

	// Protocol data configuration
	Protocol ProtocolConfig `yaml:"protocol"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// EngineConfig tunes the transition engine and classifier.
type EngineConfig struct {
	// MaxWords is the word-count threshold beyond which an answer is
	// interrupted with a "please restate briefly" script. The original
	// behavior asserted this only implicitly, so it is configurable.
	MaxWords int `yaml:"max_words"`

	// MaxAutoAdvance bounds internal auto-continuation hops per turn.
	MaxAutoAdvance int `yaml:"max_auto_advance"`
}

// LLMConfig configures the text-completion provider.
type LLMConfig struct {
	Provider string `yaml:"provider"` // gemini, none
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	Timeout  string `yaml:"timeout"`
}

// StorageConfig configures the SQLite repositories.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// ProtocolConfig configures protocol data loading.
type ProtocolConfig struct {
	// OverridesPath points to an optional YAML file with per-step scripted
	// wording overrides, hot-reloaded at runtime.
	OverridesPath string `yaml:"overrides_path"`
}

// LoggingConfig configures categorized file logging.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Categories map[string]bool `yaml:"categories"`
	Level      string          `yaml:"level"`
}

// Default returns the default configuration rooted at the given data dir.
func Default(dataDir string) *Config {
	return &Config{
		Name:    "mindshift",
		Version: "1.0.0",
		Engine: EngineConfig{
			MaxWords:       30,
			MaxAutoAdvance: 5,
		},
		LLM: LLMConfig{
			Provider: "gemini",
			Model:    "gemini-2.5-flash",
			Timeout:  "15s",
		},
		Storage: StorageConfig{
			DatabasePath: filepath.Join(dataDir, "mindshift.db"),
		},
		Protocol: ProtocolConfig{
			OverridesPath: filepath.Join(dataDir, "overrides.yaml"),
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads <datadir>/config.yaml, falling back to defaults when the file
// is absent. Environment overrides are applied last.
func Load(dataDir string) (*Config, error) {
	cfg := Default(dataDir)

	path := filepath.Join(dataDir, "config.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.Engine.MaxWords <= 0 {
		cfg.Engine.MaxWords = 30
	}
	if cfg.Engine.MaxAutoAdvance <= 0 {
		cfg.Engine.MaxAutoAdvance = 5
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// applyEnvOverrides lets environment variables win over file values.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("MINDSHIFT_API_KEY"); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" && c.LLM.APIKey == "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv("MINDSHIFT_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv("MINDSHIFT_DB_PATH"); v != "" {
		c.Storage.DatabasePath = v
	}
}

// LLMTimeout parses the configured gateway timeout, with a bounded default.
func (c *Config) LLMTimeout() time.Duration {
	d, err := time.ParseDuration(c.LLM.Timeout)
	if err != nil || d <= 0 {
		return 15 * time.Second
	}
	return d
}
