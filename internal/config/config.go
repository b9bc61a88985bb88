// Package config provides configuration loading and structs for the lexembed server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug   bool          `yaml:"debug"`
	Server  ServerConfig  `yaml:"server"`
	Model   ModelConfig   `yaml:"model"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// ModelConfig describes the pretrained encoder and how requests are fed to it.
type ModelConfig struct {
	Name              string   `yaml:"name"`
	ModelPath         string   `yaml:"model_path"`
	VocabPath         string   `yaml:"vocab_path"`
	TokenizerPath     string   `yaml:"tokenizer_path"`
	SharedLibraryPath string   `yaml:"shared_library_path"`
	HiddenSize        int      `yaml:"hidden_size"`
	MaxTokens         int      `yaml:"max_tokens"`
	BatchSize         int      `yaml:"batch_size"`
	Lowercase         bool     `yaml:"lowercase"`
	Devices           []string `yaml:"devices"`
	InputNames        []string `yaml:"input_names"`
	OutputName        string   `yaml:"output_name"`
	CacheSize         int      `yaml:"cache_size"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled *bool  `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// EnabledOrDefault returns whether metrics are served; defaults to true when unset.
func (m *MetricsConfig) EnabledOrDefault() bool {
	if m.Enabled != nil {
		return *m.Enabled
	}
	return true
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Model.ModelPath = expandPath(cfg.Model.ModelPath, configDir)
	cfg.Model.VocabPath = expandPath(cfg.Model.VocabPath, configDir)
	if cfg.Model.TokenizerPath != "" {
		cfg.Model.TokenizerPath = expandPath(cfg.Model.TokenizerPath, configDir)
	}
	if cfg.Model.SharedLibraryPath != "" {
		cfg.Model.SharedLibraryPath = expandPath(cfg.Model.SharedLibraryPath, configDir)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a config populated only with defaults. Used when no config file exists.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Validate rejects settings the embedding pipeline cannot run with.
func Validate(cfg *Config) error {
	if cfg.Model.MaxTokens < 2 {
		return fmt.Errorf("invalid config: model.max_tokens must be at least 2, got %d", cfg.Model.MaxTokens)
	}
	if cfg.Model.BatchSize < 1 {
		return fmt.Errorf("invalid config: model.batch_size must be positive, got %d", cfg.Model.BatchSize)
	}
	if cfg.Model.HiddenSize < 1 {
		return fmt.Errorf("invalid config: model.hidden_size must be positive, got %d", cfg.Model.HiddenSize)
	}
	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid config: server.port out of range: %d", cfg.Server.Port)
	}
	if !strings.HasPrefix(cfg.Metrics.Path, "/") {
		return fmt.Errorf("invalid config: metrics.path must start with '/', got %q", cfg.Metrics.Path)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
