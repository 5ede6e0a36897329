package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ProviderType represents the language model provider
type ProviderType string

const (
	ProviderOpenAI ProviderType = "openai"
	ProviderOllama ProviderType = "ollama"
)

// DirName is the directory holding pyrefine files, both globally and per project.
const DirName = ".pyrefine"

// Config holds all configuration for pyrefine
type Config struct {
	// Provider selects the chat completion API used to obtain proposals
	Provider ProviderType `yaml:"provider" env:"PYREFINE_PROVIDER"`

	// Model is the chat model name
	Model string `yaml:"model" env:"PYREFINE_MODEL"`

	// BaseURL is the API root; empty uses the provider default
	BaseURL string `yaml:"base_url" env:"PYREFINE_BASE_URL"`

	// APIKey authenticates against the provider
	APIKey string `yaml:"api_key" env:"PYREFINE_API_KEY"`

	// Temperature for the chat request
	Temperature float64 `yaml:"temperature" env:"PYREFINE_TEMPERATURE"`

	// RequestTimeout bounds a single model call
	RequestTimeout time.Duration `yaml:"request_timeout" env:"PYREFINE_REQUEST_TIMEOUT"`

	// Formatting
	FormatEnabled  bool          `yaml:"format_enabled" env:"PYREFINE_FORMAT_ENABLED"`
	FormatCommands [][]string    `yaml:"format_commands"`
	FormatTimeout  time.Duration `yaml:"format_timeout" env:"PYREFINE_FORMAT_TIMEOUT"`

	// Response cache
	CacheEnabled    bool   `yaml:"cache_enabled" env:"PYREFINE_CACHE_ENABLED"`
	CacheDir        string `yaml:"cache_dir" env:"PYREFINE_CACHE_DIR"`
	CacheMaxEntries int    `yaml:"cache_max_entries" env:"PYREFINE_CACHE_MAX_ENTRIES"`

	// Concurrency is the number of files refactored at once in batch mode
	Concurrency int `yaml:"concurrency" env:"PYREFINE_CONCURRENCY"`

	// Logging
	LogLevel string `yaml:"log_level" env:"PYREFINE_LOG_LEVEL"`
	LogJSON  bool   `yaml:"log_json" env:"PYREFINE_LOG_JSON"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Provider:       ProviderOpenAI,
		Model:          "gpt-4o-mini",
		BaseURL:        "",
		APIKey:         "",
		Temperature:    0.2,
		RequestTimeout: 2 * time.Minute,
		FormatEnabled:  true,
		FormatCommands: [][]string{
			{"black", "-q", "-"},
			{"isort", "-q", "-"},
		},
		FormatTimeout:   30 * time.Second,
		CacheEnabled:    true,
		CacheDir:        defaultCacheDir(),
		CacheMaxEntries: 500,
		Concurrency:     4,
		LogLevel:        "info",
		LogJSON:         false,
	}
}

func defaultCacheDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(DirName, "cache")
	}
	return filepath.Join(home, DirName, "cache")
}

// GlobalConfigFilePath returns the global config file path (~/.pyrefine/config.yaml)
func GlobalConfigFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(DirName, "config.yaml")
	}
	return filepath.Join(home, DirName, "config.yaml")
}

// ProjectConfigFilePath returns the project-level config file path (./.pyrefine/config.yaml)
func ProjectConfigFilePath() string {
	return filepath.Join(DirName, "config.yaml")
}

// EffectiveFilePath returns the highest-priority config file that exists, or
// "" when only defaults and environment apply.
func EffectiveFilePath() string {
	for _, path := range []string{ProjectConfigFilePath(), GlobalConfigFilePath()} {
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path
		}
	}
	return ""
}

// Load reads configuration with the following priority (highest to lowest):
// 1. Project-level config (./.pyrefine/config.yaml)
// 2. Environment variables
// 3. Global config (~/.pyrefine/config.yaml)
// 4. Defaults
func Load() (*Config, error) {
	cfg := DefaultConfig()

	if err := mergeFile(cfg, GlobalConfigFilePath()); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := mergeFile(cfg, ProjectConfigFilePath()); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile reads configuration from a specific YAML file path
func LoadFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// mergeFile overlays a YAML file onto cfg. A missing file is not an error.
func mergeFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// Save writes the configuration to the specified YAML file path.
// It creates parent directories if they don't exist.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	// The file may hold an API key.
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", path, err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides to the config
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PYREFINE_PROVIDER"); v != "" {
		cfg.Provider = ProviderType(v)
	}
	if v := os.Getenv("PYREFINE_MODEL"); v != "" {
		cfg.Model = v
	}
	if v := os.Getenv("PYREFINE_BASE_URL"); v != "" {
		cfg.BaseURL = v
	}
	if v := os.Getenv("PYREFINE_API_KEY"); v != "" {
		cfg.APIKey = v
	} else if v := os.Getenv("OPENAI_API_KEY"); v != "" && cfg.APIKey == "" {
		cfg.APIKey = v
	}
	if v := os.Getenv("PYREFINE_TEMPERATURE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Temperature = f
		}
	}
	if v := os.Getenv("PYREFINE_REQUEST_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.RequestTimeout = d
		}
	}
	if v := os.Getenv("PYREFINE_FORMAT_ENABLED"); v != "" {
		cfg.FormatEnabled = parseBool(v)
	}
	if v := os.Getenv("PYREFINE_FORMAT_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.FormatTimeout = d
		}
	}
	if v := os.Getenv("PYREFINE_CACHE_ENABLED"); v != "" {
		cfg.CacheEnabled = parseBool(v)
	}
	if v := os.Getenv("PYREFINE_CACHE_DIR"); v != "" {
		cfg.CacheDir = v
	}
	if v := os.Getenv("PYREFINE_CACHE_MAX_ENTRIES"); v != "" {
		if i, err := strconv.Atoi(v); err == nil && i > 0 {
			cfg.CacheMaxEntries = i
		}
	}
	if v := os.Getenv("PYREFINE_CONCURRENCY"); v != "" {
		if i, err := strconv.Atoi(v); err == nil && i > 0 {
			cfg.Concurrency = i
		}
	}
	if v := os.Getenv("PYREFINE_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("PYREFINE_LOG_JSON"); v != "" {
		cfg.LogJSON = parseBool(v)
	}
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "1", "yes", "on":
		return true
	}
	return false
}

// Validate checks that the configuration has valid required fields
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderOpenAI, ProviderOllama:
		// Valid
	default:
		return fmt.Errorf("invalid provider: %s (must be 'openai' or 'ollama')", c.Provider)
	}

	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("model is required")
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive")
	}
	if c.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be positive")
	}
	if c.FormatEnabled {
		if c.FormatTimeout <= 0 {
			return fmt.Errorf("format_timeout must be positive")
		}
		for i, argv := range c.FormatCommands {
			if len(argv) == 0 || strings.TrimSpace(argv[0]) == "" {
				return fmt.Errorf("format_commands[%d] is empty", i)
			}
		}
	}
	if c.CacheEnabled {
		if c.CacheDir == "" {
			return fmt.Errorf("cache_dir is required when the cache is enabled")
		}
		if c.CacheMaxEntries <= 0 {
			return fmt.Errorf("cache_max_entries must be positive")
		}
	}
	return nil
}

// CacheFilePath returns the file the response cache persists to.
func (c *Config) CacheFilePath() string {
	return filepath.Join(c.CacheDir, "responses.msgpack")
}
