// Package config provides configuration loading and validation for the
// workflow engine and its CLI.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Engine defaults; every value is overridable via environment or
// config file, never hardcoded at call sites.
const (
	DefaultStalenessWindow  = 24 * time.Hour
	DefaultAutosaveQuiet    = 2 * time.Second
	DefaultRetryMaxAttempts = 3
	DefaultRetryBaseDelay   = time.Second
	DefaultPort             = 8080
)

// Config holds runtime configuration. All fields are optional in the
// file; missing values fall back to environment variables, then
// defaults.
type Config struct {
	Port        int    `yaml:"port,omitempty"`
	DatabaseURL string `yaml:"database_url,omitempty"`
	APIKey      string `yaml:"api_key,omitempty"` // Gemini API key
	JWTSecret   string `yaml:"jwt_secret,omitempty"`

	// Engine tunables
	StalenessWindow  time.Duration `yaml:"staleness_window,omitempty"`
	AutosaveQuiet    time.Duration `yaml:"autosave_quiet_period,omitempty"`
	RetryMaxAttempts int           `yaml:"retry_max_attempts,omitempty"`
	RetryBaseDelay   time.Duration `yaml:"retry_base_delay,omitempty"`
}

// Load builds the effective configuration: file values (when path is
// non-empty) overridden by environment variables, with defaults filling
// the rest.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		loaded, err := loadFile(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	applyEnv(cfg)
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Defaults returns a configuration with every engine tunable at its
// default value, ignoring files and environment.
func Defaults() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// loadFile reads a YAML config file.
func loadFile(path string) (*Config, error) {
	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config YAML: %w", err)
	}
	return &cfg, nil
}

// applyEnv overrides file values with environment variables when set.
func applyEnv(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Port = port
		}
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		cfg.APIKey = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.JWTSecret = v
	}
	if v := os.Getenv("STALENESS_WINDOW"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.StalenessWindow = d
		}
	}
	if v := os.Getenv("AUTOSAVE_QUIET_PERIOD"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.AutosaveQuiet = d
		}
	}
	if v := os.Getenv("RETRY_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RetryMaxAttempts = n
		}
	}
	if v := os.Getenv("RETRY_BASE_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.RetryBaseDelay = d
		}
	}
}

func (c *Config) applyDefaults() {
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.StalenessWindow == 0 {
		c.StalenessWindow = DefaultStalenessWindow
	}
	if c.AutosaveQuiet == 0 {
		c.AutosaveQuiet = DefaultAutosaveQuiet
	}
	if c.RetryMaxAttempts == 0 {
		c.RetryMaxAttempts = DefaultRetryMaxAttempts
	}
	if c.RetryBaseDelay == 0 {
		c.RetryBaseDelay = DefaultRetryBaseDelay
	}
}

// Validate checks numeric ranges after merging.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("config error: 'port' must be in 1..65535, got %d", c.Port)
	}
	if c.StalenessWindow < 0 {
		return fmt.Errorf("config error: 'staleness_window' must be non-negative")
	}
	if c.AutosaveQuiet < 0 {
		return fmt.Errorf("config error: 'autosave_quiet_period' must be non-negative")
	}
	if c.RetryMaxAttempts < 1 {
		return fmt.Errorf("config error: 'retry_max_attempts' must be at least 1")
	}
	if c.RetryBaseDelay < 0 {
		return fmt.Errorf("config error: 'retry_base_delay' must be non-negative")
	}
	return nil
}
