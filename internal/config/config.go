// ABOUTME: Configuration loading and parsing for chatd
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete chatd configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	Lifecycle LifecycleConfig `yaml:"lifecycle"`
	Sync      SyncConfig      `yaml:"sync"`
	Suggest   SuggestConfig   `yaml:"suggest"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// AuthConfig holds admin authentication configuration
type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"-"`

	TokenTTLRaw string `yaml:"token_ttl"`
}

// LifecycleConfig holds conversation housekeeping configuration
type LifecycleConfig struct {
	MaxActive       int           `yaml:"max_active"`
	ArchiveAfter    time.Duration `yaml:"-"`
	PurgeAfter      time.Duration `yaml:"-"`
	JanitorInterval time.Duration `yaml:"-"`

	// Raw string values for YAML unmarshaling
	ArchiveAfterRaw    string `yaml:"archive_after"`
	PurgeAfterRaw      string `yaml:"purge_after"`
	JanitorIntervalRaw string `yaml:"janitor_interval"`
}

// SyncConfig holds message synchronization configuration
type SyncConfig struct {
	PollInterval time.Duration `yaml:"-"`

	PollIntervalRaw string `yaml:"poll_interval"`
}

// SuggestConfig holds AI reply suggestion configuration
type SuggestConfig struct {
	Enabled bool   `yaml:"enabled"`
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}

	if c.Lifecycle.MaxActive < 0 {
		return fmt.Errorf("lifecycle.max_active must not be negative")
	}

	if c.Suggest.Enabled && c.Suggest.Model == "" {
		return fmt.Errorf("suggest.model is required when suggest is enabled")
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"auth.token_ttl", cfg.Auth.TokenTTLRaw, &cfg.Auth.TokenTTL},
		{"lifecycle.archive_after", cfg.Lifecycle.ArchiveAfterRaw, &cfg.Lifecycle.ArchiveAfter},
		{"lifecycle.purge_after", cfg.Lifecycle.PurgeAfterRaw, &cfg.Lifecycle.PurgeAfter},
		{"lifecycle.janitor_interval", cfg.Lifecycle.JanitorIntervalRaw, &cfg.Lifecycle.JanitorInterval},
		{"sync.poll_interval", cfg.Sync.PollIntervalRaw, &cfg.Sync.PollInterval},
	}

	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		*f.dst = d
	}

	return nil
}
