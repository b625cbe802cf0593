// Package config provides configuration management for Recollect.
// Settings come from an optional YAML file (RECOLLECT_CONFIG_FILE)
// overridden by environment variables with the RECOLLECT_ prefix, with
// sensible defaults for everything.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration settings for the Recollect server.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Policy  PolicyConfig  `yaml:"policy"`
	Sweep   SweepConfig   `yaml:"sweep"`
}

// ServerConfig contains transport configuration. The HTTP listener is
// optional; the stdio transport is always available.
type ServerConfig struct {
	Host string `yaml:"host"` // HTTP host (default: 127.0.0.1)
	Port int    `yaml:"port"` // HTTP port; 0 disables the HTTP listener

	// APIToken enables bearer-token auth on the HTTP listener when
	// non-empty. The stdio transport never authenticates.
	APIToken string `yaml:"api_token"`

	// RatePerSec / RateBurst configure the per-client rate limiter.
	RatePerSec float64 `yaml:"rate_per_sec"` // default: 20
	RateBurst  int     `yaml:"rate_burst"`   // default: 40

	// MaxBodyBytes caps HTTP request bodies (default: 4 MiB).
	MaxBodyBytes int64 `yaml:"max_body_bytes"`
}

// StorageConfig contains database and capability configuration.
type StorageConfig struct {
	// DSN is the PostgreSQL connection string.
	DSN string `yaml:"dsn"`

	// VectorEnabled turns on the pgvector embedding column and the
	// vector/hybrid search modes. Embedding writes are rejected when
	// this is off.
	VectorEnabled bool `yaml:"vector_enabled"`

	// CompressRawText stores entry raw text gzip-compressed. When
	// false, raw text is stored as plaintext. Exactly one of the two
	// representations is ever persisted.
	CompressRawText bool `yaml:"compress_raw_text"`

	// MaxContentChars bounds entry content (default: 20000).
	MaxContentChars int `yaml:"max_content_chars"`

	// MaxRawTextChars bounds entry raw text (default: 200000).
	MaxRawTextChars int `yaml:"max_raw_text_chars"`
}

// PolicyConfig contains write-time business rules.
type PolicyConfig struct {
	// AutoTag synthesizes namespace:<ns> and context:<id> tags on
	// every entry write.
	AutoTag bool `yaml:"auto_tag"`

	// RequireTags fails entry writes whose final tag set is empty.
	RequireTags bool `yaml:"require_tags"`

	// AllowRawText gates raw-text payloads on entry writes.
	AllowRawText bool `yaml:"allow_raw_text"`

	// LatestIDPrefix prefixes the deterministic id of "latest"
	// entries (default: "latest_", so a latest summary is stored
	// under "latest_summary").
	LatestIDPrefix string `yaml:"latest_id_prefix"`
}

// SweepConfig controls the periodic TTL sweep.
type SweepConfig struct {
	// Interval between expired-entry sweeps (default: 5m). Zero
	// disables the sweep.
	Interval time.Duration `yaml:"interval"`
}

// LoadConfig builds a Config from defaults, then the YAML file named
// by RECOLLECT_CONFIG_FILE (when set), then RECOLLECT_* environment
// variables. Later sources win.
func LoadConfig() (*Config, error) {
	cfg := defaultConfig()

	if path := os.Getenv("RECOLLECT_CONFIG_FILE"); path != "" {
		if err := applyFile(cfg, path); err != nil {
			return nil, err
		}
	}

	applyEnv(cfg)

	if cfg.Storage.MaxContentChars < 1 {
		return nil, fmt.Errorf("config: max_content_chars must be positive")
	}
	if cfg.Storage.MaxRawTextChars < 1 {
		return nil, fmt.Errorf("config: max_raw_text_chars must be positive")
	}
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "127.0.0.1",
			Port:         0,
			RatePerSec:   20,
			RateBurst:    40,
			MaxBodyBytes: 4 * 1024 * 1024,
		},
		Storage: StorageConfig{
			DSN:             "postgres://localhost/recollect?sslmode=disable",
			VectorEnabled:   false,
			CompressRawText: true,
			MaxContentChars: 20000,
			MaxRawTextChars: 200000,
		},
		Policy: PolicyConfig{
			AutoTag:        true,
			RequireTags:    false,
			AllowRawText:   true,
			LatestIDPrefix: "latest_",
		},
		Sweep: SweepConfig{
			Interval: 5 * time.Minute,
		},
	}
}

// applyFile overlays settings from a YAML file onto cfg.
func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

// applyEnv overlays RECOLLECT_* environment variables onto cfg.
func applyEnv(cfg *Config) {
	cfg.Server.Host = getEnv("RECOLLECT_HOST", cfg.Server.Host)
	cfg.Server.Port = getEnvInt("RECOLLECT_PORT", cfg.Server.Port)
	cfg.Server.APIToken = getEnv("RECOLLECT_API_TOKEN", cfg.Server.APIToken)
	cfg.Server.RatePerSec = getEnvFloat("RECOLLECT_RATE_PER_SEC", cfg.Server.RatePerSec)
	cfg.Server.RateBurst = getEnvInt("RECOLLECT_RATE_BURST", cfg.Server.RateBurst)
	cfg.Server.MaxBodyBytes = int64(getEnvInt("RECOLLECT_MAX_BODY_BYTES", int(cfg.Server.MaxBodyBytes)))

	cfg.Storage.DSN = getEnv("RECOLLECT_DATABASE_URL", cfg.Storage.DSN)
	cfg.Storage.VectorEnabled = getEnvBool("RECOLLECT_VECTOR_ENABLED", cfg.Storage.VectorEnabled)
	cfg.Storage.CompressRawText = getEnvBool("RECOLLECT_COMPRESS_RAW_TEXT", cfg.Storage.CompressRawText)
	cfg.Storage.MaxContentChars = getEnvInt("RECOLLECT_MAX_CONTENT_CHARS", cfg.Storage.MaxContentChars)
	cfg.Storage.MaxRawTextChars = getEnvInt("RECOLLECT_MAX_RAW_TEXT_CHARS", cfg.Storage.MaxRawTextChars)

	cfg.Policy.AutoTag = getEnvBool("RECOLLECT_AUTO_TAG", cfg.Policy.AutoTag)
	cfg.Policy.RequireTags = getEnvBool("RECOLLECT_REQUIRE_TAGS", cfg.Policy.RequireTags)
	cfg.Policy.AllowRawText = getEnvBool("RECOLLECT_ALLOW_RAW_TEXT", cfg.Policy.AllowRawText)
	cfg.Policy.LatestIDPrefix = getEnv("RECOLLECT_LATEST_ID_PREFIX", cfg.Policy.LatestIDPrefix)

	cfg.Sweep.Interval = getEnvDuration("RECOLLECT_SWEEP_INTERVAL", cfg.Sweep.Interval)
}

// getEnv retrieves a string environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns a
// default value. Unparseable values fall back to the default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat retrieves a float environment variable or returns a
// default value.
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvBool retrieves a boolean environment variable or returns a
// default value. Recognizes true/1/yes and false/0/no, case-insensitive.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		switch value {
		case "true", "1", "yes", "True", "TRUE", "Yes", "YES":
			return true
		case "false", "0", "no", "False", "FALSE", "No", "NO":
			return false
		}
	}
	return defaultValue
}

// getEnvDuration retrieves a duration environment variable (e.g. "5m")
// or returns a default value.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
