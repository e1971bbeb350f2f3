package config

import (
	"fmt"
	"os"
	"time"

	"github.com/jmgilman/go/errors"
	"gopkg.in/yaml.v3"

	"github.com/pario-ai/fcagent/pkg/models"
)

// Config holds all fcagent configuration.
type Config struct {
	Listen    string               `yaml:"listen"`
	DBPath    string               `yaml:"db_path"`
	Log       LogConfig            `yaml:"log"`
	Auth      AuthConfig           `yaml:"auth"`
	LLM       LLMConfig            `yaml:"llm"`
	Cache     models.CacheSettings `yaml:"cache"`
	RateLimit RateLimitConfig      `yaml:"rate_limit"`
	CORS      CORSConfig           `yaml:"cors"`
}

// LogConfig selects the log level and encoding ("json" or "console").
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// AuthConfig controls the single-user authentication scheme.
type AuthConfig struct {
	Password   string        `yaml:"password"`
	JWTSecret  string        `yaml:"jwt_secret"`
	TokenTTL   time.Duration `yaml:"token_ttl"`
	CookieName string        `yaml:"cookie_name"`
	APIKeys    []string      `yaml:"api_keys"`
}

// LLMConfig defines the upstream Anthropic-compatible API.
type LLMConfig struct {
	URL              string        `yaml:"url"`
	APIKey           string        `yaml:"api_key"`
	Model            string        `yaml:"model"`
	MaxTokens        int           `yaml:"max_tokens"`
	AnthropicVersion string        `yaml:"anthropic_version"`
	Timeout          time.Duration `yaml:"timeout"`
}

// RateLimitConfig is a global token bucket in front of the API.
type RateLimitConfig struct {
	Enabled           bool    `yaml:"enabled"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// CORSConfig lists origins allowed to call the API. "*" allows any origin.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Listen: ":3001",
		DBPath: "fcagent.db",
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Auth: AuthConfig{
			TokenTTL:   24 * time.Hour,
			CookieName: "fca-agent-auth",
		},
		LLM: LLMConfig{
			URL:              "https://api.anthropic.com",
			Model:            "claude-3-haiku-20240307",
			MaxTokens:        1024,
			AnthropicVersion: "2023-06-01",
			Timeout:          60 * time.Second,
		},
		Cache: models.CacheSettings{
			DefaultTTL:             10 * time.Minute,
			PreviewSize:            100,
			LargeResponseThreshold: 500,
			IDPrefix:               "cache_",
			CleanupInterval:        30 * time.Minute,
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerSecond: 10,
			Burst:             20,
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"http://localhost:3001"},
		},
	}
}

// Load reads a YAML config file and expands environment variables.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail at runtime.
func (c *Config) Validate() error {
	if c.Cache.DefaultTTL <= 0 || c.Cache.CleanupInterval <= 0 {
		return errors.New(errors.CodeInvalidConfig, "cache durations must be positive")
	}
	if c.Cache.PreviewSize <= 0 || c.Cache.LargeResponseThreshold <= 0 {
		return errors.New(errors.CodeInvalidConfig, "cache sizes must be positive")
	}
	if c.Cache.IDPrefix == "" {
		return errors.New(errors.CodeInvalidConfig, "cache id_prefix must not be empty")
	}
	if c.Auth.TokenTTL <= 0 {
		return errors.New(errors.CodeInvalidConfig, "auth token_ttl must be positive")
	}
	if c.RateLimit.Enabled && (c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst <= 0) {
		return errors.New(errors.CodeInvalidConfig, "rate_limit requires positive requests_per_second and burst")
	}
	return nil
}
