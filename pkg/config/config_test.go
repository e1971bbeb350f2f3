package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmgilman/go/errors"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Listen != ":3001" {
		t.Errorf("expected :3001, got %s", cfg.Listen)
	}
	if cfg.Cache.DefaultTTL != 10*time.Minute {
		t.Errorf("expected 10m TTL, got %v", cfg.Cache.DefaultTTL)
	}
	if cfg.Cache.LargeResponseThreshold != 500 {
		t.Errorf("expected threshold 500, got %d", cfg.Cache.LargeResponseThreshold)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoad(t *testing.T) {
	t.Setenv("TEST_ANTHROPIC_KEY", "sk-ant-test")
	t.Setenv("TEST_PASSWORD", "hunter2")

	content := `
listen: ":9090"
db_path: "test.db"
log:
  level: debug
  format: console
auth:
  password: ${TEST_PASSWORD}
  jwt_secret: secret
  api_keys: ["k1"]
llm:
  api_key: ${TEST_ANTHROPIC_KEY}
  model: claude-test
cache:
  default_ttl: 30m
  preview_size: 80
  id_prefix: resp_
rate_limit:
  enabled: false
cors:
  allowed_origins: ["chrome-extension://abc"]
`
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Listen != ":9090" {
		t.Errorf("expected :9090, got %s", cfg.Listen)
	}
	if cfg.LLM.APIKey != "sk-ant-test" {
		t.Errorf("env var not expanded: got %s", cfg.LLM.APIKey)
	}
	if cfg.Auth.Password != "hunter2" {
		t.Errorf("env var not expanded: got %s", cfg.Auth.Password)
	}
	if cfg.Cache.DefaultTTL != 30*time.Minute {
		t.Errorf("expected 30m TTL, got %v", cfg.Cache.DefaultTTL)
	}
	if cfg.Cache.PreviewSize != 80 {
		t.Errorf("expected preview size 80, got %d", cfg.Cache.PreviewSize)
	}
	if cfg.Cache.LargeResponseThreshold != 500 {
		t.Errorf("default threshold should survive partial cache block, got %d", cfg.Cache.LargeResponseThreshold)
	}
	if cfg.Cache.IDPrefix != "resp_" {
		t.Errorf("expected resp_ prefix, got %s", cfg.Cache.IDPrefix)
	}
	if cfg.LLM.AnthropicVersion != "2023-06-01" {
		t.Errorf("expected default anthropic version, got %s", cfg.LLM.AnthropicVersion)
	}
	if cfg.RateLimit.Enabled {
		t.Error("expected rate limit disabled")
	}
	if len(cfg.CORS.AllowedOrigins) != 1 || cfg.CORS.AllowedOrigins[0] != "chrome-extension://abc" {
		t.Errorf("unexpected origins: %v", cfg.CORS.AllowedOrigins)
	}
}

func TestLoadMissing(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	if err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadInvalidCache(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("cache:\n  preview_size: -1\n"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if errors.GetCode(err) != errors.CodeInvalidConfig {
		t.Errorf("expected %s, got %s", errors.CodeInvalidConfig, errors.GetCode(err))
	}
}
