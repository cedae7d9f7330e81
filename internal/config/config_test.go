package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Search.MaxDiscoveryResults != 50 {
		t.Errorf("expected max_discovery_results 50, got %d", cfg.Search.MaxDiscoveryResults)
	}
	if cfg.Search.MaxParallelFetches != 8 {
		t.Errorf("expected max_parallel_fetches 8, got %d", cfg.Search.MaxParallelFetches)
	}
	if cfg.Search.PerPageTimeoutSeconds != 10 {
		t.Errorf("expected per_page_timeout_seconds 10, got %d", cfg.Search.PerPageTimeoutSeconds)
	}
	if !cfg.Search.RespectRobots {
		t.Error("expected robots checking to be enabled by default")
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("expected log level 'info', got '%s'", cfg.Logging.Level)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("default config must validate: %v", err)
	}
}

func TestLoadFromPathCreatesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}

	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected config file to be created: %v", err)
	}
	if cfg.Search.DefaultTopN != 10 {
		t.Errorf("expected default_top_n 10, got %d", cfg.Search.DefaultTopN)
	}
}

func TestLoadFromPathReadsExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `search:
  max_discovery_results: 25
  max_parallel_fetches: 4
  per_page_timeout_seconds: 5
  default_top_n: 3
  respect_robots: false
  cache_ttl_minutes: 1
server:
  host: 0.0.0.0
  port: 9000
logging:
  level: debug
  format: json
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}

	if cfg.Search.MaxParallelFetches != 4 {
		t.Errorf("expected max_parallel_fetches 4, got %d", cfg.Search.MaxParallelFetches)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("expected port 9000, got %d", cfg.Server.Port)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("expected format json, got %s", cfg.Logging.Format)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero parallel fetches", func(c *Config) { c.Search.MaxParallelFetches = 0 }},
		{"negative discovery results", func(c *Config) { c.Search.MaxDiscoveryResults = -1 }},
		{"zero page timeout", func(c *Config) { c.Search.PerPageTimeoutSeconds = 0 }},
		{"zero top n", func(c *Config) { c.Search.DefaultTopN = 0 }},
		{"port out of range", func(c *Config) { c.Server.Port = 70000 }},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
