// Package config loads application configuration from
// ~/.scholia/config.yaml, with environment-variable overrides under the
// SCHOLIA_ prefix. A missing config file is created with defaults on first
// load.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Search  SearchConfig  `mapstructure:"search" yaml:"search"`
	Server  ServerConfig  `mapstructure:"server" yaml:"server"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
}

// SearchConfig tunes the live pipeline.
type SearchConfig struct {
	// MaxDiscoveryResults caps how many candidate URLs discovery returns.
	MaxDiscoveryResults int `mapstructure:"max_discovery_results" yaml:"max_discovery_results"`
	// MaxParallelFetches bounds in-flight page fetches.
	MaxParallelFetches int `mapstructure:"max_parallel_fetches" yaml:"max_parallel_fetches"`
	// PerPageTimeoutSeconds is the deadline applied to each page fetch.
	PerPageTimeoutSeconds int `mapstructure:"per_page_timeout_seconds" yaml:"per_page_timeout_seconds"`
	// DefaultTopN is the result count when the caller does not specify one.
	DefaultTopN int `mapstructure:"default_top_n" yaml:"default_top_n"`
	// RespectRobots fronts each fetch with a robots.txt check.
	RespectRobots bool `mapstructure:"respect_robots" yaml:"respect_robots"`
	// CacheTTLMinutes is the response cache entry lifetime.
	CacheTTLMinutes int `mapstructure:"cache_ttl_minutes" yaml:"cache_ttl_minutes"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port int    `mapstructure:"port" yaml:"port"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `mapstructure:"level" yaml:"level"`
	// Format is "console" for human-readable output or "json".
	Format string `mapstructure:"format" yaml:"format"`
}

// Default returns the configuration used when no file or overrides exist.
func Default() *Config {
	return &Config{
		Search: SearchConfig{
			MaxDiscoveryResults:   50,
			MaxParallelFetches:    8,
			PerPageTimeoutSeconds: 10,
			DefaultTopN:           10,
			RespectRobots:         true,
			CacheTTLMinutes:       5,
		},
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8475,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads configuration from ~/.scholia/config.yaml, creating it with
// defaults if absent.
func Load() (*Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}
	return LoadFromPath(filepath.Join(homeDir, ".scholia", "config.yaml"))
}

// LoadFromPath reads configuration from path and merges environment
// overrides such as SCHOLIA_SEARCH_MAX_PARALLEL_FETCHES. A missing file is
// created with defaults first.
func LoadFromPath(path string) (*Config, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := writeConfigFile(path, Default()); err != nil {
			return nil, fmt.Errorf("failed to write default config: %w", err)
		}
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("SCHOLIA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Search.MaxDiscoveryResults <= 0 {
		return fmt.Errorf("max_discovery_results must be positive, got %d", c.Search.MaxDiscoveryResults)
	}
	if c.Search.MaxParallelFetches <= 0 {
		return fmt.Errorf("max_parallel_fetches must be positive, got %d", c.Search.MaxParallelFetches)
	}
	if c.Search.PerPageTimeoutSeconds <= 0 {
		return fmt.Errorf("per_page_timeout_seconds must be positive, got %d", c.Search.PerPageTimeoutSeconds)
	}
	if c.Search.DefaultTopN <= 0 {
		return fmt.Errorf("default_top_n must be positive, got %d", c.Search.DefaultTopN)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Server.Port)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level %q, must be one of: debug, info, warn, error", c.Logging.Level)
	}
	if c.Logging.Format != "console" && c.Logging.Format != "json" {
		return fmt.Errorf("invalid log format %q, must be console or json", c.Logging.Format)
	}
	return nil
}

func writeConfigFile(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
