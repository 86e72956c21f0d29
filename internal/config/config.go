// Package config loads and validates campchat configuration from
// <state-dir>/config.yaml, with environment-variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all campchat configuration.
type Config struct {
	// Relay endpoint configuration
	Relay RelayConfig `yaml:"relay"`

	// Session engine tuning
	Engine EngineConfig `yaml:"engine"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// RelayConfig configures the HTTP client for the backend proxy.
type RelayConfig struct {
	BaseURL string `yaml:"base_url"`
	Timeout string `yaml:"timeout"` // request/response round-trips, not the chat stream
}

// EngineConfig tunes the conversational session engine.
type EngineConfig struct {
	// Number of history turns forwarded with each request (pairs count as 2).
	HistoryWindow int `yaml:"history_window"`

	// Interval between thinking-indicator phrase rotations.
	ThinkingInterval string `yaml:"thinking_interval"`

	// Maximum suggested questions surfaced at once.
	SuggestionLimit int `yaml:"suggestion_limit"`

	// How long transient status messages stay visible.
	StatusTTL string `yaml:"status_ttl"`

	// Known registrant names offered by the camper name selector.
	CamperNames []string `yaml:"camper_names"`
}

// LoggingConfig controls the category file logger.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Categories map[string]bool `yaml:"categories"`
	Level      string          `yaml:"level"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Relay: RelayConfig{
			BaseURL: "http://localhost:3000/api",
			Timeout: "30s",
		},
		Engine: EngineConfig{
			HistoryWindow:    6,
			ThinkingInterval: "3s",
			SuggestionLimit:  3,
			StatusTTL:        "3s",
			CamperNames: []string{
				"Alex Thompson",
				"Jordan Martinez",
				"Taylor Kim",
				"Casey Johnson",
			},
		},
		Logging: LoggingConfig{
			DebugMode: false,
			Level:     "info",
		},
	}
}

// StateDir returns the campchat state directory (~/.campchat), creating is the
// caller's concern.
func StateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".campchat"
	}
	return filepath.Join(home, ".campchat")
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	return filepath.Join(StateDir(), "config.yaml")
}

// Load reads the config file at path, falling back to defaults when the file
// does not exist, then applies environment overrides and validates.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyEnvOverrides lets the environment win over the file for deploy-time
// settings.
func (c *Config) applyEnvOverrides() {
	if url := os.Getenv("CAMPCHAT_RELAY_URL"); url != "" {
		c.Relay.BaseURL = url
	}
	if timeout := os.Getenv("CAMPCHAT_RELAY_TIMEOUT"); timeout != "" {
		c.Relay.Timeout = timeout
	}
	if window := os.Getenv("CAMPCHAT_HISTORY_WINDOW"); window != "" {
		if n, err := strconv.Atoi(window); err == nil && n >= 0 {
			c.Engine.HistoryWindow = n
		}
	}
	if debug := os.Getenv("CAMPCHAT_DEBUG"); debug != "" {
		c.Logging.DebugMode = debug == "1" || debug == "true"
	}
}

// Validate checks the config for values the engine cannot run with.
func (c *Config) Validate() error {
	if c.Relay.BaseURL == "" {
		return fmt.Errorf("relay.base_url must not be empty")
	}
	if _, err := time.ParseDuration(c.Relay.Timeout); err != nil {
		return fmt.Errorf("relay.timeout invalid: %w", err)
	}
	if _, err := time.ParseDuration(c.Engine.ThinkingInterval); err != nil {
		return fmt.Errorf("engine.thinking_interval invalid: %w", err)
	}
	if _, err := time.ParseDuration(c.Engine.StatusTTL); err != nil {
		return fmt.Errorf("engine.status_ttl invalid: %w", err)
	}
	if c.Engine.HistoryWindow < 0 {
		return fmt.Errorf("engine.history_window must be >= 0")
	}
	if c.Engine.SuggestionLimit < 0 {
		return fmt.Errorf("engine.suggestion_limit must be >= 0")
	}
	return nil
}

// RelayTimeout returns the parsed relay round-trip timeout.
func (c *Config) RelayTimeout() time.Duration {
	d, err := time.ParseDuration(c.Relay.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// ThinkingInterval returns the parsed thinking-indicator rotation interval.
func (c *Config) ThinkingInterval() time.Duration {
	d, err := time.ParseDuration(c.Engine.ThinkingInterval)
	if err != nil {
		return 3 * time.Second
	}
	return d
}

// StatusTTL returns the parsed transient-status lifetime.
func (c *Config) StatusTTL() time.Duration {
	d, err := time.ParseDuration(c.Engine.StatusTTL)
	if err != nil {
		return 3 * time.Second
	}
	return d
}
