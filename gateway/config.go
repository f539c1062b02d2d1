package gateway

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/tailored-agentic-units/gateway/history"
	"github.com/tailored-agentic-units/gateway/prompt"
	"github.com/tailored-agentic-units/gateway/relay"
	"github.com/tailored-agentic-units/gateway/router"
	"github.com/tailored-agentic-units/gateway/sessions"
)

const (
	defaultListen   = "127.0.0.1:8080"
	defaultLogLevel = "info"
)

// Config holds initialization parameters for all gateway subsystems.
// Each section delegates to that subsystem's config-driven constructor.
type Config struct {
	Sessions sessions.Config `json:"sessions"`
	History  history.Config  `json:"history"`
	Prompts  prompt.Config   `json:"prompts"`
	Relay    relay.Config    `json:"relay"`
	Router   router.Config   `json:"router"`
	Listen   string          `json:"listen,omitempty"`
	LogLevel string          `json:"log_level,omitempty"` // debug, info, warn, or error.
}

// DefaultConfig returns a Config with sensible defaults for all subsystems.
func DefaultConfig() Config {
	return Config{
		Sessions: sessions.DefaultConfig(),
		History:  history.DefaultConfig(),
		Prompts:  prompt.DefaultConfig(),
		Relay:    relay.DefaultConfig(),
		Router:   router.DefaultConfig(),
		Listen:   defaultListen,
		LogLevel: defaultLogLevel,
	}
}

// SlogLevel maps the configured level name to a slog.Level. Unknown names
// fall back to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Merge applies non-zero values from source into c, delegating to each
// subsystem's Merge method.
func (c *Config) Merge(source *Config) {
	c.Sessions.Merge(&source.Sessions)
	c.History.Merge(&source.History)
	c.Prompts.Merge(&source.Prompts)
	c.Relay.Merge(&source.Relay)
	c.Router.Merge(&source.Router)

	if source.Listen != "" {
		c.Listen = source.Listen
	}
	if source.LogLevel != "" {
		c.LogLevel = source.LogLevel
	}
}

// LoadConfig reads a JSON config file, merges it over defaults, and returns
// the resulting Config.
func LoadConfig(filename string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var loaded Config
	if err := json.Unmarshal(data, &loaded); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.Merge(&loaded)
	return &cfg, nil
}
