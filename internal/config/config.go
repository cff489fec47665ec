// Package config holds the runtime settings of the chat server: defaults,
// CHATTALK_* environment overrides and validation. Command-line flags are
// bound on top of these by cmd/server.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// Config holds the server configuration. An empty address disables the
// corresponding listener.
type Config struct {
	TCPAddr       string
	UnixPath      string
	WebSocketAddr string
	MetricsAddr   string

	// MaxFieldSize is the largest PlainTalk field accepted from a client.
	MaxFieldSize int
	// HubBuffer is the capacity of the hub's event channel.
	HubBuffer int

	LogLevel string
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		TCPAddr:      "127.0.0.1:2203",
		UnixPath:     "socket",
		MetricsAddr:  ":9090",
		MaxFieldSize: 64 * 1024,
		HubBuffer:    128,
		LogLevel:     "info",
	}
}

// FromEnv returns the defaults overridden by CHATTALK_* environment variables.
// Addresses may be set to the empty string to disable a listener. Numeric
// values that do not parse as positive integers are ignored.
func FromEnv() Config {
	cfg := Default()

	if v, ok := os.LookupEnv("CHATTALK_TCP_ADDR"); ok {
		cfg.TCPAddr = strings.TrimSpace(v)
	}
	if v, ok := os.LookupEnv("CHATTALK_UNIX_PATH"); ok {
		cfg.UnixPath = strings.TrimSpace(v)
	}
	if v, ok := os.LookupEnv("CHATTALK_WS_ADDR"); ok {
		cfg.WebSocketAddr = strings.TrimSpace(v)
	}
	if v, ok := os.LookupEnv("CHATTALK_METRICS_ADDR"); ok {
		cfg.MetricsAddr = strings.TrimSpace(v)
	}
	if v := os.Getenv("CHATTALK_MAX_FIELD_SIZE"); v != "" {
		cfg.MaxFieldSize = parsePositive(v, cfg.MaxFieldSize)
	}
	if v := os.Getenv("CHATTALK_HUB_BUFFER"); v != "" {
		cfg.HubBuffer = parsePositive(v, cfg.HubBuffer)
	}
	if v := os.Getenv("CHATTALK_LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.TrimSpace(v)
	}

	return cfg
}

// Validate reports the first problem found in the configuration.
func (c Config) Validate() error {
	if c.TCPAddr == "" && c.UnixPath == "" && c.WebSocketAddr == "" {
		return errors.New("config: no listener configured")
	}
	if c.MaxFieldSize <= 0 {
		return fmt.Errorf("config: max field size must be positive, got %d", c.MaxFieldSize)
	}
	if c.HubBuffer <= 0 {
		return fmt.Errorf("config: hub buffer must be positive, got %d", c.HubBuffer)
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// SlogLevel parses LogLevel ("debug", "info", "warn", "error").
func (c Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("config: log level: %w", err)
	}
	return level, nil
}

func parsePositive(value string, defaultValue int) int {
	if parsed, err := strconv.Atoi(strings.TrimSpace(value)); err == nil && parsed > 0 {
		return parsed
	}
	return defaultValue
}
