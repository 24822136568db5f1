// Package logging provides structured logging configuration using zerolog.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output ("debug", "info", "warn",
	// "error").
	Level string

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool

	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  "info",
		Pretty: false,
		Output: os.Stderr,
	}
}

// Setup configures the global zerolog logger and returns it.
func Setup(cfg Config) zerolog.Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}

	zerolog.SetGlobalLevel(ParseLevel(cfg.Level))

	var output io.Writer = cfg.Output
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: cfg.Output}
	}

	logger := zerolog.New(output).With().
		Timestamp().
		Str("service", "scholar-data-proxy").
		Logger()

	log.Logger = logger
	return logger
}

// ParseLevel converts a level name to a zerolog.Level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger creates a logger tagged with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Debug: Detailed information for debugging
//   - Cache lookups (state, record path, age)
//   - Raw upstream payloads and discovered asset URLs
//   - Image conversion details (mode, size reduction)
//
// Info: Normal operation events
//   - Cache hits/misses per resolver request
//   - Successful upstream fetches and cache writes
//   - Negative marker creation and clearing
//   - Server startup/shutdown
//
// Warn: Warning conditions that don't prevent operation
//   - Retry attempts against the provider
//   - Cache write failures (response still served)
//   - Legacy detail records healed by a forced refresh
//
// Error: Error conditions requiring attention
//   - Upstream failures after the bounded retry
//   - Scrape/download timeouts
//   - Configuration errors
//
// Context Fields:
//   - scholar_id: AMiner scholar ID being resolved
//   - namespace: cache namespace (aminer, avatars, emails)
//   - cache_state: lookup outcome (fresh, negative, miss)
//   - error_kind: failure classification (validation, not_found, upstream, timeout, dependency)
//   - force_refresh: whether the caller bypassed the cache
