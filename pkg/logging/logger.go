// Package logging configures zerolog for the offline proxy.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

// Component names used in the "component" field.
const (
	ComponentServer       = "server"
	ComponentLifecycle    = "lifecycle"
	ComponentStrategy     = "strategy"
	ComponentNetwork      = "network"
	ComponentConnectivity = "connectivity"
	ComponentSync         = "sync"
	ComponentPush         = "push"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool

	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer
}

// DefaultConfig returns JSON logging at info level on stderr.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: os.Stderr,
	}
}

// Setup configures the global zerolog logger and returns it.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(ParseLevel(string(cfg.Level)))

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output}
	}

	logger := zerolog.New(output).With().Timestamp().Logger()
	log.Logger = logger

	return logger
}

// ParseLevel converts a level name to a zerolog.Level. Unknown names map to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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

// NewLogger derives a logger for one component from the global logger.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Debug: per-request decisions
//   - classification (class, rule) and the bound strategy
//   - cache hit/miss/fallback per key
//   - network fetch results, shared single-flight fetches
//
// Info: lifecycle and operator-visible events
//   - lifecycle transitions, install seeded, stale generations deleted
//   - controller claimed, restored generations
//   - connectivity restored, sync triggered
//   - server startup/shutdown
//
// Warn: degraded but serving
//   - store lookup or write-back failures
//   - strategy failure answered with 503
//   - network unreachable, retry exhaustion, requeued deferred writes
//
// Error: needs attention
//   - install failed
//   - deferred write could not be requeued
//   - store unreachable at startup
//
// Context Fields:
//   - component: see Component* constants
//   - version: generation version of a controller
//   - generation: generation name
//   - key: canonical cache key ("METHOD URL")
//   - strategy, outcome, class, rule
//   - status_code, duration, error_class
