// Package logging provides structured logging configuration using zerolog.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelDebug logs debug messages and above.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs info messages and above.
	LevelInfo LogLevel = "info"

	// LevelWarn logs warning messages and above.
	LevelWarn LogLevel = "warn"

	// LevelError logs error messages only.
	LevelError LogLevel = "error"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool

	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer

	// File, when set, appends logs to this path instead of Output. The
	// terminal UI uses it so logs do not draw over the screen.
	File string
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: os.Stderr,
	}
}

// Setup configures the global zerolog logger. The returned closer releases
// the log file, if any; it is a no-op otherwise.
func Setup(cfg Config) (zerolog.Logger, io.Closer, error) {
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	var closer io.Closer = nopCloser{}
	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.File != "" {
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return zerolog.Nop(), closer, fmt.Errorf("open log file: %w", err)
		}
		output, closer = f, f
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output, NoColor: cfg.File != ""}
	}

	logger := zerolog.New(output).With().Timestamp().Logger()
	log.Logger = logger

	return logger, closer, nil
}

// ParseLevel reports whether s names a known level.
func ParseLevel(s string) (LogLevel, bool) {
	switch strings.ToLower(s) {
	case "debug":
		return LevelDebug, true
	case "info":
		return LevelInfo, true
	case "warn", "warning":
		return LevelWarn, true
	case "error":
		return LevelError, true
	default:
		return LevelInfo, false
	}
}

func parseLevel(level LogLevel) zerolog.Level {
	switch l, _ := ParseLevel(string(level)); l {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Log Level Guidelines:
//
// Debug: Detailed information for debugging
//   - Advance calls suppressed or out of range
//   - Trigger arm/fire, search term edits
//   - Cache hit/miss, key
//
// Info: Normal operation events
//   - Page commits, search resets
//   - Server startup/shutdown
//
// Warn: Warning conditions that don't prevent operation
//   - Page load failures
//   - Retry attempts, rate limit throttling
//   - Cache errors (fallback to the source)
//
// Error: Error conditions requiring attention
//   - Requests failed after retries
//   - Circuit breaker open
//   - Configuration errors
//
// Context Fields:
//   - component: emitting component (pagination, search, feed, loader, ...)
//   - page, next_page, total_pages: page numbers
//   - query / term: search term
//   - status_code, error_class, duration: HTTP request details
//   - key: cache key
