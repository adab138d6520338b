// ABOUTME: Structured logging setup built on zerolog
// ABOUTME: Configures the global logger and hands out per-component loggers
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ConsoleTimeFormat matches the reply timestamp so log lines and replies line up
const ConsoleTimeFormat = "2006-01-02 15:04:05.000000"

// Init configures the global zerolog logger.
// An unknown level falls back to info; a nil writer means stderr.
func Init(level string, out io.Writer) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		if level != "" {
			fmt.Fprintf(os.Stderr, "Unknown log level '%s', defaulting to 'info'\n", level)
		}
		lvl = zerolog.InfoLevel
	}

	if out == nil {
		out = os.Stderr
	}

	consoleWriter := zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: ConsoleTimeFormat,
		NoColor:    out != os.Stderr && out != os.Stdout,
	}

	log.Logger = zerolog.New(consoleWriter).
		Level(lvl).
		With().
		Timestamp().
		Logger()

	return lvl
}

// OpenFile opens (or creates) a log file in append mode
func OpenFile(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		return nil, fmt.Errorf("error opening log file: %w", err)
	}
	return f, nil
}

// WithComponent returns a child of the global logger tagged with a component name
func WithComponent(name string) zerolog.Logger {
	return log.Logger.With().Str("component", name).Logger()
}
