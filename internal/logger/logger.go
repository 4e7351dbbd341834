// Package logger builds the zerolog loggers used by the store, the sync
// cycle and the CLI.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

// New constructs a zerolog logger writing to stderr based on level and
// format configuration.
func New(level, format string) (zerolog.Logger, error) {
	return NewWithWriter(os.Stderr, level, format)
}

// NewWithWriter is New with an explicit destination.
func NewWithWriter(w io.Writer, level, format string) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("logger: %w", err)
	}
	if lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	var out zerolog.Logger
	switch strings.ToLower(strings.TrimSpace(format)) {
	case FormatJSON, "":
		out = zerolog.New(w).With().Timestamp().Logger()
	case FormatConsole:
		out = zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
	default:
		return zerolog.Nop(), fmt.Errorf("logger: unsupported log format %q", format)
	}
	return out.Level(lvl), nil
}
