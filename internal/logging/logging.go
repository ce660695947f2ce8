// Package logging builds the process-wide zerolog logger.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// New returns a logger writing to stdout. format "console" switches to the
// human readable writer, anything else emits JSON lines.
func New(level, format, env string) zerolog.Logger {
	return NewWithWriter(os.Stdout, level, format, env)
}

// NewWithWriter is New with an explicit destination.
func NewWithWriter(w io.Writer, level, format, env string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	out := w
	if strings.EqualFold(format, "console") {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	return zerolog.New(out).
		Level(lvl).
		With().
		Timestamp().
		Str("service", "labdesk").
		Str("env", env).
		Logger()
}
