// Package logger provides structured logging setup using slog.
package logger

import (
	"io"
	"log/slog"
	"os"
)

// New creates a structured JSON logger writing to stderr.
func New(level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// Discard returns a logger that drops everything. Used by tests and as
// the default when a component is constructed without a logger.
func Discard() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}
