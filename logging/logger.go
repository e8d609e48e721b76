// Package logging provides a tiny abstraction over slog so downstream code can
// depend on a minimal interface (Logger) while allowing users to plug in any
// structured logger.
package logging

import (
	"io"
	"log/slog"
	"os"
)

// Logger is the minimal structured logging interface used across schemaflow.
// Components accept a Logger and fall back to NoOpLogger when given nil.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// SlogAdapter wraps *slog.Logger to implement the Logger interface.
type SlogAdapter struct {
	*slog.Logger
}

// Debug logs a debug message.
func (s *SlogAdapter) Debug(msg string, args ...any) { s.Logger.Debug(msg, args...) }

// Info logs an informational message.
func (s *SlogAdapter) Info(msg string, args ...any) { s.Logger.Info(msg, args...) }

// Warn logs a warning message.
func (s *SlogAdapter) Warn(msg string, args ...any) { s.Logger.Warn(msg, args...) }

// Error logs an error message.
func (s *SlogAdapter) Error(msg string, args ...any) { s.Logger.Error(msg, args...) }

// NewSlogAdapter creates a Logger from an existing *slog.Logger.
func NewSlogAdapter(logger *slog.Logger) Logger {
	return &SlogAdapter{Logger: logger}
}

// NewTextLogger creates a Logger writing human readable output to w at the
// given level. Pass nil to write to stderr.
func NewTextLogger(w io.Writer, level slog.Level) Logger {
	if w == nil {
		w = os.Stderr
	}
	h := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	return &SlogAdapter{Logger: slog.New(h)}
}

// NewJSONLogger creates a Logger emitting JSON lines to w at the given level.
// Pass nil to write to stderr.
func NewJSONLogger(w io.Writer, level slog.Level) Logger {
	if w == nil {
		w = os.Stderr
	}
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	return &SlogAdapter{Logger: slog.New(h)}
}

// NoOpLogger discards all log output. It is the default for components
// constructed without an explicit logger.
type NoOpLogger struct{}

// Debug does nothing.
func (NoOpLogger) Debug(msg string, args ...any) {}

// Info does nothing.
func (NoOpLogger) Info(msg string, args ...any) {}

// Warn does nothing.
func (NoOpLogger) Warn(msg string, args ...any) {}

// Error does nothing.
func (NoOpLogger) Error(msg string, args ...any) {}

// OrNoOp returns l if non-nil, otherwise a NoOpLogger. Constructors use it so
// call sites never have to nil-check their logger.
func OrNoOp(l Logger) Logger {
	if l == nil {
		return NoOpLogger{}
	}
	return l
}
