package auth

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

type slogLogger struct {
	l *slog.Logger
}

// NewSlogLogger wraps a slog.Logger so it satisfies Logger.
func NewSlogLogger(l *slog.Logger) Logger {
	if l == nil {
		l = slog.Default()
	}
	return &slogLogger{l: l}
}

// NewLogger builds a JSON logger writing to w at the given level
// (debug, info, warn, error). Unknown levels fall back to info.
func NewLogger(w io.Writer, level string) Logger {
	if w == nil {
		w = os.Stderr
	}
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: parseLevel(level)})
	return &slogLogger{l: slog.New(handler)}
}

func (s *slogLogger) Debug(msg string, args ...any) {
	s.l.Debug(msg, args...)
}

func (s *slogLogger) Info(msg string, args ...any) {
	s.l.Info(msg, args...)
}

func (s *slogLogger) Warn(msg string, args ...any) {
	s.l.Warn(msg, args...)
}

func (s *slogLogger) Error(msg string, args ...any) {
	s.l.Error(msg, args...)
}

// Named returns a child logger tagged with the component name.
func Named(logger Logger, name string) Logger {
	if sl, ok := logger.(*slogLogger); ok {
		return &slogLogger{l: sl.l.With("component", name)}
	}
	if logger == nil {
		return defaultLogger(name)
	}
	return logger
}

func defaultLogger(name string) Logger {
	return &slogLogger{l: slog.Default().With("component", name)}
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug", "trace":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// NopLogger discards everything
func NopLogger() Logger {
	return nopLogger{}
}
