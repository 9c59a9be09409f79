// Package logging wraps log/slog with the level filter and the JSON
// event shape used throughout the gateway.
package logging

import (
	"log/slog"
	"os"
	"strings"
)

// Logger is a thin wrapper over *slog.Logger with an event-name-first
// call convention: Info("http_request", "method", r.Method, ...).
type Logger struct {
	slog *slog.Logger
}

// New builds a Logger that writes structured JSON lines to stderr at the
// given level ("debug", "info", "warn", "error" — defaults to info on an
// unrecognized value).
func New(level string) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level:       parseLevel(level),
		ReplaceAttr: renameToEventSchema,
	})
	return &Logger{slog: slog.New(handler)}
}

// renameToEventSchema maps slog's built-in attribute names onto the
// gateway's log line schema (§6.2): "time" -> "timestamp", "msg" -> "event".
func renameToEventSchema(groups []string, a slog.Attr) slog.Attr {
	switch a.Key {
	case slog.TimeKey:
		a.Key = "timestamp"
	case slog.MessageKey:
		a.Key = "event"
	}
	return a
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (l *Logger) Debug(event string, fields ...any) { l.slog.Debug(event, fields...) }
func (l *Logger) Info(event string, fields ...any)  { l.slog.Info(event, fields...) }
func (l *Logger) Warn(event string, fields ...any)  { l.slog.Warn(event, fields...) }
func (l *Logger) Error(event string, fields ...any) { l.slog.Error(event, fields...) }

// With returns a Logger that always includes the given key/value pairs.
func (l *Logger) With(fields ...any) *Logger {
	return &Logger{slog: l.slog.With(fields...)}
}
