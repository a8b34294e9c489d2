package logging

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

// Field is a structured logging attribute.
type Field struct {
	Key   string
	Value any
}

// Convenience helpers for common field types.
func String(key, value string) Field    { return Field{Key: key, Value: value} }
func Int(key string, value int) Field   { return Field{Key: key, Value: value} }
func Uint64(key string, v uint64) Field { return Field{Key: key, Value: v} }
func Any(key string, value any) Field   { return Field{Key: key, Value: value} }
func Err(err error) Field               { return Field{Key: "error", Value: err.Error()} }
func Tick(t uint64) Field               { return Field{Key: "tick", Value: t} }
func Node(id string) Field              { return Field{Key: "node_id", Value: id} }

// Logger is a small structured logging interface backed by slog. Components
// take a Logger rather than writing to slog directly so tests can inject
// Noop() and cmd wiring controls the handler.
type Logger interface {
	Debug(ctx context.Context, msg string, fields ...Field)
	Info(ctx context.Context, msg string, fields ...Field)
	Warn(ctx context.Context, msg string, fields ...Field)
	Error(ctx context.Context, msg string, fields ...Field)
	With(fields ...Field) Logger
}

// Config controls basic logger behaviour.
type Config struct {
	Level  string // debug, info, warn, error
	Format string // json or text
}

// New constructs a Logger backed by slog with the provided config.
func New(cfg Config) Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, opts)
	default:
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return &slogger{l: slog.New(handler)}
}

// NewFromEnv constructs a logger from LOG_LEVEL and LOG_FORMAT, defaulting
// to a human-readable text handler at info level.
func NewFromEnv() Logger {
	return New(Config{
		Level:  os.Getenv("LOG_LEVEL"),
		Format: os.Getenv("LOG_FORMAT"),
	})
}

// Noop returns a logger that drops all logs.
func Noop() Logger { return noopLogger{} }

type slogger struct {
	l *slog.Logger
}

func (s *slogger) With(fields ...Field) Logger {
	return &slogger{l: s.l.With(toArgs(fields...)...)}
}

func (s *slogger) Debug(ctx context.Context, msg string, fields ...Field) {
	s.l.LogAttrs(ctx, slog.LevelDebug, msg, toAttrs(fields...)...)
}

func (s *slogger) Info(ctx context.Context, msg string, fields ...Field) {
	s.l.LogAttrs(ctx, slog.LevelInfo, msg, toAttrs(fields...)...)
}

func (s *slogger) Warn(ctx context.Context, msg string, fields ...Field) {
	s.l.LogAttrs(ctx, slog.LevelWarn, msg, toAttrs(fields...)...)
}

func (s *slogger) Error(ctx context.Context, msg string, fields ...Field) {
	s.l.LogAttrs(ctx, slog.LevelError, msg, toAttrs(fields...)...)
}

type noopLogger struct{}

func (noopLogger) With(fields ...Field) Logger             { return noopLogger{} }
func (noopLogger) Debug(context.Context, string, ...Field) {}
func (noopLogger) Info(context.Context, string, ...Field)  {}
func (noopLogger) Warn(context.Context, string, ...Field)  {}
func (noopLogger) Error(context.Context, string, ...Field) {}

func toAttrs(fields ...Field) []slog.Attr {
	attrs := make([]slog.Attr, 0, len(fields))
	for _, f := range fields {
		attrs = append(attrs, slog.Any(f.Key, f.Value))
	}
	return attrs
}

func toArgs(fields ...Field) []any {
	args := make([]any, 0, len(fields))
	for _, f := range fields {
		args = append(args, slog.Any(f.Key, f.Value))
	}
	return args
}

func parseLevel(level string) slog.Leveler {
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
