// Package logging provides the structured logger every BOS binary and
// operator uses.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"
)

// ContextKey is the type context values are keyed by, so BOS's own keys
// never collide with another package's.
type ContextKey string

const (
	TraceIDKey     ContextKey = "trace_id"
	TenantKey      ContextKey = "tenant"
	ComponentIDKey ContextKey = "component_id"
	SessionNameKey ContextKey = "session_name"
)

// Logger is a structured logger scoped to one BOS component (an
// operator name, or "api").
type Logger struct {
	*slog.Logger
	component string
}

// Config controls how a Logger renders.
type Config struct {
	Level     string `json:"level"`
	Format    string `json:"format"` // json or text
	Output    string `json:"output"` // stdout, stderr, or file path
	Component string `json:"component"`
}

// New builds a Logger from cfg.
func New(cfg Config) *Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var output io.Writer
	switch cfg.Output {
	case "stdout", "":
		output = os.Stdout
	case "stderr":
		output = os.Stderr
	default:
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			output = os.Stdout
		} else {
			output = f
		}
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(output, opts)
	} else {
		handler = slog.NewJSONHandler(output, opts)
	}

	return &Logger{
		Logger:    slog.New(handler).With(slog.String("component", cfg.Component)),
		component: cfg.Component,
	}
}

// Default builds a Logger from the LOG_LEVEL/LOG_FORMAT environment,
// named component — what cmd/bos-api and cmd/bos-operators use absent
// an explicit Config from the loaded file.
func Default(component string) *Logger {
	return New(Config{
		Level:     os.Getenv("LOG_LEVEL"),
		Format:    os.Getenv("LOG_FORMAT"),
		Output:    "stdout",
		Component: component,
	})
}

// WithContext attaches whichever of trace id, tenant, component id, and
// session name are present on ctx.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	var attrs []any
	if v, ok := ctx.Value(TraceIDKey).(string); ok && v != "" {
		attrs = append(attrs, slog.String("trace_id", v))
	}
	if v, ok := ctx.Value(TenantKey).(string); ok && v != "" {
		attrs = append(attrs, slog.String("tenant", v))
	}
	if v, ok := ctx.Value(ComponentIDKey).(string); ok && v != "" {
		attrs = append(attrs, slog.String("component_id", v))
	}
	if v, ok := ctx.Value(SessionNameKey).(string); ok && v != "" {
		attrs = append(attrs, slog.String("session_name", v))
	}
	if len(attrs) == 0 {
		return l
	}
	return &Logger{Logger: l.Logger.With(attrs...), component: l.component}
}

// WithSession adds the session name to every subsequent log line.
func (l *Logger) WithSession(name string) *Logger {
	return &Logger{Logger: l.Logger.With(slog.String("session_name", name)), component: l.component}
}

// WithComponentID adds the BOS component id to every subsequent log
// line. Named to avoid clashing with the logger's own notion of
// "component" (the owning package/operator name).
func (l *Logger) WithComponentID(id string) *Logger {
	return &Logger{Logger: l.Logger.With(slog.String("component_id", id)), component: l.component}
}

// WithError adds an error field, or returns l unchanged if err is nil.
func (l *Logger) WithError(err error) *Logger {
	if err == nil {
		return l
	}
	return &Logger{Logger: l.Logger.With(slog.String("error", err.Error())), component: l.component}
}

// WithDuration adds an elapsed-time field in milliseconds.
func (l *Logger) WithDuration(d time.Duration) *Logger {
	return &Logger{Logger: l.Logger.With(slog.Float64("duration_ms", float64(d.Milliseconds()))), component: l.component}
}

// IterationLog records one operator loop iteration: how many records
// it touched and how long the pass took.
func (l *Logger) IterationLog(operator string, touched int, d time.Duration, err error) {
	attrs := []any{
		slog.String("operator", operator),
		slog.Int("touched", touched),
		slog.Float64("duration_ms", float64(d.Milliseconds())),
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
		l.Logger.Error("operator iteration failed", attrs...)
		return
	}
	l.Logger.Debug("operator iteration", attrs...)
}

// HTTPRequestLog records one inbound REST request.
func (l *Logger) HTTPRequestLog(method, path string, status int, duration time.Duration, tenant string) {
	l.Logger.Info("http request",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", status),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
		slog.String("tenant", tenant),
	)
}
