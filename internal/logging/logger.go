// Package logging provides the structured logger used across othings.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger is the logging interface accepted by the store and its parts.
// Arguments are slog key-value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	DebugCtx(ctx context.Context, msg string, args ...any)
	InfoCtx(ctx context.Context, msg string, args ...any)
	WarnCtx(ctx context.Context, msg string, args ...any)
	ErrorCtx(ctx context.Context, msg string, args ...any)
}

const prefix = "[othings] "

// SlogLogger writes through a *slog.Logger with a fixed message prefix.
type SlogLogger struct {
	logger *slog.Logger
}

// New returns a logger writing to w. format is "text" or "json"; level is
// one of debug, info, warn or error.
func New(w io.Writer, level, format string) *SlogLogger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	var h slog.Handler
	if format == "json" {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return &SlogLogger{logger: slog.New(h)}
}

// NewDefault returns a text logger on stderr at the given level.
func NewDefault(level string) *SlogLogger {
	return New(os.Stderr, level, "text")
}

// Discard returns a logger that drops everything.
func Discard() *SlogLogger {
	return New(io.Discard, "error", "text")
}

// ParseLevel maps a level name to a slog.Level. Unknown names mean info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// Debug logs msg at debug level.
func (l *SlogLogger) Debug(msg string, args ...any) {
	l.logger.Debug(prefix+msg, args...)
}

// Info logs msg at info level.
func (l *SlogLogger) Info(msg string, args ...any) {
	l.logger.Info(prefix+msg, args...)
}

// Warn logs msg at warn level.
func (l *SlogLogger) Warn(msg string, args ...any) {
	l.logger.Warn(prefix+msg, args...)
}

// Error logs msg at error level.
func (l *SlogLogger) Error(msg string, args ...any) {
	l.logger.Error(prefix+msg, args...)
}

type defaultArgsKey struct{}

func defaultArgs(ctx context.Context) []any {
	args, _ := ctx.Value(defaultArgsKey{}).([]any)
	return args
}

// WithDefaultArgs returns a context whose *Ctx log calls carry args.
func WithDefaultArgs(ctx context.Context, args ...any) context.Context {
	prev := defaultArgs(ctx)
	merged := make([]any, 0, len(prev)+len(args))
	merged = append(merged, prev...)
	merged = append(merged, args...)
	return context.WithValue(ctx, defaultArgsKey{}, merged)
}

// DebugCtx logs msg at debug level with the default args carried by ctx.
func (l *SlogLogger) DebugCtx(ctx context.Context, msg string, args ...any) {
	l.logger.DebugContext(ctx, prefix+msg, append(args, defaultArgs(ctx)...)...)
}

// InfoCtx logs msg at info level with the default args carried by ctx.
func (l *SlogLogger) InfoCtx(ctx context.Context, msg string, args ...any) {
	l.logger.InfoContext(ctx, prefix+msg, append(args, defaultArgs(ctx)...)...)
}

// WarnCtx logs msg at warn level with the default args carried by ctx.
func (l *SlogLogger) WarnCtx(ctx context.Context, msg string, args ...any) {
	l.logger.WarnContext(ctx, prefix+msg, append(args, defaultArgs(ctx)...)...)
}

// ErrorCtx logs msg at error level with the default args carried by ctx.
func (l *SlogLogger) ErrorCtx(ctx context.Context, msg string, args ...any) {
	l.logger.ErrorContext(ctx, prefix+msg, append(args, defaultArgs(ctx)...)...)
}
