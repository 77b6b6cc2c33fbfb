package vmmap

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with kernel-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return &Logger{
		Logger: slog.New(slog.DiscardHandler),
	}
}

// With returns a Logger carrying the given attributes.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		Logger: l.Logger.With(args...),
	}
}

// WithPID adds a pid field to the logger.
func (l *Logger) WithPID(pid int) *Logger {
	return l.With("pid", pid)
}

// LogMmap logs a mapping request.
func (l *Logger) LogMmap(ctx context.Context, addr uint64, length int64, prot, flags int, err error) {
	if err != nil {
		l.DebugContext(ctx, "mmap failed",
			"length", length,
			"prot", prot,
			"flags", flags,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "mmap completed",
			"addr", addr,
			"length", length,
			"prot", prot,
			"flags", flags,
		)
	}
}

// LogMunmap logs an unmap request.
func (l *Logger) LogMunmap(ctx context.Context, addr uint64, length int64, err error) {
	if err != nil {
		l.DebugContext(ctx, "munmap failed",
			"addr", addr,
			"length", length,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "munmap completed",
			"addr", addr,
			"length", length,
		)
	}
}

// LogFault logs a page fault that could not be resolved.
func (l *Logger) LogFault(ctx context.Context, addr uint64, access string, err error) {
	l.WarnContext(ctx, "page fault",
		"addr", addr,
		"access", access,
		"error", err,
	)
}

// LogKill logs a process terminated by the kernel.
func (l *Logger) LogKill(ctx context.Context, pid int, err error) {
	l.WarnContext(ctx, "process killed",
		"pid", pid,
		"error", err,
	)
}
