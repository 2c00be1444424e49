package lcgraph

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with graph-specific helpers so every layout
// reports construction events with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a Logger with the given handler. A nil handler falls
// back to an info-level text handler on stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{Logger: slog.New(handler)}
}

// NewTextLogger creates a Logger emitting human-readable text to stderr.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NewJSONLogger creates a Logger emitting JSON to stderr.
func NewJSONLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NoopLogger creates a Logger that discards all output.
func NoopLogger() *Logger {
	return &Logger{Logger: slog.New(slog.DiscardHandler)}
}

// LogPopulate logs the outcome of one bulk population pass. A nil receiver
// is a no-op, so zero-value graphs log nothing.
func (l *Logger) LogPopulate(ctx context.Context, layout string, nodes, edges uint64, took time.Duration, err error) {
	if l == nil {
		return
	}
	if err != nil {
		l.ErrorContext(ctx, "population failed",
			"layout", layout,
			"nodes", nodes,
			"edges", edges,
			"error", err,
		)
		return
	}
	l.DebugContext(ctx, "population completed",
		"layout", layout,
		"nodes", nodes,
		"edges", edges,
		"took", took,
	)
}

// LogClose logs the release of a graph's backing storage. A nil receiver is
// a no-op.
func (l *Logger) LogClose(layout string, err error) {
	if l == nil {
		return
	}
	if err != nil {
		l.Error("close failed", "layout", layout, "error", err)
		return
	}
	l.Debug("storage released", "layout", layout)
}
