package facetgo

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with facetgo-specific context.
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

// WithIndex adds an index field to the logger.
func (l *Logger) WithIndex(name string) *Logger {
	return &Logger{
		Logger: l.Logger.With("index", name),
	}
}

// LogBuild logs a facet build.
func (l *Logger) LogBuild(ctx context.Context, index string, facets int, duration time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "facet build failed",
			"index", index,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "facet build completed",
			"index", index,
			"facets", facets,
			"duration", duration,
		)
	}
}

// LogSearch logs a faceted search.
func (l *Logger) LogSearch(ctx context.Context, index, query string, hits int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "search failed",
			"index", index,
			"query", query,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "search completed",
			"index", index,
			"query", query,
			"hits", hits,
		)
	}
}

// LogStore logs a facet store operation such as "persist", "publish" or "load".
func (l *Logger) LogStore(ctx context.Context, op, index, location string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "facet "+op+" failed",
			"index", index,
			"location", location,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "facet "+op+" completed",
			"index", index,
			"location", location,
		)
	}
}
