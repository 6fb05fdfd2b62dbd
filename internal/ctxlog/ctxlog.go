// Package ctxlog carries a *slog.Logger through a context.Context so that
// deeply nested staging and collection code can log with the attributes the
// caller attached (run ID, measurement name) without plumbing a logger
// argument through every signature.
package ctxlog

import (
	"context"
	"log/slog"
)

// key is unexported so no other package can collide with our context key.
type key struct{}

var loggerKey = key{}

// WithLogger returns a child context carrying the provided logger.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext extracts the logger from the context, falling back to the
// process-wide default logger when none was attached.
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(loggerKey).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}
