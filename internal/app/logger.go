package app

import (
	"io"
	"log/slog"
)

// newLogger builds the app-scoped logger. Nothing here touches the global
// default logger, so parallel app instances in tests keep their output
// separate.
func newLogger(levelStr, formatStr string, outW io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(levelStr)}
	if formatStr == "text" {
		return slog.New(slog.NewTextHandler(outW, opts))
	}
	return slog.New(slog.NewJSONHandler(outW, opts))
}

// parseLevel maps the config string to a slog level, defaulting to info so
// a missing or mistyped level never silences the run.
func parseLevel(levelStr string) slog.Level {
	switch levelStr {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
