// Package logger configures the process-wide slog default used by every
// engine component. Components derive their own logger with WithComponent.
package logger

import (
	"io"
	"log/slog"
	"os"
)

// Setup installs the default slog handler with the given level and format
// ("json" or "text"). An empty level defaults to info.
func Setup(level string, format string) {
	SetupWriter(level, format, os.Stdout)
}

// SetupWriter is Setup with an explicit output writer, used by tests to
// capture log output.
func SetupWriter(level string, format string, w io.Writer) {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// WithComponent returns the default logger tagged with a component name.
func WithComponent(component string) *slog.Logger {
	return slog.Default().With("component", component)
}

// WithIndex returns a component logger additionally tagged with the index
// directory it operates on.
func WithIndex(component, dir string) *slog.Logger {
	return slog.Default().With("component", component, "index", dir)
}

func parseLevel(level string) slog.Level {
	switch level {
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
