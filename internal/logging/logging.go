package logging

import (
	"io"
	"log/slog"
	"strings"

	"github.com/golang-cz/devslog"
)

// New returns the application logger: colored devslog output while developing,
// JSON lines in production.
func New(w io.Writer, dev bool, level string) *slog.Logger {
	opts := &slog.HandlerOptions{
		AddSource: dev,
		Level:     ParseLevel(level),
	}

	if dev {
		return slog.New(devslog.NewHandler(w, &devslog.Options{
			HandlerOptions:  opts,
			NewLineAfterLog: false,
		}))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func ParseLevel(level string) slog.Level {
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

// Discard is used by tests that don't care about log output.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
