// Package log configures structured logging for the binaries.
package log

import (
	"log/slog"
	"os"
	"strings"
)

// Setup installs the default slog logger with a text handler, tagging
// every record with the binary's component name. The level comes from
// LOG_LEVEL (debug, info, warn, error), defaulting to info.
func Setup(component string) *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: levelFromEnv(),
	})
	logger := slog.New(handler).With("component", component)
	slog.SetDefault(logger)
	return logger
}

func levelFromEnv() slog.Level {
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
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
