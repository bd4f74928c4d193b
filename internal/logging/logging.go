package logging

import (
	"log/slog"
	"os"
)

// Init configures the default slog logger. The level comes from
// SPRINTROOM_LOG_LEVEL, falling back to LOG_LEVEL; production defaults to
// errors only so the TUI stays clean.
func Init() {
	level := slog.LevelError

	if l := os.Getenv("SPRINTROOM_LOG_LEVEL"); l != "" {
		level = parseLevel(l, level)
	} else if l := os.Getenv("LOG_LEVEL"); l != "" {
		level = parseLevel(l, level)
	}

	logger := slog.New(
		slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: level,
		}),
	)
	slog.SetDefault(logger)
}

func parseLevel(l string, fallback slog.Level) slog.Level {
	switch l {
	case "dev", "development", "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error", "production", "prod":
		return slog.LevelError
	default:
		return fallback
	}
}
