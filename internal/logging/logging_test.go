package logging

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("debug", slog.LevelError))
	assert.Equal(t, slog.LevelDebug, parseLevel("dev", slog.LevelError))
	assert.Equal(t, slog.LevelInfo, parseLevel("info", slog.LevelError))
	assert.Equal(t, slog.LevelWarn, parseLevel("warning", slog.LevelError))
	assert.Equal(t, slog.LevelError, parseLevel("prod", slog.LevelDebug))
	assert.Equal(t, slog.LevelError, parseLevel("nonsense", slog.LevelError))
}

func TestInitPrefersProjectVariable(t *testing.T) {
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("SPRINTROOM_LOG_LEVEL", "debug")

	Init()
	assert.True(t, slog.Default().Enabled(t.Context(), slog.LevelDebug))
}

func TestInitFallsBackToLogLevel(t *testing.T) {
	t.Setenv("SPRINTROOM_LOG_LEVEL", "")
	t.Setenv("LOG_LEVEL", "warn")

	Init()
	assert.True(t, slog.Default().Enabled(t.Context(), slog.LevelWarn))
	assert.False(t, slog.Default().Enabled(t.Context(), slog.LevelInfo))
}
