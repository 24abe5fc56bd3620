package logging

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewLevels(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error", "bogus", ""} {
		logger := New(level)
		assert.NotNil(t, logger, "level %q", level)
		assert.NotNil(t, logger.Logger, "level %q", level)
	}
}

func TestDebugEnabledOnlyForDebug(t *testing.T) {
	assert.True(t, New("debug").Enabled(nil, slog.LevelDebug))
	assert.False(t, New("info").Enabled(nil, slog.LevelDebug))
}

func TestWithReturnsWrappedLogger(t *testing.T) {
	logger := Default().With("component", "test")
	assert.NotNil(t, logger)
	assert.NotNil(t, logger.Logger)
}
