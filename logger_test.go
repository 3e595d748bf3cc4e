package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewLoggerLevels(t *testing.T) {
	logger := newLogger(LogConfig{Level: "debug"})
	assert.True(t, logger.Core().Enabled(zap.DebugLevel))

	logger = newLogger(LogConfig{Level: "warn"})
	assert.False(t, logger.Core().Enabled(zap.InfoLevel))
	assert.True(t, logger.Core().Enabled(zap.WarnLevel))
}

func TestNewLoggerFallsBackToInfo(t *testing.T) {
	logger := newLogger(LogConfig{Level: "chatty"})

	assert.True(t, logger.Core().Enabled(zap.InfoLevel))
	assert.False(t, logger.Core().Enabled(zap.DebugLevel))
}

func TestNewLoggerWritesConfiguredFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot.log")
	logger := newLogger(LogConfig{Level: "info", File: path, MaxSizeMB: 1})

	logger.Info("session started", zap.String("run", "abc123"))
	// Sync errors on the stdout core are environment noise; only the file
	// contents matter here.
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "session started")
	assert.Contains(t, string(data), "abc123")
}
