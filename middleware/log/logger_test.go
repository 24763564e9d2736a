package logger

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/armada-chat/armada/config"
)

func TestNewLogger(t *testing.T) {
	t.Run("creates logger with JSON format and stdout output", func(t *testing.T) {
		cfg := &config.LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		}

		log, err := NewLogger(cfg)
		require.NoError(t, err)
		require.NotNil(t, log)

		log.Info("test message")
	})

	t.Run("creates logger with console format", func(t *testing.T) {
		cfg := &config.LoggingConfig{
			Level:  "debug",
			Format: "console",
			Output: "stdout",
		}

		log, err := NewLogger(cfg)
		require.NoError(t, err)
		require.NotNil(t, log)

		log.Debug("test debug message")
	})

	t.Run("creates logger with file output", func(t *testing.T) {
		logFile := filepath.Join(t.TempDir(), "test.log")

		cfg := &config.LoggingConfig{
			Level:    "info",
			Format:   "json",
			Output:   "file",
			FilePath: logFile,
		}

		log, err := NewLogger(cfg)
		require.NoError(t, err)

		log.Info("written to file")
		require.NoError(t, log.Close())

		assert.FileExists(t, logFile)
	})

	t.Run("unknown level falls back to info", func(t *testing.T) {
		cfg := &config.LoggingConfig{
			Level:  "verbose",
			Format: "json",
			Output: "stdout",
		}

		log, err := NewLogger(cfg)
		require.NoError(t, err)
		require.NotNil(t, log)
	})
}

func TestLoggerWithTraceID(t *testing.T) {
	log := NewNopLogger()

	traced := log.WithTraceID("trace-abc")
	require.NotNil(t, traced)
	assert.NotSame(t, log, traced)
}
