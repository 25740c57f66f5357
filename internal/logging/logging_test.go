package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"garbage-collector/internal/config"
)

func TestNewWritesJSONToConsole(t *testing.T) {
	var buf bytes.Buffer
	logger, closer, err := newWithConsole(config.LoggingCfg{Level: "warn"}, &buf)
	require.NoError(t, err)
	defer closer.Close()

	logger.Info().Msg("hidden")
	logger.Warn().Str("path", "/srv/cache/").Msg("visible")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"message":"visible"`)
	assert.Contains(t, out, `"path":"/srv/cache/"`)
	assert.Contains(t, out, `"service":"garbage-collector"`)
}

func TestNewFallsBackToInfoOnBadLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, _, err := newWithConsole(config.LoggingCfg{Level: "loud"}, &buf)
	require.NoError(t, err)

	logger.Debug().Msg("debug line")
	logger.Info().Msg("info line")

	assert.NotContains(t, buf.String(), "debug line")
	assert.Contains(t, buf.String(), "info line")
}

func TestNewWritesRotatedFile(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "logs", "sweep.log")
	var buf bytes.Buffer

	logger, closer, err := newWithConsole(config.LoggingCfg{Level: "info", File: logFile, RotationDays: 30, MaxSizeMB: 1}, &buf)
	require.NoError(t, err)
	logger.Info().Msg("to file")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "to file")
}
