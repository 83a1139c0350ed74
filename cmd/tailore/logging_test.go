package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerRoutesLevels(t *testing.T) {
	var stdout, stderr bytes.Buffer
	logger, cleanup, err := setupLogger("info", "json", "", &stdout, &stderr)
	require.NoError(t, err)
	assert.Nil(t, cleanup)

	logger.Debug().Msg("hidden")
	logger.Info().Msg("hello")
	logger.Warn().Msg("careful")
	logger.Error().Msg("broken")

	assert.NotContains(t, stdout.String(), "hidden")
	assert.Contains(t, stdout.String(), "hello")
	assert.Contains(t, stdout.String(), "careful")
	assert.NotContains(t, stdout.String(), "broken")
	assert.Contains(t, stderr.String(), "broken")
	assert.NotContains(t, stderr.String(), "hello")
}

func TestLoggerWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tailore.log")
	var stdout, stderr bytes.Buffer
	logger, cleanup, err := setupLogger("debug", "console", path, &stdout, &stderr)
	require.NoError(t, err)
	require.NotNil(t, cleanup)

	logger.Debug().Msg("to file")
	logger.Error().Msg("also to file")
	cleanup()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"message":"to file"`)
	assert.Contains(t, stdout.String(), "to file")
	assert.Contains(t, stderr.String(), "also to file")
}

func TestLoggerRejectsUnknownLevel(t *testing.T) {
	_, _, err := setupLogger("loud", "json", "", &bytes.Buffer{}, &bytes.Buffer{})
	assert.Error(t, err)
}
