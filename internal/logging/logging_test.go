package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, expected := range tests {
		assert.Equal(t, expected, ParseLevel(in), in)
	}
}

func TestNew_ConsoleText(t *testing.T) {
	var buf bytes.Buffer
	logger, closer, err := New(Options{Level: "info", Format: "text", Console: &buf})
	require.NoError(t, err)
	defer closer.Close()

	logger.Debug("hidden")
	logger.Info("scan completed", "score", 42)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "scan completed")
	assert.Contains(t, out, "score=42")
	assert.NotContains(t, out, "\x1b[", "no colors outside a terminal")
}

func TestNew_ConsoleJSON(t *testing.T) {
	var buf bytes.Buffer
	logger, _, err := New(Options{Level: "debug", Format: "json", Console: &buf})
	require.NoError(t, err)

	logger.Debug("resolving", "url", "https://bit.ly/x")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "resolving", line["msg"])
	assert.Equal(t, "https://bit.ly/x", line["url"])
}

func TestNew_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "detector.log")
	logger, closer, err := New(Options{Level: "info", File: path})
	require.NoError(t, err)

	logger.Warn("intel source failed", "source", "virustotal")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var line map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(data), &line))
	assert.Equal(t, "WARN", line["level"])
	assert.Equal(t, "virustotal", line["source"])
}
