package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eshaffer321/transfer-reconciler/internal/infrastructure/config"
)

func TestMavenHandler_Format(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewMavenHandler(&buf, nil)).With("system", "detect")

	logger.Info("detection run completed", "run_id", 7, "auto_linked", 2)

	line := buf.String()
	assert.True(t, strings.HasPrefix(line, "[INFO] [detect] ["), line)
	assert.Contains(t, line, "] detection run completed run_id=7 auto_linked=2\n")
	assert.NotContains(t, line, "system=")
	assert.NotContains(t, line, "\033[", "no colors when not a terminal")
}

func TestMavenHandler_QuotesAndGroups(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewMavenHandler(&buf, nil))

	logger.WithGroup("request").With("method", "POST").Warn("slow",
		"path", "/api/detections",
		slog.Group("timing", "elapsed", 1500*time.Millisecond),
		"note", "took a while",
		"error", errors.New("boom"),
	)

	line := buf.String()
	assert.Contains(t, line, "[WARN]")
	assert.Contains(t, line, "request.method=POST")
	assert.Contains(t, line, "request.path=/api/detections")
	assert.Contains(t, line, "request.timing.elapsed=1.5s")
	assert.Contains(t, line, `request.note="took a while"`)
	assert.Contains(t, line, "request.error=boom")
}

func TestMavenHandler_Level(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewMavenHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))

	logger.Info("hidden")
	logger.Debug("hidden")
	logger.Error("shown")

	assert.Equal(t, 1, strings.Count(buf.String(), "\n"))
	assert.Contains(t, buf.String(), "[ERROR]")
}

func TestNewLoggerTo_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(&buf, config.LoggingConfig{Level: "debug", Format: "json"})

	logger.Debug("pending transfer matched", "id", "pt-1")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "DEBUG", entry["level"])
	assert.Equal(t, "pending transfer matched", entry["msg"])
	assert.Equal(t, "pt-1", entry["id"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("WARNING"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}
