package mylog_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/habiliai/memoryd/internal/mylog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToLogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, mylog.ToLogLevel("debug"))
	assert.Equal(t, slog.LevelWarn, mylog.ToLogLevel("warn"))
	assert.Equal(t, slog.LevelInfo, mylog.ToLogLevel("bogus"))
}

func TestJSONHandler(t *testing.T) {
	var buf bytes.Buffer
	logger := mylog.NewLoggerWithWriter("info", "json", &buf)

	logger.Debug("hidden")
	logger.Info("memory written", "id", "abc")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "memory written", entry["msg"])
	assert.Equal(t, "abc", entry["id"])
}

func TestTintHandler(t *testing.T) {
	var buf bytes.Buffer
	logger := mylog.NewLoggerWithWriter("warn", "default", &buf)

	logger.Info("skipped")
	logger.Warn("graph mirror failed", "id", "abc")

	out := buf.String()
	assert.NotContains(t, out, "skipped")
	assert.Contains(t, out, "graph mirror failed")
	assert.Contains(t, out, "abc")
}
