package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var entries []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &entry), line)
		entries = append(entries, entry)
	}
	return entries
}

func TestLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, FormatJSON, LevelInfo)

	logger.Debug("debug message")
	assert.Zero(t, buf.Len(), "debug message should be filtered at INFO level")

	logger.Info("info message")
	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "INFO", entries[0]["level"])
	assert.Equal(t, "info message", entries[0]["msg"])
}

func TestLogger_SetLevelAffectsDerivedLoggers(t *testing.T) {
	var buf bytes.Buffer
	root := NewWithWriter(&buf, FormatJSON, LevelInfo)
	child := root.WithComponent("crew")

	root.SetLevel(LevelDebug)
	child.Debug("now visible")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "crew", entries[0]["component"])
}

func TestLogger_ComponentTraceAndFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, FormatJSON, LevelDebug).
		WithComponent("web").
		WithTraceID("run-123")

	logger.Warn("slow request", map[string]interface{}{
		"path":  "/generate",
		"count": 3,
	})

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	e := entries[0]
	assert.Equal(t, "WARN", e["level"])
	assert.Equal(t, "web", e["component"])
	assert.Equal(t, "run-123", e["trace_id"])
	assert.Equal(t, "/generate", e["path"])
	assert.EqualValues(t, 3, e["count"])
}

func TestLogger_ToolResult(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, FormatJSON, LevelDebug)

	logger.ToolResult("exa_search", 20*time.Millisecond, nil)
	logger.ToolResult("serper_search", time.Second, errors.New("boom"))

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 2)
	assert.Equal(t, "tool_result", entries[0]["msg"])
	assert.Equal(t, "DEBUG", entries[0]["level"])
	assert.Equal(t, "tool_error", entries[1]["msg"])
	assert.Equal(t, "boom", entries[1]["error"])
}

func TestLogger_ConsoleFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, FormatConsole, LevelInfo).WithComponent("cli")
	logger.Info("hello")

	out := buf.String()
	assert.Contains(t, out, "INFO")
	assert.Contains(t, out, "hello")
	assert.Contains(t, out, "cli")
}

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{
		"debug":   LevelDebug,
		"INFO":    LevelInfo,
		"warning": LevelWarn,
		"warn":    LevelWarn,
		"error":   LevelError,
		"":        LevelInfo,
		"verbose": LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}
