package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeEntry(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", LevelDebug},
		{"info", LevelInfo},
		{"warn", LevelWarn},
		{"error", LevelError},
		{"", LevelInfo},
		{"verbose", LevelInfo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.in), "ParseLevel(%q)", tt.in)
	}
}

func TestContextualAttrs(t *testing.T) {
	var buf bytes.Buffer
	l := New(&Config{Level: LevelDebug, Format: "json", Output: &buf})

	l.WithComponent("registry").
		WithConversation("conv-1", "inv-1").
		Info("registry.endpoint.registered", "endpoint", "weather-svc")

	entry := decodeEntry(t, &buf)
	assert.Equal(t, "registry", entry["component"])
	assert.Equal(t, "conv-1", entry["conversation_id"])
	assert.Equal(t, "inv-1", entry["invocation_id"])
	assert.Equal(t, "weather-svc", entry["endpoint"])
}

func TestWithComponentDoesNotMutateOriginal(t *testing.T) {
	var buf bytes.Buffer
	l := New(&Config{Level: LevelDebug, Format: "json", Output: &buf})
	_ = l.WithComponent("registry")

	l.Info("plain")
	entry := decodeEntry(t, &buf)
	_, present := entry["component"]
	assert.False(t, present, "cloning must not leak into the parent logger")
}

func TestLogToolCall(t *testing.T) {
	var buf bytes.Buffer
	l := New(&Config{Level: LevelDebug, Format: "json", Output: &buf})

	l.LogToolCall("weather-svc", "get_weather", 20*time.Millisecond, nil)
	entry := decodeEntry(t, &buf)
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "Tool invocation completed", entry["msg"])
	assert.Equal(t, "weather-svc", entry["endpoint"])
	assert.Equal(t, "get_weather", entry["tool_name"])
	assert.Equal(t, true, entry["success"])

	buf.Reset()
	l.LogToolCall("weather-svc", "get_weather", 20*time.Millisecond, errors.New("boom"))
	entry = decodeEntry(t, &buf)
	assert.Equal(t, "ERROR", entry["level"])
	assert.Equal(t, "Tool invocation failed", entry["msg"])
	assert.Equal(t, false, entry["success"])
	assert.Equal(t, "boom", entry["error"])
}

func TestLogModelCall(t *testing.T) {
	var buf bytes.Buffer
	l := New(&Config{Level: LevelDebug, Format: "json", Output: &buf})

	l.LogModelCall("gpt-4o-mini", 150*time.Millisecond, nil)
	entry := decodeEntry(t, &buf)
	assert.Equal(t, "Model call completed", entry["msg"])
	assert.Equal(t, "gpt-4o-mini", entry["model"])
	assert.Equal(t, true, entry["success"])

	buf.Reset()
	l.LogModelCall("gpt-4o-mini", 150*time.Millisecond, errors.New("rate limited"))
	entry = decodeEntry(t, &buf)
	assert.Equal(t, "ERROR", entry["level"])
	assert.Equal(t, "rate limited", entry["error"])
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New(&Config{Level: LevelWarn, Format: "json", Output: &buf})

	l.Debug("hidden")
	l.Info("hidden")
	assert.Zero(t, buf.Len(), "below-threshold levels must be dropped")

	l.Warn("visible")
	assert.Contains(t, buf.String(), "visible")
}

func TestSlogAdapter(t *testing.T) {
	var buf bytes.Buffer
	l := NewSlogAdapter(slog.New(slog.NewJSONHandler(&buf, nil)))

	l.Info("adapter message", "key", "value")
	entry := decodeEntry(t, &buf)
	assert.Equal(t, "adapter message", entry["msg"])
	assert.Equal(t, "value", entry["key"])
}
