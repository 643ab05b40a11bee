package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jgoulah/gridinsight/internal/config"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
}

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New(config.LoggingConfig{Level: "warn", Format: "json"}, &buf)

	logger.Info("dropped")
	logger.Warn("kept", slog.Int("rows", 3))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "kept", entry["msg"])
	assert.Equal(t, float64(3), entry["rows"])
}

func TestNewText(t *testing.T) {
	var buf bytes.Buffer
	New(config.LoggingConfig{Level: "info", Format: "text"}, &buf).Info("hello")
	assert.Contains(t, buf.String(), "msg=hello")
}
