package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestNewWithWriter(t *testing.T) {
	t.Run("json handler filters below level", func(t *testing.T) {
		var buf bytes.Buffer
		log := NewWithWriter(&buf, "json", "warn")
		log.Info("dropped")
		log.Warn("kept", "coid", "C-1")

		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "kept", entry["msg"])
		assert.Equal(t, "C-1", entry["coid"])
	})

	t.Run("text handler", func(t *testing.T) {
		var buf bytes.Buffer
		NewWithWriter(&buf, "text", "info").Info("hello")
		assert.Contains(t, buf.String(), "msg=hello")
	})
}
