package logger

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/marcelsud/webhook-sender/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("success - json at configured level", func(t *testing.T) {
		var buf bytes.Buffer
		log, closer, err := New(config.LoggingConfig{Level: "warn", Format: "json"}, &buf)
		require.NoError(t, err)
		defer closer.Close()

		log.Info().Msg("hidden")
		log.Warn().Str("component", "engine").Msg("shown")

		var entry map[string]any
		require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
		assert.Equal(t, "warn", entry["level"])
		assert.Equal(t, "shown", entry["message"])
		assert.Equal(t, "engine", entry["component"])
		assert.Contains(t, entry, "time")
	})

	t.Run("success - unknown level falls back to info", func(t *testing.T) {
		var buf bytes.Buffer
		log, _, err := New(config.LoggingConfig{Level: "loud"}, &buf)
		require.NoError(t, err)

		log.Debug().Msg("hidden")
		assert.Empty(t, buf.String())
		log.Info().Msg("shown")
		assert.Contains(t, buf.String(), "shown")
	})

	t.Run("success - text format", func(t *testing.T) {
		var buf bytes.Buffer
		log, _, err := New(config.LoggingConfig{Level: "info", Format: "text"}, &buf)
		require.NoError(t, err)

		log.Info().Str("item_id", "abc").Msg("delivered")
		assert.Contains(t, buf.String(), "delivered")
		assert.Contains(t, buf.String(), "item_id=abc")
	})

	t.Run("success - file output", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "logs", "sender.log")
		log, closer, err := New(config.LoggingConfig{Level: "info", Output: "file", FilePath: path}, nil)
		require.NoError(t, err)

		log.Info().Msg("to file")
		require.NoError(t, closer.Close())
		assert.FileExists(t, path)
	})
}
