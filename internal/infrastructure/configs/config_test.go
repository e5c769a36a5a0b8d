package configs

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.HTTP.Host)
	assert.Equal(t, uint16(8080), cfg.HTTP.Port)
	assert.Equal(t, []string{"*"}, cfg.HTTP.AllowedOrigins)

	assert.Equal(t, uint(100), cfg.RoomStore.Capacity)
	assert.Equal(t, 30*time.Minute, cfg.RoomStore.IdleExpiry)
	assert.Equal(t, time.Minute, cfg.RoomStore.SweepInterval)

	assert.Equal(t, int64(2<<20), cfg.Ingest.MaxAudioBytes)

	assert.Equal(t, "http://localhost:8000/API/v1/transcribe", cfg.Transcriber.Endpoint)
	assert.Equal(t, 30*time.Second, cfg.Transcriber.Timeout)

	assert.Equal(t, 64, cfg.WS.SendBuffer)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
http:
  host: 127.0.0.1
  port: 9090
room_store:
  capacity: 7
ingest:
  max_audio_bytes: 4096
transcriber:
  endpoint: http://engine:9000/transcribe
`)
	require.NoError(t, os.WriteFile(path, content, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.HTTP.Host)
	assert.Equal(t, uint16(9090), cfg.HTTP.Port)
	assert.Equal(t, uint(7), cfg.RoomStore.Capacity)
	assert.Equal(t, int64(4096), cfg.Ingest.MaxAudioBytes)
	assert.Equal(t, "http://engine:9000/transcribe", cfg.Transcriber.Endpoint)

	// Untouched keys keep their defaults.
	assert.Equal(t, 64, cfg.WS.SendBuffer)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("HTTP_PORT", "9191")
	t.Setenv("MAX_AUDIO_BYTES", "8192")
	t.Setenv("TRANSCRIBER_URL", "http://override:8000/transcribe")
	t.Setenv("ROOM_STORE_CAPACITY", "42")
	t.Setenv("WS_SEND_BUFFER", "16")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, uint16(9191), cfg.HTTP.Port)
	assert.Equal(t, int64(8192), cfg.Ingest.MaxAudioBytes)
	assert.Equal(t, "http://override:8000/transcribe", cfg.Transcriber.Endpoint)
	assert.Equal(t, uint(42), cfg.RoomStore.Capacity)
	assert.Equal(t, 16, cfg.WS.SendBuffer)
}
