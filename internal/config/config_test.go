package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "http://127.0.0.1:5000/audio", cfg.Backend.URL)
	assert.Equal(t, 45*time.Second, cfg.Backend.Timeout)
	assert.Equal(t, 2, cfg.Backend.Retries)
	assert.Equal(t, 8*time.Second, cfg.Device.RecordDuration)
	assert.Equal(t, 30*time.Minute, cfg.Schedule.Window)
	assert.Equal(t, time.Hour, cfg.Schedule.Staleness)
	assert.Equal(t, 3, cfg.Vision.Attempts)
	assert.Equal(t, "/tmp/saathi.sock", cfg.Paths.Socket)
}

func TestLoadEmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 16000, cfg.Audio.SampleRate)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "saathi.yaml")
	body := `
backend:
  url: http://backend.lan:8080/audio
  retries: 5
device:
  record_duration: 12s
wake:
  sensitivity: 0.7
vision:
  camera_cmd: ["fswebcam", "{out}"]
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://backend.lan:8080/audio", cfg.Backend.URL)
	assert.Equal(t, 5, cfg.Backend.Retries)
	assert.Equal(t, 12*time.Second, cfg.Device.RecordDuration)
	assert.InDelta(t, 0.7, cfg.Wake.Sensitivity, 1e-9)
	assert.Equal(t, []string{"fswebcam", "{out}"}, cfg.Vision.CameraCmd)

	// Untouched keys keep their defaults.
	assert.Equal(t, 45*time.Second, cfg.Backend.Timeout)
	assert.Equal(t, 30*time.Minute, cfg.Schedule.Window)
}

func TestLoadBrokenFileErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "saathi.yaml")
	require.NoError(t, os.WriteFile(path, []byte("backend: [not: a map"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}
