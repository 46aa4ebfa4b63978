package conf

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	settings, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 1, settings.Monitor.AllowedPersons)
	assert.Equal(t, 12, settings.Monitor.WindowLength)
	assert.InDelta(t, 0.35, settings.Monitor.TriggerRatio, 1e-6)
	assert.Equal(t, 10*time.Second, settings.Monitor.Cooldown())
	assert.Equal(t, 400*time.Millisecond, settings.Monitor.CacheFreshness())
	assert.Contains(t, settings.Monitor.DeviceClasses, "cell phone")
	assert.Equal(t, 320, settings.Model.InputWidth)
	assert.Equal(t, time.Second, settings.Camera.TickInterval())
	assert.True(t, settings.Store.Enabled)
	assert.False(t, settings.Notify.Enabled)
	assert.Equal(t, 8484, settings.Server.Port)
}

func TestLoadFile(t *testing.T) {
	content := `
monitor:
  allowed_persons: 2
  window_length: 6
  trigger_ratio: 0.5
  device_classes:
    - cell phone
model:
  path: /opt/models/detector.onnx
  input_width: 640
  input_height: 640
session:
  max_violations: 5
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	settings, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 2, settings.Monitor.AllowedPersons)
	assert.Equal(t, 6, settings.Monitor.WindowLength)
	assert.Equal(t, []string{"cell phone"}, settings.Monitor.DeviceClasses)
	assert.Equal(t, "/opt/models/detector.onnx", settings.Model.Path)
	assert.Equal(t, 640, settings.Model.InputWidth)
	assert.Equal(t, 5, settings.Session.MaxViolations)

	// Unspecified sections keep their defaults.
	assert.InDelta(t, 0.6, settings.Monitor.MinDeviceScore, 1e-6)
	assert.Equal(t, 8484, settings.Server.Port)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/does/not/exist.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestValidate(t *testing.T) {
	valid := func() *Settings {
		s, err := Load("")
		require.NoError(t, err)
		return s
	}

	tests := []struct {
		name    string
		mutate  func(*Settings)
		wantErr string
	}{
		{"negative allowed persons", func(s *Settings) { s.Monitor.AllowedPersons = -1 }, "allowed_persons"},
		{"window length zero", func(s *Settings) { s.Monitor.WindowLength = 0 }, "window_length"},
		{"trigger ratio zero", func(s *Settings) { s.Monitor.TriggerRatio = 0 }, "trigger_ratio"},
		{"trigger ratio above one", func(s *Settings) { s.Monitor.TriggerRatio = 1.01 }, "trigger_ratio"},
		{"area ratio one", func(s *Settings) { s.Monitor.MinBoxAreaRatio = 1 }, "min_box_area_ratio"},
		{"negative cooldown", func(s *Settings) { s.Monitor.CooldownMs = -1 }, "cooldown_ms"},
		{"empty device classes", func(s *Settings) { s.Monitor.DeviceClasses = nil }, "device_classes"},
		{"missing model path", func(s *Settings) { s.Model.Path = "" }, "model.path"},
		{"bad model shape", func(s *Settings) { s.Model.InputWidth = 0 }, "input shape"},
		{"zero tick interval", func(s *Settings) { s.Camera.TickIntervalMs = 0 }, "tick_interval_ms"},
		{"negative max violations", func(s *Settings) { s.Session.MaxViolations = -1 }, "max_violations"},
		{"notify enabled without urls", func(s *Settings) { s.Notify.Enabled = true }, "notify.urls"},
		{"bad server port", func(s *Settings) { s.Server.Port = 0 }, "server.port"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := valid()
			tt.mutate(s)
			err := s.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
