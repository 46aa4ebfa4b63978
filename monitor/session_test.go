package monitor

import (
	"image"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DurvasPalve203/Safe-Exam-Monitor-System/detect"
)

func sessionConfig() Config {
	return Config{
		AllowedPersons:      1,
		MinAreaRatio:        0.004,
		MinPersonScore:      0.5,
		MinDeviceScore:      0.6,
		DeviceClasses:       testDeviceClasses,
		WindowLength:        4,
		TriggerRatio:        0.5,
		Cooldown:            10 * time.Second,
		PredictionFreshness: time.Minute,
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"negative allowed persons", func(c *Config) { c.AllowedPersons = -1 }, "allowed persons"},
		{"zero window length", func(c *Config) { c.WindowLength = 0 }, "window length"},
		{"zero trigger ratio", func(c *Config) { c.TriggerRatio = 0 }, "trigger ratio"},
		{"trigger ratio above one", func(c *Config) { c.TriggerRatio = 1.5 }, "trigger ratio"},
		{"no device classes", func(c *Config) { c.DeviceClasses = nil }, "device class"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := sessionConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestSessionTick(t *testing.T) {
	det := &mockDetector{detections: []detect.Detection{
		{Box: image.Rect(100, 100, 500, 600), Score: 0.9, ClassName: "person"},
		{Box: image.Rect(600, 100, 1000, 600), Score: 0.85, ClassName: "person"},
		{Box: image.Rect(0, 0, 60, 60), Score: 0.95, ClassName: "cell phone"},
	}}

	s, err := NewSession(sessionConfig(), det)
	require.NoError(t, err)

	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	snap, alerts, err := s.Tick(now, testFrame(), true)
	require.NoError(t, err)

	// The tiny cell phone box is dropped by the area filter, so only the
	// persons violation fires.
	assert.Equal(t, 2, snap.PersonCount)
	assert.False(t, snap.DeviceDetected)
	require.Len(t, alerts, 1)
	assert.Equal(t, ViolationMultiplePersons, alerts[0].Kind)
	assert.InDelta(t, 0.9, alerts[0].Confidence, 1e-6)
}

func TestSessionSkipsWhenNotVisible(t *testing.T) {
	det := &mockDetector{detections: []detect.Detection{
		{Box: image.Rect(100, 100, 500, 600), Score: 0.9, ClassName: "person"},
		{Box: image.Rect(600, 100, 1000, 600), Score: 0.85, ClassName: "person"},
	}}

	s, err := NewSession(sessionConfig(), det)
	require.NoError(t, err)

	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	// Hidden surface: no inference, no window mutation.
	snap, alerts, err := s.Tick(now, testFrame(), false)
	require.NoError(t, err)
	assert.Zero(t, snap.PersonCount)
	assert.Empty(t, alerts)
	assert.Equal(t, 0, det.calls)

	// Zero-dimension frames are treated the same way.
	_, alerts, err = s.Tick(now, image.NewRGBA(image.Rect(0, 0, 0, 0)), true)
	require.NoError(t, err)
	assert.Empty(t, alerts)
	_, alerts, err = s.Tick(now, nil, true)
	require.NoError(t, err)
	assert.Empty(t, alerts)
	assert.Equal(t, 0, det.calls)

	// The skipped ticks did not back-date the window with false entries: the
	// first real observation still fires immediately.
	_, alerts, err = s.Tick(now.Add(time.Second), testFrame(), true)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, ViolationMultiplePersons, alerts[0].Kind)
}

func TestSessionCurrentStateSharesInference(t *testing.T) {
	det := &mockDetector{detections: []detect.Detection{
		{Box: image.Rect(100, 100, 500, 600), Score: 0.9, ClassName: "person"},
	}}

	s, err := NewSession(sessionConfig(), det)
	require.NoError(t, err)

	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	_, _, err = s.Tick(now, testFrame(), true)
	require.NoError(t, err)

	// The display path within the same tick reuses the cached prediction.
	snap, err := s.CurrentState(testFrame())
	require.NoError(t, err)
	assert.Equal(t, 1, snap.PersonCount)
	assert.Equal(t, 1, det.calls)
	assert.Equal(t, uint64(1), s.CacheStats().Hits)
}

func TestSessionReset(t *testing.T) {
	det := &mockDetector{detections: []detect.Detection{
		{Box: image.Rect(100, 100, 500, 600), Score: 0.9, ClassName: "person"},
		{Box: image.Rect(600, 100, 1000, 600), Score: 0.85, ClassName: "person"},
	}}

	cfg := sessionConfig()
	cfg.Cooldown = time.Hour
	s, err := NewSession(cfg, det)
	require.NoError(t, err)

	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	_, alerts, err := s.Tick(now, testFrame(), true)
	require.NoError(t, err)
	require.Len(t, alerts, 1)

	_, alerts, err = s.Tick(now.Add(time.Second), testFrame(), true)
	require.NoError(t, err)
	assert.Empty(t, alerts)

	s.Reset()

	// Reset dropped the cached prediction and zeroed the cooldown clocks.
	_, alerts, err = s.Tick(now.Add(2*time.Second), testFrame(), true)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, 2, det.calls)
}

func TestSessionRejectsInvalidConfig(t *testing.T) {
	cfg := sessionConfig()
	cfg.WindowLength = 0

	_, err := NewSession(cfg, &mockDetector{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid monitor config")
}
