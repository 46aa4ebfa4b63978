// Package conf loads and validates the application settings from a YAML file
// with environment variable overrides.
package conf

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Settings is the full application configuration, read once at startup and
// treated as read-only afterwards. Changing smoothing parameters mid-session
// is not supported; restart the session instead.
type Settings struct {
	Monitor MonitorSettings `mapstructure:"monitor"`
	Model   ModelSettings   `mapstructure:"model"`
	Camera  CameraSettings  `mapstructure:"camera"`
	Session SessionSettings `mapstructure:"session"`
	Store   StoreSettings   `mapstructure:"store"`
	Notify  NotifySettings  `mapstructure:"notify"`
	Server  ServerSettings  `mapstructure:"server"`
}

// MonitorSettings parameterizes the detection-to-alert pipeline.
type MonitorSettings struct {
	AllowedPersons   int      `mapstructure:"allowed_persons"`
	MinPersonScore   float32  `mapstructure:"min_person_score"`
	MinDeviceScore   float32  `mapstructure:"min_device_score"`
	DeviceClasses    []string `mapstructure:"device_classes"`
	WindowLength     int      `mapstructure:"window_length"`
	TriggerRatio     float32  `mapstructure:"trigger_ratio"`
	CooldownMs       int      `mapstructure:"cooldown_ms"`
	MinBoxAreaRatio  float32  `mapstructure:"min_box_area_ratio"`
	CacheFreshnessMs int      `mapstructure:"cache_freshness_ms"`
}

// Cooldown returns the per-kind alert cooldown as a duration.
func (m MonitorSettings) Cooldown() time.Duration {
	return time.Duration(m.CooldownMs) * time.Millisecond
}

// CacheFreshness returns the prediction cache freshness as a duration.
func (m MonitorSettings) CacheFreshness() time.Duration {
	return time.Duration(m.CacheFreshnessMs) * time.Millisecond
}

// ModelSettings locates and shapes the ONNX detection model.
type ModelSettings struct {
	Path          string  `mapstructure:"path"`
	LibraryPath   string  `mapstructure:"library_path"`
	InputName     string  `mapstructure:"input_name"`
	OutputName    string  `mapstructure:"output_name"`
	InputWidth    int     `mapstructure:"input_width"`
	InputHeight   int     `mapstructure:"input_height"`
	MaxDetections int     `mapstructure:"max_detections"`
	NMSThreshold  float32 `mapstructure:"nms_threshold"`
}

// CameraSettings selects the capture device and tick cadence.
type CameraSettings struct {
	DeviceID       int `mapstructure:"device_id"`
	TickIntervalMs int `mapstructure:"tick_interval_ms"`
}

// TickInterval returns the monitoring tick period as a duration.
func (c CameraSettings) TickInterval() time.Duration {
	return time.Duration(c.TickIntervalMs) * time.Millisecond
}

// SessionSettings governs the exam session policy around the core pipeline.
type SessionSettings struct {
	// MaxViolations ends the session once the persisted violation count
	// reaches it. Zero disables the policy.
	MaxViolations int `mapstructure:"max_violations"`
}

// StoreSettings configures violation persistence.
type StoreSettings struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// NotifySettings configures outbound alert notifications. URLs use shoutrrr
// service syntax, e.g. telegram://token@telegram?chats=id.
type NotifySettings struct {
	Enabled bool     `mapstructure:"enabled"`
	URLs    []string `mapstructure:"urls"`
}

// ServerSettings configures the HTTP API.
type ServerSettings struct {
	Enabled bool   `mapstructure:"enabled"`
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("monitor.allowed_persons", 1)
	v.SetDefault("monitor.min_person_score", 0.5)
	v.SetDefault("monitor.min_device_score", 0.6)
	v.SetDefault("monitor.device_classes", []string{"cell phone", "laptop", "remote", "tv", "keyboard"})
	v.SetDefault("monitor.window_length", 12)
	v.SetDefault("monitor.trigger_ratio", 0.35)
	v.SetDefault("monitor.cooldown_ms", 10000)
	v.SetDefault("monitor.min_box_area_ratio", 0.004)
	v.SetDefault("monitor.cache_freshness_ms", 400)

	v.SetDefault("model.path", "models/ssd_mobilenet.onnx")
	v.SetDefault("model.input_name", "images")
	v.SetDefault("model.output_name", "detections")
	v.SetDefault("model.input_width", 320)
	v.SetDefault("model.input_height", 320)
	v.SetDefault("model.max_detections", 100)
	v.SetDefault("model.nms_threshold", 0.5)

	v.SetDefault("camera.device_id", 0)
	v.SetDefault("camera.tick_interval_ms", 1000)

	v.SetDefault("session.max_violations", 0)

	v.SetDefault("store.enabled", true)
	v.SetDefault("store.path", "exam_monitor.db")

	v.SetDefault("notify.enabled", false)

	v.SetDefault("server.enabled", true)
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8484)
}

// Load reads the settings file at path, applying defaults and SEM_ prefixed
// environment overrides. An empty path loads defaults only.
func Load(path string) (*Settings, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("SEM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "failed to read config file %s", path)
		}
	}

	var settings Settings
	if err := v.Unmarshal(&settings); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}

	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return &settings, nil
}

// Validate rejects settings the pipeline cannot run with.
func (s *Settings) Validate() error {
	m := s.Monitor
	if m.AllowedPersons < 0 {
		return errors.Errorf("monitor.allowed_persons must be non-negative, got %d", m.AllowedPersons)
	}
	if m.WindowLength < 1 {
		return errors.Errorf("monitor.window_length must be at least 1, got %d", m.WindowLength)
	}
	if m.TriggerRatio <= 0 || m.TriggerRatio > 1 {
		return errors.Errorf("monitor.trigger_ratio must be in (0, 1], got %v", m.TriggerRatio)
	}
	if m.MinPersonScore < 0 || m.MinPersonScore > 1 {
		return errors.Errorf("monitor.min_person_score must be in [0, 1], got %v", m.MinPersonScore)
	}
	if m.MinDeviceScore < 0 || m.MinDeviceScore > 1 {
		return errors.Errorf("monitor.min_device_score must be in [0, 1], got %v", m.MinDeviceScore)
	}
	if m.MinBoxAreaRatio < 0 || m.MinBoxAreaRatio >= 1 {
		return errors.Errorf("monitor.min_box_area_ratio must be in [0, 1), got %v", m.MinBoxAreaRatio)
	}
	if m.CooldownMs < 0 {
		return errors.Errorf("monitor.cooldown_ms must be non-negative, got %d", m.CooldownMs)
	}
	if m.CacheFreshnessMs < 0 {
		return errors.Errorf("monitor.cache_freshness_ms must be non-negative, got %d", m.CacheFreshnessMs)
	}
	if len(m.DeviceClasses) == 0 {
		return errors.New("monitor.device_classes must name at least one class")
	}

	if s.Model.Path == "" {
		return errors.New("model.path is required")
	}
	if s.Model.InputWidth <= 0 || s.Model.InputHeight <= 0 {
		return errors.Errorf("model input shape must be positive, got %dx%d", s.Model.InputWidth, s.Model.InputHeight)
	}
	if s.Camera.TickIntervalMs <= 0 {
		return errors.Errorf("camera.tick_interval_ms must be positive, got %d", s.Camera.TickIntervalMs)
	}
	if s.Session.MaxViolations < 0 {
		return errors.Errorf("session.max_violations must be non-negative, got %d", s.Session.MaxViolations)
	}
	if s.Notify.Enabled && len(s.Notify.URLs) == 0 {
		return errors.New("notify.urls must name at least one service when notifications are enabled")
	}
	if s.Server.Enabled && (s.Server.Port <= 0 || s.Server.Port > 65535) {
		return errors.Errorf("server.port must be a valid port, got %d", s.Server.Port)
	}
	return nil
}
