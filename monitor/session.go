package monitor

import (
	"image"
	"time"

	"github.com/pkg/errors"
)

// Config holds the monitoring pipeline parameters.
type Config struct {
	// AllowedPersons is the maximum person count that is not a violation.
	AllowedPersons int
	// MinAreaRatio drops detections smaller than this fraction of the frame.
	MinAreaRatio float32
	// MinPersonScore and MinDeviceScore are classifier thresholds.
	MinPersonScore float32
	MinDeviceScore float32
	// DeviceClasses are the detector labels treated as prohibited devices.
	DeviceClasses []string
	// WindowLength, TriggerRatio and Cooldown parameterize alert smoothing.
	WindowLength int
	TriggerRatio float32
	Cooldown     time.Duration
	// PredictionFreshness bounds how long a detector result is reused across
	// calls within one tick. Zero disables the cache.
	PredictionFreshness time.Duration
}

// Validate rejects parameter combinations the pipeline cannot run with.
func (c Config) Validate() error {
	if c.AllowedPersons < 0 {
		return errors.Errorf("allowed persons must be non-negative, got %d", c.AllowedPersons)
	}
	if c.WindowLength <= 0 {
		return errors.Errorf("window length must be positive, got %d", c.WindowLength)
	}
	if c.TriggerRatio <= 0 || c.TriggerRatio > 1 {
		return errors.Errorf("trigger ratio must be in (0, 1], got %v", c.TriggerRatio)
	}
	if len(c.DeviceClasses) == 0 {
		return errors.New("at least one device class is required")
	}
	return nil
}

// Session ties the pipeline together for one monitored exam: detector output
// flows through the prediction cache, the box filter and the classifier, then
// splits into the display snapshot and the smoothed alert stream.
type Session struct {
	cfg        Config
	cache      *PredictionCache
	classifier *Classifier
	engine     *Engine
}

// NewSession builds the pipeline around the given detector.
func NewSession(cfg Config, detector ObjectDetector) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid monitor config")
	}
	return &Session{
		cfg:        cfg,
		cache:      NewPredictionCache(detector, cfg.PredictionFreshness),
		classifier: NewClassifier(cfg.MinPersonScore, cfg.MinDeviceScore, cfg.DeviceClasses),
		engine: NewEngine(EngineConfig{
			AllowedPersons: cfg.AllowedPersons,
			WindowLength:   cfg.WindowLength,
			TriggerRatio:   cfg.TriggerRatio,
			Cooldown:       cfg.Cooldown,
		}),
	}, nil
}

// Tick processes one frame for the alerting path. When the monitored surface
// is not visible or the frame has no area, nothing is observed: the smoothing
// windows are left untouched and an empty snapshot is returned.
func (s *Session) Tick(now time.Time, frame image.Image, visible bool) (Snapshot, []Alert, error) {
	if !visible || !hasArea(frame) {
		return Snapshot{}, nil, nil
	}

	snap, err := s.snapshot(frame)
	if err != nil {
		return Snapshot{}, nil, err
	}
	return snap, s.engine.Observe(now, snap), nil
}

// CurrentState computes the display snapshot for the frame without feeding
// the smoothing windows. Within the cache freshness window this reuses the
// inference already run by Tick.
func (s *Session) CurrentState(frame image.Image) (Snapshot, error) {
	if !hasArea(frame) {
		return Snapshot{}, nil
	}
	return s.snapshot(frame)
}

func (s *Session) snapshot(frame image.Image) (Snapshot, error) {
	detections, err := s.cache.Predict(frame)
	if err != nil {
		return Snapshot{}, errors.Wrap(err, "prediction failed")
	}
	bounds := frame.Bounds()
	kept := FilterBoxes(bounds.Dx(), bounds.Dy(), s.cfg.MinAreaRatio, detections)
	return s.classifier.BuildSnapshot(s.classifier.Classify(kept)), nil
}

func hasArea(frame image.Image) bool {
	if frame == nil {
		return false
	}
	bounds := frame.Bounds()
	return bounds.Dx() > 0 && bounds.Dy() > 0
}

// CacheStats exposes prediction cache counters for metrics.
func (s *Session) CacheStats() CacheStats {
	return s.cache.Stats()
}

// Reset clears all smoothing state and the prediction cache, returning the
// session to warm-up.
func (s *Session) Reset() {
	s.engine.Reset()
	s.cache.Flush()
}
