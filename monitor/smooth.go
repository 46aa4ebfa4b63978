package monitor

import (
	"time"

	"github.com/chewxy/math32"
)

// Fallback confidences reported when a violation triggers off a snapshot that
// carries no usable score for the relevant object kind.
const (
	fallbackPersonsConfidence float32 = 0.9
	fallbackDeviceConfidence  float32 = 0.8
)

var violationMessages = map[ViolationKind]string{
	ViolationMultiplePersons: "Multiple persons detected in frame",
	ViolationDeviceDetected:  "Prohibited device detected in frame",
}

// window is a fixed-capacity FIFO of boolean observations for one violation
// kind. During warm-up the ratio divisor is the current length, not the
// capacity, so a short burst of positives can trigger early.
type window struct {
	entries   []bool
	capacity  int
	lastAlert time.Time
}

func newWindow(capacity int) *window {
	return &window{capacity: capacity}
}

func (w *window) push(observed bool) {
	w.entries = append(w.entries, observed)
	if len(w.entries) > w.capacity {
		w.entries = w.entries[1:]
	}
}

func (w *window) ratio() float32 {
	if len(w.entries) == 0 {
		return 0
	}
	var positives int
	for _, e := range w.entries {
		if e {
			positives++
		}
	}
	return float32(positives) / float32(len(w.entries))
}

func (w *window) reset() {
	w.entries = nil
	w.lastAlert = time.Time{}
}

// EngineConfig holds the smoothing and rate-limiting parameters.
type EngineConfig struct {
	// AllowedPersons is the maximum person count that is not a violation.
	AllowedPersons int
	// WindowLength is the observation window capacity per violation kind.
	WindowLength int
	// TriggerRatio is the minimum positive fraction of the window that fires
	// an alert.
	TriggerRatio float32
	// Cooldown is the minimum interval between alerts of the same kind.
	Cooldown time.Duration
}

// Engine smooths per-tick snapshots into violation alerts. Each violation
// kind has its own observation window and cooldown clock; a device alert
// never delays a persons alert. The engine is single-goroutine by contract,
// driven from the monitoring loop.
type Engine struct {
	cfg     EngineConfig
	windows map[ViolationKind]*window
}

// NewEngine creates a smoothing engine with empty windows.
func NewEngine(cfg EngineConfig) *Engine {
	if cfg.WindowLength <= 0 {
		cfg.WindowLength = 1
	}
	windows := make(map[ViolationKind]*window, len(violationKinds))
	for _, kind := range violationKinds {
		windows[kind] = newWindow(cfg.WindowLength)
	}
	return &Engine{cfg: cfg, windows: windows}
}

// Observe records one snapshot and returns the alerts it triggers, in the
// fixed evaluation order. Alerts carry the max confidence of the relevant
// object kind in the triggering snapshot, or a fixed fallback when that max
// is zero.
func (e *Engine) Observe(now time.Time, snap Snapshot) []Alert {
	var alerts []Alert
	for _, kind := range violationKinds {
		w := e.windows[kind]
		w.push(e.condition(kind, snap))

		if w.ratio() < e.cfg.TriggerRatio {
			continue
		}
		if !w.lastAlert.IsZero() && now.Sub(w.lastAlert) < e.cfg.Cooldown {
			continue
		}

		w.lastAlert = now
		alerts = append(alerts, Alert{
			Kind:       kind,
			Message:    violationMessages[kind],
			Timestamp:  now,
			Confidence: e.confidence(kind, snap),
		})
	}
	return alerts
}

func (e *Engine) condition(kind ViolationKind, snap Snapshot) bool {
	switch kind {
	case ViolationMultiplePersons:
		return snap.PersonCount > e.cfg.AllowedPersons
	case ViolationDeviceDetected:
		return snap.DeviceDetected
	}
	return false
}

func (e *Engine) confidence(kind ViolationKind, snap Snapshot) float32 {
	var objKind ObjectKind
	var fallback float32
	switch kind {
	case ViolationMultiplePersons:
		objKind, fallback = ObjectPerson, fallbackPersonsConfidence
	case ViolationDeviceDetected:
		objKind, fallback = ObjectDevice, fallbackDeviceConfidence
	}

	var maxConfidence float32
	for _, obj := range snap.Objects {
		if obj.Kind == objKind {
			maxConfidence = math32.Max(maxConfidence, obj.Confidence)
		}
	}
	if maxConfidence == 0 {
		return fallback
	}
	return maxConfidence
}

// Reset clears all windows and cooldown clocks, returning the engine to its
// warm-up state. Used when a monitoring session restarts.
func (e *Engine) Reset() {
	for _, w := range e.windows {
		w.reset()
	}
}
