// Package proctor drives the monitoring loop: it samples frames on a fixed
// interval, feeds them through the detection pipeline and dispatches the
// resulting alerts to persistence, notification and the live API.
package proctor

import (
	"context"
	"image"
	"log"
	"time"

	"github.com/DurvasPalve203/Safe-Exam-Monitor-System/metrics"
	"github.com/DurvasPalve203/Safe-Exam-Monitor-System/monitor"
	"github.com/DurvasPalve203/Safe-Exam-Monitor-System/server"
	"github.com/DurvasPalve203/Safe-Exam-Monitor-System/store"
)

// FrameSource supplies one frame per tick.
type FrameSource interface {
	Sample() (image.Image, error)
}

// VisibilitySource reports whether the monitored surface is currently
// visible. Hidden ticks produce no observations.
type VisibilitySource interface {
	Visible() bool
}

// Notifier delivers one alert to external services.
type Notifier interface {
	NotifyAlert(sessionID string, alert monitor.Alert) error
}

// ViolationSink persists violations and session state.
type ViolationSink interface {
	SaveViolation(v *store.Violation) (int, error)
	EndSession(sessionID, status string, endedAt time.Time) error
}

// LiveView publishes monitoring state for display.
type LiveView interface {
	SetSnapshot(monitor.Snapshot)
	AppendAlerts([]monitor.Alert)
	SetSessionInfo(server.SessionInfo)
}

// Config parameterizes a runner.
type Config struct {
	SessionID    string
	StartedAt    time.Time
	TickInterval time.Duration
	// MaxViolations ends the session once the persisted count reaches it.
	// Zero disables the policy.
	MaxViolations int
}

// Runner owns one monitoring session. Optional collaborators may be nil;
// the loop then skips the corresponding dispatch step.
type Runner struct {
	cfg     Config
	session *monitor.Session
	frames  FrameSource

	visibility    VisibilitySource
	sink          ViolationSink
	notifier      Notifier
	view          LiveView
	metrics       *metrics.Metrics
	detectorState func() string

	now func() time.Time

	violationCount int
}

// NewRunner assembles a runner around the pipeline session and frame source.
func NewRunner(cfg Config, session *monitor.Session, frames FrameSource) *Runner {
	return &Runner{
		cfg:     cfg,
		session: session,
		frames:  frames,
		metrics: metrics.New(),
		now:     time.Now,
	}
}

// WithVisibility wires the visibility signal.
func (r *Runner) WithVisibility(v VisibilitySource) *Runner { r.visibility = v; return r }

// WithSink wires violation persistence.
func (r *Runner) WithSink(s ViolationSink) *Runner { r.sink = s; return r }

// WithNotifier wires outbound notifications.
func (r *Runner) WithNotifier(n Notifier) *Runner { r.notifier = n; return r }

// WithView wires the live display surface.
func (r *Runner) WithView(v LiveView) *Runner { r.view = v; return r }

// WithMetrics replaces the default metrics instance.
func (r *Runner) WithMetrics(m *metrics.Metrics) *Runner { r.metrics = m; return r }

// WithDetectorState wires the detector lifecycle state for the session API.
func (r *Runner) WithDetectorState(f func() string) *Runner { r.detectorState = f; return r }

// Metrics returns the runner's metrics instance.
func (r *Runner) Metrics() *metrics.Metrics { return r.metrics }

// Run drives the loop until the context is cancelled or the maximum
// violation policy ends the session. Ticks run strictly sequentially; a slow
// tick delays the next one rather than overlapping it.
func (r *Runner) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.TickInterval)
	defer ticker.Stop()

	r.publishSessionInfo(store.StatusActive)

	for {
		select {
		case <-ctx.Done():
			r.endSession(store.StatusCompleted)
			return nil
		case <-ticker.C:
			if r.tick(r.now()) {
				r.endSession(store.StatusTerminated)
				return nil
			}
		}
	}
}

// tick processes a single monitoring cycle. It returns true when the maximum
// violation policy terminates the session.
func (r *Runner) tick(now time.Time) bool {
	r.metrics.Ticks.Add(1)

	visible := true
	if r.visibility != nil {
		visible = r.visibility.Visible()
	}
	if !visible {
		r.metrics.TicksSkipped.Add(1)
		return false
	}

	frame, err := r.frames.Sample()
	if err != nil {
		log.Printf("frame capture failed: %v", err)
		r.metrics.TicksSkipped.Add(1)
		return false
	}

	inferStart := time.Now()
	_, alerts, err := r.session.Tick(now, frame, visible)
	if err != nil {
		log.Printf("tick failed: %v", err)
		r.metrics.InferenceErrors.Add(1)
		return false
	}
	r.metrics.UpdateInferenceLatency(time.Since(inferStart))

	terminate := false
	for _, alert := range alerts {
		if r.dispatchAlert(alert) {
			terminate = true
		}
	}

	if r.view != nil {
		// The display path queries the session separately from the alerting
		// path; within the cache freshness window it reuses the inference the
		// Tick above already ran.
		display, err := r.session.CurrentState(frame)
		if err != nil {
			log.Printf("display snapshot failed: %v", err)
		} else {
			r.view.SetSnapshot(display)
		}
		r.view.AppendAlerts(alerts)
	}
	r.publishSessionInfo(store.StatusActive)

	// Cache misses are the actual model runs; hits are reused predictions.
	stats := r.session.CacheStats()
	r.metrics.Inferences.Store(stats.Misses)
	r.metrics.CacheHits.Store(stats.Hits)

	return terminate
}

// dispatchAlert persists and delivers one alert. It returns true when the
// persisted violation count reaches the configured maximum.
func (r *Runner) dispatchAlert(alert monitor.Alert) bool {
	r.violationCount++

	if r.sink != nil {
		count, err := r.sink.SaveViolation(&store.Violation{
			SessionID:   r.cfg.SessionID,
			Kind:        string(alert.Kind),
			Message:     alert.Message,
			Confidence:  alert.Confidence,
			TimestampMs: alert.Timestamp.UnixMilli(),
		})
		if err != nil {
			log.Printf("failed to persist violation: %v", err)
			r.metrics.StoreErrors.Add(1)
		} else {
			r.violationCount = count
		}
	}

	if r.notifier != nil {
		if err := r.notifier.NotifyAlert(r.cfg.SessionID, alert); err != nil {
			log.Printf("failed to deliver notification: %v", err)
			r.metrics.NotifyErrors.Add(1)
		}
	}

	switch alert.Kind {
	case monitor.ViolationMultiplePersons:
		r.metrics.AlertsPersons.Add(1)
	case monitor.ViolationDeviceDetected:
		r.metrics.AlertsDevice.Add(1)
	}

	return r.cfg.MaxViolations > 0 && r.violationCount >= r.cfg.MaxViolations
}

func (r *Runner) publishSessionInfo(status string) {
	if r.view == nil {
		return
	}
	info := server.SessionInfo{
		ID:             r.cfg.SessionID,
		StartedAt:      r.cfg.StartedAt.Format(time.RFC3339),
		Status:         status,
		ViolationCount: r.violationCount,
	}
	if r.detectorState != nil {
		info.DetectorState = r.detectorState()
	}
	r.view.SetSessionInfo(info)
}

func (r *Runner) endSession(status string) {
	if r.sink != nil {
		if err := r.sink.EndSession(r.cfg.SessionID, status, r.now()); err != nil {
			log.Printf("failed to end session: %v", err)
			r.metrics.StoreErrors.Add(1)
		}
	}
	r.publishSessionInfo(status)
	log.Printf("session %s ended with status %s after %d violations",
		r.cfg.SessionID, status, r.violationCount)
}
