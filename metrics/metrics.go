// Package metrics tracks monitoring loop counters and exposes them to
// Prometheus.
package metrics

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all application metrics
type Metrics struct {
	// Tick counters
	Ticks        atomic.Uint64
	TicksSkipped atomic.Uint64

	// Inference counters
	Inferences         atomic.Uint64
	InferenceErrors    atomic.Uint64
	CacheHits          atomic.Uint64
	InferenceLatencyMs atomic.Uint64

	// Alert counters
	AlertsPersons atomic.Uint64
	AlertsDevice  atomic.Uint64
	NotifyErrors  atomic.Uint64
	StoreErrors   atomic.Uint64

	registry *prometheus.Registry
}

// New creates a Metrics instance with its Prometheus collectors registered.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
	}
	m.registerPrometheusMetrics()
	return m
}

func (m *Metrics) registerPrometheusMetrics() {
	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "exam_monitor_ticks_total",
			Help: "Total monitoring ticks processed",
		},
		func() float64 { return float64(m.Ticks.Load()) },
	))

	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "exam_monitor_ticks_skipped_total",
			Help: "Ticks skipped because the surface was hidden or the frame was empty",
		},
		func() float64 { return float64(m.TicksSkipped.Load()) },
	))

	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "exam_monitor_inferences_total",
			Help: "Total detector inferences run",
		},
		func() float64 { return float64(m.Inferences.Load()) },
	))

	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "exam_monitor_inference_errors_total",
			Help: "Total detector inference errors",
		},
		func() float64 { return float64(m.InferenceErrors.Load()) },
	))

	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "exam_monitor_cache_hits_total",
			Help: "Prediction cache hits",
		},
		func() float64 { return float64(m.CacheHits.Load()) },
	))

	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "exam_monitor_inference_latency_ms",
			Help: "Latest inference latency in milliseconds",
		},
		func() float64 { return float64(m.InferenceLatencyMs.Load()) },
	))

	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "exam_monitor_alerts_persons_total",
			Help: "Multiple persons alerts emitted",
		},
		func() float64 { return float64(m.AlertsPersons.Load()) },
	))

	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "exam_monitor_alerts_device_total",
			Help: "Prohibited device alerts emitted",
		},
		func() float64 { return float64(m.AlertsDevice.Load()) },
	))

	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "exam_monitor_notify_errors_total",
			Help: "Notification delivery errors",
		},
		func() float64 { return float64(m.NotifyErrors.Load()) },
	))

	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "exam_monitor_store_errors_total",
			Help: "Violation persistence errors",
		},
		func() float64 { return float64(m.StoreErrors.Load()) },
	))
}

// UpdateInferenceLatency records the latency of the latest inference.
func (m *Metrics) UpdateInferenceLatency(duration time.Duration) {
	m.InferenceLatencyMs.Store(uint64(duration.Milliseconds()))
}

// Handler returns the Prometheus HTTP handler for the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
