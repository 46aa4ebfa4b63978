package monitor

import (
	"image"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/DurvasPalve203/Safe-Exam-Monitor-System/detect"
)

// ObjectDetector is the inference dependency of the prediction cache.
type ObjectDetector interface {
	Detect(frame image.Image) ([]detect.Detection, error)
}

// predictionKey is the single cache slot; the monitor caches the latest
// prediction only, keyed by recency rather than frame content.
const predictionKey = "latest"

// CacheStats reports cache effectiveness counters.
type CacheStats struct {
	Hits   uint64
	Misses uint64
}

// PredictionCache memoizes the most recent detector output for a short
// freshness window so that the alerting path and the display path of the same
// tick share one inference instead of running the model twice.
type PredictionCache struct {
	detector  ObjectDetector
	store     *gocache.Cache
	freshness time.Duration
	hits      atomic.Uint64
	misses    atomic.Uint64
}

// NewPredictionCache wraps the detector. A freshness of zero or below
// disables caching entirely and every Predict call runs inference.
func NewPredictionCache(detector ObjectDetector, freshness time.Duration) *PredictionCache {
	return &PredictionCache{
		detector:  detector,
		store:     gocache.New(freshness, 2*freshness),
		freshness: freshness,
	}
}

// Predict returns the cached detections when they are still fresh, otherwise
// runs inference and caches the result. Detector errors are returned without
// caching, so the next call retries.
func (p *PredictionCache) Predict(frame image.Image) ([]detect.Detection, error) {
	if p.freshness > 0 {
		if cached, ok := p.store.Get(predictionKey); ok {
			p.hits.Add(1)
			return cached.([]detect.Detection), nil
		}
	}

	p.misses.Add(1)
	detections, err := p.detector.Detect(frame)
	if err != nil {
		return nil, err
	}
	if p.freshness > 0 {
		p.store.Set(predictionKey, detections, gocache.DefaultExpiration)
	}
	return detections, nil
}

// Flush drops the cached prediction so the next Predict runs inference.
func (p *PredictionCache) Flush() {
	p.store.Flush()
}

// Stats returns hit and miss counters since creation.
func (p *PredictionCache) Stats() CacheStats {
	return CacheStats{Hits: p.hits.Load(), Misses: p.misses.Load()}
}
