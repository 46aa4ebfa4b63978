package monitor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func personsSnapshot(count int, confidence float32) Snapshot {
	snap := Snapshot{PersonCount: count, Confidence: confidence}
	for i := 0; i < count; i++ {
		snap.Objects = append(snap.Objects, ClassifiedObject{Kind: ObjectPerson, Confidence: confidence})
	}
	return snap
}

func deviceSnapshot(confidence float32) Snapshot {
	return Snapshot{
		PersonCount:    1,
		DeviceDetected: true,
		Confidence:     confidence,
		Objects: []ClassifiedObject{
			{Kind: ObjectPerson, Confidence: 0.9},
			{Kind: ObjectDevice, Confidence: confidence},
		},
	}
}

func TestEngineRollingRatio(t *testing.T) {
	e := NewEngine(EngineConfig{
		AllowedPersons: 1,
		WindowLength:   12,
		TriggerRatio:   0.35,
		Cooldown:       0,
	})

	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	tick := func(i int, snap Snapshot) []Alert {
		return e.Observe(start.Add(time.Duration(i)*time.Second), snap)
	}

	// Five ticks with two persons visible, then seven empty ticks. The window
	// is full of 12 entries after tick 12 with 5 positives: 5/12 = 0.417.
	for i := 1; i <= 12; i++ {
		snap := personsSnapshot(0, 0)
		if i <= 5 {
			snap = personsSnapshot(2, 0.88)
		}
		alerts := tick(i, snap)

		require.Len(t, alerts, 1, "tick %d", i)
		assert.Equal(t, ViolationMultiplePersons, alerts[0].Kind)
	}

	// Tick 13 evicts one positive: 4/12 = 0.333 < 0.35, no alert.
	assert.Empty(t, tick(13, personsSnapshot(0, 0)))
}

func TestEngineWarmupFiresImmediately(t *testing.T) {
	e := NewEngine(EngineConfig{
		AllowedPersons: 1,
		WindowLength:   12,
		TriggerRatio:   0.35,
		Cooldown:       time.Minute,
	})

	// During warm-up the divisor is the current window length, so a single
	// positive observation gives ratio 1/1 = 1.0.
	alerts := e.Observe(time.Now(), personsSnapshot(3, 0.75))
	require.Len(t, alerts, 1)
	assert.Equal(t, ViolationMultiplePersons, alerts[0].Kind)
	assert.Equal(t, "Multiple persons detected in frame", alerts[0].Message)
	assert.InDelta(t, 0.75, alerts[0].Confidence, 1e-6)
}

func TestEngineCooldown(t *testing.T) {
	e := NewEngine(EngineConfig{
		AllowedPersons: 1,
		WindowLength:   4,
		TriggerRatio:   0.5,
		Cooldown:       10 * time.Second,
	})

	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	alerts := e.Observe(start, personsSnapshot(2, 0.8))
	require.Len(t, alerts, 1)

	// Still inside the cooldown window: the condition holds but no alert.
	assert.Empty(t, e.Observe(start.Add(3*time.Second), personsSnapshot(2, 0.8)))
	assert.Empty(t, e.Observe(start.Add(9*time.Second), personsSnapshot(2, 0.8)))

	// Cooldown elapsed.
	alerts = e.Observe(start.Add(10*time.Second), personsSnapshot(2, 0.8))
	require.Len(t, alerts, 1)
	assert.Equal(t, start.Add(10*time.Second), alerts[0].Timestamp)
}

func TestEngineKindsAreIndependent(t *testing.T) {
	e := NewEngine(EngineConfig{
		AllowedPersons: 1,
		WindowLength:   4,
		TriggerRatio:   0.5,
		Cooldown:       time.Minute,
	})

	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	// Persons alert fires first and enters its cooldown.
	alerts := e.Observe(start, personsSnapshot(2, 0.8))
	require.Len(t, alerts, 1)
	require.Equal(t, ViolationMultiplePersons, alerts[0].Kind)

	// A device violation one tick later is not delayed by the persons cooldown.
	alerts = e.Observe(start.Add(time.Second), deviceSnapshot(0.7))
	require.Len(t, alerts, 1)
	assert.Equal(t, ViolationDeviceDetected, alerts[0].Kind)
	assert.Equal(t, "Prohibited device detected in frame", alerts[0].Message)
}

func TestEngineBothKindsInOneTick(t *testing.T) {
	e := NewEngine(EngineConfig{
		AllowedPersons: 1,
		WindowLength:   4,
		TriggerRatio:   0.5,
		Cooldown:       time.Minute,
	})

	snap := deviceSnapshot(0.7)
	snap.PersonCount = 3

	alerts := e.Observe(time.Now(), snap)
	require.Len(t, alerts, 2)
	assert.Equal(t, ViolationMultiplePersons, alerts[0].Kind)
	assert.Equal(t, ViolationDeviceDetected, alerts[1].Kind)
}

func TestEngineFallbackConfidence(t *testing.T) {
	e := NewEngine(EngineConfig{
		AllowedPersons: 0,
		WindowLength:   4,
		TriggerRatio:   0.5,
		Cooldown:       0,
	})

	// A triggering snapshot whose objects carry no usable scores falls back
	// to the fixed per-kind confidences.
	snap := Snapshot{
		PersonCount:    1,
		DeviceDetected: true,
		Objects: []ClassifiedObject{
			{Kind: ObjectPerson, Confidence: 0},
			{Kind: ObjectDevice, Confidence: 0},
		},
	}

	alerts := e.Observe(time.Now(), snap)
	require.Len(t, alerts, 2)
	assert.InDelta(t, 0.9, alerts[0].Confidence, 1e-6)
	assert.InDelta(t, 0.8, alerts[1].Confidence, 1e-6)
}

func TestEngineNoViolationNoAlert(t *testing.T) {
	e := NewEngine(EngineConfig{
		AllowedPersons: 1,
		WindowLength:   4,
		TriggerRatio:   0.25,
		Cooldown:       0,
	})

	for i := 0; i < 20; i++ {
		assert.Empty(t, e.Observe(time.Now(), personsSnapshot(1, 0.9)))
	}
}

func TestEngineWindowNeverExceedsCapacity(t *testing.T) {
	e := NewEngine(EngineConfig{
		AllowedPersons: 1,
		WindowLength:   5,
		TriggerRatio:   0.5,
		Cooldown:       0,
	})

	for i := 0; i < 50; i++ {
		e.Observe(time.Now(), personsSnapshot(2, 0.8))
	}
	for _, w := range e.windows {
		assert.LessOrEqual(t, len(w.entries), 5)
	}
}

func TestEngineReset(t *testing.T) {
	e := NewEngine(EngineConfig{
		AllowedPersons: 1,
		WindowLength:   4,
		TriggerRatio:   1.0,
		Cooldown:       time.Hour,
	})

	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	require.Len(t, e.Observe(start, personsSnapshot(2, 0.8)), 1)
	// Long cooldown suppresses further alerts.
	assert.Empty(t, e.Observe(start.Add(time.Second), personsSnapshot(2, 0.8)))

	e.Reset()

	// After reset the windows are empty and the cooldown clock is zeroed, so
	// the first qualifying tick fires again despite the hour-long cooldown.
	alerts := e.Observe(start.Add(2*time.Second), personsSnapshot(2, 0.8))
	require.Len(t, alerts, 1)

	// Filling the window with qualifying ticks keeps the persons ratio at 1.0.
	for i := 0; i < 3; i++ {
		e.Observe(start.Add(time.Duration(3+i)*time.Second), personsSnapshot(2, 0.8))
	}
	w := e.windows[ViolationMultiplePersons]
	assert.Len(t, w.entries, 4)
	assert.InDelta(t, 1.0, w.ratio(), 1e-6)
}

func TestEngineDeterminism(t *testing.T) {
	cfg := EngineConfig{
		AllowedPersons: 1,
		WindowLength:   6,
		TriggerRatio:   0.4,
		Cooldown:       5 * time.Second,
	}
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	sequence := []Snapshot{
		personsSnapshot(2, 0.8),
		personsSnapshot(0, 0),
		deviceSnapshot(0.7),
		personsSnapshot(2, 0.85),
		personsSnapshot(1, 0.9),
		deviceSnapshot(0.66),
		personsSnapshot(3, 0.95),
		personsSnapshot(0, 0),
	}

	run := func() []Alert {
		e := NewEngine(cfg)
		var all []Alert
		for i, snap := range sequence {
			all = append(all, e.Observe(start.Add(time.Duration(i)*time.Second), snap)...)
		}
		return all
	}

	assert.Equal(t, run(), run())
}
