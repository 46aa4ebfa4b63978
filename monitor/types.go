// Package monitor contains the exam monitoring core: it filters and
// classifies raw object detections into a per-tick snapshot and smooths the
// per-frame noise into rate-limited violation alerts.
package monitor

import (
	"image"
	"time"
)

// ObjectKind is the fixed detection vocabulary of the monitor.
type ObjectKind string

const (
	// ObjectPerson marks a detected person.
	ObjectPerson ObjectKind = "person"
	// ObjectDevice marks a detected handheld device.
	ObjectDevice ObjectKind = "device"
)

// ViolationKind identifies the condition a violation alert reports.
type ViolationKind string

const (
	// ViolationMultiplePersons fires when more persons than allowed are visible.
	ViolationMultiplePersons ViolationKind = "multiple_persons"
	// ViolationDeviceDetected fires when a handheld device is visible.
	ViolationDeviceDetected ViolationKind = "device_detected"
)

// violationKinds is the evaluation order per tick.
var violationKinds = []ViolationKind{ViolationMultiplePersons, ViolationDeviceDetected}

// ClassifiedObject is a single detection mapped into the monitor vocabulary.
// Instances are recreated every tick and never mutated.
type ClassifiedObject struct {
	Kind       ObjectKind      `json:"kind"`
	Box        image.Rectangle `json:"box"`
	Confidence float32         `json:"confidence"`
}

// Snapshot describes what is true right now. It carries no history and is
// replaced wholesale every tick.
type Snapshot struct {
	PersonCount    int                `json:"person_count"`
	DeviceDetected bool               `json:"device_detected"`
	Confidence     float32            `json:"confidence"`
	Objects        []ClassifiedObject `json:"objects"`
}

// Alert is an emitted violation. Alerts are immutable once created; the core
// appends them to a caller-owned log and never revisits them.
type Alert struct {
	Kind       ViolationKind `json:"kind"`
	Message    string        `json:"message"`
	Timestamp  time.Time     `json:"timestamp"`
	Confidence float32       `json:"confidence"`
}
