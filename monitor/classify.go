package monitor

import (
	"strings"

	"github.com/chewxy/math32"

	"github.com/DurvasPalve203/Safe-Exam-Monitor-System/detect"
)

// personClass is the detector label mapped to ObjectPerson.
const personClass = "person"

// Classifier maps filtered detections into the monitor vocabulary using
// per-class confidence thresholds. The person and device vocabularies are
// disjoint, so one detection yields at most one classified object.
type Classifier struct {
	minPersonScore float32
	minDeviceScore float32
	deviceClasses  map[string]bool
}

// NewClassifier builds a classifier. Device class names are matched
// case-insensitively.
func NewClassifier(minPersonScore, minDeviceScore float32, deviceClasses []string) *Classifier {
	c := &Classifier{
		minPersonScore: minPersonScore,
		minDeviceScore: minDeviceScore,
		deviceClasses:  make(map[string]bool, len(deviceClasses)),
	}
	for _, name := range deviceClasses {
		c.deviceClasses[strings.ToLower(name)] = true
	}
	return c
}

// Classify converts detections into classified objects, preserving input
// order. Detections matching neither vocabulary are dropped. The person
// label is matched exactly; only device class names are case-insensitive.
func (c *Classifier) Classify(detections []detect.Detection) []ClassifiedObject {
	var objects []ClassifiedObject
	for _, det := range detections {
		label := strings.ToLower(det.ClassName)
		switch {
		case det.ClassName == personClass && det.Score >= c.minPersonScore:
			objects = append(objects, ClassifiedObject{Kind: ObjectPerson, Box: det.Box, Confidence: det.Score})
		case c.deviceClasses[label] && det.Score >= c.minDeviceScore:
			objects = append(objects, ClassifiedObject{Kind: ObjectDevice, Box: det.Box, Confidence: det.Score})
		}
	}
	return objects
}

// BuildSnapshot aggregates classified objects into the current-state snapshot.
// Device confidence takes precedence when a device is present; a present but
// unscored device reports confidence 0 rather than silently substituting a
// default (the alerting path handles its own fallback).
func (c *Classifier) BuildSnapshot(objects []ClassifiedObject) Snapshot {
	snap := Snapshot{Objects: objects}

	var personConfidence, deviceConfidence float32
	for _, obj := range objects {
		switch obj.Kind {
		case ObjectPerson:
			snap.PersonCount++
			personConfidence = math32.Max(personConfidence, obj.Confidence)
		case ObjectDevice:
			snap.DeviceDetected = true
			deviceConfidence = math32.Max(deviceConfidence, obj.Confidence)
		}
	}

	if snap.DeviceDetected {
		snap.Confidence = deviceConfidence
	} else if snap.PersonCount > 0 {
		snap.Confidence = personConfidence
	}
	return snap
}
