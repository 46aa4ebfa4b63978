package monitor

import (
	"github.com/DurvasPalve203/Safe-Exam-Monitor-System/detect"
)

// FilterBoxes drops detections whose area is negligible relative to the frame,
// suppressing background false positives. A detection survives iff
// boxArea / frameArea >= minAreaRatio. Pure and order-preserving.
func FilterBoxes(frameWidth, frameHeight int, minAreaRatio float32, detections []detect.Detection) []detect.Detection {
	frameArea := float32(frameWidth) * float32(frameHeight)
	if frameArea <= 0 {
		return nil
	}
	if minAreaRatio <= 0 {
		return detections
	}

	var kept []detect.Detection
	for _, det := range detections {
		area := float32(det.Box.Dx()) * float32(det.Box.Dy())
		if area/frameArea >= minAreaRatio {
			kept = append(kept, det)
		}
	}
	return kept
}
