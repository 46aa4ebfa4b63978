// Package detect wraps a pretrained SSD-style ONNX object detection model
// behind a small, soft-failing API suitable for per-tick monitoring.
package detect

import (
	"fmt"
	"image"
	"log"
	"os"
	"sort"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// State describes the detector lifecycle.
type State int

const (
	// StateUninitialized is the initial state before Initialize is called.
	StateUninitialized State = iota
	// StateInitializing is transient while the model is being loaded.
	StateInitializing
	// StateReady means the model is loaded and Detect is usable.
	StateReady
	// StateFailed means the last Initialize attempt failed; Initialize may be
	// called again to retry.
	StateFailed
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Detection represents a detected object in frame pixel coordinates.
type Detection struct {
	Box       image.Rectangle
	Score     float32
	ClassID   int
	ClassName string
}

// Config for the ONNX detector.
type Config struct {
	ModelPath     string
	LibraryPath   string // onnxruntime shared library; platform default when empty
	InputName     string // model input tensor name
	OutputName    string // model output tensor name
	InputWidth    int
	InputHeight   int
	MaxDetections int     // rows in the model output tensor
	NMSThreshold  float32 // IoU above which overlapping boxes are suppressed
}

// onnxruntime keeps a single process-wide environment.
var (
	ortOnce    sync.Once
	ortInitErr error
)

func initRuntime(libraryPath string) error {
	ortOnce.Do(func() {
		if libraryPath == "" {
			libraryPath = defaultSharedLibPath()
		}
		ort.SetSharedLibraryPath(libraryPath)
		ortInitErr = ort.InitializeEnvironment()
	})
	return ortInitErr
}

// Detector runs SSD-style object detection through onnxruntime. Detect fails
// softly: an unloaded model or a zero-dimension frame yields an empty result,
// never a crash of the surrounding monitoring loop.
type Detector struct {
	cfg     Config
	mu      sync.Mutex
	state   State
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
}

// New creates a detector in the uninitialized state. Call Initialize before
// ticking; Detect returns empty results until the detector is ready.
func New(cfg Config) *Detector {
	if cfg.InputName == "" {
		cfg.InputName = "images"
	}
	if cfg.OutputName == "" {
		cfg.OutputName = "detections"
	}
	if cfg.MaxDetections <= 0 {
		cfg.MaxDetections = 100
	}
	return &Detector{cfg: cfg, state: StateUninitialized}
}

// State returns the current lifecycle state.
func (d *Detector) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// IsReady reports whether the model is loaded.
func (d *Detector) IsReady() bool {
	return d.State() == StateReady
}

// Initialize loads the model. It is a no-op once the detector is ready and
// may be called again after a failure to retry. The first successful call
// allocates the inference session and its tensors; this is a one-time cost,
// not repeated per tick.
func (d *Detector) Initialize() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state == StateReady {
		return nil
	}
	d.state = StateInitializing

	if err := d.load(); err != nil {
		d.state = StateFailed
		return fmt.Errorf("failed to initialize detector: %w", err)
	}

	d.state = StateReady
	log.Printf("detector initialized with model: %s", d.cfg.ModelPath)
	log.Printf("input shape: %dx%d, max detections: %d", d.cfg.InputWidth, d.cfg.InputHeight, d.cfg.MaxDetections)
	return nil
}

func (d *Detector) load() error {
	if _, err := os.Stat(d.cfg.ModelPath); os.IsNotExist(err) {
		return fmt.Errorf("model file not found: %s", d.cfg.ModelPath)
	}
	if d.cfg.InputWidth <= 0 || d.cfg.InputHeight <= 0 {
		return fmt.Errorf("invalid model input shape: %dx%d", d.cfg.InputWidth, d.cfg.InputHeight)
	}

	if err := initRuntime(d.cfg.LibraryPath); err != nil {
		return fmt.Errorf("failed to initialize onnxruntime environment: %w", err)
	}

	inputShape := ort.NewShape(1, 3, int64(d.cfg.InputHeight), int64(d.cfg.InputWidth))
	input, err := ort.NewEmptyTensor[float32](inputShape)
	if err != nil {
		return fmt.Errorf("failed to create input tensor: %w", err)
	}

	outputShape := ort.NewShape(1, int64(d.cfg.MaxDetections), 7)
	output, err := ort.NewEmptyTensor[float32](outputShape)
	if err != nil {
		input.Destroy()
		return fmt.Errorf("failed to create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(
		d.cfg.ModelPath,
		[]string{d.cfg.InputName},
		[]string{d.cfg.OutputName},
		[]ort.ArbitraryTensor{input},
		[]ort.ArbitraryTensor{output},
		nil,
	)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return fmt.Errorf("failed to create inference session: %w", err)
	}

	d.input = input
	d.output = output
	d.session = session
	return nil
}

// Detect runs inference on the frame and returns labeled, scored boxes in
// frame pixel coordinates. A zero-dimension frame or an unready detector
// yields an empty result with no error.
func (d *Detector) Detect(frame image.Image) ([]Detection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state != StateReady {
		return nil, nil
	}
	if frame == nil {
		return nil, nil
	}
	bounds := frame.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return nil, nil
	}

	if err := preprocessFrame(frame, d.cfg.InputWidth, d.cfg.InputHeight, d.input.GetData()); err != nil {
		return nil, fmt.Errorf("failed to preprocess frame: %w", err)
	}

	if err := d.session.Run(); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	detections := d.decodeOutput(d.output.GetData(), bounds.Dx(), bounds.Dy())
	return applyNMS(detections, d.cfg.NMSThreshold), nil
}

// decodeOutput converts raw model output rows into pixel-space detections.
// Each row is [image_id, class_id, score, x1, y1, x2, y2] with normalized
// coordinates; zero-score rows are padding.
func (d *Detector) decodeOutput(data []float32, frameWidth, frameHeight int) []Detection {
	var detections []Detection

	for i := 0; i < d.cfg.MaxDetections; i++ {
		off := i * 7
		if off+7 > len(data) {
			break
		}

		score := data[off+2]
		if score <= 0 {
			continue
		}

		classID := int(data[off+1])
		if classID <= 0 || classID >= len(COCOClasses) {
			continue
		}

		x1 := int(data[off+3] * float32(frameWidth))
		y1 := int(data[off+4] * float32(frameHeight))
		x2 := int(data[off+5] * float32(frameWidth))
		y2 := int(data[off+6] * float32(frameHeight))

		x1 = max(0, x1)
		y1 = max(0, y1)
		x2 = min(frameWidth, x2)
		y2 = min(frameHeight, y2)
		if x2 <= x1 || y2 <= y1 {
			continue
		}

		detections = append(detections, Detection{
			Box:       image.Rect(x1, y1, x2, y2),
			Score:     score,
			ClassID:   classID,
			ClassName: ClassName(classID),
		})
	}

	return detections
}

// applyNMS applies Non-Maximum Suppression to remove overlapping detections.
func applyNMS(detections []Detection, threshold float32) []Detection {
	if len(detections) == 0 || threshold <= 0 {
		return detections
	}

	sort.Slice(detections, func(i, j int) bool {
		return detections[i].Score > detections[j].Score
	})

	var result []Detection
	used := make([]bool, len(detections))

	for i := 0; i < len(detections); i++ {
		if used[i] {
			continue
		}
		result = append(result, detections[i])
		used[i] = true

		for j := i + 1; j < len(detections); j++ {
			if used[j] {
				continue
			}
			if calculateIoU(detections[i].Box, detections[j].Box) > threshold {
				used[j] = true
			}
		}
	}

	return result
}

// calculateIoU calculates the Intersection over Union between two rectangles.
func calculateIoU(box1, box2 image.Rectangle) float32 {
	inter := box1.Intersect(box2)
	if inter.Empty() {
		return 0.0
	}
	interArea := inter.Dx() * inter.Dy()
	union := box1.Dx()*box1.Dy() + box2.Dx()*box2.Dy() - interArea
	if union <= 0 {
		return 0.0
	}
	return float32(interArea) / float32(union)
}

// Close releases the inference session and tensors.
func (d *Detector) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.input != nil {
		d.input.Destroy()
		d.input = nil
	}
	if d.output != nil {
		d.output.Destroy()
		d.output = nil
	}
	if d.session != nil {
		d.session.Destroy()
		d.session = nil
	}
	d.state = StateUninitialized
}
