// Command camcheck verifies the capture and detection setup before an exam:
// it opens the camera, runs the detector on live frames and prints what the
// monitor would see, with FPS.
package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/DurvasPalve203/Safe-Exam-Monitor-System/camera"
	"github.com/DurvasPalve203/Safe-Exam-Monitor-System/conf"
	"github.com/DurvasPalve203/Safe-Exam-Monitor-System/detect"
	"github.com/DurvasPalve203/Safe-Exam-Monitor-System/monitor"
)

func main() {
	var (
		configPath string
		frames     int
	)
	flag.StringVar(&configPath, "config", "", "Path to the YAML config file")
	flag.IntVar(&frames, "frames", 100, "Number of frames to sample before exiting (0 = run forever)")
	flag.Parse()

	settings, err := conf.Load(configPath)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	detector := detect.New(detect.Config{
		ModelPath:     settings.Model.Path,
		LibraryPath:   settings.Model.LibraryPath,
		InputName:     settings.Model.InputName,
		OutputName:    settings.Model.OutputName,
		InputWidth:    settings.Model.InputWidth,
		InputHeight:   settings.Model.InputHeight,
		MaxDetections: settings.Model.MaxDetections,
		NMSThreshold:  settings.Model.NMSThreshold,
	})
	if err := detector.Initialize(); err != nil {
		log.Fatalf("detector unavailable: %v", err)
	}
	defer detector.Close()

	source, err := camera.OpenDevice(settings.Camera.DeviceID)
	if err != nil {
		log.Fatalf("failed to open camera %d: %v", settings.Camera.DeviceID, err)
	}
	defer source.Close()

	classifier := monitor.NewClassifier(
		settings.Monitor.MinPersonScore,
		settings.Monitor.MinDeviceScore,
		settings.Monitor.DeviceClasses,
	)

	fmt.Printf("reading camera device %d, model %s\n", settings.Camera.DeviceID, settings.Model.Path)

	frameCount := 0
	fpsFrames := 0
	fps := 0.0
	lastTime := time.Now()

	for frames == 0 || frameCount < frames {
		frame, err := source.Sample()
		if err != nil {
			log.Fatalf("cannot read camera: %v", err)
		}
		frameCount++
		fpsFrames++

		if elapsed := time.Since(lastTime).Seconds(); elapsed >= 1.0 {
			fps = float64(fpsFrames) / elapsed
			fpsFrames = 0
			lastTime = time.Now()
		}

		detections, err := detector.Detect(frame)
		if err != nil {
			log.Printf("inference failed: %v", err)
			continue
		}

		bounds := frame.Bounds()
		kept := monitor.FilterBoxes(bounds.Dx(), bounds.Dy(), settings.Monitor.MinBoxAreaRatio, detections)
		snap := classifier.BuildSnapshot(classifier.Classify(kept))

		fmt.Printf("persons=%d device=%v confidence=%.2f raw=%d kept=%d | FPS: %.2f\n",
			snap.PersonCount, snap.DeviceDetected, snap.Confidence, len(detections), len(kept), fps)
	}
}
