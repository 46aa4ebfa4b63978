package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/DurvasPalve203/Safe-Exam-Monitor-System/camera"
	"github.com/DurvasPalve203/Safe-Exam-Monitor-System/conf"
	"github.com/DurvasPalve203/Safe-Exam-Monitor-System/detect"
	"github.com/DurvasPalve203/Safe-Exam-Monitor-System/monitor"
	"github.com/DurvasPalve203/Safe-Exam-Monitor-System/notify"
	"github.com/DurvasPalve203/Safe-Exam-Monitor-System/proctor"
	"github.com/DurvasPalve203/Safe-Exam-Monitor-System/server"
	"github.com/DurvasPalve203/Safe-Exam-Monitor-System/store"
)

func main() {
	var (
		configPath string
		videoPath  string
		modelPath  string
	)
	flag.StringVar(&configPath, "config", "", "Path to the YAML config file (defaults apply when empty)")
	flag.StringVar(&videoPath, "video", "", "Replay a recorded video instead of the camera")
	flag.StringVar(&modelPath, "model", "", "Override the ONNX model path from the config")
	flag.Parse()

	settings, err := conf.Load(configPath)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	if modelPath != "" {
		settings.Model.Path = modelPath
	}

	// The detector degrades to empty results while unready, so a failed model
	// load keeps the session alive instead of aborting the exam.
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
		log.Printf("warning: object detector unavailable: %v", err)
	}
	defer detector.Close()

	session, err := monitor.NewSession(monitor.Config{
		AllowedPersons:      settings.Monitor.AllowedPersons,
		MinAreaRatio:        settings.Monitor.MinBoxAreaRatio,
		MinPersonScore:      settings.Monitor.MinPersonScore,
		MinDeviceScore:      settings.Monitor.MinDeviceScore,
		DeviceClasses:       settings.Monitor.DeviceClasses,
		WindowLength:        settings.Monitor.WindowLength,
		TriggerRatio:        settings.Monitor.TriggerRatio,
		Cooldown:            settings.Monitor.Cooldown(),
		PredictionFreshness: settings.Monitor.CacheFreshness(),
	}, detector)
	if err != nil {
		log.Fatalf("failed to build monitoring session: %v", err)
	}

	var frames *camera.Source
	if videoPath != "" {
		frames, err = camera.OpenFile(videoPath)
	} else {
		frames, err = camera.OpenDevice(settings.Camera.DeviceID)
	}
	if err != nil {
		log.Fatalf("failed to open frame source: %v", err)
	}
	defer frames.Close()

	sessionID := uuid.NewString()
	startedAt := time.Now()

	runner := proctor.NewRunner(proctor.Config{
		SessionID:     sessionID,
		StartedAt:     startedAt,
		TickInterval:  settings.Camera.TickInterval(),
		MaxViolations: settings.Session.MaxViolations,
	}, session, frames).
		WithDetectorState(func() string { return detector.State().String() })

	if settings.Store.Enabled {
		db, err := store.Open(settings.Store.Path)
		if err != nil {
			log.Fatalf("failed to open violation store: %v", err)
		}
		defer db.Close()
		if err := db.BeginSession(sessionID, startedAt); err != nil {
			log.Fatalf("failed to start session record: %v", err)
		}
		runner.WithSink(db)
	}

	if settings.Notify.Enabled {
		notifier, err := notify.New(settings.Notify.URLs)
		if err != nil {
			log.Fatalf("failed to configure notifications: %v", err)
		}
		runner.WithNotifier(notifier)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if settings.Server.Enabled {
		srv := server.New(runner.Metrics().Handler())
		runner.WithVisibility(srv).WithView(srv)

		addr := fmt.Sprintf("%s:%d", settings.Server.Host, settings.Server.Port)
		go func() {
			if err := srv.Start(addr); err != nil {
				log.Printf("http server stopped: %v", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Printf("http server shutdown failed: %v", err)
			}
		}()
		log.Printf("serving monitoring API on http://%s", addr)
	}

	log.Printf("exam session %s started (tick every %s)", sessionID, settings.Camera.TickInterval())
	if err := runner.Run(ctx); err != nil {
		log.Fatalf("monitoring loop failed: %v", err)
	}
}
