// Package server exposes the monitoring state over a small HTTP API and
// receives the display collaborator's visibility signal.
package server

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/DurvasPalve203/Safe-Exam-Monitor-System/monitor"
)

// alertLogLimit bounds the in-memory alert log served by the API.
const alertLogLimit = 100

// SessionInfo is the session summary served by the API.
type SessionInfo struct {
	ID             string `json:"id"`
	StartedAt      string `json:"started_at"`
	Status         string `json:"status"`
	ViolationCount int    `json:"violation_count"`
	DetectorState  string `json:"detector_state"`
}

type visibilityRequest struct {
	Visible bool `json:"visible"`
}

// Server serves the current snapshot, the alert log and the session summary,
// and accepts visibility updates from the display collaborator. The monitored
// surface is assumed visible until told otherwise.
type Server struct {
	echo *echo.Echo

	mu       sync.RWMutex
	snapshot monitor.Snapshot
	alerts   []monitor.Alert
	info     SessionInfo

	visible atomic.Bool
}

// New builds the server and its routes. metricsHandler serves /metrics; pass
// nil to omit the route.
func New(metricsHandler http.Handler) *Server {
	s := &Server{}
	s.visible.Store(true)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	e.GET("/healthz", s.handleHealth)
	e.GET("/api/v1/snapshot", s.handleSnapshot)
	e.GET("/api/v1/alerts", s.handleAlerts)
	e.GET("/api/v1/session", s.handleSession)
	e.POST("/api/v1/visibility", s.handleVisibility)
	if metricsHandler != nil {
		e.GET("/metrics", echo.WrapHandler(metricsHandler))
	}

	s.echo = e
	return s
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSnapshot(c echo.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return c.JSON(http.StatusOK, s.snapshot)
}

func (s *Server) handleAlerts(c echo.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	// Never serialize as null.
	alerts := s.alerts
	if alerts == nil {
		alerts = []monitor.Alert{}
	}
	return c.JSON(http.StatusOK, alerts)
}

func (s *Server) handleSession(c echo.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return c.JSON(http.StatusOK, s.info)
}

func (s *Server) handleVisibility(c echo.Context) error {
	var req visibilityRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid visibility payload")
	}
	s.visible.Store(req.Visible)
	return c.JSON(http.StatusOK, map[string]bool{"visible": req.Visible})
}

// Visible reports the latest visibility signal.
func (s *Server) Visible() bool {
	return s.visible.Load()
}

// SetSnapshot publishes the latest display snapshot.
func (s *Server) SetSnapshot(snap monitor.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot = snap
}

// AppendAlerts adds emitted alerts to the served log, keeping only the most
// recent entries.
func (s *Server) AppendAlerts(alerts []monitor.Alert) {
	if len(alerts) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append(s.alerts, alerts...)
	if len(s.alerts) > alertLogLimit {
		s.alerts = s.alerts[len(s.alerts)-alertLogLimit:]
	}
}

// SetSessionInfo publishes the session summary.
func (s *Server) SetSessionInfo(info SessionInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.info = info
}

// Start serves HTTP on addr, blocking until shutdown or failure.
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
