// Package server exposes health and Prometheus metrics over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rewired-gh/polyresearch/internal/logger"
)

// RunStatus is the outcome of the most recent research run.
type RunStatus struct {
	RunID      string    `json:"run_id,omitempty"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
	Analyzed   int       `json:"analyzed"`
	Failed     int       `json:"failed"`
	Error      string    `json:"error,omitempty"`
}

// Server wraps the echo HTTP server.
type Server struct {
	echo *echo.Echo
	addr string

	mu      sync.RWMutex
	lastRun *RunStatus
}

// New creates a server listening on addr. Metrics are served from reg.
func New(addr string, reg *prometheus.Registry) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	s := &Server{echo: e, addr: addr}

	e.GET("/healthz", s.handleHealth)
	if reg != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	}
	return s
}

// SetLastRun records the latest run outcome reported by /healthz.
func (s *Server) SetLastRun(status RunStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastRun = &status
}

func (s *Server) handleHealth(c echo.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":   "ok",
		"last_run": s.lastRun,
	})
}

// Start serves in the background.
func (s *Server) Start() {
	go func() {
		logger.Info("HTTP server listening on %s", s.addr)
		if err := s.echo.Start(s.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error: %v", err)
		}
	}()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}
	logger.Info("HTTP server stopped")
	return nil
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.echo
}
