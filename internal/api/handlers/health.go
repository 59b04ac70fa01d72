// Package handlers provides HTTP request handlers for the ragescanner API.
// This file implements health check and system status endpoints.
package handlers

import (
	"net/http"
	"runtime"
	"time"

	"github.com/anstrom/ragescanner/internal/bridge"
)

// Status constants.
const (
	StatusHealthy = "healthy"
)

// StatusSource reports the scanner's current scan state.
type StatusSource interface {
	Status() bridge.Status
}

// HealthHandler handles health check and status endpoints.
type HealthHandler struct {
	scans     StatusSource
	version   string
	startTime time.Time
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(scans StatusSource, version string) *HealthHandler {
	return &HealthHandler{
		scans:     scans,
		version:   version,
		startTime: time.Now(),
	}
}

// HealthResponse represents a health check response.
type HealthResponse struct {
	Status     string    `json:"status"`
	Timestamp  time.Time `json:"timestamp"`
	Uptime     string    `json:"uptime"`
	Version    string    `json:"version"`
	GoVersion  string    `json:"go_version"`
	Goroutines int       `json:"goroutines"`
	ScanActive bool      `json:"scan_active"`
}

// Health reports liveness together with a snapshot of runtime state.
// GET /api/v1/health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, HealthResponse{
		Status:     StatusHealthy,
		Timestamp:  time.Now().UTC(),
		Uptime:     time.Since(h.startTime).Round(time.Second).String(),
		Version:    h.version,
		GoVersion:  runtime.Version(),
		Goroutines: runtime.NumGoroutine(),
		ScanActive: h.scans.Status().Active,
	})
}
