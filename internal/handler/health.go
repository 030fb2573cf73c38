package handler

import (
	"errors"
	"net/http"
	"runtime"
	"time"

	"vendhub-bot/internal/repository"
	"vendhub-bot/pkg/apierror"
	"vendhub-bot/pkg/response"
)

// StartTime tracks when the server started for uptime calculation
var StartTime = time.Now()

// Handler contains shared HTTP handlers and their dependencies.
type Handler struct{}

// New creates a new handler.
func New() *Handler {
	return &Handler{}
}

// storeError maps engine errors onto API error envelopes.
func storeError(err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return apierror.NotFound("")
	case errors.Is(err, repository.ErrInsufficientBalance),
		errors.Is(err, repository.ErrInsufficientStock),
		errors.Is(err, repository.ErrNoContentOption):
		return apierror.Conflict(err.Error())
	}
	return err
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
}

// Health handles GET /api/v1/health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Version:   "1.0.0",
	}
	response.OK(w, resp)
}

// StatusChecks represents the checks in status response
type StatusChecks struct {
	Store    string  `json:"store"`
	MemoryMB float64 `json:"memory_mb"`
}

// StatusResponse represents the unified status response for monitoring
type StatusResponse struct {
	Service       string       `json:"service"`
	Status        string       `json:"status"`
	Timestamp     string       `json:"timestamp"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	PingMS        int64        `json:"ping_ms"`
	Checks        StatusChecks `json:"checks"`
}

// Status handles GET /api/status - unified health check for monitoring
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	requestStart := time.Now()

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	memoryMB := float64(memStats.Alloc) / 1024 / 1024

	pingMS := time.Since(requestStart).Milliseconds()
	uptimeSeconds := int64(time.Since(StartTime).Seconds())

	resp := StatusResponse{
		Service:       "vendhub-bot",
		Status:        "ok",
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		UptimeSeconds: uptimeSeconds,
		PingMS:        pingMS,
		Checks: StatusChecks{
			Store:    "ok",
			MemoryMB: float64(int(memoryMB*100)) / 100,
		},
	}

	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate")
	response.OK(w, resp)
}
