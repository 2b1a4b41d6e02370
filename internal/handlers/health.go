package handlers

import (
	"net/http"
	"runtime"
	"time"

	"doc-thumbnailer/internal/startup"
)

const (
	statusHealthy  = "healthy"
	statusStarting = "starting"
)

// HealthResponse contains the health check response
type HealthResponse struct {
	Status        string `json:"status"`
	Ready         bool   `json:"ready"`
	Version       string `json:"version"`
	Uptime        string `json:"uptime"`
	LastReconcile string `json:"lastReconcile,omitempty"`

	// Work summary
	QueueDepth int `json:"queueDepth"`
	InFlight   int `json:"inFlight"`
	Thumbnails int `json:"thumbnails"`

	// System info
	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`
}

// HealthCheck returns the health status of the daemon
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ready := h.rec.InitialDone()

	response := HealthResponse{
		Ready:        ready,
		Version:      startup.Version,
		Uptime:       time.Since(h.startTime).Round(time.Second).String(),
		QueueDepth:   h.q.Depth(),
		InFlight:     h.q.InFlight(),
		GoVersion:    runtime.Version(),
		NumCPU:       runtime.NumCPU(),
		NumGoroutine: runtime.NumGoroutine(),
	}

	if ready {
		response.Status = statusHealthy
	} else {
		response.Status = statusStarting
	}

	if lastRun := h.rec.LastRun(); !lastRun.IsZero() {
		response.LastReconcile = lastRun.Format(time.RFC3339)
	}

	if count, err := h.db.Count(r.Context()); err == nil {
		response.Thumbnails = count
	}

	w.Header().Set("Content-Type", "application/json")

	// Return 503 only until the startup scan finishes
	if !ready {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}

	writeJSON(w, response)
}

// LivenessCheck is a simple liveness probe (always returns 200 if the daemon is running)
func (h *Handlers) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	// For HEAD requests, only send headers (no body)
	if r.Method != http.MethodHead {
		writeJSONStatus(w, "alive")
	}
}

// ReadinessCheck returns 200 only once the startup reconciliation has finished
func (h *Handlers) ReadinessCheck(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if h.rec.InitialDone() {
		w.WriteHeader(http.StatusOK)
		writeJSON(w, map[string]string{
			"status": "ready",
		})
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
		writeJSON(w, map[string]string{
			"status": "not_ready",
		})
	}
}
