package handlers

import (
	"net/http"
	"time"

	"doc-thumbnailer/internal/logging"
)

// StatsResponse summarizes the daemon's current state
type StatsResponse struct {
	WatchDir      string `json:"watchDir"`
	OutputDir     string `json:"outputDir"`
	Thumbnails    int    `json:"thumbnails"`
	QueueDepth    int    `json:"queueDepth"`
	InFlight      int    `json:"inFlight"`
	LastReconcile string `json:"lastReconcile,omitempty"`
	Uptime        string `json:"uptime"`
}

// GetStats returns a summary of the artifact index and queue state
func (h *Handlers) GetStats(w http.ResponseWriter, r *http.Request) {
	count, err := h.db.Count(r.Context())
	if err != nil {
		logging.Error("stats: artifact count failed: %v", err)
		http.Error(w, "failed to read artifact index", http.StatusInternalServerError)
		return
	}

	response := StatsResponse{
		WatchDir:   h.watchDir,
		OutputDir:  h.outputDir,
		Thumbnails: count,
		QueueDepth: h.q.Depth(),
		InFlight:   h.q.InFlight(),
		Uptime:     time.Since(h.startTime).Round(time.Second).String(),
	}
	if lastRun := h.rec.LastRun(); !lastRun.IsZero() {
		response.LastReconcile = lastRun.Format(time.RFC3339)
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, response)
}
