package handlers

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsHandler exposes the daemon's queue, pipeline, and reconciler
// metrics in Prometheus exposition format.
func (h *Handlers) MetricsHandler() http.Handler {
	return promhttp.Handler()
}
