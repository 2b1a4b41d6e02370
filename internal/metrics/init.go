package metrics

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	for _, op := range []string{"create", "write", "remove", "rename"} {
		WatcherEventsTotal.WithLabelValues(op)
	}

	for _, outcome := range []string{"success", "transient", "permanent", "cancelled"} {
		QueueJobsTotal.WithLabelValues(outcome)
	}

	for _, stage := range []string{"stability", "rasterize", "encode", "publish"} {
		PipelineStageDuration.WithLabelValues(stage)
	}

	for _, t := range []string{"pdf", "image", "epub"} {
		ThumbnailsGeneratedTotal.WithLabelValues(t, "success")
		ThumbnailsGeneratedTotal.WithLabelValues(t, "error")
	}

	for _, reason := range []string{"missing", "stale", "orphan"} {
		ReconcilerEnqueuedTotal.WithLabelValues(reason)
	}

	for _, op := range []string{"init_schema", "record", "get", "delete", "all"} {
		DBQueryTotal.WithLabelValues(op, "success")
		DBQueryTotal.WithLabelValues(op, "error")
		DBQueryDuration.WithLabelValues(op)
	}
}
