package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Watcher metrics
var (
	WatcherEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thumbnailer_watcher_events_total",
			Help: "Total number of raw filesystem events received, by operation",
		},
		[]string{"op"}, // "create", "write", "remove", "rename"
	)

	WatcherEventsIgnored = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "thumbnailer_watcher_events_ignored_total",
			Help: "Total number of filesystem events discarded by ignore rules",
		},
	)

	DebounceTimersActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "thumbnailer_debounce_timers_active",
			Help: "Number of paths currently waiting out a quiet period",
		},
	)

	DebounceEventsCoalesced = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "thumbnailer_debounce_events_coalesced_total",
			Help: "Total number of raw events absorbed into an already-pending quiet period",
		},
	)
)

// Queue metrics
var (
	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "thumbnailer_queue_depth",
			Help: "Number of pending jobs in the queue",
		},
	)

	QueueInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "thumbnailer_queue_in_flight",
			Help: "Number of jobs currently being executed by workers",
		},
	)

	QueueJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thumbnailer_queue_jobs_total",
			Help: "Total number of released jobs, by outcome",
		},
		[]string{"outcome"}, // "success", "transient", "permanent", "cancelled"
	)

	QueueRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "thumbnailer_queue_retries_total",
			Help: "Total number of jobs re-queued after a transient failure",
		},
	)

	QueueCoalescedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "thumbnailer_queue_coalesced_total",
			Help: "Total number of enqueues absorbed into an existing pending job",
		},
	)
)

// Pipeline metrics
var (
	PipelineStageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "thumbnailer_pipeline_stage_duration_seconds",
			Help:    "Duration of each pipeline stage in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"stage"}, // "stability", "rasterize", "encode", "publish"
	)

	ThumbnailsGeneratedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thumbnailer_generated_total",
			Help: "Total number of thumbnail generations, by document type and status",
		},
		[]string{"type", "status"}, // type: "pdf", "image", "epub"; status: "success", "error"
	)

	ThumbnailsRemovedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "thumbnailer_removed_total",
			Help: "Total number of thumbnails deleted after their source was removed",
		},
	)

	RasterFallbacksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "thumbnailer_raster_fallbacks_total",
			Help: "Total number of rasterizations that fell back to the external pdftoppm tool",
		},
	)
)

// Reconciler metrics
var (
	ReconcilerRunsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "thumbnailer_reconciler_runs_total",
			Help: "Total number of reconciliation scans",
		},
	)

	ReconcilerLastRunTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "thumbnailer_reconciler_last_run_timestamp",
			Help: "Timestamp of the last reconciliation scan",
		},
	)

	ReconcilerLastRunDuration = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "thumbnailer_reconciler_last_run_duration_seconds",
			Help: "Duration of the last reconciliation scan in seconds",
		},
	)

	ReconcilerEnqueuedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thumbnailer_reconciler_enqueued_total",
			Help: "Total number of paths enqueued by the reconciler, by reason",
		},
		[]string{"reason"}, // "missing", "stale", "orphan"
	)

	ReconcilerIsRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "thumbnailer_reconciler_running",
			Help: "Whether a reconciliation scan is currently running (1 = running, 0 = idle)",
		},
	)
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thumbnailer_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "thumbnailer_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "thumbnailer_http_requests_in_flight",
			Help: "Number of HTTP requests currently being served",
		},
	)
)

// Artifact database metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thumbnailer_db_queries_total",
			Help: "Total number of artifact database queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "thumbnailer_db_query_duration_seconds",
			Help:    "Artifact database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"operation"},
	)
)
