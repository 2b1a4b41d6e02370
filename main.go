// Doc Thumbnailer is a daemon that keeps a directory of thumbnails in sync
// with a watched directory of documents (PDFs, images, EPUB books).
//
// Filesystem events are debounced per path, deduplicated into a path-keyed
// job queue, and executed by a fixed worker pool that rasterizes the first
// page (or cover), scales it to fit the configured box, and publishes the
// PNG atomically. A periodic reconciler repairs anything the event stream
// missed. A small HTTP server exposes health probes, a stats summary, and
// Prometheus metrics.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"doc-thumbnailer/internal/artifacts"
	"doc-thumbnailer/internal/handlers"
	"doc-thumbnailer/internal/logging"
	"doc-thumbnailer/internal/metrics"
	"doc-thumbnailer/internal/middleware"
	"doc-thumbnailer/internal/pipeline"
	"doc-thumbnailer/internal/pool"
	"doc-thumbnailer/internal/queue"
	"doc-thumbnailer/internal/reconciler"
	"doc-thumbnailer/internal/startup"
	"doc-thumbnailer/internal/watcher"

	"github.com/gorilla/mux"
)

func main() {
	startTime := time.Now()
	ctx := context.Background()

	// Load configuration
	config, err := startup.LoadConfig()
	if err != nil {
		logging.Fatal("Configuration error: %v", err)
	}

	// Pre-populate metric series so dashboards see zeros, not gaps
	metrics.InitializeMetrics()

	// Initialize the rasterizer
	vipsErr := pipeline.InitVips()
	startup.LogRasterizerInit(vipsErr == nil)
	defer pipeline.ShutdownVips()

	// Open the artifact index
	dbStart := time.Now()
	db, err := artifacts.Open(ctx, config.DatabasePath)
	if err != nil {
		logging.Fatal("Failed to open artifact index: %v", err)
	}
	defer db.Close()
	startup.LogDatabaseInit(time.Since(dbStart))

	// Queue and worker pool
	q := queue.New(queue.DefaultConfig())
	gen := pipeline.NewGenerator(pipeline.Config{
		OutputDir: config.OutputDir,
		Width:     config.ThumbnailWidth,
		Height:    config.ThumbnailHeight,
		Page:      config.ThumbnailPage,
	}, db)
	workerPool := pool.New(q, gen, config.Workers)
	workerPool.Start(ctx)

	// Watches must exist before the startup scan walks the tree, otherwise
	// a file created between the walk and the watch registration is
	// invisible until the next periodic scan. Events arriving during the
	// scan buffer until Start drains them.
	startup.LogWatcherInit(config.WatchDir, config.Recursive)
	deb := watcher.NewDebouncer(config.DebounceDelay)
	w, err := watcher.New(config.WatchDir, config.OutputDir, config.Recursive, deb)
	if err != nil {
		logging.Fatal("Failed to establish filesystem watches: %v", err)
	}

	// Reconciler: the startup scan runs synchronously so readiness reflects
	// the reconciled state
	startup.LogReconcilerInit(config.ReconcileInterval)
	rec := reconciler.New(reconciler.Config{
		WatchDir:  config.WatchDir,
		OutputDir: config.OutputDir,
		Recursive: config.Recursive,
		Interval:  config.ReconcileInterval,
	}, q, db)
	rec.Start(ctx)

	w.Start()

	forwarderDone := make(chan struct{})
	go func() {
		defer close(forwarderDone)
		for sig := range deb.Signals() {
			q.Enqueue(sig.Path, sig.Kind)
		}
	}()

	// HTTP server
	h := handlers.New(q, db, rec, config)
	router := setupRouter(h, config.MetricsEnabled)

	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogHealthChecks = config.LogHealthChecks
	handler := middleware.Logger(loggingConfig)(router)
	handler = middleware.Metrics(middleware.DefaultMetricsConfig())(handler)

	srv := &http.Server{
		Addr:         ":" + config.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown handler
	go handleShutdown(srv, config, w, rec, deb, q, workerPool, forwarderDone)

	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		logging.Fatal("Server error: %v", err)
	}
}

func setupRouter(h *handlers.Handlers, metricsEnabled bool) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", h.HealthCheck).Methods("GET")
	r.HandleFunc("/healthz", h.HealthCheck).Methods("GET")
	r.HandleFunc("/livez", h.LivenessCheck).Methods("GET", "HEAD")
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods("GET")
	r.HandleFunc("/version", h.GetVersion).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/stats", h.GetStats).Methods("GET")

	if metricsEnabled {
		r.Handle("/metrics", h.MetricsHandler()).Methods("GET")
	}

	return r
}

// handleShutdown drains the daemon in dependency order: stop producing
// events first, then stop scheduling, then let in-flight work finish.
func handleShutdown(srv *http.Server, config *startup.Config, w *watcher.Watcher,
	rec *reconciler.Reconciler, deb *watcher.Debouncer, q *queue.Queue,
	workerPool *pool.Pool, forwarderDone chan struct{}) {

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()

	startup.LogShutdownStep("Stopping filesystem watcher")
	if err := w.Close(); err != nil {
		logging.Warn("Watcher close error: %v", err)
	}
	startup.LogShutdownStepComplete("Filesystem watcher stopped")

	startup.LogShutdownStep("Stopping reconciler")
	rec.Stop()
	startup.LogShutdownStepComplete("Reconciler stopped")

	startup.LogShutdownStep("Stopping debouncer")
	deb.Stop()
	<-forwarderDone
	startup.LogShutdownStepComplete("Debouncer stopped")

	startup.LogShutdownStep("Draining worker pool")
	q.Close()
	poolDone := make(chan struct{})
	go func() {
		workerPool.Wait()
		close(poolDone)
	}()
	select {
	case <-poolDone:
		startup.LogShutdownStepComplete("Worker pool drained")
	case <-ctx.Done():
		logging.Warn("Worker pool did not drain within %v", config.ShutdownTimeout)
	}

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	startup.LogShutdownComplete()
}
