package reconciler

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"doc-thumbnailer/internal/artifacts"
	"doc-thumbnailer/internal/doctypes"
	"doc-thumbnailer/internal/logging"
	"doc-thumbnailer/internal/metrics"
	"doc-thumbnailer/internal/queue"
	"doc-thumbnailer/internal/watcher"
)

// Config configures the reconciler.
type Config struct {
	// WatchDir is the root of the watched document tree.
	WatchDir string
	// OutputDir holds published thumbnails. It is swept for strays and
	// skipped while walking when it sits under WatchDir.
	OutputDir string
	// Recursive mirrors the watcher's recursion setting.
	Recursive bool
	// Interval between periodic scans. Zero disables the ticker; only the
	// startup scan runs.
	Interval time.Duration
}

// Reconciler runs startup and periodic scans against the artifact index.
type Reconciler struct {
	cfg Config
	q   *queue.Queue
	db  *artifacts.DB

	mu          sync.Mutex
	running     bool
	initialDone bool
	lastRun     time.Time

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// New creates a reconciler feeding the given queue.
func New(cfg Config, q *queue.Queue, db *artifacts.DB) *Reconciler {
	return &Reconciler{
		cfg:  cfg,
		q:    q,
		db:   db,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
}

// Start runs the startup scan synchronously, then launches the periodic
// loop. The synchronous first scan means readiness can be keyed off
// InitialDone.
func (r *Reconciler) Start(ctx context.Context) {
	if err := r.Run(ctx); err != nil {
		logging.Error("Startup reconciliation failed: %v", err)
	}
	r.mu.Lock()
	r.initialDone = true
	r.mu.Unlock()

	go r.loop(ctx)
}

func (r *Reconciler) loop(ctx context.Context) {
	defer close(r.done)

	if r.cfg.Interval <= 0 {
		<-r.stop
		return
	}

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			if err := r.Run(ctx); err != nil {
				logging.Error("Periodic reconciliation failed: %v", err)
			}
		}
	}
}

// Stop halts the periodic loop. A scan already in progress finishes.
func (r *Reconciler) Stop() {
	r.stopOnce.Do(func() { close(r.stop) })
	<-r.done
}

// Run performs one full scan. Overlapping runs are skipped rather than
// queued; the next tick covers whatever this one would have found.
func (r *Reconciler) Run(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		logging.Warn("Reconciliation already running, skipping")
		return nil
	}
	r.running = true
	r.mu.Unlock()

	metrics.ReconcilerIsRunning.Set(1)
	start := time.Now()
	defer func() {
		r.mu.Lock()
		r.running = false
		r.lastRun = time.Now()
		r.mu.Unlock()
		metrics.ReconcilerIsRunning.Set(0)
		metrics.ReconcilerRunsTotal.Inc()
		metrics.ReconcilerLastRunTimestamp.SetToCurrentTime()
		metrics.ReconcilerLastRunDuration.Set(time.Since(start).Seconds())
	}()

	logging.Debug("Reconciliation scan starting for %s", r.cfg.WatchDir)

	enqueued, err := r.scanSources(ctx)
	if err != nil {
		return err
	}

	snapshotAt := time.Now()
	recorded, err := r.db.All(ctx)
	if err != nil {
		return err
	}

	orphans := r.scanOrphans(recorded)
	strays := r.sweepStrays(ctx, recorded, snapshotAt)

	logging.Info("Reconciliation finished in %v: %d generation jobs, %d cleanup jobs, %d stray outputs removed",
		time.Since(start).Round(time.Millisecond), enqueued, orphans, strays)
	return nil
}

// scanSources walks the watched tree and enqueues generation jobs for
// every supported source whose thumbnail is missing or stale.
func (r *Reconciler) scanSources(ctx context.Context) (int, error) {
	enqueued := 0

	err := filepath.WalkDir(r.cfg.WatchDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			logging.Warn("Reconciler cannot access %s: %v", path, err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			if path == r.cfg.WatchDir {
				return nil
			}
			if !r.cfg.Recursive || strings.HasPrefix(d.Name(), ".") || r.isOutputPath(path) {
				return filepath.SkipDir
			}
			return nil
		}

		if doctypes.IsIgnored(path) || !doctypes.IsSupported(path) || r.isOutputPath(path) {
			return nil
		}

		if reason := r.needsGeneration(ctx, path, d); reason != "" {
			r.q.Enqueue(path, watcher.Created)
			metrics.ReconcilerEnqueuedTotal.WithLabelValues(reason).Inc()
			logging.Debug("Reconciler enqueued %s (%s)", path, reason)
			enqueued++
		}
		return nil
	})
	return enqueued, err
}

// needsGeneration returns "missing" or "stale" when a source needs a new
// thumbnail, or "" when the recorded artifact is still current.
func (r *Reconciler) needsGeneration(ctx context.Context, path string, d fs.DirEntry) string {
	info, err := d.Info()
	if err != nil {
		// File vanished between the walk and the stat. The orphan pass or a
		// later scan will settle it.
		return ""
	}

	art, err := r.db.Get(ctx, path)
	if err != nil {
		logging.Warn("Artifact lookup failed for %s: %v", path, err)
		return ""
	}
	if art == nil {
		return "missing"
	}
	if !art.IsCurrentFor(info.Size(), info.ModTime()) {
		return "stale"
	}
	if _, err := os.Stat(art.OutputPath); err != nil {
		return "missing"
	}
	return ""
}

// scanOrphans enqueues cleanup jobs for recorded sources that no longer
// exist on disk.
func (r *Reconciler) scanOrphans(recorded []artifacts.Artifact) int {
	orphans := 0
	for _, a := range recorded {
		if _, err := os.Stat(a.SourcePath); os.IsNotExist(err) {
			r.q.Enqueue(a.SourcePath, watcher.Removed)
			metrics.ReconcilerEnqueuedTotal.WithLabelValues("orphan").Inc()
			logging.Debug("Reconciler enqueued cleanup for orphaned %s", a.SourcePath)
			orphans++
		}
	}
	return orphans
}

// sweepStrays deletes thumbnail files in the output directory that no
// artifact record claims. These appear when the index is rebuilt or the
// process died between publish and record.
//
// Workers publish concurrently with the scan, so the recorded snapshot can
// lag behind reality: a thumbnail generated for a job this very run
// enqueued is not a stray. An output is only removed when it predates the
// snapshot AND a live index lookup still shows no owner.
func (r *Reconciler) sweepStrays(ctx context.Context, recorded []artifacts.Artifact, snapshotAt time.Time) int {
	claimed := make(map[string]bool, len(recorded))
	for _, a := range recorded {
		claimed[a.OutputPath] = true
	}

	entries, err := os.ReadDir(r.cfg.OutputDir)
	if err != nil {
		logging.Warn("Cannot read output directory %s: %v", r.cfg.OutputDir, err)
		return 0
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), doctypes.ThumbnailSuffix) {
			continue
		}
		path := filepath.Join(r.cfg.OutputDir, entry.Name())
		if claimed[path] {
			continue
		}

		// Published after the snapshot: a worker may not have recorded it
		// yet. Leave it for the next scan, by which time it is either
		// recorded or a genuine stray.
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(snapshotAt) {
			continue
		}

		// Recorded after the snapshot: the live index is authoritative.
		if source, err := r.db.SourceForOutput(ctx, path); err != nil || source != "" {
			continue
		}

		if err := os.Remove(path); err != nil {
			logging.Warn("Cannot remove stray output %s: %v", path, err)
			continue
		}
		metrics.ThumbnailsRemovedTotal.Inc()
		logging.Info("Removed stray output %s", path)
		removed++
	}
	return removed
}

func (r *Reconciler) isOutputPath(path string) bool {
	rel, err := filepath.Rel(r.cfg.OutputDir, path)
	if err != nil {
		return false
	}
	return rel == "." || !strings.HasPrefix(rel, "..")
}

// InitialDone reports whether the startup scan has completed. The readiness
// endpoint uses this.
func (r *Reconciler) InitialDone() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.initialDone
}

// LastRun returns when the most recent scan finished.
func (r *Reconciler) LastRun() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastRun
}
