package reconciler

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"doc-thumbnailer/internal/artifacts"
	"doc-thumbnailer/internal/queue"
	"doc-thumbnailer/internal/watcher"
)

func newTestReconciler(t *testing.T, recursive bool) (*Reconciler, *queue.Queue, *artifacts.DB, string, string) {
	t.Helper()

	watchDir := t.TempDir()
	outputDir := t.TempDir()

	db, err := artifacts.Open(context.Background(), filepath.Join(t.TempDir(), "artifacts.db"))
	if err != nil {
		t.Fatalf("Open artifact index: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	q := queue.New(queue.DefaultConfig())
	t.Cleanup(q.Close)

	r := New(Config{
		WatchDir:  watchDir,
		OutputDir: outputDir,
		Recursive: recursive,
	}, q, db)

	return r, q, db, watchDir, outputDir
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// drainJobs claims every currently pending job and returns path -> kind.
func drainJobs(t *testing.T, q *queue.Queue) map[string]watcher.Kind {
	t.Helper()
	jobs := make(map[string]watcher.Kind)
	for q.Depth() > 0 {
		job, ok := q.Claim()
		if !ok {
			t.Fatal("queue closed while draining")
		}
		jobs[job.Path] = job.Kind
		q.Release(job.Path, queue.OutcomeSuccess)
	}
	return jobs
}

func TestRunEnqueuesMissingThumbnails(t *testing.T) {
	r, q, _, watchDir, _ := newTestReconciler(t, true)

	writeFile(t, filepath.Join(watchDir, "report.pdf"), "pdf")
	writeFile(t, filepath.Join(watchDir, "photo.png"), "png")
	writeFile(t, filepath.Join(watchDir, "book.epub"), "epub")
	writeFile(t, filepath.Join(watchDir, "notes.txt"), "not a document")
	writeFile(t, filepath.Join(watchDir, ".hidden.pdf"), "hidden")
	writeFile(t, filepath.Join(watchDir, "download.pdf.part"), "partial")

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	jobs := drainJobs(t, q)
	if len(jobs) != 3 {
		t.Fatalf("got %d jobs, want 3: %v", len(jobs), jobs)
	}
	for _, name := range []string{"report.pdf", "photo.png", "book.epub"} {
		path := filepath.Join(watchDir, name)
		if kind, ok := jobs[path]; !ok || kind != watcher.Created {
			t.Errorf("expected Created job for %s, got %v (present=%v)", name, kind, ok)
		}
	}
}

func TestRunIsIdempotent(t *testing.T) {
	r, q, _, watchDir, _ := newTestReconciler(t, true)

	writeFile(t, filepath.Join(watchDir, "report.pdf"), "pdf")

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	if got := q.Depth(); got != 1 {
		t.Fatalf("Depth after first run = %d, want 1", got)
	}

	// Nothing changed and nothing was drained: the second scan must coalesce
	// into the existing pending job, not stack a duplicate.
	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if got := q.Depth(); got != 1 {
		t.Errorf("Depth after second run = %d, want 1", got)
	}
}

func TestRunSkipsCurrentArtifacts(t *testing.T) {
	r, q, db, watchDir, outputDir := newTestReconciler(t, true)

	sourcePath := filepath.Join(watchDir, "report.pdf")
	writeFile(t, sourcePath, "pdf contents")
	outputPath := filepath.Join(outputDir, "report.thumb.png")
	writeFile(t, outputPath, "thumbnail")

	info, err := os.Stat(sourcePath)
	if err != nil {
		t.Fatalf("stat source: %v", err)
	}
	err = db.Record(context.Background(), artifacts.Artifact{
		SourcePath:    sourcePath,
		OutputPath:    outputPath,
		SourceModTime: info.ModTime().Truncate(time.Second),
		SourceSize:    info.Size(),
	})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := q.Depth(); got != 0 {
		t.Errorf("Depth = %d, want 0 (artifact is current)", got)
	}
}

func TestRunEnqueuesStaleArtifacts(t *testing.T) {
	r, q, db, watchDir, outputDir := newTestReconciler(t, true)

	sourcePath := filepath.Join(watchDir, "report.pdf")
	writeFile(t, sourcePath, "pdf contents")
	outputPath := filepath.Join(outputDir, "report.thumb.png")
	writeFile(t, outputPath, "thumbnail")

	info, err := os.Stat(sourcePath)
	if err != nil {
		t.Fatalf("stat source: %v", err)
	}
	// Recorded size disagrees with the file on disk.
	err = db.Record(context.Background(), artifacts.Artifact{
		SourcePath:    sourcePath,
		OutputPath:    outputPath,
		SourceModTime: info.ModTime().Truncate(time.Second),
		SourceSize:    info.Size() + 100,
	})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	jobs := drainJobs(t, q)
	if kind, ok := jobs[sourcePath]; !ok || kind != watcher.Created {
		t.Errorf("expected Created job for stale %s, got %v (present=%v)", sourcePath, kind, ok)
	}
}

func TestRunEnqueuesMissingOutputFile(t *testing.T) {
	r, q, db, watchDir, outputDir := newTestReconciler(t, true)

	sourcePath := filepath.Join(watchDir, "report.pdf")
	writeFile(t, sourcePath, "pdf contents")

	info, err := os.Stat(sourcePath)
	if err != nil {
		t.Fatalf("stat source: %v", err)
	}
	// Record is current but the output file itself is gone.
	err = db.Record(context.Background(), artifacts.Artifact{
		SourcePath:    sourcePath,
		OutputPath:    filepath.Join(outputDir, "report.thumb.png"),
		SourceModTime: info.ModTime().Truncate(time.Second),
		SourceSize:    info.Size(),
	})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := q.Depth(); got != 1 {
		t.Errorf("Depth = %d, want 1 (output file missing)", got)
	}
}

func TestRunCleansUpOrphans(t *testing.T) {
	r, q, db, watchDir, outputDir := newTestReconciler(t, true)

	// Recorded source no longer exists on disk.
	gonePath := filepath.Join(watchDir, "gone.pdf")
	outputPath := filepath.Join(outputDir, "gone.thumb.png")
	writeFile(t, outputPath, "thumbnail")
	err := db.Record(context.Background(), artifacts.Artifact{
		SourcePath:    gonePath,
		OutputPath:    outputPath,
		SourceModTime: time.Now().Truncate(time.Second),
		SourceSize:    3,
	})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	jobs := drainJobs(t, q)
	if kind, ok := jobs[gonePath]; !ok || kind != watcher.Removed {
		t.Errorf("expected Removed job for orphan %s, got %v (present=%v)", gonePath, kind, ok)
	}
	// The claimed output is not a stray and must survive the sweep.
	if _, err := os.Stat(outputPath); err != nil {
		t.Errorf("claimed output was swept: %v", err)
	}
}

// backdate pushes a file's mtime into the past so it reads as predating any
// scan started afterwards.
func backdate(t *testing.T, path string) {
	t.Helper()
	old := time.Now().Add(-time.Hour)
	if err := os.Chtimes(path, old, old); err != nil {
		t.Fatalf("chtimes %s: %v", path, err)
	}
}

func TestRunSweepsStrayOutputs(t *testing.T) {
	r, _, _, _, outputDir := newTestReconciler(t, true)

	strayPath := filepath.Join(outputDir, "nobody.thumb.png")
	writeFile(t, strayPath, "stray")
	backdate(t, strayPath)
	keepPath := filepath.Join(outputDir, "readme.txt")
	writeFile(t, keepPath, "not a thumbnail")

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if _, err := os.Stat(strayPath); !os.IsNotExist(err) {
		t.Errorf("stray output still exists: %v", err)
	}
	if _, err := os.Stat(keepPath); err != nil {
		t.Errorf("non-thumbnail file was swept: %v", err)
	}
}

func TestSweepSparesThumbnailRecordedAfterSnapshot(t *testing.T) {
	r, _, db, _, outputDir := newTestReconciler(t, true)
	ctx := context.Background()

	// Snapshot taken before any artifact exists, as Run does mid-scan.
	snapshotAt := time.Now()
	snapshot, err := db.All(ctx)
	if err != nil {
		t.Fatalf("All: %v", err)
	}

	// A worker publishes and records while the scan is still running. The
	// mtime is pushed into the past so only the live index lookup can save
	// the file.
	outputPath := filepath.Join(outputDir, "doc.thumb.png")
	writeFile(t, outputPath, "thumbnail")
	backdate(t, outputPath)
	err = db.Record(ctx, artifacts.Artifact{
		SourcePath:    "/docs/doc.pdf",
		OutputPath:    outputPath,
		SourceModTime: time.Now().Truncate(time.Second),
		SourceSize:    9,
	})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}

	if removed := r.sweepStrays(ctx, snapshot, snapshotAt); removed != 0 {
		t.Errorf("sweep removed %d freshly recorded thumbnails, want 0", removed)
	}
	if _, err := os.Stat(outputPath); err != nil {
		t.Errorf("recorded thumbnail was swept: %v", err)
	}
}

func TestSweepSparesThumbnailPublishedButNotYetRecorded(t *testing.T) {
	r, _, db, _, outputDir := newTestReconciler(t, true)
	ctx := context.Background()

	snapshotAt := time.Now()
	snapshot, err := db.All(ctx)
	if err != nil {
		t.Fatalf("All: %v", err)
	}

	// A worker has published but not recorded yet: the file is unclaimed in
	// the index, and only its post-snapshot mtime marks it as in-progress.
	outputPath := filepath.Join(outputDir, "inflight.thumb.png")
	writeFile(t, outputPath, "thumbnail")

	if removed := r.sweepStrays(ctx, snapshot, snapshotAt); removed != 0 {
		t.Errorf("sweep removed %d in-progress thumbnails, want 0", removed)
	}
	if _, err := os.Stat(outputPath); err != nil {
		t.Errorf("in-progress thumbnail was swept: %v", err)
	}
}

func TestRunSkipsOutputDirInsideWatchDir(t *testing.T) {
	watchDir := t.TempDir()
	outputDir := filepath.Join(watchDir, "thumbnails")
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		t.Fatalf("mkdir output: %v", err)
	}

	db, err := artifacts.Open(context.Background(), filepath.Join(t.TempDir(), "artifacts.db"))
	if err != nil {
		t.Fatalf("Open artifact index: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	q := queue.New(queue.DefaultConfig())
	t.Cleanup(q.Close)

	r := New(Config{WatchDir: watchDir, OutputDir: outputDir, Recursive: true}, q, db)

	// A plain image inside the output directory must never become a source.
	writeFile(t, filepath.Join(outputDir, "sneaky.png"), "png")

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := q.Depth(); got != 0 {
		t.Errorf("Depth = %d, want 0 (output dir must be skipped)", got)
	}
}

func TestRunNonRecursiveIgnoresSubdirectories(t *testing.T) {
	r, q, _, watchDir, _ := newTestReconciler(t, false)

	subDir := filepath.Join(watchDir, "nested")
	if err := os.MkdirAll(subDir, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	writeFile(t, filepath.Join(watchDir, "top.pdf"), "pdf")
	writeFile(t, filepath.Join(subDir, "deep.pdf"), "pdf")

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	jobs := drainJobs(t, q)
	if len(jobs) != 1 {
		t.Fatalf("got %d jobs, want 1: %v", len(jobs), jobs)
	}
	if _, ok := jobs[filepath.Join(watchDir, "top.pdf")]; !ok {
		t.Error("expected job for top-level file only")
	}
}

func TestStartSetsInitialDone(t *testing.T) {
	r, _, _, _, _ := newTestReconciler(t, true)

	if r.InitialDone() {
		t.Fatal("InitialDone true before Start")
	}
	r.Start(context.Background())
	if !r.InitialDone() {
		t.Error("InitialDone false after Start returned")
	}
	if r.LastRun().IsZero() {
		t.Error("LastRun not set after startup scan")
	}
	r.Stop()
}
