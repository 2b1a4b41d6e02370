package watcher

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"doc-thumbnailer/internal/doctypes"
	"doc-thumbnailer/internal/logging"
	"doc-thumbnailer/internal/metrics"
)

// Watcher consumes raw fsnotify events for the watched directory tree and
// feeds document-file changes into a Debouncer.
type Watcher struct {
	watchDir  string
	outputDir string
	recursive bool
	deb       *Debouncer

	fsw  *fsnotify.Watcher
	done chan struct{}
}

// New establishes filesystem watches on watchDir (and, when recursive, all
// of its existing subdirectories). Events under outputDir are always
// ignored so the daemon never reacts to its own output.
func New(watchDir, outputDir string, recursive bool, deb *Debouncer) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create filesystem watcher: %w", err)
	}

	w := &Watcher{
		watchDir:  watchDir,
		outputDir: outputDir,
		recursive: recursive,
		deb:       deb,
		fsw:       fsw,
		done:      make(chan struct{}),
	}

	if err := w.addWatches(watchDir); err != nil {
		fsw.Close()
		return nil, err
	}

	return w, nil
}

// addWatches registers dir with fsnotify, recursing into subdirectories
// when recursive watching is enabled.
func (w *Watcher) addWatches(dir string) error {
	if !w.recursive {
		if err := w.fsw.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
		return nil
	}

	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			logging.Warn("Cannot access %s while establishing watches: %v", path, err)
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if w.isOutputPath(path) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

// Start launches the event consumption loop.
func (w *Watcher) Start() {
	logging.Info("Watching %s (recursive: %v)", w.watchDir, w.recursive)
	go w.loop()
}

func (w *Watcher) loop() {
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			logging.Warn("Watcher error: %v", err)
		case <-w.done:
			return
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	switch {
	case ev.Op.Has(fsnotify.Create):
		metrics.WatcherEventsTotal.WithLabelValues("create").Inc()
	case ev.Op.Has(fsnotify.Write):
		metrics.WatcherEventsTotal.WithLabelValues("write").Inc()
	case ev.Op.Has(fsnotify.Remove):
		metrics.WatcherEventsTotal.WithLabelValues("remove").Inc()
	case ev.Op.Has(fsnotify.Rename):
		metrics.WatcherEventsTotal.WithLabelValues("rename").Inc()
	default:
		// Chmod and other metadata-only changes never affect content.
		return
	}

	path := ev.Name

	if w.isOutputPath(path) {
		metrics.WatcherEventsIgnored.Inc()
		return
	}

	// A freshly created directory needs its own watch; files that landed in
	// it before the watch took effect are picked up by the directory scan.
	if ev.Op.Has(fsnotify.Create) && w.recursive {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			if strings.HasPrefix(filepath.Base(path), ".") {
				return
			}
			if err := w.addWatches(path); err != nil {
				logging.Warn("Failed to watch new directory %s: %v", path, err)
			}
			w.scanNewDirectory(path)
			return
		}
	}

	if doctypes.IsIgnored(path) || !doctypes.IsSupported(path) {
		metrics.WatcherEventsIgnored.Inc()
		return
	}

	switch {
	case ev.Op.Has(fsnotify.Remove) || ev.Op.Has(fsnotify.Rename):
		logging.Debug("Watcher: %s removed", path)
		w.deb.Observe(path, Removed)
	case ev.Op.Has(fsnotify.Create):
		logging.Debug("Watcher: %s created", path)
		w.deb.Observe(path, Created)
	case ev.Op.Has(fsnotify.Write):
		logging.Debug("Watcher: %s modified", path)
		w.deb.Observe(path, Modified)
	}
}

// scanNewDirectory observes Created for documents already inside a directory
// that appeared as a whole (e.g. moved or unzipped into the watch root).
func (w *Watcher) scanNewDirectory(dir string) {
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if doctypes.IsIgnored(path) || !doctypes.IsSupported(path) {
			return nil
		}
		w.deb.Observe(path, Created)
		return nil
	})
	if err != nil {
		logging.Warn("Failed to scan new directory %s: %v", dir, err)
	}
}

func (w *Watcher) isOutputPath(path string) bool {
	if w.outputDir == "" {
		return false
	}
	return path == w.outputDir || strings.HasPrefix(path, w.outputDir+string(os.PathSeparator))
}

// Close stops the event loop and releases the underlying watches.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fsw.Close()
}
