package watcher

import (
	"os"
	"sync"
	"time"

	"doc-thumbnailer/internal/metrics"
)

// Debouncer coalesces rapid change events for the same path into a single
// settled Signal, emitted only after a quiet period with no further events
// for that path. Each path debounces independently.
type Debouncer struct {
	delay time.Duration

	mu      sync.Mutex
	pending map[string]*pendingEvent
	stopped bool

	emitMu sync.Mutex
	closed bool
	out    chan Signal
}

type pendingEvent struct {
	timer *time.Timer
	kind  Kind
}

// NewDebouncer creates a Debouncer with the given quiet-period duration.
func NewDebouncer(delay time.Duration) *Debouncer {
	return &Debouncer{
		delay:   delay,
		pending: make(map[string]*pendingEvent),
		out:     make(chan Signal, 1024),
	}
}

// Signals returns the channel of settled signals. It is closed by Stop.
func (d *Debouncer) Signals() <-chan Signal {
	return d.out
}

// Observe registers a raw change event for a path.
//
// Created/Modified events start or reset the path's quiet-period timer.
// Removed events cancel any pending timer and are emitted immediately,
// since cancellation must not wait out a quiet period.
func (d *Debouncer) Observe(path string, kind Kind) {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}

	if kind == Removed {
		if p, exists := d.pending[path]; exists {
			p.timer.Stop()
			delete(d.pending, path)
			metrics.DebounceTimersActive.Set(float64(len(d.pending)))
		}
		d.mu.Unlock()
		d.emit(Signal{Path: path, Kind: Removed, At: time.Now()})
		return
	}

	if p, exists := d.pending[path]; exists {
		p.kind = kind
		p.timer.Reset(d.delay)
		d.mu.Unlock()
		metrics.DebounceEventsCoalesced.Inc()
		return
	}

	p := &pendingEvent{kind: kind}
	p.timer = time.AfterFunc(d.delay, func() { d.settle(path) })
	d.pending[path] = p
	metrics.DebounceTimersActive.Set(float64(len(d.pending)))
	d.mu.Unlock()
}

// settle fires when a path's quiet period expires with no further events.
func (d *Debouncer) settle(path string) {
	d.mu.Lock()
	p, exists := d.pending[path]
	if !exists || d.stopped {
		d.mu.Unlock()
		return
	}
	delete(d.pending, path)
	metrics.DebounceTimersActive.Set(float64(len(d.pending)))
	kind := p.kind
	d.mu.Unlock()

	// The file may have been deleted during the quiet period without a
	// removal event reaching us yet. Emitting a stale Created/Modified for
	// a gone file would queue doomed work, so check and downgrade.
	if _, err := os.Stat(path); os.IsNotExist(err) {
		kind = Removed
	}

	d.emit(Signal{Path: path, Kind: kind, At: time.Now()})
}

func (d *Debouncer) emit(sig Signal) {
	d.emitMu.Lock()
	defer d.emitMu.Unlock()
	if d.closed {
		return
	}
	d.out <- sig
}

// PendingCount returns the number of paths currently waiting out a quiet
// period. Primarily useful for tests.
func (d *Debouncer) PendingCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// Stop cancels all pending timers and closes the signal channel. No
// further signals are emitted after Stop returns.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	d.stopped = true
	for path, p := range d.pending {
		p.timer.Stop()
		delete(d.pending, path)
	}
	metrics.DebounceTimersActive.Set(0)
	d.mu.Unlock()

	d.emitMu.Lock()
	d.closed = true
	close(d.out)
	d.emitMu.Unlock()
}
