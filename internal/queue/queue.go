package queue

import (
	"sync"
	"time"

	"doc-thumbnailer/internal/logging"
	"doc-thumbnailer/internal/metrics"
	"doc-thumbnailer/internal/watcher"
)

// Outcome classifies a finished job when a worker releases it.
type Outcome int

const (
	// OutcomeSuccess means the job completed and its result was published.
	OutcomeSuccess Outcome = iota
	// OutcomeTransient means the job failed in a way worth retrying.
	OutcomeTransient
	// OutcomePermanent means the job failed and retrying cannot help.
	OutcomePermanent
	// OutcomeCancelled means the job was abandoned after its source was removed.
	OutcomeCancelled
)

// String returns the metric label for an outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeTransient:
		return "transient"
	case OutcomePermanent:
		return "permanent"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Job is a unit of work claimed by a worker. Created/Modified jobs generate
// a thumbnail; Removed jobs clean one up.
type Job struct {
	Path       string
	Kind       watcher.Kind
	Attempts   int
	EnqueuedAt time.Time
}

type entryState int

const (
	statePending entryState = iota
	stateInFlight
	stateInFlightSuperseded
)

// entry is the single state-tagged record per path. It is only ever mutated
// under the queue lock.
type entry struct {
	state       entryState
	kind        watcher.Kind
	attempts    int
	lastEventAt time.Time
	notBefore   time.Time    // earliest claim time after a transient failure
	cancelled   bool         // a removal arrived while in flight
	nextKind    watcher.Kind // kind to re-queue with when superseded
}

// Config tunes retry behavior.
type Config struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultConfig returns the default retry policy: up to 5 attempts with
// exponential backoff from 500ms capped at 30s.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:    5,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     30 * time.Second,
	}
}

// Queue is the path-keyed, deduplicating work queue.
type Queue struct {
	cfg Config

	mu      sync.Mutex
	cond    *sync.Cond
	entries map[string]*entry
	closed  bool
}

// New creates an empty queue.
func New(cfg Config) *Queue {
	q := &Queue{
		cfg:     cfg,
		entries: make(map[string]*entry),
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Enqueue admits a settled signal for a path.
//
// For Created/Modified: if the path is already pending the entry is
// coalesced (event time bumped, attempts reset); if it is in flight the
// entry is flagged superseded so the path re-queues after release; otherwise
// a fresh pending entry is created.
//
// For Removed: a pending generation is overridden into a pending cleanup,
// an in-flight job is flagged cancelled (its output will be discarded and a
// cleanup queued on release), and an idle path gets a pending cleanup so
// any existing thumbnail is deleted.
func (q *Queue) Enqueue(path string, kind watcher.Kind) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	now := time.Now()
	e, exists := q.entries[path]

	if !exists {
		q.entries[path] = &entry{
			state:       statePending,
			kind:        kind,
			lastEventAt: now,
		}
		q.updateGauges()
		q.cond.Broadcast()
		return
	}

	switch e.state {
	case statePending:
		// Coalesce. The newest kind wins, so a Removed overrides an earlier
		// Created and a re-created file overrides a pending cleanup.
		e.kind = kind
		e.attempts = 0
		e.lastEventAt = now
		e.notBefore = time.Time{}
		metrics.QueueCoalescedTotal.Inc()
		q.cond.Broadcast()

	case stateInFlight, stateInFlightSuperseded:
		e.state = stateInFlightSuperseded
		e.nextKind = kind
		if kind == watcher.Removed {
			e.cancelled = true
		}
	}
}

// Claim blocks until a pending job is ready, converts it to in-flight, and
// returns it. The conversion under the queue lock is what guarantees at
// most one in-flight job per path. Claim returns false once the queue is
// closed.
func (q *Queue) Claim() (Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for {
		if q.closed {
			return Job{}, false
		}

		if e, path := q.nextReady(); e != nil {
			e.state = stateInFlight
			e.cancelled = false
			q.updateGauges()
			return Job{
				Path:       path,
				Kind:       e.kind,
				Attempts:   e.attempts,
				EnqueuedAt: e.lastEventAt,
			}, true
		}

		q.cond.Wait()
	}
}

// nextReady returns the pending entry with the earliest event time whose
// backoff window has passed. Caller must hold the lock.
func (q *Queue) nextReady() (*entry, string) {
	now := time.Now()
	var best *entry
	var bestPath string

	for path, e := range q.entries {
		if e.state != statePending || now.Before(e.notBefore) {
			continue
		}
		if best == nil || e.lastEventAt.Before(best.lastEventAt) {
			best = e
			bestPath = path
		}
	}
	return best, bestPath
}

// Cancelled reports whether a removal arrived for a path while its job is
// in flight. Workers check this at pipeline step boundaries so stale output
// is discarded instead of published.
func (q *Queue) Cancelled(path string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	e, exists := q.entries[path]
	return exists && e.cancelled
}

// Release completes the in-flight job for a path. The queue, not the
// worker, decides what happens next: superseded paths re-queue fresh,
// transient failures re-queue with backoff until the attempt budget is
// exhausted, everything else clears the entry.
func (q *Queue) Release(path string, outcome Outcome) {
	q.mu.Lock()
	defer q.mu.Unlock()

	e, exists := q.entries[path]
	if !exists || e.state == statePending {
		logging.Warn("Release for %s with no in-flight entry", path)
		return
	}

	metrics.QueueJobsTotal.WithLabelValues(outcome.String()).Inc()

	if e.state == stateInFlightSuperseded {
		// Newer events arrived during execution. Whatever the outcome of
		// the stale run, the path re-queues with the newest kind.
		e.state = statePending
		e.kind = e.nextKind
		e.attempts = 0
		e.cancelled = false
		e.lastEventAt = time.Now()
		e.notBefore = time.Time{}
		q.updateGauges()
		q.cond.Broadcast()
		return
	}

	switch outcome {
	case OutcomeTransient:
		e.attempts++
		if e.attempts >= q.cfg.MaxAttempts {
			logging.Error("Giving up on %s after %d attempts", path, e.attempts)
			delete(q.entries, path)
			break
		}
		backoff := q.backoffFor(e.attempts)
		e.state = statePending
		e.notBefore = time.Now().Add(backoff)
		metrics.QueueRetriesTotal.Inc()
		logging.Debug("Re-queueing %s in %v (attempt %d/%d)", path, backoff, e.attempts, q.cfg.MaxAttempts)
		time.AfterFunc(backoff, q.cond.Broadcast)

	default:
		delete(q.entries, path)
	}

	q.updateGauges()
	q.cond.Broadcast()
}

func (q *Queue) backoffFor(attempts int) time.Duration {
	backoff := q.cfg.InitialBackoff
	for i := 1; i < attempts; i++ {
		backoff *= 2
		if backoff >= q.cfg.MaxBackoff {
			return q.cfg.MaxBackoff
		}
	}
	if backoff > q.cfg.MaxBackoff {
		backoff = q.cfg.MaxBackoff
	}
	return backoff
}

// Depth returns the number of pending jobs.
func (q *Queue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pendingLocked()
}

// InFlight returns the number of jobs currently held by workers.
func (q *Queue) InFlight() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.inFlightLocked()
}

func (q *Queue) pendingLocked() int {
	n := 0
	for _, e := range q.entries {
		if e.state == statePending {
			n++
		}
	}
	return n
}

func (q *Queue) inFlightLocked() int {
	n := 0
	for _, e := range q.entries {
		if e.state != statePending {
			n++
		}
	}
	return n
}

func (q *Queue) updateGauges() {
	metrics.QueueDepth.Set(float64(q.pendingLocked()))
	metrics.QueueInFlight.Set(float64(q.inFlightLocked()))
}

// Close stops the queue. Blocked Claim calls return false; further
// enqueues are ignored. Pending jobs are dropped — the reconciler rebuilds
// them from the directory on the next start.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Broadcast()
}
