package pool

import (
	"context"
	"errors"
	"sync"

	"doc-thumbnailer/internal/logging"
	"doc-thumbnailer/internal/pipeline"
	"doc-thumbnailer/internal/queue"
	"doc-thumbnailer/internal/watcher"
)

// Processor executes one job. Satisfied by *pipeline.Generator.
type Processor interface {
	// Process generates the thumbnail for a source document. cancelled is
	// polled at step boundaries.
	Process(ctx context.Context, path string, cancelled func() bool) error
	// Remove deletes the thumbnail for a removed source document.
	Remove(ctx context.Context, path string) error
}

// Pool executes queue jobs with bounded concurrency.
type Pool struct {
	q    *queue.Queue
	proc Processor
	size int
	wg   sync.WaitGroup
}

// New creates a pool of size workers. Workers start on Start and exit when
// the queue closes.
func New(q *queue.Queue, proc Processor, size int) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{q: q, proc: proc, size: size}
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return p.size
}

// Start launches the workers.
func (p *Pool) Start(ctx context.Context) {
	logging.Info("Starting %d thumbnail workers", p.size)
	for i := 0; i < p.size; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
}

func (p *Pool) worker(ctx context.Context, id int) {
	defer p.wg.Done()
	logging.Debug("Worker %d started", id)

	for {
		job, ok := p.q.Claim()
		if !ok {
			logging.Debug("Worker %d finished", id)
			return
		}

		var err error
		if job.Kind == watcher.Removed {
			err = p.proc.Remove(ctx, job.Path)
		} else {
			err = p.proc.Process(ctx, job.Path, func() bool {
				return p.q.Cancelled(job.Path) || ctx.Err() != nil
			})
		}

		p.q.Release(job.Path, p.outcomeFor(job, err))
	}
}

// outcomeFor classifies a pipeline result and logs failures so no missing
// thumbnail goes unexplained.
func (p *Pool) outcomeFor(job queue.Job, err error) queue.Outcome {
	switch {
	case err == nil:
		return queue.OutcomeSuccess
	case errors.Is(err, pipeline.ErrCancelled):
		logging.Debug("Job for %s cancelled", job.Path)
		return queue.OutcomeCancelled
	case pipeline.Classify(err) == pipeline.ClassPermanent:
		logging.Error("Permanent failure for %s (attempt %d): %v", job.Path, job.Attempts+1, err)
		return queue.OutcomePermanent
	default:
		logging.Warn("Transient failure for %s (attempt %d): %v", job.Path, job.Attempts+1, err)
		return queue.OutcomeTransient
	}
}

// Wait blocks until all workers have exited. Close the queue first.
func (p *Pool) Wait() {
	p.wg.Wait()
}
