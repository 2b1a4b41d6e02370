package handlers

import (
	"time"

	"doc-thumbnailer/internal/artifacts"
	"doc-thumbnailer/internal/queue"
	"doc-thumbnailer/internal/reconciler"
	"doc-thumbnailer/internal/startup"
)

type Handlers struct {
	q         *queue.Queue
	db        *artifacts.DB
	rec       *reconciler.Reconciler
	watchDir  string
	outputDir string
	startTime time.Time
}

func New(q *queue.Queue, db *artifacts.DB, rec *reconciler.Reconciler, config *startup.Config) *Handlers {
	return &Handlers{
		q:         q,
		db:        db,
		rec:       rec,
		watchDir:  config.WatchDir,
		outputDir: config.OutputDir,
		startTime: time.Now(),
	}
}
