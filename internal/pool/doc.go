// Package pool runs a fixed number of workers that drain the job queue and
// execute the thumbnail pipeline.
//
// Each worker loops claim → run → release. Generation jobs poll the queue's
// cancellation flag at pipeline step boundaries so a removal arriving
// mid-execution discards output instead of publishing it. Workers never
// decide retry policy themselves; they classify the pipeline error into an
// outcome and hand it back to the queue.
package pool
