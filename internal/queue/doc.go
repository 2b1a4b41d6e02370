// Package queue provides deduplicated, path-keyed admission control between
// the event sources (debouncer, reconciler) and the worker pool.
//
// Each path has at most one entry in a single state-tagged table:
//
//	Pending             — queued, waiting for a worker
//	InFlight            — claimed by exactly one worker
//	InFlightSuperseded  — claimed, but newer events arrived; the path is
//	                      re-queued when the worker releases it
//
// All transitions happen inside Enqueue, Claim, and Release under one lock,
// which makes Claim the single linearization point enforcing the
// at-most-one-in-flight-per-path invariant. Workers never touch the table
// directly.
//
// Enqueueing a path that is already pending coalesces into the existing
// entry instead of creating a duplicate. A removal enqueue overrides any
// pending generation for the same path and flags a matching in-flight job
// as cancelled so its output is discarded rather than published.
//
// Claim hands out the pending entry with the earliest event time first, so
// files queued early in a burst are not starved.
//
// Retry policy lives here, not in the workers: Release classifies the
// outcome and the queue decides whether to drop the job or re-queue it with
// exponential backoff, up to a bounded attempt count.
package queue
