// Package reconciler periodically compares the watched directory against
// the artifact index and repairs any drift the event stream missed.
//
// A scan walks the watched tree and enqueues generation jobs for sources
// with a missing or stale thumbnail, enqueues cleanup jobs for recorded
// sources that no longer exist, and deletes stray files in the output
// directory that no record claims. Every discrepancy is routed through the
// same queue the watcher feeds, so scans are idempotent: a second scan over
// an unchanged tree coalesces into the jobs the first one created.
package reconciler
