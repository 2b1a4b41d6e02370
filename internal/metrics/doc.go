// Package metrics defines the Prometheus metrics exported by the thumbnail
// daemon and helpers for pre-populating label combinations.
//
// Metrics are declared as package-level promauto variables so that any
// package can record observations without threading a registry through the
// call graph. InitializeMetrics should be called once at startup so every
// expected label combination is present from the first scrape.
//
// Metric families:
//   - watcher: raw filesystem events by operation, debounce timer activity
//   - queue: pending depth, in-flight gauge, jobs by outcome, retries
//   - pipeline: per-stage durations, generation totals by type and status
//   - reconciler: run counts, durations, enqueued and cleaned-up paths
//   - artifacts: database query counts and durations
package metrics
