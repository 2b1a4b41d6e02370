// Package watcher turns raw filesystem notifications into settled,
// per-path change signals.
//
// The Watcher consumes fsnotify events for the watched directory tree,
// discards non-document files and the daemon's own outputs, and feeds the
// surviving events into a Debouncer. The Debouncer keeps one quiet-period
// timer per path; every new event for a path resets its timer, and only
// when the timer expires with no further activity is a single Signal
// emitted downstream. Removal events bypass the quiet period entirely so
// cancellation is never delayed.
//
// Watch APIs can drop events under load, so consumers must not treat this
// package as a delivery guarantee; the reconciler re-scans the directory to
// correct any drift.
package watcher
