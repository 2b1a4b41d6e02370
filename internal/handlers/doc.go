// Package handlers implements the daemon's HTTP endpoints: health and
// readiness probes, a stats summary, version info, and Prometheus metrics.
//
// The HTTP surface is observational only. Thumbnails are consumed straight
// from the output directory; nothing here serves or mutates them.
package handlers
