// Package workers provides utilities for determining worker pool sizes in
// containerized environments.
//
// While Go 1.19+ automatically sets GOMAXPROCS based on container CPU
// limits, runtime.NumCPU() still returns the host machine's CPU count.
// These helpers use GOMAXPROCS so worker counts respect cgroup limits.
//
// Rasterization is CPU- and memory-heavy, so the daemon defaults to one
// worker per available CPU, capped to avoid resource exhaustion:
//
//	numWorkers := workers.ForCPU(8)
//
// The WORKERS environment variable, read at configuration load, overrides
// any computed count.
package workers
