// Package fsutil provides filesystem helpers shared by the pipeline and
// reconciler: stat/open with retry for flaky network mounts, a two-sample
// stability probe for files that are still being written, and atomic
// write-then-rename publishing.
package fsutil
