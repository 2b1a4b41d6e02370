// Package artifacts maintains the SQLite index of generated thumbnails.
//
// Each row records the deterministic source→output mapping together with the
// source file's size and modification time at generation. The reconciler uses
// these records to skip up-to-date sources, detect stale thumbnails, and find
// orphaned outputs whose source has been removed.
//
// The index is durable metadata about files already on disk. Pending and
// in-flight job state is never written here; after a crash the reconciler
// rebuilds the work set by re-scanning the watched directory.
package artifacts
