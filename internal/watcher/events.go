package watcher

import "time"

// Kind classifies a filesystem change.
type Kind int

const (
	// Created indicates a file appeared.
	Created Kind = iota
	// Modified indicates a file's contents changed.
	Modified
	// Removed indicates a file was deleted or renamed away.
	Removed
)

// String returns the string representation of a Kind.
func (k Kind) String() string {
	switch k {
	case Created:
		return "created"
	case Modified:
		return "modified"
	case Removed:
		return "removed"
	default:
		return "unknown"
	}
}

// Signal is a settled change notification for a single path, emitted after
// that path's quiet period expired (or immediately for removals).
type Signal struct {
	Path string
	Kind Kind
	At   time.Time
}
