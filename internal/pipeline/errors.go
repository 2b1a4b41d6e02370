package pipeline

import (
	"errors"
	"os"
	"syscall"

	"doc-thumbnailer/internal/fsutil"
)

// Typed pipeline failures.
var (
	// ErrCorrupt marks a document that cannot be parsed.
	ErrCorrupt = errors.New("corrupt or unreadable document")
	// ErrPasswordProtected marks an encrypted document.
	ErrPasswordProtected = errors.New("document is password-protected")
	// ErrUnsupported marks a file whose format has no rasterizer.
	ErrUnsupported = errors.New("unsupported document format")
	// ErrNoCover marks an EPUB with no identifiable cover image.
	ErrNoCover = errors.New("no cover image in EPUB")
	// ErrToolMissing marks an absent external rasterization tool.
	ErrToolMissing = errors.New("rasterization tool not available")
	// ErrSourceGone marks a source that vanished before processing.
	ErrSourceGone = errors.New("source file no longer exists")
	// ErrCancelled marks a job abandoned because its source was removed
	// while the pipeline was running.
	ErrCancelled = errors.New("job cancelled")
)

// Class is the retry classification of a pipeline failure.
type Class int

const (
	// ClassTransient failures are retried with backoff.
	ClassTransient Class = iota
	// ClassPermanent failures are logged and dropped.
	ClassPermanent
)

// Classify maps a pipeline error to its retry class. Unknown I/O errors
// default to transient so a bounded retry gets a chance before the queue
// escalates them.
func Classify(err error) Class {
	switch {
	case errors.Is(err, ErrCorrupt),
		errors.Is(err, ErrPasswordProtected),
		errors.Is(err, ErrUnsupported),
		errors.Is(err, ErrNoCover),
		errors.Is(err, ErrToolMissing),
		errors.Is(err, ErrSourceGone):
		return ClassPermanent
	case errors.Is(err, fsutil.ErrNotStable):
		return ClassTransient
	case os.IsNotExist(err):
		return ClassPermanent
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case syscall.EAGAIN, syscall.EBUSY, syscall.ETXTBSY, syscall.ENOMEM:
			return ClassTransient
		}
	}

	return ClassTransient
}
