package fsutil

import (
	"errors"
	"os"
	"time"
)

// ErrNotStable is returned by CheckStable when the file's size or
// modification time changed between the two samples, meaning a writer is
// still producing it.
var ErrNotStable = errors.New("file is still changing")

// CheckStable samples a file's size and modification time twice, probe
// apart, and returns the second sample's FileInfo if both match.
//
// It returns ErrNotStable when the samples differ, and the underlying stat
// error (os.IsNotExist-compatible) when the file disappears between samples.
func CheckStable(path string, probe time.Duration) (os.FileInfo, error) {
	first, err := StatWithRetry(path, DefaultRetryConfig())
	if err != nil {
		return nil, err
	}

	time.Sleep(probe)

	second, err := StatWithRetry(path, DefaultRetryConfig())
	if err != nil {
		return nil, err
	}

	if second.Size() != first.Size() || !second.ModTime().Equal(first.ModTime()) {
		return nil, ErrNotStable
	}

	return second, nil
}
