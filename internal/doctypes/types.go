package doctypes

import (
	"path/filepath"
	"strings"
)

// DocType represents the type of a watched document file.
type DocType string

const (
	// DocTypePDF represents a PDF document.
	DocTypePDF DocType = "pdf"
	// DocTypeImage represents a plain image file.
	DocTypeImage DocType = "image"
	// DocTypeEPUB represents an EPUB book.
	DocTypeEPUB DocType = "epub"
	// DocTypeOther represents an unknown or unsupported file type.
	DocTypeOther DocType = "other"
)

// ThumbnailSuffix is appended to a source file's stem to form its thumbnail
// filename. The mapping from source path to output path is a pure function of
// the source filename, so outputs are stable across runs.
const ThumbnailSuffix = ".thumb.png"

// ImageExtensions maps file extensions to whether they are supported image formats.
var ImageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
	".bmp": true, ".webp": true, ".tiff": true, ".tif": true,
}

// ignoredSuffixes are in-progress or scratch files that writers commonly
// produce next to the real document. They never become sources.
var ignoredSuffixes = []string{
	".tmp", ".log", ".part", ".crdownload", ".swp",
}

// GetDocType returns the document type for a lowercase file extension.
func GetDocType(ext string) DocType {
	switch {
	case ext == ".pdf":
		return DocTypePDF
	case ext == ".epub":
		return DocTypeEPUB
	case ImageExtensions[ext]:
		return DocTypeImage
	default:
		return DocTypeOther
	}
}

// GetDocTypeForPath returns the document type for a file path.
func GetDocTypeForPath(path string) DocType {
	return GetDocType(strings.ToLower(filepath.Ext(path)))
}

// IsSupported reports whether the path has a recognized document extension.
func IsSupported(path string) bool {
	return GetDocTypeForPath(path) != DocTypeOther
}

// IsIgnored reports whether the path should never be treated as a source
// document: hidden files, common temporary/partial-write suffixes, and the
// daemon's own thumbnail outputs.
func IsIgnored(path string) bool {
	name := filepath.Base(path)
	if strings.HasPrefix(name, ".") {
		return true
	}
	if strings.HasSuffix(name, ThumbnailSuffix) {
		return true
	}
	lower := strings.ToLower(name)
	for _, suffix := range ignoredSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	return false
}

// ThumbnailName returns the thumbnail filename for a source filename:
// the source stem with ThumbnailSuffix appended ("report.pdf" -> "report.thumb.png").
func ThumbnailName(sourceName string) string {
	stem := strings.TrimSuffix(sourceName, filepath.Ext(sourceName))
	return stem + ThumbnailSuffix
}
