// Package pipeline implements the thumbnail generation pipeline executed by
// workers: stability check, rasterization, encoding, and atomic publish.
//
// Rasterization prefers libvips (which renders PDF pages with decode-time
// shrinking and decodes most image formats) and falls back to poppler's
// pdftoppm tool for PDFs vips cannot load. EPUB covers are extracted from
// the book's OPF manifest. Encoding always produces a PNG fitted inside the
// configured bounding box with the source aspect ratio preserved.
//
// Failures are classified as transient (worth retrying: file still being
// written, temporary resource exhaustion) or permanent (corrupt document,
// password-protected, unsupported format). The queue owns the retry policy;
// this package only reports the classification.
package pipeline
