// Package doctypes provides shared type definitions and utilities for
// document file handling across the thumbnail daemon.
//
// This package exists as a dependency-free foundation that can be imported by
// other packages without creating import cycles. It contains primitive types,
// constants, and pure utility functions with no external dependencies beyond
// the standard library.
//
// # Document Types
//
// The package defines a DocType enum for categorizing watched files:
//
//	doctypes.DocTypePDF   // PDF documents
//	doctypes.DocTypeImage // Plain image files (jpg, png, webp, etc.)
//	doctypes.DocTypeEPUB  // EPUB books (cover image used as thumbnail)
//	doctypes.DocTypeOther // Unrecognized or unsupported files
//
// Use GetDocType to determine the type of a file based on its extension:
//
//	ext := strings.ToLower(filepath.Ext(filename))
//	docType := doctypes.GetDocType(ext)
//
// # Ignore Rules
//
// IsIgnored reports whether a path should never be treated as a source
// document: hidden files, editor/download temporaries, and the daemon's own
// thumbnail outputs.
package doctypes
