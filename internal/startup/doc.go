// Package startup handles daemon initialization: configuration loading from
// environment variables, directory validation, external tool detection, and
// structured startup/shutdown logging.
//
// Configuration is environment-only. Every variable has a sensible default
// so the daemon runs with nothing but WATCH_DIR set:
//
//	WATCH_DIR=/documents OUTPUT_DIR=/thumbnails ./doc-thumbnailer
//
// Build-time variables are injected via -ldflags and exposed via [GetBuildInfo]:
//   - Version: Application version
//   - Commit: Git commit hash
//   - BuildTime: Build timestamp
package startup
