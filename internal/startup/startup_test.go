package startup

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestGetBuildInfo(t *testing.T) {
	info := GetBuildInfo()

	if info.Version == "" {
		t.Error("Expected Version to be set")
	}
	if info.GoVersion == "" {
		t.Error("Expected GoVersion to be set")
	}
	if info.OS == "" {
		t.Error("Expected OS to be set")
	}
	if info.Arch == "" {
		t.Error("Expected Arch to be set")
	}
}

func setTestDirs(t *testing.T) (string, string, string) {
	t.Helper()
	watchDir := t.TempDir()
	outputDir := filepath.Join(t.TempDir(), "thumbs")
	databaseDir := filepath.Join(t.TempDir(), "db")

	t.Setenv("WATCH_DIR", watchDir)
	t.Setenv("OUTPUT_DIR", outputDir)
	t.Setenv("DATABASE_DIR", databaseDir)
	return watchDir, outputDir, databaseDir
}

func TestLoadConfigDefaults(t *testing.T) {
	watchDir, outputDir, databaseDir := setTestDirs(t)

	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if config.WatchDir != watchDir {
		t.Errorf("WatchDir = %q, want %q", config.WatchDir, watchDir)
	}
	if config.OutputDir != outputDir {
		t.Errorf("OutputDir = %q, want %q", config.OutputDir, outputDir)
	}
	if config.Port != "8080" {
		t.Errorf("Port = %q, want 8080", config.Port)
	}
	if config.DebounceDelay != 500*time.Millisecond {
		t.Errorf("DebounceDelay = %v, want 500ms", config.DebounceDelay)
	}
	if config.Workers < 1 {
		t.Errorf("Workers = %d, want >= 1", config.Workers)
	}
	if !config.Recursive {
		t.Error("Recursive = false, want true by default")
	}
	if config.ReconcileInterval != 30*time.Minute {
		t.Errorf("ReconcileInterval = %v, want 30m", config.ReconcileInterval)
	}
	if config.ThumbnailPage != 1 {
		t.Errorf("ThumbnailPage = %d, want 1", config.ThumbnailPage)
	}
	if config.ThumbnailWidth != 210 || config.ThumbnailHeight != 297 {
		t.Errorf("Thumbnail size = %dx%d, want 210x297", config.ThumbnailWidth, config.ThumbnailHeight)
	}
	if config.DatabasePath != filepath.Join(databaseDir, "artifacts.db") {
		t.Errorf("DatabasePath = %q, want under %q", config.DatabasePath, databaseDir)
	}

	// Output and database directories must have been created.
	for _, dir := range []string{outputDir, databaseDir} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Errorf("directory %s was not created: %v", dir, err)
		}
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	setTestDirs(t)
	t.Setenv("DEBOUNCE_DELAY", "2s")
	t.Setenv("WORKERS", "3")
	t.Setenv("RECURSIVE", "false")
	t.Setenv("RECONCILE_INTERVAL", "5m")
	t.Setenv("THUMBNAIL_PAGE", "2")
	t.Setenv("THUMBNAIL_WIDTH", "100")
	t.Setenv("THUMBNAIL_HEIGHT", "150")

	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if config.DebounceDelay != 2*time.Second {
		t.Errorf("DebounceDelay = %v, want 2s", config.DebounceDelay)
	}
	if config.Workers != 3 {
		t.Errorf("Workers = %d, want 3", config.Workers)
	}
	if config.Recursive {
		t.Error("Recursive = true, want false")
	}
	if config.ReconcileInterval != 5*time.Minute {
		t.Errorf("ReconcileInterval = %v, want 5m", config.ReconcileInterval)
	}
	if config.ThumbnailPage != 2 {
		t.Errorf("ThumbnailPage = %d, want 2", config.ThumbnailPage)
	}
	if config.ThumbnailWidth != 100 || config.ThumbnailHeight != 150 {
		t.Errorf("Thumbnail size = %dx%d, want 100x150", config.ThumbnailWidth, config.ThumbnailHeight)
	}
}

func TestLoadConfigMissingWatchDir(t *testing.T) {
	setTestDirs(t)
	t.Setenv("WATCH_DIR", filepath.Join(t.TempDir(), "does-not-exist"))

	if _, err := LoadConfig(); err == nil {
		t.Error("expected error for missing watch directory")
	}
}

func TestLoadConfigWatchPathIsFile(t *testing.T) {
	setTestDirs(t)
	filePath := filepath.Join(t.TempDir(), "a-file")
	if err := os.WriteFile(filePath, []byte("x"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("WATCH_DIR", filePath)

	if _, err := LoadConfig(); err == nil {
		t.Error("expected error when watch path is a file")
	}
}

func TestLoadConfigInvalidValuesFallBack(t *testing.T) {
	setTestDirs(t)
	t.Setenv("DEBOUNCE_DELAY", "soon")
	t.Setenv("WORKERS", "many")
	t.Setenv("RECURSIVE", "maybe")
	t.Setenv("THUMBNAIL_PAGE", "-4")

	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if config.DebounceDelay != 500*time.Millisecond {
		t.Errorf("DebounceDelay = %v, want default 500ms", config.DebounceDelay)
	}
	if config.Workers < 1 {
		t.Errorf("Workers = %d, want >= 1", config.Workers)
	}
	if !config.Recursive {
		t.Error("Recursive should fall back to true")
	}
	if config.ThumbnailPage != 1 {
		t.Errorf("ThumbnailPage = %d, want fallback 1", config.ThumbnailPage)
	}
}
