package startup

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"doc-thumbnailer/internal/logging"
	"doc-thumbnailer/internal/workers"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the current build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// Config holds all application configuration
type Config struct {
	WatchDir          string
	OutputDir         string
	DatabaseDir       string
	Port              string
	DebounceDelay     time.Duration
	Workers           int
	Recursive         bool
	ReconcileInterval time.Duration
	ThumbnailPage     int
	ThumbnailWidth    int
	ThumbnailHeight   int
	MetricsEnabled    bool
	LogHealthChecks   bool
	ShutdownTimeout   time.Duration

	// Derived paths
	DatabasePath string
}

// LoadConfig loads and validates configuration from environment variables.
// The watch directory must already exist; the output and database
// directories are created if needed and must be writable.
func LoadConfig() (*Config, error) {
	printBanner()
	logSystemInfo()

	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")

	watchDir := getEnv("WATCH_DIR", "/documents")
	outputDir := getEnv("OUTPUT_DIR", "/thumbnails")
	databaseDir := getEnv("DATABASE_DIR", "/database")
	port := getEnv("PORT", "8080")
	debounceDelay := getEnvDuration("DEBOUNCE_DELAY", 500*time.Millisecond)
	numWorkers := getEnvInt("WORKERS", 0)
	recursive := getEnvBool("RECURSIVE", true)
	reconcileInterval := getEnvDuration("RECONCILE_INTERVAL", 30*time.Minute)
	thumbnailPage := getEnvInt("THUMBNAIL_PAGE", 1)
	thumbnailWidth := getEnvInt("THUMBNAIL_WIDTH", 210)
	thumbnailHeight := getEnvInt("THUMBNAIL_HEIGHT", 297)
	metricsEnabled := getEnvBool("METRICS_ENABLED", true)
	logHealthChecks := getEnvBool("LOG_HEALTH_CHECKS", false)
	shutdownTimeout := getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second)

	if numWorkers <= 0 {
		numWorkers = workers.ForCPU(8)
	}
	if thumbnailPage < 1 {
		logging.Warn("  Invalid THUMBNAIL_PAGE, using default: 1")
		thumbnailPage = 1
	}
	if thumbnailWidth < 1 || thumbnailHeight < 1 {
		logging.Warn("  Invalid thumbnail dimensions, using defaults: 210x297")
		thumbnailWidth, thumbnailHeight = 210, 297
	}

	logging.Info("  WATCH_DIR:           %s", watchDir)
	logging.Info("  OUTPUT_DIR:          %s", outputDir)
	logging.Info("  DATABASE_DIR:        %s", databaseDir)
	logging.Info("  PORT:                %s", port)
	logging.Info("  DEBOUNCE_DELAY:      %v", debounceDelay)
	logging.Info("  WORKERS:             %d", numWorkers)
	logging.Info("  RECURSIVE:           %v", recursive)
	logging.Info("  RECONCILE_INTERVAL:  %v", reconcileInterval)
	logging.Info("  THUMBNAIL_PAGE:      %d", thumbnailPage)
	logging.Info("  THUMBNAIL_SIZE:      %dx%d", thumbnailWidth, thumbnailHeight)
	logging.Info("  METRICS_ENABLED:     %v", metricsEnabled)
	logging.Info("  LOG_HEALTH_CHECKS:   %v", logHealthChecks)
	logging.Info("  SHUTDOWN_TIMEOUT:    %v", shutdownTimeout)
	logging.Info("  LOG_LEVEL:           %s", logging.GetLevel())

	// Resolve paths
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DIRECTORY SETUP")
	logging.Info("------------------------------------------------------------")

	watchDir, err := filepath.Abs(watchDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve watch directory path: %w", err)
	}
	logging.Info("  Watch directory (absolute): %s", watchDir)

	outputDir, err = filepath.Abs(outputDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve output directory path: %w", err)
	}
	logging.Info("  Output directory (absolute): %s", outputDir)

	databaseDir, err = filepath.Abs(databaseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve database directory path: %w", err)
	}
	logging.Info("  Database directory (absolute): %s", databaseDir)

	// The watch directory is someone else's data; refuse to invent it.
	info, err := os.Stat(watchDir)
	if err != nil {
		return nil, fmt.Errorf("watch directory error: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("watch path %s is not a directory", watchDir)
	}
	logging.Info("  [OK] Watch directory exists")

	if err := ensureDirectory(outputDir, "output"); err != nil {
		return nil, fmt.Errorf("output directory error: %w", err)
	}
	logging.Debug("  Testing output directory write access...")
	if err := testWriteAccess(outputDir); err != nil {
		return nil, fmt.Errorf("output directory is not writable: %w", err)
	}
	logging.Info("  [OK] Output directory is writable")

	if err := ensureDirectory(databaseDir, "database"); err != nil {
		return nil, fmt.Errorf("database directory error: %w", err)
	}
	logging.Debug("  Testing database directory write access...")
	if err := testWriteAccess(databaseDir); err != nil {
		return nil, fmt.Errorf("database directory is not writable (required for artifact index): %w", err)
	}
	logging.Info("  [OK] Database directory is writable")

	config := &Config{
		WatchDir:          watchDir,
		OutputDir:         outputDir,
		DatabaseDir:       databaseDir,
		Port:              port,
		DebounceDelay:     debounceDelay,
		Workers:           numWorkers,
		Recursive:         recursive,
		ReconcileInterval: reconcileInterval,
		ThumbnailPage:     thumbnailPage,
		ThumbnailWidth:    thumbnailWidth,
		ThumbnailHeight:   thumbnailHeight,
		MetricsEnabled:    metricsEnabled,
		LogHealthChecks:   logHealthChecks,
		ShutdownTimeout:   shutdownTimeout,
		DatabasePath:      filepath.Join(databaseDir, "artifacts.db"),
	}

	return config, nil
}

// LogRasterizerInit logs rasterizer initialization and checks for the
// external pdftoppm fallback tool.
func LogRasterizerInit(vipsAvailable bool) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("RASTERIZER INITIALIZATION")
	logging.Info("------------------------------------------------------------")

	if vipsAvailable {
		logging.Info("  [OK] libvips is available")
	} else {
		logging.Warn("  libvips initialization failed")
		logging.Warn("  PDF rendering will rely on the pdftoppm fallback")
	}

	if err := checkPdftoppm(); err != nil {
		logging.Warn("  pdftoppm check failed: %v", err)
		if !vipsAvailable {
			logging.Warn("  No PDF renderer available; PDF sources will fail permanently")
		}
	} else {
		logging.Info("  [OK] pdftoppm is available")
	}
}

// LogDatabaseInit logs artifact index initialization
func LogDatabaseInit(duration time.Duration) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("ARTIFACT INDEX INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  [OK] Artifact index initialized in %v", duration)
}

// LogReconcilerInit logs reconciler initialization
func LogReconcilerInit(interval time.Duration) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("RECONCILER INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Reconcile interval: %v", interval)
	logging.Info("  Running startup scan...")
}

// LogWatcherInit logs watcher initialization
func LogWatcherInit(watchDir string, recursive bool) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("WATCHER INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Watching %s (recursive: %v)", watchDir, recursive)
}

// ServerConfig holds configuration for the server startup log
type ServerConfig struct {
	Port            string
	MetricsEnabled  bool
	StartupDuration time.Duration
}

// LogServerStarted logs successful server start with endpoint information
func LogServerStarted(config ServerConfig) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DAEMON STARTED")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Startup time:    %v", config.StartupDuration)
	logging.Info("")
	logging.Info("  Endpoints:")
	logging.Info("    Health:        http://localhost:%s/health", config.Port)
	logging.Info("    Stats:         http://localhost:%s/api/stats", config.Port)
	if config.MetricsEnabled {
		logging.Info("    Metrics:       http://localhost:%s/metrics", config.Port)
	} else {
		logging.Info("    Metrics:       DISABLED")
	}
	logging.Info("")
	logging.Info("  Press Ctrl+C to stop the daemon")
	logging.Info("------------------------------------------------------------")
	logging.Info("")
}

// LogShutdownInitiated logs shutdown start
func LogShutdownInitiated(signal string) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SHUTDOWN INITIATED (received %s)", signal)
	logging.Info("------------------------------------------------------------")
}

// LogShutdownStep logs a shutdown step
func LogShutdownStep(step string) {
	logging.Debug("  %s...", step)
}

// LogShutdownStepComplete logs a completed shutdown step
func LogShutdownStepComplete(step string) {
	logging.Info("  [OK] %s", step)
}

// LogShutdownComplete logs shutdown completion
func LogShutdownComplete() {
	logging.Info("  [OK] Shutdown complete")
}

// Helper functions

func printBanner() {
	banner := `
------------------------------------------------------------
    ____             ______
   / __ \____  _____/_  __/ /_  __  ______ ___  / /_
  / / / / __ \/ ___/ / / / __ \/ / / / __ '__ \/ __ \
 / /_/ / /_/ / /__  / / / / / / /_/ / / / / / / /_/ /
/_____/\____/\___/ /_/ /_/ /_/\__,_/_/ /_/ /_/_.___/

------------------------------------------------------------`
	fmt.Println(banner)
	logging.Info("  Version:    %s", Version)
	logging.Info("  Commit:     %s", Commit)
	logging.Info("  Build Time: %s", BuildTime)
	logging.Info("  Started:    %s", time.Now().Format(time.RFC1123))
	logging.Info("")
}

func logSystemInfo() {
	logging.Info("------------------------------------------------------------")
	logging.Info("SYSTEM INFORMATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Go version:      %s", runtime.Version())
	logging.Info("  OS/Arch:         %s/%s", runtime.GOOS, runtime.GOARCH)
	logging.Info("  CPUs available:  %d", runtime.NumCPU())
	logging.Info("  GOMAXPROCS:      %d", runtime.GOMAXPROCS(0))

	if runtime.GOMAXPROCS(0) < runtime.NumCPU() {
		logging.Info("  (Container CPU limit detected)")
	}

	if logging.IsDebugEnabled() {
		logging.Debug("  Goroutines:      %d", runtime.NumGoroutine())

		if wd, err := os.Getwd(); err == nil {
			logging.Debug("  Working dir:     %s", wd)
		}

		if hostname, err := os.Hostname(); err == nil {
			logging.Debug("  Hostname:        %s", hostname)
		}
	}

	logging.Info("")
}

func ensureDirectory(path, name string) error {
	logging.Debug("  Checking %s directory: %s", name, path)

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		logging.Debug("    Directory does not exist, creating...")
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
		logging.Debug("    [OK] Created directory: %s", path)
		return nil
	}

	if err != nil {
		return fmt.Errorf("failed to stat directory: %w", err)
	}

	if !info.IsDir() {
		return fmt.Errorf("path exists but is not a directory")
	}

	logging.Debug("    [OK] Directory exists")
	return nil
}

func testWriteAccess(dir string) error {
	testFile := filepath.Join(dir, ".write-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		return err
	}
	if err := os.Remove(testFile); err != nil {
		logging.Warn("failed to remove write test file %s: %v", testFile, err)
		// Don't return error since write access was confirmed
	}
	return nil
}

func checkPdftoppm() error {
	path, err := exec.LookPath("pdftoppm")
	if err != nil {
		return fmt.Errorf("pdftoppm not found in PATH")
	}
	logging.Debug("  pdftoppm path: %s", path)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, "pdftoppm", "-v")
	// pdftoppm prints its version to stderr and exits 0 or 99 depending on
	// the poppler release.
	output, _ := cmd.CombinedOutput()
	lines := strings.Split(string(output), "\n")
	if len(lines) > 0 && strings.TrimSpace(lines[0]) != "" {
		logging.Debug("  pdftoppm version: %s", strings.TrimSpace(lines[0]))
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		logging.Warn("Invalid boolean value for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		logging.Warn("Invalid integer value for %s: %q, using default: %d", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		logging.Warn("Invalid duration value for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}
