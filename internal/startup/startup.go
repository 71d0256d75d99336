package startup

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"smart-gallery/internal/logging"
	"smart-gallery/internal/topology"
	"smart-gallery/internal/workflow"

	"github.com/gorilla/mux"
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
	OutputDir          string
	InputDir           string
	Port               string
	MetricsPort        string
	ThumbnailWidth     int
	WebPAnimatedFPS    float64
	PageSize           int
	SpecialFolders     []string
	EnableDeletion     bool
	DeletionAllowedIPs []string
	SyncInterval       time.Duration
	LogFile            string
	MetricsEnabled     bool

	// Derived paths
	DatabasePath string
	ThumbnailDir string
	SidecarDir   string

	// Discovered tools; empty when not found
	FFprobePath string
	FFmpegPath  string
}

// LoadConfig loads and validates configuration from environment variables
func LoadConfig() (*Config, error) {
	printBanner()
	logSystemInfo()

	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")

	outputDir := getEnv("GALLERY_BASE_OUTPUT_PATH", "./output")
	inputDir := getEnv("GALLERY_BASE_INPUT_PATH", "./input")
	port := getEnv("GALLERY_SERVER_PORT", "8189")
	metricsPort := getEnv("METRICS_PORT", "9090")
	thumbnailWidth := getEnvInt("GALLERY_THUMBNAIL_WIDTH", 300)
	webpFPS := getEnvFloat("GALLERY_WEBP_ANIMATED_FPS", 16)
	pageSize := getEnvInt("GALLERY_PAGE_SIZE", 100)
	ffprobeManual := getEnv("GALLERY_FFPROBE_MANUAL_PATH", "")
	specialFolders := getEnvList("GALLERY_SPECIAL_FOLDERS")
	enableDeletion := getEnvBool("GALLERY_ENABLE_DELETION", true)
	deletionIPs := getEnvList("GALLERY_DELETION_ALLOWED_IPS")
	syncIntervalStr := getEnv("SYNC_INTERVAL", "30m")
	logFile := getEnv("LOG_FILE", "")
	metricsEnabled := getEnvBool("METRICS_ENABLED", true)

	logging.Info("  GALLERY_BASE_OUTPUT_PATH:     %s", outputDir)
	logging.Info("  GALLERY_BASE_INPUT_PATH:      %s", inputDir)
	logging.Info("  GALLERY_SERVER_PORT:          %s", port)
	logging.Info("  GALLERY_THUMBNAIL_WIDTH:      %d", thumbnailWidth)
	logging.Info("  GALLERY_WEBP_ANIMATED_FPS:    %g", webpFPS)
	logging.Info("  GALLERY_PAGE_SIZE:            %d", pageSize)
	logging.Info("  GALLERY_SPECIAL_FOLDERS:      %s", strings.Join(specialFolders, ", "))
	logging.Info("  GALLERY_ENABLE_DELETION:      %v", enableDeletion)
	logging.Info("  GALLERY_DELETION_ALLOWED_IPS: %s", strings.Join(deletionIPs, ", "))
	logging.Info("  SYNC_INTERVAL:                %s", syncIntervalStr)
	logging.Info("  METRICS_PORT:                 %s", metricsPort)
	logging.Info("  METRICS_ENABLED:              %v", metricsEnabled)
	logging.Info("  LOG_LEVEL:                    %s", logging.GetLevel())

	if thumbnailWidth <= 0 {
		logging.Warn("  Invalid GALLERY_THUMBNAIL_WIDTH, using default: 300")
		thumbnailWidth = 300
	}
	if pageSize <= 0 {
		logging.Warn("  Invalid GALLERY_PAGE_SIZE, using default: 100")
		pageSize = 100
	}

	syncInterval, err := time.ParseDuration(syncIntervalStr)
	if err != nil {
		logging.Warn("  Invalid SYNC_INTERVAL, using default: 30m")
		syncInterval = 30 * time.Minute
	}

	// Resolve paths
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DIRECTORY SETUP")
	logging.Info("------------------------------------------------------------")

	outputDir, err = filepath.Abs(outputDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve output directory path: %w", err)
	}
	logging.Info("  Output directory (absolute): %s", outputDir)

	inputDir, err = filepath.Abs(inputDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve input directory path: %w", err)
	}
	logging.Info("  Input directory (absolute):  %s", inputDir)

	// The output directory may not exist yet on first run; the gallery
	// then serves an empty root until media appears.
	if err := ensureDirectory(outputDir, "output"); err != nil {
		logging.Warn("  Output directory issue: %v", err)
	}

	config := &Config{
		OutputDir:          outputDir,
		InputDir:           inputDir,
		Port:               port,
		MetricsPort:        metricsPort,
		ThumbnailWidth:     thumbnailWidth,
		WebPAnimatedFPS:    webpFPS,
		PageSize:           pageSize,
		SpecialFolders:     specialFolders,
		EnableDeletion:     enableDeletion,
		DeletionAllowedIPs: deletionIPs,
		SyncInterval:       syncInterval,
		LogFile:            logFile,
		MetricsEnabled:     metricsEnabled,
		DatabasePath:       filepath.Join(outputDir, topology.SQLiteCacheFolderName, "gallery_cache.sqlite"),
		ThumbnailDir:       filepath.Join(outputDir, topology.ThumbnailCacheFolderName),
		SidecarDir:         filepath.Join(inputDir, workflow.SidecarFolderName),
	}

	cacheDir := filepath.Dir(config.DatabasePath)
	if err := ensureDirectory(cacheDir, "database cache"); err != nil {
		return nil, fmt.Errorf("database cache directory error: %w", err)
	}

	logging.Debug("  Testing database directory write access...")
	if err := testWriteAccess(cacheDir); err != nil {
		return nil, fmt.Errorf("database cache directory is not writable: %w", err)
	}
	logging.Info("  [OK] Database cache directory is writable")

	thumbnailsEnabled := setupOptionalDir(config.ThumbnailDir, "thumbnail cache")
	if !thumbnailsEnabled {
		config.ThumbnailDir = ""
	}

	discoverTools(config, ffprobeManual)

	logging.Info("")
	logging.Info("  Feature availability:")
	logging.Info("    Index:       ENABLED (required)")
	logging.Info("    Thumbnails:  %s", enabledString(thumbnailsEnabled))
	logging.Info("    Video probe: %s", enabledString(config.FFprobePath != ""))
	logging.Info("    Deletion:    %s", enabledString(config.EnableDeletion))
	logging.Info("    Metrics:     %s", enabledString(config.MetricsEnabled))

	return config, nil
}

// ProtectedFolderKeys returns the folder keys that can never be renamed
// or deleted: the root plus each configured special folder.
func (c *Config) ProtectedFolderKeys() map[string]bool {
	keys := map[string]bool{topology.RootKey: true}
	for _, name := range c.SpecialFolders {
		keys[topology.PathToKey(name)] = true
	}
	return keys
}

// discoverTools locates ffprobe and ffmpeg. A manual ffprobe path wins
// over PATH lookup, and ffmpeg is first looked for next to ffprobe so
// that a bundled toolchain stays consistent.
func discoverTools(config *Config, ffprobeManual string) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("TOOL DISCOVERY")
	logging.Info("------------------------------------------------------------")

	if ffprobeManual != "" {
		if info, err := os.Stat(ffprobeManual); err == nil && !info.IsDir() {
			config.FFprobePath = ffprobeManual
			logging.Info("  [OK] ffprobe (manual): %s", ffprobeManual)
		} else {
			logging.Warn("  GALLERY_FFPROBE_MANUAL_PATH is not a usable file: %s", ffprobeManual)
		}
	}
	if config.FFprobePath == "" {
		if path, err := exec.LookPath("ffprobe"); err == nil {
			config.FFprobePath = path
			logging.Info("  [OK] ffprobe: %s", path)
		} else {
			logging.Warn("  ffprobe not found; video duration and dimensions will be unavailable")
		}
	}

	if config.FFprobePath != "" {
		sibling := filepath.Join(filepath.Dir(config.FFprobePath), "ffmpeg"+filepath.Ext(config.FFprobePath))
		if info, err := os.Stat(sibling); err == nil && !info.IsDir() {
			config.FFmpegPath = sibling
		}
	}
	if config.FFmpegPath == "" {
		if path, err := exec.LookPath("ffmpeg"); err == nil {
			config.FFmpegPath = path
		}
	}
	if config.FFmpegPath != "" {
		logging.Info("  [OK] ffmpeg: %s", config.FFmpegPath)
		if err := checkTool(config.FFmpegPath); err != nil {
			logging.Warn("  ffmpeg version check failed: %v", err)
		}
	} else {
		logging.Warn("  ffmpeg not found; video thumbnails will be unavailable")
	}
}

func setupOptionalDir(path, name string) bool {
	logging.Debug("  Setting up %s directory: %s", name, path)

	if err := os.MkdirAll(path, 0o755); err != nil {
		logging.Warn("    Failed to create %s directory: %v", name, err)
		logging.Warn("    %s will be disabled", name)
		return false
	}

	testFile := filepath.Join(path, ".write-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		logging.Warn("    %s directory is not writable: %v", name, err)
		logging.Warn("    %s will be disabled", name)
		return false
	}
	if err := os.Remove(testFile); err != nil {
		logging.Warn("    failed to remove test file %s: %v", testFile, err)
		// Still return true since write succeeded
	}

	logging.Debug("    [OK] %s directory ready", name)
	return true
}

func enabledString(enabled bool) string {
	if enabled {
		return "ENABLED"
	}
	return "DISABLED"
}

// LogDatabaseInit logs database initialization
func LogDatabaseInit(duration time.Duration, rebuilt bool) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DATABASE INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	if rebuilt {
		logging.Warn("  Schema version changed; index cache dropped and rebuilt")
	}
	logging.Info("  [OK] Database initialized in %v", duration)
}

// LogIndexerInit logs indexer initialization
func LogIndexerInit(interval time.Duration) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("INDEXER INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Full reconciliation interval: %v", interval)
	logging.Info("  Starting indexer...")
}

// LogIndexerStarted logs successful indexer start
func LogIndexerStarted() {
	logging.Info("  [OK] Indexer started")
}

// RouteInfo contains information about a registered route
type RouteInfo struct {
	Method string
	Path   string
	Name   string
}

// GetRoutes extracts all registered routes from a mux.Router
func GetRoutes(router *mux.Router) ([]RouteInfo, error) {
	var routes []RouteInfo

	err := router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		pathTemplate, err := route.GetPathTemplate()
		if err != nil {
			return err
		}

		methods, err := route.GetMethods()
		if err != nil {
			// Route might not have methods specified (e.g., static file server)
			methods = []string{"*"}
		}

		name := route.GetName()

		for _, method := range methods {
			routes = append(routes, RouteInfo{
				Method: method,
				Path:   pathTemplate,
				Name:   name,
			})
		}

		return nil
	})

	return routes, err
}

// LogHTTPRoutes logs all registered HTTP routes dynamically
func LogHTTPRoutes(router *mux.Router) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("HTTP SERVER SETUP")
	logging.Info("------------------------------------------------------------")

	if logging.IsDebugEnabled() {
		routes, err := GetRoutes(router)
		if err != nil {
			logging.Warn("error walking routes: %v", err)
		}

		logging.Debug("  Registered routes (%d total):", len(routes))
		logging.Debug("")

		// Group routes by prefix for cleaner output
		groups := make(map[string][]RouteInfo)
		for _, route := range routes {
			prefix := getRouteGroup(route.Path)
			groups[prefix] = append(groups[prefix], route)
		}

		groupKeys := make([]string, 0, len(groups))
		for k := range groups {
			groupKeys = append(groupKeys, k)
		}
		sort.Strings(groupKeys)

		for _, group := range groupKeys {
			groupRoutes := groups[group]
			if group != "" {
				logging.Debug("  [%s]", group)
			} else {
				logging.Debug("  [root]")
			}

			for _, route := range groupRoutes {
				methodPadded := fmt.Sprintf("%-6s", route.Method)
				logging.Debug("    %s %s", methodPadded, route.Path)
			}
			logging.Debug("")
		}
	}

	logging.Info("  HTTP logging enabled")
}

// getRouteGroup extracts a group name from a route path
func getRouteGroup(path string) string {
	path = strings.TrimPrefix(path, "/")

	parts := strings.SplitN(path, "/", 2)
	if len(parts) == 0 {
		return ""
	}

	first := parts[0]

	if first == "api" && len(parts) > 1 {
		subParts := strings.SplitN(parts[1], "/", 2)
		return "api/" + subParts[0]
	}

	return first
}

// ServerConfig holds configuration for the server startup log
type ServerConfig struct {
	Port            string
	MetricsPort     string
	MetricsEnabled  bool
	StartupDuration time.Duration
}

// LogServerStarted logs successful server start with all endpoint information
func LogServerStarted(config ServerConfig) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SERVER STARTED")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Startup time:    %v", config.StartupDuration)
	logging.Info("")
	logging.Info("  Endpoints:")
	logging.Info("    Application:   http://0.0.0.0:%s", config.Port)
	if config.MetricsEnabled {
		logging.Info("    Metrics:       http://0.0.0.0:%s/metrics", config.MetricsPort)
	} else {
		logging.Info("    Metrics:       DISABLED")
	}
	logging.Info("")
	logging.Info("  Local access:")
	logging.Info("    Application:   http://localhost:%s", config.Port)
	if config.MetricsEnabled {
		logging.Info("    Metrics:       http://localhost:%s/metrics", config.MetricsPort)
	}
	logging.Info("")
	logging.Info("  Press Ctrl+C to stop the server")
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

// LogFatal logs a fatal error and exits
func LogFatal(format string, args ...interface{}) {
	logging.Fatal(format, args...)
}

// Helper functions

func printBanner() {
	banner := `
------------------------------------------------------------
   _____                      __  ______       ____
  / ___/____ ___  __________/ /_/ ____/___ _ / / /__  _______  __
  \__ \/ __ '__ \/ __ '/ ___/ __/ / __/ __ '/ / / _ \/ ___/ / / /
 ___/ / / / / / / /_/ / /  / /_/ /_/ / /_/ / / /  __/ /  / /_/ /
/____/_/ /_/ /_/\__,_/_/   \__/\____/\__,_/_/_/\___/_/   \__, /
                                                        /____/
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

func checkTool(path string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, path, "-version")
	output, err := cmd.Output()
	if err != nil {
		return fmt.Errorf("failed to get version: %w", err)
	}

	lines := strings.Split(string(output), "\n")
	if len(lines) > 0 {
		logging.Debug("  Version: %s", strings.TrimSpace(lines[0]))
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

func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		logging.Warn("Invalid numeric value for %s: %q, using default: %g", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
