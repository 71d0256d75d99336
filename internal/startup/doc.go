// Package startup handles application initialization and configuration.
//
// It loads configuration from environment variables, resolves and
// validates the gallery directories, discovers the external ffprobe and
// ffmpeg tools, and provides structured startup/shutdown logging so the
// boot sequence reads as one coherent report.
//
// Configuration is environment-only. Every knob has a default that works
// for a ComfyUI installation with the gallery running next to the output
// directory:
//
//	GALLERY_BASE_OUTPUT_PATH     media root to index (default ./output)
//	GALLERY_BASE_INPUT_PATH      input root for workflow sidecars (default ./input)
//	GALLERY_SERVER_PORT          HTTP listen port (default 8189)
//	GALLERY_THUMBNAIL_WIDTH      thumbnail width in pixels (default 300)
//	GALLERY_WEBP_ANIMATED_FPS    assumed frame rate for animated WebP (default 16)
//	GALLERY_PAGE_SIZE            default page size for folder views (default 100)
//	GALLERY_FFPROBE_MANUAL_PATH  explicit ffprobe binary path (default: search PATH)
//	GALLERY_SPECIAL_FOLDERS      comma-separated protected folder names
//	GALLERY_ENABLE_DELETION      allow destructive endpoints (default true)
//	GALLERY_DELETION_ALLOWED_IPS comma-separated IPs/CIDRs allowed to delete
//	SYNC_INTERVAL                periodic full reconciliation interval (default 30m)
//	SYNC_WORKERS                 probe pool size override
//	LOG_LEVEL                    DEBUG, INFO, WARN, ERROR (default INFO)
//	LOG_FILE                     also log to this rotating file
//	METRICS_ENABLED              expose Prometheus metrics (default true)
//	METRICS_PORT                 metrics listen port (default 9090)
package startup
