// Package metrics defines the Prometheus instrumentation for the gallery
// server: HTTP, database, and synchronization engine metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smart_gallery_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "smart_gallery_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "smart_gallery_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Database metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smart_gallery_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "smart_gallery_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	DBTransactionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "smart_gallery_db_transaction_duration_seconds",
			Help:    "Database transaction duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
		},
		[]string{"result"}, // "commit", "rollback"
	)
)

// Synchronization engine metrics
var (
	SyncPassesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smart_gallery_sync_passes_total",
			Help: "Total number of reconciliation passes",
		},
		[]string{"mode", "status"}, // mode: "full", "folder"
	)

	SyncPassDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "smart_gallery_sync_pass_duration_seconds",
			Help:    "Reconciliation pass duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 300},
		},
		[]string{"mode"},
	)

	SyncFilesInserted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "smart_gallery_sync_files_inserted_total",
			Help: "Files inserted into the index by reconciliation",
		},
	)

	SyncFilesUpdated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "smart_gallery_sync_files_updated_total",
			Help: "Stale index records refreshed by reconciliation",
		},
	)

	SyncFilesDeleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "smart_gallery_sync_files_deleted_total",
			Help: "Index records removed because the file left the disk",
		},
	)

	SyncIsRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "smart_gallery_sync_running",
			Help: "Whether a full reconciliation pass is currently running (1/0)",
		},
	)

	ProbeFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smart_gallery_probe_soft_failures_total",
			Help: "Per-file probe degradations by field",
		},
		[]string{"field"},
	)

	ThumbnailsGenerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smart_gallery_thumbnails_generated_total",
			Help: "Thumbnails generated by outcome",
		},
		[]string{"status"}, // "ok", "skipped", "failed"
	)
)
