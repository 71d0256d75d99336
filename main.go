package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"smart-gallery/internal/database"
	"smart-gallery/internal/handlers"
	"smart-gallery/internal/indexer"
	"smart-gallery/internal/logging"
	"smart-gallery/internal/media"
	"smart-gallery/internal/middleware"
	"smart-gallery/internal/startup"
	"smart-gallery/internal/workflow"

	"github.com/gorilla/mux"
)

func main() {
	startTime := time.Now()

	// Load configuration
	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}

	if config.LogFile != "" {
		logging.InitOutput(config.LogFile)
	}

	// libvips backs animated WebP thumbnails; everything else degrades
	// gracefully when it is unavailable.
	media.InitVips()
	defer media.ShutdownVips()

	// Initialize the index store
	dbStart := time.Now()
	db, rebuilt, err := database.Open(context.Background(), config.DatabasePath)
	if err != nil {
		startup.LogFatal("Failed to initialize database: %v", err)
	}
	defer db.Close()
	startup.LogDatabaseInit(time.Since(dbStart), rebuilt)

	// Media inspection collaborators
	workflows := workflow.NewExtractor(config.FFprobePath, config.SidecarDir)
	prober := media.NewProber(config.FFprobePath, config.WebPAnimatedFPS, workflows)
	thumbs := media.NewGenerator(config.ThumbnailDir, config.ThumbnailWidth, config.FFmpegPath)

	// Initialize the synchronization engine
	startup.LogIndexerInit(config.SyncInterval)
	idx := indexer.New(db, prober, thumbs, config.OutputDir, config.SyncInterval)
	idx.Start()
	startup.LogIndexerStarted()

	// Initialize handlers and router
	h := handlers.New(db, idx, workflows, config)
	router := mux.NewRouter()
	h.RegisterRoutes(router)

	startup.LogHTTPRoutes(router)

	// Middleware chain: metrics innermost so it sees final status codes,
	// compression outermost so logged sizes are the bytes on the wire.
	var handler http.Handler = router
	if config.MetricsEnabled {
		handler = middleware.Metrics(middleware.DefaultMetricsConfig())(handler)
	}
	handler = middleware.Logger(middleware.DefaultLoggingConfig())(handler)
	handler = middleware.Compression(middleware.DefaultCompressionConfig())(handler)

	srv := &http.Server{
		Addr:         ":" + config.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	var metricsSrv *http.Server
	if config.MetricsEnabled {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", h.MetricsHandler())
		metricsSrv = &http.Server{
			Addr:        ":" + config.MetricsPort,
			Handler:     metricsMux,
			ReadTimeout: 15 * time.Second,
		}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != http.ErrServerClosed {
				logging.Error("Metrics server error: %v", err)
			}
		}()
	}

	go handleShutdown(srv, metricsSrv, idx)

	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsPort:     config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		startup.LogFatal("Server error: %v", err)
	}
}

func handleShutdown(srv, metricsSrv *http.Server, idx *indexer.Indexer) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	startup.LogShutdownStep("Stopping indexer")
	idx.Stop()
	startup.LogShutdownStepComplete("Indexer stopped")

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	if metricsSrv != nil {
		startup.LogShutdownStep("Shutting down metrics server")
		if err := metricsSrv.Shutdown(ctx); err != nil {
			logging.Warn("Metrics server shutdown error: %v", err)
		} else {
			startup.LogShutdownStepComplete("Metrics server stopped")
		}
	}

	startup.LogShutdownComplete()
}
