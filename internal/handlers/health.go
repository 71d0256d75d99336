package handlers

import (
	"net/http"
	"runtime"
	"time"

	"smart-gallery/internal/startup"
)

const (
	statusHealthy  = "healthy"
	statusStarting = "starting"
)

// HealthResponse contains the health check response
type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Uptime   string `json:"uptime"`
	Syncing  bool   `json:"syncing"`
	LastSync string `json:"lastSync,omitempty"`

	TotalFiles   int `json:"totalFiles"`
	TotalFolders int `json:"totalFolders"`

	// System info
	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`
}

// HealthCheck returns the health status of the service. The service is
// "starting" until the first full pass has completed; it serves reads the
// whole time, so starting is not a failure state.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	lastSync := h.indexer.LastSyncTime()

	response := HealthResponse{
		Version:      startup.Version,
		Uptime:       time.Since(h.startTime).Round(time.Second).String(),
		Syncing:      h.indexer.IsSyncing(),
		TotalFolders: h.indexer.Tree().Len(),
		GoVersion:    runtime.Version(),
		NumCPU:       runtime.NumCPU(),
		NumGoroutine: runtime.NumGoroutine(),
	}

	if total, err := h.db.CountAll(r.Context()); err == nil {
		response.TotalFiles = total
	}

	if lastSync.IsZero() {
		response.Status = statusStarting
	} else {
		response.Status = statusHealthy
		response.LastSync = lastSync.Format("2006-01-02T15:04:05Z07:00")
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, response)
}

// LivenessCheck is a simple liveness probe (always returns 200 if server is running)
func (h *Handlers) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	// For HEAD requests, only send headers (no body)
	if r.Method != http.MethodHead {
		writeJSON(w, map[string]string{
			"status": "alive",
		})
	}
}

// ReadinessCheck returns 200 once the first full reconciliation pass has
// completed and the index reflects the disk.
func (h *Handlers) ReadinessCheck(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if !h.indexer.LastSyncTime().IsZero() {
		w.WriteHeader(http.StatusOK)
		writeJSON(w, map[string]string{
			"status": "ready",
		})
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
		writeJSON(w, map[string]string{
			"status": "not_ready",
		})
	}
}
