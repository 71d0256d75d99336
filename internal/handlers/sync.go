package handlers

import (
	"net/http"
)

// TriggerSync starts a manual full reconciliation pass in the background.
func (h *Handlers) TriggerSync(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if h.indexer.IsSyncing() {
		writeJSON(w, map[string]string{
			"status":  "already_running",
			"message": "A full reconciliation is already in progress",
		})
		return
	}

	h.indexer.TriggerSync()
	writeJSON(w, map[string]string{
		"status":  "started",
		"message": "Full reconciliation started",
	})
}

// GetSyncStatus reports whether a full pass is running and when the last
// one finished.
func (h *Handlers) GetSyncStatus(w http.ResponseWriter, _ *http.Request) {
	response := map[string]interface{}{
		"syncing": h.indexer.IsSyncing(),
	}
	if last := h.indexer.LastSyncTime(); !last.IsZero() {
		response["lastSync"] = last.Format("2006-01-02T15:04:05Z07:00")
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, response)
}
