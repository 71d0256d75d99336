package handlers

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"smart-gallery/internal/database"
	"smart-gallery/internal/logging"

	"github.com/gorilla/mux"
)

// fileFromID loads the record for a file ID, writing the error response
// itself when the record is missing. A nil return means the response is
// already written.
func (h *Handlers) fileFromID(w http.ResponseWriter, r *http.Request) *database.FileRecord {
	id := mux.Vars(r)["id"]

	rec, err := h.db.GetFile(r.Context(), id)
	if errors.Is(err, sql.ErrNoRows) {
		writeJSONError(w, "File not found", http.StatusNotFound)
		return nil
	}
	if err != nil {
		logging.Error("file lookup failed for %s: %v", id, err)
		writeJSONError(w, "Failed to look up file", http.StatusInternalServerError)
		return nil
	}

	// Records only ever hold paths under the output root, but a crafted
	// database is cheap to defend against.
	if !isSubPath(h.outputRoot, rec.Path) {
		writeJSONError(w, "Invalid path", http.StatusBadRequest)
		return nil
	}
	return rec
}

// ServeFile streams the media file itself, honoring range requests.
func (h *Handlers) ServeFile(w http.ResponseWriter, r *http.Request) {
	rec := h.fileFromID(w, r)
	if rec == nil {
		return
	}

	if _, err := os.Stat(rec.Path); os.IsNotExist(err) {
		// Deleted on disk since the last pass; the next sync drops the record.
		writeJSONError(w, "File not found", http.StatusNotFound)
		return
	}

	http.ServeFile(w, r, rec.Path)
}

// DownloadFile serves the file as an attachment.
func (h *Handlers) DownloadFile(w http.ResponseWriter, r *http.Request) {
	rec := h.fileFromID(w, r)
	if rec == nil {
		return
	}

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", rec.Name))
	http.ServeFile(w, r, rec.Path)
}

// GetThumbnail serves the cached thumbnail for a file, generating it on
// demand when the cache entry is missing.
func (h *Handlers) GetThumbnail(w http.ResponseWriter, r *http.Request) {
	rec := h.fileFromID(w, r)
	if rec == nil {
		return
	}

	if !rec.Type.HasThumbnail() {
		writeJSONError(w, "File type has no thumbnail", http.StatusUnsupportedMediaType)
		return
	}

	thumbPath := h.indexer.RepairThumbnail(rec)
	if thumbPath == "" {
		writeJSONError(w, "Thumbnail unavailable", http.StatusNotFound)
		return
	}

	// Keys embed the mtime, so a cached entry never goes stale.
	w.Header().Set("Cache-Control", "public, max-age=86400, immutable")
	http.ServeFile(w, r, thumbPath)
}

// GetWorkflow serves the generation workflow JSON embedded in (or logged
// alongside) a media file.
func (h *Handlers) GetWorkflow(w http.ResponseWriter, r *http.Request) {
	rec := h.fileFromID(w, r)
	if rec == nil {
		return
	}

	payload, ok := h.workflows.Extract(rec.Path)
	if !ok {
		writeJSONError(w, "No workflow found", http.StatusNotFound)
		return
	}

	base := rec.Name[:len(rec.Name)-len(filepath.Ext(rec.Name))]
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", base+"_workflow.json"))
	if _, err := w.Write([]byte(payload)); err != nil {
		logging.Error("failed to write workflow response: %v", err)
	}
}

func isSubPath(parent, child string) bool {
	parent, _ = filepath.Abs(parent)
	child, _ = filepath.Abs(child)
	// A bare prefix match would let /out claim /output; the separator
	// anchors the boundary.
	return child == parent || strings.HasPrefix(child, parent+string(filepath.Separator))
}
