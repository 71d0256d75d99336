package handlers

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"

	"smart-gallery/internal/database"
	"smart-gallery/internal/logging"

	"github.com/gorilla/mux"
)

type MoveRequest struct {
	IDs            []string `json:"ids"`
	DestinationKey string   `json:"destinationKey"`
}

// MoveResult reports the outcome of one file in a batch move.
type MoveResult struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	NewID string `json:"newId,omitempty"`
	Error string `json:"error,omitempty"`
}

// MoveResponse is the result of a batch move. Status is "ok" when every
// file moved, "partial_success" when some did not.
type MoveResponse struct {
	Status string       `json:"status"`
	Moved  []MoveResult `json:"moved"`
	Failed []MoveResult `json:"failed,omitempty"`
}

type DeleteRequest struct {
	IDs []string `json:"ids"`
}

// DeleteResponse reports how many records were removed.
type DeleteResponse struct {
	Status  string   `json:"status"`
	Deleted []string `json:"deleted"`
	Failed  []string `json:"failed,omitempty"`
}

// MoveFiles moves a batch of files into another indexed folder. Each file
// moves independently: a name collision or rename failure on one file
// does not abort the rest, it is reported per file instead. Favorites
// survive the move because the index is re-keyed, not re-created.
func (h *Handlers) MoveFiles(w http.ResponseWriter, r *http.Request) {
	var req MoveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.IDs) == 0 {
		writeJSONError(w, "ids is required", http.StatusBadRequest)
		return
	}

	dest := h.folderFromKey(w, req.DestinationKey)
	if dest == nil {
		return
	}

	records, err := h.db.GetFiles(r.Context(), req.IDs)
	if err != nil {
		writeJSONError(w, "Failed to look up files", http.StatusInternalServerError)
		return
	}
	found := make(map[string]*database.FileRecord, len(records))
	for i := range records {
		found[records[i].ID] = &records[i]
	}

	var response MoveResponse
	type renamed struct {
		oldID   string
		newPath string
	}
	var committed []renamed

	for _, id := range req.IDs {
		rec, ok := found[id]
		if !ok {
			response.Failed = append(response.Failed, MoveResult{ID: id, Error: "not indexed"})
			continue
		}

		newPath := filepath.Join(dest.Path, rec.Name)
		if newPath == rec.Path {
			response.Failed = append(response.Failed, MoveResult{ID: id, Name: rec.Name, Error: "already in destination"})
			continue
		}
		if _, err := os.Stat(newPath); err == nil {
			response.Failed = append(response.Failed, MoveResult{ID: id, Name: rec.Name, Error: "name already exists in destination"})
			continue
		}
		if err := os.Rename(rec.Path, newPath); err != nil {
			logging.Warn("move: rename of %s failed: %v", rec.Name, err)
			response.Failed = append(response.Failed, MoveResult{ID: id, Name: rec.Name, Error: "rename failed"})
			continue
		}

		committed = append(committed, renamed{oldID: id, newPath: newPath})
		response.Moved = append(response.Moved, MoveResult{
			ID:    id,
			Name:  rec.Name,
			NewID: database.Identity(newPath),
		})
	}

	if len(committed) > 0 {
		batch, err := h.db.BeginBatch()
		if err == nil {
			for _, m := range committed {
				if err = h.db.Rekey(batch, m.oldID, m.newPath); err != nil {
					break
				}
			}
			err = h.db.EndBatch(batch, err)
		}
		if err != nil {
			// Disk moves succeeded; the next reconciliation pass repairs the
			// index (the favorite flags on re-keyed rows are what is lost).
			logging.Error("move: index re-key failed: %v", err)
			writeJSONError(w, "Files moved but index update failed", http.StatusInternalServerError)
			return
		}
	}

	response.Status = "ok"
	if len(response.Failed) > 0 {
		response.Status = "partial_success"
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, response)
}

// DeleteFiles removes a batch of files from disk and from the index. The
// index row is removed even when the disk file is already gone, so a
// half-deleted state self-heals.
func (h *Handlers) DeleteFiles(w http.ResponseWriter, r *http.Request) {
	if !h.requireDeletion(w, r) {
		return
	}

	var req DeleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.IDs) == 0 {
		writeJSONError(w, "ids is required", http.StatusBadRequest)
		return
	}

	h.deleteByIDs(w, r, req.IDs)
}

// DeleteFile removes a single file from disk and from the index.
func (h *Handlers) DeleteFile(w http.ResponseWriter, r *http.Request) {
	if !h.requireDeletion(w, r) {
		return
	}
	h.deleteByIDs(w, r, []string{mux.Vars(r)["id"]})
}

func (h *Handlers) deleteByIDs(w http.ResponseWriter, r *http.Request, ids []string) {
	records, err := h.db.GetFiles(r.Context(), ids)
	if err != nil {
		writeJSONError(w, "Failed to look up files", http.StatusInternalServerError)
		return
	}

	var response DeleteResponse
	var cleanup []string

	for i := range records {
		rec := &records[i]
		if err := os.Remove(rec.Path); err != nil && !os.IsNotExist(err) {
			logging.Warn("delete: removing %s failed: %v", rec.Name, err)
			response.Failed = append(response.Failed, rec.ID)
			continue
		}
		h.indexer.RemoveThumbnail(rec)
		cleanup = append(cleanup, rec.ID)
		response.Deleted = append(response.Deleted, rec.ID)
	}

	if len(cleanup) > 0 {
		if err := h.db.DeleteByIDs(r.Context(), cleanup); err != nil {
			logging.Error("delete: index cleanup failed: %v", err)
			writeJSONError(w, "Files deleted but index update failed", http.StatusInternalServerError)
			return
		}
	}

	response.Status = "ok"
	if len(response.Failed) > 0 {
		response.Status = "partial_success"
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, response)
}
