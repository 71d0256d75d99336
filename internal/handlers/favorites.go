package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
)

type FavoriteBatchRequest struct {
	IDs      []string `json:"ids"`
	Favorite bool     `json:"favorite"`
}

// ToggleFavorite flips the favorite flag for one file and returns the
// new state.
func (h *Handlers) ToggleFavorite(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	favorite, err := h.db.ToggleFavorite(r.Context(), id)
	if errors.Is(err, sql.ErrNoRows) {
		writeJSONError(w, "File not found", http.StatusNotFound)
		return
	}
	if err != nil {
		writeJSONError(w, "Failed to toggle favorite", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]bool{"isFavorite": favorite})
}

// SetFavoriteBatch sets the favorite flag on a set of files at once.
func (h *Handlers) SetFavoriteBatch(w http.ResponseWriter, r *http.Request) {
	var req FavoriteBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.IDs) == 0 {
		writeJSONError(w, "ids is required", http.StatusBadRequest)
		return
	}

	if err := h.db.SetFavoriteBatch(r.Context(), req.IDs, req.Favorite); err != nil {
		writeJSONError(w, "Failed to update favorites", http.StatusInternalServerError)
		return
	}

	writeJSONStatus(w, "ok")
}
