package handlers

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"smart-gallery/internal/logging"
	"smart-gallery/internal/topology"

	"github.com/gorilla/mux"
)

type CreateFolderRequest struct {
	ParentKey string `json:"parentKey"`
	Name      string `json:"name"`
}

type RenameFolderRequest struct {
	Name string `json:"name"`
}

// CreateFolder creates a new directory under an existing indexed folder.
func (h *Handlers) CreateFolder(w http.ResponseWriter, r *http.Request) {
	var req CreateFolderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if !validFolderName(req.Name) {
		writeJSONError(w, "Invalid folder name", http.StatusBadRequest)
		return
	}

	parent := h.folderFromKey(w, req.ParentKey)
	if parent == nil {
		return
	}

	newPath := filepath.Join(parent.Path, req.Name)
	if err := os.Mkdir(newPath, 0o755); err != nil {
		if os.IsExist(err) {
			writeJSONError(w, "Folder already exists", http.StatusConflict)
			return
		}
		logging.Error("folder create failed for %s: %v", req.Name, err)
		writeJSONError(w, "Failed to create folder", http.StatusInternalServerError)
		return
	}

	tree := h.indexer.RefreshTree()
	rel, _ := filepath.Rel(h.outputRoot, newPath)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, tree.Node(topology.PathToKey(rel)))
}

// RenameFolder renames a folder on disk and re-keys every indexed record
// beneath it, preserving favorites across the rename.
func (h *Handlers) RenameFolder(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	if h.protectedKeys[key] {
		writeJSONError(w, "Folder is protected", http.StatusForbidden)
		return
	}

	var req RenameFolderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if !validFolderName(req.Name) {
		writeJSONError(w, "Invalid folder name", http.StatusBadRequest)
		return
	}

	node := h.folderFromKey(w, key)
	if node == nil {
		return
	}

	newPath := filepath.Join(filepath.Dir(node.Path), req.Name)
	if newPath == node.Path {
		writeJSONError(w, "Folder already has that name", http.StatusBadRequest)
		return
	}
	if _, err := os.Stat(newPath); err == nil {
		writeJSONError(w, "A folder with that name already exists", http.StatusConflict)
		return
	}

	if err := os.Rename(node.Path, newPath); err != nil {
		logging.Error("folder rename of %s failed: %v", node.DisplayName, err)
		writeJSONError(w, "Failed to rename folder", http.StatusInternalServerError)
		return
	}

	batch, err := h.db.BeginBatch()
	if err == nil {
		var moved int
		if moved, err = h.db.RekeyPrefix(batch, node.Path, newPath); err == nil {
			logging.Info("Folder %s renamed to %s, %d records re-keyed", node.DisplayName, req.Name, moved)
		}
		err = h.db.EndBatch(batch, err)
	}
	if err != nil {
		// Disk rename succeeded; the next pass rebuilds the records under
		// the new prefix (favorites on them are lost).
		logging.Error("folder rename re-key failed: %v", err)
		writeJSONError(w, "Folder renamed but index update failed", http.StatusInternalServerError)
		return
	}

	tree := h.indexer.RefreshTree()
	rel, _ := filepath.Rel(h.outputRoot, newPath)

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, tree.Node(topology.PathToKey(rel)))
}

// DeleteFolder removes an empty folder. Folders holding files or
// subfolders are refused rather than deleted recursively.
func (h *Handlers) DeleteFolder(w http.ResponseWriter, r *http.Request) {
	if !h.requireDeletion(w, r) {
		return
	}

	key := mux.Vars(r)["key"]
	if h.protectedKeys[key] {
		writeJSONError(w, "Folder is protected", http.StatusForbidden)
		return
	}

	node := h.folderFromKey(w, key)
	if node == nil {
		return
	}

	entries, err := os.ReadDir(node.Path)
	if err != nil && !os.IsNotExist(err) {
		writeJSONError(w, "Failed to read folder", http.StatusInternalServerError)
		return
	}
	if len(entries) > 0 {
		writeJSONError(w, "Folder is not empty", http.StatusConflict)
		return
	}

	if err := os.Remove(node.Path); err != nil && !os.IsNotExist(err) {
		logging.Error("folder delete of %s failed: %v", node.DisplayName, err)
		writeJSONError(w, "Failed to delete folder", http.StatusInternalServerError)
		return
	}

	// The folder was empty, but stale records may still reference it.
	if err := h.db.DeleteUnderPath(r.Context(), node.Path); err != nil {
		logging.Warn("folder delete: index cleanup failed: %v", err)
	}

	h.indexer.RefreshTree()
	writeJSONStatus(w, "ok")
}

// validFolderName accepts plain directory names: no separators, no
// traversal, none of the reserved cache names.
func validFolderName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	if strings.ContainsAny(name, `/\`) {
		return false
	}
	if strings.HasPrefix(name, ".") {
		return false
	}
	if name == topology.ThumbnailCacheFolderName || name == topology.SQLiteCacheFolderName {
		return false
	}
	return true
}
