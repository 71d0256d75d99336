package handlers

import (
	"net/http"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"smart-gallery/internal/database"
	"smart-gallery/internal/logging"
	"smart-gallery/internal/topology"

	"github.com/gorilla/mux"
)

// FolderTreeResponse is the full folder topology plus sync state.
type FolderTreeResponse struct {
	Root      *topology.FolderNode            `json:"root"`
	Folders   map[string]*topology.FolderNode `json:"folders"`
	Syncing   bool                            `json:"syncing"`
	LastSync  string                          `json:"lastSync,omitempty"`
	FolderNum int                             `json:"folderCount"`
}

// BrowseResponse is one page of a folder's files.
type BrowseResponse struct {
	Folder     *topology.FolderNode   `json:"folder"`
	Breadcrumb []*topology.FolderNode `json:"breadcrumb"`
	Files      []database.FileRecord  `json:"files"`
	TotalCount int                    `json:"totalCount"`
	PageSize   int                    `json:"pageSize"`
	NextToken  string                 `json:"nextToken,omitempty"`
}

// FilterOptionsResponse lists the filterable facets present in a folder.
type FilterOptionsResponse struct {
	Extensions []string `json:"extensions"`
	Prefixes   []string `json:"prefixes"`
}

// GetFolderTree returns the current folder topology, refreshed from disk.
func (h *Handlers) GetFolderTree(w http.ResponseWriter, _ *http.Request) {
	tree := h.indexer.RefreshTree()

	folders := make(map[string]*topology.FolderNode, tree.Len())
	for _, node := range tree.Folders() {
		folders[node.Key] = node
	}

	response := FolderTreeResponse{
		Root:      tree.Root(),
		Folders:   folders,
		Syncing:   h.indexer.IsSyncing(),
		FolderNum: tree.Len(),
	}
	if last := h.indexer.LastSyncTime(); !last.IsZero() {
		response.LastSync = last.Format("2006-01-02T15:04:05Z07:00")
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, response)
}

// BrowseFolder serves one page of a folder's files. The folder is
// reconciled against disk first, so the page reflects the current files
// even when the periodic pass has not caught up yet.
func (h *Handlers) BrowseFolder(w http.ResponseWriter, r *http.Request) {
	node := h.folderFromKey(w, mux.Vars(r)["key"])
	if node == nil {
		return
	}

	var token pageToken
	if raw := r.URL.Query().Get("token"); raw != "" {
		var err error
		if token, err = decodePageToken(raw); err != nil {
			writeJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
	} else {
		token = h.firstPageToken(r)
	}

	if err := h.indexer.SyncFolder(r.Context(), node.Path); err != nil {
		// Serve the pre-pass index state; a pass failure never blocks reads.
		logging.Warn("browse: reconciliation of %s failed: %v", node.DisplayName, err)
	}

	opts := token.queryOptions()
	files, err := h.db.QueryFolder(r.Context(), node.Path, opts)
	if err != nil {
		logging.Error("browse: query failed for %s: %v", node.DisplayName, err)
		writeJSONError(w, "Failed to query folder", http.StatusInternalServerError)
		return
	}
	total, err := h.db.CountFolder(r.Context(), node.Path, opts)
	if err != nil {
		logging.Error("browse: count failed for %s: %v", node.DisplayName, err)
		writeJSONError(w, "Failed to query folder", http.StatusInternalServerError)
		return
	}

	if files == nil {
		files = []database.FileRecord{}
	}

	response := BrowseResponse{
		Folder:     node,
		Breadcrumb: h.indexer.Tree().Breadcrumb(node.Key),
		Files:      files,
		TotalCount: total,
		PageSize:   token.PageSize,
	}
	if token.Offset+len(files) < total {
		next := token
		next.Offset += len(files)
		response.NextToken = next.encode()
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, response)
}

// GetFilterOptions returns the distinct extensions and generator name
// prefixes present in a folder, for building filter UIs.
func (h *Handlers) GetFilterOptions(w http.ResponseWriter, r *http.Request) {
	node := h.folderFromKey(w, mux.Vars(r)["key"])
	if node == nil {
		return
	}

	files, err := h.db.QueryFolder(r.Context(), node.Path, database.QueryOptions{})
	if err != nil {
		writeJSONError(w, "Failed to query folder", http.StatusInternalServerError)
		return
	}

	extSet := make(map[string]bool)
	prefixSet := make(map[string]bool)
	for _, f := range files {
		if ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(f.Name)), "."); ext != "" {
			extSet[ext] = true
		}
		// Generator prefix convention: everything before the first underscore.
		if idx := strings.Index(f.Name, "_"); idx > 0 {
			prefixSet[f.Name[:idx]] = true
		}
	}

	response := FilterOptionsResponse{
		Extensions: sortedKeys(extSet),
		Prefixes:   sortedKeys(prefixSet),
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, response)
}

// folderFromKey resolves a folder key to its tree node, writing the error
// response itself when the key is unknown. A nil return means the
// response is already written.
func (h *Handlers) folderFromKey(w http.ResponseWriter, key string) *topology.FolderNode {
	if _, ok := topology.KeyToPath(key); !ok {
		writeJSONError(w, "Invalid folder key", http.StatusBadRequest)
		return nil
	}

	node := h.indexer.Tree().Node(key)
	if node == nil {
		// The tree may predate a folder created moments ago.
		node = h.indexer.RefreshTree().Node(key)
	}
	if node == nil {
		writeJSONError(w, "Folder not found", http.StatusNotFound)
		return nil
	}
	return node
}

func (h *Handlers) firstPageToken(r *http.Request) pageToken {
	q := r.URL.Query()

	token := pageToken{
		Search:    q.Get("search"),
		Favorites: q.Get("favorites") == "true",
		Sort:      q.Get("sort"),
		PageSize:  h.pageSize,
	}
	if exts := q.Get("extensions"); exts != "" {
		token.Exts = splitList(exts)
	}
	if prefixes := q.Get("prefixes"); prefixes != "" {
		token.Prefixes = splitList(prefixes)
	}
	if n, err := strconv.Atoi(q.Get("pageSize")); err == nil && n > 0 {
		token.PageSize = n
	}
	return token
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
