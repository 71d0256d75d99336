package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"smart-gallery/internal/database"
	"smart-gallery/internal/indexer"
	"smart-gallery/internal/media"
	"smart-gallery/internal/startup"
	"smart-gallery/internal/topology"
	"smart-gallery/internal/workflow"
)

// testEnv is a full service wired over temp directories: real sqlite
// index, real thumbnail cache, no ffprobe/ffmpeg.
type testEnv struct {
	h      *Handlers
	router *mux.Router
	root   string
	idx    *indexer.Indexer
	db     *database.Database
}

func newTestEnv(t *testing.T, enableDeletion bool) *testEnv {
	t.Helper()
	root := t.TempDir()

	db, _, err := database.Open(context.Background(), filepath.Join(t.TempDir(), "cache.sqlite"))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	prober := media.NewProber("", 16, nil)
	thumbs := media.NewGenerator(filepath.Join(t.TempDir(), "thumbs"), 64, "")
	idx := indexer.New(db, prober, thumbs, root, 0)

	cfg := &startup.Config{
		OutputDir:      root,
		PageSize:       100,
		EnableDeletion: enableDeletion,
	}
	h := New(db, idx, workflow.NewExtractor("", ""), cfg)

	router := mux.NewRouter()
	h.RegisterRoutes(router)
	return &testEnv{h: h, router: router, root: root, idx: idx, db: db}
}

func (e *testEnv) do(t *testing.T, method, target string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	r := httptest.NewRequest(method, target, reader)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, r)
	return w
}

func (e *testEnv) syncAll(t *testing.T) {
	t.Helper()
	if err := e.idx.SyncAll(context.Background()); err != nil {
		t.Fatalf("SyncAll: %v", err)
	}
}

func (e *testEnv) addFile(t *testing.T, rel, content string) string {
	t.Helper()
	path := filepath.Join(e.root, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
}

func folderKey(root, path string) string {
	rel, _ := filepath.Rel(root, path)
	return topology.PathToKey(rel)
}

func TestBrowseFolderPaging(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, false)

	base := time.Now().Add(-time.Hour)
	names := []string{"f1.png", "f2.png", "f3.png", "f4.png", "f5.png"}
	for i, name := range names {
		path := env.addFile(t, name, name)
		mtime := base.Add(time.Duration(i) * time.Minute)
		if err := os.Chtimes(path, mtime, mtime); err != nil {
			t.Fatal(err)
		}
	}

	var pages [][]database.FileRecord
	target := "/api/folders/" + topology.RootKey + "/files?pageSize=2"
	for {
		w := env.do(t, http.MethodGet, target, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("browse: status %d: %s", w.Code, w.Body.String())
		}
		var page BrowseResponse
		decodeBody(t, w, &page)
		if page.TotalCount != 5 {
			t.Fatalf("TotalCount = %d, want 5", page.TotalCount)
		}
		pages = append(pages, page.Files)
		if page.NextToken == "" {
			break
		}
		target = "/api/folders/" + topology.RootKey + "/files?token=" + page.NextToken
	}

	if len(pages) != 3 {
		t.Fatalf("got %d pages, want 3", len(pages))
	}
	if len(pages[0]) != 2 || len(pages[1]) != 2 || len(pages[2]) != 1 {
		t.Errorf("page sizes = %d/%d/%d, want 2/2/1", len(pages[0]), len(pages[1]), len(pages[2]))
	}
	// Default order is newest first.
	if pages[0][0].Name != "f5.png" {
		t.Errorf("first file = %s, want f5.png", pages[0][0].Name)
	}
	if pages[2][0].Name != "f1.png" {
		t.Errorf("last file = %s, want f1.png", pages[2][0].Name)
	}
}

func TestBrowseFolderErrors(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, false)

	if w := env.do(t, http.MethodGet, "/api/folders/!!!/files", nil); w.Code != http.StatusBadRequest {
		t.Errorf("undecodable key: status %d, want 400", w.Code)
	}

	unknown := topology.PathToKey("nonexistent")
	if w := env.do(t, http.MethodGet, "/api/folders/"+unknown+"/files", nil); w.Code != http.StatusNotFound {
		t.Errorf("unknown folder: status %d, want 404", w.Code)
	}

	target := "/api/folders/" + topology.RootKey + "/files?token=not-a-token"
	if w := env.do(t, http.MethodGet, target, nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad token: status %d, want 400", w.Code)
	}
}

func TestToggleFavoriteEndpoint(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, false)
	path := env.addFile(t, "pic.png", "pic")
	env.syncAll(t)
	id := database.Identity(path)

	w := env.do(t, http.MethodPost, "/api/files/"+id+"/favorite", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	var state map[string]bool
	decodeBody(t, w, &state)
	if !state["isFavorite"] {
		t.Error("first toggle: isFavorite = false, want true")
	}

	w = env.do(t, http.MethodPost, "/api/files/"+id+"/favorite", nil)
	decodeBody(t, w, &state)
	if state["isFavorite"] {
		t.Error("second toggle: isFavorite = true, want false")
	}

	missing := database.Identity("/nowhere")
	if w := env.do(t, http.MethodPost, "/api/files/"+missing+"/favorite", nil); w.Code != http.StatusNotFound {
		t.Errorf("unknown id: status %d, want 404", w.Code)
	}
}

func TestMoveFilesPartialSuccess(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, false)

	moving := env.addFile(t, "a/x.png", "x")
	colliding := env.addFile(t, "a/y.png", "y from a")
	env.addFile(t, "b/y.png", "y already in b")
	env.syncAll(t)

	movingID := database.Identity(moving)
	collidingID := database.Identity(colliding)
	if err := env.db.SetFavorite(context.Background(), movingID, true); err != nil {
		t.Fatal(err)
	}

	w := env.do(t, http.MethodPost, "/api/files/move", MoveRequest{
		IDs:            []string{movingID, collidingID},
		DestinationKey: folderKey(env.root, filepath.Join(env.root, "b")),
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}

	var resp MoveResponse
	decodeBody(t, w, &resp)
	if resp.Status != "partial_success" {
		t.Errorf("Status = %q, want partial_success", resp.Status)
	}
	if len(resp.Moved) != 1 || resp.Moved[0].ID != movingID {
		t.Fatalf("Moved = %+v, want only x.png", resp.Moved)
	}
	if len(resp.Failed) != 1 || resp.Failed[0].ID != collidingID {
		t.Errorf("Failed = %+v, want only the collision", resp.Failed)
	}

	newPath := filepath.Join(env.root, "b", "x.png")
	if _, err := os.Stat(moving); !os.IsNotExist(err) {
		t.Error("moved file still at old path")
	}
	if _, err := os.Stat(newPath); err != nil {
		t.Errorf("moved file missing at destination: %v", err)
	}

	// The index is re-keyed, not re-created, so the favorite survives.
	rec, err := env.db.GetFile(context.Background(), database.Identity(newPath))
	if err != nil {
		t.Fatalf("re-keyed record lookup: %v", err)
	}
	if !rec.IsFavorite {
		t.Error("favorite lost across move")
	}
	if _, err := env.db.GetFile(context.Background(), movingID); err == nil {
		t.Error("old id still resolvable after re-key")
	}
}

func TestDeleteFilesGated(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, false)
	path := env.addFile(t, "doomed.png", "bytes")
	env.syncAll(t)

	w := env.do(t, http.MethodPost, "/api/files/delete", DeleteRequest{IDs: []string{database.Identity(path)}})
	if w.Code != http.StatusForbidden {
		t.Errorf("deletion disabled: status %d, want 403", w.Code)
	}
	if _, err := os.Stat(path); err != nil {
		t.Error("file touched while deletion is disabled")
	}
}

func TestDeleteFiles(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, true)
	path := env.addFile(t, "doomed.png", "bytes")
	env.syncAll(t)
	id := database.Identity(path)

	w := env.do(t, http.MethodPost, "/api/files/delete", DeleteRequest{IDs: []string{id}})
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	var resp DeleteResponse
	decodeBody(t, w, &resp)
	if resp.Status != "ok" || len(resp.Deleted) != 1 {
		t.Errorf("response = %+v, want one ok deletion", resp)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("file still on disk")
	}
	if _, err := env.db.GetFile(context.Background(), id); err == nil {
		t.Error("record still in the index")
	}
}

func TestFolderLifecycle(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, true)
	ctx := context.Background()

	// Create.
	w := env.do(t, http.MethodPost, "/api/folders", CreateFolderRequest{ParentKey: topology.RootKey, Name: "renders"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create: status %d: %s", w.Code, w.Body.String())
	}
	created := filepath.Join(env.root, "renders")
	if info, err := os.Stat(created); err != nil || !info.IsDir() {
		t.Fatalf("created folder missing on disk: %v", err)
	}

	if w := env.do(t, http.MethodPost, "/api/folders", CreateFolderRequest{ParentKey: topology.RootKey, Name: "renders"}); w.Code != http.StatusConflict {
		t.Errorf("duplicate create: status %d, want 409", w.Code)
	}

	// Rename re-keys indexed records and keeps favorites.
	inside := env.addFile(t, "renders/kept.png", "kept")
	env.syncAll(t)
	if err := env.db.SetFavorite(ctx, database.Identity(inside), true); err != nil {
		t.Fatal(err)
	}

	key := folderKey(env.root, created)
	w = env.do(t, http.MethodPost, "/api/folders/"+key+"/rename", RenameFolderRequest{Name: "archive"})
	if w.Code != http.StatusOK {
		t.Fatalf("rename: status %d: %s", w.Code, w.Body.String())
	}
	renamedFile := filepath.Join(env.root, "archive", "kept.png")
	rec, err := env.db.GetFile(ctx, database.Identity(renamedFile))
	if err != nil {
		t.Fatalf("record not re-keyed under new folder: %v", err)
	}
	if !rec.IsFavorite {
		t.Error("favorite lost across folder rename")
	}

	// The root is always protected.
	if w := env.do(t, http.MethodPost, "/api/folders/"+topology.RootKey+"/rename", RenameFolderRequest{Name: "other"}); w.Code != http.StatusForbidden {
		t.Errorf("rename root: status %d, want 403", w.Code)
	}

	// Delete refuses non-empty folders.
	archiveKey := folderKey(env.root, filepath.Join(env.root, "archive"))
	if w := env.do(t, http.MethodDelete, "/api/folders/"+archiveKey, nil); w.Code != http.StatusConflict {
		t.Errorf("delete non-empty: status %d, want 409", w.Code)
	}

	if err := os.Remove(renamedFile); err != nil {
		t.Fatal(err)
	}
	if w := env.do(t, http.MethodDelete, "/api/folders/"+archiveKey, nil); w.Code != http.StatusOK {
		t.Errorf("delete empty: status %d: %s", w.Code, w.Body.String())
	}
	if _, err := os.Stat(filepath.Join(env.root, "archive")); !os.IsNotExist(err) {
		t.Error("folder still on disk after delete")
	}
}

func TestValidFolderName(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   string
		want bool
	}{
		{name: "plain", in: "renders", want: true},
		{name: "spaces", in: "my renders", want: true},
		{name: "empty", in: "", want: false},
		{name: "dot", in: ".", want: false},
		{name: "dotdot", in: "..", want: false},
		{name: "hidden", in: ".secret", want: false},
		{name: "slash", in: "a/b", want: false},
		{name: "backslash", in: `a\b`, want: false},
		{name: "thumbnail cache", in: topology.ThumbnailCacheFolderName, want: false},
		{name: "sqlite cache", in: topology.SQLiteCacheFolderName, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := validFolderName(tt.in); got != tt.want {
				t.Errorf("validFolderName(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestServeAndDownloadFile(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, false)
	path := env.addFile(t, "clip.png", "image bytes")
	env.syncAll(t)
	id := database.Identity(path)

	w := env.do(t, http.MethodGet, "/api/files/serve/"+id, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("serve: status %d", w.Code)
	}
	if w.Body.String() != "image bytes" {
		t.Errorf("serve body = %q", w.Body.String())
	}

	w = env.do(t, http.MethodGet, "/api/files/download/"+id, nil)
	if got := w.Header().Get("Content-Disposition"); got != `attachment; filename="clip.png"` {
		t.Errorf("Content-Disposition = %q", got)
	}

	missing := database.Identity("/nowhere")
	if w := env.do(t, http.MethodGet, "/api/files/serve/"+missing, nil); w.Code != http.StatusNotFound {
		t.Errorf("unknown id: status %d, want 404", w.Code)
	}

	// Indexed but deleted on disk since the last pass.
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	if w := env.do(t, http.MethodGet, "/api/files/serve/"+id, nil); w.Code != http.StatusNotFound {
		t.Errorf("vanished file: status %d, want 404", w.Code)
	}
}

func TestGetThumbnailForAudio(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, false)
	path := env.addFile(t, "track.mp3", "audio bytes")
	env.syncAll(t)

	w := env.do(t, http.MethodGet, "/api/files/thumbnail/"+database.Identity(path), nil)
	if w.Code != http.StatusUnsupportedMediaType {
		t.Errorf("audio thumbnail: status %d, want 415", w.Code)
	}
}

func TestHealthAndReadiness(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, false)
	env.addFile(t, "a.png", "a")

	if w := env.do(t, http.MethodGet, "/readyz", nil); w.Code != http.StatusServiceUnavailable {
		t.Errorf("before first pass: readyz status %d, want 503", w.Code)
	}
	w := env.do(t, http.MethodGet, "/health", nil)
	var health HealthResponse
	decodeBody(t, w, &health)
	if health.Status != statusStarting {
		t.Errorf("before first pass: status %q, want %q", health.Status, statusStarting)
	}

	env.syncAll(t)

	if w := env.do(t, http.MethodGet, "/readyz", nil); w.Code != http.StatusOK {
		t.Errorf("after first pass: readyz status %d, want 200", w.Code)
	}
	w = env.do(t, http.MethodGet, "/health", nil)
	decodeBody(t, w, &health)
	if health.Status != statusHealthy {
		t.Errorf("after first pass: status %q, want %q", health.Status, statusHealthy)
	}
	if health.TotalFiles != 1 {
		t.Errorf("TotalFiles = %d, want 1", health.TotalFiles)
	}
}

func TestGetFolderTree(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, false)
	env.addFile(t, "images/a.png", "a")
	env.addFile(t, "videos/b.mp4", "b")

	w := env.do(t, http.MethodGet, "/api/folders", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	var tree FolderTreeResponse
	decodeBody(t, w, &tree)
	if tree.FolderNum != 3 {
		t.Errorf("FolderNum = %d, want root plus two children", tree.FolderNum)
	}
	if tree.Root == nil || tree.Root.Key != topology.RootKey {
		t.Error("root node missing from response")
	}
}

func TestGetFilterOptions(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, false)
	env.addFile(t, "sdxl_0001.png", "a")
	env.addFile(t, "sdxl_0002.webp", "b")
	env.addFile(t, "flux_0001.png", "c")
	env.addFile(t, "noprefix.png", "d")
	env.syncAll(t)

	w := env.do(t, http.MethodGet, "/api/folders/"+topology.RootKey+"/filters", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	var opts FilterOptionsResponse
	decodeBody(t, w, &opts)

	if len(opts.Extensions) != 2 || opts.Extensions[0] != "png" || opts.Extensions[1] != "webp" {
		t.Errorf("Extensions = %v, want [png webp]", opts.Extensions)
	}
	if len(opts.Prefixes) != 2 || opts.Prefixes[0] != "flux" || opts.Prefixes[1] != "sdxl" {
		t.Errorf("Prefixes = %v, want [flux sdxl]", opts.Prefixes)
	}
}

func TestIsSubPath(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		parent string
		child  string
		want   bool
	}{
		{name: "direct child", parent: "/out", child: "/out/a.png", want: true},
		{name: "nested child", parent: "/out", child: "/out/a/b.png", want: true},
		{name: "parent itself", parent: "/out", child: "/out", want: true},
		{name: "sibling sharing prefix", parent: "/out", child: "/output/a.png", want: false},
		{name: "unrelated", parent: "/out", child: "/elsewhere/a.png", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := isSubPath(tt.parent, tt.child); got != tt.want {
				t.Errorf("isSubPath(%q, %q) = %v, want %v", tt.parent, tt.child, got, tt.want)
			}
		})
	}
}
