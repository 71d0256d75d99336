package handlers

import (
	"net/http"
	"time"

	"smart-gallery/internal/database"
	"smart-gallery/internal/indexer"
	"smart-gallery/internal/startup"
	"smart-gallery/internal/workflow"

	"github.com/gorilla/mux"
)

type Handlers struct {
	db            *database.Database
	indexer       *indexer.Indexer
	workflows     *workflow.Extractor
	outputRoot    string
	pageSize      int
	deletionGate  *deletionGate
	protectedKeys map[string]bool
	startTime     time.Time
}

func New(db *database.Database, idx *indexer.Indexer, workflows *workflow.Extractor, config *startup.Config) *Handlers {
	return &Handlers{
		db:            db,
		indexer:       idx,
		workflows:     workflows,
		outputRoot:    config.OutputDir,
		pageSize:      config.PageSize,
		deletionGate:  newDeletionGate(config.EnableDeletion, config.DeletionAllowedIPs),
		protectedKeys: config.ProtectedFolderKeys(),
		startTime:     time.Now(),
	}
}

// RegisterRoutes attaches every API route to the router.
func (h *Handlers) RegisterRoutes(r *mux.Router) {
	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/folders", h.GetFolderTree).Methods(http.MethodGet)
	api.HandleFunc("/folders", h.CreateFolder).Methods(http.MethodPost)
	api.HandleFunc("/folders/{key}/files", h.BrowseFolder).Methods(http.MethodGet)
	api.HandleFunc("/folders/{key}/filters", h.GetFilterOptions).Methods(http.MethodGet)
	api.HandleFunc("/folders/{key}/rename", h.RenameFolder).Methods(http.MethodPost)
	api.HandleFunc("/folders/{key}", h.DeleteFolder).Methods(http.MethodDelete)

	api.HandleFunc("/files/serve/{id}", h.ServeFile).Methods(http.MethodGet, http.MethodHead)
	api.HandleFunc("/files/download/{id}", h.DownloadFile).Methods(http.MethodGet)
	api.HandleFunc("/files/thumbnail/{id}", h.GetThumbnail).Methods(http.MethodGet)
	api.HandleFunc("/files/workflow/{id}", h.GetWorkflow).Methods(http.MethodGet)
	api.HandleFunc("/files/{id}/favorite", h.ToggleFavorite).Methods(http.MethodPost)
	api.HandleFunc("/files/favorite", h.SetFavoriteBatch).Methods(http.MethodPost)
	api.HandleFunc("/files/move", h.MoveFiles).Methods(http.MethodPost)
	api.HandleFunc("/files/delete", h.DeleteFiles).Methods(http.MethodPost)
	api.HandleFunc("/files/{id}", h.DeleteFile).Methods(http.MethodDelete)

	api.HandleFunc("/sync", h.TriggerSync).Methods(http.MethodPost)
	api.HandleFunc("/sync", h.GetSyncStatus).Methods(http.MethodGet)
	api.HandleFunc("/version", h.GetVersion).Methods(http.MethodGet)

	r.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/healthz", h.LivenessCheck).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/livez", h.LivenessCheck).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods(http.MethodGet)
}
