package indexer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"smart-gallery/internal/database"
	"smart-gallery/internal/logging"
	"smart-gallery/internal/media"
	"smart-gallery/internal/mediatypes"
	"smart-gallery/internal/metrics"
	"smart-gallery/internal/topology"
	"smart-gallery/internal/workers"
)

// maxProbeWorkers caps the probe fan-out regardless of CPU count; probing
// is also disk-bound and too many workers just thrash the media volume.
const maxProbeWorkers = 8

// Indexer is the synchronization engine.
type Indexer struct {
	db           *database.Database
	prober       *media.Prober
	thumbs       *media.Generator
	resolver     *topology.Resolver
	outputRoot   string
	syncInterval time.Duration
	workerLimit  int

	stopChan     chan struct{}
	stopOnce     sync.Once
	folderGroup  singleflight.Group
	syncMu       sync.Mutex
	isSyncing    bool
	lastSyncTime time.Time

	treeMu sync.RWMutex
	tree   *topology.Tree
}

// New creates an Indexer over the given collaborators. syncInterval
// controls the periodic full pass; zero or negative disables it.
func New(db *database.Database, prober *media.Prober, thumbs *media.Generator, outputRoot string, syncInterval time.Duration) *Indexer {
	idx := &Indexer{
		db:           db,
		prober:       prober,
		thumbs:       thumbs,
		resolver:     topology.NewResolver(outputRoot),
		outputRoot:   outputRoot,
		syncInterval: syncInterval,
		workerLimit:  workers.ForMixed(maxProbeWorkers),
		stopChan:     make(chan struct{}),
	}
	idx.tree = idx.resolver.Resolve()
	return idx
}

// Start launches the initial full pass and the periodic re-sync loop in
// the background.
func (idx *Indexer) Start() {
	go func() {
		logging.Info("Starting initial full reconciliation in background...")
		if err := idx.SyncAll(context.Background()); err != nil {
			logging.Error("Initial reconciliation error: %v", err)
		}
	}()

	if idx.syncInterval > 0 {
		go idx.periodicSync()
	}
}

// Stop stops the background loops. Safe to call more than once.
func (idx *Indexer) Stop() {
	idx.stopOnce.Do(func() { close(idx.stopChan) })
}

func (idx *Indexer) periodicSync() {
	ticker := time.NewTicker(idx.syncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			logging.Debug("Periodic full reconciliation triggered")
			if err := idx.SyncAll(context.Background()); err != nil {
				logging.Error("periodic reconciliation failed: %v", err)
			}
		case <-idx.stopChan:
			return
		}
	}
}

// Tree returns the most recently resolved folder topology.
func (idx *Indexer) Tree() *topology.Tree {
	idx.treeMu.RLock()
	defer idx.treeMu.RUnlock()
	return idx.tree
}

// RefreshTree re-resolves the folder topology from disk. The tree is
// rebuilt wholesale, never patched, so it always reflects one walk.
func (idx *Indexer) RefreshTree() *topology.Tree {
	tree := idx.resolver.Resolve()
	idx.treeMu.Lock()
	idx.tree = tree
	idx.treeMu.Unlock()
	return tree
}

// IsSyncing reports whether a full pass is currently running.
func (idx *Indexer) IsSyncing() bool {
	idx.syncMu.Lock()
	defer idx.syncMu.Unlock()
	return idx.isSyncing
}

// LastSyncTime returns when the last full pass completed.
func (idx *Indexer) LastSyncTime() time.Time {
	idx.syncMu.Lock()
	defer idx.syncMu.Unlock()
	return idx.lastSyncTime
}

// TriggerSync starts a full pass in the background, for the manual
// re-sync endpoint.
func (idx *Indexer) TriggerSync() {
	go func() {
		if err := idx.SyncAll(context.Background()); err != nil {
			logging.Error("manually triggered reconciliation failed: %v", err)
		}
	}()
}

// SyncAll runs one full-tree reconciliation pass. Idempotent: with no disk
// changes, a second run commits an empty delta. Concurrent calls coalesce
// into one pass.
func (idx *Indexer) SyncAll(ctx context.Context) error {
	if !idx.tryStartSync() {
		logging.Info("Full reconciliation already in progress, skipping")
		return nil
	}
	defer idx.finishSync()

	metrics.SyncIsRunning.Set(1)
	defer metrics.SyncIsRunning.Set(0)

	start := time.Now()
	var err error
	defer func() {
		status := "success"
		if err != nil {
			status = "error"
		}
		metrics.SyncPassesTotal.WithLabelValues("full", status).Inc()
		metrics.SyncPassDuration.WithLabelValues("full").Observe(time.Since(start).Seconds())
	}()

	logging.Info("Starting full reconciliation pass...")
	tree := idx.RefreshTree()

	stored, err := idx.db.ListPaths(ctx)
	if err != nil {
		return fmt.Errorf("failed to list indexed paths: %w", err)
	}

	live := make(map[string]time.Time)
	for _, folder := range tree.Folders() {
		files, listErr := listFolderFiles(folder.Path)
		if listErr != nil {
			// A folder that vanished between the walk and the listing is
			// handled by the delete side of the delta.
			logging.Warn("reconcile: cannot list %s: %v", folder.Path, listErr)
			continue
		}
		for path, mtime := range files {
			live[path] = mtime
		}
	}

	d := computeDelta(live, stored)
	if err = idx.commitDelta(ctx, d); err != nil {
		return err
	}

	idx.syncMu.Lock()
	idx.lastSyncTime = time.Now()
	idx.syncMu.Unlock()

	logging.Info("Full reconciliation complete: %d inserted, %d updated, %d deleted in %v",
		len(d.inserts), len(d.updates), len(d.deletes), time.Since(start))
	return nil
}

// SyncFolder runs one reconciliation pass scoped to folderPath's direct
// children. It runs synchronously, since the caller serves the folder view
// right after, and concurrent calls for the same folder share one pass.
func (idx *Indexer) SyncFolder(ctx context.Context, folderPath string) error {
	_, err, shared := idx.folderGroup.Do(folderPath, func() (interface{}, error) {
		return nil, idx.syncFolderOnce(ctx, folderPath)
	})
	if shared {
		logging.Debug("reconcile: coalesced concurrent sync of %s", folderPath)
	}
	return err
}

func (idx *Indexer) syncFolderOnce(ctx context.Context, folderPath string) error {
	start := time.Now()
	var err error
	defer func() {
		status := "success"
		if err != nil {
			status = "error"
		}
		metrics.SyncPassesTotal.WithLabelValues("folder", status).Inc()
		metrics.SyncPassDuration.WithLabelValues("folder").Observe(time.Since(start).Seconds())
	}()

	live, err := listFolderFiles(folderPath)
	if err != nil {
		if os.IsNotExist(err) {
			// Folder removed since the topology was resolved: every record
			// under it is a delete.
			live, err = map[string]time.Time{}, nil
		} else {
			return fmt.Errorf("failed to list %s: %w", folderPath, err)
		}
	}

	stored, err := idx.db.ListFolderPaths(ctx, folderPath)
	if err != nil {
		return fmt.Errorf("failed to query indexed paths for %s: %w", folderPath, err)
	}

	d := computeDelta(live, stored)
	if d.empty() {
		return nil
	}

	if err = idx.commitDelta(ctx, d); err != nil {
		return err
	}

	logging.Info("Folder reconciliation of %s: %d inserted, %d updated, %d deleted in %v",
		filepath.Base(folderPath), len(d.inserts), len(d.updates), len(d.deletes), time.Since(start))
	return nil
}

// RepairThumbnail returns the cached thumbnail path for a record,
// generating it first when the cache has none. An empty return means the
// record has no thumbnail representation.
func (idx *Indexer) RepairThumbnail(rec *database.FileRecord) string {
	key := database.ThumbKey(rec.Path, rec.ModTime)
	if existing := idx.thumbs.Find(key); existing != "" {
		return existing
	}
	logging.Warn("Thumbnail missing for %s, generating on demand", rec.Name)
	return idx.thumbs.Generate(rec.Path, key, rec.Type)
}

// RemoveThumbnail deletes the cached thumbnail for a record, if any.
// Called when the file itself is deleted so the cache does not collect
// orphans.
func (idx *Indexer) RemoveThumbnail(rec *database.FileRecord) {
	key := database.ThumbKey(rec.Path, rec.ModTime)
	if existing := idx.thumbs.Find(key); existing != "" {
		if err := os.Remove(existing); err != nil {
			logging.Warn("failed to remove thumbnail for %s: %v", rec.Name, err)
		}
	}
}

func (idx *Indexer) tryStartSync() bool {
	idx.syncMu.Lock()
	defer idx.syncMu.Unlock()
	if idx.isSyncing {
		return false
	}
	idx.isSyncing = true
	return true
}

func (idx *Indexer) finishSync() {
	idx.syncMu.Lock()
	defer idx.syncMu.Unlock()
	idx.isSyncing = false
}

// listFolderFiles lists the direct (non-recursive) files of one folder
// with their modification times, excluding reserved extensions.
func listFolderFiles(folderPath string) (map[string]time.Time, error) {
	entries, err := os.ReadDir(folderPath)
	if err != nil {
		return nil, err
	}

	files := make(map[string]time.Time, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !mediatypes.IsIndexable(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			logging.Warn("reconcile: cannot stat %s: %v", entry.Name(), err)
			continue
		}
		files[filepath.Join(folderPath, entry.Name())] = info.ModTime()
	}
	return files, nil
}
