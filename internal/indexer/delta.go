package indexer

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"smart-gallery/internal/database"
	"smart-gallery/internal/logging"
	"smart-gallery/internal/metrics"
)

// delta is the difference between the live disk state and the stored
// index for one reconciliation scope.
type delta struct {
	// inserts are paths present on disk but not in the index.
	inserts map[string]time.Time
	// updates are paths present in both whose disk mtime is newer than
	// the indexed one.
	updates map[string]time.Time
	// deletes are indexed paths no longer present on disk.
	deletes []string
}

func (d delta) empty() bool {
	return len(d.inserts) == 0 && len(d.updates) == 0 && len(d.deletes) == 0
}

// computeDelta diffs the live file set against the stored index. stored
// maps path to indexed mtime in unix seconds, matching the column the
// index keeps. Equal or older disk mtimes leave a record untouched.
func computeDelta(live map[string]time.Time, stored map[string]int64) delta {
	d := delta{
		inserts: make(map[string]time.Time),
		updates: make(map[string]time.Time),
	}

	for path, mtime := range live {
		indexed, ok := stored[path]
		switch {
		case !ok:
			d.inserts[path] = mtime
		case mtime.Unix() > indexed:
			d.updates[path] = mtime
		}
	}

	for path := range stored {
		if _, ok := live[path]; !ok {
			d.deletes = append(d.deletes, path)
		}
	}
	sort.Strings(d.deletes)
	return d
}

// commitDelta applies one delta to the index. Probing and thumbnail
// generation fan out across a bounded worker pool; the database writes
// happen afterwards in a single transaction so a pass is all-or-nothing.
func (idx *Indexer) commitDelta(ctx context.Context, d delta) error {
	if d.empty() {
		return nil
	}

	records, err := idx.probeChanged(ctx, d)
	if err != nil {
		return err
	}

	batch, err := idx.db.BeginBatch()
	if err != nil {
		return fmt.Errorf("failed to begin reconcile transaction: %w", err)
	}

	for _, rec := range records {
		if err = idx.db.UpsertFile(batch, rec); err != nil {
			err = fmt.Errorf("failed to upsert %s: %w", rec.Name, err)
			break
		}
	}
	if err == nil && len(d.deletes) > 0 {
		_, err = idx.db.DeletePaths(batch, d.deletes)
	}
	if err = idx.db.EndBatch(batch, err); err != nil {
		return err
	}

	metrics.SyncFilesInserted.Add(float64(len(d.inserts)))
	metrics.SyncFilesUpdated.Add(float64(len(d.updates)))
	metrics.SyncFilesDeleted.Add(float64(len(d.deletes)))
	return nil
}

// probeChanged builds full records for every inserted and updated path,
// probing in parallel. A thumbnail is generated only when the cache has
// none under the path+mtime key, so unchanged files cost nothing.
func (idx *Indexer) probeChanged(ctx context.Context, d delta) ([]*database.FileRecord, error) {
	changed := make(map[string]time.Time, len(d.inserts)+len(d.updates))
	for path, mtime := range d.inserts {
		changed[path] = mtime
	}
	for path, mtime := range d.updates {
		changed[path] = mtime
	}
	if len(changed) == 0 {
		return nil, nil
	}

	records := make([]*database.FileRecord, 0, len(changed))
	results := make(chan *database.FileRecord, len(changed))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(idx.workerLimit)
	for path, mtime := range changed {
		path, mtime := path, mtime
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results <- idx.probeOne(path, mtime)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("probe pool aborted: %w", err)
	}
	close(results)

	for rec := range results {
		records = append(records, rec)
	}
	// Deterministic commit order keeps passes reproducible under test.
	sort.Slice(records, func(i, j int) bool { return records[i].Path < records[j].Path })
	return records, nil
}

func (idx *Indexer) probeOne(path string, mtime time.Time) *database.FileRecord {
	meta := idx.prober.Probe(path)
	if len(meta.Degraded) > 0 {
		logging.Debug("probe of %s degraded: %v", filepath.Base(path), meta.Degraded)
	}

	if meta.Type.HasThumbnail() {
		key := database.ThumbKey(path, mtime)
		if idx.thumbs.Find(key) == "" {
			idx.thumbs.Generate(path, key, meta.Type)
		}
	}

	return &database.FileRecord{
		ID:          database.Identity(path),
		Path:        path,
		ModTime:     mtime,
		Name:        filepath.Base(path),
		Type:        meta.Type,
		Duration:    meta.Duration,
		Dimensions:  meta.Dimensions,
		HasWorkflow: meta.HasWorkflow,
	}
}
