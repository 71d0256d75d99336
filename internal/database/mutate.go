package database

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// UpsertFile inserts or refreshes one record inside a reconciliation
// transaction. On conflict every probe-derived field is replaced but
// is_favorite is left alone: favorites are owned by user actions, and a
// reconciliation update must never reset them. A fresh insert starts
// unfavorited.
func (d *Database) UpsertFile(b *Batch, rec *FileRecord) error {
	query := `
	INSERT INTO files (id, path, mtime, name, type, duration, dimensions, has_workflow)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(path) DO UPDATE SET
		id = excluded.id,
		mtime = excluded.mtime,
		name = excluded.name,
		type = excluded.type,
		duration = excluded.duration,
		dimensions = excluded.dimensions,
		has_workflow = excluded.has_workflow
	`
	_, err := b.tx.ExecContext(context.Background(), query,
		rec.ID,
		rec.Path,
		rec.ModTime.Unix(),
		rec.Name,
		rec.Type,
		rec.Duration,
		rec.Dimensions,
		boolToInt(rec.HasWorkflow),
	)
	return err
}

// DeletePaths removes the records for paths that left the disk, inside a
// reconciliation transaction.
func (d *Database) DeletePaths(b *Batch, paths []string) (int64, error) {
	if len(paths) == 0 {
		return 0, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(paths)), ",")
	args := make([]interface{}, len(paths))
	for i, p := range paths {
		args[i] = p
	}

	result, err := b.tx.ExecContext(context.Background(),
		fmt.Sprintf("DELETE FROM files WHERE path IN (%s)", placeholders), args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// SetFavorite sets the favorite flag on one record.
func (d *Database) SetFavorite(ctx context.Context, id string, favorite bool) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("set_favorite", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	var result sql.Result
	result, err = d.db.ExecContext(ctx, "UPDATE files SET is_favorite = ? WHERE id = ?", boolToInt(favorite), id)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		err = sql.ErrNoRows
		return err
	}
	return nil
}

// SetFavoriteBatch sets the favorite flag on many records at once.
func (d *Database) SetFavoriteBatch(ctx context.Context, ids []string, favorite bool) error {
	if len(ids) == 0 {
		return nil
	}

	start := time.Now()
	var err error
	defer func() { recordQuery("set_favorite_batch", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]interface{}, 0, len(ids)+1)
	args = append(args, boolToInt(favorite))
	for _, id := range ids {
		args = append(args, id)
	}

	_, err = d.db.ExecContext(ctx,
		fmt.Sprintf("UPDATE files SET is_favorite = ? WHERE id IN (%s)", placeholders), args...)
	return err
}

// ToggleFavorite flips the favorite flag and returns the new state.
func (d *Database) ToggleFavorite(ctx context.Context, id string) (bool, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("toggle_favorite", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	var current int
	err = d.db.QueryRowContext(ctx, "SELECT is_favorite FROM files WHERE id = ?", id).Scan(&current)
	if err != nil {
		return false, err
	}

	next := 1 - current
	_, err = d.db.ExecContext(ctx, "UPDATE files SET is_favorite = ? WHERE id = ?", next, id)
	return next == 1, err
}

// Rekey re-keys a record after a move or rename: new identity, new path,
// new name, everything else (favorite flag included) preserved. This is
// the first-class move path; letting reconciliation see a move instead
// would delete-and-insert and drop the favorite.
func (d *Database) Rekey(b *Batch, oldID, newPath string) error {
	_, err := b.tx.ExecContext(context.Background(),
		"UPDATE files SET id = ?, path = ?, name = ? WHERE id = ?",
		Identity(newPath), newPath, filepath.Base(newPath), oldID)
	return err
}

// RekeyPrefix re-keys every record under oldDir after a folder rename.
func (d *Database) RekeyPrefix(b *Batch, oldDir, newDir string) (int, error) {
	sep := string(filepath.Separator)
	rows, err := b.tx.QueryContext(context.Background(),
		"SELECT id, path FROM files WHERE path LIKE ? ESCAPE '\\'", escapeLike(oldDir+sep)+"%")
	if err != nil {
		return 0, err
	}

	type rename struct{ oldID, newPath string }
	var renames []rename
	for rows.Next() {
		var id, path string
		if err := rows.Scan(&id, &path); err != nil {
			rows.Close()
			return 0, err
		}
		renames = append(renames, rename{oldID: id, newPath: newDir + strings.TrimPrefix(path, oldDir)})
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, err
	}
	rows.Close()

	for _, r := range renames {
		if err := d.Rekey(b, r.oldID, r.newPath); err != nil {
			return 0, err
		}
	}
	return len(renames), nil
}

// DeleteByIDs removes records by identity, used by the user-facing delete
// endpoints after the files are gone from disk.
func (d *Database) DeleteByIDs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	start := time.Now()
	var err error
	defer func() { recordQuery("delete_by_ids", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	_, err = d.db.ExecContext(ctx,
		fmt.Sprintf("DELETE FROM files WHERE id IN (%s)", placeholders), args...)
	return err
}

// DeleteUnderPath removes every record under a folder, used when the
// folder itself is deleted.
func (d *Database) DeleteUnderPath(ctx context.Context, dir string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("delete_under_path", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	sep := string(filepath.Separator)
	_, err = d.db.ExecContext(ctx,
		"DELETE FROM files WHERE path LIKE ? ESCAPE '\\'", escapeLike(dir+sep)+"%")
	return err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
