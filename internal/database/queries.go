package database

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"smart-gallery/internal/mediatypes"
)

// escapeLike escapes SQL LIKE wildcards in a literal prefix so that folder
// paths containing % or _ match exactly.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	return strings.ReplaceAll(s, `_`, `\_`)
}

// folderScope returns the WHERE fragment restricting to a folder's direct
// children. The second NOT LIKE clause is the dirname guard: prefix
// matching alone would also catch files in nested folders.
func folderScope(folderPath string) (string, []interface{}) {
	sep := string(filepath.Separator)
	prefix := escapeLike(folderPath + sep)
	return `path LIKE ? ESCAPE '\' AND path NOT LIKE ? ESCAPE '\'`,
		[]interface{}{prefix + "%", prefix + "%" + escapeLike(sep) + "%"}
}

// buildFolderQuery assembles the WHERE clause for QueryFolder/CountFolder.
func buildFolderQuery(folderPath string, opts QueryOptions) (string, []interface{}) {
	scope, args := folderScope(folderPath)
	conditions := []string{scope}

	if term := strings.TrimSpace(opts.Search); term != "" {
		conditions = append(conditions, "name LIKE ? ESCAPE '\\'")
		args = append(args, "%"+escapeLike(term)+"%")
	}
	if opts.FavoritesOnly {
		conditions = append(conditions, "is_favorite = 1")
	}

	if len(opts.Prefixes) > 0 {
		var sub []string
		for _, prefix := range opts.Prefixes {
			prefix = strings.TrimSpace(prefix)
			if prefix == "" {
				continue
			}
			sub = append(sub, "name LIKE ? ESCAPE '\\'")
			args = append(args, escapeLike(prefix)+"\\_%")
		}
		if len(sub) > 0 {
			conditions = append(conditions, "("+strings.Join(sub, " OR ")+")")
		}
	}

	if len(opts.Extensions) > 0 {
		var sub []string
		for _, ext := range opts.Extensions {
			ext = strings.ToLower(strings.TrimPrefix(ext, "."))
			if ext == "" {
				continue
			}
			sub = append(sub, "name LIKE ? ESCAPE '\\'")
			args = append(args, "%."+escapeLike(ext))
		}
		if len(sub) > 0 {
			conditions = append(conditions, "("+strings.Join(sub, " OR ")+")")
		}
	}

	return strings.Join(conditions, " AND "), args
}

// QueryFolder returns the records directly inside folderPath, filtered and
// ordered by modification time per opts.
func (d *Database) QueryFolder(ctx context.Context, folderPath string, opts QueryOptions) ([]FileRecord, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("query_folder", start, err) }()

	where, args := buildFolderQuery(folderPath, opts)

	direction := "DESC"
	if opts.Sort == mediatypes.SortAsc {
		direction = "ASC"
	}

	query := fmt.Sprintf(`
		SELECT id, path, mtime, name, type, duration, dimensions, has_workflow, is_favorite
		FROM files WHERE %s ORDER BY mtime %s, rowid`, where, direction)
	if opts.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, opts.Limit, opts.Offset)
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	var rows *sql.Rows
	rows, err = d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("folder query failed: %w", err)
	}
	defer rows.Close()

	var records []FileRecord
	for rows.Next() {
		rec, scanErr := scanRecord(rows)
		if scanErr != nil {
			err = scanErr
			return nil, fmt.Errorf("folder query scan failed: %w", scanErr)
		}
		records = append(records, rec)
	}
	err = rows.Err()
	return records, err
}

// CountFolder returns how many records match the folder query, ignoring
// pagination.
func (d *Database) CountFolder(ctx context.Context, folderPath string, opts QueryOptions) (int, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("count_folder", start, err) }()

	where, args := buildFolderQuery(folderPath, opts)

	d.mu.RLock()
	defer d.mu.RUnlock()

	var count int
	err = d.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT COUNT(*) FROM files WHERE %s", where), args...).Scan(&count)
	return count, err
}

// GetFile returns one record by identity.
func (d *Database) GetFile(ctx context.Context, id string) (*FileRecord, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_file", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	row := d.db.QueryRowContext(ctx, `
		SELECT id, path, mtime, name, type, duration, dimensions, has_workflow, is_favorite
		FROM files WHERE id = ?`, id)

	rec, err := scanRecord(row)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// GetFiles returns the records for a set of identities. Unknown identities
// are silently absent from the result.
func (d *Database) GetFiles(ctx context.Context, ids []string) ([]FileRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	start := time.Now()
	var err error
	defer func() { recordQuery("get_files", start, err) }()

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	var rows *sql.Rows
	rows, err = d.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, path, mtime, name, type, duration, dimensions, has_workflow, is_favorite
		FROM files WHERE id IN (%s)`, placeholders), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []FileRecord
	for rows.Next() {
		rec, scanErr := scanRecord(rows)
		if scanErr != nil {
			err = scanErr
			return nil, scanErr
		}
		records = append(records, rec)
	}
	err = rows.Err()
	return records, err
}

// CountAll returns the total number of indexed files.
func (d *Database) CountAll(ctx context.Context) (int, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("count_all", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	var count int
	err = d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM files").Scan(&count)
	return count, err
}

// ListPaths returns every indexed path with its stored modification time.
// This is the "disk of record" snapshot a full reconciliation pass diffs
// the live tree against.
func (d *Database) ListPaths(ctx context.Context) (map[string]int64, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("list_paths", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	var rows *sql.Rows
	rows, err = d.db.QueryContext(ctx, "SELECT path, mtime FROM files")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	paths := make(map[string]int64)
	for rows.Next() {
		var path string
		var mtime int64
		if scanErr := rows.Scan(&path, &mtime); scanErr != nil {
			err = scanErr
			return nil, scanErr
		}
		paths[path] = mtime
	}
	err = rows.Err()
	return paths, err
}

// ListFolderPaths is ListPaths restricted to one folder's direct children.
func (d *Database) ListFolderPaths(ctx context.Context, folderPath string) (map[string]int64, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("list_folder_paths", start, err) }()

	scope, args := folderScope(folderPath)

	d.mu.RLock()
	defer d.mu.RUnlock()

	var rows *sql.Rows
	rows, err = d.db.QueryContext(ctx,
		fmt.Sprintf("SELECT path, mtime FROM files WHERE %s", scope), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	paths := make(map[string]int64)
	for rows.Next() {
		var path string
		var mtime int64
		if scanErr := rows.Scan(&path, &mtime); scanErr != nil {
			err = scanErr
			return nil, scanErr
		}
		paths[path] = mtime
	}
	err = rows.Err()
	return paths, err
}

// scanner abstracts *sql.Row and *sql.Rows for scanRecord.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(s scanner) (FileRecord, error) {
	var rec FileRecord
	var mtime int64
	var hasWorkflow, isFavorite int

	if err := s.Scan(
		&rec.ID, &rec.Path, &mtime, &rec.Name, &rec.Type,
		&rec.Duration, &rec.Dimensions, &hasWorkflow, &isFavorite,
	); err != nil {
		return FileRecord{}, err
	}

	rec.ModTime = time.Unix(mtime, 0)
	rec.HasWorkflow = hasWorkflow != 0
	rec.IsFavorite = isFavorite != 0
	return rec, nil
}
