package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"smart-gallery/internal/logging"
	"smart-gallery/internal/metrics"
)

// SchemaVersion is stamped into PRAGMA user_version. On mismatch at
// startup the files table is dropped and repopulated by a full
// reconciliation pass. The index is a cache, so the rebuild is acceptable;
// it does cost the favorite flags, which is why the version only changes
// when the table shape does.
const SchemaVersion = 2

// Default timeout for single database operations
const defaultTimeout = 5 * time.Second

// Database manages the SQLite-backed file index.
type Database struct {
	db     *sql.DB
	dbPath string
	mu     sync.RWMutex
}

// Batch is one open index transaction. It carries its own start time for
// the transaction duration metric, so concurrent batches (scoped passes
// for different folders, mutating requests) never share state.
type Batch struct {
	tx    *sql.Tx
	start time.Time
}

// Open opens (or creates) the index at dbPath. The second return reports
// whether the schema was rebuilt because of a version mismatch; the caller
// must follow a rebuild with a full reconciliation pass.
func Open(ctx context.Context, dbPath string) (*Database, bool, error) {
	logging.Info("Index store path: %s", dbPath)

	// WAL keeps readers unblocked while a reconciliation pass commits;
	// busy_timeout rides out the short writer lock instead of failing.
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=10000&_busy_timeout=5000", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, false, fmt.Errorf("failed to open index store: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close index store after ping failure: %v", closeErr)
		}
		return nil, false, fmt.Errorf("failed to connect to index store: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(time.Hour)

	d := &Database{db: db, dbPath: dbPath}

	rebuilt, err := d.initialize(ctx)
	if err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close index store after schema init failure: %v", closeErr)
		}
		return nil, false, fmt.Errorf("failed to initialize index schema: %w", err)
	}

	return d, rebuilt, nil
}

// initialize checks the schema version stamp and creates the files table,
// dropping it first when the stamp is stale.
func (d *Database) initialize(ctx context.Context) (bool, error) {
	var stored int
	if err := d.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&stored); err != nil {
		return false, fmt.Errorf("failed to read schema version: %w", err)
	}

	rebuilt := false
	if stored != 0 && stored != SchemaVersion {
		logging.Info("Index schema version outdated (%d != %d), rebuilding", stored, SchemaVersion)
		if _, err := d.db.ExecContext(ctx, "DROP TABLE IF EXISTS files"); err != nil {
			return false, fmt.Errorf("failed to drop outdated files table: %w", err)
		}
		rebuilt = true
	}

	schema := `
	CREATE TABLE IF NOT EXISTS files (
		id TEXT PRIMARY KEY,
		path TEXT NOT NULL UNIQUE,
		mtime INTEGER NOT NULL,
		name TEXT NOT NULL,
		type TEXT NOT NULL,
		duration TEXT NOT NULL DEFAULT '',
		dimensions TEXT NOT NULL DEFAULT '',
		has_workflow INTEGER NOT NULL DEFAULT 0,
		is_favorite INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_files_mtime ON files(mtime);
	CREATE INDEX IF NOT EXISTS idx_files_favorite ON files(is_favorite);
	CREATE INDEX IF NOT EXISTS idx_files_name ON files(name COLLATE NOCASE);
	`
	if _, err := d.db.ExecContext(ctx, schema); err != nil {
		return false, err
	}

	if _, err := d.db.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", SchemaVersion)); err != nil {
		return false, fmt.Errorf("failed to stamp schema version: %w", err)
	}

	return rebuilt, nil
}

// Close closes the index store.
func (d *Database) Close() error {
	return d.db.Close()
}

// BeginBatch starts the transaction for one reconciliation pass or one
// mutating request. The caller must finish it with EndBatch.
func (d *Database) BeginBatch() (*Batch, error) {
	d.mu.Lock()
	start := time.Now()

	// Background context: the transaction's lifetime is owned by EndBatch,
	// not by a timeout.
	tx, err := d.db.BeginTx(context.Background(), nil)
	d.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return &Batch{tx: tx, start: start}, nil
}

// EndBatch commits the batch, or rolls it back when err is non-nil. On
// rollback failure both errors are reported.
func (d *Database) EndBatch(b *Batch, err error) error {
	duration := time.Since(b.start).Seconds()

	if err != nil {
		metrics.DBTransactionDuration.WithLabelValues("rollback").Observe(duration)
		if rbErr := b.tx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback also failed: %w", rbErr))
		}
		return err
	}

	metrics.DBTransactionDuration.WithLabelValues("commit").Observe(duration)
	return b.tx.Commit()
}

// recordQuery records database query metrics.
func recordQuery(operation string, start time.Time, err error) {
	duration := time.Since(start).Seconds()
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.DBQueryTotal.WithLabelValues(operation, status).Inc()
	metrics.DBQueryDuration.WithLabelValues(operation).Observe(duration)
}
