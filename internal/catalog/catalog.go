// Package catalog records completed transcode bundles in SQLite so operators
// can review past runs. It is a results ledger only: in-flight jobs live in
// memory and never touch the database.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"abrpack/internal/config"
	"abrpack/internal/services"
)

// Record describes one completed bundle.
type Record struct {
	ID              int64
	RequestID       string
	SourcePath      string
	DestDir         string
	MasterPath      string
	DurationSeconds float64
	// Rungs lists the ladder labels in order, comma separated.
	Rungs     string
	CreatedAt time.Time
}

// Store persists bundle records in SQLite.
type Store struct {
	db   *sql.DB
	path string
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

const schema = `
CREATE TABLE IF NOT EXISTS bundles (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    request_id TEXT NOT NULL,
    source_path TEXT NOT NULL,
    dest_dir TEXT NOT NULL,
    master_path TEXT NOT NULL,
    duration_seconds REAL NOT NULL,
    rungs TEXT NOT NULL,
    created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_bundles_created_at ON bundles(created_at);
`

// Open initializes or connects to the catalog database under the log
// directory.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(filepath.Join(cfg.Paths.LogDir, "catalog.db"))
}

// OpenPath connects to the catalog database at an explicit path.
func OpenPath(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize catalog schema: %w", err)
	}
	return store, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Add inserts a completed bundle and returns its row ID.
func (s *Store) Add(ctx context.Context, record Record) (int64, error) {
	ctx = ensureContext(ctx)
	if strings.TrimSpace(record.SourcePath) == "" {
		return 0, errors.New("source path required")
	}
	if record.RequestID == "" {
		if id, ok := services.RequestIDFromContext(ctx); ok {
			record.RequestID = id
		}
	}
	createdAt := record.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	var res sql.Result
	err := retryOnBusy(ctx, func() error {
		var execErr error
		res, execErr = s.db.ExecContext(ctx,
			`INSERT INTO bundles (request_id, source_path, dest_dir, master_path, duration_seconds, rungs, created_at)
             VALUES (?, ?, ?, ?, ?, ?, ?)`,
			record.RequestID, record.SourcePath, record.DestDir, record.MasterPath,
			record.DurationSeconds, record.Rungs, createdAt.Format(time.RFC3339Nano))
		return execErr
	})
	if err != nil {
		return 0, fmt.Errorf("insert bundle: %w", err)
	}
	return res.LastInsertId()
}

// Recent returns the most recent bundles, newest first. A non-positive limit
// defaults to 20.
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	ctx = ensureContext(ctx)
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, request_id, source_path, dest_dir, master_path, duration_seconds, rungs, created_at
         FROM bundles ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query bundles: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			record  Record
			created string
		)
		if err := rows.Scan(&record.ID, &record.RequestID, &record.SourcePath, &record.DestDir,
			&record.MasterPath, &record.DurationSeconds, &record.Rungs, &created); err != nil {
			return nil, fmt.Errorf("scan bundle: %w", err)
		}
		if ts, parseErr := time.Parse(time.RFC3339Nano, created); parseErr == nil {
			record.CreatedAt = ts
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}
