package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// FileName is the database file created inside the data directory.
const FileName = "backlinkscan.db"

// ErrNotFound is returned by lookups that require a row to exist.
var ErrNotFound = errors.New("record not found")

// LinkDB provides SQLite-based storage for scans, observations and the
// backlink index.
type LinkDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures LinkDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging for better concurrent performance.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a LinkDB in the specified directory.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*LinkDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (run 'backlinkscan init' or scan a domain first)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// mode=rw refuses to create a new file; mode=rwc allows it.
	// Pragmas in the DSN apply to every pooled connection.
	dsn := dbPath + "?mode=rw&_pragma=foreign_keys(1)"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc&_pragma=foreign_keys(1)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	ldb := &LinkDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}
	if err := ldb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return ldb, nil
}

// Path returns the database file path.
func (ldb *LinkDB) Path() string {
	return ldb.dbPath
}

// Close closes the database connection.
func (ldb *LinkDB) Close() error {
	return ldb.db.Close()
}

// Ping verifies the connection is usable. Used by the health endpoint.
func (ldb *LinkDB) Ping(ctx context.Context) error {
	return ldb.db.PingContext(ctx)
}

// createTables creates the database schema if it doesn't exist.
func (ldb *LinkDB) createTables() error {
	schema := `
	-- Targets are the domains users scan and monitor
	CREATE TABLE IF NOT EXISTS targets (
		domain TEXT PRIMARY KEY,
		created_at TEXT NOT NULL,
		last_indexed_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_targets_last_indexed ON targets(last_indexed_at);

	-- Scans are immutable crawl executions
	CREATE TABLE IF NOT EXISTS scans (
		id TEXT PRIMARY KEY,
		domain TEXT NOT NULL,
		user_id TEXT NOT NULL DEFAULT '',
		mode TEXT NOT NULL,
		created_at TEXT NOT NULL,
		total_links INTEGER NOT NULL DEFAULT 0,
		ref_domains INTEGER NOT NULL DEFAULT 0,
		pages_crawled INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_scans_domain_created ON scans(domain, created_at);

	-- Link observations are the raw anchors found by one scan
	CREATE TABLE IF NOT EXISTS link_observations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		scan_id TEXT NOT NULL REFERENCES scans(id) ON DELETE CASCADE,
		source_url TEXT NOT NULL,
		target_url TEXT NOT NULL,
		target_domain TEXT NOT NULL,
		nofollow INTEGER NOT NULL DEFAULT 0,
		sponsored INTEGER NOT NULL DEFAULT 0,
		ugc INTEGER NOT NULL DEFAULT 0,
		anchor_text TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL DEFAULT 'other'
	);

	CREATE INDEX IF NOT EXISTS idx_observations_scan ON link_observations(scan_id);

	-- Indexed links aggregate all observations per (target, linking domain, linking URL)
	CREATE TABLE IF NOT EXISTS indexed_links (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		target_domain TEXT NOT NULL,
		linking_domain TEXT NOT NULL,
		linking_url TEXT NOT NULL,
		first_seen TEXT NOT NULL,
		last_seen TEXT NOT NULL,
		total_scans_seen INTEGER NOT NULL,
		last_scan_id TEXT NOT NULL,
		anchor_text TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL DEFAULT 'other',
		nofollow INTEGER NOT NULL DEFAULT 0,
		sponsored INTEGER NOT NULL DEFAULT 0,
		ugc INTEGER NOT NULL DEFAULT 0,
		UNIQUE(target_domain, linking_domain, linking_url)
	);

	CREATE INDEX IF NOT EXISTS idx_indexed_target ON indexed_links(target_domain);

	-- Daily quota counters keyed by user id or anonymous client key
	CREATE TABLE IF NOT EXISTS quota_usage (
		user_id TEXT PRIMARY KEY,
		used INTEGER NOT NULL,
		plan_limit INTEGER NOT NULL,
		reset_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS subscriptions (
		user_id TEXT PRIMARY KEY,
		plan TEXT NOT NULL,
		status TEXT NOT NULL,
		email TEXT NOT NULL DEFAULT '',
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS monitored_domains (
		user_id TEXT NOT NULL,
		domain TEXT NOT NULL,
		created_at TEXT NOT NULL,
		PRIMARY KEY(user_id, domain)
	);

	CREATE TABLE IF NOT EXISTS report_log (
		user_id TEXT PRIMARY KEY,
		last_sent_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS api_keys (
		key_hash TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		is_admin INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	-- Scan events are best-effort history/telemetry rows
	CREATE TABLE IF NOT EXISTS scan_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		scan_id TEXT NOT NULL DEFAULT '',
		user_id TEXT NOT NULL DEFAULT '',
		event TEXT NOT NULL,
		detail TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_scan_events_created ON scan_events(created_at);
	`

	_, err := ldb.db.ExecContext(context.Background(), schema)
	return err
}

// withTx runs fn inside a transaction, committing on success.
func (ldb *LinkDB) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := ldb.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// timeLayout is fixed-width so lexical order equals chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// formatTime renders t for storage.
func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// nullTime renders an optional time for storage.
func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

// timestampFormats contains the timestamp formats that may be stored.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	timeLayout,
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",     // SQLite default datetime format
	"2006-01-02T15:04:05Z",    // ISO 8601 with Z suffix
	"2006-01-02T15:04:05",     // ISO 8601 without timezone
	"2006-01-02 15:04:05.999", // SQLite with milliseconds
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// boolToInt converts a bool to SQLite's integer representation.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
