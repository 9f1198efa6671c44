package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nao1215/backlinkscan/internal/model"
)

// UpsertTarget creates the target row on first scan. Existing rows keep their
// creation and last-indexed times.
func (ldb *LinkDB) UpsertTarget(ctx context.Context, domain string, now time.Time) error {
	query := `
	INSERT INTO targets (domain, created_at) VALUES (?, ?)
	ON CONFLICT(domain) DO NOTHING
	`
	if _, err := ldb.db.ExecContext(ctx, query, domain, formatTime(now)); err != nil {
		return fmt.Errorf("failed to upsert target: %w", err)
	}
	return nil
}

// GetTarget returns a target, or ErrNotFound.
func (ldb *LinkDB) GetTarget(ctx context.Context, domain string) (*model.Target, error) {
	query := `SELECT domain, created_at, last_indexed_at FROM targets WHERE domain = ?`

	target, err := scanTarget(ldb.db.QueryRowContext(ctx, query, domain))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get target: %w", err)
	}
	return target, nil
}

// ListTargets returns all targets ordered by domain.
func (ldb *LinkDB) ListTargets(ctx context.Context) ([]model.Target, error) {
	rows, err := ldb.db.QueryContext(ctx, `SELECT domain, created_at, last_indexed_at FROM targets ORDER BY domain`)
	if err != nil {
		return nil, fmt.Errorf("failed to list targets: %w", err)
	}
	defer rows.Close()

	var targets []model.Target
	for rows.Next() {
		target, err := scanTarget(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan target: %w", err)
		}
		targets = append(targets, *target)
	}
	return targets, rows.Err()
}

// StaleTargets selects up to limit targets that need reindexing: never
// indexed, indexed before staleBefore, or scanned since their last index.
// Never-indexed targets come first, then the oldest index.
func (ldb *LinkDB) StaleTargets(ctx context.Context, staleBefore time.Time, limit int) ([]model.Target, error) {
	query := `
	SELECT t.domain, t.created_at, t.last_indexed_at
	FROM targets t
	WHERE t.last_indexed_at IS NULL
		OR t.last_indexed_at < ?
		OR EXISTS (
			SELECT 1 FROM scans s
			WHERE s.domain = t.domain AND s.created_at > t.last_indexed_at
		)
	ORDER BY (t.last_indexed_at IS NOT NULL), t.last_indexed_at, t.domain
	LIMIT ?
	`

	rows, err := ldb.db.QueryContext(ctx, query, formatTime(staleBefore), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to select stale targets: %w", err)
	}
	defer rows.Close()

	var targets []model.Target
	for rows.Next() {
		target, err := scanTarget(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan target: %w", err)
		}
		targets = append(targets, *target)
	}
	return targets, rows.Err()
}

// MarkIndexed records a completed reindex of domain.
func (ldb *LinkDB) MarkIndexed(ctx context.Context, domain string, at time.Time) error {
	query := `
	INSERT INTO targets (domain, created_at, last_indexed_at) VALUES (?, ?, ?)
	ON CONFLICT(domain) DO UPDATE SET last_indexed_at = excluded.last_indexed_at
	`
	ts := formatTime(at)
	if _, err := ldb.db.ExecContext(ctx, query, domain, ts, ts); err != nil {
		return fmt.Errorf("failed to mark target indexed: %w", err)
	}
	return nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanTarget reads one targets row.
func scanTarget(row rowScanner) (*model.Target, error) {
	var (
		target      model.Target
		createdAt   string
		lastIndexed sql.NullString
	)
	if err := row.Scan(&target.Domain, &createdAt, &lastIndexed); err != nil {
		return nil, err
	}
	target.CreatedAt = parseTimestamp(createdAt)
	if lastIndexed.Valid {
		t := parseTimestamp(lastIndexed.String)
		target.LastIndexedAt = &t
	}
	return &target, nil
}
