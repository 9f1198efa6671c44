package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nao1215/backlinkscan/internal/model"
	"github.com/nao1215/backlinkscan/internal/urlnorm"
)

// SaveScan creates the target if needed and inserts a scan with its
// observations in one transaction. A scan row never exists without its
// observations, and never without its target.
func (ldb *LinkDB) SaveScan(ctx context.Context, scan model.Scan, links []model.LinkObservation) error {
	return ldb.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
		INSERT INTO targets (domain, created_at) VALUES (?, ?)
		ON CONFLICT(domain) DO NOTHING`,
			scan.Domain, formatTime(scan.CreatedAt),
		); err != nil {
			return fmt.Errorf("failed to upsert target: %w", err)
		}

		_, err := tx.ExecContext(ctx, `
		INSERT INTO scans (id, domain, user_id, mode, created_at, total_links, ref_domains, pages_crawled)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			scan.ID,
			scan.Domain,
			scan.UserID,
			string(scan.Mode),
			formatTime(scan.CreatedAt),
			scan.TotalLinks,
			scan.RefDomains,
			scan.PagesCrawled,
		)
		if err != nil {
			return fmt.Errorf("failed to insert scan: %w", err)
		}

		if len(links) == 0 {
			return nil
		}

		stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO link_observations
			(scan_id, source_url, target_url, target_domain, nofollow, sponsored, ugc, anchor_text, category)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare observation insert: %w", err)
		}
		defer stmt.Close()

		for _, link := range links {
			if _, err := stmt.ExecContext(ctx,
				scan.ID,
				link.SourceURL,
				link.TargetURL,
				link.TargetDomain,
				boolToInt(link.Rel.NoFollow),
				boolToInt(link.Rel.Sponsored),
				boolToInt(link.Rel.UGC),
				link.AnchorText,
				string(link.Category),
			); err != nil {
				return fmt.Errorf("failed to insert observation: %w", err)
			}
		}
		return nil
	})
}

// GetScan returns a scan by id, or ErrNotFound.
func (ldb *LinkDB) GetScan(ctx context.Context, id string) (*model.Scan, error) {
	query := `
	SELECT id, domain, user_id, mode, created_at, total_links, ref_domains, pages_crawled
	FROM scans WHERE id = ?
	`
	scan, err := scanScan(ldb.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get scan: %w", err)
	}
	return scan, nil
}

// ListScans returns the scans of domain, newest first. A limit of 0 or less
// returns all scans.
func (ldb *LinkDB) ListScans(ctx context.Context, domain string, limit int) ([]model.Scan, error) {
	query := `
	SELECT id, domain, user_id, mode, created_at, total_links, ref_domains, pages_crawled
	FROM scans WHERE domain = ?
	ORDER BY created_at DESC, id DESC
	`
	args := []any{domain}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := ldb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list scans: %w", err)
	}
	defer rows.Close()

	var scans []model.Scan
	for rows.Next() {
		scan, err := scanScan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan scan row: %w", err)
		}
		scans = append(scans, *scan)
	}
	return scans, rows.Err()
}

// ScanCount returns the number of scans of domain.
func (ldb *LinkDB) ScanCount(ctx context.Context, domain string) (int, error) {
	var count int
	if err := ldb.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM scans WHERE domain = ?`, domain).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count scans: %w", err)
	}
	return count, nil
}

// IndexObservations loads every observation of every scan of domain in the
// shape the reducer consumes. The linking domain is the normalized host of
// the observed link and the observation time is the scan's creation time.
func (ldb *LinkDB) IndexObservations(ctx context.Context, domain string) ([]model.IndexObservation, error) {
	query := `
	SELECT o.target_url, o.target_domain, s.id, s.created_at,
		o.anchor_text, o.category, o.nofollow, o.sponsored, o.ugc
	FROM link_observations o
	JOIN scans s ON s.id = o.scan_id
	WHERE s.domain = ?
	ORDER BY s.created_at, s.id, o.id
	`

	rows, err := ldb.db.QueryContext(ctx, query, domain)
	if err != nil {
		return nil, fmt.Errorf("failed to load observations: %w", err)
	}
	defer rows.Close()

	var out []model.IndexObservation
	for rows.Next() {
		var (
			obs          model.IndexObservation
			targetDomain string
			createdAt    string
			category     string
			nofollow     int
			sponsored    int
			ugc          int
		)
		if err := rows.Scan(&obs.LinkingURL, &targetDomain, &obs.ScanID, &createdAt,
			&obs.AnchorText, &category, &nofollow, &sponsored, &ugc); err != nil {
			return nil, fmt.Errorf("failed to scan observation: %w", err)
		}

		obs.LinkingDomain = urlnorm.Host(obs.LinkingURL)
		if obs.LinkingDomain == "" {
			obs.LinkingDomain = targetDomain
		}
		obs.ObservedAt = parseTimestamp(createdAt)
		obs.Category = model.ParseCategory(category)
		obs.Rel = model.RelFlags{NoFollow: nofollow != 0, Sponsored: sponsored != 0, UGC: ugc != 0}
		out = append(out, obs)
	}
	return out, rows.Err()
}

// ScanObservations returns the raw observations of one scan in insertion order.
func (ldb *LinkDB) ScanObservations(ctx context.Context, scanID string) ([]model.LinkObservation, error) {
	query := `
	SELECT source_url, target_url, target_domain, nofollow, sponsored, ugc, anchor_text, category
	FROM link_observations WHERE scan_id = ? ORDER BY id
	`
	rows, err := ldb.db.QueryContext(ctx, query, scanID)
	if err != nil {
		return nil, fmt.Errorf("failed to load scan observations: %w", err)
	}
	defer rows.Close()

	var out []model.LinkObservation
	for rows.Next() {
		var (
			link                     model.LinkObservation
			nofollow, sponsored, ugc int
			category                 string
		)
		if err := rows.Scan(&link.SourceURL, &link.TargetURL, &link.TargetDomain,
			&nofollow, &sponsored, &ugc, &link.AnchorText, &category); err != nil {
			return nil, fmt.Errorf("failed to scan observation: %w", err)
		}
		link.Rel = model.RelFlags{NoFollow: nofollow != 0, Sponsored: sponsored != 0, UGC: ugc != 0}
		link.Category = model.ParseCategory(category)
		out = append(out, link)
	}
	return out, rows.Err()
}

// RecordScanEvent appends a history/telemetry row.
func (ldb *LinkDB) RecordScanEvent(ctx context.Context, scanID, userID, event, detail string, at time.Time) error {
	query := `INSERT INTO scan_events (scan_id, user_id, event, detail, created_at) VALUES (?, ?, ?, ?, ?)`
	if _, err := ldb.db.ExecContext(ctx, query, scanID, userID, event, detail, formatTime(at)); err != nil {
		return fmt.Errorf("failed to record scan event: %w", err)
	}
	return nil
}

// CountScanEvents returns the number of events with the given name since t.
func (ldb *LinkDB) CountScanEvents(ctx context.Context, event string, since time.Time) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM scan_events WHERE event = ? AND created_at >= ?`
	if err := ldb.db.QueryRowContext(ctx, query, event, formatTime(since)).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count scan events: %w", err)
	}
	return count, nil
}

// scanScan reads one scans row.
func scanScan(row rowScanner) (*model.Scan, error) {
	var (
		scan      model.Scan
		mode      string
		createdAt string
	)
	if err := row.Scan(&scan.ID, &scan.Domain, &scan.UserID, &mode, &createdAt,
		&scan.TotalLinks, &scan.RefDomains, &scan.PagesCrawled); err != nil {
		return nil, err
	}
	scan.Mode = model.ScanMode(mode)
	scan.CreatedAt = parseTimestamp(createdAt)
	return &scan, nil
}
