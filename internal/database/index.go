package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/nao1215/backlinkscan/internal/model"
)

// ReplaceIndexedLinks replaces the whole index of targetDomain with links.
//
// Design decision: the delete and the inserts run in one transaction, so a
// crash mid-write rolls back to the previous index instead of leaving the
// domain's index empty. The insert is an upsert on the unique triple so a
// duplicate in links cannot fail the batch.
func (ldb *LinkDB) ReplaceIndexedLinks(ctx context.Context, targetDomain string, links []model.IndexedLink) error {
	return ldb.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM indexed_links WHERE target_domain = ?`, targetDomain); err != nil {
			return fmt.Errorf("failed to delete indexed links: %w", err)
		}
		if len(links) == 0 {
			return nil
		}

		stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO indexed_links
			(target_domain, linking_domain, linking_url, first_seen, last_seen, total_scans_seen,
			 last_scan_id, anchor_text, category, nofollow, sponsored, ugc)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(target_domain, linking_domain, linking_url) DO UPDATE SET
			first_seen = excluded.first_seen,
			last_seen = excluded.last_seen,
			total_scans_seen = excluded.total_scans_seen,
			last_scan_id = excluded.last_scan_id,
			anchor_text = excluded.anchor_text,
			category = excluded.category,
			nofollow = excluded.nofollow,
			sponsored = excluded.sponsored,
			ugc = excluded.ugc`)
		if err != nil {
			return fmt.Errorf("failed to prepare indexed link insert: %w", err)
		}
		defer stmt.Close()

		for _, link := range links {
			if _, err := stmt.ExecContext(ctx,
				targetDomain,
				link.LinkingDomain,
				link.LinkingURL,
				formatTime(link.FirstSeen),
				formatTime(link.LastSeen),
				link.TotalScansSeen,
				link.LastScanID,
				link.AnchorText,
				string(link.Category),
				boolToInt(link.Rel.NoFollow),
				boolToInt(link.Rel.Sponsored),
				boolToInt(link.Rel.UGC),
			); err != nil {
				return fmt.Errorf("failed to insert indexed link: %w", err)
			}
		}
		return nil
	})
}

// ListIndexedLinks returns the index of targetDomain ordered by linking
// domain and URL.
func (ldb *LinkDB) ListIndexedLinks(ctx context.Context, targetDomain string) ([]model.IndexedLink, error) {
	query := `
	SELECT target_domain, linking_domain, linking_url, first_seen, last_seen, total_scans_seen,
		last_scan_id, anchor_text, category, nofollow, sponsored, ugc
	FROM indexed_links
	WHERE target_domain = ?
	ORDER BY linking_domain, linking_url
	`

	rows, err := ldb.db.QueryContext(ctx, query, targetDomain)
	if err != nil {
		return nil, fmt.Errorf("failed to list indexed links: %w", err)
	}
	defer rows.Close()

	var links []model.IndexedLink
	for rows.Next() {
		var (
			link                     model.IndexedLink
			firstSeen, lastSeen      string
			category                 string
			nofollow, sponsored, ugc int
		)
		if err := rows.Scan(&link.TargetDomain, &link.LinkingDomain, &link.LinkingURL,
			&firstSeen, &lastSeen, &link.TotalScansSeen, &link.LastScanID,
			&link.AnchorText, &category, &nofollow, &sponsored, &ugc); err != nil {
			return nil, fmt.Errorf("failed to scan indexed link: %w", err)
		}
		link.FirstSeen = parseTimestamp(firstSeen)
		link.LastSeen = parseTimestamp(lastSeen)
		link.Category = model.ParseCategory(category)
		link.Rel = model.RelFlags{NoFollow: nofollow != 0, Sponsored: sponsored != 0, UGC: ugc != 0}
		links = append(links, link)
	}
	return links, rows.Err()
}
