package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nao1215/backlinkscan/internal/model"
)

// GetQuotaUsage returns the stored counter for key. A missing row yields a
// zero usage with a zero reset time, which callers treat as already expired.
func (ldb *LinkDB) GetQuotaUsage(ctx context.Context, key string) (model.QuotaUsage, error) {
	usage := model.QuotaUsage{UserID: key}
	var resetAt string

	err := ldb.db.QueryRowContext(ctx,
		`SELECT used, plan_limit, reset_at FROM quota_usage WHERE user_id = ?`, key,
	).Scan(&usage.Used, &usage.Limit, &resetAt)
	if errors.Is(err, sql.ErrNoRows) {
		return usage, nil
	}
	if err != nil {
		return usage, fmt.Errorf("failed to get quota usage: %w", err)
	}
	usage.ResetAt = parseTimestamp(resetAt)
	return usage, nil
}

// SaveQuotaUsage upserts the counter for usage.UserID.
func (ldb *LinkDB) SaveQuotaUsage(ctx context.Context, usage model.QuotaUsage) error {
	query := `
	INSERT INTO quota_usage (user_id, used, plan_limit, reset_at) VALUES (?, ?, ?, ?)
	ON CONFLICT(user_id) DO UPDATE SET
		used = excluded.used,
		plan_limit = excluded.plan_limit,
		reset_at = excluded.reset_at
	`
	if _, err := ldb.db.ExecContext(ctx, query, usage.UserID, usage.Used, usage.Limit, formatTime(usage.ResetAt)); err != nil {
		return fmt.Errorf("failed to save quota usage: %w", err)
	}
	return nil
}

// GetSubscription returns the subscription of userID, or nil when the user
// has none.
func (ldb *LinkDB) GetSubscription(ctx context.Context, userID string) (*model.Subscription, error) {
	var (
		sub       model.Subscription
		updatedAt string
	)
	err := ldb.db.QueryRowContext(ctx,
		`SELECT user_id, plan, status, email, updated_at FROM subscriptions WHERE user_id = ?`, userID,
	).Scan(&sub.UserID, &sub.Plan, &sub.Status, &sub.Email, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}
	sub.UpdatedAt = parseTimestamp(updatedAt)
	return &sub, nil
}

// UpsertSubscription creates or replaces a subscription.
func (ldb *LinkDB) UpsertSubscription(ctx context.Context, sub model.Subscription) error {
	query := `
	INSERT INTO subscriptions (user_id, plan, status, email, updated_at) VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(user_id) DO UPDATE SET
		plan = excluded.plan,
		status = excluded.status,
		email = excluded.email,
		updated_at = excluded.updated_at
	`
	if _, err := ldb.db.ExecContext(ctx, query, sub.UserID, sub.Plan, sub.Status, sub.Email, formatTime(sub.UpdatedAt)); err != nil {
		return fmt.Errorf("failed to upsert subscription: %w", err)
	}
	return nil
}

// ListActiveSubscriptions returns active and trialing subscriptions on the
// given plans, ordered by the oldest report delivery first (never-sent first).
// Only users whose last report is older than sentBefore are returned.
func (ldb *LinkDB) ListActiveSubscriptions(ctx context.Context, plans []string, sentBefore time.Time, limit int) ([]model.Subscription, error) {
	if len(plans) == 0 {
		return nil, nil
	}

	query := `
	SELECT s.user_id, s.plan, s.status, s.email, s.updated_at
	FROM subscriptions s
	LEFT JOIN report_log r ON r.user_id = s.user_id
	WHERE s.status IN (?, ?)
		AND (r.last_sent_at IS NULL OR r.last_sent_at < ?)
		AND s.plan IN (` + placeholders(len(plans)) + `)
	ORDER BY (r.last_sent_at IS NOT NULL), r.last_sent_at, s.user_id
	LIMIT ?
	`
	args := []any{model.SubscriptionActive, model.SubscriptionTrialing, formatTime(sentBefore)}
	for _, p := range plans {
		args = append(args, p)
	}
	args = append(args, limit)

	rows, err := ldb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []model.Subscription
	for rows.Next() {
		var (
			sub       model.Subscription
			updatedAt string
		)
		if err := rows.Scan(&sub.UserID, &sub.Plan, &sub.Status, &sub.Email, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan subscription: %w", err)
		}
		sub.UpdatedAt = parseTimestamp(updatedAt)
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// AddMonitoredDomain attaches domain to userID. Re-adding is a no-op.
func (ldb *LinkDB) AddMonitoredDomain(ctx context.Context, userID, domain string, now time.Time) error {
	query := `
	INSERT INTO monitored_domains (user_id, domain, created_at) VALUES (?, ?, ?)
	ON CONFLICT(user_id, domain) DO NOTHING
	`
	if _, err := ldb.db.ExecContext(ctx, query, userID, domain, formatTime(now)); err != nil {
		return fmt.Errorf("failed to add monitored domain: %w", err)
	}
	return nil
}

// ListMonitoredDomains returns the domains userID monitors, sorted.
func (ldb *LinkDB) ListMonitoredDomains(ctx context.Context, userID string) ([]string, error) {
	rows, err := ldb.db.QueryContext(ctx,
		`SELECT domain FROM monitored_domains WHERE user_id = ? ORDER BY domain`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list monitored domains: %w", err)
	}
	defer rows.Close()

	var domains []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("failed to scan monitored domain: %w", err)
		}
		domains = append(domains, d)
	}
	return domains, rows.Err()
}

// CountMonitoredDomains returns how many domains userID monitors.
func (ldb *LinkDB) CountMonitoredDomains(ctx context.Context, userID string) (int, error) {
	var count int
	if err := ldb.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM monitored_domains WHERE user_id = ?`, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count monitored domains: %w", err)
	}
	return count, nil
}

// MarkReportSent records a report delivery for userID.
func (ldb *LinkDB) MarkReportSent(ctx context.Context, userID string, at time.Time) error {
	query := `
	INSERT INTO report_log (user_id, last_sent_at) VALUES (?, ?)
	ON CONFLICT(user_id) DO UPDATE SET last_sent_at = excluded.last_sent_at
	`
	if _, err := ldb.db.ExecContext(ctx, query, userID, formatTime(at)); err != nil {
		return fmt.Errorf("failed to mark report sent: %w", err)
	}
	return nil
}

// LastReportSent returns the last delivery time for userID, or nil.
func (ldb *LinkDB) LastReportSent(ctx context.Context, userID string) (*time.Time, error) {
	var ts string
	err := ldb.db.QueryRowContext(ctx, `SELECT last_sent_at FROM report_log WHERE user_id = ?`, userID).Scan(&ts)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get last report: %w", err)
	}
	t := parseTimestamp(ts)
	return &t, nil
}

// SaveAPIKey stores the hash of an API key for userID.
func (ldb *LinkDB) SaveAPIKey(ctx context.Context, keyHash, userID string, isAdmin bool, now time.Time) error {
	query := `INSERT INTO api_keys (key_hash, user_id, is_admin, created_at) VALUES (?, ?, ?, ?)`
	if _, err := ldb.db.ExecContext(ctx, query, keyHash, userID, boolToInt(isAdmin), formatTime(now)); err != nil {
		return fmt.Errorf("failed to save api key: %w", err)
	}
	return nil
}

// LookupAPIKey resolves a key hash to its owner, or ErrNotFound.
func (ldb *LinkDB) LookupAPIKey(ctx context.Context, keyHash string) (model.Caller, error) {
	var (
		caller  model.Caller
		isAdmin int
	)
	err := ldb.db.QueryRowContext(ctx,
		`SELECT user_id, is_admin FROM api_keys WHERE key_hash = ?`, keyHash,
	).Scan(&caller.UserID, &isAdmin)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Caller{}, ErrNotFound
	}
	if err != nil {
		return model.Caller{}, fmt.Errorf("failed to look up api key: %w", err)
	}
	caller.IsAdmin = isAdmin != 0
	return caller, nil
}

// placeholders returns "?, ?, ..." with n entries.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	b := make([]byte, 0, n*3)
	for i := range n {
		if i > 0 {
			b = append(b, ", "...)
		}
		b = append(b, '?')
	}
	return string(b)
}
