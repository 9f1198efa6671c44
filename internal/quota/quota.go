// Package quota implements the per-user daily scan ledger.
//
// Every caller has one counter that resets at the next UTC midnight. A unit is
// reserved before any expensive work and rolled back when that work fails, so
// users are never charged for failed attempts.
package quota

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nao1215/backlinkscan/internal/model"
)

// ErrQuotaExceeded is returned when the caller has used the whole daily limit.
var ErrQuotaExceeded = errors.New("daily scan quota exceeded")

// Store persists quota counters. A missing counter is returned as a zero
// usage with a zero ResetAt.
type Store interface {
	GetQuotaUsage(ctx context.Context, key string) (model.QuotaUsage, error)
	SaveQuotaUsage(ctx context.Context, usage model.QuotaUsage) error
}

// Reservation is one reserved unit of quota.
type Reservation struct {
	// Key is the quota key (user id or anonymous client key).
	Key string

	// UsedBefore is the used count of the current window before reserving.
	UsedBefore int

	// ResetAt identifies the window the unit was taken from.
	ResetAt time.Time
}

// NextReset returns the first UTC midnight strictly after now.
func NextReset(now time.Time) time.Time {
	y, m, d := now.UTC().Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, time.UTC)
}

// Service reserves and rolls back daily quota.
//
// Reserve and Rollback are serialized within the process so two concurrent
// requests by the same caller cannot both take the last unit.
type Service struct {
	store Store
	now   func() time.Time
	mu    sync.Mutex
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a quota service over store.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store: store,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// current loads the counter for key and applies the window reset.
func (s *Service) current(ctx context.Context, key string, now time.Time) (model.QuotaUsage, error) {
	usage, err := s.store.GetQuotaUsage(ctx, key)
	if err != nil {
		return model.QuotaUsage{}, err
	}
	usage.UserID = key
	if usage.ResetAt.IsZero() || !now.Before(usage.ResetAt) {
		usage.Used = 0
		usage.ResetAt = NextReset(now)
	}
	return usage, nil
}

// Reserve takes one unit from key's daily quota. When the limit is already
// reached it returns ErrQuotaExceeded without writing anything.
func (s *Service) Reserve(ctx context.Context, key string, limit int) (Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	usage, err := s.current(ctx, key, now)
	if err != nil {
		return Reservation{}, fmt.Errorf("failed to load quota: %w", err)
	}

	if usage.Used >= limit {
		return Reservation{}, fmt.Errorf("%w: %d of %d scans used, resets at %s",
			ErrQuotaExceeded, usage.Used, limit, usage.ResetAt.Format(time.RFC3339))
	}

	reservation := Reservation{Key: key, UsedBefore: usage.Used, ResetAt: NextReset(now)}

	usage.Used++
	usage.Limit = limit
	usage.ResetAt = reservation.ResetAt
	if err := s.store.SaveQuotaUsage(ctx, usage); err != nil {
		return Reservation{}, fmt.Errorf("failed to save quota: %w", err)
	}
	return reservation, nil
}

// Rollback returns a reserved unit. It is a no-op when the window has reset
// since the reservation, because the new window never included the unit.
func (s *Service) Rollback(ctx context.Context, r Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	usage, err := s.store.GetQuotaUsage(ctx, r.Key)
	if err != nil {
		return fmt.Errorf("failed to load quota: %w", err)
	}
	if !usage.ResetAt.Equal(r.ResetAt) || usage.Used <= 0 {
		return nil
	}

	usage.UserID = r.Key
	usage.Used--
	if err := s.store.SaveQuotaUsage(ctx, usage); err != nil {
		return fmt.Errorf("failed to save quota: %w", err)
	}
	return nil
}

// Usage returns key's counter for display, with an expired window reported
// as unused.
func (s *Service) Usage(ctx context.Context, key string, limit int) (model.QuotaUsage, error) {
	usage, err := s.current(ctx, key, s.now())
	if err != nil {
		return model.QuotaUsage{}, fmt.Errorf("failed to load quota: %w", err)
	}
	usage.Limit = limit
	return usage, nil
}
