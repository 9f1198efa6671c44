package main

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/backlinkscan/internal/apikey"
	"github.com/nao1215/backlinkscan/internal/database"
	"github.com/nao1215/backlinkscan/internal/model"
	"github.com/nao1215/backlinkscan/internal/plan"
)

// issuedKey extracts the key printed by printKey.
func issuedKey(t *testing.T, out string) string {
	t.Helper()
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, apikey.Prefix) {
			return line
		}
	}
	t.Fatalf("no key in output:\n%s", out)
	return ""
}

func TestUserAddCmd(t *testing.T) {
	t.Parallel()

	t.Run("creates user and key", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t, "")

		out, err := env.run(t, "user", "add", "user_1",
			"--email", "owner@example.com", "--plan", "starter", "--domain", "example.com")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out, "User user_1: plan starter (active)") {
			t.Errorf("unexpected output:\n%s", out)
		}
		key := issuedKey(t, out)

		db, err := database.Open(env.dbDir, database.DefaultOptions())
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		defer db.Close()

		ctx := context.Background()
		caller, err := db.LookupAPIKey(ctx, apikey.Hash(key))
		if err != nil {
			t.Fatalf("key not stored: %v", err)
		}
		if caller.UserID != "user_1" || caller.IsAdmin {
			t.Errorf("unexpected caller: %+v", caller)
		}
		sub, err := db.GetSubscription(ctx, "user_1")
		if err != nil {
			t.Fatalf("subscription not stored: %v", err)
		}
		if sub.Plan != string(plan.TierStarter) || sub.Email != "owner@example.com" {
			t.Errorf("unexpected subscription: %+v", sub)
		}
		domains, err := db.ListMonitoredDomains(ctx, "user_1")
		if err != nil {
			t.Fatalf("failed to list domains: %v", err)
		}
		if len(domains) != 1 || domains[0] != "example.com" {
			t.Errorf("unexpected domains: %v", domains)
		}
	})

	t.Run("free plan domain limit", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t, "")

		_, err := env.run(t, "user", "add", "user_2", "-d", "example.com", "-d", "example.org")
		if !errors.Is(err, errDomainLimit) {
			t.Errorf("expected errDomainLimit, got %v", err)
		}
	})

	t.Run("invalid email", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t, "")
		if _, err := env.run(t, "user", "add", "user_3", "--email", "not-an-email"); err == nil {
			t.Error("expected error for invalid email")
		}
	})

	t.Run("invalid status", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t, "")
		if _, err := env.run(t, "user", "add", "user_4", "--status", "paused"); err == nil {
			t.Error("expected error for invalid status")
		}
	})
}

func TestUserKeyCmd(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, "")
	out, err := env.run(t, "user", "key", "ops", "--admin")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	key := issuedKey(t, out)

	db, err := database.Open(env.dbDir, database.DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	caller, err := db.LookupAPIKey(context.Background(), apikey.Hash(key))
	if err != nil {
		t.Fatalf("key not stored: %v", err)
	}
	if !caller.IsAdmin {
		t.Error("expected admin key")
	}
}

// memAccounts is an in-memory accountStore.
type memAccounts struct {
	domains map[string][]string
	keys    map[string]string
}

func newMemAccounts() *memAccounts {
	return &memAccounts{domains: map[string][]string{}, keys: map[string]string{}}
}

func (m *memAccounts) UpsertSubscription(context.Context, model.Subscription) error { return nil }

func (m *memAccounts) SaveAPIKey(_ context.Context, keyHash, userID string, _ bool, _ time.Time) error {
	m.keys[keyHash] = userID
	return nil
}

func (m *memAccounts) AddMonitoredDomain(_ context.Context, userID, domain string, _ time.Time) error {
	for _, d := range m.domains[userID] {
		if d == domain {
			return nil
		}
	}
	m.domains[userID] = append(m.domains[userID], domain)
	return nil
}

func (m *memAccounts) ListMonitoredDomains(_ context.Context, userID string) ([]string, error) {
	return m.domains[userID], nil
}

func TestAddDomains(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Now().UTC()

	t.Run("normalizes and counts known domains once", func(t *testing.T) {
		t.Parallel()
		store := newMemAccounts()
		store.domains["u"] = []string{"example.com"}

		got, err := addDomains(ctx, store, "u", []string{"https://www.example.com/", "Example.org"}, 2, now)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got) != 2 || got[0] != "example.com" || got[1] != "example.org" {
			t.Errorf("unexpected domains: %v", got)
		}
		if len(store.domains["u"]) != 2 {
			t.Errorf("expected 2 stored domains, got %v", store.domains["u"])
		}
	})

	t.Run("limit exceeded stores nothing", func(t *testing.T) {
		t.Parallel()
		store := newMemAccounts()

		_, err := addDomains(ctx, store, "u", []string{"a.com", "b.com"}, 1, now)
		if !errors.Is(err, errDomainLimit) {
			t.Fatalf("expected errDomainLimit, got %v", err)
		}
		if len(store.domains["u"]) != 0 {
			t.Errorf("expected no stored domains, got %v", store.domains["u"])
		}
	})

	t.Run("invalid domain", func(t *testing.T) {
		t.Parallel()
		if _, err := addDomains(ctx, newMemAccounts(), "u", []string{"bad domain"}, 5, now); err == nil {
			t.Error("expected error for invalid domain")
		}
	})
}

func TestIssueKey(t *testing.T) {
	t.Parallel()

	store := newMemAccounts()
	key, err := issueKey(context.Background(), store, "u", false, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(key, apikey.Prefix) {
		t.Errorf("expected prefix %q, got %q", apikey.Prefix, key)
	}
	if store.keys[apikey.Hash(key)] != "u" {
		t.Error("expected hashed key to be stored")
	}
	if _, ok := store.keys[key]; ok {
		t.Error("plaintext key must not be stored")
	}
}

func TestEffectiveTier(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		sub  model.Subscription
		want plan.Tier
	}{
		{"active pro", model.Subscription{Plan: "pro", Status: model.SubscriptionActive}, plan.TierPro},
		{"trialing starter", model.Subscription{Plan: "starter", Status: model.SubscriptionTrialing}, plan.TierStarter},
		{"canceled agency", model.Subscription{Plan: "agency", Status: model.SubscriptionCanceled}, plan.TierFree},
		{"unknown plan", model.Subscription{Plan: "gold", Status: model.SubscriptionActive}, plan.TierFree},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := effectiveTier(tt.sub); got != tt.want {
				t.Errorf("effectiveTier() = %q, want %q", got, tt.want)
			}
		})
	}
}
