package plan

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/nao1215/backlinkscan/internal/model"
)

type stubStore struct {
	subs map[string]*model.Subscription
	err  error
}

func (s stubStore) GetSubscription(_ context.Context, userID string) (*model.Subscription, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.subs[userID], nil
}

func TestParseTier(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want Tier
	}{
		{"pro", TierPro},
		{" Agency ", TierAgency},
		{"STARTER", TierStarter},
		{"", TierFree},
		{"enterprise", TierFree},
	}
	for _, tt := range tests {
		if got := ParseTier(tt.in); got != tt.want {
			t.Errorf("ParseTier(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCatalogMerge(t *testing.T) {
	t.Parallel()

	t.Run("overrides a tier", func(t *testing.T) {
		t.Parallel()

		base := DefaultCatalog()
		merged, err := base.Merge(map[string]Plan{
			"Free": {DailyScans: 10, SampleLinks: 5},
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := merged.Get(TierFree); got.DailyScans != 10 || got.Tier != TierFree {
			t.Errorf("unexpected merged free plan: %+v", got)
		}
		if base.Get(TierFree).DailyScans != 5 {
			t.Error("merge must not modify the base catalog")
		}
		if merged.Get(TierPro) != base.Get(TierPro) {
			t.Error("untouched tiers must be preserved")
		}
	})

	t.Run("unknown tier", func(t *testing.T) {
		t.Parallel()

		if _, err := DefaultCatalog().Merge(map[string]Plan{"gold": {}}); err == nil {
			t.Error("expected error for unknown tier")
		}
	})

	t.Run("negative limit", func(t *testing.T) {
		t.Parallel()

		if _, err := DefaultCatalog().Merge(map[string]Plan{"pro": {DailyScans: -1}}); err == nil {
			t.Error("expected error for negative limit")
		}
	})
}

func TestCatalogGetFallsBackToFree(t *testing.T) {
	t.Parallel()

	got := DefaultCatalog().Get(Tier("unknown"))
	if got.Tier != TierFree {
		t.Errorf("expected free plan, got %q", got.Tier)
	}
}

func TestReportTiers(t *testing.T) {
	t.Parallel()

	want := []string{"agency", "pro", "starter"}
	if got := DefaultCatalog().ReportTiers(); !reflect.DeepEqual(got, want) {
		t.Errorf("ReportTiers() = %v, want %v", got, want)
	}
}

func TestResolverLookup(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := stubStore{subs: map[string]*model.Subscription{
		"paid": {UserID: "paid", Plan: "pro", Status: model.SubscriptionActive},
	}}
	r := NewResolver(store, nil)

	t.Run("missing row is free and inactive", func(t *testing.T) {
		t.Parallel()

		sub, err := r.Lookup(ctx, "nobody")
		if err != nil {
			t.Fatal(err)
		}
		if sub.Plan != "free" || sub.Status != model.SubscriptionInactive || sub.IsActive() {
			t.Errorf("unexpected subscription: %+v", sub)
		}
	})

	t.Run("existing row", func(t *testing.T) {
		t.Parallel()

		sub, err := r.Lookup(ctx, "paid")
		if err != nil {
			t.Fatal(err)
		}
		if sub.Plan != "pro" || !sub.IsActive() {
			t.Errorf("unexpected subscription: %+v", sub)
		}
	})

	t.Run("store error", func(t *testing.T) {
		t.Parallel()

		failing := NewResolver(stubStore{err: errors.New("boom")}, nil)
		if _, err := failing.Lookup(ctx, "paid"); err == nil {
			t.Error("expected error")
		}
	})
}

func TestResolverForCaller(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := stubStore{subs: map[string]*model.Subscription{
		"pro-active":   {UserID: "pro-active", Plan: "pro", Status: model.SubscriptionActive},
		"pro-trial":    {UserID: "pro-trial", Plan: "pro", Status: model.SubscriptionTrialing},
		"pro-canceled": {UserID: "pro-canceled", Plan: "pro", Status: model.SubscriptionCanceled},
		"odd-plan":     {UserID: "odd-plan", Plan: "platinum", Status: model.SubscriptionActive},
	}}
	r := NewResolver(store, nil)

	tests := []struct {
		name   string
		caller model.Caller
		want   Tier
	}{
		{"anonymous", model.Caller{ClientIP: "192.0.2.1"}, TierAnonymous},
		{"admin", model.Caller{UserID: "root", IsAdmin: true}, TierAgency},
		{"no subscription", model.Caller{UserID: "nobody"}, TierFree},
		{"active pro", model.Caller{UserID: "pro-active"}, TierPro},
		{"trialing pro", model.Caller{UserID: "pro-trial"}, TierPro},
		{"canceled pro falls back", model.Caller{UserID: "pro-canceled"}, TierFree},
		{"unknown plan name", model.Caller{UserID: "odd-plan"}, TierFree},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := r.ForCaller(ctx, tt.caller)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Tier != tt.want {
				t.Errorf("ForCaller() tier = %q, want %q", got.Tier, tt.want)
			}
		})
	}
}
