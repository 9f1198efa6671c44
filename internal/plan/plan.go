// Package plan maps subscriptions to the limits and features they grant.
//
// A user without a subscription row, or with a subscription that is not
// active, gets the free plan. Anonymous callers get a separate, smaller plan
// keyed by client address.
package plan

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/nao1215/backlinkscan/internal/model"
)

// Tier names a plan.
type Tier string

const (
	// TierAnonymous applies to callers without a user identity.
	TierAnonymous Tier = "anonymous"
	// TierFree applies to users without an active paid subscription.
	TierFree Tier = "free"
	// TierStarter is the entry paid plan.
	TierStarter Tier = "starter"
	// TierPro unlocks rendered scans.
	TierPro Tier = "pro"
	// TierAgency is the largest plan.
	TierAgency Tier = "agency"
)

// Plan describes what a tier allows.
type Plan struct {
	Tier Tier `yaml:"-" json:"tier"`

	// DailyScans is the number of scans per UTC day.
	DailyScans int `yaml:"daily_scans" json:"daily_scans"`

	// ProScans allows the rendered scan mode.
	ProScans bool `yaml:"pro_scans" json:"pro_scans"`

	// Reports enables the periodic email digest.
	Reports bool `yaml:"reports" json:"reports"`

	// SampleLinks caps the number of links returned by an on-demand scan.
	SampleLinks int `yaml:"sample_links" json:"sample_links"`

	// MonitoredDomains caps how many domains a user may monitor.
	MonitoredDomains int `yaml:"monitored_domains" json:"monitored_domains"`
}

// Catalog holds every known plan by tier.
type Catalog map[Tier]Plan

// DefaultCatalog returns the built-in plans.
func DefaultCatalog() Catalog {
	return Catalog{
		TierAnonymous: {Tier: TierAnonymous, DailyScans: 3, SampleLinks: 10},
		TierFree:      {Tier: TierFree, DailyScans: 5, SampleLinks: 25, MonitoredDomains: 1},
		TierStarter:   {Tier: TierStarter, DailyScans: 25, Reports: true, SampleLinks: 100, MonitoredDomains: 5},
		TierPro:       {Tier: TierPro, DailyScans: 100, ProScans: true, Reports: true, SampleLinks: 500, MonitoredDomains: 25},
		TierAgency:    {Tier: TierAgency, DailyScans: 500, ProScans: true, Reports: true, SampleLinks: 1000, MonitoredDomains: 100},
	}
}

// ParseTier parses a stored plan name. Unknown names map to TierFree.
func ParseTier(s string) Tier {
	switch t := Tier(strings.ToLower(strings.TrimSpace(s))); t {
	case TierAnonymous, TierFree, TierStarter, TierPro, TierAgency:
		return t
	default:
		return TierFree
	}
}

// Get returns the plan for tier, falling back to the free plan.
func (c Catalog) Get(tier Tier) Plan {
	if p, ok := c[tier]; ok {
		p.Tier = tier
		return p
	}
	p := c[TierFree]
	p.Tier = TierFree
	return p
}

// Merge returns a copy of c with overrides applied. Override keys are tier
// names; unknown tiers are rejected so a typo in the config file is visible.
func (c Catalog) Merge(overrides map[string]Plan) (Catalog, error) {
	merged := make(Catalog, len(c))
	for tier, p := range c {
		merged[tier] = p
	}
	for name, p := range overrides {
		tier := Tier(strings.ToLower(strings.TrimSpace(name)))
		if _, ok := c[tier]; !ok {
			return nil, fmt.Errorf("unknown plan %q", name)
		}
		if p.DailyScans < 0 || p.SampleLinks < 0 || p.MonitoredDomains < 0 {
			return nil, fmt.Errorf("plan %q: limits must not be negative", name)
		}
		p.Tier = tier
		merged[tier] = p
	}
	return merged, nil
}

// ReportTiers returns the tiers that receive periodic reports, sorted.
func (c Catalog) ReportTiers() []string {
	var tiers []string
	for tier, p := range c {
		if p.Reports && tier != TierAnonymous {
			tiers = append(tiers, string(tier))
		}
	}
	sort.Strings(tiers)
	return tiers
}

// SubscriptionStore loads billing state. It returns nil without error when the
// user has no subscription.
type SubscriptionStore interface {
	GetSubscription(ctx context.Context, userID string) (*model.Subscription, error)
}

// Resolver resolves the effective plan of a caller.
type Resolver struct {
	store   SubscriptionStore
	catalog Catalog
}

// NewResolver creates a Resolver. A nil catalog means DefaultCatalog.
func NewResolver(store SubscriptionStore, catalog Catalog) *Resolver {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	return &Resolver{store: store, catalog: catalog}
}

// Catalog returns the plans the resolver uses.
func (r *Resolver) Catalog() Catalog {
	return r.catalog
}

// Lookup returns userID's subscription. No row yields a free, inactive one.
func (r *Resolver) Lookup(ctx context.Context, userID string) (model.Subscription, error) {
	sub, err := r.store.GetSubscription(ctx, userID)
	if err != nil {
		return model.Subscription{}, fmt.Errorf("failed to load subscription: %w", err)
	}
	if sub == nil {
		return model.Subscription{
			UserID: userID,
			Plan:   string(TierFree),
			Status: model.SubscriptionInactive,
		}, nil
	}
	return *sub, nil
}

// ForCaller returns the plan that applies to caller.
//
// Design decision: admins get the largest plan rather than an unlimited one
// so that sample sizes stay bounded; quota and gating are bypassed elsewhere.
func (r *Resolver) ForCaller(ctx context.Context, caller model.Caller) (Plan, error) {
	if caller.IsAdmin {
		return r.catalog.Get(TierAgency), nil
	}
	if caller.IsAnonymous() {
		return r.catalog.Get(TierAnonymous), nil
	}

	sub, err := r.Lookup(ctx, caller.UserID)
	if err != nil {
		return Plan{}, err
	}
	if !sub.IsActive() {
		return r.catalog.Get(TierFree), nil
	}
	return r.catalog.Get(ParseTier(sub.Plan)), nil
}
