package model

import "time"

// Caller identifies who invoked a pipeline entry point.
// It is resolved once at the edge and passed explicitly.
type Caller struct {
	// UserID is empty for anonymous callers.
	UserID string

	// IsAdmin bypasses plan gating and quota.
	IsAdmin bool

	// ClientIP keys the anonymous quota bucket.
	ClientIP string
}

// IsAnonymous reports whether the caller has no user identity.
func (c Caller) IsAnonymous() bool {
	return c.UserID == ""
}

// QuotaKey returns the ledger key for this caller.
func (c Caller) QuotaKey() string {
	if c.IsAnonymous() {
		if c.ClientIP == "" {
			return "anon"
		}
		return "anon:" + c.ClientIP
	}
	return c.UserID
}

// QuotaUsage is a per-user daily counter.
// ResetAt is always the next UTC midnight at the time of the last write.
type QuotaUsage struct {
	UserID  string    `json:"user_id"`
	Used    int       `json:"used"`
	Limit   int       `json:"limit"`
	ResetAt time.Time `json:"reset_at"`
}

// Remaining returns how many reservations are left in the current window.
func (q QuotaUsage) Remaining() int {
	if q.Used >= q.Limit {
		return 0
	}
	return q.Limit - q.Used
}

// Subscription status values as written by the billing integration.
const (
	SubscriptionActive   = "active"
	SubscriptionTrialing = "trialing"
	SubscriptionCanceled = "canceled"
	SubscriptionPastDue  = "past_due"

	// SubscriptionInactive is reported for users without a subscription row.
	SubscriptionInactive = "inactive"
)

// Subscription is the billing state of a user.
// Absence of a row means free and inactive.
type Subscription struct {
	UserID    string    `json:"user_id"`
	Plan      string    `json:"plan"`
	Status    string    `json:"status"`
	Email     string    `json:"email,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsActive reports whether the subscription grants its plan.
func (s *Subscription) IsActive() bool {
	if s == nil {
		return false
	}
	return s.Status == SubscriptionActive || s.Status == SubscriptionTrialing
}
