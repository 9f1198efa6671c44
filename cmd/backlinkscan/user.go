package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/mail"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/backlinkscan/internal/apikey"
	"github.com/nao1215/backlinkscan/internal/model"
	"github.com/nao1215/backlinkscan/internal/plan"
	"github.com/nao1215/backlinkscan/internal/urlnorm"
)

// errDomainLimit is returned when a user would exceed the monitored
// domains of their plan.
var errDomainLimit = errors.New("monitored domain limit reached")

// NewUserCmd creates the user command and its subcommands.
func NewUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage users, API keys and monitored domains",
		Long: `User manages the accounts served by the API.

Subscriptions are normally written by the billing integration; these commands
cover local installations and support work.`,
	}
	cmd.AddCommand(newUserAddCmd())
	cmd.AddCommand(newUserKeyCmd())
	cmd.AddCommand(newUserMonitorCmd())
	return cmd
}

func newUserAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <user-id>",
		Short: "Create or update a user and issue an API key",
		Long: `Add creates or updates the subscription of a user, attaches the given
monitored domains and prints a new API key. The key is shown only once.

Examples:
  backlinkscan user add user_123 --email owner@example.com --plan starter --domain example.com`,
		Args: cobra.ExactArgs(1),
		RunE: runUserAddCmd,
	}
	cmd.Flags().StringP("email", "e", "", "Report recipient address")
	cmd.Flags().StringP("plan", "p", string(plan.TierFree), "Plan tier: free, starter, pro or agency")
	cmd.Flags().String("status", model.SubscriptionActive, "Subscription status: active, trialing, canceled or past_due")
	cmd.Flags().StringSliceP("domain", "d", nil, "Monitored domain (repeatable)")
	cmd.Flags().Bool("admin", false, "Issue an admin key (bypasses plan limits and quota)")
	return cmd
}

func newUserKeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "key <user-id>",
		Short: "Issue an additional API key for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newCLIApp(cmd, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			key, err := issueKey(cmd.Context(), a.db, args[0], flagBool(cmd, "admin"), time.Now().UTC())
			if err != nil {
				return err
			}
			printKey(cmd.OutOrStdout(), args[0], key)
			return nil
		},
	}
	cmd.Flags().Bool("admin", false, "Issue an admin key (bypasses plan limits and quota)")
	return cmd
}

func newUserMonitorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "monitor <user-id> <domain>...",
		Short: "Add monitored domains to a user's reports",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newCLIApp(cmd, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			sub, err := a.plans.Lookup(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			limit := a.catalog.Get(effectiveTier(sub)).MonitoredDomains
			added, err := addDomains(cmd.Context(), a.db, args[0], args[1:], limit, time.Now().UTC())
			if err != nil {
				return err
			}
			writeLine(cmd.OutOrStdout(), "Monitoring %s", strings.Join(added, ", "))
			return nil
		},
	}
}

// accountStore is the persistence used by the user commands.
type accountStore interface {
	UpsertSubscription(ctx context.Context, sub model.Subscription) error
	SaveAPIKey(ctx context.Context, keyHash, userID string, isAdmin bool, now time.Time) error
	AddMonitoredDomain(ctx context.Context, userID, domain string, now time.Time) error
	ListMonitoredDomains(ctx context.Context, userID string) ([]string, error)
}

// runUserAddCmd executes the user add command.
func runUserAddCmd(cmd *cobra.Command, args []string) error {
	userID := strings.TrimSpace(args[0])
	if userID == "" {
		return errors.New("user id must not be empty")
	}

	email, err := cmd.Flags().GetString("email")
	if err != nil {
		return err
	}
	if email != "" {
		if _, err := mail.ParseAddress(email); err != nil {
			return fmt.Errorf("invalid email %q: %w", email, err)
		}
	}
	status, err := cmd.Flags().GetString("status")
	if err != nil {
		return err
	}
	if !validStatus(status) {
		return fmt.Errorf("invalid status %q", status)
	}
	tier := plan.ParseTier(flagString(cmd, "plan"))
	domains, err := cmd.Flags().GetStringSlice("domain")
	if err != nil {
		return err
	}

	a, err := newCLIApp(cmd, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	now := time.Now().UTC()
	sub := model.Subscription{UserID: userID, Plan: string(tier), Status: status, Email: email, UpdatedAt: now}
	if err := a.db.UpsertSubscription(ctx, sub); err != nil {
		return err
	}

	if len(domains) > 0 {
		limit := a.catalog.Get(effectiveTier(sub)).MonitoredDomains
		if _, err := addDomains(ctx, a.db, userID, domains, limit, now); err != nil {
			return err
		}
	}

	key, err := issueKey(ctx, a.db, userID, flagBool(cmd, "admin"), now)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	writeLine(out, "User %s: plan %s (%s)", userID, tier, status)
	printKey(out, userID, key)
	return nil
}

// issueKey generates a key for userID and stores its hash.
func issueKey(ctx context.Context, store accountStore, userID string, isAdmin bool, now time.Time) (string, error) {
	key, err := apikey.Generate()
	if err != nil {
		return "", err
	}
	if err := store.SaveAPIKey(ctx, apikey.Hash(key), userID, isAdmin, now); err != nil {
		return "", err
	}
	return key, nil
}

// addDomains normalizes and attaches domains to userID without exceeding
// limit monitored domains in total. Already monitored domains do not count
// twice. It returns the normalized domains.
func addDomains(ctx context.Context, store accountStore, userID string, raw []string, limit int, now time.Time) ([]string, error) {
	existing, err := store.ListMonitoredDomains(ctx, userID)
	if err != nil {
		return nil, err
	}
	known := make(map[string]bool, len(existing))
	for _, d := range existing {
		known[d] = true
	}

	domains := make([]string, 0, len(raw))
	total := len(existing)
	for _, r := range raw {
		d := urlnorm.Normalize(r)
		if d == "" {
			return nil, fmt.Errorf("invalid domain: %q", r)
		}
		domains = append(domains, d)
		if !known[d] {
			known[d] = true
			total++
		}
	}
	if total > limit {
		return nil, fmt.Errorf("%w: plan allows %d, requested %d", errDomainLimit, limit, total)
	}

	for _, d := range domains {
		if err := store.AddMonitoredDomain(ctx, userID, d, now); err != nil {
			return nil, err
		}
	}
	return domains, nil
}

// effectiveTier is the tier whose limits apply to sub.
func effectiveTier(sub model.Subscription) plan.Tier {
	if !sub.IsActive() {
		return plan.TierFree
	}
	return plan.ParseTier(sub.Plan)
}

// validStatus reports whether s is a known subscription status.
func validStatus(s string) bool {
	switch s {
	case model.SubscriptionActive, model.SubscriptionTrialing,
		model.SubscriptionCanceled, model.SubscriptionPastDue:
		return true
	default:
		return false
	}
}

// printKey writes a newly issued key.
func printKey(w io.Writer, userID, key string) {
	writeLine(w, "API key for %s (shown once, store it safely):", userID)
	writeLine(w, "  %s", key)
}
