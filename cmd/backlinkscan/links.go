package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/backlinkscan/internal/analysis"
	"github.com/nao1215/backlinkscan/internal/database"
	"github.com/nao1215/backlinkscan/internal/model"
	"github.com/nao1215/backlinkscan/internal/urlnorm"
)

// linksHistoryScans is the number of recent scans used for the authority trend.
const linksHistoryScans = 50

// NewLinksCmd creates the links command.
func NewLinksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "links [domain]",
		Short: "Show the backlink index and metrics of a domain",
		Long: `Links prints the indexed links of a domain together with its derived metrics:
toxicity, nofollow share, authority trend, link velocity and category breakdown.
Without a domain, it lists every scanned target and when it was last indexed.

The index is only as fresh as the last reindex of the domain.

Examples:
  backlinkscan links
  backlinkscan links example.com
  backlinkscan links --limit 0 --json example.com`,
		Args: cobra.MaximumNArgs(1),
		RunE: runLinksCmd,
	}

	cmd.Flags().IntP("limit", "l", 50, "Maximum number of links to print (0 = all)")
	cmd.Flags().BoolP("json", "j", false, "Output JSON")

	return cmd
}

// linksView is the output of the links command.
type linksView struct {
	Target        string              `json:"target"`
	LastIndexedAt *time.Time          `json:"last_indexed_at,omitempty"`
	Summary       analysis.Summary    `json:"summary"`
	Links         []model.IndexedLink `json:"links"`
}

// linksStore is the read side used by the links command.
type linksStore interface {
	GetTarget(ctx context.Context, domain string) (*model.Target, error)
	ListIndexedLinks(ctx context.Context, targetDomain string) ([]model.IndexedLink, error)
	ListScans(ctx context.Context, domain string, limit int) ([]model.Scan, error)
}

// runLinksCmd executes the links command.
func runLinksCmd(cmd *cobra.Command, args []string) error {
	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}

	a, err := newCLIApp(cmd, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	if len(args) == 0 {
		return listTargets(cmd.Context(), a.db, flagBool(cmd, "json"), cmd.OutOrStdout())
	}

	view, err := loadLinks(cmd.Context(), a.db, args[0], time.Now().UTC())
	if err != nil {
		return err
	}
	if limit > 0 && len(view.Links) > limit {
		view.Links = view.Links[:limit]
	}

	if flagBool(cmd, "json") {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(view)
	}
	printLinks(cmd.OutOrStdout(), view)
	return nil
}

// loadLinks reads the index and scan history of raw and summarizes it.
func loadLinks(ctx context.Context, store linksStore, raw string, now time.Time) (*linksView, error) {
	domain := urlnorm.Normalize(raw)
	if domain == "" {
		return nil, fmt.Errorf("invalid domain: %q", raw)
	}

	target, err := store.GetTarget(ctx, domain)
	if errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("%s has not been scanned yet", domain)
	}
	if err != nil {
		return nil, err
	}

	links, err := store.ListIndexedLinks(ctx, domain)
	if err != nil {
		return nil, err
	}
	scans, err := store.ListScans(ctx, domain, linksHistoryScans)
	if err != nil {
		return nil, err
	}
	if links == nil {
		links = []model.IndexedLink{}
	}

	return &linksView{
		Target:        domain,
		LastIndexedAt: target.LastIndexedAt,
		Summary:       analysis.Summarize(domain, links, scans, now, analysis.DefaultWindow),
		Links:         links,
	}, nil
}

// printLinks writes a human-readable view of the index.
func printLinks(w io.Writer, v *linksView) {
	s := v.Summary
	writeLine(w, "%s", v.Target)
	if v.LastIndexedAt == nil {
		writeLine(w, "  Not indexed yet. Run: backlinkscan reindex %s", v.Target)
	} else {
		writeLine(w, "  Last indexed:       %s", formatTime(*v.LastIndexedAt))
	}
	writeLine(w, "  Indexed links:      %d", s.TotalLinks)
	writeLine(w, "  Referring domains:  %d", s.ReferringDomains)
	writeLine(w, "  Toxicity:           %.1f%%", s.ToxicityPercent)
	writeLine(w, "  Nofollow:           %.1f%%", s.NofollowPercent)
	writeLine(w, "  Authority trend:    %s (%d -> %d)", s.Authority.Direction, s.Authority.Previous, s.Authority.Current)
	writeLine(w, "  Velocity:           +%d / -%d in %d days", s.Velocity.New, s.Velocity.Lost, s.Velocity.WindowDays)

	if len(s.Categories) > 0 {
		parts := make([]string, 0, len(s.Categories))
		for _, c := range s.Categories {
			parts = append(parts, fmt.Sprintf("%s %d", c.Label, c.Count))
		}
		writeLine(w, "  Categories:         %s", strings.Join(parts, ", "))
	}

	if len(v.Links) == 0 {
		return
	}
	writeLine(w, "")
	for _, l := range v.Links {
		writeLine(w, "  %-16s  %-9s  %s", formatTime(l.LastSeen), l.Category.Label(), l.LinkingURL)
	}
	if len(v.Links) < s.TotalLinks {
		writeLine(w, "  ...and %d more.", s.TotalLinks-len(v.Links))
	}
}

// targetLister lists every scanned target.
type targetLister interface {
	ListTargets(ctx context.Context) ([]model.Target, error)
}

// listTargets writes one line per target, or a JSON array.
func listTargets(ctx context.Context, store targetLister, jsonOut bool, w io.Writer) error {
	targets, err := store.ListTargets(ctx)
	if err != nil {
		return err
	}
	if jsonOut {
		if targets == nil {
			targets = []model.Target{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(targets)
	}

	if len(targets) == 0 {
		writeLine(w, "No targets scanned yet.")
		return nil
	}
	for _, t := range targets {
		indexed := "never indexed"
		if t.LastIndexedAt != nil {
			indexed = "indexed " + formatTime(*t.LastIndexedAt)
		}
		writeLine(w, "%-30s  %s", t.Domain, indexed)
	}
	return nil
}
