package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/backlinkscan/internal/config"
	"github.com/nao1215/backlinkscan/internal/model"
	"github.com/nao1215/backlinkscan/internal/pipeline"
)

// localOperator is the caller used for CLI scans without --user. The
// operator of the installation is not metered.
var localOperator = model.Caller{UserID: "local", IsAdmin: true}

// errScanFailed is returned when at least one target could not be scanned.
var errScanFailed = errors.New("one or more scans failed")

// NewScanCmd creates the scan command.
func NewScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan <domain>...",
		Short: "Crawl a site and record its outbound links",
		Long: `Scan crawls a site breadth-first from its home page, classifies every link
that points to another domain and stores the result as a new scan.

Run "backlinkscan reindex" afterwards to fold new scans into the backlink index.

Examples:
  # Scan a single domain
  backlinkscan scan example.com

  # Scan through the rendering service (pro mode)
  backlinkscan scan --mode pro example.com

  # Scan on behalf of a user, applying their plan and daily quota
  backlinkscan scan --user user_123 example.com

  # Output JSON
  backlinkscan scan --json example.com`,
		Args: cobra.MinimumNArgs(1),
		RunE: runScanCmd,
	}

	cmd.Flags().StringP("mode", "m", string(model.ScanModeBasic),
		"Scan mode: basic (direct fetch) or pro (rendered)")
	cmd.Flags().StringP("user", "u", "",
		"Scan as this user id (default: local operator, not metered)")
	cmd.Flags().BoolP("json", "j", false, "Output JSON")
	addCrawlFlags(cmd)

	return cmd
}

// runScanCmd executes the scan command.
func runScanCmd(cmd *cobra.Command, args []string) error {
	mode, err := model.ParseScanMode(flagString(cmd, "mode"))
	if err != nil {
		return err
	}
	caller := localOperator
	if user := flagString(cmd, "user"); user != "" {
		caller = model.Caller{UserID: user}
	}
	jsonOut := flagBool(cmd, "json")

	a, err := newCLIApp(cmd, func(cfg *config.Config) error {
		return applyCrawlFlags(cmd, cfg)
	})
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	return runScans(ctx, a.scanner, args, mode, caller, jsonOut, cmd.OutOrStdout(), cmd.ErrOrStderr())
}

// scanRunner runs one scan.
type scanRunner interface {
	Scan(ctx context.Context, req pipeline.ScanRequest) (*model.ScanResult, error)
}

// runScans scans targets one at a time. A failed target is reported and
// the remaining targets are still scanned.
func runScans(ctx context.Context, s scanRunner, targets []string, mode model.ScanMode, caller model.Caller, jsonOut bool, out, errOut io.Writer) error {
	failed := 0
	for _, target := range targets {
		if err := ctx.Err(); err != nil {
			return err
		}

		start := time.Now()
		result, err := s.Scan(ctx, pipeline.ScanRequest{Target: target, Mode: mode, Caller: caller})
		if err != nil {
			failed++
			writeLine(errOut, "Scan error for %s: %s (%v)", target, pipeline.UserMessage(err), err)
			continue
		}

		if jsonOut {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			if err := enc.Encode(result); err != nil {
				return fmt.Errorf("failed to encode result: %w", err)
			}
			continue
		}
		printScanResult(out, result, time.Since(start))
	}

	if failed > 0 {
		return fmt.Errorf("%w: %d of %d", errScanFailed, failed, len(targets))
	}
	return nil
}

// printScanResult writes a human-readable scan summary.
func printScanResult(w io.Writer, r *model.ScanResult, elapsed time.Duration) {
	writeLine(w, "Scanned %s (%s) in %s", r.Target, r.Mode, elapsed.Round(time.Millisecond))
	writeLine(w, "  Scan ID:            %s", r.ScanID)
	writeLine(w, "  Pages crawled:      %d", r.PagesCrawled)
	writeLine(w, "  Outbound links:     %d", r.TotalBacklinks)
	writeLine(w, "  Linked domains:     %d", r.ReferringDomains)
	if len(r.Errors) > 0 {
		writeLine(w, "  Page errors:        %d", len(r.Errors))
	}

	if len(r.Links) > 0 {
		writeLine(w, "")
		for _, link := range r.Links {
			writeLine(w, "  [%-9s] %s", link.Category.Label(), link.TargetURL)
		}
		if len(r.Links) < r.TotalBacklinks {
			writeLine(w, "  ...and %d more.", r.TotalBacklinks-len(r.Links))
		}
	}
	writeLine(w, "")
}
