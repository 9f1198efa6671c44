package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nao1215/backlinkscan/internal/config"
	"github.com/nao1215/backlinkscan/internal/indexer"
	"github.com/nao1215/backlinkscan/internal/urlnorm"
)

// NewReindexCmd creates the reindex command.
func NewReindexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reindex [domain]...",
		Short: "Rebuild the backlink index from stored scans",
		Long: `Reindex folds every stored scan of a target into its backlink index.

Without arguments, one batch of the stalest targets is reindexed (never-indexed
targets first), the same pass the API server runs on its reindex schedule.
With arguments, exactly the given domains are reindexed.

Examples:
  # Reindex one batch of stale targets
  backlinkscan reindex

  # Reindex specific domains
  backlinkscan reindex example.com example.org`,
		RunE: runReindexCmd,
	}

	cmd.Flags().IntP("batch", "b", config.DefaultReindexBatchSize,
		"Number of stale targets per batch")

	return cmd
}

// runReindexCmd executes the reindex command.
func runReindexCmd(cmd *cobra.Command, args []string) error {
	a, err := newCLIApp(cmd, func(cfg *config.Config) error {
		var err error
		cfg.ReindexBatchSize, err = cmd.Flags().GetInt("batch")
		return err
	})
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if len(args) == 0 {
		result, err := a.reindexer.Run(ctx)
		if result != nil {
			printReindexResults(cmd.OutOrStdout(), result.Targets)
		}
		return err
	}
	return reindexDomains(ctx, a.reindexer, args, cmd.OutOrStdout())
}

// domainReindexer reindexes one domain.
type domainReindexer interface {
	ReindexDomain(ctx context.Context, domain string) (indexer.TargetResult, error)
}

// reindexDomains reindexes the given domains in order. A failing domain is
// reported and does not stop the others.
func reindexDomains(ctx context.Context, r domainReindexer, domains []string, out io.Writer) error {
	results := make([]indexer.TargetResult, 0, len(domains))
	failed := 0
	for _, raw := range domains {
		domain := urlnorm.Normalize(raw)
		if domain == "" {
			results = append(results, indexer.TargetResult{Domain: raw, Error: "invalid domain"})
			failed++
			continue
		}
		res, err := r.ReindexDomain(ctx, domain)
		if err != nil {
			failed++
			if res.Error == "" {
				res.Error = err.Error()
			}
		}
		results = append(results, res)
	}

	printReindexResults(out, results)
	if failed > 0 {
		return fmt.Errorf("reindex failed for %d of %d domains", failed, len(domains))
	}
	return nil
}

// printReindexResults writes one line per target.
func printReindexResults(w io.Writer, results []indexer.TargetResult) {
	if len(results) == 0 {
		writeLine(w, "Nothing to reindex.")
		return
	}
	for _, r := range results {
		if r.Error != "" {
			writeLine(w, "%-30s  error: %s", r.Domain, r.Error)
			continue
		}
		writeLine(w, "%-30s  %d links from %d scans", r.Domain, r.RowsWritten, r.ScansConsumed)
	}
}
