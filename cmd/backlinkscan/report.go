package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nao1215/backlinkscan/internal/config"
	"github.com/nao1215/backlinkscan/internal/report"
	"github.com/nao1215/backlinkscan/internal/urlnorm"
)

// NewReportCmd creates the report command.
func NewReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report [domain]...",
		Short: "Send due reports or preview the report of a domain",
		Long: `Without arguments, report delivers one batch of due subscriber reports, the
same pass the API server runs on its report schedule. When SMTP is not
configured, reports are logged instead of sent.

With arguments, report renders the digest of the given domains for the last
report interval without sending anything.

Examples:
  # Deliver due reports
  backlinkscan report

  # Preview a report as Markdown
  backlinkscan report --format markdown example.com

  # Write a JSON report to a file
  backlinkscan report -f json -o reports/example.json example.com`,
		RunE: runReportCmd,
	}

	cmd.Flags().StringP("format", "f", config.FormatText,
		"Preview format: text, json or markdown")
	cmd.Flags().StringP("output", "o", "",
		"Write the preview to this file (creates directories if needed)")
	cmd.Flags().IntP("batch", "b", config.DefaultReportBatchSize,
		"Number of subscribers per batch")

	return cmd
}

// runReportCmd executes the report command.
func runReportCmd(cmd *cobra.Command, args []string) error {
	a, err := newCLIApp(cmd, func(cfg *config.Config) error {
		var err error
		if cfg.ReportFormat, err = cmd.Flags().GetString("format"); err != nil {
			return err
		}
		if cfg.ReportFile, err = cmd.Flags().GetString("output"); err != nil {
			return err
		}
		cfg.ReportBatchSize, err = cmd.Flags().GetInt("batch")
		return err
	})
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if len(args) == 0 {
		result, err := a.reporter.Run(ctx)
		if result != nil {
			printReportResults(cmd.OutOrStdout(), result)
		}
		return err
	}
	return previewReport(ctx, a.reporter, args, a.cfg.ReportFormat, a.cfg.ReportFile, cmd.OutOrStdout())
}

// digestBuilder builds a digest of domains.
type digestBuilder interface {
	Build(ctx context.Context, domains []string) (*report.Digest, error)
}

// previewReport renders the digest of domains to outputPath, or to out when
// outputPath is empty.
func previewReport(ctx context.Context, b digestBuilder, args []string, format, outputPath string, out io.Writer) error {
	domains := make([]string, 0, len(args))
	for _, raw := range args {
		domain := urlnorm.Normalize(raw)
		if domain == "" {
			return fmt.Errorf("invalid domain: %q", raw)
		}
		domains = append(domains, domain)
	}

	digest, err := b.Build(ctx, domains)
	if err != nil {
		return fmt.Errorf("failed to build report: %w", err)
	}

	if outputPath != "" {
		if dir := filepath.Dir(outputPath); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return fmt.Errorf("failed to create directory: %w", err)
			}
		}
		f, err := os.Create(outputPath) //nolint:gosec // User-provided output path is intentional
		if err != nil {
			return fmt.Errorf("failed to create report file: %w", err)
		}
		defer f.Close()
		out = f
	}

	w, ok := report.NewWriter(format, out)
	if !ok {
		return fmt.Errorf("%w: %q", config.ErrInvalidReportFormat, format)
	}
	if _, err := w.Write(digest); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// printReportResults writes one line per subscriber.
func printReportResults(w io.Writer, result *report.BatchResult) {
	if len(result.Users) == 0 {
		writeLine(w, "No reports due.")
		return
	}
	for _, u := range result.Users {
		if u.Error != "" {
			writeLine(w, "%-24s  %-7s  %s", u.UserID, u.Outcome, u.Error)
			continue
		}
		writeLine(w, "%-24s  %-7s  %d domains", u.UserID, u.Outcome, u.Domains)
	}
	writeLine(w, "Sent %d, failed %d.", result.Sent, result.Failed)
}
