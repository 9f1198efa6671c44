package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for backlinkscan.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backlinkscan",
		Short: "Backlink crawler, index and report service",
		Long: `backlinkscan crawls websites, classifies every outbound link and keeps a
deduplicated backlink index per target domain.

Scans can be run from the command line or through the HTTP API started by
"backlinkscan serve", which also schedules reindex and report batches.

Secrets are read from the environment or a .env file:
  BACKLINKSCAN_RENDER_URL, BACKLINKSCAN_RENDER_TOKEN, BACKLINKSCAN_CRON_SECRET,
  BACKLINKSCAN_SMTP_HOST, BACKLINKSCAN_SMTP_PORT, BACKLINKSCAN_SMTP_USERNAME,
  BACKLINKSCAN_SMTP_PASSWORD, BACKLINKSCAN_SMTP_FROM, BACKLINKSCAN_PROXY`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().StringP("config", "c", "",
		"Configuration file path (default: .backlinkscan in current or home directory)")
	cmd.PersistentFlags().String("db-dir", "",
		"Database directory (default: XDG data directory)")

	cmd.AddCommand(NewScanCmd())
	cmd.AddCommand(NewReindexCmd())
	cmd.AddCommand(NewReportCmd())
	cmd.AddCommand(NewLinksCmd())
	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewUserCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
