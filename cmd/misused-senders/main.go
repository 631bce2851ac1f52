// Command misused-senders audits the day's SMS campaigns for sender IDs
// registered as Transactional but used for other traffic, and mails the
// offenders as a CSV report.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// rootOptions holds the persistent flags shared by every subcommand.
type rootOptions struct {
	configPath string
	dataDir    string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "misused-senders",
		Short: "Audit SMS sender IDs against the traffic they carry",
		Long: `misused-senders reads the last day of SMS campaigns, labels each message
Transactional or Promotional with a zero-shot classifier, and emails a CSV of
every message whose label disagrees with its sender ID's registered type.

Subcommands:
  run      - one audit now (the daily job)
  serve    - HTTP API plus the daily scheduler
  history  - past runs from the local ledger
  config   - create or validate the config file
  secrets  - store passwords and tokens in the OS keychain`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Config file (default: <data-dir>/config.yml)")
	root.PersistentFlags().StringVar(&opts.dataDir, "data-dir", "", "Data directory for config, ledger and lock (or set DATA_DIR env)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")

	root.AddCommand(
		newRunCmd(opts),
		newServeCmd(opts),
		newHistoryCmd(opts),
		newConfigCmd(opts),
		newSecretsCmd(),
	)
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
