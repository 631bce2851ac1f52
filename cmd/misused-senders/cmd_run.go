package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/edwin001-tech/misused-senders/internal/job"
)

func newRunCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run one audit now and email the report",
		Long: `Run one audit: fetch the last window of campaigns, classify, compare,
email the CSV and delete it. Exits non-zero when the run fails.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(opts)
			if err != nil {
				return err
			}
			defer func() { _ = a.log.Sync() }()

			ctx := cmd.Context()
			runner, ledger, err := a.buildRunner(ctx, nil)
			if err != nil {
				return err
			}
			defer ledger.Close()

			res, err := runner.Run(ctx)
			msg, _ := job.Outcome(err)
			if err != nil {
				a.log.Error("task completed: "+msg, zap.String("run_id", res.RunID), zap.Error(err))
				return err
			}
			a.log.Info("task completed: "+msg,
				zap.String("run_id", res.RunID),
				zap.Int("processed", res.Processed),
				zap.Int("mismatches", res.Mismatches),
				zap.Duration("took", res.Duration),
			)
			return nil
		},
	}
}
