package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/edwin001-tech/misused-senders/internal/events"
	"github.com/edwin001-tech/misused-senders/internal/httpapi"
	"github.com/edwin001-tech/misused-senders/internal/job"
	"github.com/edwin001-tech/misused-senders/internal/scheduler"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var noSchedule bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and run the audit on its daily schedule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(opts)
			if err != nil {
				return err
			}
			defer func() { _ = a.log.Sync() }()

			ctx := cmd.Context()
			hub := events.NewHub()
			runner, ledger, err := a.buildRunner(ctx, hub)
			if err != nil {
				return err
			}
			defer ledger.Close()

			var cfgVal atomic.Value
			cfgVal.Store(a.cfg)

			g, gctx := errgroup.WithContext(ctx)
			srv := httpapi.NewServer(httpapi.Deps{
				Runner:  runner,
				Ledger:  ledger,
				Hub:     hub,
				Log:     a.log.Named("http"),
				CfgVal:  &cfgVal,
				BaseCtx: gctx,
			})
			var daily *scheduler.Daily
			if !noSchedule {
				daily, err = scheduler.NewDaily(a.cfg.Schedule, "misused-senders", func(ctx context.Context) error {
					_, err := runner.Run(ctx)
					if errors.Is(err, job.ErrAlreadyRunning) {
						return nil
					}
					return err
				}, a.log)
				if err != nil {
					return err
				}
			}

			ln, err := net.Listen("tcp", a.cfg.App.HTTPAddr)
			if err != nil {
				return err
			}
			a.log.Info("listening", zap.String("addr", "http://"+ln.Addr().String()), zap.String("ledger", a.ledgerPath()))

			g.Go(func() error {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return srv.Shutdown(sctx)
			})
			if daily != nil {
				g.Go(func() error { return daily.Start(gctx) })
			}
			return g.Wait()
		},
	}
	cmd.Flags().BoolVar(&noSchedule, "no-schedule", false, "Serve the API without the daily schedule")
	return cmd
}
