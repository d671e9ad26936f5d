package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"finwise/internal/amqp"
	applog "finwise/internal/log"
	"finwise/internal/sheets"
	gsheet "finwise/internal/sheets/google"
	"finwise/internal/worker"
)

func newWorkerCmd(opts *options) *cobra.Command {
	cfg := worker.DefaultConfig()
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Consume ledger change notifications and refresh summaries",
		Long: `The worker consumes ledger.changed messages from AMQP, recomputes the
summary of the affected user and, when Google Sheets is configured, mirrors
the ledger to one tab per user.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer rt.Close()
			logger := rt.logger.WithComponent(applog.ComponentWorker)

			if rt.cfg.AMQPURL == "" {
				return errors.New("worker needs AMQP_URL")
			}
			consumer, err := amqp.NewClient(rt.cfg.AMQPURL, rt.cfg.AMQPExchange, rt.cfg.AMQPQueue)
			if err != nil {
				return fmt.Errorf("connect to AMQP: %w", err)
			}
			defer consumer.Close()

			mirror, err := newMirror(cmd.Context(), rt)
			if err != nil {
				return err
			}

			if rt.user != "" {
				cfg.Users = append(cfg.Users, rt.user)
			}
			w := worker.NewSummaryWorker(rt.ledger, mirror, cfg)

			ctx, done := GracefulShutdown(cmd.Context(), logger, shutdownTimeout, nil)
			ctx = applog.NewContext(ctx, logger)

			if err := w.Start(ctx); err != nil {
				return err
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return consumer.ConsumeLedgerChanged(gctx, w.HandleLedgerChanged)
			})
			logger.Info("Worker started",
				"exchange", rt.cfg.AMQPExchange,
				"queue", rt.cfg.AMQPQueue,
				"mirror", mirror != nil)

			err = g.Wait()
			if stopErr := w.Stop(context.Background()); stopErr != nil {
				logger.Error("Failed to stop summary worker", applog.FieldError, stopErr.Error())
			}
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			WaitForShutdown(ctx, done)
			logger.Info("Worker stopped gracefully")
			return nil
		},
	}
	cmd.Flags().DurationVar(&cfg.ResyncInterval, "resync-interval", cfg.ResyncInterval, "how often every known user is mirrored again")
	return cmd
}

// newMirror returns the Google Sheets mirror, or nil when it is not
// configured.
func newMirror(ctx context.Context, rt *runtime) (sheets.Mirror, error) {
	if !rt.cfg.SheetsEnabled() {
		rt.logger.Info("Google Sheets not configured, summaries are only logged")
		return nil, nil
	}
	client, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:      rt.cfg.GoogleSpreadsheetID,
		SheetName:          rt.cfg.GoogleSheetName,
		ServiceAccountFile: rt.cfg.GoogleServiceAccountFile,
		ServiceAccountJSON: rt.cfg.GoogleServiceAccountJSON,
	})
	if err != nil {
		return nil, fmt.Errorf("init Google Sheets mirror: %w", err)
	}
	return client, nil
}
