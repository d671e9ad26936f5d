package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"finwise/internal/cache"
	apphttp "finwise/internal/http"
	applog "finwise/internal/log"
)

const shutdownTimeout = 30 * time.Second

func newServeCmd(opts *options) *cobra.Command {
	var importsPerMinute int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the JSON API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer rt.Close()

			cacheManager := cache.NewManager(rt.logger)
			cacheManager.Register(rt.summaries)
			cacheManager.StartCleanup(time.Minute)

			srv := apphttp.NewServer(apphttp.Options{
				Addr:             ":" + rt.cfg.Port,
				DefaultUserID:    rt.cfg.DefaultUserID,
				ImportsPerMinute: importsPerMinute,
				Ping:             rt.backend.Ping,
				Logger:           rt.logger,
			}, rt.ledger, rt.imports)

			ctx, done := GracefulShutdown(cmd.Context(), rt.logger, shutdownTimeout, func(shutdownCtx context.Context) {
				if err := srv.Shutdown(shutdownCtx); err != nil {
					rt.logger.Error("Server shutdown error", applog.FieldError, err.Error())
				}
				cacheManager.Stop()
			})

			rt.logger.Info("Starting finwise server",
				"port", rt.cfg.Port,
				"backend", rt.cfg.DataBackend,
				"policy", rt.cfg.Policy(),
				"amqp", rt.backend.Publisher != nil)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server on port %s: %w", rt.cfg.Port, err)
			}

			WaitForShutdown(ctx, done)
			rt.logger.Info("Server stopped gracefully")
			return nil
		},
	}
	cmd.Flags().IntVar(&importsPerMinute, "imports-per-minute", 30, "per-user limit for POST /api/import")
	return cmd
}
