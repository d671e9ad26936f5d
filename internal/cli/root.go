package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"finwise/internal/backend"
	"finwise/internal/cache"
	"finwise/internal/config"
	"finwise/internal/core"
	applog "finwise/internal/log"
	"finwise/internal/services"
)

// options are the persistent flags shared by every command.
type options struct {
	configFile string
	userID     string
}

// NewRootCommand builds the finwise command tree.
func NewRootCommand() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "finwise",
		Short: "Personal ledger with CSV import and negative balance protection",
		Long: `finwise keeps a per-user ledger of income and expense transactions.
It imports CSV files, computes balances and category totals, guards against
negative balances and exports the ledger back to CSV.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.configFile, "config", "", "TOML config file (overrides "+config.FileEnv+")")
	root.PersistentFlags().StringVarP(&opts.userID, "user", "u", "", "user id (defaults to DEFAULT_USER_ID)")

	root.AddCommand(
		newServeCmd(opts),
		newWorkerCmd(opts),
		newImportCmd(opts),
		newExportCmd(opts),
		newSummaryCmd(opts),
		newMigrateCmd(opts),
	)
	return root
}

// Execute runs the command tree with os.Args.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

// ExecuteCommand runs a single subcommand, for binaries that only serve one
// purpose. Extra arguments from os.Args are passed through.
func ExecuteCommand(name string) {
	root := NewRootCommand()
	root.SetArgs(append([]string{name}, os.Args[1:]...))
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// runtime is what a command needs to talk to the ledger.
type runtime struct {
	cfg       *config.Config
	logger    *applog.Logger
	backend   *backend.BackendResult
	summaries *cache.LRUCache[core.LedgerSummary]
	ledger    *services.LedgerService
	imports   *services.ImportService
	user      string
}

func loadConfig(opts *options) (*config.Config, error) {
	LoadEnvFile()
	if opts.configFile != "" {
		if err := os.Setenv(config.FileEnv, opts.configFile); err != nil {
			return nil, fmt.Errorf("set %s: %w", config.FileEnv, err)
		}
	}
	cfg, err := LoadAndValidateConfig()
	if err != nil {
		return nil, err
	}
	if opts.userID != "" {
		cfg.DefaultUserID = opts.userID
	}
	return cfg, nil
}

func openRuntime(ctx context.Context, opts *options) (*runtime, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	logger := SetupLogger(cfg)

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	result, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		return nil, fmt.Errorf("create %s backend: %w", backendCfg.Type, err)
	}

	summaries := cache.NewLRUCache[core.LedgerSummary](cfg.SummaryCacheSize, cfg.SummaryCacheTTL)
	ledger := services.NewLedgerService(result.Ledger, services.LedgerOptions{
		Policy:             cfg.Policy(),
		CorrectionCategory: cfg.CorrectionCategory,
		Cache:              summaries,
		Publisher:          result.Publisher,
	})

	return &runtime{
		cfg:       cfg,
		logger:    logger,
		backend:   result,
		summaries: summaries,
		ledger:    ledger,
		imports:   services.NewImportService(result.Ledger, ledger, cfg.MaxImportBytes),
		user:      cfg.DefaultUserID,
	}, nil
}

// context returns ctx carrying the runtime logger scoped to the user.
func (rt *runtime) context(ctx context.Context) context.Context {
	return applog.NewContext(ctx, rt.logger.WithComponent(applog.ComponentCLI).With(applog.FieldUserID, rt.user))
}

func (rt *runtime) Close() {
	if err := rt.backend.Close(); err != nil {
		rt.logger.Error("Failed to close backend", applog.FieldError, err.Error())
	}
}
