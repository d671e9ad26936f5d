package cli

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"finwise/internal/backend"
	"finwise/internal/export"
	"finwise/internal/storage"
)

func newImportCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Import transactions from a CSV file (- reads stdin)",
		Long: `Import transactions from a CSV file with the header
date,description,category,type,amount. Missing categories are created.
Rows that cannot be imported are listed and skipped.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer rt.Close()

			in := cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("open import file: %w", err)
				}
				defer f.Close()
				if info, err := f.Stat(); err == nil {
					rt.logger.Debug("Reading import file", "path", args[0], "size", humanize.Bytes(uint64(info.Size())))
				}
				in = f
			}

			out, err := rt.imports.Import(rt.context(cmd.Context()), rt.user, bufio.NewReader(in))
			if err != nil {
				return fmt.Errorf("import (limit %s): %w", humanize.Bytes(uint64(rt.cfg.MaxImportBytes)), err)
			}

			w := cmd.OutOrStdout()
			fmt.Fprintln(w, out.Message())
			for _, f := range out.Failures {
				fmt.Fprintf(w, "  row %d: %s: %s\n", f.Row, f.Code, f.Reason)
			}
			return nil
		},
	}
}

func newExportCmd(opts *options) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export all transactions to CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer rt.Close()

			if output == "-" {
				return rt.ledger.Export(rt.context(cmd.Context()), rt.user, cmd.OutOrStdout())
			}
			if output == "" {
				output = export.Filename(time.Now())
			}
			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("create export file: %w", err)
			}
			if err := rt.ledger.Export(rt.context(cmd.Context()), rt.user, f); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("close export file: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported to %s\n", output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (- for stdout, default transactions_<date>.csv)")
	return cmd
}

func newSummaryCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Show balance, totals and category totals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer rt.Close()

			ctx := rt.context(cmd.Context())
			sum, err := rt.ledger.Summary(ctx, rt.user)
			if err != nil {
				return err
			}
			cats, err := rt.ledger.ListCategories(ctx, rt.user)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(tw, "Total income\t%s\n", sum.TotalIncome.StringFixed(2))
			fmt.Fprintf(tw, "Total expense\t%s\n", sum.TotalExpense.StringFixed(2))
			fmt.Fprintf(tw, "Balance\t%s\n", sum.Balance.StringFixed(2))
			if len(cats) > 0 {
				fmt.Fprintln(tw, "\t")
				fmt.Fprintln(tw, "Category\tType\tTotal")
				for _, c := range cats {
					total, _ := sum.CategoryTotal(c.ID)
					fmt.Fprintf(tw, "%s\t%s\t%s\n", c.Name, c.Kind, total.StringFixed(2))
				}
			}
			return tw.Flush()
		},
	}
}

func newMigrateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply SQLite schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			logger := SetupLogger(cfg)
			if backend.BackendType(cfg.DataBackend) != backend.SQLiteBackend {
				return fmt.Errorf("migrate needs DATA_BACKEND=sqlite, got %q", cfg.DataBackend)
			}
			if err := os.MkdirAll(filepath.Dir(cfg.SQLiteDBPath), 0o755); err != nil {
				return fmt.Errorf("create db directory: %w", err)
			}
			if err := storage.RunMigrations(cfg.SQLiteDBPath); err != nil {
				return err
			}
			version, dirty, err := storage.SchemaVersion(cfg.SQLiteDBPath)
			if err != nil {
				return err
			}
			logger.Info("Migrations applied", "db_path", cfg.SQLiteDBPath, "version", version, "dirty", dirty)
			fmt.Fprintf(cmd.OutOrStdout(), "Schema version %d\n", version)
			return nil
		},
	}
}
