package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dvloznov/gestapp/internal/app"
	"github.com/dvloznov/gestapp/internal/domain"
	"github.com/dvloznov/gestapp/internal/nlparse"
	"github.com/dvloznov/gestapp/internal/transactions"
	"github.com/spf13/cobra"
)

func newExportCommand(c *cli) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the ledger as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withOwner(cmd, func(ctx context.Context, a *app.App, userID int64) error {
				var w io.Writer = cmd.OutOrStdout()
				if out != "" {
					f, err := os.Create(out)
					if err != nil {
						return fmt.Errorf("creating %s: %w", out, err)
					}
					defer f.Close()
					w = f
				}
				if err := a.Transactions.ExportCSV(ctx, userID, w); err != nil {
					return err
				}
				if out != "" {
					fmt.Fprintf(cmd.ErrOrStderr(), "Exported to %s\n", out)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default stdout)")
	return cmd
}

func newImportCommand(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file.csv|gs://bucket/object>",
		Short: "Import a CSV export; every row must be valid",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src := args[0]
			return c.withOwner(cmd, func(ctx context.Context, a *app.App, userID int64) error {
				var (
					res *transactions.ImportResult
					err error
				)
				if strings.HasPrefix(src, "gs://") {
					if a.Backup == nil {
						return errors.New("GCS_BUCKET must be set to restore from gs:// URIs")
					}
					res, err = a.Backup.Restore(ctx, userID, src)
				} else {
					res, err = importFile(ctx, a, userID, src)
				}
				if err != nil {
					printImportError(cmd.ErrOrStderr(), err)
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %d transactions\n", res.Imported)
				return nil
			})
		},
	}
	return cmd
}

func importFile(ctx context.Context, a *app.App, userID int64, path string) (*transactions.ImportResult, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.Size() > transactions.MaxImportSize {
		return nil, fmt.Errorf("%s is larger than %d bytes", path, transactions.MaxImportSize)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return a.Transactions.ImportCSV(ctx, userID, f)
}

func printImportError(w io.Writer, err error) {
	var importErr *transactions.ImportError
	if !errors.As(err, &importErr) {
		return
	}
	fmt.Fprintln(w, importErr.Message)
	for _, d := range importErr.Details {
		fmt.Fprintf(w, "  %s\n", d)
	}
}

func newParseCommand(c *cli) *cobra.Command {
	var save bool

	cmd := &cobra.Command{
		Use:   "parse <text>",
		Short: "Classify a free-text transaction with Gemini",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if c.cfg.Gemini.APIKey == "" {
				return errors.New("GEMINI_API_KEY is required")
			}
			gen, err := nlparse.NewGeminiGenerator(ctx, nlparse.GeminiConfig{APIKey: c.cfg.Gemini.APIKey, Model: c.cfg.Gemini.Model})
			if err != nil {
				return err
			}

			parsed, err := nlparse.NewGeminiParser(gen).ParseTransaction(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(parsed); err != nil {
				return err
			}
			if !save {
				return nil
			}

			return c.withOwner(cmd, func(ctx context.Context, a *app.App, userID int64) error {
				tx, err := a.Transactions.Create(ctx, userID, inputFromParsed(parsed))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Saved transaction %d\n", tx.ID)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&save, "save", false, "store the parsed transaction in the owner's ledger")
	return cmd
}

func inputFromParsed(p *nlparse.ParsedTransaction) transactions.Input {
	monto := transactions.Amount(p.Monto.String())
	return transactions.Input{
		Categoria:     string(p.Categoria),
		Descripcion:   p.Descripcion,
		Tipo:          string(p.Tipo),
		Monto:         &monto,
		Medio:         string(p.Medio),
		Fecha:         p.Fecha,
		Observaciones: p.Observaciones,
	}
}

func newPurgeCommand(c *cli) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete every transaction of the owner",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withOwner(cmd, func(ctx context.Context, a *app.App, userID int64) error {
				if !yes && !confirm(cmd, fmt.Sprintf("Delete all transactions of user %d? [y/N] ", userID)) {
					return errors.New("aborted")
				}
				n, err := a.Transactions.Purge(ctx, userID)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d transactions\n", n)
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

func confirm(cmd *cobra.Command, prompt string) bool {
	fmt.Fprint(cmd.ErrOrStderr(), prompt)
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

func newSyncNotionCommand(c *cli) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "sync-notion",
		Short: "Mirror the ledger into the Notion database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withOwner(cmd, func(ctx context.Context, a *app.App, userID int64) error {
				if a.Notion == nil {
					return errors.New("NOTION_TOKEN and NOTION_DATABASE_ID are required")
				}
				txs, err := a.Transactions.List(ctx, userID)
				if err != nil {
					return err
				}
				res, err := a.Notion.SyncTransactions(ctx, userID, txs, dryRun)
				if err != nil {
					return err
				}
				prefix := ""
				if dryRun {
					prefix = "[dry run] "
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s%s\n", prefix, res)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report changes without writing to Notion")
	return cmd
}

func newBackupCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "backup",
		Short: "Upload the CSV export to the configured GCS bucket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withOwner(cmd, func(ctx context.Context, a *app.App, userID int64) error {
				if a.Backup == nil {
					return errors.New("GCS_BUCKET is required")
				}
				uri, err := a.Backup.Backup(ctx, userID)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), uri)
				return nil
			})
		},
	}
}

func newAnalyticsCommand(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analytics",
		Short: "BigQuery mirror of the ledger",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "export",
		Short: "Stream the ledger into BigQuery as a new snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withOwner(cmd, func(ctx context.Context, a *app.App, userID int64) error {
				if a.Analytics == nil {
					return errors.New("GOOGLE_CLOUD_PROJECT is required")
				}
				txs, err := a.Transactions.List(ctx, userID)
				if err != nil {
					return err
				}
				exportID, err := a.Analytics.ExportTransactions(ctx, userID, txs)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Export %s: %d rows\n", exportID, len(txs))
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "cashflow",
		Short: "Print monthly cash flow from the latest snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withOwner(cmd, func(ctx context.Context, a *app.App, userID int64) error {
				if a.Analytics == nil {
					return errors.New("GOOGLE_CLOUD_PROJECT is required")
				}
				months, err := a.Analytics.MonthlyCashFlow(ctx, userID)
				if err != nil {
					return err
				}
				printCashFlow(cmd.OutOrStdout(), months)
				return nil
			})
		},
	})

	return cmd
}

func printCashFlow(w io.Writer, months []domain.CashFlow) {
	fmt.Fprintf(w, "%-8s %14s %14s %14s %14s %6s\n", "period", "ingresos", "egresos", "ahorros", "neto", "n")
	for _, m := range months {
		fmt.Fprintf(w, "%-8s %14s %14s %14s %14s %6d\n",
			m.Period, m.Ingresos.StringFixed(2), m.Egresos.StringFixed(2), m.Ahorros.StringFixed(2), m.Neto.StringFixed(2), m.Count)
	}
}
