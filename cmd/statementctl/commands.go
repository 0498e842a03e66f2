package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/statements-tracker/constants"
	"github.com/joseph-ayodele/statements-tracker/internal/app"
	"github.com/joseph-ayodele/statements-tracker/internal/entity"
	"github.com/joseph-ayodele/statements-tracker/internal/ingest"
	"github.com/joseph-ayodele/statements-tracker/internal/repository"
)

func newSubmitCommand(opts *rootOptions) *cobra.Command {
	var up entity.Upload
	var noRun bool

	cmd := &cobra.Command{
		Use:   "submit <file>",
		Short: "Upload a statement file and run the pipeline on it",
		Long: `Upload a statement file and run the pipeline on it synchronously.

Bank, account and period default to the <bank>_<account>_<YYYY>-<MM>.<ext>
filename convention when the flags are not given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			if md, err := ingest.ParseFilename(path, ingest.Defaults{Bank: up.BankName, Account: up.AccountName}); err == nil {
				if up.BankName == "" {
					up.BankName = md.Bank
				}
				if up.AccountName == "" {
					up.AccountName = md.Account
				}
				if up.Month == 0 {
					up.Month = md.Month
				}
				if up.Year == 0 {
					up.Year = md.Year
				}
			}
			up.Data = data
			up.Filename = filepath.Base(path)
			if up.MIMEType == "" {
				up.MIMEType = constants.MIMEFromExt(filepath.Ext(path))
			}

			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				st, err := a.Processor.Submit(ctx, up)
				if err != nil {
					return err
				}
				if !noRun {
					runErr := a.Processor.Run(ctx, st.ID, st.RunID)
					if st, err = a.Statements.GetByID(ctx, st.ID); err != nil {
						return err
					}
					if runErr != nil {
						_ = printJSON(cmd.OutOrStdout(), st)
						return runErr
					}
				}
				return printJSON(cmd.OutOrStdout(), st)
			})
		},
	}
	cmd.Flags().StringVar(&up.BankName, "bank", "", "bank name")
	cmd.Flags().StringVar(&up.AccountName, "account", "", "account name")
	cmd.Flags().IntVar(&up.Month, "month", 0, "statement month (1-12)")
	cmd.Flags().IntVar(&up.Year, "year", 0, "statement year")
	cmd.Flags().StringVar(&up.Currency, "currency", "", "ISO 4217 currency (default USD)")
	cmd.Flags().StringVar(&up.MIMEType, "mime", "", "MIME type; inferred from the extension when empty")
	cmd.Flags().BoolVar(&noRun, "no-run", false, "only store the statement; leave the run to statementsd")
	return cmd
}

func newRetryCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <statement-id>",
		Short: "Re-run a needs_review, failed or completed statement",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("statement id: %w", err)
			}
			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				st, err := a.Processor.Reprocess(ctx, id)
				if st != nil {
					_ = printJSON(cmd.OutOrStdout(), st)
				}
				return err
			})
		},
	}
}

func newShowCommand(opts *rootOptions) *cobra.Command {
	var withTxns bool
	var status string
	var limit int

	cmd := &cobra.Command{
		Use:   "show [statement-id]",
		Short: "Print a statement, or list recent statements",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				if len(args) == 0 {
					filter := repository.ListFilter{Limit: limit}
					if status != "" {
						st, ok := constants.ParseStatus(status)
						if !ok {
							return fmt.Errorf("unknown status %q", status)
						}
						filter.Status = st
					}
					list, err := a.Statements.List(ctx, filter)
					if err != nil {
						return err
					}
					for _, st := range list {
						fmt.Fprintf(cmd.OutOrStdout(), "%s  %-12s %04d-%02d  %-20s %d/%d\n",
							st.ID, st.Status, st.Year, st.Month, st.BankName, st.TransactionsImported, st.TransactionsFound)
					}
					return nil
				}

				id, err := uuid.Parse(args[0])
				if err != nil {
					return fmt.Errorf("statement id: %w", err)
				}
				st, err := a.Statements.GetByID(ctx, id)
				if err != nil {
					return err
				}
				if !withTxns {
					return printJSON(cmd.OutOrStdout(), st)
				}
				txns, err := a.Transactions.ListByStatement(ctx, id)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]any{"statement": st, "transactions": txns})
			})
		},
	}
	cmd.Flags().BoolVar(&withTxns, "transactions", false, "include persisted transactions")
	cmd.Flags().StringVar(&status, "status", "", "filter the list by status")
	cmd.Flags().IntVar(&limit, "limit", 20, "max statements to list")
	return cmd
}

func newExportCommand(opts *rootOptions) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export <statement-id>",
		Short: "Write a statement's transactions to an XLSX workbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("statement id: %w", err)
			}
			if out == "" {
				out = fmt.Sprintf("statement-%s.xlsx", id)
			}
			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				xlsx, err := a.Export.TransactionsXLSX(ctx, id)
				if err != nil {
					return err
				}
				if err := os.WriteFile(out, xlsx, 0o644); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), out)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "output path")
	return cmd
}

func newDBHealthCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "dbhealth",
		Short: "Check database connectivity and schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				if err := a.DB.HealthCheck(ctx, 3*time.Second); err != nil {
					return fmt.Errorf("DB health: FAIL (%w)", err)
				}
				list, err := a.Statements.List(ctx, repository.ListFilter{Limit: 1})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "DB health: OK (%s, %d recent statement(s))\n", a.DB.Dialect(), len(list))
				return nil
			})
		},
	}
}
