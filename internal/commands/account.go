package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/coopbooks/coopbooks/internal/accounts"
	"github.com/coopbooks/coopbooks/internal/ledger"
	"github.com/coopbooks/coopbooks/internal/model"
)

func newAccountCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Manage the chart of accounts",
	}
	cmd.AddCommand(
		newAccountListCommand(a),
		newAccountAddCommand(a),
		newAccountStatusCommand(a, "deactivate", "Deactivate an unused account", (*ledger.Ledger).Deactivate),
		newAccountStatusCommand(a, "reactivate", "Reactivate an account", (*ledger.Ledger).Reactivate),
		newAccountImportCommand(a),
		newAccountExportCommand(a),
		newAccountBalanceCommand(a),
	)
	return cmd
}

func newAccountListCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List accounts",
		Args:  cobra.NoArgs,
		RunE: a.withLedger(func(cmd *cobra.Command, _ []string, l *ledger.Ledger) error {
			accts := l.Accounts()
			if a.jsonOut {
				return a.printJSON(cmd.OutOrStdout(), accts)
			}
			tw := newTable(cmd.OutOrStdout())
			fmt.Fprintln(tw, "CODE\tNAME\tTYPE\tPARENT\tACTIVE")
			for _, acct := range accts {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%t\n", acct.Code, acct.Name, acct.Type, acct.ParentCode, acct.Active)
			}
			return tw.Flush()
		}),
	}
}

func newAccountAddCommand(a *app) *cobra.Command {
	var acct model.Account
	var typ string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add an account",
		Args:  cobra.NoArgs,
		RunE: a.withLedger(func(cmd *cobra.Command, _ []string, l *ledger.Ledger) error {
			acct.Type = model.AccountType(typ)
			var created model.Account
			err := a.write(cmd.Context(), func(ctx context.Context) error {
				var err error
				created, err = l.CreateAccount(ctx, a.actor, acct)
				return err
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s %s (%s)\n", created.Code, created.Name, created.Type)
			return nil
		}),
	}

	cmd.Flags().StringVar(&acct.Code, "code", "", "account code, e.g. 1-1000 (required)")
	cmd.Flags().StringVar(&acct.Name, "name", "", "account name (required)")
	cmd.Flags().StringVar(&typ, "type", "", "asset, liability, equity, revenue or expense (required)")
	cmd.Flags().StringVar(&acct.ParentCode, "parent", "", "parent account code")
	cmd.Flags().StringVar(&acct.Description, "description", "", "description")
	_ = cmd.MarkFlagRequired("code")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

func newAccountStatusCommand(a *app, use, short string,
	fn func(*ledger.Ledger, context.Context, string, string) (model.Account, error),
) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <code>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: a.withLedger(func(cmd *cobra.Command, args []string, l *ledger.Ledger) error {
			var acct model.Account
			err := a.write(cmd.Context(), func(ctx context.Context) error {
				var err error
				acct, err = fn(l, ctx, a.actor, args[0])
				return err
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s active=%t\n", acct.Code, acct.Name, acct.Active)
			return nil
		}),
	}
}

func newAccountImportCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Import accounts from a chart-of-accounts CSV",
		Args:  cobra.ExactArgs(1),
		RunE: a.withLedger(func(cmd *cobra.Command, args []string, l *ledger.Ledger) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("opening %s: %w", args[0], err)
			}
			defer f.Close()
			accts, err := accounts.ReadAccounts(f)
			if err != nil {
				return err
			}
			if err := l.ImportAccounts(cmd.Context(), a.actor, accts); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d accounts\n", len(accts))
			return nil
		}),
	}
}

func newAccountExportCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "export [file.csv]",
		Short: "Export the chart of accounts as CSV (stdout by default)",
		Args:  cobra.MaximumNArgs(1),
		RunE: a.withLedger(func(cmd *cobra.Command, args []string, l *ledger.Ledger) error {
			if len(args) == 0 {
				return accounts.WriteAccounts(cmd.OutOrStdout(), l.Accounts())
			}
			f, err := os.Create(args[0])
			if err != nil {
				return fmt.Errorf("creating %s: %w", args[0], err)
			}
			if err := accounts.WriteAccounts(f, l.Accounts()); err != nil {
				f.Close()
				return err
			}
			return f.Close()
		}),
	}
}

func newAccountBalanceCommand(a *app) *cobra.Command {
	var asOf string
	var rollup bool

	cmd := &cobra.Command{
		Use:   "balance <code>",
		Short: "Show an account's balance",
		Args:  cobra.ExactArgs(1),
		RunE: a.withLedger(func(cmd *cobra.Command, args []string, l *ledger.Ledger) error {
			d, err := parseDate("as-of", asOf)
			if err != nil {
				return err
			}
			if d.IsZero() {
				d = model.Day(time.Now())
			}
			balance := l.Balance
			if rollup {
				balance = l.RollupBalance
			}
			amount, err := balance(args[0], d)
			if err != nil {
				return err
			}
			if a.jsonOut {
				return a.printJSON(cmd.OutOrStdout(), map[string]any{
					"code": args[0], "as_of": formatDate(d), "rollup": rollup, "balance": amount,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s as of %s\n", args[0], amount.StringFixed(2), formatDate(d))
			return nil
		}),
	}
	cmd.Flags().StringVar(&asOf, "as-of", "", "balance date, YYYY-MM-DD (default today)")
	cmd.Flags().BoolVar(&rollup, "rollup", false, "include descendant accounts")
	return cmd
}
