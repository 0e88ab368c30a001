package commands

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/coopbooks/coopbooks/internal/accounts"
	"github.com/coopbooks/coopbooks/internal/depreciation"
	"github.com/coopbooks/coopbooks/internal/ledger"
	"github.com/coopbooks/coopbooks/internal/ledgererr"
	"github.com/coopbooks/coopbooks/internal/model"
)

func newAssetCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "asset",
		Short: "Register fixed assets and post depreciation",
	}
	cmd.AddCommand(
		newAssetListCommand(a),
		newAssetAddCommand(a),
		newAssetDepreciateCommand(a),
		newAssetScheduleCommand(a),
	)
	return cmd
}

// findAsset resolves an asset by ID or by name.
func findAsset(l *ledger.Ledger, ref string) (model.FixedAsset, error) {
	if id, err := uuid.Parse(ref); err == nil {
		return l.Asset(id)
	}
	for _, as := range l.Assets() {
		if as.Name == ref {
			return as, nil
		}
	}
	return model.FixedAsset{}, ledgererr.New(ledgererr.AssetNotFound, "asset %s does not exist", ref)
}

func newAssetListCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List fixed assets with their book values",
		Args:  cobra.NoArgs,
		RunE: a.withLedger(func(cmd *cobra.Command, _ []string, l *ledger.Ledger) error {
			assets := l.Assets()
			if a.jsonOut {
				return a.printJSON(cmd.OutOrStdout(), assets)
			}
			tw := newTable(cmd.OutOrStdout())
			fmt.Fprintln(tw, "NAME\tACQUIRED\tCOST\tACCUMULATED\tBOOK VALUE")
			for _, as := range assets {
				acc, err := l.AccumulatedDepreciation(as.ID)
				if err != nil {
					return err
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", as.Name, formatDate(as.AcquiredOn),
					as.Cost.StringFixed(2), acc.StringFixed(2), depreciation.BookValue(as, acc).StringFixed(2))
			}
			return tw.Flush()
		}),
	}
}

func newAssetAddCommand(a *app) *cobra.Command {
	var name, cost, salvage, acquired, method, rate, expense, accumulated string
	var life int

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register a fixed asset",
		Args:  cobra.NoArgs,
		RunE: a.withLedger(func(cmd *cobra.Command, _ []string, l *ledger.Ledger) error {
			as := model.FixedAsset{
				Name:               name,
				UsefulLife:         life,
				Method:             model.DepreciationMethod(method),
				ExpenseAccount:     expense,
				AccumulatedAccount: accumulated,
			}
			var err error
			if as.AcquiredOn, err = parseDate("acquired", acquired); err != nil {
				return err
			}
			if as.Cost, err = parseAmount("cost", cost); err != nil {
				return err
			}
			if as.Salvage, err = parseAmount("salvage", salvage); err != nil {
				return err
			}
			if as.Rate, err = parseAmount("rate", rate); err != nil {
				return err
			}
			created, err := l.RegisterAsset(cmd.Context(), a.actor, as)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Registered %s %s\n", created.Name, created.ID)
			return nil
		}),
	}
	cmd.Flags().StringVar(&name, "name", "", "asset name (required)")
	cmd.Flags().StringVar(&cost, "cost", "", "acquisition cost (required)")
	cmd.Flags().StringVar(&salvage, "salvage", "0", "salvage value")
	cmd.Flags().StringVar(&acquired, "acquired", "", "acquisition date, YYYY-MM-DD (required)")
	cmd.Flags().IntVar(&life, "life", 0, "useful life in months (required)")
	cmd.Flags().StringVar(&method, "method", string(model.MethodStraightLine), "straight-line or declining-balance")
	cmd.Flags().StringVar(&rate, "rate", "0", "monthly rate for declining-balance")
	cmd.Flags().StringVar(&expense, "expense-account", accounts.CodeDepreciationExpense, "depreciation expense account")
	cmd.Flags().StringVar(&accumulated, "accumulated-account", accounts.CodeAccumulatedDepreciation, "accumulated depreciation account")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("cost")
	_ = cmd.MarkFlagRequired("acquired")
	_ = cmd.MarkFlagRequired("life")
	return cmd
}

func newAssetDepreciateCommand(a *app) *cobra.Command {
	var periodEnd string

	cmd := &cobra.Command{
		Use:   "depreciate <id|name>",
		Short: "Post the next depreciation installment",
		Args:  cobra.ExactArgs(1),
		RunE: a.withLedger(func(cmd *cobra.Command, args []string, l *ledger.Ledger) error {
			as, err := findAsset(l, args[0])
			if err != nil {
				return err
			}
			d, err := parseDate("period-end", periodEnd)
			if err != nil {
				return err
			}
			var e model.JournalEntry
			err = a.write(cmd.Context(), func(ctx context.Context) error {
				var err error
				e, err = l.PostDepreciation(ctx, a.actor, as.ID, d)
				return err
			})
			if err != nil {
				return err
			}
			return a.printEntry(cmd.OutOrStdout(), e)
		}),
	}
	cmd.Flags().StringVar(&periodEnd, "period-end", "", "entry date, YYYY-MM-DD (default: installment date)")
	return cmd
}

func newAssetScheduleCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "schedule <id|name>",
		Short: "Show the full depreciation schedule",
		Args:  cobra.ExactArgs(1),
		RunE: a.withLedger(func(cmd *cobra.Command, args []string, l *ledger.Ledger) error {
			as, err := findAsset(l, args[0])
			if err != nil {
				return err
			}
			sched, err := l.DepreciationSchedule(as.ID)
			if err != nil {
				return err
			}
			if a.jsonOut {
				return a.printJSON(cmd.OutOrStdout(), sched)
			}
			tw := newTable(cmd.OutOrStdout())
			fmt.Fprintln(tw, "DATE\tAMOUNT\tBOOK VALUE")
			acc := decimal.Zero
			for _, inst := range sched {
				acc = acc.Add(inst.Amount)
				fmt.Fprintf(tw, "%s\t%s\t%s\n", formatDate(inst.Date), inst.Amount.StringFixed(2),
					depreciation.BookValue(as, acc).StringFixed(2))
			}
			return tw.Flush()
		}),
	}
}

func parseAmount(flag, value string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("--%s: invalid amount %q", flag, value)
	}
	return d, nil
}
