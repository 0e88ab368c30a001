package commands

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/coopbooks/coopbooks/internal/ledger"
	"github.com/coopbooks/coopbooks/internal/model"
	"github.com/coopbooks/coopbooks/internal/statements"
)

func newReportCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print financial statements",
	}
	cmd.AddCommand(
		newBalanceSheetCommand(a),
		newIncomeStatementCommand(a),
		newTrialBalanceCommand(a),
	)
	return cmd
}

func asOfOrToday(value string) (time.Time, error) {
	d, err := parseDate("as-of", value)
	if err != nil || !d.IsZero() {
		return d, err
	}
	return model.Day(time.Now()), nil
}

func newBalanceSheetCommand(a *app) *cobra.Command {
	var asOf string

	cmd := &cobra.Command{
		Use:   "balance-sheet",
		Short: "Assets, liabilities and equity at a date",
		Args:  cobra.NoArgs,
		RunE: a.withLedger(func(cmd *cobra.Command, _ []string, l *ledger.Ledger) error {
			d, err := asOfOrToday(asOf)
			if err != nil {
				return err
			}
			bs, err := statements.NewGenerator(a.logger).BalanceSheet(l, d)
			if err != nil {
				return err
			}
			if a.jsonOut {
				return a.printJSON(cmd.OutOrStdout(), bs)
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Balance sheet as of %s\n\n", formatDate(bs.AsOf))
			tw := newTable(w)
			printSection(tw, "Assets", bs.Assets)
			printSection(tw, "Liabilities", bs.Liabilities)
			printSection(tw, "Equity", bs.Equity)
			fmt.Fprintf(tw, "Total liabilities and equity\t\t%s\n", bs.TotalLiabilitiesAndEquity.StringFixed(2))
			return tw.Flush()
		}),
	}
	cmd.Flags().StringVar(&asOf, "as-of", "", "statement date, YYYY-MM-DD (default today)")
	return cmd
}

func newIncomeStatementCommand(a *app) *cobra.Command {
	var from, to string

	cmd := &cobra.Command{
		Use:   "income-statement",
		Short: "Revenue and expenses over a date range",
		Args:  cobra.NoArgs,
		RunE: a.withLedger(func(cmd *cobra.Command, _ []string, l *ledger.Ledger) error {
			f, err := parseDate("from", from)
			if err != nil {
				return err
			}
			t, err := parseDate("to", to)
			if err != nil {
				return err
			}
			is, err := statements.NewGenerator(a.logger).IncomeStatement(l, f, t)
			if err != nil {
				return err
			}
			if a.jsonOut {
				return a.printJSON(cmd.OutOrStdout(), is)
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Income statement %s to %s\n\n", formatDate(is.From), formatDate(is.To))
			tw := newTable(w)
			printSection(tw, "Revenue", is.Revenue)
			printSection(tw, "Expenses", is.Expenses)
			fmt.Fprintf(tw, "Net income\t\t%s\n", is.NetIncome.StringFixed(2))
			return tw.Flush()
		}),
	}
	cmd.Flags().StringVar(&from, "from", "", "first date, YYYY-MM-DD (required)")
	cmd.Flags().StringVar(&to, "to", "", "last date, YYYY-MM-DD (required)")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func newTrialBalanceCommand(a *app) *cobra.Command {
	var asOf string

	cmd := &cobra.Command{
		Use:   "trial-balance",
		Short: "Debit and credit balances of every account",
		Args:  cobra.NoArgs,
		RunE: a.withLedger(func(cmd *cobra.Command, _ []string, l *ledger.Ledger) error {
			d, err := asOfOrToday(asOf)
			if err != nil {
				return err
			}
			tb, err := statements.NewGenerator(a.logger).TrialBalance(l, d)
			if err != nil {
				return err
			}
			if a.jsonOut {
				return a.printJSON(cmd.OutOrStdout(), tb)
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Trial balance as of %s\n\n", formatDate(tb.AsOf))
			tw := newTable(w)
			fmt.Fprintln(tw, "CODE\tNAME\tDEBIT\tCREDIT")
			for _, r := range tb.Rows {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Code, r.Name, r.Debit.StringFixed(2), r.Credit.StringFixed(2))
			}
			fmt.Fprintf(tw, "\tTotal\t%s\t%s\n", tb.TotalDebit.StringFixed(2), tb.TotalCredit.StringFixed(2))
			return tw.Flush()
		}),
	}
	cmd.Flags().StringVar(&asOf, "as-of", "", "statement date, YYYY-MM-DD (default today)")
	return cmd
}

func printSection(w io.Writer, title string, s statements.Section) {
	fmt.Fprintln(w, title)
	for _, line := range s.Lines {
		fmt.Fprintf(w, "  %s\t%s\t%s\n", line.Code, line.Name, line.Amount.StringFixed(2))
	}
	fmt.Fprintf(w, "Total %s\t\t%s\n\n", title, s.Total.StringFixed(2))
}
