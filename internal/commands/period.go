package commands

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/coopbooks/coopbooks/internal/ledger"
	"github.com/coopbooks/coopbooks/internal/ledgererr"
	"github.com/coopbooks/coopbooks/internal/model"
)

func newPeriodCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "period",
		Short: "Open, close and reopen fiscal periods",
	}
	cmd.AddCommand(
		newPeriodListCommand(a),
		newPeriodOpenCommand(a),
		newPeriodCloseCommand(a),
		newPeriodReopenCommand(a),
	)
	return cmd
}

// findPeriod resolves a period by ID or by name.
func findPeriod(l *ledger.Ledger, ref string) (model.FiscalPeriod, error) {
	if id, err := uuid.Parse(ref); err == nil {
		return l.Period(id)
	}
	for _, p := range l.Periods() {
		if p.Name == ref {
			return p, nil
		}
	}
	return model.FiscalPeriod{}, ledgererr.New(ledgererr.PeriodNotFound, "period %s does not exist", ref)
}

func newPeriodListCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List fiscal periods",
		Args:  cobra.NoArgs,
		RunE: a.withLedger(func(cmd *cobra.Command, _ []string, l *ledger.Ledger) error {
			periods := l.Periods()
			if a.jsonOut {
				return a.printJSON(cmd.OutOrStdout(), periods)
			}
			tw := newTable(cmd.OutOrStdout())
			fmt.Fprintln(tw, "NAME\tSTART\tEND\tSTATUS\tID")
			for _, p := range periods {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", p.Name, formatDate(p.Start), formatDate(p.End), p.Status, p.ID)
			}
			return tw.Flush()
		}),
	}
}

func newPeriodOpenCommand(a *app) *cobra.Command {
	var name, start, end string

	cmd := &cobra.Command{
		Use:   "open",
		Short: "Open the next fiscal period",
		Args:  cobra.NoArgs,
		RunE: a.withLedger(func(cmd *cobra.Command, _ []string, l *ledger.Ledger) error {
			s, err := parseDate("start", start)
			if err != nil {
				return err
			}
			e, err := parseDate("end", end)
			if err != nil {
				return err
			}
			if e.IsZero() && !s.IsZero() {
				e = s.AddDate(0, 1, -1)
			}
			p, err := l.OpenPeriod(cmd.Context(), a.actor, name, s, e)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Opened %s (%s to %s) %s\n", p.Name, formatDate(p.Start), formatDate(p.End), p.ID)
			return nil
		}),
	}
	cmd.Flags().StringVar(&name, "name", "", "period name (default: month and year of start)")
	cmd.Flags().StringVar(&start, "start", "", "first day, YYYY-MM-DD (required)")
	cmd.Flags().StringVar(&end, "end", "", "last day, YYYY-MM-DD (default: one month from start)")
	_ = cmd.MarkFlagRequired("start")
	return cmd
}

func newPeriodCloseCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "close <id|name>",
		Short: "Close a period into retained earnings",
		Args:  cobra.ExactArgs(1),
		RunE: a.withLedger(func(cmd *cobra.Command, args []string, l *ledger.Ledger) error {
			target, err := findPeriod(l, args[0])
			if err != nil {
				return err
			}
			var p model.FiscalPeriod
			err = a.write(cmd.Context(), func(ctx context.Context) error {
				var err error
				p, err = l.ClosePeriod(ctx, a.actor, target.ID)
				return err
			})
			if err != nil {
				return err
			}
			if p.ClosingEntryID == uuid.Nil {
				fmt.Fprintf(cmd.OutOrStdout(), "Closed %s (no activity)\n", p.Name)
				return nil
			}
			closing, err := l.Entry(p.ClosingEntryID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Closed %s with entry %s\n", p.Name, closing.Number)
			return nil
		}),
	}
}

func newPeriodReopenCommand(a *app) *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "reopen <id|name>",
		Short: "Reopen a closed period (administrative override)",
		Args:  cobra.ExactArgs(1),
		RunE: a.withLedger(func(cmd *cobra.Command, args []string, l *ledger.Ledger) error {
			target, err := findPeriod(l, args[0])
			if err != nil {
				return err
			}
			p, err := l.ReopenPeriod(cmd.Context(), a.actor, target.ID, reason)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Reopened %s\n", p.Name)
			return nil
		}),
	}
	cmd.Flags().StringVar(&reason, "reason", "", "why the period is reopened (required)")
	_ = cmd.MarkFlagRequired("reason")
	return cmd
}
