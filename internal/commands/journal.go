package commands

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/coopbooks/coopbooks/internal/importer"
	"github.com/coopbooks/coopbooks/internal/journal"
	"github.com/coopbooks/coopbooks/internal/ledger"
	"github.com/coopbooks/coopbooks/internal/ledgererr"
	"github.com/coopbooks/coopbooks/internal/model"
)

func newJournalCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "journal",
		Aliases: []string{"je"},
		Short:   "Record and inspect journal entries",
	}
	cmd.AddCommand(
		newJournalPostCommand(a),
		newJournalApproveCommand(a),
		newJournalDiscardCommand(a),
		newJournalReverseCommand(a),
		newJournalListCommand(a),
		newJournalExportCommand(a),
		newJournalImportCommand(a),
	)
	return cmd
}

// parseLine reads "code:side:amount[:memo]".
func parseLine(s string) (model.JournalLine, error) {
	parts := strings.SplitN(s, ":", 4)
	if len(parts) < 3 {
		return model.JournalLine{}, fmt.Errorf("--line %q: expected code:side:amount[:memo]", s)
	}
	amount, err := decimal.NewFromString(parts[2])
	if err != nil {
		return model.JournalLine{}, fmt.Errorf("--line %q: invalid amount: %w", s, err)
	}
	line := model.JournalLine{
		AccountCode: parts[0],
		Side:        model.Side(strings.ToLower(parts[1])),
		Amount:      amount,
	}
	if len(parts) == 4 {
		line.Memo = parts[3]
	}
	return line, nil
}

// findEntry resolves an entry by ID or by number.
func findEntry(l *ledger.Ledger, ref string) (model.JournalEntry, error) {
	if id, err := uuid.Parse(ref); err == nil {
		return l.Entry(id)
	}
	for _, e := range l.Entries(ledger.EntryFilter{}) {
		if e.Number == ref {
			return e, nil
		}
	}
	return model.JournalEntry{}, ledgererr.New(ledgererr.EntryNotFound, "entry %s does not exist", ref)
}

func newJournalPostCommand(a *app) *cobra.Command {
	var date, memo, kind string
	var lines []string
	var draft bool

	cmd := &cobra.Command{
		Use:   "post",
		Short: "Post a journal entry, or save it as a draft",
		Example: `  coopbooks journal post --date 2026-01-05 --memo "Member deposit" \
    --line 1-1000:debit:500 --line 2-1000:credit:500`,
		Args: cobra.NoArgs,
		RunE: a.withLedger(func(cmd *cobra.Command, _ []string, l *ledger.Ledger) error {
			d, err := parseDate("date", date)
			if err != nil {
				return err
			}
			req := ledger.EntryRequest{Date: d, Memo: memo, Kind: model.EntryKind(kind)}
			for _, s := range lines {
				line, err := parseLine(s)
				if err != nil {
					return err
				}
				req.Lines = append(req.Lines, line)
			}

			var e model.JournalEntry
			err = a.write(cmd.Context(), func(ctx context.Context) error {
				var err error
				if draft {
					e, err = l.CreateDraft(ctx, a.actor, req)
				} else {
					e, err = l.Submit(ctx, a.actor, req)
				}
				return err
			})
			if err != nil {
				return err
			}
			return a.printEntry(cmd.OutOrStdout(), e)
		}),
	}

	cmd.Flags().StringVar(&date, "date", "", "entry date, YYYY-MM-DD (required)")
	cmd.Flags().StringVar(&memo, "memo", "", "description")
	cmd.Flags().StringVar(&kind, "kind", string(model.KindStandard), "standard or adjusting")
	cmd.Flags().StringArrayVar(&lines, "line", nil, "code:side:amount[:memo], repeatable")
	cmd.Flags().BoolVar(&draft, "draft", false, "save as a draft instead of posting")
	_ = cmd.MarkFlagRequired("date")
	_ = cmd.MarkFlagRequired("line")
	return cmd
}

func newJournalApproveCommand(a *app) *cobra.Command {
	return a.entryCommand("approve <id|number>", "Post a draft entry",
		func(ctx context.Context, l *ledger.Ledger, e model.JournalEntry) (model.JournalEntry, error) {
			return l.PostDraft(ctx, a.actor, e.ID)
		})
}

func newJournalReverseCommand(a *app) *cobra.Command {
	return a.entryCommand("reverse <id|number>", "Reverse a posted entry",
		func(ctx context.Context, l *ledger.Ledger, e model.JournalEntry) (model.JournalEntry, error) {
			return l.Reverse(ctx, a.actor, e.ID)
		})
}

func (a *app) entryCommand(use, short string,
	fn func(ctx context.Context, l *ledger.Ledger, e model.JournalEntry) (model.JournalEntry, error),
) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: a.withLedger(func(cmd *cobra.Command, args []string, l *ledger.Ledger) error {
			target, err := findEntry(l, args[0])
			if err != nil {
				return err
			}
			var e model.JournalEntry
			err = a.write(cmd.Context(), func(ctx context.Context) error {
				var err error
				e, err = fn(ctx, l, target)
				return err
			})
			if err != nil {
				return err
			}
			return a.printEntry(cmd.OutOrStdout(), e)
		}),
	}
}

func newJournalDiscardCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "discard <id|number>",
		Short: "Delete a draft entry",
		Args:  cobra.ExactArgs(1),
		RunE: a.withLedger(func(cmd *cobra.Command, args []string, l *ledger.Ledger) error {
			e, err := findEntry(l, args[0])
			if err != nil {
				return err
			}
			if err := l.DiscardDraft(cmd.Context(), a.actor, e.ID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Discarded draft %s\n", e.Number)
			return nil
		}),
	}
}

func newJournalListCommand(a *app) *cobra.Command {
	var from, to, status, kind, account string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List journal entries",
		Args:  cobra.NoArgs,
		RunE: a.withLedger(func(cmd *cobra.Command, _ []string, l *ledger.Ledger) error {
			f := ledger.EntryFilter{
				Status:  model.EntryStatus(status),
				Kind:    model.EntryKind(kind),
				Account: account,
			}
			var err error
			if f.From, err = parseDate("from", from); err != nil {
				return err
			}
			if f.To, err = parseDate("to", to); err != nil {
				return err
			}
			entries := l.Entries(f)
			if a.jsonOut {
				return a.printJSON(cmd.OutOrStdout(), entries)
			}
			tw := newTable(cmd.OutOrStdout())
			fmt.Fprintln(tw, "NUMBER\tDATE\tKIND\tSTATUS\tAMOUNT\tMEMO")
			for _, e := range entries {
				debit, _ := e.Totals()
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
					e.Number, formatDate(e.Date), e.Kind, e.Status, debit.StringFixed(2), e.Memo)
			}
			return tw.Flush()
		}),
	}
	cmd.Flags().StringVar(&from, "from", "", "first date, YYYY-MM-DD")
	cmd.Flags().StringVar(&to, "to", "", "last date, YYYY-MM-DD")
	cmd.Flags().StringVar(&status, "status", "", "draft, posted or reversed")
	cmd.Flags().StringVar(&kind, "kind", "", "entry kind")
	cmd.Flags().StringVar(&account, "account", "", "only entries touching this account")
	return cmd
}

func newJournalExportCommand(a *app) *cobra.Command {
	var includeDrafts bool

	cmd := &cobra.Command{
		Use:   "export <directory>",
		Short: "Write entries to YYYY/MM/journal.csv files",
		Args:  cobra.ExactArgs(1),
		RunE: a.withLedger(func(cmd *cobra.Command, args []string, l *ledger.Ledger) error {
			var entries []model.JournalEntry
			for _, e := range l.Entries(ledger.EntryFilter{}) {
				if e.Status == model.StatusDraft && !includeDrafts {
					continue
				}
				entries = append(entries, e)
			}
			paths, err := journal.ExportMonths(args[0], entries)
			if err != nil {
				return err
			}
			for _, p := range paths {
				fmt.Fprintln(cmd.OutOrStdout(), p)
			}
			return nil
		}),
	}
	cmd.Flags().BoolVar(&includeDrafts, "drafts", false, "include draft entries")
	return cmd
}

func newJournalImportCommand(a *app) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "import [file.csv...]",
		Short: "Import entries from CSV files (default: every CSV in import/)",
		RunE: a.withLedger(func(cmd *cobra.Command, args []string, l *ledger.Ledger) error {
			p := importer.DefaultRegistry().Get(format)
			if p == nil {
				return fmt.Errorf("unknown import format %q", format)
			}

			root := filepath.Dir(a.configPath)
			scanned := len(args) == 0
			if scanned {
				files, err := importer.Scan(root)
				if err != nil {
					return err
				}
				for _, f := range files {
					args = append(args, f.Path)
				}
			}

			for _, path := range args {
				reqs, err := importer.ParseFile(p, path)
				if err != nil {
					return err
				}
				created, err := importer.Apply(cmd.Context(), l, a.actor, reqs)
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d entries imported\n", filepath.Base(path), len(created))
				if err != nil {
					return fmt.Errorf("%s: %w", filepath.Base(path), err)
				}
				if scanned {
					if err := importer.MarkProcessed(root, filepath.Base(path)); err != nil {
						return err
					}
				}
			}
			return nil
		}),
	}
	cmd.Flags().StringVar(&format, "format", "cashbook", "file format: cashbook or journal")
	return cmd
}

func (a *app) printEntry(w io.Writer, e model.JournalEntry) error {
	if a.jsonOut {
		return a.printJSON(w, e)
	}
	fmt.Fprintf(w, "%s %s %s %s %s\n", e.Number, formatDate(e.Date), e.Kind, e.Status, e.Memo)
	tw := newTable(w)
	for _, line := range e.Lines {
		debit, credit := "", ""
		if line.Side == model.SideDebit {
			debit = line.Amount.StringFixed(2)
		} else {
			credit = line.Amount.StringFixed(2)
		}
		fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\n", line.AccountCode, debit, credit, line.Memo)
	}
	return tw.Flush()
}
