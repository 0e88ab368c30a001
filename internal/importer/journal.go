package importer

import (
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/coopbooks/coopbooks/internal/journal"
	"github.com/coopbooks/coopbooks/internal/ledger"
	"github.com/coopbooks/coopbooks/internal/model"
)

// JournalParser reads journal.csv files written by journal export, for
// moving books between databases or tenants. Only standard and adjusting
// entries that are posted or drafts are carried over; closing, reversal
// and depreciation entries are regenerated by the ledger, and a reversed
// entry nets to nothing together with its skipped reversal.
type JournalParser struct{}

// Format returns the parser name.
func (p *JournalParser) Format() string { return "journal" }

// Parse groups rows by entry, in file order.
func (p *JournalParser) Parse(r io.Reader) ([]Request, error) {
	rows, err := journal.ReadRows(r)
	if err != nil {
		return nil, err
	}

	var order []uuid.UUID
	byEntry := make(map[uuid.UUID][]journal.Row)
	for _, row := range rows {
		if _, ok := byEntry[row.EntryID]; !ok {
			order = append(order, row.EntryID)
		}
		byEntry[row.EntryID] = append(byEntry[row.EntryID], row)
	}

	var reqs []Request
	for _, id := range order {
		entryRows := byEntry[id]
		first := entryRows[0]
		if !carried(first) {
			continue
		}
		req := Request{
			EntryRequest: ledger.EntryRequest{
				Date: first.Date,
				Memo: "Imported " + first.Number,
				Kind: first.Kind,
			},
			Draft:  first.Status == model.StatusDraft,
			Source: "entry " + first.Number,
		}
		for _, row := range entryRows {
			line, err := rowLine(row)
			if err != nil {
				return nil, fmt.Errorf("entry %s line %d: %w", first.Number, row.Line, err)
			}
			req.Lines = append(req.Lines, line)
		}
		reqs = append(reqs, req)
	}
	return reqs, nil
}

func carried(row journal.Row) bool {
	if row.Kind != model.KindStandard && row.Kind != model.KindAdjusting {
		return false
	}
	return row.Status == model.StatusPosted || row.Status == model.StatusDraft
}

func rowLine(row journal.Row) (model.JournalLine, error) {
	line := model.JournalLine{AccountCode: row.AccountCode, Memo: row.Memo}
	switch {
	case row.Debit.IsPositive() && row.Credit.IsZero():
		line.Side, line.Amount = model.SideDebit, row.Debit
	case row.Credit.IsPositive() && row.Debit.IsZero():
		line.Side, line.Amount = model.SideCredit, row.Credit
	default:
		return model.JournalLine{}, fmt.Errorf("exactly one of debit and credit must be set")
	}
	return line, nil
}
