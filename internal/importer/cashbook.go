package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/coopbooks/coopbooks/internal/journal"
	"github.com/coopbooks/coopbooks/internal/ledger"
)

// CashbookParser reads the two-account cashbook a treasurer keeps by hand:
//
//	date,memo,debit_account,credit_account,amount
//
// Each row becomes one posted entry.
type CashbookParser struct{}

const (
	cashbookNumFields = 5
	cashbookColDate   = 0
	cashbookColMemo   = 1
	cashbookColDebit  = 2
	cashbookColCredit = 3
	cashbookColAmount = 4
)

// Format returns the parser name.
func (p *CashbookParser) Format() string { return "cashbook" }

// Parse reads a cashbook CSV.
func (p *CashbookParser) Parse(r io.Reader) ([]Request, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = cashbookNumFields
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading cashbook CSV: %w", err)
	}

	if len(records) <= 1 {
		return nil, nil
	}

	var reqs []Request
	for i, rec := range records[1:] {
		req, err := parseCashbookRow(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		req.Source = fmt.Sprintf("row %d", i+2)
		reqs = append(reqs, req)
	}
	return reqs, nil
}

func parseCashbookRow(rec []string) (Request, error) {
	date, err := time.Parse(time.DateOnly, rec[cashbookColDate])
	if err != nil {
		return Request{}, fmt.Errorf("parsing date %q: %w", rec[cashbookColDate], err)
	}

	amount, err := decimal.NewFromString(strings.ReplaceAll(rec[cashbookColAmount], ",", ""))
	if err != nil {
		return Request{}, fmt.Errorf("parsing amount %q: %w", rec[cashbookColAmount], err)
	}

	return Request{EntryRequest: ledger.EntryRequest{
		Date:  date,
		Memo:  rec[cashbookColMemo],
		Lines: journal.Double(rec[cashbookColDebit], rec[cashbookColCredit], amount, ""),
	}}, nil
}
