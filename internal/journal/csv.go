package journal

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/coopbooks/coopbooks/internal/model"
)

// Header is the CSV header for journal.csv.
const Header = "entry_id,number,date,kind,status,line,account_code,debit,credit,memo,reversal_of"

const (
	numFields     = 11
	dateFormat    = "2006-01-02"
	colEntryID    = 0
	colNumber     = 1
	colDate       = 2
	colKind       = 3
	colStatus     = 4
	colLine       = 5
	colAcctCode   = 6
	colDebit      = 7
	colCredit     = 8
	colMemo       = 9
	colReversalOf = 10
)

// Row is one line of journal.csv.
type Row struct {
	EntryID     uuid.UUID
	Number      string
	Date        time.Time
	Kind        model.EntryKind
	Status      model.EntryStatus
	Line        int
	AccountCode string
	Debit       decimal.Decimal
	Credit      decimal.Decimal
	Memo        string
	ReversalOf  uuid.UUID
}

// ReadRows reads all rows from a journal.csv reader.
func ReadRows(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading journal CSV: %w", err)
	}

	if len(records) == 0 {
		return nil, nil
	}

	// Skip header row.
	var rows []Row
	for i, rec := range records[1:] {
		row, err := UnmarshalRow(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// WriteEntries writes every line of entries to a journal.csv writer
// (including header).
func WriteEntries(w io.Writer, entries []model.JournalEntry) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(strings.Split(Header, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	return writeLines(cw, entries)
}

// AppendEntries appends lines to an existing journal.csv writer (no header).
func AppendEntries(w io.Writer, entries []model.JournalEntry) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()
	return writeLines(cw, entries)
}

func writeLines(cw *csv.Writer, entries []model.JournalEntry) error {
	for _, e := range entries {
		for i := range e.Lines {
			if err := cw.Write(MarshalLine(e, i)); err != nil {
				return fmt.Errorf("writing entry %s line %d: %w", e.Number, i+1, err)
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// MarshalLine converts line i of e to a CSV row.
func MarshalLine(e model.JournalEntry, i int) []string {
	l := e.Lines[i]
	row := make([]string, numFields)
	row[colEntryID] = e.ID.String()
	row[colNumber] = e.Number
	row[colDate] = e.Date.Format(dateFormat)
	row[colKind] = string(e.Kind)
	row[colStatus] = string(e.Status)
	row[colLine] = strconv.Itoa(i + 1)
	row[colAcctCode] = l.AccountCode

	switch l.Side {
	case model.SideDebit:
		row[colDebit] = l.Amount.StringFixed(2)
	case model.SideCredit:
		row[colCredit] = l.Amount.StringFixed(2)
	}

	row[colMemo] = l.Memo
	if e.ReversalOf != uuid.Nil {
		row[colReversalOf] = e.ReversalOf.String()
	}
	return row
}

// UnmarshalRow converts a CSV row to a Row.
func UnmarshalRow(record []string) (Row, error) {
	if len(record) != numFields {
		return Row{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	entryID, err := uuid.Parse(record[colEntryID])
	if err != nil {
		return Row{}, fmt.Errorf("parsing entry_id %q: %w", record[colEntryID], err)
	}

	date, err := time.Parse(dateFormat, record[colDate])
	if err != nil {
		return Row{}, fmt.Errorf("parsing date %q: %w", record[colDate], err)
	}

	line, err := strconv.Atoi(record[colLine])
	if err != nil {
		return Row{}, fmt.Errorf("parsing line %q: %w", record[colLine], err)
	}

	var debit, credit decimal.Decimal
	if record[colDebit] != "" {
		debit, err = decimal.NewFromString(record[colDebit])
		if err != nil {
			return Row{}, fmt.Errorf("parsing debit %q: %w", record[colDebit], err)
		}
	}
	if record[colCredit] != "" {
		credit, err = decimal.NewFromString(record[colCredit])
		if err != nil {
			return Row{}, fmt.Errorf("parsing credit %q: %w", record[colCredit], err)
		}
	}

	var reversalOf uuid.UUID
	if record[colReversalOf] != "" {
		reversalOf, err = uuid.Parse(record[colReversalOf])
		if err != nil {
			return Row{}, fmt.Errorf("parsing reversal_of %q: %w", record[colReversalOf], err)
		}
	}

	return Row{
		EntryID:     entryID,
		Number:      record[colNumber],
		Date:        date,
		Kind:        model.EntryKind(record[colKind]),
		Status:      model.EntryStatus(record[colStatus]),
		Line:        line,
		AccountCode: record[colAcctCode],
		Debit:       debit,
		Credit:      credit,
		Memo:        record[colMemo],
		ReversalOf:  reversalOf,
	}, nil
}
