package journal

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/coopbooks/coopbooks/internal/ledgererr"
	"github.com/coopbooks/coopbooks/internal/model"
)

// AccountChecker looks accounts up by code.
type AccountChecker interface {
	Get(code string) (model.Account, bool)
}

// PeriodChecker finds the fiscal period covering a date.
type PeriodChecker interface {
	PeriodFor(d time.Time) (model.FiscalPeriod, bool)
}

var hundred = decimal.NewFromInt(100)

// Validate checks an entry against the posting rules and returns the first
// violation found. Checks run in a fixed order: line count and amounts,
// account references, balance, then the fiscal period. It never mutates
// the entry or the checkers.
func Validate(entry model.JournalEntry, accounts AccountChecker, periods PeriodChecker) error {
	if err := CheckLines(entry); err != nil {
		return err
	}

	for i, l := range entry.Lines {
		acct, ok := accounts.Get(l.AccountCode)
		if !ok {
			return ledgererr.New(ledgererr.UnknownAccount, "entry %s line %d: unknown account %s", label(entry), i+1, l.AccountCode)
		}
		if !acct.Active {
			return ledgererr.New(ledgererr.InactiveAccount, "entry %s line %d: account %s is inactive", label(entry), i+1, l.AccountCode)
		}
	}

	debit, credit := entry.Totals()
	if !debit.Equal(credit) {
		return ledgererr.New(ledgererr.UnbalancedEntry, "entry %s: debits (%s) != credits (%s)",
			label(entry), debit.StringFixed(2), credit.StringFixed(2))
	}

	period, ok := periods.PeriodFor(entry.Date)
	if !ok {
		return ledgererr.New(ledgererr.ClosedPeriod, "entry %s: no fiscal period covers %s", label(entry), entry.Date.Format(dateFormat))
	}
	if period.Status != model.PeriodOpen {
		return ledgererr.New(ledgererr.ClosedPeriod, "entry %s: period %s is %s", label(entry), period.Name, period.Status)
	}
	return nil
}

// CheckLines runs the structural checks that need no ledger state: at
// least two lines, each with a valid side and a positive amount of at
// most two decimal places. Drafts are held to these checks on every edit.
func CheckLines(entry model.JournalEntry) error {
	if len(entry.Lines) < 2 {
		return ledgererr.New(ledgererr.UnbalancedEntry, "entry %s has %d lines, need at least 2", label(entry), len(entry.Lines))
	}
	for i, l := range entry.Lines {
		if !l.Side.Valid() {
			return ledgererr.New(ledgererr.InvalidAmount, "entry %s line %d: side must be debit or credit, got %q", label(entry), i+1, l.Side)
		}
		if !l.Amount.IsPositive() {
			return ledgererr.New(ledgererr.InvalidAmount, "entry %s line %d: amount %s must be positive", label(entry), i+1, l.Amount)
		}
		if !l.Amount.Mul(hundred).Equal(l.Amount.Mul(hundred).Floor()) {
			return ledgererr.New(ledgererr.InvalidAmount, "entry %s line %d: amount %s has more than 2 decimal places", label(entry), i+1, l.Amount)
		}
	}
	return nil
}

func label(e model.JournalEntry) string {
	if e.Number != "" {
		return e.Number
	}
	return "(new)"
}
