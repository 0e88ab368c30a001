package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Side is the debit or credit side of a journal line.
type Side string

const (
	SideDebit  Side = "debit"
	SideCredit Side = "credit"
)

// Valid reports whether s is debit or credit.
func (s Side) Valid() bool {
	return s == SideDebit || s == SideCredit
}

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == SideDebit {
		return SideCredit
	}
	return SideDebit
}

// EntryStatus represents the lifecycle state of a journal entry.
type EntryStatus string

const (
	StatusDraft    EntryStatus = "draft"
	StatusPosted   EntryStatus = "posted"
	StatusReversed EntryStatus = "reversed"
)

// CanTransition reports whether an entry may move from s to next.
// Draft -> Posted happens exactly once; Posted -> Reversed is terminal.
func (s EntryStatus) CanTransition(next EntryStatus) bool {
	switch s {
	case StatusDraft:
		return next == StatusPosted
	case StatusPosted:
		return next == StatusReversed
	case StatusReversed:
		return false
	default:
		return false
	}
}

// EntryKind records why an entry exists.
type EntryKind string

const (
	KindStandard     EntryKind = "standard"
	KindAdjusting    EntryKind = "adjusting"
	KindClosing      EntryKind = "closing"
	KindReversal     EntryKind = "reversal"
	KindDepreciation EntryKind = "depreciation"
)

// Valid reports whether k is a known entry kind.
func (k EntryKind) Valid() bool {
	switch k {
	case KindStandard, KindAdjusting, KindClosing, KindReversal, KindDepreciation:
		return true
	default:
		return false
	}
}

// JournalLine is one side of a double-entry.
type JournalLine struct {
	AccountCode string
	Side        Side
	Amount      decimal.Decimal // always positive
	Memo        string
}

// JournalEntry groups balanced lines posted together.
type JournalEntry struct {
	ID         uuid.UUID
	Number     string // "YYYY-MM-NNN"
	Date       time.Time
	Memo       string
	Status     EntryStatus
	Kind       EntryKind
	Lines      []JournalLine
	ReversalOf uuid.UUID // uuid.Nil unless Kind == KindReversal
	ReversedBy uuid.UUID
	AssetID    uuid.UUID // depreciation entries only
	PeriodID   uuid.UUID // closing entries only
	CreatedBy  string
	CreatedAt  time.Time
	PostedAt   time.Time
	Revision   int
}

// Clone returns a deep copy so callers cannot mutate stored lines.
func (e JournalEntry) Clone() JournalEntry {
	e.Lines = append([]JournalLine(nil), e.Lines...)
	return e
}

// Totals returns the debit and credit sums of the entry.
func (e JournalEntry) Totals() (debit, credit decimal.Decimal) {
	debit, credit = decimal.Zero, decimal.Zero
	for _, l := range e.Lines {
		switch l.Side {
		case SideDebit:
			debit = debit.Add(l.Amount)
		case SideCredit:
			credit = credit.Add(l.Amount)
		}
	}
	return debit, credit
}

// AccountCodes returns the distinct account codes referenced by the lines,
// in first-seen order.
func (e JournalEntry) AccountCodes() []string {
	seen := make(map[string]bool, len(e.Lines))
	var codes []string
	for _, l := range e.Lines {
		if !seen[l.AccountCode] {
			seen[l.AccountCode] = true
			codes = append(codes, l.AccountCode)
		}
	}
	return codes
}

// LedgerPosting is the immutable record of one posted line.
type LedgerPosting struct {
	ID             uuid.UUID
	EntryID        uuid.UUID
	LineIndex      int
	AccountCode    string
	Date           time.Time
	Side           Side
	Amount         decimal.Decimal
	Kind           EntryKind
	Seq            int64           // commit order across the ledger
	RunningBalance decimal.Decimal // account balance after this posting, in commit order
	Version        int64           // account balance version after this posting
}

// Day truncates t to a UTC calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
