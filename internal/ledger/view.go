package ledger

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/coopbooks/coopbooks/internal/model"
)

// View reads one consistent state of the ledger. It is only valid inside
// the function passed to Read.
type View struct {
	l *Ledger
}

// Read calls fn with a view that no commit can change until fn returns.
func (l *Ledger) Read(fn func(View) error) error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return fn(View{l: l})
}

func (v View) Tenant() string { return v.l.tenant }

// Version is the ledger version the view reads.
func (v View) Version() int64 { return v.l.version }

// Accounts returns the chart of accounts in code order.
func (v View) Accounts() []model.Account { return v.l.accounts.All() }

// Balance returns the signed balance of code as of asOf.
func (v View) Balance(code string, asOf time.Time) decimal.Decimal {
	return v.l.balanceAsOf(code, asOf)
}

// Activity returns the signed postings of code dated in [from, to],
// skipping entries of the excluded kinds and reversals of such entries.
func (v View) Activity(code string, from, to time.Time, exclude ...model.EntryKind) decimal.Decimal {
	return v.l.activity(code, from, to, exclude...)
}
