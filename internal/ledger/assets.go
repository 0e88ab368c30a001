package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/coopbooks/coopbooks/internal/audit"
	"github.com/coopbooks/coopbooks/internal/depreciation"
	"github.com/coopbooks/coopbooks/internal/journal"
	"github.com/coopbooks/coopbooks/internal/ledgererr"
	"github.com/coopbooks/coopbooks/internal/model"
)

// RegisterAsset records a fixed asset. The expense account must be an
// active expense account and the accumulated depreciation account an
// active asset (contra) account.
func (l *Ledger) RegisterAsset(ctx context.Context, actor string, a model.FixedAsset) (model.FixedAsset, error) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	a.Name = strings.TrimSpace(a.Name)
	a.AcquiredOn = model.Day(a.AcquiredOn)
	if err := depreciation.Validate(a); err != nil {
		return model.FixedAsset{}, l.fail(err)
	}

	err := l.update(ctx, func() (func(), error) {
		if err := l.checkAssetAccount(a.ExpenseAccount, model.AccountTypeExpense); err != nil {
			return nil, err
		}
		if err := l.checkAssetAccount(a.AccumulatedAccount, model.AccountTypeAsset); err != nil {
			return nil, err
		}
		if err := l.store.SaveAsset(ctx, a); err != nil {
			return nil, fmt.Errorf("saving asset %s: %w", a.Name, err)
		}
		return func() { l.assets[a.ID] = a }, nil
	})
	if err != nil {
		return model.FixedAsset{}, err
	}
	l.record(ctx, actor, audit.ActionAssetRegister, "fixed_asset", a.ID.String(), a.Name)
	return a, nil
}

func (l *Ledger) checkAssetAccount(code string, want model.AccountType) error {
	acct, ok := l.accounts.Get(code)
	switch {
	case !ok:
		return ledgererr.New(ledgererr.InvalidAsset, "account %s does not exist", code)
	case !acct.Active:
		return ledgererr.New(ledgererr.InvalidAsset, "account %s is inactive", code)
	case acct.Type != want:
		return ledgererr.New(ledgererr.InvalidAsset, "account %s is %s, want %s", code, acct.Type, want)
	}
	return nil
}

// PostDepreciation posts the next scheduled installment of an asset,
// debiting its expense account and crediting its accumulated depreciation
// account. The entry is dated periodEnd, or the installment's own period
// end when periodEnd is zero.
func (l *Ledger) PostDepreciation(ctx context.Context, actor string, assetID uuid.UUID, periodEnd time.Time) (model.JournalEntry, error) {
	l.mu.RLock()
	a, ok := l.assets[assetID]
	var next depreciation.Installment
	var remaining bool
	if ok {
		next, remaining = depreciation.Next(a, l.accumulated(a))
	}
	l.mu.RUnlock()
	if !ok {
		return model.JournalEntry{}, l.fail(ledgererr.New(ledgererr.AssetNotFound, "asset %s does not exist", assetID))
	}
	if !remaining {
		return model.JournalEntry{}, l.fail(ledgererr.New(ledgererr.AssetFullyDepreciated, "asset %s is fully depreciated", a.Name))
	}

	date := periodEnd
	if date.IsZero() {
		date = next.Date
	}
	entry := model.JournalEntry{
		ID:        uuid.New(),
		Date:      model.Day(date),
		Memo:      fmt.Sprintf("Depreciation of %s for %s", a.Name, next.Date.Format("January 2006")),
		Status:    model.StatusDraft,
		Kind:      model.KindDepreciation,
		Lines:     journal.Double(a.ExpenseAccount, a.AccumulatedAccount, next.Amount, a.Name),
		AssetID:   a.ID,
		CreatedBy: actor,
		CreatedAt: l.now(),
	}
	// A concurrent post for the same asset would make this installment stale.
	check := func() error {
		again, ok := depreciation.Next(a, l.accumulated(a))
		if !ok {
			return ledgererr.New(ledgererr.AssetFullyDepreciated, "asset %s is fully depreciated", a.Name)
		}
		if !again.Date.Equal(next.Date) || !again.Amount.Equal(next.Amount) {
			return ledgererr.New(ledgererr.ConflictingUpdate, "depreciation of %s changed while posting", a.Name)
		}
		return nil
	}
	return l.postEntry(ctx, actor, audit.ActionDepreciationPost, entry, check, nil)
}

// AccumulatedDepreciation returns the depreciation posted for an asset, net
// of reversals.
func (l *Ledger) AccumulatedDepreciation(assetID uuid.UUID) (decimal.Decimal, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	a, ok := l.assets[assetID]
	if !ok {
		return decimal.Zero, ledgererr.New(ledgererr.AssetNotFound, "asset %s does not exist", assetID)
	}
	return l.accumulated(a), nil
}

// DepreciationSchedule returns every installment of an asset's schedule.
func (l *Ledger) DepreciationSchedule(assetID uuid.UUID) ([]depreciation.Installment, error) {
	a, err := l.Asset(assetID)
	if err != nil {
		return nil, err
	}
	return depreciation.Collect(a), nil
}

// accumulated sums credits less debits on the asset's accumulated account
// over entries tagged with the asset. Caller holds mu or commitMu.
func (l *Ledger) accumulated(a model.FixedAsset) decimal.Decimal {
	total := decimal.Zero
	for _, e := range l.entries {
		if e.AssetID != a.ID || e.Status == model.StatusDraft {
			continue
		}
		for _, line := range e.Lines {
			if line.AccountCode != a.AccumulatedAccount {
				continue
			}
			if line.Side == model.SideCredit {
				total = total.Add(line.Amount)
			} else {
				total = total.Sub(line.Amount)
			}
		}
	}
	return total
}
