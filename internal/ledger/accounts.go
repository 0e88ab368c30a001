package ledger

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/coopbooks/coopbooks/internal/accounts"
	"github.com/coopbooks/coopbooks/internal/audit"
	"github.com/coopbooks/coopbooks/internal/ledgererr"
	"github.com/coopbooks/coopbooks/internal/model"
)

// CreateAccount adds an active account to the chart. Only Code, Name,
// Type, ParentCode and Description of acct are used.
func (l *Ledger) CreateAccount(ctx context.Context, actor string, acct model.Account) (model.Account, error) {
	var created model.Account
	err := l.update(ctx, func() (func(), error) {
		a, err := l.accounts.New(acct.Code, acct.Name, acct.Type, acct.ParentCode)
		if err != nil {
			return nil, err
		}
		a.Description = strings.TrimSpace(acct.Description)
		if err := l.store.SaveAccounts(ctx, []model.Account{a}); err != nil {
			return nil, fmt.Errorf("saving account %s: %w", a.Code, err)
		}
		created = a
		return func() { l.accounts.Put(a) }, nil
	})
	if err != nil {
		return model.Account{}, err
	}
	l.record(ctx, actor, audit.ActionAccountCreate, "account", created.Code, created.Name)
	return created, nil
}

// ImportAccounts adds accts to the chart in one step. Parents may appear
// after their children; every account is checked against the existing
// chart and the rest of the batch before anything is saved.
func (l *Ledger) ImportAccounts(ctx context.Context, actor string, accts []model.Account) error {
	accts = slices.Clone(accts)
	for i := range accts {
		if accts[i].ID == uuid.Nil {
			accts[i].ID = uuid.New()
		}
	}
	err := l.update(ctx, func() (func(), error) {
		if _, err := accounts.NewRegistryFrom(append(l.accounts.All(), accts...)); err != nil {
			return nil, err
		}
		accts = parentFirst(accts)
		if err := l.store.SaveAccounts(ctx, accts); err != nil {
			return nil, fmt.Errorf("saving %d accounts: %w", len(accts), err)
		}
		return func() {
			for _, a := range accts {
				l.accounts.Put(a)
			}
		}, nil
	})
	if err != nil {
		return err
	}
	for _, a := range accts {
		l.record(ctx, actor, audit.ActionAccountCreate, "account", a.Code, a.Name)
	}
	return nil
}

// parentFirst orders a cycle-free batch so every parent inside the batch
// precedes its children.
func parentFirst(accts []model.Account) []model.Account {
	inBatch := make(map[string]bool, len(accts))
	for _, a := range accts {
		inBatch[a.Code] = true
	}
	placed := make(map[string]bool, len(accts))
	out := make([]model.Account, 0, len(accts))
	for len(out) < len(accts) {
		for _, a := range accts {
			if placed[a.Code] {
				continue
			}
			if a.ParentCode == "" || !inBatch[a.ParentCode] || placed[a.ParentCode] {
				placed[a.Code] = true
				out = append(out, a)
			}
		}
	}
	return out
}

// Deactivate marks an account inactive. It refuses while the account has
// a balance, postings in an open period, drafts naming it, or active
// children.
func (l *Ledger) Deactivate(ctx context.Context, actor, code string) (model.Account, error) {
	unlock, err := l.acquire(ctx, noPeriod, []string{code})
	if err != nil {
		return model.Account{}, l.fail(err)
	}
	defer unlock()

	var acct model.Account
	err = l.update(ctx, func() (func(), error) {
		a, err := l.accounts.Deactivate(code)
		if err != nil {
			return nil, err
		}
		if err := l.inUse(code); err != nil {
			return nil, err
		}
		if err := l.store.SaveAccounts(ctx, []model.Account{a}); err != nil {
			return nil, fmt.Errorf("saving account %s: %w", code, err)
		}
		acct = a
		return func() { l.accounts.Put(a) }, nil
	})
	if err != nil {
		return model.Account{}, err
	}
	l.record(ctx, actor, audit.ActionAccountDeactivate, "account", code, acct.Name)
	return acct, nil
}

// inUse reports why code cannot be deactivated. Caller holds commitMu.
func (l *Ledger) inUse(code string) error {
	if bal := l.balances[code]; !bal.Amount.IsZero() {
		return ledgererr.New(ledgererr.AccountInUse, "account %s has balance %s", code, bal.Amount.StringFixed(2))
	}
	for _, i := range l.byAccount[code] {
		d := l.postings[i].Date
		if p, ok := l.periodFor(d); ok && p.Status == model.PeriodOpen {
			return ledgererr.New(ledgererr.AccountInUse, "account %s has postings in open period %s", code, p.Name)
		}
	}
	for _, e := range l.entries {
		if e.Status != model.StatusDraft {
			continue
		}
		for _, line := range e.Lines {
			if line.AccountCode == code {
				return ledgererr.New(ledgererr.AccountInUse, "account %s is used by draft %s", code, e.Number)
			}
		}
	}
	return nil
}

// Reactivate marks an inactive account active again.
func (l *Ledger) Reactivate(ctx context.Context, actor, code string) (model.Account, error) {
	var acct model.Account
	err := l.update(ctx, func() (func(), error) {
		a, err := l.accounts.Reactivate(code)
		if err != nil {
			return nil, err
		}
		if err := l.store.SaveAccounts(ctx, []model.Account{a}); err != nil {
			return nil, fmt.Errorf("saving account %s: %w", code, err)
		}
		acct = a
		return func() { l.accounts.Put(a) }, nil
	})
	if err != nil {
		return model.Account{}, err
	}
	l.record(ctx, actor, audit.ActionAccountReactivate, "account", code, acct.Name)
	return acct, nil
}

// ChangeType changes an account's type. Once an account has a posting its
// type is fixed.
func (l *Ledger) ChangeType(ctx context.Context, actor, code string, t model.AccountType) (model.Account, error) {
	unlock, err := l.acquire(ctx, noPeriod, []string{code})
	if err != nil {
		return model.Account{}, l.fail(err)
	}
	defer unlock()

	var acct model.Account
	err = l.update(ctx, func() (func(), error) {
		if n := len(l.byAccount[code]); n > 0 {
			return nil, ledgererr.New(ledgererr.AccountInUse, "account %s has %d postings; its type is fixed", code, n)
		}
		a, err := l.accounts.Retype(code, t)
		if err != nil {
			return nil, err
		}
		if err := l.store.SaveAccounts(ctx, []model.Account{a}); err != nil {
			return nil, fmt.Errorf("saving account %s: %w", code, err)
		}
		acct = a
		return func() { l.accounts.Put(a) }, nil
	})
	if err != nil {
		return model.Account{}, err
	}
	l.record(ctx, actor, audit.ActionAccountRetype, "account", code, string(t))
	return acct, nil
}
