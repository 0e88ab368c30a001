package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/coopbooks/coopbooks/internal/audit"
	"github.com/coopbooks/coopbooks/internal/journal"
	"github.com/coopbooks/coopbooks/internal/ledgererr"
	"github.com/coopbooks/coopbooks/internal/model"
	"github.com/coopbooks/coopbooks/internal/store"
)

const dateLayout = "2006-01-02"

// OpenPeriod appends an open fiscal period. Periods are contiguous: every
// period after the first starts the day after the previous one ends.
func (l *Ledger) OpenPeriod(ctx context.Context, actor, name string, start, end time.Time) (model.FiscalPeriod, error) {
	p := model.FiscalPeriod{
		ID:     uuid.New(),
		Name:   strings.TrimSpace(name),
		Start:  model.Day(start),
		End:    model.Day(end),
		Status: model.PeriodOpen,
	}
	if start.IsZero() || end.IsZero() {
		return model.FiscalPeriod{}, l.fail(ledgererr.New(ledgererr.InvalidPeriod, "period start and end are required"))
	}
	if p.End.Before(p.Start) {
		return model.FiscalPeriod{}, l.fail(ledgererr.New(ledgererr.InvalidPeriod, "period ends %s before it starts %s",
			p.End.Format(dateLayout), p.Start.Format(dateLayout)))
	}
	if p.Name == "" {
		p.Name = p.Start.Format("January 2006")
	}

	err := l.update(ctx, func() (func(), error) {
		if n := len(l.periods); n > 0 {
			last := l.periods[n-1]
			if want := last.End.AddDate(0, 0, 1); !p.Start.Equal(want) {
				return nil, ledgererr.New(ledgererr.PeriodNotContiguous, "period must start on %s, the day after %s ends",
					want.Format(dateLayout), last.Name)
			}
		}
		if err := l.store.SavePeriod(ctx, p); err != nil {
			return nil, fmt.Errorf("saving period %s: %w", p.Name, err)
		}
		return func() { l.putPeriod(p) }, nil
	})
	if err != nil {
		return model.FiscalPeriod{}, err
	}
	l.record(ctx, actor, audit.ActionPeriodOpen, "fiscal_period", p.ID.String(), p.Name)
	return p, nil
}

// ClosePeriod posts the closing entry of a period and closes it in one
// commit. The closing entry zeroes the period's revenue and expense
// activity and moves the net income into the retained earnings account.
// No posting into the period can run while it closes.
func (l *Ledger) ClosePeriod(ctx context.Context, actor string, periodID uuid.UUID) (model.FiscalPeriod, error) {
	l.mu.RLock()
	i := l.periodIndex(periodID)
	var codes []string
	for _, t := range []model.AccountType{model.AccountTypeRevenue, model.AccountTypeExpense} {
		for _, a := range l.accounts.ByType(t) {
			codes = append(codes, a.Code)
		}
	}
	l.mu.RUnlock()
	if i < 0 {
		return model.FiscalPeriod{}, l.fail(ledgererr.New(ledgererr.PeriodNotFound, "period %s does not exist", periodID))
	}

	unlock, err := l.lockExclusive(ctx, periodID, append(codes, l.equityCode))
	if err != nil {
		return model.FiscalPeriod{}, l.fail(err)
	}
	defer unlock()

	l.commitMu.Lock()
	p, closing, err := l.prepareClose(periodID, actor)
	if err == nil {
		c := store.Commit{Period: &p}
		if closing != nil {
			c.Entries = []model.JournalEntry{*closing}
			c.Postings = l.postingsFor(*closing)
		}
		err = l.commit(ctx, c)
	}
	l.commitMu.Unlock()
	if err != nil {
		return model.FiscalPeriod{}, l.fail(err)
	}

	l.metrics.PeriodClosed(l.tenant)
	details := "no activity"
	if closing != nil {
		l.metrics.EntryPosted(l.tenant, string(closing.Kind))
		details = "closing entry " + closing.Number
	}
	l.logger.Info("period closed", zap.String("period", p.Name), zap.String("details", details))
	l.record(ctx, actor, audit.ActionPeriodClose, "fiscal_period", p.ID.String(), details)
	return p, nil
}

// prepareClose checks that periodID may close and builds its closing
// entry, nil when the period had no revenue or expense activity. Caller
// holds commitMu.
func (l *Ledger) prepareClose(periodID uuid.UUID, actor string) (model.FiscalPeriod, *model.JournalEntry, error) {
	i := l.periodIndex(periodID)
	if i < 0 {
		return model.FiscalPeriod{}, nil, ledgererr.New(ledgererr.PeriodNotFound, "period %s does not exist", periodID)
	}
	p := l.periods[i]
	if !p.Status.CanTransition(model.PeriodClosed) {
		return model.FiscalPeriod{}, nil, ledgererr.New(ledgererr.ClosedPeriod, "period %s is already closed", p.Name)
	}
	for _, earlier := range l.periods[:i] {
		if earlier.Status == model.PeriodOpen {
			return model.FiscalPeriod{}, nil, ledgererr.New(ledgererr.PeriodOutOfOrder, "period %s must be closed before %s", earlier.Name, p.Name)
		}
	}
	for _, e := range l.entries {
		if e.Status == model.StatusDraft && e.Kind == model.KindAdjusting && p.Contains(e.Date) {
			return model.FiscalPeriod{}, nil, ledgererr.New(ledgererr.PeriodHasUnpostedAdjustments,
				"period %s has unposted adjusting entry %s", p.Name, e.Number)
		}
	}
	equity, ok := l.accounts.Get(l.equityCode)
	if !ok || !equity.Active || equity.Type != model.AccountTypeEquity {
		return model.FiscalPeriod{}, nil, ledgererr.New(ledgererr.InvalidEquityAccount,
			"retained earnings account %s must be an active equity account", l.equityCode)
	}

	lines, netIncome := l.closingLines(p)
	p.Status = model.PeriodClosed
	p.ClosedAt = l.now()
	if len(lines) == 0 {
		return p, nil, nil
	}

	switch netIncome.Sign() {
	case 1:
		lines = append(lines, model.JournalLine{AccountCode: equity.Code, Side: model.SideCredit, Amount: netIncome, Memo: "Net income"})
	case -1:
		lines = append(lines, model.JournalLine{AccountCode: equity.Code, Side: model.SideDebit, Amount: netIncome.Neg(), Memo: "Net loss"})
	}
	closing := model.JournalEntry{
		ID:        uuid.New(),
		Number:    l.numbers.Peek(p.End),
		Date:      p.End,
		Memo:      "Closing entry for " + p.Name,
		Status:    model.StatusDraft,
		Kind:      model.KindClosing,
		Lines:     lines,
		PeriodID:  p.ID,
		CreatedBy: actor,
		CreatedAt: l.now(),
		PostedAt:  l.now(),
	}
	if err := advance(&closing, model.StatusPosted); err != nil {
		return model.FiscalPeriod{}, nil, err
	}
	if err := journal.Validate(closing, l.accounts, periodView{l}); err != nil {
		l.logger.Error("closing entry failed validation", zap.String("period", p.Name), zap.Error(err))
		return model.FiscalPeriod{}, nil, err
	}
	p.ClosingEntryID = closing.ID
	return p, &closing, nil
}

// closingLines returns one line per revenue or expense account that zeroes
// its activity in p, and the period's net income. Earlier closing entries
// of a reopened period count as activity, so only what is new gets closed.
func (l *Ledger) closingLines(p model.FiscalPeriod) ([]model.JournalLine, decimal.Decimal) {
	var lines []model.JournalLine
	netIncome := decimal.Zero
	for _, t := range []model.AccountType{model.AccountTypeRevenue, model.AccountTypeExpense} {
		for _, a := range l.accounts.ByType(t) {
			net := l.activity(a.Code, p.Start, p.End)
			if net.IsZero() {
				continue
			}
			if t == model.AccountTypeRevenue {
				netIncome = netIncome.Add(net)
			} else {
				netIncome = netIncome.Sub(net)
			}
			side := a.NormalSide().Opposite()
			if net.IsNegative() {
				side = a.NormalSide()
			}
			lines = append(lines, model.JournalLine{AccountCode: a.Code, Side: side, Amount: net.Abs(), Memo: "Close " + a.Name})
		}
	}
	return lines, netIncome
}

// ReopenPeriod is an administrative override that reopens the latest
// closed period. Its closing entry stays posted; closing the period again
// only closes activity posted after the reopen.
func (l *Ledger) ReopenPeriod(ctx context.Context, actor string, periodID uuid.UUID, reason string) (model.FiscalPeriod, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return model.FiscalPeriod{}, l.fail(ledgererr.New(ledgererr.InvalidPeriod, "a reason is required to reopen a period"))
	}
	l.mu.RLock()
	found := l.periodIndex(periodID) >= 0
	l.mu.RUnlock()
	if !found {
		return model.FiscalPeriod{}, l.fail(ledgererr.New(ledgererr.PeriodNotFound, "period %s does not exist", periodID))
	}

	unlock, err := l.lockExclusive(ctx, periodID, nil)
	if err != nil {
		return model.FiscalPeriod{}, l.fail(err)
	}
	defer unlock()

	var p model.FiscalPeriod
	err = l.update(ctx, func() (func(), error) {
		i := l.periodIndex(periodID)
		p = l.periods[i]
		if p.Status != model.PeriodClosed {
			return nil, ledgererr.New(ledgererr.InvalidPeriod, "period %s is not closed", p.Name)
		}
		for _, later := range l.periods[i+1:] {
			if later.Status == model.PeriodClosed {
				return nil, ledgererr.New(ledgererr.PeriodOutOfOrder, "period %s is closed after %s", later.Name, p.Name)
			}
		}
		// Override: reopening bypasses PeriodStatus.CanTransition.
		p.Status = model.PeriodOpen
		p.ClosedAt = time.Time{}
		p.ClosingEntryID = uuid.Nil
		if err := l.store.SavePeriod(ctx, p); err != nil {
			return nil, fmt.Errorf("reopening period %s: %w", p.Name, err)
		}
		return func() { l.putPeriod(p) }, nil
	})
	if err != nil {
		return model.FiscalPeriod{}, err
	}
	l.logger.Warn("period reopened by override", zap.String("period", p.Name), zap.String("actor", actor), zap.String("reason", reason))
	l.record(ctx, actor, audit.ActionPeriodReopen, "fiscal_period", p.ID.String(), reason)
	return p, nil
}
