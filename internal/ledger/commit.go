package ledger

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/coopbooks/coopbooks/internal/audit"
	"github.com/coopbooks/coopbooks/internal/journal"
	"github.com/coopbooks/coopbooks/internal/ledgererr"
	"github.com/coopbooks/coopbooks/internal/lock"
	"github.com/coopbooks/coopbooks/internal/model"
	"github.com/coopbooks/coopbooks/internal/store"
)

// lockShared holds the period covering date in shared mode, then every
// account in codes. Dates outside any period take no period lock; the
// validator rejects them anyway.
func (l *Ledger) lockShared(ctx context.Context, date time.Time, codes []string) (lock.Unlock, error) {
	l.mu.RLock()
	period, ok := l.periodFor(date)
	l.mu.RUnlock()

	if !ok {
		return l.acquire(ctx, noPeriod, codes)
	}
	return l.acquire(ctx, func(ctx context.Context) (lock.Unlock, error) {
		return l.periodLocks.Shared(ctx, period.ID.String())
	}, codes)
}

// lockExclusive holds periodID exclusively, then every account in codes.
func (l *Ledger) lockExclusive(ctx context.Context, periodID uuid.UUID, codes []string) (lock.Unlock, error) {
	return l.acquire(ctx, func(ctx context.Context) (lock.Unlock, error) {
		return l.periodLocks.Exclusive(ctx, periodID.String())
	}, codes)
}

func (l *Ledger) acquire(ctx context.Context, period func(context.Context) (lock.Unlock, error), codes []string) (lock.Unlock, error) {
	ctx, cancel := context.WithTimeout(ctx, l.lockWait)
	defer cancel()
	start := time.Now()
	defer func() { l.metrics.LockWaited(time.Since(start)) }()

	unlockPeriod, err := period(ctx)
	if err != nil {
		return nil, lockError(err)
	}
	if len(codes) == 0 {
		return unlockPeriod, nil
	}
	unlockAccounts, err := l.locker.Lock(ctx, codes...)
	if err != nil {
		unlockPeriod()
		return nil, lockError(err)
	}
	return func() {
		unlockAccounts()
		unlockPeriod()
	}, nil
}

func noPeriod(context.Context) (lock.Unlock, error) { return func() {}, nil }

func lockError(err error) error {
	if errors.Is(err, lock.ErrTimeout) {
		return ledgererr.New(ledgererr.LockTimeout, "timed out waiting for ledger locks: %v", err)
	}
	return fmt.Errorf("acquiring ledger locks: %w", err)
}

// postEntry validates entry and commits it as posted. check runs once
// commits are serialized and may reject a request that went stale while
// waiting for locks. also returns entries rewritten in the same commit.
func (l *Ledger) postEntry(ctx context.Context, actor, action string, entry model.JournalEntry,
	check func() error, also func(posted model.JournalEntry) ([]model.JournalEntry, error),
) (model.JournalEntry, error) {
	unlock, err := l.lockShared(ctx, entry.Date, entry.AccountCodes())
	if err != nil {
		return model.JournalEntry{}, l.fail(err)
	}
	defer unlock()

	l.mu.RLock()
	err = journal.Validate(entry, l.accounts, periodView{l})
	l.mu.RUnlock()
	if err != nil {
		return model.JournalEntry{}, l.fail(err)
	}

	l.commitMu.Lock()
	if check != nil {
		if err := check(); err != nil {
			l.commitMu.Unlock()
			return model.JournalEntry{}, l.fail(err)
		}
	}
	if entry.Number == "" {
		entry.Number = l.numbers.Peek(entry.Date)
	}
	if err := advance(&entry, model.StatusPosted); err != nil {
		l.commitMu.Unlock()
		return model.JournalEntry{}, l.fail(err)
	}
	entry.PostedAt = l.now()

	c := store.Commit{
		Entries:  []model.JournalEntry{entry},
		Postings: l.postingsFor(entry),
	}
	if also != nil {
		more, err := also(entry)
		if err != nil {
			l.commitMu.Unlock()
			return model.JournalEntry{}, l.fail(err)
		}
		c.Entries = append(c.Entries, more...)
	}
	err = l.commit(ctx, c)
	l.commitMu.Unlock()
	if err != nil {
		return model.JournalEntry{}, l.fail(err)
	}

	l.metrics.EntryPosted(l.tenant, string(entry.Kind))
	l.logger.Debug("entry posted",
		zap.String("number", entry.Number),
		zap.String("kind", string(entry.Kind)),
		zap.Int("lines", len(entry.Lines)))
	l.record(ctx, actor, action, "journal_entry", entry.ID.String(), entry.Number)
	return entry.Clone(), nil
}

// advance moves e to next through the entry state machine.
func advance(e *model.JournalEntry, next model.EntryStatus) error {
	if e.Status.CanTransition(next) {
		e.Status = next
		return nil
	}
	switch {
	case next == model.StatusPosted:
		return ledgererr.New(ledgererr.EntryNotDraft, "entry %s is %s", e.Number, e.Status)
	case e.Status == model.StatusReversed:
		return ledgererr.New(ledgererr.AlreadyReversed, "entry %s was already reversed", e.Number)
	default:
		return ledgererr.New(ledgererr.NotPosted, "entry %s is %s", e.Number, e.Status)
	}
}

// postingsFor derives the postings of entry in line order, continuing the
// running balances and the commit sequence. Caller holds commitMu.
func (l *Ledger) postingsFor(entries ...model.JournalEntry) []model.LedgerPosting {
	running := make(map[string]model.Balance)
	seq := l.lastSeq
	var out []model.LedgerPosting
	for _, e := range entries {
		for i, line := range e.Lines {
			bal, ok := running[line.AccountCode]
			if !ok {
				bal = l.balances[line.AccountCode]
			}
			acct, _ := l.accounts.Get(line.AccountCode)
			bal.Amount = bal.Amount.Add(acct.Signed(line.Side, line.Amount))
			bal.Version++
			running[line.AccountCode] = bal
			seq++
			out = append(out, model.LedgerPosting{
				ID:             uuid.New(),
				EntryID:        e.ID,
				LineIndex:      i,
				AccountCode:    line.AccountCode,
				Date:           e.Date,
				Side:           line.Side,
				Amount:         line.Amount,
				Kind:           e.Kind,
				Seq:            seq,
				RunningBalance: bal.Amount,
				Version:        bal.Version,
			})
		}
	}
	return out
}

// commit writes c through the store and then applies it. Nothing is
// applied when the store write fails. Caller holds commitMu.
func (l *Ledger) commit(ctx context.Context, c store.Commit) error {
	start := time.Now()
	if err := l.store.Commit(ctx, c); err != nil {
		l.logger.Warn("ledger commit failed", zap.Error(err))
		return l.resync(ctx, fmt.Errorf("committing ledger write: %w", err))
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range c.Entries {
		l.putEntry(e)
	}
	for _, p := range c.Postings {
		acct, _ := l.accounts.Get(p.AccountCode)
		bal := l.balances[p.AccountCode]
		bal.Amount = bal.Amount.Add(acct.Signed(p.Side, p.Amount))
		bal.Version = p.Version
		l.balances[p.AccountCode] = bal
		l.byAccount[p.AccountCode] = append(l.byAccount[p.AccountCode], len(l.postings))
		l.postings = append(l.postings, p)
		l.lastSeq = p.Seq
	}
	if c.Period != nil {
		l.putPeriod(*c.Period)
	}
	l.version++
	l.metrics.Committed(time.Since(start))
	return nil
}

// putPeriod inserts or replaces a period, keeping Start order. Caller
// holds mu.
func (l *Ledger) putPeriod(p model.FiscalPeriod) {
	if i := l.periodIndex(p.ID); i >= 0 {
		l.periods[i] = p
		return
	}
	l.periods = append(l.periods, p)
	slices.SortFunc(l.periods, func(a, b model.FiscalPeriod) int { return a.Start.Compare(b.Start) })
}

// update runs a write that touches no postings: fn checks and persists
// with commits serialized, then apply changes state under the write lock.
func (l *Ledger) update(ctx context.Context, fn func() (apply func(), err error)) error {
	l.commitMu.Lock()
	defer l.commitMu.Unlock()
	apply, err := fn()
	if err != nil {
		return l.fail(l.resync(ctx, err))
	}
	l.mu.Lock()
	apply()
	l.version++
	l.mu.Unlock()
	return nil
}

func (l *Ledger) fail(err error) error {
	code := string(ledgererr.CodeOf(err))
	if code == "" {
		code = "Internal"
	}
	l.metrics.PostFailed(l.tenant, code)
	return err
}

func (l *Ledger) record(ctx context.Context, actor, action, entityType, entityID, details string) {
	e := audit.Event{
		At:         l.now(),
		Tenant:     l.tenant,
		Actor:      actor,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Details:    details,
	}
	if err := l.audit.Record(ctx, e); err != nil {
		l.logger.Warn("audit record failed", zap.String("action", action), zap.Error(err))
	}
}
