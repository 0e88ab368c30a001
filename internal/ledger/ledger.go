// Package ledger is the stateful accounting core of one tenant: it posts
// validated journal entries, keeps running balances, manages fiscal
// periods and posts depreciation.
//
// State lives in memory behind a read/write lock and is written through a
// store.Store before it is applied, so readers never observe a partial
// commit and a failed store write leaves nothing behind.
package ledger

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/coopbooks/coopbooks/internal/accounts"
	"github.com/coopbooks/coopbooks/internal/audit"
	"github.com/coopbooks/coopbooks/internal/id"
	"github.com/coopbooks/coopbooks/internal/ledgererr"
	"github.com/coopbooks/coopbooks/internal/lock"
	"github.com/coopbooks/coopbooks/internal/logging"
	"github.com/coopbooks/coopbooks/internal/metrics"
	"github.com/coopbooks/coopbooks/internal/model"
	"github.com/coopbooks/coopbooks/internal/store"
)

// DefaultLockWait bounds how long a write waits for its locks.
const DefaultLockWait = 2 * time.Second

// Options configures a Ledger. Store is required.
type Options struct {
	Tenant           string
	Store            store.Store
	Locker           lock.Locker
	LockWait         time.Duration
	RetainedEarnings string // equity account receiving net income at close
	Audit            audit.Sink
	Metrics          *metrics.Collector
	Logger           *zap.Logger
	Now              func() time.Time
}

// Ledger is one tenant's books. It is safe for concurrent use.
type Ledger struct {
	tenant      string
	store       store.Store
	locker      lock.Locker
	periodLocks *lock.Periods
	lockWait    time.Duration
	equityCode  string
	audit       audit.Sink
	metrics     *metrics.Collector
	logger      *zap.Logger
	now         func() time.Time

	// commitMu serializes every state mutation from the final checks
	// through the store write and the in-memory apply. Holding it is
	// enough to read state without mu.
	commitMu sync.Mutex

	mu        sync.RWMutex
	accounts  *accounts.Registry
	entries   map[uuid.UUID]*model.JournalEntry
	postings  []model.LedgerPosting
	byAccount map[string][]int // indexes into postings
	balances  map[string]model.Balance
	periods   []model.FiscalPeriod // sorted by Start, contiguous
	assets    map[uuid.UUID]model.FixedAsset
	numbers   *id.Sequencer
	lastSeq   int64
	version   int64
}

// Open builds a Ledger from everything in opts.Store. Running balances are
// recomputed from the stored postings and checked against them.
func Open(ctx context.Context, opts Options) (*Ledger, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("ledger: store is required")
	}
	l := &Ledger{
		tenant:      opts.Tenant,
		store:       opts.Store,
		locker:      opts.Locker,
		periodLocks: lock.NewPeriods(),
		lockWait:    opts.LockWait,
		equityCode:  opts.RetainedEarnings,
		audit:       opts.Audit,
		metrics:     opts.Metrics,
		logger:      logging.OrNop(opts.Logger).With(zap.String("tenant", opts.Tenant)),
		now:         opts.Now,
	}
	l.resetState()
	if l.locker == nil {
		l.locker = lock.NewLocal()
	}
	if l.lockWait <= 0 {
		l.lockWait = DefaultLockWait
	}
	if l.equityCode == "" {
		l.equityCode = accounts.CodeRetainedEarnings
	}
	if l.audit == nil {
		l.audit = audit.Discard
	}
	if l.now == nil {
		l.now = time.Now
	}

	snap, err := opts.Store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading ledger %s: %w", opts.Tenant, err)
	}
	if err := l.replay(snap); err != nil {
		return nil, err
	}
	l.logger.Debug("ledger opened",
		zap.Int("accounts", l.accounts.Len()),
		zap.Int("entries", len(l.entries)),
		zap.Int("postings", len(l.postings)))
	return l, nil
}

func (l *Ledger) resetState() {
	l.accounts = nil
	l.entries = make(map[uuid.UUID]*model.JournalEntry)
	l.postings = nil
	l.byAccount = make(map[string][]int)
	l.balances = make(map[string]model.Balance)
	l.periods = nil
	l.assets = make(map[uuid.UUID]model.FixedAsset)
	l.numbers = id.NewSequencer()
	l.lastSeq = 0
}

// Refresh reloads the ledger when another process sharing its store has
// written since this ledger last loaded or wrote.
func (l *Ledger) Refresh(ctx context.Context) error {
	l.commitMu.Lock()
	defer l.commitMu.Unlock()
	stale, err := l.store.Stale(ctx)
	if err != nil {
		return fmt.Errorf("checking ledger %s for outside writes: %w", l.tenant, err)
	}
	if !stale {
		return nil
	}
	return l.reload(ctx)
}

// reload replaces the in-memory state with a fresh replay of the store.
// Caller holds commitMu.
func (l *Ledger) reload(ctx context.Context) error {
	snap, err := l.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("reloading ledger %s: %w", l.tenant, err)
	}
	fresh := &Ledger{logger: l.logger}
	fresh.resetState()
	if err := fresh.replay(snap); err != nil {
		return err
	}

	l.mu.Lock()
	l.accounts = fresh.accounts
	l.entries = fresh.entries
	l.postings = fresh.postings
	l.byAccount = fresh.byAccount
	l.balances = fresh.balances
	l.periods = fresh.periods
	l.assets = fresh.assets
	l.numbers = fresh.numbers
	l.lastSeq = fresh.lastSeq
	l.version++
	l.mu.Unlock()

	l.logger.Info("ledger reloaded after outside write", zap.Int64("seq", fresh.lastSeq))
	return nil
}

// resync turns a store write lost to another writer into a retryable
// ConflictingUpdate after reloading. Other errors pass through. Caller
// holds commitMu.
func (l *Ledger) resync(ctx context.Context, err error) error {
	if !errors.Is(err, store.ErrStale) {
		return err
	}
	if rerr := l.reload(ctx); rerr != nil {
		l.logger.Error("reload after conflicting write failed", zap.Error(rerr))
		return rerr
	}
	return ledgererr.New(ledgererr.ConflictingUpdate, "ledger changed by another writer: %v", err)
}

func (l *Ledger) replay(snap *store.Snapshot) error {
	reg, err := accounts.NewRegistryFrom(snap.Accounts)
	if err != nil {
		return fmt.Errorf("loading chart of accounts: %w", err)
	}
	l.accounts = reg

	for _, e := range snap.Entries {
		e := e.Clone()
		l.entries[e.ID] = &e
		l.numbers.Observe(e.Number)
	}

	l.periods = slices.Clone(snap.Periods)
	slices.SortFunc(l.periods, func(a, b model.FiscalPeriod) int { return a.Start.Compare(b.Start) })

	for _, a := range snap.Assets {
		l.assets[a.ID] = a
	}

	for _, p := range snap.Postings {
		acct, ok := l.accounts.Get(p.AccountCode)
		if !ok {
			return ledgererr.New(ledgererr.UnbalancedLedger, "posting %d names unknown account %s", p.Seq, p.AccountCode)
		}
		bal := l.balances[p.AccountCode]
		bal.Amount = bal.Amount.Add(acct.Signed(p.Side, p.Amount))
		bal.Version++
		if !bal.Amount.Equal(p.RunningBalance) || bal.Version != p.Version || p.Seq <= l.lastSeq {
			l.logger.Error("stored running balance disagrees with replay",
				zap.Int64("seq", p.Seq), zap.String("account", p.AccountCode),
				zap.String("stored", p.RunningBalance.String()), zap.String("replayed", bal.Amount.String()))
			return ledgererr.New(ledgererr.UnbalancedLedger, "posting %d on %s: stored balance %s, replayed %s",
				p.Seq, p.AccountCode, p.RunningBalance, bal.Amount)
		}
		l.balances[p.AccountCode] = bal
		l.byAccount[p.AccountCode] = append(l.byAccount[p.AccountCode], len(l.postings))
		l.postings = append(l.postings, p)
		l.lastSeq = p.Seq
	}
	return nil
}

// Tenant returns the tenant this ledger belongs to.
func (l *Ledger) Tenant() string { return l.tenant }

// Close closes the underlying store.
func (l *Ledger) Close() error { return l.store.Close() }

// Version increases on every committed change.
func (l *Ledger) Version() int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.version
}

// Account returns an account by code.
func (l *Ledger) Account(code string) (model.Account, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	acct, ok := l.accounts.Get(code)
	if !ok {
		return model.Account{}, ledgererr.New(ledgererr.UnknownAccount, "account %s does not exist", code)
	}
	return acct, nil
}

// Accounts returns the chart of accounts in code order.
func (l *Ledger) Accounts() []model.Account {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.accounts.All()
}

// Balance returns the signed balance of code from postings dated on or
// before asOf.
func (l *Ledger) Balance(code string, asOf time.Time) (decimal.Decimal, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if !l.accounts.Exists(code) {
		return decimal.Zero, ledgererr.New(ledgererr.UnknownAccount, "account %s does not exist", code)
	}
	return l.balanceAsOf(code, asOf), nil
}

// RollupBalance returns the balance of code and all its descendants.
func (l *Ledger) RollupBalance(code string, asOf time.Time) (decimal.Decimal, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if !l.accounts.Exists(code) {
		return decimal.Zero, ledgererr.New(ledgererr.UnknownAccount, "account %s does not exist", code)
	}
	total := decimal.Zero
	for _, c := range l.accounts.Descendants(code) {
		total = total.Add(l.balanceAsOf(c, asOf))
	}
	return total, nil
}

// CachedBalance returns the running balance over all postings.
func (l *Ledger) CachedBalance(code string) (model.Balance, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if !l.accounts.Exists(code) {
		return model.Balance{}, ledgererr.New(ledgererr.UnknownAccount, "account %s does not exist", code)
	}
	return l.balances[code], nil
}

// Postings returns the postings of code in commit order.
func (l *Ledger) Postings(code string) []model.LedgerPosting {
	l.mu.RLock()
	defer l.mu.RUnlock()
	idx := l.byAccount[code]
	out := make([]model.LedgerPosting, len(idx))
	for i, j := range idx {
		out[i] = l.postings[j]
	}
	return out
}

// Entry returns a journal entry by ID.
func (l *Ledger) Entry(entryID uuid.UUID) (model.JournalEntry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	e, ok := l.entries[entryID]
	if !ok {
		return model.JournalEntry{}, ledgererr.New(ledgererr.EntryNotFound, "entry %s does not exist", entryID)
	}
	return e.Clone(), nil
}

// EntryFilter narrows Entries. Zero fields match everything; From and To
// are inclusive.
type EntryFilter struct {
	From    time.Time
	To      time.Time
	Status  model.EntryStatus
	Kind    model.EntryKind
	Account string
}

func (f EntryFilter) match(e *model.JournalEntry) bool {
	if !f.From.IsZero() && e.Date.Before(model.Day(f.From)) {
		return false
	}
	if !f.To.IsZero() && e.Date.After(model.Day(f.To)) {
		return false
	}
	if f.Status != "" && e.Status != f.Status {
		return false
	}
	if f.Kind != "" && e.Kind != f.Kind {
		return false
	}
	if f.Account != "" && !slices.Contains(e.AccountCodes(), f.Account) {
		return false
	}
	return true
}

// Entries returns matching entries ordered by date, then number.
func (l *Ledger) Entries(f EntryFilter) []model.JournalEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []model.JournalEntry
	for _, e := range l.entries {
		if f.match(e) {
			out = append(out, e.Clone())
		}
	}
	slices.SortFunc(out, func(a, b model.JournalEntry) int {
		if c := a.Date.Compare(b.Date); c != 0 {
			return c
		}
		return cmp.Compare(a.Number, b.Number)
	})
	return out
}

// Periods returns every fiscal period in date order.
func (l *Ledger) Periods() []model.FiscalPeriod {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.periods)
}

// Period returns a fiscal period by ID.
func (l *Ledger) Period(periodID uuid.UUID) (model.FiscalPeriod, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	i := l.periodIndex(periodID)
	if i < 0 {
		return model.FiscalPeriod{}, ledgererr.New(ledgererr.PeriodNotFound, "period %s does not exist", periodID)
	}
	return l.periods[i], nil
}

// PeriodFor returns the period covering d.
func (l *Ledger) PeriodFor(d time.Time) (model.FiscalPeriod, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.periodFor(d)
}

// Assets returns every registered fixed asset ordered by name.
func (l *Ledger) Assets() []model.FixedAsset {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]model.FixedAsset, 0, len(l.assets))
	for _, a := range l.assets {
		out = append(out, a)
	}
	slices.SortFunc(out, func(a, b model.FixedAsset) int { return cmp.Compare(a.Name, b.Name) })
	return out
}

// Asset returns a fixed asset by ID.
func (l *Ledger) Asset(assetID uuid.UUID) (model.FixedAsset, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	a, ok := l.assets[assetID]
	if !ok {
		return model.FixedAsset{}, ledgererr.New(ledgererr.AssetNotFound, "asset %s does not exist", assetID)
	}
	return a, nil
}

// The helpers below read state without locking; callers hold mu or commitMu.

func (l *Ledger) balanceAsOf(code string, asOf time.Time) decimal.Decimal {
	acct, _ := l.accounts.Get(code)
	asOf = model.Day(asOf)
	total := decimal.Zero
	for _, i := range l.byAccount[code] {
		p := l.postings[i]
		if !p.Date.After(asOf) {
			total = total.Add(acct.Signed(p.Side, p.Amount))
		}
	}
	return total
}

// activity sums the signed postings of code dated in [from, to], skipping
// entries of the excluded kinds.
func (l *Ledger) activity(code string, from, to time.Time, exclude ...model.EntryKind) decimal.Decimal {
	acct, _ := l.accounts.Get(code)
	from, to = model.Day(from), model.Day(to)
	total := decimal.Zero
	for _, i := range l.byAccount[code] {
		p := l.postings[i]
		if p.Date.Before(from) || p.Date.After(to) || l.excluded(p, exclude) {
			continue
		}
		total = total.Add(acct.Signed(p.Side, p.Amount))
	}
	return total
}

// excluded reports whether p belongs to an entry of an excluded kind or
// to the reversal of one. Caller holds mu or commitMu.
func (l *Ledger) excluded(p model.LedgerPosting, exclude []model.EntryKind) bool {
	if len(exclude) == 0 {
		return false
	}
	if slices.Contains(exclude, p.Kind) {
		return true
	}
	if p.Kind != model.KindReversal {
		return false
	}
	rev, ok := l.entries[p.EntryID]
	if !ok {
		return false
	}
	orig, ok := l.entries[rev.ReversalOf]
	return ok && slices.Contains(exclude, orig.Kind)
}

func (l *Ledger) periodFor(d time.Time) (model.FiscalPeriod, bool) {
	for _, p := range l.periods {
		if p.Contains(d) {
			return p, true
		}
	}
	return model.FiscalPeriod{}, false
}

func (l *Ledger) periodIndex(periodID uuid.UUID) int {
	return slices.IndexFunc(l.periods, func(p model.FiscalPeriod) bool { return p.ID == periodID })
}

// periodView adapts unlocked period lookups to journal.PeriodChecker.
type periodView struct{ l *Ledger }

func (v periodView) PeriodFor(d time.Time) (model.FiscalPeriod, bool) { return v.l.periodFor(d) }
