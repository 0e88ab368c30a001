package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coopbooks/coopbooks/internal/model"
	"github.com/coopbooks/coopbooks/internal/store"
)

func date(y, m, d int) time.Time {
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func openTestStore(t *testing.T, tenant string) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "coopbooks.db")
	db, err := Open(path, nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(db, tenant), path
}

func seed(t *testing.T, s *Store) (cash, income model.Account, period model.FiscalPeriod) {
	t.Helper()
	ctx := context.Background()
	cash = model.Account{ID: uuid.New(), Code: "1-1000", Name: "Cash", Type: model.AccountTypeAsset, Active: true}
	income = model.Account{ID: uuid.New(), Code: "4-1000", Name: "Loan Interest Income", Type: model.AccountTypeRevenue, Active: true}
	require.NoError(t, s.SaveAccounts(ctx, []model.Account{cash, income}))

	period = model.FiscalPeriod{ID: uuid.New(), Name: "2025-01", Start: date(2025, 1, 1), End: date(2025, 1, 31), Status: model.PeriodOpen}
	require.NoError(t, s.SavePeriod(ctx, period))
	return cash, income, period
}

func TestCommitAndLoad(t *testing.T) {
	s, _ := openTestStore(t, "coop-a")
	ctx := context.Background()
	_, _, period := seed(t, s)

	entry := model.JournalEntry{
		ID:        uuid.New(),
		Number:    "2025-01-001",
		Date:      date(2025, 1, 15),
		Memo:      "interest",
		Status:    model.StatusPosted,
		Kind:      model.KindStandard,
		CreatedBy: "treasurer",
		CreatedAt: time.Date(2025, 1, 15, 9, 30, 0, 0, time.UTC),
		PostedAt:  time.Date(2025, 1, 15, 9, 30, 1, 0, time.UTC),
		Lines: []model.JournalLine{
			{AccountCode: "1-1000", Side: model.SideDebit, Amount: dec("100000.00"), Memo: "cash in"},
			{AccountCode: "4-1000", Side: model.SideCredit, Amount: dec("100000.00")},
		},
	}
	postings := []model.LedgerPosting{
		{ID: uuid.New(), EntryID: entry.ID, LineIndex: 0, AccountCode: "1-1000", Date: entry.Date, Side: model.SideDebit,
			Amount: dec("100000.00"), Kind: model.KindStandard, Seq: 1, RunningBalance: dec("100000.00"), Version: 1},
		{ID: uuid.New(), EntryID: entry.ID, LineIndex: 1, AccountCode: "4-1000", Date: entry.Date, Side: model.SideCredit,
			Amount: dec("100000.00"), Kind: model.KindStandard, Seq: 2, RunningBalance: dec("100000.00"), Version: 1},
	}
	closed := period
	closed.Status = model.PeriodClosed
	closed.ClosedAt = time.Date(2025, 2, 1, 8, 0, 0, 0, time.UTC)

	require.NoError(t, s.Commit(ctx, store.Commit{Entries: []model.JournalEntry{entry}, Postings: postings, Period: &closed}))

	snap, err := s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Accounts, 2)
	require.Len(t, snap.Entries, 1)
	require.Len(t, snap.Postings, 2)
	require.Len(t, snap.Periods, 1)

	got := snap.Entries[0]
	assert.Equal(t, entry.ID, got.ID)
	assert.Equal(t, "2025-01-001", got.Number)
	assert.True(t, got.Date.Equal(entry.Date))
	assert.True(t, got.CreatedAt.Equal(entry.CreatedAt))
	assert.True(t, got.PostedAt.Equal(entry.PostedAt))
	assert.Equal(t, uuid.Nil, got.ReversalOf)
	require.Len(t, got.Lines, 2)
	assert.Equal(t, "cash in", got.Lines[0].Memo)
	assert.True(t, got.Lines[0].Amount.Equal(dec("100000")))
	assert.Equal(t, model.SideCredit, got.Lines[1].Side)

	assert.Equal(t, int64(1), snap.Postings[0].Seq)
	assert.True(t, snap.Postings[1].RunningBalance.Equal(dec("100000")))

	assert.Equal(t, model.PeriodClosed, snap.Periods[0].Status)
	assert.True(t, snap.Periods[0].ClosedAt.Equal(closed.ClosedAt))
}

func TestCommitIsAtomic(t *testing.T) {
	s, _ := openTestStore(t, "coop-a")
	ctx := context.Background()
	seed(t, s)

	entry := model.JournalEntry{
		ID: uuid.New(), Number: "2025-01-001", Date: date(2025, 1, 15), Status: model.StatusPosted,
		Kind: model.KindStandard, CreatedAt: time.Now(),
		Lines: []model.JournalLine{{AccountCode: "1-1000", Side: model.SideDebit, Amount: dec("1")}},
	}
	// The posting names an account that does not exist, so the foreign key fails.
	bad := model.LedgerPosting{ID: uuid.New(), EntryID: entry.ID, AccountCode: "9-9999", Date: entry.Date,
		Side: model.SideDebit, Amount: dec("1"), Kind: model.KindStandard, Seq: 1, RunningBalance: dec("1"), Version: 1}

	err := s.Commit(ctx, store.Commit{Entries: []model.JournalEntry{entry}, Postings: []model.LedgerPosting{bad}})
	require.Error(t, err)

	snap, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, snap.Entries, "a failed commit leaves no entry behind")
	assert.Empty(t, snap.Postings)
}

func TestSaveAccountsIsAtomic(t *testing.T) {
	s, _ := openTestStore(t, "coop-a")
	ctx := context.Background()

	accts := []model.Account{
		{ID: uuid.New(), Code: "1-1000", Name: "Cash", Type: model.AccountTypeAsset, Active: true},
		{ID: uuid.New(), Code: "1-1100", Name: "Petty Cash", Type: model.AccountTypeAsset, ParentCode: "9-9999", Active: true},
	}
	require.Error(t, s.SaveAccounts(ctx, accts))

	snap, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, snap.Accounts, "no account of a failed batch is saved")
}

func TestWritesFailWhenAnotherWriterMovedOn(t *testing.T) {
	a, path := openTestStore(t, "coop-a")
	ctx := context.Background()
	_, _, period := seed(t, a)

	db, err := Open(path, nil)
	require.NoError(t, err)
	defer db.Close()
	b := New(db, "coop-a")
	_, err = b.Load(ctx)
	require.NoError(t, err)

	stale, err := b.Stale(ctx)
	require.NoError(t, err)
	assert.False(t, stale)

	period.Name = "January"
	require.NoError(t, a.SavePeriod(ctx, period))

	stale, err = b.Stale(ctx)
	require.NoError(t, err)
	assert.True(t, stale)

	period.Name = "Jan"
	err = b.SavePeriod(ctx, period)
	require.ErrorIs(t, err, store.ErrStale)

	snap, err := b.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "January", snap.Periods[0].Name, "the stale write left nothing behind")

	require.NoError(t, b.SavePeriod(ctx, period))
	stale, err = a.Stale(ctx)
	require.NoError(t, err)
	assert.True(t, stale)
}

func TestDrafts(t *testing.T) {
	s, _ := openTestStore(t, "coop-a")
	ctx := context.Background()
	seed(t, s)

	draft := model.JournalEntry{
		ID: uuid.New(), Number: "2025-01-001", Date: date(2025, 1, 3), Status: model.StatusDraft,
		Kind: model.KindAdjusting, CreatedAt: time.Now(),
		Lines: []model.JournalLine{
			{AccountCode: "1-1000", Side: model.SideDebit, Amount: dec("5")},
			{AccountCode: "4-1000", Side: model.SideCredit, Amount: dec("5")},
		},
	}
	require.NoError(t, s.SaveEntry(ctx, draft))

	draft.Lines = draft.Lines[:1]
	draft.Revision = 1
	require.NoError(t, s.SaveEntry(ctx, draft))

	snap, err := s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Entries, 1)
	assert.Len(t, snap.Entries[0].Lines, 1, "lines are replaced on update")
	assert.Equal(t, 1, snap.Entries[0].Revision)

	require.NoError(t, s.DeleteDraft(ctx, draft.ID))
	snap, err = s.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, snap.Entries)
}

func TestDeleteDraftRefusesPosted(t *testing.T) {
	s, _ := openTestStore(t, "coop-a")
	ctx := context.Background()
	seed(t, s)

	posted := model.JournalEntry{ID: uuid.New(), Number: "2025-01-001", Date: date(2025, 1, 3),
		Status: model.StatusPosted, Kind: model.KindStandard, CreatedAt: time.Now()}
	require.NoError(t, s.SaveEntry(ctx, posted))
	assert.Error(t, s.DeleteDraft(ctx, posted.ID))
}

func TestTenantsAreIsolated(t *testing.T) {
	a, path := openTestStore(t, "coop-a")
	ctx := context.Background()
	seed(t, a)

	db, err := Open(path, nil)
	require.NoError(t, err)
	defer db.Close()
	b := New(db, "coop-b")

	snap, err := b.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, snap.Accounts)

	seed(t, b)
	snap, err = b.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, snap.Accounts, 2)
}

func TestAssets(t *testing.T) {
	s, _ := openTestStore(t, "coop-a")
	ctx := context.Background()
	require.NoError(t, s.SaveAccounts(ctx, []model.Account{
		{ID: uuid.New(), Code: "5-1500", Name: "Depreciation", Type: model.AccountTypeExpense, Active: true},
		{ID: uuid.New(), Code: "1-1590", Name: "Accumulated", Type: model.AccountTypeAsset, Active: true},
	}))

	asset := model.FixedAsset{
		ID: uuid.New(), Name: "Motorbike", Cost: dec("1200000"), Salvage: dec("0"), AcquiredOn: date(2025, 1, 10),
		UsefulLife: 12, Method: model.MethodDecliningBalance, Rate: dec("0.15"),
		ExpenseAccount: "5-1500", AccumulatedAccount: "1-1590",
	}
	require.NoError(t, s.SaveAsset(ctx, asset))

	snap, err := s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Assets, 1)
	got := snap.Assets[0]
	assert.Equal(t, asset.ID, got.ID)
	assert.True(t, got.Cost.Equal(asset.Cost))
	assert.True(t, got.Rate.Equal(asset.Rate))
	assert.Equal(t, model.MethodDecliningBalance, got.Method)
	assert.True(t, got.AcquiredOn.Equal(asset.AcquiredOn))
}

func TestReopenRunsNoMigrations(t *testing.T) {
	_, path := openTestStore(t, "coop-a")
	db, err := Open(path, nil)
	require.NoError(t, err)
	assert.NoError(t, db.Close())
}
