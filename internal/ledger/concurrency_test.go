package ledger

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coopbooks/coopbooks/internal/accounts"
	"github.com/coopbooks/coopbooks/internal/ledgererr"
	"github.com/coopbooks/coopbooks/internal/lock"
	"github.com/coopbooks/coopbooks/internal/model"
)

func TestConcurrentPosts_SameAccounts(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.LockWait = 10 * time.Second })
	ctx := context.Background()

	const n = 50
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.l.Submit(ctx, actor, EntryRequest{Date: date(2026, 1, 15), Lines: []model.JournalLine{
				{AccountCode: accounts.CodeCash, Side: model.SideDebit, Amount: dec("10.01")},
				{AccountCode: accounts.CodeMemberSavings, Side: model.SideCredit, Amount: dec("10.01")},
			}})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	bal, err := f.l.CachedBalance(accounts.CodeCash)
	require.NoError(t, err)
	assert.True(t, dec("500.50").Equal(bal.Amount))
	assert.Equal(t, int64(n), bal.Version)

	running := decimal.Zero
	for i, p := range f.l.Postings(accounts.CodeCash) {
		running = running.Add(p.Amount)
		assert.True(t, running.Equal(p.RunningBalance), "posting %d", i)
		assert.Equal(t, int64(i+1), p.Version)
	}

	numbers := make(map[string]bool)
	for _, e := range f.l.Entries(EntryFilter{}) {
		assert.False(t, numbers[e.Number], "duplicate number %s", e.Number)
		numbers[e.Number] = true
	}
	assert.Len(t, numbers, n)
}

func TestConcurrentPosts_DisjointAccounts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pairs := [][2]string{
		{accounts.CodeCash, accounts.CodeShareCapital},
		{"1-1100", accounts.CodeMemberSavings},
		{accounts.CodeMemberLoans, "2-1100"},
		{"5-1100", "2-2000"},
	}

	var wg sync.WaitGroup
	for _, p := range pairs {
		for range 10 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := f.l.Submit(ctx, actor, EntryRequest{Date: date(2026, 1, 15), Lines: []model.JournalLine{
					{AccountCode: p[0], Side: model.SideDebit, Amount: dec("3")},
					{AccountCode: p[1], Side: model.SideCredit, Amount: dec("3")},
				}})
				assert.NoError(t, err)
			}()
		}
	}
	wg.Wait()

	for _, p := range pairs {
		for _, code := range p {
			assert.True(t, dec("30").Equal(f.balance(t, code, date(2026, 1, 31))), code)
		}
	}
}

func TestSubmit_LockTimeout(t *testing.T) {
	locker := lock.NewLocal()
	f := newFixture(t, func(o *Options) {
		o.Locker = locker
		o.LockWait = 50 * time.Millisecond
	})
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, accounts.CodeCash)
	require.NoError(t, err)

	req := EntryRequest{Date: date(2026, 1, 15), Lines: []model.JournalLine{
		{AccountCode: accounts.CodeCash, Side: model.SideDebit, Amount: dec("1")},
		{AccountCode: accounts.CodeShareCapital, Side: model.SideCredit, Amount: dec("1")},
	}}
	_, err = f.l.Submit(ctx, actor, req)
	assertCode(t, err, ledgererr.LockTimeout)
	assert.True(t, ledgererr.Retryable(err))
	assert.Empty(t, f.l.Postings(accounts.CodeShareCapital))

	unlock()
	_, err = f.l.Submit(ctx, actor, req)
	require.NoError(t, err)
}

func TestClosePeriod_WaitsForPosts(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.LockWait = 50 * time.Millisecond })
	ctx := context.Background()

	unlock, err := f.l.periodLocks.Shared(ctx, f.jan.ID.String())
	require.NoError(t, err)
	_, err = f.l.ClosePeriod(ctx, actor, f.jan.ID)
	assertCode(t, err, ledgererr.LockTimeout)
	unlock()

	p, err := f.l.Period(f.jan.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PeriodOpen, p.Status)
}

func TestClosePeriod_RacesWithPosts(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.LockWait = 10 * time.Second })
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	posted := 0
	for i := range 40 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.l.Submit(ctx, actor, EntryRequest{Date: date(2026, 1, 1+i%28), Memo: fmt.Sprintf("fee %d", i), Lines: []model.JournalLine{
				{AccountCode: accounts.CodeCash, Side: model.SideDebit, Amount: dec("2")},
				{AccountCode: "4-1100", Side: model.SideCredit, Amount: dec("2")},
			}})
			if err != nil {
				assert.Equal(t, ledgererr.ClosedPeriod, ledgererr.CodeOf(err), "error: %v", err)
				return
			}
			mu.Lock()
			posted++
			mu.Unlock()
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := f.l.ClosePeriod(ctx, actor, f.jan.ID)
		assert.NoError(t, err)
	}()
	wg.Wait()

	end := date(2026, 1, 31)
	assert.True(t, f.balance(t, "4-1100", end).IsZero(), "every accepted post is closed")
	assert.True(t, decimal.NewFromInt(int64(2*posted)).Equal(f.balance(t, accounts.CodeRetainedEarnings, end)))
	assert.True(t, decimal.NewFromInt(int64(2*posted)).Equal(f.balance(t, accounts.CodeCash, end)))
}
