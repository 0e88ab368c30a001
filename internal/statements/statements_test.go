package statements

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/coopbooks/coopbooks/internal/accounts"
	"github.com/coopbooks/coopbooks/internal/ledger"
	"github.com/coopbooks/coopbooks/internal/ledgererr"
	"github.com/coopbooks/coopbooks/internal/model"
	"github.com/coopbooks/coopbooks/internal/store/memory"
)

func date(y, m, d int) time.Time {
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// newBooks returns a ledger with January 2026 open and a month of activity:
// 100000 share capital, a 40000 loan, 80000 interest and 30000 salaries.
func newBooks(t *testing.T) (*ledger.Ledger, model.FiscalPeriod) {
	t.Helper()
	ctx := context.Background()
	l, err := ledger.Open(ctx, ledger.Options{
		Tenant: "coop-a",
		Store:  memory.New(),
		Now:    func() time.Time { return date(2026, 2, 2) },
	})
	require.NoError(t, err)
	require.NoError(t, l.ImportAccounts(ctx, "system", accounts.DefaultChart()))
	jan, err := l.OpenPeriod(ctx, "treasurer", "", date(2026, 1, 1), date(2026, 1, 31))
	require.NoError(t, err)

	post(t, l, date(2026, 1, 2), accounts.CodeCash, accounts.CodeShareCapital, "100000")
	post(t, l, date(2026, 1, 5), accounts.CodeMemberLoans, accounts.CodeCash, "40000")
	post(t, l, date(2026, 1, 20), accounts.CodeCash, accounts.CodeLoanInterestIncome, "80000")
	post(t, l, date(2026, 1, 28), "5-1100", accounts.CodeCash, "30000")
	return l, jan
}

func post(t *testing.T, l *ledger.Ledger, d time.Time, debit, credit, amount string) {
	t.Helper()
	_, err := l.Submit(context.Background(), "treasurer", ledger.EntryRequest{Date: d, Lines: []model.JournalLine{
		{AccountCode: debit, Side: model.SideDebit, Amount: dec(amount)},
		{AccountCode: credit, Side: model.SideCredit, Amount: dec(amount)},
	}})
	require.NoError(t, err)
}

func TestBalanceSheet_IncludesCurrentEarnings(t *testing.T) {
	l, _ := newBooks(t)
	g := NewGenerator(nil)

	bs, err := g.BalanceSheet(l, date(2026, 1, 31))
	require.NoError(t, err)

	assert.True(t, dec("150000").Equal(bs.Assets.Total))
	assert.True(t, bs.Liabilities.Total.IsZero())
	assert.True(t, dec("50000").Equal(bs.CurrentEarnings))
	assert.True(t, dec("150000").Equal(bs.Equity.Total))
	assert.True(t, bs.Assets.Total.Equal(bs.TotalLiabilitiesAndEquity))

	last := bs.Equity.Lines[len(bs.Equity.Lines)-1]
	assert.Equal(t, CurrentEarningsLabel, last.Name)
}

func TestBalanceSheet_AfterCloseMovesEarningsToRetained(t *testing.T) {
	l, jan := newBooks(t)
	_, err := l.ClosePeriod(context.Background(), "treasurer", jan.ID)
	require.NoError(t, err)

	bs, err := NewGenerator(nil).BalanceSheet(l, date(2026, 1, 31))
	require.NoError(t, err)

	assert.True(t, bs.CurrentEarnings.IsZero())
	require.Len(t, bs.Equity.Lines, 2)
	assert.Equal(t, accounts.CodeRetainedEarnings, bs.Equity.Lines[1].Code)
	assert.True(t, dec("50000").Equal(bs.Equity.Lines[1].Amount))
	assert.True(t, bs.Assets.Total.Equal(bs.TotalLiabilitiesAndEquity))
}

func TestBalanceSheet_AccountingEquationHoldsOnEveryDay(t *testing.T) {
	l, jan := newBooks(t)
	_, err := l.ClosePeriod(context.Background(), "treasurer", jan.ID)
	require.NoError(t, err)
	g := NewGenerator(nil)

	for d := date(2025, 12, 31); !d.After(date(2026, 1, 31)); d = d.AddDate(0, 0, 1) {
		bs, err := g.BalanceSheet(l, d)
		require.NoError(t, err, d.Format(time.DateOnly))
		assert.True(t, bs.Assets.Total.Equal(bs.Liabilities.Total.Add(bs.Equity.Total)), d.Format(time.DateOnly))
	}
}

func TestIncomeStatement_ExcludesClosingEntries(t *testing.T) {
	l, jan := newBooks(t)
	g := NewGenerator(nil)

	before, err := g.IncomeStatement(l, jan.Start, jan.End)
	require.NoError(t, err)
	_, err = l.ClosePeriod(context.Background(), "treasurer", jan.ID)
	require.NoError(t, err)
	after, err := g.IncomeStatement(l, jan.Start, jan.End)
	require.NoError(t, err)

	for _, is := range []IncomeStatement{before, after} {
		assert.True(t, dec("80000").Equal(is.Revenue.Total))
		assert.True(t, dec("30000").Equal(is.Expenses.Total))
		assert.True(t, dec("50000").Equal(is.NetIncome))
	}
	require.Len(t, after.Revenue.Lines, 1)
	assert.Equal(t, accounts.CodeLoanInterestIncome, after.Revenue.Lines[0].Code)

	partial, err := g.IncomeStatement(l, date(2026, 1, 1), date(2026, 1, 25))
	require.NoError(t, err)
	assert.True(t, dec("80000").Equal(partial.NetIncome))

	_, err = g.IncomeStatement(l, jan.End, jan.Start)
	assert.Equal(t, ledgererr.InvalidPeriod, ledgererr.CodeOf(err))
}

func TestIncomeStatement_ExcludesReversedClosingEntries(t *testing.T) {
	l, jan := newBooks(t)
	ctx := context.Background()
	g := NewGenerator(nil)

	closed, err := l.ClosePeriod(ctx, "treasurer", jan.ID)
	require.NoError(t, err)
	_, err = l.OpenPeriod(ctx, "treasurer", "", date(2026, 2, 1), date(2026, 2, 28))
	require.NoError(t, err)
	rev, err := l.Reverse(ctx, "treasurer", closed.ClosingEntryID)
	require.NoError(t, err)
	require.Equal(t, date(2026, 2, 2), rev.Date)

	feb, err := g.IncomeStatement(l, date(2026, 2, 1), date(2026, 2, 28))
	require.NoError(t, err)
	assert.Empty(t, feb.Revenue.Lines)
	assert.Empty(t, feb.Expenses.Lines)
	assert.True(t, feb.NetIncome.IsZero())

	bs, err := g.BalanceSheet(l, date(2026, 2, 28))
	require.NoError(t, err)
	assert.True(t, dec("50000").Equal(bs.CurrentEarnings), "the reversal brings January's earnings back")
}

func TestTrialBalance(t *testing.T) {
	l, _ := newBooks(t)

	tb, err := NewGenerator(nil).TrialBalance(l, date(2026, 1, 31))
	require.NoError(t, err)

	assert.True(t, dec("180000").Equal(tb.TotalDebit))
	assert.True(t, dec("180000").Equal(tb.TotalCredit))
	require.Len(t, tb.Rows, 5)
	assert.Equal(t, accounts.CodeCash, tb.Rows[0].Code)
	assert.True(t, dec("110000").Equal(tb.Rows[0].Debit))
	assert.True(t, tb.Rows[0].Credit.IsZero())
}

func TestGenerator_CachesByLedgerVersion(t *testing.T) {
	l, _ := newBooks(t)
	g := NewGenerator(nil)

	first, err := g.BalanceSheet(l, date(2026, 1, 31))
	require.NoError(t, err)
	_, err = g.BalanceSheet(l, date(2026, 1, 31))
	require.NoError(t, err)
	assert.Equal(t, 1, g.cache.ItemCount())

	post(t, l, date(2026, 1, 30), accounts.CodeCash, accounts.CodeMemberSavings, "500")
	second, err := g.BalanceSheet(l, date(2026, 1, 31))
	require.NoError(t, err)
	assert.Equal(t, 2, g.cache.ItemCount())
	assert.True(t, second.Assets.Total.Sub(first.Assets.Total).Equal(dec("500")))

	g.Flush()
	assert.Equal(t, 0, g.cache.ItemCount())
}

func TestGenerator_ReturnsCopies(t *testing.T) {
	l, jan := newBooks(t)
	g := NewGenerator(nil)

	bs, err := g.BalanceSheet(l, date(2026, 1, 31))
	require.NoError(t, err)
	bs.Assets.Lines[0].Name = "edited"
	is, err := g.IncomeStatement(l, jan.Start, jan.End)
	require.NoError(t, err)
	is.Revenue.Lines[0].Amount = dec("1")
	tb, err := g.TrialBalance(l, date(2026, 1, 31))
	require.NoError(t, err)
	tb.Rows[0].Code = "edited"

	again, err := g.BalanceSheet(l, date(2026, 1, 31))
	require.NoError(t, err)
	assert.NotEqual(t, "edited", again.Assets.Lines[0].Name)
	again.Assets.Lines[0].Name = "edited again"

	third, err := g.BalanceSheet(l, date(2026, 1, 31))
	require.NoError(t, err)
	assert.NotEqual(t, "edited again", third.Assets.Lines[0].Name)

	isAgain, err := g.IncomeStatement(l, jan.Start, jan.End)
	require.NoError(t, err)
	assert.True(t, dec("80000").Equal(isAgain.Revenue.Lines[0].Amount))
	tbAgain, err := g.TrialBalance(l, date(2026, 1, 31))
	require.NoError(t, err)
	assert.Equal(t, accounts.CodeCash, tbAgain.Rows[0].Code)
}

type fakeView struct {
	accounts []model.Account
	balances map[string]decimal.Decimal
}

func (f fakeView) Tenant() string            { return "coop-x" }
func (f fakeView) Version() int64            { return 1 }
func (f fakeView) Accounts() []model.Account { return f.accounts }
func (f fakeView) Balance(code string, _ time.Time) decimal.Decimal {
	return f.balances[code]
}
func (f fakeView) Activity(code string, _, _ time.Time, _ ...model.EntryKind) decimal.Decimal {
	return f.balances[code]
}

func TestBuildBalanceSheet_UnbalancedLedger(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	v := fakeView{
		accounts: []model.Account{
			{Code: "1-1000", Name: "Cash", Type: model.AccountTypeAsset, Active: true},
			{Code: "3-1000", Name: "Share Capital", Type: model.AccountTypeEquity, Active: true},
		},
		balances: map[string]decimal.Decimal{"1-1000": dec("10"), "3-1000": dec("9")},
	}

	_, err := BuildBalanceSheet(v, date(2026, 1, 31), zap.New(core))
	require.Error(t, err)
	assert.Equal(t, ledgererr.UnbalancedLedger, ledgererr.CodeOf(err))
	assert.Equal(t, ledgererr.KindIntegrity, ledgererr.KindOf(err))
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "coop-x", logs.All()[0].ContextMap()["tenant"])

	_, err = BuildTrialBalance(v, date(2026, 1, 31), nil)
	assert.Equal(t, ledgererr.UnbalancedLedger, ledgererr.CodeOf(err))
}
