package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coopbooks/coopbooks/internal/accounts"
	"github.com/coopbooks/coopbooks/internal/ledgererr"
	"github.com/coopbooks/coopbooks/internal/model"
)

func vehicle() model.FixedAsset {
	return model.FixedAsset{
		Name:               "Motorcycle",
		Cost:               dec("1200000"),
		Salvage:            dec("0"),
		AcquiredOn:         date(2026, 1, 1),
		UsefulLife:         12,
		Method:             model.MethodStraightLine,
		ExpenseAccount:     accounts.CodeDepreciationExpense,
		AccumulatedAccount: accounts.CodeAccumulatedDepreciation,
	}
}

// openYear opens February through December 2026 after the fixture's January.
func openYear(t *testing.T, f *fixture) {
	t.Helper()
	for m := 2; m <= 12; m++ {
		start := date(2026, m, 1)
		_, err := f.l.OpenPeriod(context.Background(), actor, "", start, start.AddDate(0, 1, -1))
		require.NoError(t, err)
	}
}

func TestPostDepreciation_StraightLine(t *testing.T) {
	f := newFixture(t)
	openYear(t, f)
	ctx := context.Background()

	a, err := f.l.RegisterAsset(ctx, actor, vehicle())
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, a.ID)

	for i := range 12 {
		e, err := f.l.PostDepreciation(ctx, actor, a.ID, time.Time{})
		require.NoError(t, err, "installment %d", i+1)
		assert.Equal(t, model.KindDepreciation, e.Kind)
		assert.Equal(t, a.ID, e.AssetID)
		assert.Equal(t, date(2026, i+2, 0), e.Date)
		assert.True(t, dec("100000").Equal(e.Lines[0].Amount))
		assert.Equal(t, accounts.CodeDepreciationExpense, e.Lines[0].AccountCode)
		assert.Equal(t, model.SideCredit, e.Lines[1].Side)
	}

	acc, err := f.l.AccumulatedDepreciation(a.ID)
	require.NoError(t, err)
	assert.True(t, dec("1200000").Equal(acc))
	assert.True(t, dec("-1200000").Equal(f.balance(t, accounts.CodeAccumulatedDepreciation, date(2026, 12, 31))))

	_, err = f.l.PostDepreciation(ctx, actor, a.ID, time.Time{})
	assertCode(t, err, ledgererr.AssetFullyDepreciated)
}

func TestPostDepreciation_ReversalReopensInstallment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, err := f.l.RegisterAsset(ctx, actor, vehicle())
	require.NoError(t, err)

	e, err := f.l.PostDepreciation(ctx, actor, a.ID, date(2026, 1, 31))
	require.NoError(t, err)
	_, err = f.l.Reverse(ctx, actor, e.ID)
	require.NoError(t, err)

	acc, err := f.l.AccumulatedDepreciation(a.ID)
	require.NoError(t, err)
	assert.True(t, acc.IsZero())

	again, err := f.l.PostDepreciation(ctx, actor, a.ID, date(2026, 1, 31))
	require.NoError(t, err)
	assert.True(t, dec("100000").Equal(again.Lines[0].Amount))
	assert.Contains(t, again.Memo, "January 2026")
}

func TestPostDepreciation_ClosedPeriod(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, err := f.l.RegisterAsset(ctx, actor, vehicle())
	require.NoError(t, err)

	_, err = f.l.PostDepreciation(ctx, actor, a.ID, date(2026, 2, 28))
	assertCode(t, err, ledgererr.ClosedPeriod)
	acc, err := f.l.AccumulatedDepreciation(a.ID)
	require.NoError(t, err)
	assert.True(t, acc.IsZero())
}

func TestRegisterAsset_Rejects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		modify func(*model.FixedAsset)
	}{
		{"salvage above cost", func(a *model.FixedAsset) { a.Salvage = dec("2000000") }},
		{"no life", func(a *model.FixedAsset) { a.UsefulLife = 0 }},
		{"expense account is an asset", func(a *model.FixedAsset) { a.ExpenseAccount = accounts.CodeCash }},
		{"accumulated account is revenue", func(a *model.FixedAsset) { a.AccumulatedAccount = accounts.CodeLoanInterestIncome }},
		{"unknown account", func(a *model.FixedAsset) { a.ExpenseAccount = "5-9999" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := vehicle()
			tt.modify(&a)
			_, err := f.l.RegisterAsset(ctx, actor, a)
			assertCode(t, err, ledgererr.InvalidAsset)
		})
	}
	assert.Empty(t, f.l.Assets())

	_, err := f.l.PostDepreciation(ctx, actor, uuid.New(), time.Time{})
	assertCode(t, err, ledgererr.AssetNotFound)
	_, err = f.l.DepreciationSchedule(uuid.New())
	assertCode(t, err, ledgererr.AssetNotFound)
}

func TestDepreciationSchedule(t *testing.T) {
	f := newFixture(t)
	a, err := f.l.RegisterAsset(context.Background(), actor, vehicle())
	require.NoError(t, err)

	sched, err := f.l.DepreciationSchedule(a.ID)
	require.NoError(t, err)
	require.Len(t, sched, 12)
	assert.Equal(t, date(2026, 1, 31), sched[0].Date)
	assert.Equal(t, date(2026, 12, 31), sched[11].Date)
}
