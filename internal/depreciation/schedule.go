// Package depreciation computes fixed-asset depreciation schedules.
package depreciation

import (
	"iter"
	"time"

	"github.com/shopspring/decimal"

	"github.com/coopbooks/coopbooks/internal/ledgererr"
	"github.com/coopbooks/coopbooks/internal/model"
)

// Installment is one scheduled depreciation charge.
type Installment struct {
	Date   time.Time
	Amount decimal.Decimal
}

// Validate checks that an asset can be depreciated.
func Validate(a model.FixedAsset) error {
	switch {
	case a.Name == "":
		return ledgererr.New(ledgererr.InvalidAsset, "asset name is required")
	case !a.Cost.IsPositive():
		return ledgererr.New(ledgererr.InvalidAsset, "asset %s: cost must be positive", a.Name)
	case a.Salvage.IsNegative() || a.Salvage.GreaterThanOrEqual(a.Cost):
		return ledgererr.New(ledgererr.InvalidAsset, "asset %s: salvage must be between 0 and cost", a.Name)
	case a.UsefulLife <= 0:
		return ledgererr.New(ledgererr.InvalidAsset, "asset %s: useful life must be positive", a.Name)
	case a.AcquiredOn.IsZero():
		return ledgererr.New(ledgererr.InvalidAsset, "asset %s: acquisition date is required", a.Name)
	case a.ExpenseAccount == "" || a.AccumulatedAccount == "":
		return ledgererr.New(ledgererr.InvalidAsset, "asset %s: expense and accumulated accounts are required", a.Name)
	}
	switch a.Method {
	case model.MethodStraightLine:
	case model.MethodDecliningBalance:
		if !a.Rate.IsPositive() || a.Rate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
			return ledgererr.New(ledgererr.InvalidAsset, "asset %s: declining-balance rate must be in (0, 1)", a.Name)
		}
	default:
		return ledgererr.New(ledgererr.InvalidAsset, "asset %s: unknown method %q", a.Name, a.Method)
	}
	return nil
}

// Schedule yields (period end, amount) pairs for the asset, one per month
// starting with the month of acquisition. Amounts are rounded to cents and
// sum exactly to cost minus salvage; the final installment absorbs any
// rounding remainder. Months whose charge rounds to zero are skipped. The
// sequence is finite and may be ranged over any number of times.
func Schedule(a model.FixedAsset) iter.Seq2[time.Time, decimal.Decimal] {
	return func(yield func(time.Time, decimal.Decimal) bool) {
		base := a.DepreciableBase()
		if a.UsefulLife <= 0 || !base.IsPositive() {
			return
		}

		perPeriod := base.Div(decimal.NewFromInt(int64(a.UsefulLife))).Round(2)
		remaining := base
		book := a.Cost
		for i := 0; i < a.UsefulLife && remaining.IsPositive(); i++ {
			var amount decimal.Decimal
			switch a.Method {
			case model.MethodDecliningBalance:
				amount = book.Mul(a.Rate).Round(2)
			default:
				amount = perPeriod
			}
			if i == a.UsefulLife-1 || amount.GreaterThan(remaining) {
				amount = remaining
			}
			if !amount.IsPositive() {
				continue
			}
			remaining = remaining.Sub(amount)
			book = book.Sub(amount)
			if !yield(PeriodEnd(a.AcquiredOn, i), amount) {
				return
			}
		}
	}
}

// Next returns the first installment not yet covered by accumulated.
// ok is false once the asset is fully depreciated.
func Next(a model.FixedAsset, accumulated decimal.Decimal) (Installment, bool) {
	covered := decimal.Zero
	for d, amount := range Schedule(a) {
		covered = covered.Add(amount)
		if covered.GreaterThan(accumulated) {
			// A partially covered installment only posts what is left of it.
			return Installment{Date: d, Amount: covered.Sub(accumulated)}, true
		}
	}
	return Installment{}, false
}

// Collect materializes the schedule.
func Collect(a model.FixedAsset) []Installment {
	var out []Installment
	for d, amount := range Schedule(a) {
		out = append(out, Installment{Date: d, Amount: amount})
	}
	return out
}

// BookValue is cost less accumulated depreciation.
func BookValue(a model.FixedAsset, accumulated decimal.Decimal) decimal.Decimal {
	return a.Cost.Sub(accumulated)
}

// PeriodEnd returns the last day of the month n months after start.
func PeriodEnd(start time.Time, n int) time.Time {
	y, m, _ := start.Date()
	return time.Date(y, m+time.Month(n)+1, 0, 0, 0, 0, 0, time.UTC)
}
