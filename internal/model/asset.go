package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DepreciationMethod selects how a fixed asset's cost is spread.
type DepreciationMethod string

const (
	MethodStraightLine     DepreciationMethod = "straight-line"
	MethodDecliningBalance DepreciationMethod = "declining-balance"
)

// FixedAsset is a depreciable asset. Accumulated depreciation is derived
// from posted depreciation entries and is not stored here.
type FixedAsset struct {
	ID                 uuid.UUID
	Name               string
	Cost               decimal.Decimal
	Salvage            decimal.Decimal
	AcquiredOn         time.Time
	UsefulLife         int // monthly periods
	Method             DepreciationMethod
	Rate               decimal.Decimal // per period, declining-balance only
	ExpenseAccount     string
	AccumulatedAccount string
}

// DepreciableBase is cost minus salvage.
func (a FixedAsset) DepreciableBase() decimal.Decimal {
	return a.Cost.Sub(a.Salvage)
}
