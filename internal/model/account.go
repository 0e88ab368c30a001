package model

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountType classifies accounts in the chart of accounts.
type AccountType string

const (
	AccountTypeAsset     AccountType = "asset"
	AccountTypeLiability AccountType = "liability"
	AccountTypeEquity    AccountType = "equity"
	AccountTypeRevenue   AccountType = "revenue"
	AccountTypeExpense   AccountType = "expense"
)

// AccountTypes lists every account type in statement order.
var AccountTypes = []AccountType{
	AccountTypeAsset,
	AccountTypeLiability,
	AccountTypeEquity,
	AccountTypeRevenue,
	AccountTypeExpense,
}

// Valid reports whether t is a known account type.
func (t AccountType) Valid() bool {
	switch t {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeEquity, AccountTypeRevenue, AccountTypeExpense:
		return true
	default:
		return false
	}
}

// NormalSide returns the side on which balances of this type grow.
func (t AccountType) NormalSide() Side {
	switch t {
	case AccountTypeAsset, AccountTypeExpense:
		return SideDebit
	case AccountTypeLiability, AccountTypeEquity, AccountTypeRevenue:
		return SideCredit
	default:
		return SideDebit
	}
}

// Nominal reports whether the type is closed into equity at period end.
func (t AccountType) Nominal() bool {
	return t == AccountTypeRevenue || t == AccountTypeExpense
}

// Account is one node in the chart of accounts. Parents are referenced by
// code, never owned.
type Account struct {
	ID          uuid.UUID
	Code        string // "1-1000"
	Name        string
	Type        AccountType
	ParentCode  string // "" = top-level
	Active      bool
	Description string
}

// NormalSide returns the account's normal balance side.
func (a Account) NormalSide() Side {
	return a.Type.NormalSide()
}

// Signed converts an amount on side s into the account's signed balance
// convention: positive when s is the normal side.
func (a Account) Signed(s Side, amount decimal.Decimal) decimal.Decimal {
	if s == a.NormalSide() {
		return amount
	}
	return amount.Neg()
}

// Balance is the cached running balance of one account.
type Balance struct {
	Amount  decimal.Decimal
	Version int64
}
