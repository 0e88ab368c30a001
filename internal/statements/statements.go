// Package statements builds financial statements from a consistent view of
// a ledger.
package statements

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/coopbooks/coopbooks/internal/ledgererr"
	"github.com/coopbooks/coopbooks/internal/logging"
	"github.com/coopbooks/coopbooks/internal/model"
)

// View is the read side of a ledger that statements need. ledger.View
// implements it.
type View interface {
	Tenant() string
	Version() int64
	Accounts() []model.Account
	Balance(code string, asOf time.Time) decimal.Decimal
	Activity(code string, from, to time.Time, exclude ...model.EntryKind) decimal.Decimal
}

// Line is one account on a statement.
type Line struct {
	Code   string          `json:"code"`
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`
}

// Section groups the lines of one account type.
type Section struct {
	Type  model.AccountType `json:"type"`
	Lines []Line            `json:"lines"`
	Total decimal.Decimal   `json:"total"`
}

func (s Section) clone() Section {
	s.Lines = slices.Clone(s.Lines)
	return s
}

func (s *Section) add(code, name string, amount decimal.Decimal) {
	s.Lines = append(s.Lines, Line{Code: code, Name: name, Amount: amount})
	s.Total = s.Total.Add(amount)
}

// BalanceSheet reports assets, liabilities and equity at a date. Equity
// includes current earnings: revenue less expenses not yet closed.
type BalanceSheet struct {
	AsOf                      time.Time       `json:"as_of"`
	Assets                    Section         `json:"assets"`
	Liabilities               Section         `json:"liabilities"`
	Equity                    Section         `json:"equity"`
	CurrentEarnings           decimal.Decimal `json:"current_earnings"`
	TotalLiabilitiesAndEquity decimal.Decimal `json:"total_liabilities_and_equity"`
}

// IncomeStatement reports revenue and expenses over a date range.
type IncomeStatement struct {
	From      time.Time       `json:"from"`
	To        time.Time       `json:"to"`
	Revenue   Section         `json:"revenue"`
	Expenses  Section         `json:"expenses"`
	NetIncome decimal.Decimal `json:"net_income"`
}

// TrialBalanceRow is one account's balance split into debit and credit
// columns.
type TrialBalanceRow struct {
	Code   string            `json:"code"`
	Name   string            `json:"name"`
	Type   model.AccountType `json:"type"`
	Debit  decimal.Decimal   `json:"debit"`
	Credit decimal.Decimal   `json:"credit"`
}

// TrialBalance lists every account with a balance at a date.
type TrialBalance struct {
	AsOf        time.Time         `json:"as_of"`
	Rows        []TrialBalanceRow `json:"rows"`
	TotalDebit  decimal.Decimal   `json:"total_debit"`
	TotalCredit decimal.Decimal   `json:"total_credit"`
}

func (bs BalanceSheet) clone() BalanceSheet {
	bs.Assets = bs.Assets.clone()
	bs.Liabilities = bs.Liabilities.clone()
	bs.Equity = bs.Equity.clone()
	return bs
}

func (is IncomeStatement) clone() IncomeStatement {
	is.Revenue = is.Revenue.clone()
	is.Expenses = is.Expenses.clone()
	return is
}

func (tb TrialBalance) clone() TrialBalance {
	tb.Rows = slices.Clone(tb.Rows)
	return tb
}

// CurrentEarningsLabel names the unclosed earnings line in equity.
const CurrentEarningsLabel = "Current Earnings"

// BuildBalanceSheet computes the balance sheet at asOf and checks that
// assets equal liabilities plus equity.
func BuildBalanceSheet(v View, asOf time.Time, logger *zap.Logger) (BalanceSheet, error) {
	asOf = model.Day(asOf)
	bs := BalanceSheet{
		AsOf:        asOf,
		Assets:      Section{Type: model.AccountTypeAsset},
		Liabilities: Section{Type: model.AccountTypeLiability},
		Equity:      Section{Type: model.AccountTypeEquity},
	}
	earnings := decimal.Zero
	for _, a := range v.Accounts() {
		bal := v.Balance(a.Code, asOf)
		if bal.IsZero() {
			continue
		}
		switch a.Type {
		case model.AccountTypeAsset:
			bs.Assets.add(a.Code, a.Name, bal)
		case model.AccountTypeLiability:
			bs.Liabilities.add(a.Code, a.Name, bal)
		case model.AccountTypeEquity:
			bs.Equity.add(a.Code, a.Name, bal)
		case model.AccountTypeRevenue:
			earnings = earnings.Add(bal)
		case model.AccountTypeExpense:
			earnings = earnings.Sub(bal)
		}
	}
	bs.CurrentEarnings = earnings
	if !earnings.IsZero() {
		bs.Equity.add("", CurrentEarningsLabel, earnings)
	}
	bs.TotalLiabilitiesAndEquity = bs.Liabilities.Total.Add(bs.Equity.Total)

	if !bs.Assets.Total.Equal(bs.TotalLiabilitiesAndEquity) {
		logging.OrNop(logger).Error("balance sheet does not balance",
			zap.String("tenant", v.Tenant()),
			zap.Time("as_of", asOf),
			zap.String("assets", bs.Assets.Total.String()),
			zap.String("liabilities_and_equity", bs.TotalLiabilitiesAndEquity.String()))
		return BalanceSheet{}, ledgererr.New(ledgererr.UnbalancedLedger, "assets %s != liabilities and equity %s at %s",
			bs.Assets.Total.StringFixed(2), bs.TotalLiabilitiesAndEquity.StringFixed(2), asOf.Format(time.DateOnly))
	}
	return bs, nil
}

// BuildIncomeStatement computes revenue and expense activity dated in
// [from, to]. Closing entries and their reversals are left out so a closed
// period still shows what it earned.
func BuildIncomeStatement(v View, from, to time.Time) (IncomeStatement, error) {
	from, to = model.Day(from), model.Day(to)
	if to.Before(from) {
		return IncomeStatement{}, ledgererr.New(ledgererr.InvalidPeriod, "statement ends %s before it starts %s",
			to.Format(time.DateOnly), from.Format(time.DateOnly))
	}
	is := IncomeStatement{
		From:     from,
		To:       to,
		Revenue:  Section{Type: model.AccountTypeRevenue},
		Expenses: Section{Type: model.AccountTypeExpense},
	}
	for _, a := range v.Accounts() {
		if !a.Type.Nominal() {
			continue
		}
		amount := v.Activity(a.Code, from, to, model.KindClosing)
		if amount.IsZero() {
			continue
		}
		if a.Type == model.AccountTypeRevenue {
			is.Revenue.add(a.Code, a.Name, amount)
		} else {
			is.Expenses.add(a.Code, a.Name, amount)
		}
	}
	is.NetIncome = is.Revenue.Total.Sub(is.Expenses.Total)
	return is, nil
}

// BuildTrialBalance lists each account's balance at asOf in its debit or
// credit column and checks that the columns agree.
func BuildTrialBalance(v View, asOf time.Time, logger *zap.Logger) (TrialBalance, error) {
	asOf = model.Day(asOf)
	tb := TrialBalance{AsOf: asOf}
	for _, a := range v.Accounts() {
		bal := v.Balance(a.Code, asOf)
		if bal.IsZero() {
			continue
		}
		row := TrialBalanceRow{Code: a.Code, Name: a.Name, Type: a.Type}
		side := a.NormalSide()
		if bal.IsNegative() {
			side = side.Opposite()
		}
		if side == model.SideDebit {
			row.Debit = bal.Abs()
		} else {
			row.Credit = bal.Abs()
		}
		tb.TotalDebit = tb.TotalDebit.Add(row.Debit)
		tb.TotalCredit = tb.TotalCredit.Add(row.Credit)
		tb.Rows = append(tb.Rows, row)
	}
	if !tb.TotalDebit.Equal(tb.TotalCredit) {
		logging.OrNop(logger).Error("trial balance does not balance",
			zap.String("tenant", v.Tenant()),
			zap.Time("as_of", asOf),
			zap.String("debit", tb.TotalDebit.String()),
			zap.String("credit", tb.TotalCredit.String()))
		return TrialBalance{}, ledgererr.New(ledgererr.UnbalancedLedger, "trial balance debits %s != credits %s at %s",
			tb.TotalDebit.StringFixed(2), tb.TotalCredit.StringFixed(2), asOf.Format(time.DateOnly))
	}
	return tb, nil
}
