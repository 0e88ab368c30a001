package accounts

import "github.com/coopbooks/coopbooks/internal/model"

// Well-known codes in the default chart.
const (
	CodeCash                    = "1-1000"
	CodeMemberLoans             = "1-1200"
	CodeFixedAssets             = "1-1500"
	CodeAccumulatedDepreciation = "1-1590"
	CodeMemberSavings           = "2-1000"
	CodeShareCapital            = "3-1000"
	CodeRetainedEarnings        = "3-2000"
	CodeLoanInterestIncome      = "4-1000"
	CodeDepreciationExpense     = "5-1500"
)

// DefaultChart returns the default chart of accounts for a savings and
// credit cooperative. Parents precede their children.
func DefaultChart() []model.Account {
	chart := []model.Account{
		{Code: "1-0000", Name: "Assets", Type: model.AccountTypeAsset},
		{Code: CodeCash, Name: "Cash on Hand", Type: model.AccountTypeAsset, ParentCode: "1-0000"},
		{Code: "1-1100", Name: "Bank Accounts", Type: model.AccountTypeAsset, ParentCode: "1-0000"},
		{Code: CodeMemberLoans, Name: "Member Loans Receivable", Type: model.AccountTypeAsset, ParentCode: "1-0000", Description: "Principal outstanding on member loans"},
		{Code: "1-1210", Name: "Loan Loss Allowance", Type: model.AccountTypeAsset, ParentCode: CodeMemberLoans, Description: "Contra account against member loans"},
		{Code: "1-1300", Name: "Interest Receivable", Type: model.AccountTypeAsset, ParentCode: "1-0000"},
		{Code: CodeFixedAssets, Name: "Fixed Assets", Type: model.AccountTypeAsset, ParentCode: "1-0000"},
		{Code: CodeAccumulatedDepreciation, Name: "Accumulated Depreciation", Type: model.AccountTypeAsset, ParentCode: CodeFixedAssets, Description: "Contra account against fixed assets"},

		{Code: "2-0000", Name: "Liabilities", Type: model.AccountTypeLiability},
		{Code: CodeMemberSavings, Name: "Member Savings", Type: model.AccountTypeLiability, ParentCode: "2-0000"},
		{Code: "2-1100", Name: "Time Deposits", Type: model.AccountTypeLiability, ParentCode: "2-0000"},
		{Code: "2-2000", Name: "Accrued Expenses", Type: model.AccountTypeLiability, ParentCode: "2-0000"},

		{Code: "3-0000", Name: "Equity", Type: model.AccountTypeEquity},
		{Code: CodeShareCapital, Name: "Member Share Capital", Type: model.AccountTypeEquity, ParentCode: "3-0000"},
		{Code: CodeRetainedEarnings, Name: "Retained Earnings", Type: model.AccountTypeEquity, ParentCode: "3-0000"},

		{Code: "4-0000", Name: "Revenue", Type: model.AccountTypeRevenue},
		{Code: CodeLoanInterestIncome, Name: "Loan Interest Income", Type: model.AccountTypeRevenue, ParentCode: "4-0000"},
		{Code: "4-1100", Name: "Loan Fee Income", Type: model.AccountTypeRevenue, ParentCode: "4-0000"},
		{Code: "4-1200", Name: "Penalty Income", Type: model.AccountTypeRevenue, ParentCode: "4-0000"},

		{Code: "5-0000", Name: "Expenses", Type: model.AccountTypeExpense},
		{Code: "5-1000", Name: "Interest on Member Savings", Type: model.AccountTypeExpense, ParentCode: "5-0000"},
		{Code: "5-1100", Name: "Salaries", Type: model.AccountTypeExpense, ParentCode: "5-0000"},
		{Code: "5-1200", Name: "Office Expenses", Type: model.AccountTypeExpense, ParentCode: "5-0000"},
		{Code: "5-1300", Name: "Loan Loss Provision", Type: model.AccountTypeExpense, ParentCode: "5-0000"},
		{Code: CodeDepreciationExpense, Name: "Depreciation Expense", Type: model.AccountTypeExpense, ParentCode: "5-0000"},
	}
	for i := range chart {
		chart[i].Active = true
	}
	return chart
}
