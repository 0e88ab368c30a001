package journal

import (
	"github.com/shopspring/decimal"

	"github.com/coopbooks/coopbooks/internal/model"
)

// Double returns the two lines of a simple entry moving amount from the
// credit account to the debit account.
func Double(debitCode, creditCode string, amount decimal.Decimal, memo string) []model.JournalLine {
	return []model.JournalLine{
		{AccountCode: debitCode, Side: model.SideDebit, Amount: amount, Memo: memo},
		{AccountCode: creditCode, Side: model.SideCredit, Amount: amount, Memo: memo},
	}
}

// Flip returns a copy of lines with every side reversed.
func Flip(lines []model.JournalLine) []model.JournalLine {
	out := make([]model.JournalLine, len(lines))
	for i, l := range lines {
		l.Side = l.Side.Opposite()
		out[i] = l
	}
	return out
}
