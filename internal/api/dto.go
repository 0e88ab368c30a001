package api

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/coopbooks/coopbooks/internal/depreciation"
	"github.com/coopbooks/coopbooks/internal/model"
)

// Date is a calendar date encoded as "YYYY-MM-DD".
type Date struct{ time.Time }

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.Format(time.DateOnly) + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := string(b)
	if s == "null" || s == `""` {
		d.Time = time.Time{}
		return nil
	}
	t, err := time.Parse(`"`+time.DateOnly+`"`, s)
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}

type accountJSON struct {
	ID          uuid.UUID         `json:"id"`
	Code        string            `json:"code" validate:"required,max=32"`
	Name        string            `json:"name" validate:"required,max=200"`
	Type        model.AccountType `json:"type" validate:"required,oneof=asset liability equity revenue expense"`
	NormalSide  model.Side        `json:"normal_side"`
	ParentCode  string            `json:"parent_code,omitempty" validate:"max=32"`
	Active      bool              `json:"active"`
	Description string            `json:"description,omitempty" validate:"max=500"`
}

func toAccount(a model.Account) accountJSON {
	return accountJSON{
		ID:          a.ID,
		Code:        a.Code,
		Name:        a.Name,
		Type:        a.Type,
		NormalSide:  a.NormalSide(),
		ParentCode:  a.ParentCode,
		Active:      a.Active,
		Description: a.Description,
	}
}

type lineJSON struct {
	AccountCode string          `json:"account_code" validate:"required,max=32"`
	Side        model.Side      `json:"side" validate:"required,oneof=debit credit"`
	Amount      decimal.Decimal `json:"amount"`
	Memo        string          `json:"memo,omitempty" validate:"max=500"`
}

type entryJSON struct {
	ID         uuid.UUID         `json:"id"`
	Number     string            `json:"number"`
	Date       Date              `json:"date"`
	Memo       string            `json:"memo,omitempty"`
	Status     model.EntryStatus `json:"status"`
	Kind       model.EntryKind   `json:"kind"`
	Lines      []lineJSON        `json:"lines"`
	ReversalOf *uuid.UUID        `json:"reversal_of,omitempty"`
	ReversedBy *uuid.UUID        `json:"reversed_by,omitempty"`
	AssetID    *uuid.UUID        `json:"asset_id,omitempty"`
	PeriodID   *uuid.UUID        `json:"period_id,omitempty"`
	CreatedBy  string            `json:"created_by,omitempty"`
	PostedAt   *time.Time        `json:"posted_at,omitempty"`
	Revision   int               `json:"revision"`
}

func optionalID(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func toEntry(e model.JournalEntry) entryJSON {
	out := entryJSON{
		ID:         e.ID,
		Number:     e.Number,
		Date:       Date{e.Date},
		Memo:       e.Memo,
		Status:     e.Status,
		Kind:       e.Kind,
		Lines:      make([]lineJSON, len(e.Lines)),
		ReversalOf: optionalID(e.ReversalOf),
		ReversedBy: optionalID(e.ReversedBy),
		AssetID:    optionalID(e.AssetID),
		PeriodID:   optionalID(e.PeriodID),
		CreatedBy:  e.CreatedBy,
		PostedAt:   optionalTime(e.PostedAt),
		Revision:   e.Revision,
	}
	for i, l := range e.Lines {
		out.Lines[i] = lineJSON(l)
	}
	return out
}

// entryRequest is the body of entry submissions and draft edits.
type entryRequest struct {
	Date     Date            `json:"date"`
	Memo     string          `json:"memo" validate:"max=500"`
	Kind     model.EntryKind `json:"kind" validate:"omitempty,oneof=standard adjusting closing reversal depreciation"`
	Lines    []lineJSON      `json:"lines" validate:"dive"`
	Revision int             `json:"revision" validate:"min=0"`
}

func (r entryRequest) lines() []model.JournalLine {
	out := make([]model.JournalLine, len(r.Lines))
	for i, l := range r.Lines {
		out[i] = model.JournalLine(l)
	}
	return out
}

type periodJSON struct {
	ID             uuid.UUID          `json:"id"`
	Name           string             `json:"name"`
	Start          Date               `json:"start"`
	End            Date               `json:"end"`
	Status         model.PeriodStatus `json:"status"`
	ClosedAt       *time.Time         `json:"closed_at,omitempty"`
	ClosingEntryID *uuid.UUID         `json:"closing_entry_id,omitempty"`
}

func toPeriod(p model.FiscalPeriod) periodJSON {
	return periodJSON{
		ID:             p.ID,
		Name:           p.Name,
		Start:          Date{p.Start},
		End:            Date{p.End},
		Status:         p.Status,
		ClosedAt:       optionalTime(p.ClosedAt),
		ClosingEntryID: optionalID(p.ClosingEntryID),
	}
}

type assetJSON struct {
	ID                 uuid.UUID                `json:"id"`
	Name               string                   `json:"name" validate:"required,max=200"`
	Cost               decimal.Decimal          `json:"cost"`
	Salvage            decimal.Decimal          `json:"salvage"`
	AcquiredOn         Date                     `json:"acquired_on"`
	UsefulLife         int                      `json:"useful_life"`
	Method             model.DepreciationMethod `json:"method" validate:"required,oneof=straight-line declining-balance"`
	Rate               decimal.Decimal          `json:"rate"`
	ExpenseAccount     string                   `json:"expense_account" validate:"required,max=32"`
	AccumulatedAccount string                   `json:"accumulated_account" validate:"required,max=32"`
}

func toAsset(a model.FixedAsset) assetJSON {
	return assetJSON{
		ID:                 a.ID,
		Name:               a.Name,
		Cost:               a.Cost,
		Salvage:            a.Salvage,
		AcquiredOn:         Date{a.AcquiredOn},
		UsefulLife:         a.UsefulLife,
		Method:             a.Method,
		Rate:               a.Rate,
		ExpenseAccount:     a.ExpenseAccount,
		AccumulatedAccount: a.AccumulatedAccount,
	}
}

func (a assetJSON) model() model.FixedAsset {
	return model.FixedAsset{
		ID:                 a.ID,
		Name:               a.Name,
		Cost:               a.Cost,
		Salvage:            a.Salvage,
		AcquiredOn:         a.AcquiredOn.Time,
		UsefulLife:         a.UsefulLife,
		Method:             a.Method,
		Rate:               a.Rate,
		ExpenseAccount:     a.ExpenseAccount,
		AccumulatedAccount: a.AccumulatedAccount,
	}
}

type installmentJSON struct {
	Date   Date            `json:"date"`
	Amount decimal.Decimal `json:"amount"`
}

func toSchedule(in []depreciation.Installment) []installmentJSON {
	out := make([]installmentJSON, len(in))
	for i, inst := range in {
		out[i] = installmentJSON{Date: Date{inst.Date}, Amount: inst.Amount}
	}
	return out
}
