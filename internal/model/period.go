package model

import (
	"time"

	"github.com/google/uuid"
)

// PeriodStatus is the state of a fiscal period.
type PeriodStatus string

const (
	PeriodOpen   PeriodStatus = "open"
	PeriodClosed PeriodStatus = "closed"
)

// CanTransition reports whether a period may move from s to next.
// Reopening is an administrative override outside this state machine.
func (s PeriodStatus) CanTransition(next PeriodStatus) bool {
	switch s {
	case PeriodOpen:
		return next == PeriodClosed
	case PeriodClosed:
		return false
	default:
		return false
	}
}

// FiscalPeriod is a window of dates, both ends inclusive.
type FiscalPeriod struct {
	ID             uuid.UUID
	Name           string
	Start          time.Time
	End            time.Time
	Status         PeriodStatus
	ClosedAt       time.Time
	ClosingEntryID uuid.UUID
}

// Contains reports whether date d falls inside the period.
func (p FiscalPeriod) Contains(d time.Time) bool {
	d = Day(d)
	return !d.Before(p.Start) && !d.After(p.End)
}
