// Package id formats the human-readable journal entry numbers.
package id

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FormatEntryNumber returns an entry number like "2025-01-001".
func FormatEntryNumber(year, month, seq int) string {
	return fmt.Sprintf("%04d-%02d-%03d", year, month, seq)
}

// MonthKey returns the "YYYY-MM" bucket an entry dated d is numbered in.
func MonthKey(d time.Time) string {
	return fmt.Sprintf("%04d-%02d", d.Year(), int(d.Month()))
}

// ParseEntryNumber parses "2025-01-001" into year, month, seq.
func ParseEntryNumber(number string) (year, month, seq int, err error) {
	parts := strings.SplitN(number, "-", 3)
	if len(parts) != 3 {
		return 0, 0, 0, fmt.Errorf("invalid entry number format: %q", number)
	}

	year, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid year in entry number %q: %w", number, err)
	}

	month, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid month in entry number %q: %w", number, err)
	}
	if month < 1 || month > 12 {
		return 0, 0, 0, fmt.Errorf("month out of range in entry number %q", number)
	}

	seq, err = strconv.Atoi(parts[2])
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid sequence in entry number %q: %w", number, err)
	}

	return year, month, seq, nil
}

// Sequencer hands out per-month entry numbers. Not safe for concurrent use;
// the ledger guards it with its state lock.
type Sequencer struct {
	last map[string]int
}

// NewSequencer returns an empty Sequencer.
func NewSequencer() *Sequencer {
	return &Sequencer{last: make(map[string]int)}
}

// Next returns the next entry number for the month of d.
func (s *Sequencer) Next(d time.Time) string {
	key := MonthKey(d)
	s.last[key]++
	return FormatEntryNumber(d.Year(), int(d.Month()), s.last[key])
}

// Peek returns the number Next would return without consuming it.
func (s *Sequencer) Peek(d time.Time) string {
	return FormatEntryNumber(d.Year(), int(d.Month()), s.last[MonthKey(d)]+1)
}

// Observe records an existing number so Next never reissues it.
func (s *Sequencer) Observe(number string) {
	year, month, seq, err := ParseEntryNumber(number)
	if err != nil {
		return
	}
	key := fmt.Sprintf("%04d-%02d", year, month)
	if seq > s.last[key] {
		s.last[key] = seq
	}
}
