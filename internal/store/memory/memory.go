// Package memory is an in-process store.Store used by tests and by
// ledgers that do not need durability.
package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/coopbooks/coopbooks/internal/model"
	"github.com/coopbooks/coopbooks/internal/store"
)

// Store keeps copies of everything written to it.
type Store struct {
	mu       sync.RWMutex
	accounts map[string]model.Account
	entries  map[uuid.UUID]model.JournalEntry
	postings []model.LedgerPosting
	periods  map[uuid.UUID]model.FiscalPeriod
	assets   map[uuid.UUID]model.FixedAsset

	failNext error
}

var _ store.Store = (*Store)(nil)

// New creates an empty Store.
func New() *Store {
	return &Store{
		accounts: make(map[string]model.Account),
		entries:  make(map[uuid.UUID]model.JournalEntry),
		periods:  make(map[uuid.UUID]model.FiscalPeriod),
		assets:   make(map[uuid.UUID]model.FixedAsset),
	}
}

func (s *Store) Load(_ context.Context) (*store.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := &store.Snapshot{Postings: slices.Clone(s.postings)}
	for _, a := range s.accounts {
		snap.Accounts = append(snap.Accounts, a)
	}
	for _, e := range s.entries {
		snap.Entries = append(snap.Entries, e.Clone())
	}
	for _, p := range s.periods {
		snap.Periods = append(snap.Periods, p)
	}
	for _, a := range s.assets {
		snap.Assets = append(snap.Assets, a)
	}
	slices.SortFunc(snap.Accounts, func(a, b model.Account) int { return cmp.Compare(a.Code, b.Code) })
	slices.SortFunc(snap.Entries, func(a, b model.JournalEntry) int { return a.CreatedAt.Compare(b.CreatedAt) })
	slices.SortFunc(snap.Periods, func(a, b model.FiscalPeriod) int { return a.Start.Compare(b.Start) })
	slices.SortFunc(snap.Assets, func(a, b model.FixedAsset) int { return cmp.Compare(a.Name, b.Name) })
	return snap, nil
}

// Stale is always false: a memory store has a single writer.
func (s *Store) Stale(_ context.Context) (bool, error) { return false, nil }

func (s *Store) SaveAccounts(_ context.Context, accts []model.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected(); err != nil {
		return err
	}
	for _, a := range accts {
		s.accounts[a.Code] = a
	}
	return nil
}

func (s *Store) SaveEntry(_ context.Context, entry model.JournalEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected(); err != nil {
		return err
	}
	s.entries[entry.ID] = entry.Clone()
	return nil
}

func (s *Store) DeleteDraft(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected(); err != nil {
		return err
	}
	e, ok := s.entries[id]
	if !ok {
		return nil
	}
	if e.Status != model.StatusDraft {
		return fmt.Errorf("deleting entry %s: status is %s", id, e.Status)
	}
	delete(s.entries, id)
	return nil
}

func (s *Store) SavePeriod(_ context.Context, p model.FiscalPeriod) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected(); err != nil {
		return err
	}
	s.periods[p.ID] = p
	return nil
}

func (s *Store) SaveAsset(_ context.Context, a model.FixedAsset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected(); err != nil {
		return err
	}
	s.assets[a.ID] = a
	return nil
}

func (s *Store) Commit(_ context.Context, c store.Commit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected(); err != nil {
		return err
	}
	for _, e := range c.Entries {
		s.entries[e.ID] = e.Clone()
	}
	s.postings = append(s.postings, c.Postings...)
	if c.Period != nil {
		s.periods[c.Period.ID] = *c.Period
	}
	return nil
}

func (s *Store) Close() error { return nil }

// FailNextWrite makes the next write return err without writing anything.
func (s *Store) FailNextWrite(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = err
}

// injected returns and clears the error set by FailNextWrite. Caller
// holds mu.
func (s *Store) injected() error {
	err := s.failNext
	s.failNext = nil
	return err
}
