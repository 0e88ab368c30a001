// Package store defines the durable side of a tenant's ledger. The ledger
// writes through a Store before applying a change in memory and rebuilds
// its state from Load on startup.
package store

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/coopbooks/coopbooks/internal/model"
)

// Snapshot is everything a ledger needs to rebuild its state.
type Snapshot struct {
	Accounts []model.Account
	Entries  []model.JournalEntry // drafts included, lines in order
	Postings []model.LedgerPosting // in Seq order
	Periods  []model.FiscalPeriod // in Start order
	Assets   []model.FixedAsset
}

// Commit is one atomic ledger write. Entries are upserted with their lines
// replaced, postings are inserted, and Period, when set, is upserted.
type Commit struct {
	Entries  []model.JournalEntry
	Postings []model.LedgerPosting
	Period   *model.FiscalPeriod
}

// ErrStale is returned by a write when another writer changed the
// tenant's ledger after this Store last loaded or wrote it. Nothing is
// written; the caller reloads and tries again.
var ErrStale = errors.New("ledger changed by another writer")

// Store persists one tenant's ledger. Every write is atomic.
type Store interface {
	Load(ctx context.Context) (*Snapshot, error)
	// Stale reports whether another writer has changed the ledger since
	// the last Load or write through this Store.
	Stale(ctx context.Context) (bool, error)
	SaveAccounts(ctx context.Context, accts []model.Account) error
	SaveEntry(ctx context.Context, entry model.JournalEntry) error
	DeleteDraft(ctx context.Context, id uuid.UUID) error
	SavePeriod(ctx context.Context, p model.FiscalPeriod) error
	SaveAsset(ctx context.Context, a model.FixedAsset) error
	Commit(ctx context.Context, c Commit) error
	Close() error
}
