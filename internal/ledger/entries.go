package ledger

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/coopbooks/coopbooks/internal/audit"
	"github.com/coopbooks/coopbooks/internal/journal"
	"github.com/coopbooks/coopbooks/internal/ledgererr"
	"github.com/coopbooks/coopbooks/internal/model"
)

// EntryRequest is a caller-supplied journal entry. Kind defaults to
// standard; only standard and adjusting entries may be submitted directly.
type EntryRequest struct {
	Date  time.Time
	Memo  string
	Kind  model.EntryKind
	Lines []model.JournalLine
}

func (l *Ledger) newEntry(actor string, req EntryRequest) (model.JournalEntry, error) {
	kind := req.Kind
	if kind == "" {
		kind = model.KindStandard
	}
	if kind != model.KindStandard && kind != model.KindAdjusting {
		return model.JournalEntry{}, ledgererr.New(ledgererr.InvalidEntry, "entries of kind %q cannot be submitted", kind)
	}
	if req.Date.IsZero() {
		return model.JournalEntry{}, ledgererr.New(ledgererr.InvalidEntry, "entry date is required")
	}
	return model.JournalEntry{
		ID:        uuid.New(),
		Date:      model.Day(req.Date),
		Memo:      req.Memo,
		Status:    model.StatusDraft,
		Kind:      kind,
		Lines:     slices.Clone(req.Lines),
		CreatedBy: actor,
		CreatedAt: l.now(),
	}, nil
}

// Submit validates and posts a new entry in one step.
func (l *Ledger) Submit(ctx context.Context, actor string, req EntryRequest) (model.JournalEntry, error) {
	entry, err := l.newEntry(actor, req)
	if err != nil {
		return model.JournalEntry{}, l.fail(err)
	}
	return l.postEntry(ctx, actor, audit.ActionEntryPost, entry, nil, nil)
}

// CreateDraft stores an entry without posting it. Drafts get their number
// immediately; account and period checks wait until posting.
func (l *Ledger) CreateDraft(ctx context.Context, actor string, req EntryRequest) (model.JournalEntry, error) {
	entry, err := l.newEntry(actor, req)
	if err != nil {
		return model.JournalEntry{}, l.fail(err)
	}
	if err := journal.CheckLines(entry); err != nil {
		return model.JournalEntry{}, l.fail(err)
	}

	err = l.update(ctx, func() (func(), error) {
		entry.Number = l.numbers.Peek(entry.Date)
		if err := l.store.SaveEntry(ctx, entry); err != nil {
			return nil, fmt.Errorf("saving draft: %w", err)
		}
		return func() { l.putEntry(entry) }, nil
	})
	if err != nil {
		return model.JournalEntry{}, err
	}
	l.record(ctx, actor, audit.ActionEntryDraft, "journal_entry", entry.ID.String(), entry.Number)
	return entry.Clone(), nil
}

// UpdateDraft replaces the date, memo, kind and lines of a draft. revision
// must match the stored draft; a mismatch means someone else edited it.
func (l *Ledger) UpdateDraft(ctx context.Context, actor string, entryID uuid.UUID, revision int, req EntryRequest) (model.JournalEntry, error) {
	next, err := l.newEntry(actor, req)
	if err != nil {
		return model.JournalEntry{}, l.fail(err)
	}
	if err := journal.CheckLines(next); err != nil {
		return model.JournalEntry{}, l.fail(err)
	}

	var updated model.JournalEntry
	err = l.update(ctx, func() (func(), error) {
		cur, err := l.draft(entryID, revision)
		if err != nil {
			return nil, err
		}
		updated = cur.Clone()
		updated.Date = next.Date
		updated.Memo = next.Memo
		updated.Kind = next.Kind
		updated.Lines = next.Lines
		updated.Revision++
		if err := l.store.SaveEntry(ctx, updated); err != nil {
			return nil, fmt.Errorf("saving draft %s: %w", updated.Number, err)
		}
		return func() { l.putEntry(updated) }, nil
	})
	if err != nil {
		return model.JournalEntry{}, err
	}
	l.record(ctx, actor, audit.ActionEntryUpdate, "journal_entry", updated.ID.String(), fmt.Sprintf("revision %d", updated.Revision))
	return updated.Clone(), nil
}

// DiscardDraft deletes a draft.
func (l *Ledger) DiscardDraft(ctx context.Context, actor string, entryID uuid.UUID) error {
	var number string
	err := l.update(ctx, func() (func(), error) {
		cur, err := l.draft(entryID, -1)
		if err != nil {
			return nil, err
		}
		number = cur.Number
		if err := l.store.DeleteDraft(ctx, entryID); err != nil {
			return nil, fmt.Errorf("discarding draft %s: %w", cur.Number, err)
		}
		return func() { delete(l.entries, entryID) }, nil
	})
	if err != nil {
		return err
	}
	l.record(ctx, actor, audit.ActionEntryDiscard, "journal_entry", entryID.String(), number)
	return nil
}

// PostDraft validates and posts a draft. If the draft changes while the
// post waits for its locks, the post fails with ConflictingUpdate.
func (l *Ledger) PostDraft(ctx context.Context, actor string, entryID uuid.UUID) (model.JournalEntry, error) {
	l.mu.RLock()
	cur, err := l.draft(entryID, -1)
	l.mu.RUnlock()
	if err != nil {
		return model.JournalEntry{}, l.fail(err)
	}
	check := func() error {
		_, err := l.draft(entryID, cur.Revision)
		return err
	}
	return l.postEntry(ctx, actor, audit.ActionEntryPost, cur, check, nil)
}

// Reverse posts the mirror image of a posted entry, dated today, and marks
// the original reversed. The two entries reference each other.
func (l *Ledger) Reverse(ctx context.Context, actor string, entryID uuid.UUID) (model.JournalEntry, error) {
	l.mu.RLock()
	orig, err := l.reversible(entryID)
	l.mu.RUnlock()
	if err != nil {
		return model.JournalEntry{}, l.fail(err)
	}

	rev := model.JournalEntry{
		ID:         uuid.New(),
		Date:       model.Day(l.now()),
		Memo:       fmt.Sprintf("Reversal of %s", orig.Number),
		Status:     model.StatusDraft,
		Kind:       model.KindReversal,
		Lines:      journal.Flip(orig.Lines),
		ReversalOf: orig.ID,
		AssetID:    orig.AssetID,
		CreatedBy:  actor,
		CreatedAt:  l.now(),
	}
	check := func() error {
		_, err := l.reversible(entryID)
		return err
	}
	also := func(posted model.JournalEntry) ([]model.JournalEntry, error) {
		o := l.entries[entryID].Clone()
		if err := advance(&o, model.StatusReversed); err != nil {
			return nil, err
		}
		o.ReversedBy = posted.ID
		return []model.JournalEntry{o}, nil
	}
	return l.postEntry(ctx, actor, audit.ActionEntryReverse, rev, check, also)
}

// draft returns the draft entryID, checking its revision unless revision
// is negative. Caller holds mu or commitMu.
func (l *Ledger) draft(entryID uuid.UUID, revision int) (model.JournalEntry, error) {
	e, ok := l.entries[entryID]
	if !ok {
		return model.JournalEntry{}, ledgererr.New(ledgererr.EntryNotFound, "entry %s does not exist", entryID)
	}
	if e.Status != model.StatusDraft {
		return model.JournalEntry{}, ledgererr.New(ledgererr.EntryNotDraft, "entry %s is %s", e.Number, e.Status)
	}
	if revision >= 0 && e.Revision != revision {
		return model.JournalEntry{}, ledgererr.New(ledgererr.ConflictingUpdate, "entry %s is at revision %d, not %d", e.Number, e.Revision, revision)
	}
	return e.Clone(), nil
}

// reversible returns entryID if it may be reversed. Caller holds mu or
// commitMu.
func (l *Ledger) reversible(entryID uuid.UUID) (model.JournalEntry, error) {
	e, ok := l.entries[entryID]
	if !ok {
		return model.JournalEntry{}, ledgererr.New(ledgererr.EntryNotFound, "entry %s does not exist", entryID)
	}
	switch {
	case e.Status == model.StatusReversed || e.ReversedBy != uuid.Nil:
		return model.JournalEntry{}, ledgererr.New(ledgererr.AlreadyReversed, "entry %s was already reversed", e.Number)
	case e.Status != model.StatusPosted:
		return model.JournalEntry{}, ledgererr.New(ledgererr.NotPosted, "entry %s is %s", e.Number, e.Status)
	}
	return e.Clone(), nil
}

// putEntry stores e in memory. Caller holds mu.
func (l *Ledger) putEntry(e model.JournalEntry) {
	e = e.Clone()
	l.entries[e.ID] = &e
	l.numbers.Observe(e.Number)
}
