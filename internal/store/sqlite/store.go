package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	moderncsqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/coopbooks/coopbooks/internal/model"
	"github.com/coopbooks/coopbooks/internal/store"
)

const (
	dateFormat = "2006-01-02"
	timeFormat = time.RFC3339Nano
)

// Store persists one tenant's ledger in a shared database. Every write
// bumps the tenant's row in ledger_heads and fails with store.ErrStale
// when that row moved since this Store last loaded or wrote.
type Store struct {
	db     *sql.DB
	tenant string

	mu  sync.Mutex
	rev int64
}

var _ store.Store = (*Store)(nil)

// New returns a Store for tenant over an opened, migrated db. The caller
// owns db; Close does not close it.
func New(db *sql.DB, tenant string) *Store {
	return &Store{db: db, tenant: tenant}
}

func (s *Store) Close() error { return nil }

// SaveAccounts upserts accts in one transaction, in order.
func (s *Store) SaveAccounts(ctx context.Context, accts []model.Account) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, a := range accts {
			if err := s.saveAccount(ctx, tx, a); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) saveAccount(ctx context.Context, tx *sql.Tx, a model.Account) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO accounts (tenant_id, id, code, name, type, parent_code, active, description)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (tenant_id, code) DO UPDATE SET
			name = excluded.name,
			type = excluded.type,
			parent_code = excluded.parent_code,
			active = excluded.active,
			description = excluded.description`,
		s.tenant, a.ID.String(), a.Code, a.Name, string(a.Type), nullString(a.ParentCode), a.Active, a.Description)
	if err != nil {
		return fmt.Errorf("saving account %s: %w", a.Code, err)
	}
	return nil
}

func (s *Store) SavePeriod(ctx context.Context, p model.FiscalPeriod) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return s.savePeriod(ctx, tx, p)
	})
}

func (s *Store) SaveAsset(ctx context.Context, a model.FixedAsset) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return s.saveAsset(ctx, tx, a)
	})
}

func (s *Store) saveAsset(ctx context.Context, tx *sql.Tx, a model.FixedAsset) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO fixed_assets (tenant_id, id, name, cost, salvage, acquired_on, useful_life, method, rate,
			expense_account, accumulated_account)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			cost = excluded.cost,
			salvage = excluded.salvage,
			acquired_on = excluded.acquired_on,
			useful_life = excluded.useful_life,
			method = excluded.method,
			rate = excluded.rate,
			expense_account = excluded.expense_account,
			accumulated_account = excluded.accumulated_account`,
		s.tenant, a.ID.String(), a.Name, a.Cost.String(), a.Salvage.String(), a.AcquiredOn.Format(dateFormat),
		a.UsefulLife, string(a.Method), a.Rate.String(), a.ExpenseAccount, a.AccumulatedAccount)
	if err != nil {
		return fmt.Errorf("saving asset %s: %w", a.Name, err)
	}
	return nil
}

func (s *Store) SaveEntry(ctx context.Context, e model.JournalEntry) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return s.saveEntry(ctx, tx, e)
	})
}

func (s *Store) DeleteDraft(ctx context.Context, id uuid.UUID) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`DELETE FROM journal_entries WHERE tenant_id = ? AND id = ? AND status = 'draft'`, s.tenant, id.String())
		if err != nil {
			return fmt.Errorf("deleting draft %s: %w", id, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			var status string
			err := tx.QueryRowContext(ctx,
				`SELECT status FROM journal_entries WHERE tenant_id = ? AND id = ?`, s.tenant, id.String()).Scan(&status)
			if err == nil {
				return fmt.Errorf("deleting entry %s: status is %s", id, status)
			}
		}
		return nil
	})
}

// Commit writes entries, postings and the period in one transaction.
func (s *Store) Commit(ctx context.Context, c store.Commit) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if c.Period != nil {
			if err := s.savePeriod(ctx, tx, *c.Period); err != nil {
				return err
			}
		}
		for _, e := range c.Entries {
			if err := s.saveEntry(ctx, tx, e); err != nil {
				return err
			}
		}
		for _, p := range c.Postings {
			if err := s.insertPosting(ctx, tx, p); err != nil {
				return err
			}
		}
		return nil
	})
}

// inTx runs fn in a transaction that first advances the tenant's
// revision from the one this Store last saw.
func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.advance(ctx, tx); err != nil {
		return conflict(err)
	}
	if err := fn(tx); err != nil {
		return conflict(err)
	}
	if err := tx.Commit(); err != nil {
		return conflict(fmt.Errorf("committing transaction: %w", err))
	}
	s.rev++
	return nil
}

func (s *Store) advance(ctx context.Context, tx *sql.Tx) error {
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO ledger_heads (tenant_id, revision) VALUES (?, 0) ON CONFLICT (tenant_id) DO NOTHING`, s.tenant); err != nil {
		return fmt.Errorf("creating ledger revision: %w", err)
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE ledger_heads SET revision = revision + 1 WHERE tenant_id = ? AND revision = ?`, s.tenant, s.rev)
	if err != nil {
		return fmt.Errorf("advancing ledger revision: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("advancing ledger revision: %w", err)
	} else if n == 0 {
		return fmt.Errorf("tenant %s is past revision %d: %w", s.tenant, s.rev, store.ErrStale)
	}
	return nil
}

// conflict marks unique-key collisions and lost write races as
// store.ErrStale: both mean another writer got there first.
func conflict(err error) error {
	var se *moderncsqlite.Error
	if !errors.As(err, &se) {
		return err
	}
	code := se.Code()
	switch {
	case code&0xff == sqlite3.SQLITE_BUSY:
		return fmt.Errorf("%w: %w", store.ErrStale, err)
	case code&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(se.Error(), "UNIQUE"):
		return fmt.Errorf("%w: %w", store.ErrStale, err)
	}
	return err
}

func (s *Store) savePeriod(ctx context.Context, tx *sql.Tx, p model.FiscalPeriod) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO fiscal_periods (tenant_id, id, name, start_date, end_date, status, closed_at, closing_entry_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			status = excluded.status,
			closed_at = excluded.closed_at,
			closing_entry_id = excluded.closing_entry_id`,
		s.tenant, p.ID.String(), p.Name, p.Start.Format(dateFormat), p.End.Format(dateFormat), string(p.Status),
		nullTime(p.ClosedAt), nullUUID(p.ClosingEntryID))
	if err != nil {
		return fmt.Errorf("saving period %s: %w", p.Name, err)
	}
	return nil
}

func (s *Store) saveEntry(ctx context.Context, tx *sql.Tx, e model.JournalEntry) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO journal_entries (tenant_id, id, number, entry_date, memo, status, kind, reversal_of, reversed_by,
			asset_id, period_id, created_by, created_at, posted_at, revision)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			entry_date = excluded.entry_date,
			memo = excluded.memo,
			status = excluded.status,
			kind = excluded.kind,
			reversed_by = excluded.reversed_by,
			posted_at = excluded.posted_at,
			revision = excluded.revision`,
		s.tenant, e.ID.String(), e.Number, e.Date.Format(dateFormat), e.Memo, string(e.Status), string(e.Kind),
		nullUUID(e.ReversalOf), nullUUID(e.ReversedBy), nullUUID(e.AssetID), nullUUID(e.PeriodID),
		e.CreatedBy, e.CreatedAt.UTC().Format(timeFormat), nullTime(e.PostedAt), e.Revision)
	if err != nil {
		return fmt.Errorf("saving entry %s: %w", e.Number, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM journal_lines WHERE entry_id = ?`, e.ID.String()); err != nil {
		return fmt.Errorf("replacing lines of %s: %w", e.Number, err)
	}
	for i, l := range e.Lines {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO journal_lines (tenant_id, entry_id, line_index, account_code, side, amount, memo)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			s.tenant, e.ID.String(), i, l.AccountCode, string(l.Side), l.Amount.String(), l.Memo)
		if err != nil {
			return fmt.Errorf("saving line %d of %s: %w", i+1, e.Number, err)
		}
	}
	return nil
}

func (s *Store) insertPosting(ctx context.Context, tx *sql.Tx, p model.LedgerPosting) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO ledger_postings (tenant_id, id, entry_id, line_index, account_code, posting_date, side, amount,
			kind, seq, running_balance, version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.tenant, p.ID.String(), p.EntryID.String(), p.LineIndex, p.AccountCode, p.Date.Format(dateFormat),
		string(p.Side), p.Amount.String(), string(p.Kind), p.Seq, p.RunningBalance.String(), p.Version)
	if err != nil {
		return fmt.Errorf("inserting posting %d: %w", p.Seq, err)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullUUID(id uuid.UUID) sql.NullString {
	if id == uuid.Nil {
		return sql.NullString{}
	}
	return sql.NullString{String: id.String(), Valid: true}
}

func nullTime(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(timeFormat), Valid: true}
}

func parseUUID(ns sql.NullString) (uuid.UUID, error) {
	if !ns.Valid || ns.String == "" {
		return uuid.Nil, nil
	}
	return uuid.Parse(ns.String)
}

func parseTime(ns sql.NullString) (time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return time.Time{}, nil
	}
	return time.Parse(timeFormat, ns.String)
}

func parseDate(s string) (time.Time, error) {
	return time.Parse(dateFormat, s)
}

func parseDecimal(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(s)
}
