package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/coopbooks/coopbooks/internal/model"
	"github.com/coopbooks/coopbooks/internal/store"
)

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Load reads the tenant's full ledger state in one read transaction and
// remembers the revision it saw.
func (s *Store) Load(ctx context.Context) (*store.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning load: %w", err)
	}
	defer tx.Rollback()

	rev, err := s.revision(ctx, tx)
	if err != nil {
		return nil, err
	}
	snap := &store.Snapshot{}
	if snap.Accounts, err = s.loadAccounts(ctx, tx); err != nil {
		return nil, err
	}
	if snap.Periods, err = s.loadPeriods(ctx, tx); err != nil {
		return nil, err
	}
	if snap.Assets, err = s.loadAssets(ctx, tx); err != nil {
		return nil, err
	}
	if snap.Entries, err = s.loadEntries(ctx, tx); err != nil {
		return nil, err
	}
	if snap.Postings, err = s.loadPostings(ctx, tx); err != nil {
		return nil, err
	}
	s.rev = rev
	return snap, nil
}

// Stale compares the stored revision with the one this Store last saw.
func (s *Store) Stale(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rev, err := s.revision(ctx, s.db)
	if err != nil {
		return false, err
	}
	return rev != s.rev, nil
}

func (s *Store) revision(ctx context.Context, q queryer) (int64, error) {
	var rev int64
	err := q.QueryRowContext(ctx, `SELECT revision FROM ledger_heads WHERE tenant_id = ?`, s.tenant).Scan(&rev)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading ledger revision: %w", err)
	}
	return rev, nil
}

func (s *Store) loadAccounts(ctx context.Context, q queryer) ([]model.Account, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, code, name, type, parent_code, active, description
		FROM accounts WHERE tenant_id = ? ORDER BY code`, s.tenant)
	if err != nil {
		return nil, fmt.Errorf("querying accounts: %w", err)
	}
	defer rows.Close()

	var out []model.Account
	for rows.Next() {
		var (
			a       model.Account
			id, typ string
			parent  sql.NullString
		)
		if err := rows.Scan(&id, &a.Code, &a.Name, &typ, &parent, &a.Active, &a.Description); err != nil {
			return nil, fmt.Errorf("scanning account: %w", err)
		}
		if a.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("account %s: parsing id: %w", a.Code, err)
		}
		a.Type = model.AccountType(typ)
		a.ParentCode = parent.String
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) loadPeriods(ctx context.Context, q queryer) ([]model.FiscalPeriod, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, name, start_date, end_date, status, closed_at, closing_entry_id
		FROM fiscal_periods WHERE tenant_id = ? ORDER BY start_date`, s.tenant)
	if err != nil {
		return nil, fmt.Errorf("querying periods: %w", err)
	}
	defer rows.Close()

	var out []model.FiscalPeriod
	for rows.Next() {
		var (
			p                      model.FiscalPeriod
			id, start, end, status string
			closedAt, closingEntry sql.NullString
		)
		if err := rows.Scan(&id, &p.Name, &start, &end, &status, &closedAt, &closingEntry); err != nil {
			return nil, fmt.Errorf("scanning period: %w", err)
		}
		if p.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("period %s: parsing id: %w", p.Name, err)
		}
		if p.Start, err = parseDate(start); err != nil {
			return nil, fmt.Errorf("period %s: parsing start: %w", p.Name, err)
		}
		if p.End, err = parseDate(end); err != nil {
			return nil, fmt.Errorf("period %s: parsing end: %w", p.Name, err)
		}
		if p.ClosedAt, err = parseTime(closedAt); err != nil {
			return nil, fmt.Errorf("period %s: parsing closed_at: %w", p.Name, err)
		}
		if p.ClosingEntryID, err = parseUUID(closingEntry); err != nil {
			return nil, fmt.Errorf("period %s: parsing closing_entry_id: %w", p.Name, err)
		}
		p.Status = model.PeriodStatus(status)
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) loadAssets(ctx context.Context, q queryer) ([]model.FixedAsset, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, name, cost, salvage, acquired_on, useful_life, method, rate, expense_account, accumulated_account
		FROM fixed_assets WHERE tenant_id = ? ORDER BY name`, s.tenant)
	if err != nil {
		return nil, fmt.Errorf("querying assets: %w", err)
	}
	defer rows.Close()

	var out []model.FixedAsset
	for rows.Next() {
		var (
			a                                   model.FixedAsset
			id, cost, salvage, acquired, method string
			rate                                string
		)
		if err := rows.Scan(&id, &a.Name, &cost, &salvage, &acquired, &a.UsefulLife, &method, &rate,
			&a.ExpenseAccount, &a.AccumulatedAccount); err != nil {
			return nil, fmt.Errorf("scanning asset: %w", err)
		}
		if a.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("asset %s: parsing id: %w", a.Name, err)
		}
		if a.Cost, err = parseDecimal(cost); err != nil {
			return nil, fmt.Errorf("asset %s: parsing cost: %w", a.Name, err)
		}
		if a.Salvage, err = parseDecimal(salvage); err != nil {
			return nil, fmt.Errorf("asset %s: parsing salvage: %w", a.Name, err)
		}
		if a.Rate, err = parseDecimal(rate); err != nil {
			return nil, fmt.Errorf("asset %s: parsing rate: %w", a.Name, err)
		}
		if a.AcquiredOn, err = parseDate(acquired); err != nil {
			return nil, fmt.Errorf("asset %s: parsing acquired_on: %w", a.Name, err)
		}
		a.Method = model.DepreciationMethod(method)
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) loadEntries(ctx context.Context, q queryer) ([]model.JournalEntry, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, number, entry_date, memo, status, kind, reversal_of, reversed_by, asset_id, period_id,
			created_by, created_at, posted_at, revision
		FROM journal_entries WHERE tenant_id = ? ORDER BY created_at, number`, s.tenant)
	if err != nil {
		return nil, fmt.Errorf("querying entries: %w", err)
	}

	var (
		out   []model.JournalEntry
		index = make(map[string]int)
	)
	for rows.Next() {
		var (
			e                                       model.JournalEntry
			id, date, status, kind, createdAt       string
			reversalOf, reversedBy, assetID, period sql.NullString
			postedAt                                sql.NullString
		)
		if err := rows.Scan(&id, &e.Number, &date, &e.Memo, &status, &kind, &reversalOf, &reversedBy, &assetID,
			&period, &e.CreatedBy, &createdAt, &postedAt, &e.Revision); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning entry: %w", err)
		}
		if err := decodeEntry(&e, id, date, createdAt, reversalOf, reversedBy, assetID, period, postedAt); err != nil {
			rows.Close()
			return nil, err
		}
		e.Status = model.EntryStatus(status)
		e.Kind = model.EntryKind(kind)
		index[id] = len(out)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("reading entries: %w", err)
	}
	rows.Close()

	lines, err := q.QueryContext(ctx, `
		SELECT entry_id, account_code, side, amount, memo
		FROM journal_lines WHERE tenant_id = ? ORDER BY entry_id, line_index`, s.tenant)
	if err != nil {
		return nil, fmt.Errorf("querying lines: %w", err)
	}
	defer lines.Close()

	for lines.Next() {
		var (
			entryID, side, amount string
			l                     model.JournalLine
		)
		if err := lines.Scan(&entryID, &l.AccountCode, &side, &amount, &l.Memo); err != nil {
			return nil, fmt.Errorf("scanning line: %w", err)
		}
		if l.Amount, err = parseDecimal(amount); err != nil {
			return nil, fmt.Errorf("entry %s: parsing amount: %w", entryID, err)
		}
		l.Side = model.Side(side)
		i, ok := index[entryID]
		if !ok {
			return nil, fmt.Errorf("line references unknown entry %s", entryID)
		}
		out[i].Lines = append(out[i].Lines, l)
	}
	return out, lines.Err()
}

func decodeEntry(e *model.JournalEntry, id, date, createdAt string, reversalOf, reversedBy, assetID, period, postedAt sql.NullString) error {
	var err error
	if e.ID, err = uuid.Parse(id); err != nil {
		return fmt.Errorf("entry %s: parsing id: %w", e.Number, err)
	}
	if e.Date, err = parseDate(date); err != nil {
		return fmt.Errorf("entry %s: parsing date: %w", e.Number, err)
	}
	if e.CreatedAt, err = parseTime(sql.NullString{String: createdAt, Valid: true}); err != nil {
		return fmt.Errorf("entry %s: parsing created_at: %w", e.Number, err)
	}
	if e.PostedAt, err = parseTime(postedAt); err != nil {
		return fmt.Errorf("entry %s: parsing posted_at: %w", e.Number, err)
	}
	if e.ReversalOf, err = parseUUID(reversalOf); err != nil {
		return fmt.Errorf("entry %s: parsing reversal_of: %w", e.Number, err)
	}
	if e.ReversedBy, err = parseUUID(reversedBy); err != nil {
		return fmt.Errorf("entry %s: parsing reversed_by: %w", e.Number, err)
	}
	if e.AssetID, err = parseUUID(assetID); err != nil {
		return fmt.Errorf("entry %s: parsing asset_id: %w", e.Number, err)
	}
	if e.PeriodID, err = parseUUID(period); err != nil {
		return fmt.Errorf("entry %s: parsing period_id: %w", e.Number, err)
	}
	return nil
}

func (s *Store) loadPostings(ctx context.Context, q queryer) ([]model.LedgerPosting, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, entry_id, line_index, account_code, posting_date, side, amount, kind, seq, running_balance, version
		FROM ledger_postings WHERE tenant_id = ? ORDER BY seq`, s.tenant)
	if err != nil {
		return nil, fmt.Errorf("querying postings: %w", err)
	}
	defer rows.Close()

	var out []model.LedgerPosting
	for rows.Next() {
		var (
			p                                         model.LedgerPosting
			id, entryID, date, side, amount, kind, rb string
		)
		if err := rows.Scan(&id, &entryID, &p.LineIndex, &p.AccountCode, &date, &side, &amount, &kind, &p.Seq,
			&rb, &p.Version); err != nil {
			return nil, fmt.Errorf("scanning posting: %w", err)
		}
		if p.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("posting %d: parsing id: %w", p.Seq, err)
		}
		if p.EntryID, err = uuid.Parse(entryID); err != nil {
			return nil, fmt.Errorf("posting %d: parsing entry_id: %w", p.Seq, err)
		}
		if p.Date, err = parseDate(date); err != nil {
			return nil, fmt.Errorf("posting %d: parsing date: %w", p.Seq, err)
		}
		if p.Amount, err = parseDecimal(amount); err != nil {
			return nil, fmt.Errorf("posting %d: parsing amount: %w", p.Seq, err)
		}
		if p.RunningBalance, err = parseDecimal(rb); err != nil {
			return nil, fmt.Errorf("posting %d: parsing running_balance: %w", p.Seq, err)
		}
		p.Side = model.Side(side)
		p.Kind = model.EntryKind(kind)
		out = append(out, p)
	}
	return out, rows.Err()
}
