package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/coopbooks/coopbooks/internal/ledger"
	"github.com/coopbooks/coopbooks/internal/model"
)

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	accts := ledgerFrom(r).Accounts()
	out := make([]accountJSON, len(accts))
	for i, a := range accts {
		out[i] = toAccount(a)
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	a, err := ledgerFrom(r).Account(chi.URLParam(r, "code"))
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toAccount(a))
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	var req accountJSON
	if !s.decodeRequest(w, r, &req) {
		return
	}
	var created model.Account
	err := s.write(r, func(ctx context.Context) error {
		var err error
		created, err = ledgerFrom(r).CreateAccount(ctx, actor, model.Account{
			Code:        req.Code,
			Name:        req.Name,
			Type:        req.Type,
			ParentCode:  req.ParentCode,
			Description: req.Description,
		})
		return err
	})
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, toAccount(created))
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	l := ledgerFrom(r)
	code := chi.URLParam(r, "code")
	asOf, ok := s.queryDate(w, r, "as_of", s.now())
	if !ok {
		return
	}
	rollup, _ := strconv.ParseBool(r.URL.Query().Get("rollup"))
	balance := l.Balance
	if rollup {
		balance = l.RollupBalance
	}
	amount, err := balance(code, asOf)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"code":    code,
		"as_of":   Date{model.Day(asOf)},
		"rollup":  rollup,
		"balance": amount,
	})
}

func (s *Server) handleDeactivate(w http.ResponseWriter, r *http.Request) {
	s.accountWrite(w, r, func(ctx context.Context, actor, code string) (model.Account, error) {
		return ledgerFrom(r).Deactivate(ctx, actor, code)
	})
}

func (s *Server) handleReactivate(w http.ResponseWriter, r *http.Request) {
	s.accountWrite(w, r, func(ctx context.Context, actor, code string) (model.Account, error) {
		return ledgerFrom(r).Reactivate(ctx, actor, code)
	})
}

func (s *Server) accountWrite(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, actor, code string) (model.Account, error)) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	var a model.Account
	err := s.write(r, func(ctx context.Context) error {
		var err error
		a, err = fn(ctx, actor, chi.URLParam(r, "code"))
		return err
	})
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toAccount(a))
}

func (s *Server) handleListEntries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, ok := s.queryDate(w, r, "from", time.Time{})
	if !ok {
		return
	}
	to, ok := s.queryDate(w, r, "to", time.Time{})
	if !ok {
		return
	}
	entries := ledgerFrom(r).Entries(ledger.EntryFilter{
		From:    from,
		To:      to,
		Status:  model.EntryStatus(q.Get("status")),
		Kind:    model.EntryKind(q.Get("kind")),
		Account: q.Get("account"),
	})
	out := make([]entryJSON, len(entries))
	for i, e := range entries {
		out[i] = toEntry(e)
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := s.parseUUID(w, r, "id")
	if !ok {
		return
	}
	e, err := ledgerFrom(r).Entry(id)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toEntry(e))
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	s.entryWrite(w, r, http.StatusCreated, func(ctx context.Context, actor string, _ uuid.UUID, req entryRequest) (model.JournalEntry, error) {
		return ledgerFrom(r).Submit(ctx, actor, ledger.EntryRequest{Date: req.Date.Time, Memo: req.Memo, Kind: req.Kind, Lines: req.lines()})
	})
}

func (s *Server) handleCreateDraft(w http.ResponseWriter, r *http.Request) {
	s.entryWrite(w, r, http.StatusCreated, func(ctx context.Context, actor string, _ uuid.UUID, req entryRequest) (model.JournalEntry, error) {
		return ledgerFrom(r).CreateDraft(ctx, actor, ledger.EntryRequest{Date: req.Date.Time, Memo: req.Memo, Kind: req.Kind, Lines: req.lines()})
	})
}

func (s *Server) handleUpdateDraft(w http.ResponseWriter, r *http.Request) {
	s.entryWrite(w, r, http.StatusOK, func(ctx context.Context, actor string, id uuid.UUID, req entryRequest) (model.JournalEntry, error) {
		return ledgerFrom(r).UpdateDraft(ctx, actor, id, req.Revision, ledger.EntryRequest{Date: req.Date.Time, Memo: req.Memo, Kind: req.Kind, Lines: req.lines()})
	})
}

// entryWrite decodes an entry body and runs fn with the {id} path
// parameter when the route has one.
func (s *Server) entryWrite(w http.ResponseWriter, r *http.Request, status int,
	fn func(ctx context.Context, actor string, id uuid.UUID, req entryRequest) (model.JournalEntry, error),
) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	var id uuid.UUID
	if chi.URLParam(r, "id") != "" {
		if id, ok = s.parseUUID(w, r, "id"); !ok {
			return
		}
	}
	var req entryRequest
	if !s.decodeRequest(w, r, &req) {
		return
	}
	var e model.JournalEntry
	err := s.write(r, func(ctx context.Context) error {
		var err error
		e, err = fn(ctx, actor, id, req)
		return err
	})
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	s.writeJSON(w, status, toEntry(e))
}

func (s *Server) handleDiscardDraft(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	id, ok := s.parseUUID(w, r, "id")
	if !ok {
		return
	}
	if err := ledgerFrom(r).DiscardDraft(r.Context(), actor, id); err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePostDraft(w http.ResponseWriter, r *http.Request) {
	s.entryAction(w, r, func(ctx context.Context, actor string, id uuid.UUID) (model.JournalEntry, error) {
		return ledgerFrom(r).PostDraft(ctx, actor, id)
	})
}

func (s *Server) handleReverse(w http.ResponseWriter, r *http.Request) {
	s.entryAction(w, r, func(ctx context.Context, actor string, id uuid.UUID) (model.JournalEntry, error) {
		return ledgerFrom(r).Reverse(ctx, actor, id)
	})
}

func (s *Server) entryAction(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, actor string, id uuid.UUID) (model.JournalEntry, error)) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	id, ok := s.parseUUID(w, r, "id")
	if !ok {
		return
	}
	var e model.JournalEntry
	err := s.write(r, func(ctx context.Context) error {
		var err error
		e, err = fn(ctx, actor, id)
		return err
	})
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toEntry(e))
}
