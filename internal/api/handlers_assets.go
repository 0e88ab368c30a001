package api

import (
	"context"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/coopbooks/coopbooks/internal/depreciation"
	"github.com/coopbooks/coopbooks/internal/model"
)

type depreciateRequest struct {
	PeriodEnd Date `json:"period_end"`
}

type assetDetailJSON struct {
	assetJSON
	Accumulated decimal.Decimal `json:"accumulated_depreciation"`
	BookValue   decimal.Decimal `json:"book_value"`
}

func (s *Server) handleListAssets(w http.ResponseWriter, r *http.Request) {
	assets := ledgerFrom(r).Assets()
	out := make([]assetJSON, len(assets))
	for i, a := range assets {
		out[i] = toAsset(a)
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleRegisterAsset(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	var req assetJSON
	if !s.decodeRequest(w, r, &req) {
		return
	}
	a, err := ledgerFrom(r).RegisterAsset(r.Context(), actor, req.model())
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, toAsset(a))
}

func (s *Server) handleGetAsset(w http.ResponseWriter, r *http.Request) {
	id, ok := s.parseUUID(w, r, "id")
	if !ok {
		return
	}
	l := ledgerFrom(r)
	a, err := l.Asset(id)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	acc, err := l.AccumulatedDepreciation(id)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, assetDetailJSON{
		assetJSON:   toAsset(a),
		Accumulated: acc,
		BookValue:   depreciation.BookValue(a, acc),
	})
}

func (s *Server) handleDepreciate(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	id, ok := s.parseUUID(w, r, "id")
	if !ok {
		return
	}
	var req depreciateRequest
	if r.ContentLength != 0 {
		if !s.decodeRequest(w, r, &req) {
			return
		}
	}
	l := ledgerFrom(r)
	var e model.JournalEntry
	err := s.write(r, func(ctx context.Context) error {
		var err error
		e, err = l.PostDepreciation(ctx, actor, id, req.PeriodEnd.Time)
		return err
	})
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, toEntry(e))
}

func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	id, ok := s.parseUUID(w, r, "id")
	if !ok {
		return
	}
	sched, err := ledgerFrom(r).DepreciationSchedule(id)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toSchedule(sched))
}
