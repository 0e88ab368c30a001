package api

import (
	"context"
	"net/http"

	"github.com/coopbooks/coopbooks/internal/model"
)

type openPeriodRequest struct {
	Name  string `json:"name" validate:"max=100"`
	Start Date   `json:"start"`
	End   Date   `json:"end"`
}

type reopenRequest struct {
	Reason string `json:"reason" validate:"max=1000"`
}

func (s *Server) handleListPeriods(w http.ResponseWriter, r *http.Request) {
	periods := ledgerFrom(r).Periods()
	out := make([]periodJSON, len(periods))
	for i, p := range periods {
		out[i] = toPeriod(p)
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleOpenPeriod(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	var req openPeriodRequest
	if !s.decodeRequest(w, r, &req) {
		return
	}
	p, err := ledgerFrom(r).OpenPeriod(r.Context(), actor, req.Name, req.Start.Time, req.End.Time)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, toPeriod(p))
}

func (s *Server) handleClosePeriod(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	id, ok := s.parseUUID(w, r, "id")
	if !ok {
		return
	}
	l := ledgerFrom(r)
	var p model.FiscalPeriod
	err := s.write(r, func(ctx context.Context) error {
		var err error
		p, err = l.ClosePeriod(ctx, actor, id)
		return err
	})
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toPeriod(p))
}

func (s *Server) handleReopenPeriod(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	id, ok := s.parseUUID(w, r, "id")
	if !ok {
		return
	}
	var req reopenRequest
	if !s.decodeRequest(w, r, &req) {
		return
	}
	p, err := ledgerFrom(r).ReopenPeriod(r.Context(), actor, id, req.Reason)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toPeriod(p))
}
