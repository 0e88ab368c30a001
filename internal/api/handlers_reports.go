package api

import (
	"net/http"
	"time"
)

func (s *Server) handleBalanceSheet(w http.ResponseWriter, r *http.Request) {
	asOf, ok := s.queryDate(w, r, "as_of", s.now())
	if !ok {
		return
	}
	bs, err := s.reports.BalanceSheet(ledgerFrom(r), asOf)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, bs)
}

func (s *Server) handleIncomeStatement(w http.ResponseWriter, r *http.Request) {
	now := s.now()
	from, ok := s.queryDate(w, r, "from", time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC))
	if !ok {
		return
	}
	to, ok := s.queryDate(w, r, "to", now)
	if !ok {
		return
	}
	is, err := s.reports.IncomeStatement(ledgerFrom(r), from, to)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, is)
}

func (s *Server) handleTrialBalance(w http.ResponseWriter, r *http.Request) {
	asOf, ok := s.queryDate(w, r, "as_of", s.now())
	if !ok {
		return
	}
	tb, err := s.reports.TrialBalance(ledgerFrom(r), asOf)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, tb)
}
