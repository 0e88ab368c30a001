// Package api serves the ledger over JSON HTTP. It only translates
// requests into ledger calls; authentication is left to whatever sits in
// front of it.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/coopbooks/coopbooks/internal/ledger"
	"github.com/coopbooks/coopbooks/internal/logging"
	"github.com/coopbooks/coopbooks/internal/metrics"
	"github.com/coopbooks/coopbooks/internal/retry"
	"github.com/coopbooks/coopbooks/internal/statements"
	"github.com/coopbooks/coopbooks/internal/tenant"
)

const (
	headerTenant = "X-Tenant-ID"
	headerActor  = "X-Actor"
)

// Options configures a Server. Tenants is required.
type Options struct {
	Tenants *tenant.Registry
	Reports *statements.Generator
	Metrics *metrics.Collector
	Retry   retry.Policy
	Logger  *zap.Logger
	Now     func() time.Time
}

// Server holds the HTTP handlers.
type Server struct {
	tenants *tenant.Registry
	reports *statements.Generator
	metrics *metrics.Collector
	retry   retry.Policy
	logger  *zap.Logger
	now     func() time.Time
}

// NewServer creates a Server.
func NewServer(opts Options) *Server {
	s := &Server{
		tenants: opts.Tenants,
		reports: opts.Reports,
		metrics: opts.Metrics,
		retry:   opts.Retry,
		logger:  logging.OrNop(opts.Logger),
		now:     opts.Now,
	}
	if s.reports == nil {
		s.reports = statements.NewGenerator(s.logger)
	}
	if s.retry.Attempts == 0 {
		s.retry = retry.DefaultPolicy()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Routes returns the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler())
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(s.withTenant)

		r.Get("/accounts", s.handleListAccounts)
		r.Post("/accounts", s.handleCreateAccount)
		r.Get("/accounts/{code}", s.handleGetAccount)
		r.Get("/accounts/{code}/balance", s.handleBalance)
		r.Post("/accounts/{code}/deactivate", s.handleDeactivate)
		r.Post("/accounts/{code}/reactivate", s.handleReactivate)

		r.Get("/journal-entries", s.handleListEntries)
		r.Post("/journal-entries", s.handleSubmit)
		r.Post("/journal-entries/drafts", s.handleCreateDraft)
		r.Get("/journal-entries/{id}", s.handleGetEntry)
		r.Put("/journal-entries/{id}", s.handleUpdateDraft)
		r.Delete("/journal-entries/{id}", s.handleDiscardDraft)
		r.Post("/journal-entries/{id}/post", s.handlePostDraft)
		r.Post("/journal-entries/{id}/reverse", s.handleReverse)

		r.Get("/periods", s.handleListPeriods)
		r.Post("/periods", s.handleOpenPeriod)
		r.Post("/periods/{id}/close", s.handleClosePeriod)
		r.Post("/periods/{id}/reopen", s.handleReopenPeriod)

		r.Get("/reports/balance-sheet", s.handleBalanceSheet)
		r.Get("/reports/income-statement", s.handleIncomeStatement)
		r.Get("/reports/trial-balance", s.handleTrialBalance)

		r.Get("/assets", s.handleListAssets)
		r.Post("/assets", s.handleRegisterAsset)
		r.Get("/assets/{id}", s.handleGetAsset)
		r.Post("/assets/{id}/depreciate", s.handleDepreciate)
		r.Get("/assets/{id}/schedule", s.handleSchedule)
	})
	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}

type ledgerKey struct{}

// withTenant resolves X-Tenant-ID to its ledger, reloading it first when
// another process has written to the same database.
func (s *Server) withTenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(headerTenant)
		if id == "" {
			s.writeError(w, http.StatusBadRequest, "MissingTenant", headerTenant+" header is required")
			return
		}
		l, err := s.tenants.Get(r.Context(), id)
		if err != nil {
			s.writeLedgerError(w, r, err)
			return
		}
		if err := l.Refresh(r.Context()); err != nil {
			s.writeLedgerError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ledgerKey{}, l)))
	})
}

func ledgerFrom(r *http.Request) *ledger.Ledger {
	return r.Context().Value(ledgerKey{}).(*ledger.Ledger)
}

// actor returns the X-Actor header, writing an error when it is missing.
func (s *Server) actor(w http.ResponseWriter, r *http.Request) (string, bool) {
	a := r.Header.Get(headerActor)
	if a == "" {
		s.writeError(w, http.StatusBadRequest, "MissingActor", headerActor+" header is required")
		return "", false
	}
	return a, true
}

// write runs a ledger write, retrying on lock contention.
func (s *Server) write(r *http.Request, fn func(ctx context.Context) error) error {
	return retry.Do(r.Context(), s.retry, fn)
}
