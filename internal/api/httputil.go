package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/coopbooks/coopbooks/internal/ledgererr"
	"github.com/coopbooks/coopbooks/internal/tenant"
	"github.com/coopbooks/coopbooks/internal/validation"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
	Kind  string `json:"kind,omitempty"`
}

// writeJSON marshals v as JSON and writes it with the given status code.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("writing response", zap.Error(err))
	}
}

// writeError writes a structured JSON error response.
func (s *Server) writeError(w http.ResponseWriter, status int, code, message string) {
	s.writeJSON(w, status, errorBody{Error: message, Code: code})
}

// writeLedgerError maps a ledger error to its HTTP status by kind.
func (s *Server) writeLedgerError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, tenant.ErrInvalidTenant) {
		s.writeError(w, http.StatusBadRequest, "InvalidTenant", err.Error())
		return
	}
	kind := ledgererr.KindOf(err)
	var status int
	switch kind {
	case ledgererr.KindValidation:
		status = http.StatusUnprocessableEntity
	case ledgererr.KindState:
		status = http.StatusConflict
	case ledgererr.KindConcurrency:
		status = http.StatusServiceUnavailable
		w.Header().Set("Retry-After", "1")
	case ledgererr.KindNotFound:
		status = http.StatusNotFound
	case ledgererr.KindIntegrity:
		s.logger.Error("ledger integrity failure", zap.String("path", r.URL.Path), zap.Error(err))
		status = http.StatusInternalServerError
	default:
		s.logger.Error("internal error", zap.String("path", r.URL.Path), zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "Internal", "internal server error")
		return
	}
	s.writeJSON(w, status, errorBody{Error: err.Error(), Code: string(ledgererr.CodeOf(err)), Kind: kind.String()})
}

// decodeJSON decodes the request body into v, rejecting unknown fields.
func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// decodeRequest decodes the body into v and checks its shape. On failure
// it writes the 400 response and returns false.
func (s *Server) decodeRequest(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := decodeJSON(r, v); err != nil {
		s.writeError(w, http.StatusBadRequest, "InvalidJSON", err.Error())
		return false
	}
	if err := validation.Struct(v); err != nil {
		s.writeError(w, http.StatusBadRequest, "InvalidRequest", err.Error())
		return false
	}
	return true
}

// parseUUID extracts and validates a UUID path parameter.
func (s *Server) parseUUID(w http.ResponseWriter, r *http.Request, paramName string) (uuid.UUID, bool) {
	raw := chi.URLParam(r, paramName)
	id, err := uuid.Parse(raw)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "InvalidID", "invalid UUID: "+raw)
		return uuid.Nil, false
	}
	return id, true
}

// queryDate parses a YYYY-MM-DD query parameter, falling back to def when
// it is absent.
func (s *Server) queryDate(w http.ResponseWriter, r *http.Request, name string, def time.Time) (time.Time, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	d, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "InvalidDate", name+" must be YYYY-MM-DD, got "+raw)
		return time.Time{}, false
	}
	return d, true
}
