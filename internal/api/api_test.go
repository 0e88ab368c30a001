package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coopbooks/coopbooks/internal/accounts"
	"github.com/coopbooks/coopbooks/internal/ledger"
	"github.com/coopbooks/coopbooks/internal/ledgererr"
	"github.com/coopbooks/coopbooks/internal/metrics"
	"github.com/coopbooks/coopbooks/internal/retry"
	"github.com/coopbooks/coopbooks/internal/statements"
	"github.com/coopbooks/coopbooks/internal/store/memory"
	"github.com/coopbooks/coopbooks/internal/tenant"
)

var today = time.Date(2026, 1, 20, 10, 30, 0, 0, time.UTC)

func newTestServer(t *testing.T) http.Handler {
	t.Helper()
	now := func() time.Time { return today }
	m := metrics.NewCollector()
	reg := tenant.NewRegistry(func(ctx context.Context, id string) (*ledger.Ledger, error) {
		l, err := ledger.Open(ctx, ledger.Options{Tenant: id, Store: memory.New(), Metrics: m, Now: now})
		if err != nil {
			return nil, err
		}
		if err := l.ImportAccounts(ctx, "system", accounts.DefaultChart()); err != nil {
			return nil, err
		}
		jan := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		if _, err := l.OpenPeriod(ctx, "system", "", jan, jan.AddDate(0, 1, -1)); err != nil {
			return nil, err
		}
		return l, nil
	})
	t.Cleanup(func() { _ = reg.Close() })
	return NewServer(Options{
		Tenants: reg,
		Metrics: m,
		Retry:   retry.Policy{Attempts: 1},
		Now:     now,
	}).Routes()
}

type call struct {
	method string
	path   string
	body   any
	tenant string
	actor  string
}

func do(t *testing.T, h http.Handler, c call) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	if c.body != nil {
		require.NoError(t, json.NewEncoder(&body).Encode(c.body))
	}
	req := httptest.NewRequest(c.method, c.path, &body)
	if c.tenant != "" {
		req.Header.Set(headerTenant, c.tenant)
	}
	if c.actor != "" {
		req.Header.Set(headerActor, c.actor)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func transfer(amount string) map[string]any {
	return map[string]any{
		"date": "2026-01-05",
		"memo": "Member deposit",
		"lines": []map[string]any{
			{"account_code": accounts.CodeCash, "side": "debit", "amount": amount},
			{"account_code": accounts.CodeMemberSavings, "side": "credit", "amount": amount},
		},
	}
}

func post(path string, body any) call {
	return call{method: http.MethodPost, path: path, body: body, tenant: "coop-a", actor: "treasurer"}
}

func get(path string) call {
	return call{method: http.MethodGet, path: path, tenant: "coop-a"}
}

func TestAPI_SubmitAndBalance(t *testing.T) {
	h := newTestServer(t)

	rec := do(t, h, post("/v1/journal-entries", transfer("500.25")))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	e := decode[entryJSON](t, rec)
	assert.Equal(t, "2026-01-001", e.Number)
	assert.Equal(t, "posted", string(e.Status))
	assert.Equal(t, "treasurer", e.CreatedBy)
	require.Len(t, e.Lines, 2)
	assert.True(t, e.Lines[0].Amount.Equal(decimal.RequireFromString("500.25")))

	rec = do(t, h, get("/v1/accounts/"+accounts.CodeCash+"/balance?as_of=2026-01-31"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	bal := decode[struct {
		Balance decimal.Decimal `json:"balance"`
	}](t, rec)
	assert.True(t, bal.Balance.Equal(decimal.RequireFromString("500.25")), bal.Balance.String())

	rec = do(t, h, get("/v1/accounts/1-0000/balance?as_of=2026-01-31&rollup=true"))
	require.Equal(t, http.StatusOK, rec.Code)
	bal = decode[struct {
		Balance decimal.Decimal `json:"balance"`
	}](t, rec)
	assert.True(t, bal.Balance.Equal(decimal.RequireFromString("500.25")))

	rec = do(t, h, get("/v1/journal-entries/"+e.ID.String()))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, e.ID, decode[entryJSON](t, rec).ID)

	rec = do(t, h, get("/v1/journal-entries?account="+accounts.CodeCash+"&status=posted"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]entryJSON](t, rec), 1)
}

func TestAPI_ReverseTwice(t *testing.T) {
	h := newTestServer(t)
	rec := do(t, h, post("/v1/journal-entries", transfer("100")))
	require.Equal(t, http.StatusCreated, rec.Code)
	e := decode[entryJSON](t, rec)

	rec = do(t, h, post("/v1/journal-entries/"+e.ID.String()+"/reverse", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rev := decode[entryJSON](t, rec)
	assert.Equal(t, "reversal", string(rev.Kind))
	require.NotNil(t, rev.ReversalOf)
	assert.Equal(t, e.ID, *rev.ReversalOf)

	rec = do(t, h, post("/v1/journal-entries/"+e.ID.String()+"/reverse", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)
	body := decode[errorBody](t, rec)
	assert.Equal(t, "AlreadyReversed", body.Code)
	assert.Equal(t, "state", body.Kind)
}

func TestAPI_DraftLifecycle(t *testing.T) {
	h := newTestServer(t)
	rec := do(t, h, post("/v1/journal-entries/drafts", transfer("40")))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	d := decode[entryJSON](t, rec)
	assert.Equal(t, "draft", string(d.Status))

	edit := transfer("45")
	edit["revision"] = d.Revision
	c := post("/v1/journal-entries/"+d.ID.String(), edit)
	c.method = http.MethodPut
	rec = do(t, h, c)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, d.Revision+1, decode[entryJSON](t, rec).Revision)

	rec = do(t, h, c)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "ConflictingUpdate", decode[errorBody](t, rec).Code)

	rec = do(t, h, post("/v1/journal-entries/"+d.ID.String()+"/post", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "posted", string(decode[entryJSON](t, rec).Status))

	del := post("/v1/journal-entries/"+d.ID.String(), nil)
	del.method = http.MethodDelete
	rec = do(t, h, del)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "EntryNotDraft", decode[errorBody](t, rec).Code)
}

func TestAPI_Errors(t *testing.T) {
	h := newTestServer(t)
	unbalanced := transfer("10")
	unbalanced["lines"].([]map[string]any)[1]["amount"] = "9"
	badSide := transfer("10")
	badSide["lines"].([]map[string]any)[0]["side"] = "left"

	tests := []struct {
		name   string
		call   call
		status int
		code   string
	}{
		{"missing tenant", call{method: http.MethodGet, path: "/v1/accounts"}, http.StatusBadRequest, "MissingTenant"},
		{"invalid tenant", call{method: http.MethodGet, path: "/v1/accounts", tenant: "Coop A"}, http.StatusBadRequest, "InvalidTenant"},
		{"missing actor", call{method: http.MethodPost, path: "/v1/journal-entries", body: transfer("10"), tenant: "coop-a"}, http.StatusBadRequest, "MissingActor"},
		{"unbalanced", post("/v1/journal-entries", unbalanced), http.StatusUnprocessableEntity, "UnbalancedEntry"},
		{"unknown field", post("/v1/journal-entries", map[string]any{"amount": 1}), http.StatusBadRequest, "InvalidJSON"},
		{"bad side", post("/v1/journal-entries", badSide), http.StatusBadRequest, "InvalidRequest"},
		{"bad account type", post("/v1/accounts", map[string]any{"code": "1-1999", "name": "Float", "type": "cash"}), http.StatusBadRequest, "InvalidRequest"},
		{"asset without method", post("/v1/assets", map[string]any{"name": "Boat", "expense_account": accounts.CodeDepreciationExpense, "accumulated_account": accounts.CodeAccumulatedDepreciation}), http.StatusBadRequest, "InvalidRequest"},
		{"bad id", get("/v1/journal-entries/not-a-uuid"), http.StatusBadRequest, "InvalidID"},
		{"unknown entry", get("/v1/journal-entries/00000000-0000-0000-0000-000000000001"), http.StatusNotFound, "EntryNotFound"},
		{"unknown account", get("/v1/accounts/9-9999"), http.StatusNotFound, "UnknownAccount"},
		{"bad date", get("/v1/reports/trial-balance?as_of=31/01/2026"), http.StatusBadRequest, "InvalidDate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, tt.call)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, tt.code, decode[errorBody](t, rec).Code)
		})
	}
}

func TestAPI_ClosePeriodAndReports(t *testing.T) {
	h := newTestServer(t)
	rec := do(t, h, post("/v1/journal-entries", map[string]any{
		"date": "2026-01-10",
		"memo": "Interest collected",
		"lines": []map[string]any{
			{"account_code": accounts.CodeCash, "side": "debit", "amount": "800"},
			{"account_code": accounts.CodeLoanInterestIncome, "side": "credit", "amount": "800"},
		},
	}))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(t, h, get("/v1/reports/income-statement?from=2026-01-01&to=2026-01-31"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	is := decode[statements.IncomeStatement](t, rec)
	assert.True(t, is.NetIncome.Equal(decimal.NewFromInt(800)))

	rec = do(t, h, get("/v1/periods"))
	require.Equal(t, http.StatusOK, rec.Code)
	periods := decode[[]periodJSON](t, rec)
	require.Len(t, periods, 1)

	rec = do(t, h, post("/v1/periods/"+periods[0].ID.String()+"/close", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	closed := decode[periodJSON](t, rec)
	assert.Equal(t, "closed", string(closed.Status))
	assert.NotNil(t, closed.ClosingEntryID)

	rec = do(t, h, post("/v1/journal-entries", transfer("5")))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "ClosedPeriod", decode[errorBody](t, rec).Code)

	rec = do(t, h, get("/v1/reports/balance-sheet?as_of=2026-01-31"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	bs := decode[statements.BalanceSheet](t, rec)
	assert.True(t, bs.CurrentEarnings.IsZero())
	assert.True(t, bs.Assets.Total.Equal(bs.TotalLiabilitiesAndEquity))

	rec = do(t, h, get("/v1/reports/trial-balance?as_of=2026-01-31"))
	require.Equal(t, http.StatusOK, rec.Code)
	tb := decode[statements.TrialBalance](t, rec)
	assert.True(t, tb.TotalDebit.Equal(tb.TotalCredit))

	rec = do(t, h, post("/v1/periods/"+periods[0].ID.String()+"/reopen", map[string]any{"reason": ""}))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = do(t, h, post("/v1/periods/"+periods[0].ID.String()+"/reopen", map[string]any{"reason": "late bank charges"}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "open", string(decode[periodJSON](t, rec).Status))
}

func TestAPI_Assets(t *testing.T) {
	h := newTestServer(t)
	rec := do(t, h, post("/v1/assets", map[string]any{
		"name":                "Motorcycle",
		"cost":                "1200",
		"salvage":             "0",
		"acquired_on":         "2026-01-01",
		"useful_life":         12,
		"method":              "straight-line",
		"rate":                "0",
		"expense_account":     accounts.CodeDepreciationExpense,
		"accumulated_account": accounts.CodeAccumulatedDepreciation,
	}))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	a := decode[assetJSON](t, rec)

	rec = do(t, h, get("/v1/assets/"+a.ID.String()+"/schedule"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]installmentJSON](t, rec), 12)

	rec = do(t, h, post("/v1/assets/"+a.ID.String()+"/depreciate", map[string]any{"period_end": "2026-01-31"}))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "depreciation", string(decode[entryJSON](t, rec).Kind))

	rec = do(t, h, get("/v1/assets/"+a.ID.String()))
	require.Equal(t, http.StatusOK, rec.Code)
	detail := decode[struct {
		Accumulated decimal.Decimal `json:"accumulated_depreciation"`
		BookValue   decimal.Decimal `json:"book_value"`
	}](t, rec)
	assert.True(t, detail.Accumulated.Equal(decimal.NewFromInt(100)))
	assert.True(t, detail.BookValue.Equal(decimal.NewFromInt(1100)))
}

func TestAPI_TenantsAreIsolated(t *testing.T) {
	h := newTestServer(t)
	require.Equal(t, http.StatusCreated, do(t, h, post("/v1/journal-entries", transfer("70"))).Code)

	c := get("/v1/accounts/" + accounts.CodeCash + "/balance")
	c.tenant = "coop-b"
	rec := do(t, h, c)
	require.Equal(t, http.StatusOK, rec.Code)
	bal := decode[struct {
		Balance decimal.Decimal `json:"balance"`
	}](t, rec)
	assert.True(t, bal.Balance.IsZero())
}

func TestAPI_HealthAndMetrics(t *testing.T) {
	h := newTestServer(t)
	rec := do(t, h, call{method: http.MethodGet, path: "/healthz"})
	assert.Equal(t, http.StatusOK, rec.Code)

	require.Equal(t, http.StatusCreated, do(t, h, post("/v1/journal-entries", transfer("1"))).Code)
	rec = do(t, h, call{method: http.MethodGet, path: "/metrics"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `coopbooks_entries_posted_total{kind="standard",tenant="coop-a"} 1`)
}

func TestWriteLedgerError_Kinds(t *testing.T) {
	s := NewServer(Options{})
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{ledgererr.New(ledgererr.LockTimeout, "busy"), http.StatusServiceUnavailable, "LockTimeout"},
		{ledgererr.New(ledgererr.UnbalancedLedger, "drift"), http.StatusInternalServerError, "UnbalancedLedger"},
		{errors.New("disk full"), http.StatusInternalServerError, "Internal"},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		s.writeLedgerError(rec, httptest.NewRequest(http.MethodGet, "/", nil), tt.err)
		assert.Equal(t, tt.status, rec.Code)
		assert.Equal(t, tt.code, decode[errorBody](t, rec).Code)
	}
	rec := httptest.NewRecorder()
	s.writeLedgerError(rec, httptest.NewRequest(http.MethodGet, "/", nil), ledgererr.ErrLockTimeout)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
}
