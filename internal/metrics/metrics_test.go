package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector(t *testing.T) {
	c := NewCollector()
	c.EntryPosted("umoja", "standard")
	c.EntryPosted("umoja", "standard")
	c.EntryPosted("umoja", "reversal")
	c.PostFailed("umoja", "ClosedPeriod")
	c.PeriodClosed("umoja")
	c.LockWaited(3 * time.Millisecond)
	c.Committed(10 * time.Millisecond)

	assert.InDelta(t, 2, testutil.ToFloat64(c.entriesPosted.WithLabelValues("umoja", "standard")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(c.postFailures.WithLabelValues("umoja", "ClosedPeriod")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(c.periodsClosed.WithLabelValues("umoja")), 0)
	assert.Equal(t, 1, testutil.CollectAndCount(c.lockWait))
}

func TestNilCollector(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.EntryPosted("t", "standard")
		c.PostFailed("t", "LockTimeout")
		c.PeriodClosed("t")
		c.LockWaited(time.Second)
		c.Committed(time.Second)
	})
}

func TestHandler(t *testing.T) {
	c := NewCollector()
	c.EntryPosted("umoja", "depreciation")

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `coopbooks_entries_posted_total{kind="depreciation",tenant="umoja"} 1`)
}
