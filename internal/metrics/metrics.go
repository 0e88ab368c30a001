// Package metrics exposes ledger activity to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector records ledger metrics in its own registry. A nil *Collector
// is valid and records nothing.
type Collector struct {
	registry       *prometheus.Registry
	entriesPosted  *prometheus.CounterVec
	postFailures   *prometheus.CounterVec
	periodsClosed  *prometheus.CounterVec
	lockWait       prometheus.Histogram
	commitDuration prometheus.Histogram
}

// NewCollector creates a Collector with a private registry.
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Collector{
		registry: registry,
		entriesPosted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "coopbooks_entries_posted_total",
			Help: "Journal entries posted, by tenant and entry kind",
		}, []string{"tenant", "kind"}),
		postFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "coopbooks_post_failures_total",
			Help: "Rejected ledger writes, by tenant and error code",
		}, []string{"tenant", "code"}),
		periodsClosed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "coopbooks_periods_closed_total",
			Help: "Fiscal periods closed, by tenant",
		}, []string{"tenant"}),
		lockWait: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "coopbooks_lock_wait_seconds",
			Help:    "Time spent acquiring account and period locks",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		}),
		commitDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "coopbooks_commit_duration_seconds",
			Help:    "Time taken to validate, store and apply a ledger write",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// EntryPosted counts one posted entry.
func (c *Collector) EntryPosted(tenant, kind string) {
	if c == nil {
		return
	}
	c.entriesPosted.WithLabelValues(tenant, kind).Inc()
}

// PostFailed counts one rejected write.
func (c *Collector) PostFailed(tenant, code string) {
	if c == nil {
		return
	}
	c.postFailures.WithLabelValues(tenant, code).Inc()
}

// PeriodClosed counts one period close.
func (c *Collector) PeriodClosed(tenant string) {
	if c == nil {
		return
	}
	c.periodsClosed.WithLabelValues(tenant).Inc()
}

// LockWaited observes time spent waiting for locks.
func (c *Collector) LockWaited(d time.Duration) {
	if c == nil {
		return
	}
	c.lockWait.Observe(d.Seconds())
}

// Committed observes the duration of one ledger write.
func (c *Collector) Committed(d time.Duration) {
	if c == nil {
		return
	}
	c.commitDuration.Observe(d.Seconds())
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the collector's metrics in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
