package statements

import (
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/coopbooks/coopbooks/internal/ledger"
	"github.com/coopbooks/coopbooks/internal/logging"
)

const (
	// DefaultCacheExpiration bounds how long an unused report stays cached.
	DefaultCacheExpiration = 10 * time.Minute
	cacheCleanupInterval   = 15 * time.Minute
)

// Generator builds statements from ledgers and caches them by ledger
// version. A commit bumps the version, so a cached report is never stale.
// Every call returns its own copy of the cached report.
type Generator struct {
	cache  *cache.Cache
	logger *zap.Logger
}

// NewGenerator creates a Generator with its own report cache.
func NewGenerator(logger *zap.Logger) *Generator {
	return &Generator{
		cache:  cache.New(DefaultCacheExpiration, cacheCleanupInterval),
		logger: logging.OrNop(logger),
	}
}

// BalanceSheet returns the balance sheet of l at asOf.
func (g *Generator) BalanceSheet(l *ledger.Ledger, asOf time.Time) (BalanceSheet, error) {
	var out BalanceSheet
	err := l.Read(func(v ledger.View) error {
		key := cacheKey(v, "balance-sheet", asOf.Format(time.DateOnly))
		if cached, ok := g.cache.Get(key); ok {
			out = cached.(BalanceSheet).clone()
			return nil
		}
		bs, err := BuildBalanceSheet(v, asOf, g.logger)
		if err != nil {
			return err
		}
		g.cache.SetDefault(key, bs)
		out = bs.clone()
		return nil
	})
	return out, err
}

// IncomeStatement returns the income statement of l for [from, to].
func (g *Generator) IncomeStatement(l *ledger.Ledger, from, to time.Time) (IncomeStatement, error) {
	var out IncomeStatement
	err := l.Read(func(v ledger.View) error {
		key := cacheKey(v, "income-statement", from.Format(time.DateOnly)+"/"+to.Format(time.DateOnly))
		if cached, ok := g.cache.Get(key); ok {
			out = cached.(IncomeStatement).clone()
			return nil
		}
		is, err := BuildIncomeStatement(v, from, to)
		if err != nil {
			return err
		}
		g.cache.SetDefault(key, is)
		out = is.clone()
		return nil
	})
	return out, err
}

// TrialBalance returns the trial balance of l at asOf.
func (g *Generator) TrialBalance(l *ledger.Ledger, asOf time.Time) (TrialBalance, error) {
	var out TrialBalance
	err := l.Read(func(v ledger.View) error {
		key := cacheKey(v, "trial-balance", asOf.Format(time.DateOnly))
		if cached, ok := g.cache.Get(key); ok {
			out = cached.(TrialBalance).clone()
			return nil
		}
		tb, err := BuildTrialBalance(v, asOf, g.logger)
		if err != nil {
			return err
		}
		g.cache.SetDefault(key, tb)
		out = tb.clone()
		return nil
	})
	return out, err
}

// Flush drops every cached report.
func (g *Generator) Flush() {
	g.cache.Flush()
}

func cacheKey(v View, report, params string) string {
	return fmt.Sprintf("%s:%s:%s:v%d", v.Tenant(), report, params, v.Version())
}
