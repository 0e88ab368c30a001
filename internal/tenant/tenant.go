// Package tenant maps tenant IDs to their ledgers. Every tenant's books are
// isolated; nothing here is shared between tenants except the database
// handle.
package tenant

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/coopbooks/coopbooks/internal/accounts"
	"github.com/coopbooks/coopbooks/internal/ledger"
	"github.com/coopbooks/coopbooks/internal/store/sqlite"
	"github.com/coopbooks/coopbooks/internal/validation"
)

// ErrInvalidTenant is returned for tenant IDs that are empty or malformed.
var ErrInvalidTenant = errors.New("invalid tenant id")

// Opener opens the ledger of one tenant.
type Opener func(ctx context.Context, tenantID string) (*ledger.Ledger, error)

// Registry opens each tenant's ledger once and hands out the same instance
// afterwards.
type Registry struct {
	open    Opener
	group   singleflight.Group
	mu      sync.RWMutex
	ledgers map[string]*ledger.Ledger
}

// NewRegistry creates a Registry that opens ledgers with open.
func NewRegistry(open Opener) *Registry {
	return &Registry{open: open, ledgers: make(map[string]*ledger.Ledger)}
}

// Get returns the ledger of tenantID, opening it on first use.
func (r *Registry) Get(ctx context.Context, tenantID string) (*ledger.Ledger, error) {
	if err := validation.TenantID(tenantID); err != nil {
		return nil, fmt.Errorf("%w %q: %w", ErrInvalidTenant, tenantID, err)
	}
	r.mu.RLock()
	l, ok := r.ledgers[tenantID]
	r.mu.RUnlock()
	if ok {
		return l, nil
	}

	v, err, _ := r.group.Do(tenantID, func() (any, error) {
		r.mu.RLock()
		l, ok := r.ledgers[tenantID]
		r.mu.RUnlock()
		if ok {
			return l, nil
		}
		l, err := r.open(ctx, tenantID)
		if err != nil {
			return nil, fmt.Errorf("opening tenant %s: %w", tenantID, err)
		}
		r.mu.Lock()
		r.ledgers[tenantID] = l
		r.mu.Unlock()
		return l, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*ledger.Ledger), nil
}

// Tenants returns the IDs of every open ledger, sorted.
func (r *Registry) Tenants() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.ledgers))
	for id := range r.ledgers {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Close closes every open ledger.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var errs []error
	for id, l := range r.ledgers {
		if err := l.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing tenant %s: %w", id, err))
		}
		delete(r.ledgers, id)
	}
	return errors.Join(errs...)
}

// SQLite returns an Opener that keeps every tenant in db. base supplies
// the shared ledger options; Tenant and Store are set per tenant. With
// seed set, a tenant without accounts gets the default chart.
func SQLite(db *sql.DB, base ledger.Options, seed bool) Opener {
	return func(ctx context.Context, tenantID string) (*ledger.Ledger, error) {
		opts := base
		opts.Tenant = tenantID
		opts.Store = sqlite.New(db, tenantID)
		l, err := ledger.Open(ctx, opts)
		if err != nil {
			return nil, err
		}
		if seed && len(l.Accounts()) == 0 {
			if err := l.ImportAccounts(ctx, "system", accounts.DefaultChart()); err != nil {
				return nil, fmt.Errorf("seeding chart of accounts: %w", err)
			}
		}
		return l, nil
	}
}
