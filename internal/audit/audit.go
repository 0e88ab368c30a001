// Package audit records every state-changing ledger call. The ledger
// supplies events; sinks decide where they go.
package audit

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Actions recorded by the ledger.
const (
	ActionAccountCreate     = "account.create"
	ActionAccountDeactivate = "account.deactivate"
	ActionAccountReactivate = "account.reactivate"
	ActionAccountRetype     = "account.change_type"
	ActionEntryDraft        = "entry.draft"
	ActionEntryUpdate       = "entry.update"
	ActionEntryDiscard      = "entry.discard"
	ActionEntryPost         = "entry.post"
	ActionEntryReverse      = "entry.reverse"
	ActionPeriodOpen        = "period.open"
	ActionPeriodClose       = "period.close"
	ActionPeriodReopen      = "period.reopen_override"
	ActionAssetRegister     = "asset.register"
	ActionDepreciationPost  = "asset.depreciate"
)

// Event is one audited state change.
type Event struct {
	At         time.Time
	Tenant     string
	Actor      string
	Action     string
	EntityType string
	EntityID   string
	Details    string
}

// Sink receives audit events.
type Sink interface {
	Record(ctx context.Context, e Event) error
}

// Discard drops every event.
var Discard Sink = discard{}

type discard struct{}

func (discard) Record(context.Context, Event) error { return nil }

// LogSink writes events to a zap logger.
type LogSink struct {
	Logger *zap.Logger
}

func (s LogSink) Record(_ context.Context, e Event) error {
	s.Logger.Info("audit",
		zap.Time("at", e.At),
		zap.String("tenant", e.Tenant),
		zap.String("actor", e.Actor),
		zap.String("action", e.Action),
		zap.String("entity_type", e.EntityType),
		zap.String("entity_id", e.EntityID),
		zap.String("details", e.Details),
	)
	return nil
}

// Multi fans events out to every sink and joins their errors.
func Multi(sinks ...Sink) Sink {
	return multi(sinks)
}

type multi []Sink

func (m multi) Record(ctx context.Context, e Event) error {
	var errs []error
	for _, s := range m {
		if err := s.Record(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Memory keeps events in memory, mostly for tests.
type Memory struct {
	mu     sync.Mutex
	events []Event
}

func (m *Memory) Record(_ context.Context, e Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	return nil
}

// Events returns a copy of the recorded events.
func (m *Memory) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Event(nil), m.events...)
}

// Actions returns the recorded actions in order.
func (m *Memory) Actions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.events))
	for i, e := range m.events {
		out[i] = e.Action
	}
	return out
}
