// Package lock serializes ledger writers over sets of account keys and
// fiscal periods. Every acquisition is bounded by its context.
package lock

import (
	"context"
	"errors"
	"slices"
	"sync"

	"golang.org/x/sync/semaphore"
)

// ErrTimeout is returned when a lock could not be acquired before the
// context was done.
var ErrTimeout = errors.New("lock wait timed out")

// Unlock releases everything a Lock call acquired. It is safe to call once.
type Unlock func()

// Locker acquires exclusive locks over sets of keys.
type Locker interface {
	// Lock acquires every key or none. Keys are taken in sorted order so two
	// callers with overlapping sets cannot deadlock.
	Lock(ctx context.Context, keys ...string) (Unlock, error)
}

// SortedKeys returns the distinct keys in acquisition order.
func SortedKeys(keys []string) []string {
	out := slices.Clone(keys)
	slices.Sort(out)
	return slices.Compact(out)
}

// Local is an in-process Locker backed by one binary semaphore per key.
type Local struct {
	mu   sync.Mutex
	sems map[string]*semaphore.Weighted
}

// NewLocal creates a Local locker.
func NewLocal() *Local {
	return &Local{sems: make(map[string]*semaphore.Weighted)}
}

func (l *Local) sem(key string) *semaphore.Weighted {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.sems[key]
	if !ok {
		s = semaphore.NewWeighted(1)
		l.sems[key] = s
	}
	return s
}

// Lock implements Locker.
func (l *Local) Lock(ctx context.Context, keys ...string) (Unlock, error) {
	keys = SortedKeys(keys)
	held := make([]*semaphore.Weighted, 0, len(keys))
	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Release(1)
		}
	}
	for _, k := range keys {
		s := l.sem(k)
		if err := s.Acquire(ctx, 1); err != nil {
			release()
			return nil, errors.Join(ErrTimeout, err)
		}
		held = append(held, s)
	}
	return onceUnlock(release), nil
}

func onceUnlock(fn func()) Unlock {
	var once sync.Once
	return func() { once.Do(fn) }
}

// maxReaders bounds the number of concurrent shared holders of a period.
const maxReaders = 1 << 20

// Periods hands out shared and exclusive locks per fiscal period. Posts
// hold a period shared; closing holds it exclusively. Waiting exclusive
// holders block later shared requests, so a close is not starved.
type Periods struct {
	mu   sync.Mutex
	sems map[string]*semaphore.Weighted
}

// NewPeriods creates an empty period lock table.
func NewPeriods() *Periods {
	return &Periods{sems: make(map[string]*semaphore.Weighted)}
}

func (p *Periods) sem(key string) *semaphore.Weighted {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.sems[key]
	if !ok {
		s = semaphore.NewWeighted(maxReaders)
		p.sems[key] = s
	}
	return s
}

// Shared takes one slot of the period.
func (p *Periods) Shared(ctx context.Context, key string) (Unlock, error) {
	return p.acquire(ctx, key, 1)
}

// Exclusive takes every slot of the period.
func (p *Periods) Exclusive(ctx context.Context, key string) (Unlock, error) {
	return p.acquire(ctx, key, maxReaders)
}

func (p *Periods) acquire(ctx context.Context, key string, n int64) (Unlock, error) {
	s := p.sem(key)
	if err := s.Acquire(ctx, n); err != nil {
		return nil, errors.Join(ErrTimeout, err)
	}
	return onceUnlock(func() { s.Release(n) }), nil
}
