// Package retry re-runs calls that failed with a retryable ledger error.
package retry

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/coopbooks/coopbooks/internal/ledgererr"
)

// Policy controls how often and how long Do waits between attempts.
type Policy struct {
	Attempts int
	Base     time.Duration
	Max      time.Duration
}

// DefaultPolicy suits contention on a handful of hot accounts.
func DefaultPolicy() Policy {
	return Policy{Attempts: 3, Base: 50 * time.Millisecond, Max: time.Second}
}

// Do calls fn until it succeeds, returns a non-retryable error, runs out
// of attempts, or ctx is done. Waits grow exponentially with full jitter.
func Do(ctx context.Context, p Policy, fn func(context.Context) error) error {
	if p.Attempts < 1 {
		p.Attempts = 1
	}
	var err error
	for attempt := 0; attempt < p.Attempts; attempt++ {
		if err = fn(ctx); err == nil || !ledgererr.Retryable(err) {
			return err
		}
		if attempt == p.Attempts-1 {
			break
		}
		if serr := sleep(ctx, FullJitter(Exponential(p.Base, attempt, p.Max))); serr != nil {
			return err
		}
	}
	return err
}

// Exponential returns base * 2^attempt, capped at max when max > 0.
func Exponential(base time.Duration, attempt int, max time.Duration) time.Duration {
	if base <= 0 {
		return 0
	}
	if attempt > 30 {
		attempt = 30
	}
	d := base << attempt
	if max > 0 && (d > max || d <= 0) {
		return max
	}
	return d
}

// FullJitter returns a random duration in [0, d).
func FullJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return time.Duration(rand.Int64N(int64(d)))
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
