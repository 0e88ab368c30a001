package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/coopbooks/coopbooks/internal/ledgererr"
)

var fast = Policy{Attempts: 4, Base: time.Millisecond, Max: 5 * time.Millisecond}

func TestDo_RetriesConcurrencyErrors(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fast, func(context.Context) error {
		calls++
		if calls < 3 {
			return ledgererr.New(ledgererr.LockTimeout, "accounts busy")
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_GivesUp(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fast, func(context.Context) error {
		calls++
		return ledgererr.New(ledgererr.LockTimeout, "accounts busy")
	})
	assert.ErrorIs(t, err, ledgererr.ErrLockTimeout)
	assert.Equal(t, 4, calls)
}

func TestDo_DoesNotRetryOtherErrors(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fast, func(context.Context) error {
		calls++
		return ledgererr.New(ledgererr.ClosedPeriod, "closed")
	})
	assert.ErrorIs(t, err, ledgererr.ErrClosedPeriod)
	assert.Equal(t, 1, calls)

	plain := errors.New("disk full")
	calls = 0
	err = Do(context.Background(), fast, func(context.Context) error {
		calls++
		return plain
	})
	assert.ErrorIs(t, err, plain)
	assert.Equal(t, 1, calls)
}

func TestDo_StopsOnContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Do(ctx, Policy{Attempts: 10, Base: time.Hour}, func(context.Context) error {
		calls++
		cancel()
		return ledgererr.New(ledgererr.LockTimeout, "busy")
	})
	assert.ErrorIs(t, err, ledgererr.ErrLockTimeout)
	assert.Equal(t, 1, calls)
}

func TestExponential(t *testing.T) {
	assert.Equal(t, 10*time.Millisecond, Exponential(10*time.Millisecond, 0, 0))
	assert.Equal(t, 40*time.Millisecond, Exponential(10*time.Millisecond, 2, 0))
	assert.Equal(t, 25*time.Millisecond, Exponential(10*time.Millisecond, 2, 25*time.Millisecond))
	assert.Equal(t, time.Duration(0), Exponential(0, 3, 0))
}

func TestFullJitter(t *testing.T) {
	for i := 0; i < 100; i++ {
		d := FullJitter(time.Millisecond)
		assert.GreaterOrEqual(t, d, time.Duration(0))
		assert.Less(t, d, time.Millisecond)
	}
	assert.Equal(t, time.Duration(0), FullJitter(0))
}
