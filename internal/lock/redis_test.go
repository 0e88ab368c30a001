package lock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredislib "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) *Redis {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredislib.NewClient(&goredislib.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	opts := DefaultRedisOptions()
	opts.Prefix = "test:"
	opts.RetryDelay = 5 * time.Millisecond
	return NewRedis(client, opts, nil)
}

func TestRedis_LockUnlock(t *testing.T) {
	r := newTestRedis(t)

	unlock, err := r.Lock(context.Background(), "1-1000", "4-1000")
	require.NoError(t, err)
	unlock()

	unlock, err = r.Lock(context.Background(), "4-1000")
	require.NoError(t, err)
	unlock()
}

func TestRedis_OverlapTimesOut(t *testing.T) {
	r := newTestRedis(t)

	unlock, err := r.Lock(context.Background(), "1-1000")
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = r.Lock(ctx, "0-0001", "1-1000")
	assert.ErrorIs(t, err, ErrTimeout)

	ctx2, cancel2 := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel2()
	u, err := r.Lock(ctx2, "0-0001")
	require.NoError(t, err, "keys taken before the timeout are released")
	u()
}

func TestRedis_SharedAcrossLockers(t *testing.T) {
	mr := miniredis.RunT(t)
	newLocker := func() *Redis {
		client := goredislib.NewClient(&goredislib.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = client.Close() })
		opts := DefaultRedisOptions()
		opts.RetryDelay = 5 * time.Millisecond
		return NewRedis(client, opts, nil)
	}
	a, b := newLocker(), newLocker()

	unlock, err := a.Lock(context.Background(), "cash")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = b.Lock(ctx, "cash")
	assert.ErrorIs(t, err, ErrTimeout)

	unlock()
	u, err := b.Lock(context.Background(), "cash")
	require.NoError(t, err)
	u()
}
