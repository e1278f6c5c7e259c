package sweeper

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisLocker(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()
	locker := NewRedisLocker(client)
	const key = "sweep:auto_approval:lock"

	first, err := locker.Acquire(ctx, key, time.Minute)
	require.NoError(t, err)

	_, err = locker.Acquire(ctx, key, time.Minute)
	assert.ErrorIs(t, err, ErrLockHeld)

	require.NoError(t, first.Release(ctx))
	assert.False(t, mr.Exists(key))

	t.Run("expired lease does not release the new holder", func(t *testing.T) {
		stale, err := locker.Acquire(ctx, key, time.Minute)
		require.NoError(t, err)

		mr.FastForward(2 * time.Minute)
		fresh, err := locker.Acquire(ctx, key, time.Minute)
		require.NoError(t, err)

		require.NoError(t, stale.Release(ctx))
		assert.True(t, mr.Exists(key), "stale holder must not delete someone else's lease")

		require.NoError(t, fresh.Release(ctx))
		assert.False(t, mr.Exists(key))
	})

	t.Run("redis down surfaces an error", func(t *testing.T) {
		mr.Close()
		_, err := locker.Acquire(ctx, key, time.Minute)
		assert.Error(t, err)
		assert.NotErrorIs(t, err, ErrLockHeld)
	})
}

func TestLocalLocker(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	locker := NewLocalLocker()
	locker.now = func() time.Time { return now }

	lease, err := locker.Acquire(ctx, "k", time.Minute)
	require.NoError(t, err)

	_, err = locker.Acquire(ctx, "k", time.Minute)
	assert.ErrorIs(t, err, ErrLockHeld)

	now = now.Add(2 * time.Minute)
	other, err := locker.Acquire(ctx, "k", time.Minute)
	require.NoError(t, err, "expired lease can be taken over")

	require.NoError(t, lease.Release(ctx))
	_, err = locker.Acquire(ctx, "k", time.Minute)
	assert.ErrorIs(t, err, ErrLockHeld, "old lease release keeps the new hold")

	require.NoError(t, other.Release(ctx))
	_, err = locker.Acquire(ctx, "k", time.Minute)
	assert.NoError(t, err)
}

func TestNewLocker_FallsBackWithoutRedis(t *testing.T) {
	assert.IsType(t, &LocalLocker{}, NewLocker(nil))
}
