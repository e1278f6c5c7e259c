package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cachedUser struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

func useMiniredis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	SetClient(rdb)
	t.Cleanup(func() {
		SetClient(nil)
		_ = rdb.Close()
	})
	return mr
}

func TestAside_FetchesOnceThenServesFromRedis(t *testing.T) {
	mr := useMiniredis(t)
	ctx := context.Background()

	calls := 0
	fetch := func(dest *cachedUser) func() error {
		return func() error {
			calls++
			*dest = cachedUser{ID: 7, Name: "Sri Wahyuni"}
			return nil
		}
	}

	var first cachedUser
	require.NoError(t, Aside(ctx, UserKey(7), &first, UserTTL, fetch(&first)))
	var second cachedUser
	require.NoError(t, Aside(ctx, UserKey(7), &second, UserTTL, fetch(&second)))

	assert.Equal(t, 1, calls)
	assert.Equal(t, first, second)
	assert.True(t, mr.Exists("user:7"))

	mr.FastForward(UserTTL + time.Second)
	var third cachedUser
	require.NoError(t, Aside(ctx, UserKey(7), &third, UserTTL, fetch(&third)))
	assert.Equal(t, 2, calls, "expired entry is refetched")
}

func TestAside_FetchErrorIsNotCached(t *testing.T) {
	mr := useMiniredis(t)
	boom := errors.New("db down")

	var u cachedUser
	err := Aside(context.Background(), UserKey(9), &u, UserTTL, func() error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists("user:9"))
}

func TestAside_WithoutRedis(t *testing.T) {
	SetClient(nil)
	calls := 0
	var u cachedUser
	for i := 0; i < 2; i++ {
		require.NoError(t, Aside(context.Background(), UserKey(1), &u, UserTTL, func() error {
			calls++
			return nil
		}))
	}
	assert.Equal(t, 2, calls)
}

func TestAside_CorruptEntryFallsBackToFetch(t *testing.T) {
	mr := useMiniredis(t)
	require.NoError(t, mr.Set("user:3", "{not json"))

	var u cachedUser
	require.NoError(t, Aside(context.Background(), UserKey(3), &u, UserTTL, func() error {
		u = cachedUser{ID: 3}
		return nil
	}))
	assert.Equal(t, uint(3), u.ID)
}

func TestInvalidate(t *testing.T) {
	mr := useMiniredis(t)
	ctx := context.Background()
	require.NoError(t, SetJSON(ctx, UserKey(4), cachedUser{ID: 4}, UserTTL))
	require.NoError(t, SetJSON(ctx, ReviewSummaryKey, map[string]int{"completed": 1}, ReviewSummaryTTL))

	InvalidateUser(ctx, 4)
	InvalidateReviewSummary(ctx)
	assert.False(t, mr.Exists("user:4"))
	assert.False(t, mr.Exists(ReviewSummaryKey))
}

func TestNewClient(t *testing.T) {
	mr := miniredis.RunT(t)

	rdb, err := NewClient(context.Background(), mr.Addr())
	require.NoError(t, err)
	_ = rdb.Close()

	rdb, err = NewClient(context.Background(), "redis://"+mr.Addr()+"/0")
	require.NoError(t, err)
	_ = rdb.Close()

	_, err = NewClient(context.Background(), "redis://%%")
	assert.Error(t, err)

	assert.Equal(t, "blacklist:abc", BlacklistKey("abc"))
}
