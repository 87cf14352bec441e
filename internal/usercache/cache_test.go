package usercache

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nordgate/tipbot/internal/domain"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewCache(client), mr
}

func TestCache_SetGet(t *testing.T) {
	ctx := context.Background()
	cache, _ := newTestCache(t)

	acc := &domain.Account{
		UserID:    42,
		Username:  "alice",
		WalletRef: "wlt-a",
		Balance:   9000,
		JoinedAt:  time.Now().UTC().Truncate(time.Second),
	}

	require.NoError(t, cache.Set(ctx, acc, DefaultTTL))

	cached, err := cache.Get(ctx, 42)
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.Equal(t, acc.UserID, cached.UserID)
	assert.Equal(t, acc.Username, cached.Username)
	assert.Equal(t, acc.Balance, cached.Balance)
}

func TestCache_MissReturnsNil(t *testing.T) {
	cache, _ := newTestCache(t)

	cached, err := cache.Get(context.Background(), 404)
	assert.NoError(t, err)
	assert.Nil(t, cached)
}

func TestCache_Invalidate(t *testing.T) {
	ctx := context.Background()
	cache, _ := newTestCache(t)

	require.NoError(t, cache.Set(ctx, &domain.Account{UserID: 1, Balance: 100}, DefaultTTL))
	require.NoError(t, cache.Set(ctx, &domain.Account{UserID: 2, Balance: 200}, DefaultTTL))

	require.NoError(t, cache.Invalidate(ctx, 1, 2))

	for _, id := range []int64{1, 2} {
		cached, err := cache.Get(ctx, id)
		assert.NoError(t, err)
		assert.Nil(t, cached)
	}
}

func TestCache_EntriesExpire(t *testing.T) {
	ctx := context.Background()
	cache, mr := newTestCache(t)

	require.NoError(t, cache.Set(ctx, &domain.Account{UserID: 1, Balance: 100}, time.Second))

	mr.FastForward(2 * time.Second)

	cached, err := cache.Get(ctx, 1)
	assert.NoError(t, err)
	assert.Nil(t, cached)
}

func TestCache_NilReceiverIsSafe(t *testing.T) {
	ctx := context.Background()
	var cache *Cache

	cached, err := cache.Get(ctx, 1)
	assert.NoError(t, err)
	assert.Nil(t, cached)
	assert.NoError(t, cache.Set(ctx, &domain.Account{UserID: 1}, DefaultTTL))
	assert.NoError(t, cache.Invalidate(ctx, 1))
}
