package fingerprint

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisStore(client), mr
}

func TestRedisStoreRoundTrip(t *testing.T) {
	store, _ := newTestRedisStore(t)
	ctx := context.Background()

	rec := Record{Hash: Digest("tok"), ExpiresAt: time.Now().Add(time.Hour).Truncate(time.Second)}
	require.NoError(t, store.Save(ctx, "tab-1", rec))

	loaded, ok, err := store.Load(ctx, "tab-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, rec.Hash, loaded.Hash)
	assert.True(t, rec.ExpiresAt.Equal(loaded.ExpiresAt))
}

func TestRedisStoreRecordsExpireServerSide(t *testing.T) {
	store, mr := newTestRedisStore(t)
	ctx := context.Background()

	rec := Record{Hash: Digest("tok"), ExpiresAt: time.Now().Add(time.Minute)}
	require.NoError(t, store.Save(ctx, "tab-1", rec))

	mr.FastForward(2 * time.Minute)

	_, ok, err := store.Load(ctx, "tab-1")
	require.NoError(t, err)
	assert.False(t, ok, "TTL must clear the record")
}

func TestRedisStoreRejectsAlreadyExpiredRecords(t *testing.T) {
	store, _ := newTestRedisStore(t)
	ctx := context.Background()

	rec := Record{Hash: Digest("tok"), ExpiresAt: time.Now().Add(-time.Minute)}
	require.NoError(t, store.Save(ctx, "tab-1", rec))

	_, ok, err := store.Load(ctx, "tab-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisStoreClear(t *testing.T) {
	store, _ := newTestRedisStore(t)
	ctx := context.Background()

	rec := Record{Hash: Digest("tok"), ExpiresAt: time.Now().Add(time.Hour)}
	require.NoError(t, store.Save(ctx, "tab-1", rec))
	require.NoError(t, store.Clear(ctx, "tab-1"))

	_, ok, err := store.Load(ctx, "tab-1")
	require.NoError(t, err)
	assert.False(t, ok)

	// Clearing again is a no-op.
	require.NoError(t, store.Clear(ctx, "tab-1"))
}
