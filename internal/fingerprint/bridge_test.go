package fingerprint

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type brokenStore struct{}

func (brokenStore) Save(context.Context, string, Record) error {
	return errors.New("disk full")
}

func (brokenStore) Load(context.Context, string) (Record, bool, error) {
	return Record{}, false, errors.New("disk full")
}

func (brokenStore) Clear(context.Context, string) error {
	return errors.New("disk full")
}

func TestBridgePersistsOnlyTheFingerprint(t *testing.T) {
	store := NewMemoryStore()
	bridge, err := NewBridge(store, WithSessionID("tab-1"))
	require.NoError(t, err)

	const token = "super-secret-token-value"
	expiry := time.Now().Add(time.Hour)
	bridge.Save(context.Background(), token, expiry)

	rec, ok, err := store.Load(context.Background(), "tab-1")
	require.NoError(t, err)
	require.True(t, ok)

	// The fingerprint matches the token but never equals it: nothing in the
	// persisted record can be turned back into the secret.
	assert.Equal(t, Digest(token), rec.Hash)
	assert.NotEqual(t, token, rec.Hash)
	assert.NotContains(t, rec.Hash, token)
}

func TestBridgeLoadReturnsLiveRecord(t *testing.T) {
	bridge, err := NewBridge(NewMemoryStore())
	require.NoError(t, err)

	expiry := time.Now().Add(time.Hour)
	bridge.Save(context.Background(), "tok", expiry)

	rec, ok := bridge.Load(context.Background())
	require.True(t, ok)
	assert.Equal(t, Digest("tok"), rec.Hash)
}

func TestBridgeLoadClearsStaleRecord(t *testing.T) {
	store := NewMemoryStore()
	now := time.Now()
	var mu sync.Mutex
	current := now

	bridge, err := NewBridge(store,
		WithSessionID("tab-1"),
		WithClock(func() time.Time {
			mu.Lock()
			defer mu.Unlock()
			return current
		}))
	require.NoError(t, err)

	bridge.Save(context.Background(), "tok", now.Add(time.Minute))

	mu.Lock()
	current = now.Add(2 * time.Minute)
	mu.Unlock()

	_, ok := bridge.Load(context.Background())
	assert.False(t, ok, "expired record must not be returned")

	_, present, err := store.Load(context.Background(), "tab-1")
	require.NoError(t, err)
	assert.False(t, present, "stale record must be cleared")
}

func TestBridgeSessionIsolation(t *testing.T) {
	store := NewMemoryStore()

	first, err := NewBridge(store)
	require.NoError(t, err)
	second, err := NewBridge(store)
	require.NoError(t, err)
	require.NotEqual(t, first.SessionID(), second.SessionID())

	first.Save(context.Background(), "tok", time.Now().Add(time.Hour))

	_, ok := second.Load(context.Background())
	assert.False(t, ok, "sessions must not see each other's records")
}

func TestBridgeSwallowsStorageFailures(t *testing.T) {
	bridge, err := NewBridge(brokenStore{})
	require.NoError(t, err)

	// None of these may panic or surface an error.
	bridge.Save(context.Background(), "tok", time.Now().Add(time.Hour))
	_, ok := bridge.Load(context.Background())
	assert.False(t, ok)
	bridge.Clear(context.Background())
}

func TestDigestIsDeterministicAndOpaque(t *testing.T) {
	assert.Equal(t, Digest("abc"), Digest("abc"))
	assert.NotEqual(t, Digest("abc"), Digest("abd"))
	assert.NotEqual(t, "abc", Digest("abc"))
}
