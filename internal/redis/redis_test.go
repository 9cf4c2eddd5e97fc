package redis

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func TestLockStore_AcquireAndRelease(t *testing.T) {
	client, mr := newTestClient(t)
	store := NewLockStore(client)
	ctx := context.Background()

	token, ok, err := store.AcquireRequestLock(ctx, "key-1", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotEmpty(t, token)

	_, ok, err = store.AcquireRequestLock(ctx, "key-1", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "second acquire must fail while held")

	require.NoError(t, store.ReleaseRequestLock(ctx, "key-1", token))
	assert.False(t, mr.Exists(requestLockPrefix+"key-1"))

	_, ok, err = store.AcquireRequestLock(ctx, "key-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLockStore_ReleaseWithStaleToken(t *testing.T) {
	client, mr := newTestClient(t)
	store := NewLockStore(client)
	ctx := context.Background()

	_, ok, err := store.AcquireRequestLock(ctx, "key-1", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Second)

	newToken, ok, err := store.AcquireRequestLock(ctx, "key-1", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, store.ReleaseRequestLock(ctx, "key-1", "stale-token"))
	got, err := mr.Get(requestLockPrefix + "key-1")
	require.NoError(t, err)
	assert.Equal(t, newToken, got)
}

func TestCacheStore_MissThenHit(t *testing.T) {
	client, mr := newTestClient(t)
	store := NewCacheStore(client)
	ctx := context.Background()

	cached, err := store.GetResponse(ctx, "POST:/v1/payments:k")
	require.NoError(t, err)
	assert.Nil(t, cached)

	resp := &CachedResponse{
		StatusCode:  http.StatusOK,
		Body:        []byte(`{"status":"APPROVED"}`),
		Headers:     http.Header{"Content-Type": []string{"application/json"}},
		RequestHash: "3f2a",
	}
	require.NoError(t, store.SetResponse(ctx, "POST:/v1/payments:k", resp, time.Hour))

	cached, err = store.GetResponse(ctx, "POST:/v1/payments:k")
	require.NoError(t, err)
	assert.Equal(t, resp, cached)

	mr.FastForward(2 * time.Hour)
	cached, err = store.GetResponse(ctx, "POST:/v1/payments:k")
	require.NoError(t, err)
	assert.Nil(t, cached)
}

func TestCacheStore_CorruptEntry(t *testing.T) {
	client, mr := newTestClient(t)
	store := NewCacheStore(client)

	require.NoError(t, mr.Set(responseCachePrefix+"bad", "not-json"))

	_, err := store.GetResponse(context.Background(), "bad")
	assert.Error(t, err)
}
