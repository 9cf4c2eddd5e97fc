package redis

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const requestLockPrefix = "lock:idempotency:"

// releaseScript deletes the lock only if it is still held by the caller's token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// LockStore handles distributed locking in Redis.
type LockStore struct {
	client *redis.Client
}

// NewLockStore creates a new LockStore.
func NewLockStore(client *redis.Client) *LockStore {
	return &LockStore{client: client}
}

// AcquireRequestLock attempts to acquire the in-flight lock for an idempotency key.
// Returns the lock token and true if the lock was acquired, false if already held.
func (s *LockStore) AcquireRequestLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()

	ok, err := s.client.SetNX(ctx, requestLockPrefix+key, token, ttl).Result()
	if err != nil {
		return "", false, err
	}
	if !ok {
		return "", false, nil
	}

	return token, true, nil
}

// ReleaseRequestLock releases the lock if token still owns it.
// A lock that expired and was taken by someone else is left alone.
func (s *LockStore) ReleaseRequestLock(ctx context.Context, key, token string) error {
	return releaseScript.Run(ctx, s.client, []string{requestLockPrefix + key}, token).Err()
}
