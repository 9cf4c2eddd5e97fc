package redis

import (
	"context"
	"time"
)

// RequestLockStore guards an idempotency key while its first request is in flight.
type RequestLockStore interface {
	AcquireRequestLock(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	ReleaseRequestLock(ctx context.Context, key, token string) error
}

// ResponseStore keeps finished responses for replay.
type ResponseStore interface {
	GetResponse(ctx context.Context, key string) (*CachedResponse, error)
	SetResponse(ctx context.Context, key string, response *CachedResponse, ttl time.Duration) error
}

// Ensure concrete types implement interfaces.
var (
	_ RequestLockStore = (*LockStore)(nil)
	_ ResponseStore    = (*CacheStore)(nil)
)
