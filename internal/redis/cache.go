package redis

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
)

const responseCachePrefix = "idempotency:"

// CachedResponse is an HTTP response stored for replay.
// RequestHash identifies the request body the response was produced for.
type CachedResponse struct {
	StatusCode  int         `json:"status_code"`
	Body        []byte      `json:"body"`
	Headers     http.Header `json:"headers"`
	RequestHash string      `json:"request_hash"`
}

// CacheStore handles response caching in Redis.
type CacheStore struct {
	client *redis.Client
}

// NewCacheStore creates a new CacheStore.
func NewCacheStore(client *redis.Client) *CacheStore {
	return &CacheStore{client: client}
}

// GetResponse retrieves a cached response.
// Returns nil on a cache miss.
func (s *CacheStore) GetResponse(ctx context.Context, key string) (*CachedResponse, error) {
	data, err := s.client.Get(ctx, responseCachePrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil // Cache miss
		}
		return nil, err
	}

	var cached CachedResponse
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, err
	}
	return &cached, nil
}

// SetResponse stores a response for ttl.
func (s *CacheStore) SetResponse(ctx context.Context, key string, response *CachedResponse, ttl time.Duration) error {
	data, err := json.Marshal(response)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, responseCachePrefix+key, data, ttl).Err()
}
