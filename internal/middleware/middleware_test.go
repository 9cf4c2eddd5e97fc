package middleware

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"payments/internal/metrics"
	internalRedis "payments/internal/redis"
	"payments/internal/requestid"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func basicAuth(user string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"))
}

// ──────────────────────────────────────────────
// AUTH
// ──────────────────────────────────────────────

func TestBasicAuthMiddleware(t *testing.T) {
	router := gin.New()
	router.Use(BasicAuthMiddleware("test_sk_dummy"))
	router.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"valid secret", basicAuth("test_sk_dummy"), http.StatusOK},
		{"valid secret with password", "Basic " + base64.StdEncoding.EncodeToString([]byte("test_sk_dummy:ignored")), http.StatusOK},
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Bearer test_sk_dummy", http.StatusUnauthorized},
		{"wrong secret", basicAuth("live_sk_other"), http.StatusUnauthorized},
		{"bad base64", "Basic ***", http.StatusUnauthorized},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/ping", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tc.want, w.Code)
			if tc.want == http.StatusUnauthorized {
				assert.JSONEq(t, `{"code":"UNAUTHORIZED","message":"Invalid secret key"}`, w.Body.String())
			}
		})
	}
}

// ──────────────────────────────────────────────
// REQUEST ID
// ──────────────────────────────────────────────

func TestRequestIDMiddleware(t *testing.T) {
	var seen string
	router := gin.New()
	router.Use(RequestIDMiddleware())
	router.GET("/ping", func(c *gin.Context) {
		seen = requestid.FromContext(c.Request.Context())
		c.Status(http.StatusOK)
	})

	t.Run("propagates incoming id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set(requestid.Header, "req-abc")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, "req-abc", w.Header().Get(requestid.Header))
		assert.Equal(t, "req-abc", seen)
	})

	t.Run("generates id when blank", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set(requestid.Header, "   ")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		id := w.Header().Get(requestid.Header)
		assert.Len(t, id, 36)
		assert.Equal(t, id, seen)
	})
}

// ──────────────────────────────────────────────
// LOGGING / RECOVERY
// ──────────────────────────────────────────────

func TestLoggerMiddleware_RecordsLatency(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	router := gin.New()
	router.Use(LoggerMiddleware(zap.NewNop(), m))
	router.GET("/ping", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	assert.Equal(t, 2, testutil.CollectAndCount(m.HTTPDuration))
}

func TestRecoveryMiddleware(t *testing.T) {
	router := gin.New()
	router.Use(RecoveryMiddleware(zap.NewNop()))
	router.GET("/boom", func(c *gin.Context) { panic("kaboom") })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "PROVIDER_ERROR")
}

func TestTracingMiddleware_PassesThrough(t *testing.T) {
	router := gin.New()
	router.Use(TracingMiddleware("payments-test"))
	router.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pong", w.Body.String())
}

// ──────────────────────────────────────────────
// IDEMPOTENCY
// ──────────────────────────────────────────────

func newIdempotentRouter(t *testing.T, handler gin.HandlerFunc) (*gin.Engine, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	router := gin.New()
	router.Use(IdempotencyMiddleware(internalRedis.NewLockStore(client), internalRedis.NewCacheStore(client), zap.NewNop()))
	router.POST("/v1/payments/confirm", handler)
	router.GET("/v1/payments/confirm", handler)
	return router, mr
}

func postWithKey(router http.Handler, key string) *httptest.ResponseRecorder {
	return postBodyWithKey(router, key, `{}`)
}

func postBodyWithKey(router http.Handler, key, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/v1/payments/confirm", strings.NewReader(body))
	if key != "" {
		req.Header.Set(idempotencyHeader, key)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestIdempotencyMiddleware_ReplaysResponse(t *testing.T) {
	var calls int32
	router, _ := newIdempotentRouter(t, func(c *gin.Context) {
		n := atomic.AddInt32(&calls, 1)
		c.JSON(http.StatusOK, gin.H{"call": n})
	})

	first := postWithKey(router, "key-1")
	second := postWithKey(router, "key-1")

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, http.StatusOK, second.Code)
	assert.JSONEq(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "true", second.Header().Get(replayedHeader))
	assert.Empty(t, first.Header().Get(replayedHeader))

	postWithKey(router, "key-2")
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestIdempotencyMiddleware_RejectsKeyReusedWithDifferentBody(t *testing.T) {
	var calls int32
	var bodies []string
	router, _ := newIdempotentRouter(t, func(c *gin.Context) {
		atomic.AddInt32(&calls, 1)
		raw, err := io.ReadAll(c.Request.Body)
		require.NoError(t, err)
		bodies = append(bodies, string(raw))
		c.JSON(http.StatusOK, gin.H{"status": "APPROVED"})
	})

	first := postBodyWithKey(router, "key-1", `{"paymentKey":"pk1","orderId":"ord1","amount":1000}`)
	require.Equal(t, http.StatusOK, first.Code)

	reused := postBodyWithKey(router, "key-1", `{"paymentKey":"pk1","orderId":"ord1","amount":2000}`)
	assert.Equal(t, http.StatusUnprocessableEntity, reused.Code)
	assert.Contains(t, reused.Body.String(), "IDEMPOTENCY_KEY_REUSED")
	assert.Empty(t, reused.Header().Get(replayedHeader))

	same := postBodyWithKey(router, "key-1", `{"paymentKey":"pk1","orderId":"ord1","amount":1000}`)
	assert.Equal(t, http.StatusOK, same.Code)
	assert.Equal(t, "true", same.Header().Get(replayedHeader))

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	// The handler still sees the full body after it was hashed.
	assert.Equal(t, []string{`{"paymentKey":"pk1","orderId":"ord1","amount":1000}`}, bodies)
}

func TestIdempotencyMiddleware_CachesBusinessErrors(t *testing.T) {
	var calls int32
	router, _ := newIdempotentRouter(t, func(c *gin.Context) {
		atomic.AddInt32(&calls, 1)
		c.JSON(http.StatusConflict, gin.H{"code": "AMOUNT_MISMATCH"})
	})

	postWithKey(router, "key-1")
	second := postWithKey(router, "key-1")

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, http.StatusConflict, second.Code)
}

func TestIdempotencyMiddleware_DoesNotCacheServerErrors(t *testing.T) {
	var calls int32
	router, _ := newIdempotentRouter(t, func(c *gin.Context) {
		atomic.AddInt32(&calls, 1)
		c.JSON(http.StatusInternalServerError, gin.H{"code": "PROVIDER_ERROR"})
	})

	postWithKey(router, "key-1")
	postWithKey(router, "key-1")

	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestIdempotencyMiddleware_SkipsWithoutKeyOrForGet(t *testing.T) {
	var calls int32
	router, _ := newIdempotentRouter(t, func(c *gin.Context) {
		atomic.AddInt32(&calls, 1)
		c.Status(http.StatusOK)
	})

	postWithKey(router, "")
	postWithKey(router, "")

	req := httptest.NewRequest(http.MethodGet, "/v1/payments/confirm", nil)
	req.Header.Set(idempotencyHeader, "key-1")
	router.ServeHTTP(httptest.NewRecorder(), req)
	router.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, int32(4), atomic.LoadInt32(&calls))
}

func TestIdempotencyMiddleware_InFlightConflict(t *testing.T) {
	router, mr := newIdempotentRouter(t, func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	// Simulate a first request still holding the lock.
	require.NoError(t, mr.Set(requestLockKey("POST", "/v1/payments/confirm", "key-1"), "other-token"))

	w := postWithKey(router, "key-1")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "REQUEST_IN_PROGRESS")
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
}

func TestIdempotencyMiddleware_RedisDownFallsThrough(t *testing.T) {
	var calls int32
	router, mr := newIdempotentRouter(t, func(c *gin.Context) {
		atomic.AddInt32(&calls, 1)
		c.Status(http.StatusOK)
	})
	mr.Close()

	w := postWithKey(router, "key-1")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestIdempotencyMiddleware_LockErrorFallsThrough(t *testing.T) {
	var calls int32
	router := gin.New()
	router.Use(IdempotencyMiddleware(&erroringLocks{}, &emptyResponses{}, zap.NewNop()))
	router.POST("/v1/payments/confirm", func(c *gin.Context) {
		atomic.AddInt32(&calls, 1)
		c.Status(http.StatusOK)
	})

	w := postWithKey(router, "key-1")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

// requestLockKey mirrors the key layout used by the middleware and LockStore.
func requestLockKey(method, path, key string) string {
	return "lock:idempotency:" + method + ":" + path + ":" + key
}

type erroringLocks struct{}

func (erroringLocks) AcquireRequestLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	return "", false, errors.New("redis down")
}

func (erroringLocks) ReleaseRequestLock(ctx context.Context, key, token string) error {
	return nil
}

type emptyResponses struct{}

func (emptyResponses) GetResponse(ctx context.Context, key string) (*internalRedis.CachedResponse, error) {
	return nil, nil
}

func (emptyResponses) SetResponse(ctx context.Context, key string, response *internalRedis.CachedResponse, ttl time.Duration) error {
	return nil
}
