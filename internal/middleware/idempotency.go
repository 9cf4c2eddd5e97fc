package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	internalRedis "payments/internal/redis"
)

const (
	idempotencyHeader  = "Idempotency-Key"
	replayedHeader     = "Idempotent-Replayed"
	idempotencyTTL     = 24 * time.Hour
	idempotencyLockTTL = 30 * time.Second
)

// responseWriter wraps gin.ResponseWriter to capture the response.
type responseWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *responseWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *responseWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// IdempotencyMiddleware replays the stored response for a repeated Idempotency-Key.
// The key is bound to the request body it was first used with: a reuse with a
// different body gets 422 IDEMPOTENCY_KEY_REUSED instead of the stored response.
// A second request arriving while the first is still running gets 409.
// Redis failures degrade to normal processing.
func IdempotencyMiddleware(locks internalRedis.RequestLockStore, responses internalRedis.ResponseStore, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Only apply to mutating methods.
		if c.Request.Method != http.MethodPost && c.Request.Method != http.MethodPut && c.Request.Method != http.MethodPatch {
			c.Next()
			return
		}

		key := c.GetHeader(idempotencyHeader)
		if key == "" {
			c.Next()
			return
		}

		requestHash, err := hashRequestBody(c)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"code":    "INVALID_REQUEST",
				"message": "failed to read request body",
			})
			return
		}

		ctx := c.Request.Context()
		cacheKey := c.Request.Method + ":" + c.Request.URL.Path + ":" + key

		cached, err := responses.GetResponse(ctx, cacheKey)
		if err != nil {
			logger.Warn("Idempotency cache unavailable", zap.String("key", key), zap.Error(err))
			c.Next()
			return
		}
		if cached != nil {
			if cached.RequestHash != requestHash {
				logger.Warn("Idempotency-Key reused with a different request", zap.String("key", key))
				c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{
					"code":    "IDEMPOTENCY_KEY_REUSED",
					"message": "Idempotency-Key was already used with a different request body",
				})
				return
			}
			replay(c, cached)
			return
		}

		token, acquired, err := locks.AcquireRequestLock(ctx, cacheKey, idempotencyLockTTL)
		if err != nil {
			logger.Warn("Idempotency lock unavailable", zap.String("key", key), zap.Error(err))
			c.Next()
			return
		}
		if !acquired {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{
				"code":    "REQUEST_IN_PROGRESS",
				"message": "A request with this Idempotency-Key is already being processed",
			})
			return
		}
		defer func() {
			if err := locks.ReleaseRequestLock(context.WithoutCancel(ctx), cacheKey, token); err != nil {
				logger.Warn("Failed to release idempotency lock", zap.String("key", key), zap.Error(err))
			}
		}()

		w := &responseWriter{
			ResponseWriter: c.Writer,
			body:           &bytes.Buffer{},
		}
		c.Writer = w

		c.Next()

		status := c.Writer.Status()
		if status < http.StatusOK || status >= http.StatusInternalServerError {
			return
		}

		response := internalRedis.CachedResponse{
			StatusCode:  status,
			Body:        w.body.Bytes(),
			Headers:     extractResponseHeaders(c),
			RequestHash: requestHash,
		}
		if err := responses.SetResponse(context.WithoutCancel(ctx), cacheKey, &response, idempotencyTTL); err != nil {
			logger.Warn("Failed to cache idempotent response", zap.String("key", key), zap.Error(err))
		}
	}
}

func replay(c *gin.Context, cached *internalRedis.CachedResponse) {
	for k, v := range cached.Headers {
		for _, val := range v {
			c.Header(k, val)
		}
	}
	c.Header(replayedHeader, "true")
	c.Data(cached.StatusCode, "application/json", cached.Body)
	c.Abort()
}

// hashRequestBody returns the hex SHA-256 of the request body and restores
// the body for the handlers downstream.
func hashRequestBody(c *gin.Context) (string, error) {
	var body []byte
	if c.Request.Body != nil {
		var err error
		body, err = io.ReadAll(c.Request.Body)
		if err != nil {
			return "", err
		}
		_ = c.Request.Body.Close()
	}
	c.Request.Body = io.NopCloser(bytes.NewReader(body))

	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:]), nil
}

// extractResponseHeaders extracts headers to cache.
func extractResponseHeaders(c *gin.Context) http.Header {
	headers := make(http.Header)
	if ct := c.Writer.Header().Get("Content-Type"); ct != "" {
		headers.Set("Content-Type", ct)
	}
	return headers
}
