package app

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"payments/internal/handler"
	"payments/internal/metrics"
	"payments/internal/middleware"
	internalRedis "payments/internal/redis"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	PaymentHandler *handler.PaymentHandler
	SecretKey      string
	Logger         *zap.Logger
	Metrics        *metrics.Metrics
	Gatherer       prometheus.Gatherer

	// Optional. Idempotency-Key replay is enabled only when both are set.
	RequestLocks internalRedis.RequestLockStore
	Responses    internalRedis.ResponseStore

	// Optional instrumentation.
	NewRelicApp    *newrelic.Application
	TracingService string
}

// NewRouter creates a new Gin router with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()

	// Global middleware.
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.RecoveryMiddleware(deps.Logger))
	router.Use(middleware.LoggerMiddleware(deps.Logger, deps.Metrics))

	if deps.TracingService != "" {
		router.Use(middleware.TracingMiddleware(deps.TracingService))
	}
	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
	}

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if deps.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	// API v1 routes.
	v1 := router.Group("/v1")
	v1.Use(middleware.BasicAuthMiddleware(deps.SecretKey))
	if deps.RequestLocks != nil && deps.Responses != nil {
		v1.Use(middleware.IdempotencyMiddleware(deps.RequestLocks, deps.Responses, deps.Logger))
	}
	{
		payments := v1.Group("/payments")
		{
			payments.POST("", deps.PaymentHandler.CreatePayment)
			payments.POST("/confirm", deps.PaymentHandler.ConfirmPayment)
			payments.GET("/:paymentKey", deps.PaymentHandler.GetPayment)
			payments.POST("/:paymentKey/cancel", deps.PaymentHandler.CancelPayment)
		}
	}

	return router
}
