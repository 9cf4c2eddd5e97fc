package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"payments/internal/app"
	"payments/internal/config"
	"payments/internal/handler"
	"payments/internal/kafka"
	"payments/internal/lock"
	"payments/internal/metrics"
	internalRedis "payments/internal/redis"
	"payments/internal/repository/memory"
	"payments/internal/service"
)

func main() {
	// Load configuration.
	cfg := config.Load()

	logger, err := app.NewLogger(cfg.Log)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	tp, err := app.NewTracerProvider(ctx, cfg.Tracing)
	if err != nil {
		logger.Fatal("failed to initialize tracing", zap.Error(err))
	}
	if tp != nil {
		logger.Info("OpenTelemetry tracing enabled", zap.String("endpoint", cfg.Tracing.Endpoint))
	}

	// Initialize New Relic FIRST so Redis can be instrumented.
	var nrApp *newrelic.Application
	if cfg.NewRelic.Enabled && cfg.NewRelic.LicenseKey != "" {
		nrApp, err = newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.NewRelic.AppName),
			newrelic.ConfigLicense(cfg.NewRelic.LicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
		)
		if err != nil {
			logger.Warn("failed to initialize New Relic", zap.Error(err))
		} else {
			logger.Info("New Relic enabled", zap.String("app", cfg.NewRelic.AppName))
		}
	}

	deps := app.RouterDeps{
		SecretKey:   cfg.Payments.SecretKey,
		Logger:      logger,
		NewRelicApp: nrApp,
	}
	if tp != nil {
		deps.TracingService = cfg.Tracing.ServiceName
	}

	// Idempotency-Key replay is optional; without Redis the engine alone
	// guarantees at-most-once transitions.
	if cfg.Redis.Enabled {
		redisClient, err := app.NewRedisClient(ctx, cfg.Redis, nrApp)
		if err != nil {
			logger.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer redisClient.Close()
		deps.RequestLocks = internalRedis.NewLockStore(redisClient)
		deps.Responses = internalRedis.NewCacheStore(redisClient)
		logger.Info("connected to Redis", zap.String("addr", cfg.Redis.Addr))
	}

	var publisher service.Publisher
	if cfg.Kafka.Enabled {
		kp := kafka.NewPublisher(kafka.NewWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic))
		defer func() {
			if err := kp.Close(); err != nil {
				logger.Warn("failed to close kafka writer", zap.Error(err))
			}
		}()
		publisher = kp
		logger.Info("publishing lifecycle events",
			zap.Strings("brokers", cfg.Kafka.Brokers),
			zap.String("topic", cfg.Kafka.Topic),
		)
	}

	// Wire dependencies.
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	paymentService := service.NewPaymentService(service.PaymentServiceDeps{
		Repo:     memory.NewPaymentRepository(),
		Receipts: service.NewReceiptService(cfg.Payments.ReceiptBaseURL),
		Locker:   lock.NewKeyed(),
		Notifier: service.NewNotificationService(publisher),
		Metrics:  m,
		Logger:   logger,
	})

	deps.PaymentHandler = handler.NewPaymentHandler(paymentService)
	deps.Metrics = m
	deps.Gatherer = registry

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      app.NewRouter(deps),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine.
	go func() {
		logger.Info("starting server", zap.String("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}
	if tp != nil {
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Warn("failed to flush traces", zap.Error(err))
		}
	}
	if nrApp != nil {
		nrApp.Shutdown(5 * time.Second)
	}

	logger.Info("server exited")
}
