package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/boddenberg/hatacrm/internal/config"
	"github.com/boddenberg/hatacrm/internal/handler"
	"github.com/boddenberg/hatacrm/internal/infra/cache"
	"github.com/boddenberg/hatacrm/internal/infra/observability"
	"github.com/boddenberg/hatacrm/internal/infra/postgres"
	"github.com/boddenberg/hatacrm/internal/infra/queue"
	"github.com/boddenberg/hatacrm/internal/infra/resilience"
	"github.com/boddenberg/hatacrm/internal/port"
	"github.com/boddenberg/hatacrm/internal/service"

	"go.uber.org/zap"
)

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.Bool("migrate_on_start", cfg.MigrateOnStart),
		zap.Duration("analytics_cache_ttl", cfg.AnalyticsCacheTTL),
		zap.Int("refresh_max_concurrency", cfg.RefreshMaxConcurrency),
		zap.Bool("async_refresh", cfg.AsyncRefreshEnabled()),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("initial_backoff", cfg.InitialBackoff),
	)

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "hatacrm")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.RefreshMaxConcurrency,
	}

	// --- Database ---
	if cfg.MigrateOnStart {
		if err := postgres.Migrate(cfg.DatabaseURL, logger); err != nil {
			logger.Fatal("migration failed", zap.Error(err))
		}
	}

	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	db, err := postgres.Open(startCtx, postgres.Config{
		URL:             cfg.DatabaseURL,
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLife,
	}, resilienceCfg, metrics, logger)
	cancelStart()
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// --- Analytics read cache ---
	var local port.Cache[[]byte]
	if cfg.AnalyticsCacheTTL > 0 {
		c := cache.New[[]byte](cfg.AnalyticsCacheTTL)
		defer c.Close()
		local = c
	} else {
		logger.Info("in-process analytics cache disabled")
	}

	// --- Message broker ---
	var publisher port.RefreshPublisher
	if cfg.AsyncRefreshEnabled() {
		amqpCtx, cancelAMQP := context.WithTimeout(context.Background(), 30*time.Second)
		client, err := queue.Dial(amqpCtx, queue.Config{
			URL:      cfg.AMQPURL,
			Exchange: cfg.AMQPExchange,
			Queue:    cfg.AMQPQueue,
		}, resilienceCfg, metrics, logger)
		cancelAMQP()
		if err != nil {
			logger.Fatal("failed to connect to message broker", zap.Error(err))
		}
		defer client.Close()
		publisher = client
	} else {
		logger.Warn("AMQP_URL not set, async refresh unavailable")
	}

	// --- Services ---
	services := handler.Services{
		Bookings:   service.NewBookingService(db, db, metrics, logger),
		Apartments: service.NewApartmentService(db, logger),
		Expenses:   service.NewExpenseService(db, logger),
		Analytics: service.NewAnalyticsService(
			db,
			local,
			db,
			publisher,
			resilience.NewBulkhead(cfg.RefreshMaxConcurrency),
			metrics,
			logger,
		),
	}

	// --- Router ---
	router := handler.NewRouter(services, db, metrics, logger)

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
