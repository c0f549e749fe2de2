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

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/flight-route-analytics/internal/cache"
	"github.com/kjstillabower/flight-route-analytics/internal/config"
	httphandler "github.com/kjstillabower/flight-route-analytics/internal/http"
	"github.com/kjstillabower/flight-route-analytics/internal/lifecycle"
	"github.com/kjstillabower/flight-route-analytics/internal/observability"
	"github.com/kjstillabower/flight-route-analytics/internal/service"
	"github.com/kjstillabower/flight-route-analytics/internal/store"
	"github.com/kjstillabower/flight-route-analytics/internal/timenorm"
)

func main() {
	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	db, err := store.Open(cfg.DatabasePath)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	migrateCtx, migrateCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := db.Migrate(migrateCtx); err != nil {
		migrateCancel()
		logger.Fatal("database migrate", zap.Error(err))
	}
	migrateCancel()
	logger.Info("database opened", zap.String("path", cfg.DatabasePath))

	cacheSvc, memcacheCloser, err := newCache(cfg)
	if err != nil {
		logger.Fatal("cache", zap.Error(err))
	}
	logger.Info("cache backend", zap.String("backend", cacheBackendName(cfg.CacheBackend)))

	localizer, err := timenorm.NewLocalizer(cfg.TimezoneCacheSize, logger)
	if err != nil {
		logger.Fatal("timezone localizer", zap.Error(err))
	}

	analytics := service.NewAnalyticsService(db, cacheSvc, localizer, logger, service.Options{
		CacheTTL:         cfg.CacheTTL,
		WeatherTolerance: cfg.WeatherTolerance,
		DistanceUnit:     cfg.DistanceUnit,
		RowLimit:         cfg.RowLimit,
		SpeedBatchSize:   cfg.SpeedBatchSize,
		ComputeTimeout:   cfg.ComputeTimeout,
		HubOrigins:       cfg.HubOrigins,
	})

	healthConfig := &httphandler.HealthConfig{
		Window:               cfg.HealthWindow,
		OverloadThresholdPct: cfg.OverloadThresholdPct,
		DegradedErrorPct:     cfg.DegradedErrorPct,
		RateLimitRPS:         cfg.RateLimitRPS,
		RateLimitBurst:       cfg.RateLimitBurst,
		StartTime:            time.Now(),
		StorePing:            db.Ping,
	}
	if memcacheCloser != nil {
		healthConfig.CachePing = memcacheCloser.Ping
	}

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}
	handler := httphandler.NewHandler(analytics, healthConfig, logger)
	router := httphandler.NewRouter(handler, logger, httphandler.RouterConfig{
		Limiter:        limiter,
		RequestTimeout: cfg.RequestTimeout,
		TestingMode:    cfg.TestingMode,
	})

	if len(cfg.TrackedOrigins) > 0 {
		observability.SetTrackedOrigins(cfg.TrackedOrigins)
	}

	warmCtx, stopWarming := context.WithCancel(context.Background())
	defer stopWarming()
	if len(cfg.WarmRoutes) > 0 {
		routes, err := cache.ParseRoutes(cfg.WarmRoutes)
		if err != nil {
			logger.Fatal("warm routes", zap.Error(err))
		}
		warmer := cache.NewRouteWarmer(analytics, logger)
		initialCtx, initialCancel := context.WithTimeout(warmCtx, 30*time.Second)
		if err := warmer.Warm(initialCtx, routes); err != nil {
			logger.Warn("cache warming failed", zap.Error(err))
		}
		initialCancel()
		if cfg.WarmInterval > 0 {
			go func() {
				if err := warmer.WarmPeriodic(warmCtx, routes, cfg.WarmInterval); err != nil && !errors.Is(err, context.Canceled) {
					logger.Error("periodic cache warming stopped", zap.Error(err))
				}
			}()
		}
	}

	srv := &http.Server{
		Addr:        ":" + cfg.ServerPort,
		Handler:     router,
		ReadTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", ":"+cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	lifecycle.SetShuttingDown(true)
	stopWarming()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	logger.Info("waiting for in-flight requests", zap.Int64("count", httphandler.InFlightCount()))
	waitCtx, waitCancel := context.WithTimeout(context.Background(), cfg.ShutdownInFlightTimeout)
	defer waitCancel()
	if err := httphandler.WaitForInFlight(waitCtx, cfg.ShutdownInFlightCheckInterval); err != nil {
		logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", httphandler.InFlightCount()))
	}

	if err := observability.FlushTelemetry(context.Background(), logger); err != nil {
		logger.Error("telemetry flush", zap.Error(err))
	}

	if memcacheCloser != nil {
		if err := memcacheCloser.Close(); err != nil {
			logger.Error("memcached close", zap.Error(err))
		}
	}
	if err := db.Close(); err != nil {
		logger.Error("database close", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

// newCache builds the configured cache backend. The memcached client is also
// returned so shutdown and health checks can reach it.
func newCache(cfg *config.Config) (cache.Cache, *cache.MemcachedCache, error) {
	switch cfg.CacheBackend {
	case "memcached":
		mc, err := cache.NewMemcachedCache(cfg.MemcachedAddrs, cfg.MemcachedTimeout, cfg.MemcachedMaxIdleConns)
		if err != nil {
			return nil, nil, fmt.Errorf("memcached cache: %w", err)
		}
		return mc, mc, nil
	case "none":
		return cache.NopCache{}, nil, nil
	default:
		return cache.NewInMemoryCache(), nil, nil
	}
}

func cacheBackendName(backend string) string {
	switch backend {
	case "memcached", "none":
		return backend
	default:
		return "in_memory"
	}
}
