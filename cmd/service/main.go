package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/uakhmed/temperature-dashboard-service/internal/cache"
	"github.com/uakhmed/temperature-dashboard-service/internal/config"
	httphandler "github.com/uakhmed/temperature-dashboard-service/internal/http"
	"github.com/uakhmed/temperature-dashboard-service/internal/lifecycle"
	"github.com/uakhmed/temperature-dashboard-service/internal/observability"
	"github.com/uakhmed/temperature-dashboard-service/internal/refdata"
	"github.com/uakhmed/temperature-dashboard-service/internal/service"
	"github.com/uakhmed/temperature-dashboard-service/internal/store"
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

	var refSource refdata.Source
	if cfg.ReferenceURL != "" {
		src, err := refdata.NewHTTPSource(
			cfg.ReferenceURL,
			cfg.ReferenceTimeout,
			cfg.ReferenceRetryAttempts,
			cfg.ReferenceRetryBaseDelay,
			cfg.ReferenceRetryMaxDelay,
		)
		if err != nil {
			logger.Fatal("reference source", zap.Error(err))
		}
		refSource = src
	}
	refs := refdata.NewProvider(refSource, logger)
	if refSource != nil {
		loadCtx, loadCancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := refs.Refresh(loadCtx); err != nil {
			// Charts still render without the reference; states just keep
			// their uploaded values or fall back to Unknown.
			logger.Warn("initial city reference fetch failed", zap.Error(err))
		}
		loadCancel()
		if cfg.ReferenceRefreshInterval > 0 {
			go func() {
				if err := refs.RefreshPeriodic(context.Background(), cfg.ReferenceRefreshInterval); err != nil && err != context.Canceled {
					logger.Error("periodic reference refresh stopped", zap.Error(err))
				}
			}()
		}
	} else {
		logger.Info("no reference URL configured; cleaning runs without a city reference")
	}

	var cacheSvc cache.Cache
	var memcacheCloser *cache.MemcachedCache
	switch cfg.CacheBackend {
	case "memcached":
		mc, err := cache.NewMemcachedCache(cfg.MemcachedAddrs, cfg.MemcachedTimeout, cfg.MemcachedMaxIdleConns)
		if err != nil {
			logger.Fatal("memcached cache", zap.Error(err))
		}
		memcacheCloser = mc
		cacheSvc = mc
		logger.Info("cache backend: memcached", zap.String("addrs", cfg.MemcachedAddrs))
	default:
		cacheSvc = cache.NewInMemoryCache()
		logger.Info("cache backend: in_memory")
	}

	datasets := store.NewDatasetStore(cfg.DatasetsMaxRetained)
	dashboard := service.NewDashboardService(datasets, refs, cacheSvc, cfg.CacheTTL, cfg.Palettes, cfg.RequestTimeout)

	healthConfig := &httphandler.HealthConfig{
		ReferenceLoaded: func() bool {
			_, loaded := refs.Current()
			return loaded
		},
	}
	if memcacheCloser != nil {
		healthConfig.CachePing = memcacheCloser.Ping
	}

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}
	handler := httphandler.NewHandler(dashboard, healthConfig, logger, cfg.UploadMaxBytes, cfg.ChartWidth, cfg.ChartHeight)

	router := mux.NewRouter()
	router.Use(httphandler.CorrelationIDMiddleware(logger))
	router.Use(httphandler.MetricsMiddleware)
	router.HandleFunc("/health", handler.GetHealth).Methods("GET")
	router.Handle("/metrics", observability.MetricsHandler())
	handler.Register(router, limiter, cfg.RequestTimeout)

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
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
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	inFlight := httphandler.InFlightCount()
	logger.Info("waiting for in-flight requests", zap.Int64("count", inFlight))
	waitCtx, waitCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer waitCancel()
	if err := httphandler.WaitForInFlight(waitCtx, 100*time.Millisecond); err != nil {
		logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", httphandler.InFlightCount()))
	}

	if memcacheCloser != nil {
		if err := memcacheCloser.Close(); err != nil {
			logger.Error("memcached close", zap.Error(err))
		}
	}
	logger.Info("shutdown complete")
}
