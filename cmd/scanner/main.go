// Command scanner is the composition root for the relative-strength
// scanner: it wires configuration, logging, metrics, storage, cache,
// provider, the ingest/compute/scheduler/broadcaster pipeline, and the
// read API, then blocks until SIGINT/SIGTERM. Grounded on the teacher's
// cmd/indengine/main.go (env-driven startup, signal-based shutdown,
// startup banner) and cmd/api_gateway/main.go (srv.ListenAndServe in a
// goroutine, <-sigCh, graceful srv.Shutdown).
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"relstrength-scanner/config"
	"relstrength-scanner/internal/api"
	"relstrength-scanner/internal/broadcaster"
	scannercache "relstrength-scanner/internal/cache"
	"relstrength-scanner/internal/compute"
	"relstrength-scanner/internal/ingest"
	"relstrength-scanner/internal/kernel"
	"relstrength-scanner/internal/logger"
	"relstrength-scanner/internal/markethours"
	"relstrength-scanner/internal/metrics"
	"relstrength-scanner/internal/provider"
	"relstrength-scanner/internal/ratelimit"
	"relstrength-scanner/internal/retry"
	"relstrength-scanner/internal/scheduler"
	"relstrength-scanner/internal/store/sqlite"
)

const defaultWorkerPoolSize = 4

func main() {
	cfg := config.Load()
	logger := logger.Init("scanner", logLevel(cfg.LogLevel))
	logger.Info("starting relative-strength scanner")

	prom := metrics.NewMetrics()
	health := metrics.NewHealthStatus()
	metricsSrv := metrics.NewServer(cfg.MetricsAddr, health)
	metricsSrv.Start()

	db, err := sqlite.Open(cfg.SQLitePath, 1)
	if err != nil {
		logger.Error("sqlite open failed", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	health.SetSQLiteOK(true)

	candleStore := sqlite.NewCandleStore(db)
	snapshotStore := sqlite.NewSnapshotStore(db)
	benchmarkStore := sqlite.NewBenchmarkStateStore(db)
	watchlist := sqlite.NewWatchlistRepository(db)

	cache, err := scannercache.New(scannercache.Config{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("redis connect failed", "error", err)
		os.Exit(1)
	}
	defer cache.Close()
	health.SetRedisConnected(true)

	providerClient := newProviderClient(cfg)

	calendar, err := markethours.NewCalendar(
		cfg.MarketTZ, cfg.MarketOpenTime, cfg.MarketCloseTime,
		cfg.MarketDaysList(), cfg.MarketAllowAfterHours, nil,
	)
	if err != nil {
		logger.Error("market calendar init failed", "error", err)
		os.Exit(1)
	}

	ingestor := &ingest.Ingestor{
		Provider:        providerClient,
		Candles:         candleStore,
		Cache:           cache,
		Watchlist:       watchlist,
		RateLimiter:     ratelimit.New(cfg.RateLimitPerSec, cfg.RateLimitPerMin),
		RetryPolicy:     retry.New(3, 500*time.Millisecond, 10*time.Second),
		Metrics:         prom,
		Logger:          logger,
		BenchmarkSymbol: cfg.NiftySymbol,
		MaxBars:         cfg.IngestBars,
		CacheTTL:        cfg.RelativeCacheTTL(),
	}

	fanout := broadcaster.New(64, prom, logger)

	computeEngine := &compute.Engine{
		Candles:          candleStore,
		Cache:            cache,
		Snapshots:        snapshotStore,
		Benchmarks:       benchmarkStore,
		Watchlist:        watchlist,
		Publisher:        fanout,
		Metrics:          prom,
		Logger:           logger,
		Params:           kernel.DefaultParams(),
		ComputeBars:      cfg.ComputeBars,
		DefaultBenchmark: cfg.NiftySymbol,
		CacheTTL:         cfg.SnapshotCacheTTL(),
	}

	sched := scheduler.New(scheduler.Config{
		Timeframes:      cfg.Timeframes(),
		IngestInterval:  cfg.IngestInterval(),
		ComputeInterval: cfg.ComputeInterval(),
		WorkerPoolSize:  defaultWorkerPoolSize,
	}, ingestor, computeEngine, calendar, prom, health, logger)

	apiServer := &api.Server{
		Cache:       cache,
		Snapshots:   snapshotStore,
		Benchmarks:  benchmarkStore,
		Broadcaster: fanout,
		Logger:      logger,
	}
	httpSrv := &http.Server{Addr: cfg.APIAddr(), Handler: apiServer.Mux()}

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	health.StartLivenessChecker(ctx, cache.Client(), db, cfg.HealthCheckInterval())
	sched.Start(ctx)

	go func() {
		logger.Info("read API listening", "addr", cfg.APIAddr())
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("read API server error", "error", err)
		}
	}()

	logger.Info("scanner running", "timeframes", cfg.Timeframes())
	<-sigCh
	logger.Info("shutdown signal received")
	cancel()

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutCancel()
	httpSrv.Shutdown(shutCtx)

	sched.Wait()
	logger.Info("scanner stopped")
}

// newProviderClient picks the upstream candle source. A real deployment
// always configures PROVIDER_API_KEY (or one of the other credential
// fields resolved by internal/provider.ResolveAccessToken); with none set
// the fake deterministic client lets the scanner run end-to-end against
// its own generated paths, which is useful for demo/dev environments.
func newProviderClient(cfg *config.Config) provider.Client {
	if cfg.ProviderAPIKey == "" && cfg.ProviderAccessToken == "" && cfg.ProviderTOTPSecret == "" {
		return provider.NewFakeClient()
	}
	return provider.NewHTTPClient(provider.HTTPConfig{
		BaseURL: "https://api.groww.in",
		Credentials: provider.Credentials{
			APIKey:      cfg.ProviderAPIKey,
			APISecret:   cfg.ProviderAPISecret,
			AccessToken: cfg.ProviderAccessToken,
			TOTPSecret:  cfg.ProviderTOTPSecret,
		},
	})
}

func logLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
