package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every Prometheus metric the scanner exposes.
type Metrics struct {
	IngestTicksTotal    *prometheus.CounterVec // labels: timeframe, outcome
	IngestDur           *prometheus.HistogramVec
	IngestSymbolErrors  *prometheus.CounterVec // labels: timeframe
	ComputeTicksTotal   *prometheus.CounterVec
	ComputeDur          *prometheus.HistogramVec
	RateLimiterWaitSecs prometheus.Histogram

	CandlesUpserted  *prometheus.CounterVec // labels: timeframe
	SnapshotRows     *prometheus.GaugeVec   // labels: timeframe
	SnapshotSaveDur  prometheus.Histogram

	CacheHits   *prometheus.CounterVec // labels: outcome (hit|miss)
	BroadcastDrops prometheus.Counter
	Subscribers    *prometheus.GaugeVec // labels: timeframe

	SchedulerSkippedMarketClosed *prometheus.CounterVec // labels: workflow
	SchedulerOverlapSuppressed   *prometheus.CounterVec // labels: workflow
}

// NewMetrics registers and returns every scanner metric.
func NewMetrics() *Metrics {
	m := &Metrics{
		IngestTicksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scanner_ingest_ticks_total",
			Help: "Completed ingest ticks by timeframe and outcome",
		}, []string{"timeframe", "outcome"}),
		IngestDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "scanner_ingest_duration_seconds",
			Help:    "Ingest tick wall time by timeframe",
			Buckets: prometheus.DefBuckets,
		}, []string{"timeframe"}),
		IngestSymbolErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scanner_ingest_symbol_errors_total",
			Help: "Per-symbol ingest failures (sweep continues) by timeframe",
		}, []string{"timeframe"}),
		ComputeTicksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scanner_compute_ticks_total",
			Help: "Completed compute ticks by timeframe and outcome",
		}, []string{"timeframe", "outcome"}),
		ComputeDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "scanner_compute_duration_seconds",
			Help:    "Compute tick wall time by timeframe",
			Buckets: prometheus.DefBuckets,
		}, []string{"timeframe"}),
		RateLimiterWaitSecs: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "scanner_rate_limiter_wait_seconds",
			Help:    "Time spent blocked in the rate limiter's Acquire",
			Buckets: []float64{0, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		}),

		CandlesUpserted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scanner_candles_upserted_total",
			Help: "Candle rows upserted by timeframe",
		}, []string{"timeframe"}),
		SnapshotRows: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "scanner_snapshot_rows",
			Help: "Row count of the most recently published snapshot by timeframe",
		}, []string{"timeframe"}),
		SnapshotSaveDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "scanner_snapshot_save_duration_seconds",
			Help:    "Snapshot Store save latency",
			Buckets: prometheus.DefBuckets,
		}),

		CacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scanner_cache_lookups_total",
			Help: "Hot Cache lookups by outcome",
		}, []string{"outcome"}),
		BroadcastDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scanner_broadcast_drops_total",
			Help: "Envelopes dropped because a subscriber's buffer was full",
		}),
		Subscribers: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "scanner_broadcast_subscribers",
			Help: "Current subscriber count by timeframe",
		}, []string{"timeframe"}),

		SchedulerSkippedMarketClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scanner_scheduler_skipped_market_closed_total",
			Help: "Ticks skipped because the market-hours gate was closed, by workflow kind",
		}, []string{"workflow"}),
		SchedulerOverlapSuppressed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scanner_scheduler_overlap_suppressed_total",
			Help: "Ticks that waited for a prior in-flight tick instead of running concurrently",
		}, []string{"workflow"}),
	}

	prometheus.MustRegister(
		m.IngestTicksTotal,
		m.IngestDur,
		m.IngestSymbolErrors,
		m.ComputeTicksTotal,
		m.ComputeDur,
		m.RateLimiterWaitSecs,
		m.CandlesUpserted,
		m.SnapshotRows,
		m.SnapshotSaveDur,
		m.CacheHits,
		m.BroadcastDrops,
		m.Subscribers,
		m.SchedulerSkippedMarketClosed,
		m.SchedulerOverlapSuppressed,
	)

	return m
}

// HealthStatus represents the scanner's liveness/readiness snapshot.
type HealthStatus struct {
	mu sync.RWMutex

	RedisConnected bool      `json:"redis_connected"`
	SQLiteOK       bool      `json:"sqlite_ok"`
	MarketOpen     bool      `json:"market_open"`
	LastIngestAt   time.Time `json:"last_ingest_at"`
	LastComputeAt  time.Time `json:"last_compute_at"`
	Timeframes     []string  `json:"timeframes"`

	RedisLatencyMs  float64   `json:"redis_latency_ms"`
	SQLiteLatencyMs float64   `json:"sqlite_latency_ms"`
	LastCheckAt     time.Time `json:"last_check_at"`
	StartedAt       time.Time `json:"started_at"`
}

// NewHealthStatus returns a default health status.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{StartedAt: time.Now()}
}

func (h *HealthStatus) SetRedisConnected(v bool) {
	h.mu.Lock()
	h.RedisConnected = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetSQLiteOK(v bool) {
	h.mu.Lock()
	h.SQLiteOK = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetMarketOpen(v bool) {
	h.mu.Lock()
	h.MarketOpen = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetLastIngestAt(t time.Time) {
	h.mu.Lock()
	h.LastIngestAt = t
	h.mu.Unlock()
}

func (h *HealthStatus) SetLastComputeAt(t time.Time) {
	h.mu.Lock()
	h.LastComputeAt = t
	h.mu.Unlock()
}

func (h *HealthStatus) SetTimeframes(tfs []string) {
	h.mu.Lock()
	h.Timeframes = tfs
	h.mu.Unlock()
}

// CheckRedis pings Redis and records latency + connectivity.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	latency := time.Since(start)

	h.mu.Lock()
	h.RedisConnected = err == nil
	h.RedisLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// CheckSQLite runs a trivial query and records latency + health.
func (h *HealthStatus) CheckSQLite(ctx context.Context, db *sql.DB) {
	start := time.Now()
	err := db.PingContext(ctx)
	latency := time.Since(start)

	h.mu.Lock()
	h.SQLiteOK = err == nil
	h.SQLiteLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker runs periodic dependency checks until ctx is done.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb *goredis.Client, sqlDB *sql.DB, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
				if rdb != nil {
					h.CheckRedis(probeCtx, rdb)
				}
				if sqlDB != nil {
					h.CheckSQLite(probeCtx, sqlDB)
				}
				cancel()
			}
		}
	}()
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	overallStatus := "healthy"
	httpCode := http.StatusOK
	if !h.RedisConnected || !h.SQLiteOK {
		overallStatus = "degraded"
		httpCode = http.StatusServiceUnavailable
	}
	if !h.RedisConnected && !h.SQLiteOK {
		overallStatus = "unhealthy"
	}

	status := struct {
		Status          string   `json:"status"`
		Uptime          string   `json:"uptime"`
		MarketOpen      bool     `json:"market_open"`
		RedisConnected  bool     `json:"redis_connected"`
		RedisLatencyMs  float64  `json:"redis_latency_ms"`
		SQLiteOK        bool     `json:"sqlite_ok"`
		SQLiteLatencyMs float64  `json:"sqlite_latency_ms"`
		Timeframes      []string `json:"timeframes"`
		LastIngestAt    string   `json:"last_ingest_at"`
		LastComputeAt   string   `json:"last_compute_at"`
		LastCheckAt     string   `json:"last_check_at"`
	}{
		Status:          overallStatus,
		Uptime:          time.Since(h.StartedAt).Round(time.Second).String(),
		MarketOpen:      h.MarketOpen,
		RedisConnected:  h.RedisConnected,
		RedisLatencyMs:  h.RedisLatencyMs,
		SQLiteOK:        h.SQLiteOK,
		SQLiteLatencyMs: h.SQLiteLatencyMs,
		Timeframes:      h.Timeframes,
		LastIngestAt:    h.LastIngestAt.Format(time.RFC3339),
		LastComputeAt:   h.LastComputeAt.Format(time.RFC3339),
		LastCheckAt:     h.LastCheckAt.Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if httpCode != http.StatusOK {
		w.WriteHeader(httpCode)
	}
	json.NewEncoder(w).Encode(status)
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	health *HealthStatus
	addr   string
	srv    *http.Server
}

// NewServer creates a metrics and health server.
func NewServer(addr string, health *HealthStatus) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", health.ServeHTTP)

	return &Server{
		health: health,
		addr:   addr,
		srv:    &http.Server{Addr: addr, Handler: mux},
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("[metrics] server listening on %s", s.addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("[metrics] server error: %v", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
