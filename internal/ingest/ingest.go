// Package ingest implements the Ingestor (component G): per-timeframe
// sweeps that pull historical candles for every symbol in the active
// universe from the upstream provider, persist them, and refresh the hot
// cache. Grounded on original_source/.../services/ingestion.py's
// run_once loop.
package ingest

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"relstrength-scanner/internal/cache"
	"relstrength-scanner/internal/logger"
	"relstrength-scanner/internal/metrics"
	"relstrength-scanner/internal/model"
	"relstrength-scanner/internal/provider"
	"relstrength-scanner/internal/ratelimit"
	"relstrength-scanner/internal/retry"
)

// Ingestor runs one sweep per call to RunOnce: resolve the active symbol
// universe, compute the fetch window for a timeframe, and for every symbol
// rate-limit, retry, fetch, normalize, upsert, and refresh the cache.
type Ingestor struct {
	Provider    provider.Client
	Candles     model.CandleStore
	Cache       model.Cache
	Watchlist   model.WatchlistRepository
	RateLimiter *ratelimit.Limiter
	RetryPolicy retry.Policy
	Metrics     *metrics.Metrics
	Logger      *slog.Logger

	BenchmarkSymbol string        // the global default benchmark, always included in the universe
	MaxBars         int           // caller's preferred window length, clamped per-timeframe below
	CacheTTL        time.Duration
}

// RunOnce sweeps every active symbol for one timeframe. Per-symbol
// failures are logged and counted but do not abort the sweep: a bad
// upstream response for one stock must not starve the rest.
func (ing *Ingestor) RunOnce(ctx context.Context, timeframe string) error {
	start := time.Now()
	ctx = logger.WithTraceID(ctx, logger.GenerateTraceID(timeframe, start))

	symbols, err := ing.symbols(ctx)
	if err != nil {
		ing.observeOutcome(timeframe, "error", time.Since(start))
		return err
	}

	interval, ok := provider.Intervals[timeframe]
	if !ok {
		ing.observeOutcome(timeframe, "error", time.Since(start))
		ing.Logger.Warn("unknown timeframe", "timeframe", timeframe)
		return nil
	}

	now := time.Now().UTC()
	bars := ing.MaxBars
	maxBarsForWindow := interval.MaxDays * 24 * 60 / interval.Minutes
	if bars > maxBarsForWindow {
		bars = maxBarsForWindow
	}
	windowStart := now.Add(-time.Duration(bars*interval.Minutes) * time.Minute)

	ing.Logger.Info("ingestion start", append([]any{"timeframe", timeframe, "symbols", len(symbols),
		"start", windowStart, "end", now}, logger.LogWithTrace(ctx)...)...)

	for _, symbol := range symbols {
		symCtx := logger.WithTraceID(ctx, logger.GenerateTraceID(symbol+"-"+timeframe, start))
		if err := ing.ingestSymbol(symCtx, symbol, timeframe, windowStart, now); err != nil {
			ing.Metrics.IngestSymbolErrors.WithLabelValues(timeframe).Inc()
			ing.Logger.Error("ingestion failed", append([]any{"symbol", symbol, "timeframe", timeframe, "error", err},
				logger.LogWithTrace(symCtx)...)...)
		}
	}

	ing.Logger.Info("ingestion complete", append([]any{"timeframe", timeframe}, logger.LogWithTrace(ctx)...)...)
	ing.observeOutcome(timeframe, "ok", time.Since(start))
	return nil
}

func (ing *Ingestor) ingestSymbol(ctx context.Context, symbol, timeframe string, start, end time.Time) error {
	waitStart := time.Now()
	ing.RateLimiter.Acquire()
	ing.Metrics.RateLimiterWaitSecs.Observe(time.Since(waitStart).Seconds())

	raw, err := retry.Run(ctx, ing.RetryPolicy, func(ctx context.Context) ([]provider.RawCandle, error) {
		return ing.Provider.FetchCandles(ctx, symbol, timeframe, start, end)
	})
	if err != nil {
		return err
	}
	if len(raw) == 0 {
		ing.Logger.Warn("no candles returned", "symbol", symbol, "timeframe", timeframe)
		return nil
	}

	candles := make([]model.Candle, len(raw))
	for i, r := range raw {
		candles[i] = model.Candle{
			Symbol: symbol, Timeframe: timeframe, TS: r.TS,
			Open: r.Open, High: r.High, Low: r.Low, Close: r.Close, Volume: r.Volume,
		}
	}

	if err := ing.Candles.Upsert(ctx, candles); err != nil {
		return err
	}
	ing.Metrics.CandlesUpserted.WithLabelValues(timeframe).Add(float64(len(candles)))

	key := cache.CandlesKey(symbol, timeframe, len(candles))
	if err := ing.Cache.SetJSON(ctx, key, candles, ing.CacheTTL); err != nil {
		ing.Logger.Warn("cache refresh failed", "symbol", symbol, "timeframe", timeframe, "error", err)
	}

	ing.Logger.Info("ingestion success", append([]any{"symbol", symbol, "timeframe", timeframe, "candles", len(candles)},
		logger.LogWithTrace(ctx)...)...)
	return nil
}

// symbols unions active stocks, active index data symbols, and the
// configured default benchmark, then sorts. Stock-to-index mappings are
// not queried; mapped indices are included only through the active index
// data symbols.
func (ing *Ingestor) symbols(ctx context.Context) ([]string, error) {
	set := map[string]bool{}

	stocks, err := ing.Watchlist.ActiveSymbols(ctx)
	if err != nil {
		return nil, err
	}
	for _, s := range stocks {
		set[s] = true
	}

	indices, err := ing.Watchlist.IndexSymbols(ctx)
	if err != nil {
		return nil, err
	}
	for _, s := range indices {
		set[s] = true
	}

	if ing.BenchmarkSymbol != "" {
		set[ing.BenchmarkSymbol] = true
	}

	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out, nil
}

func (ing *Ingestor) observeOutcome(timeframe, outcome string, d time.Duration) {
	ing.Metrics.IngestTicksTotal.WithLabelValues(timeframe, outcome).Inc()
	ing.Metrics.IngestDur.WithLabelValues(timeframe).Observe(d.Seconds())
}
