// Package compute implements the Compute Engine (component H): for each
// timeframe tick it derives every active benchmark's regime, then every
// active stock's RRS/RRV/RVE against its mapped benchmark, ranks the
// result, and persists/publishes it. Grounded on
// original_source/.../services/compute.py (compute_timeframe) and
// services/benchmarks.py (compute_benchmark_state).
package compute

import (
	"context"
	"log/slog"
	"sort"
	"time"

	scannercache "relstrength-scanner/internal/cache"
	"relstrength-scanner/internal/kernel"
	"relstrength-scanner/internal/logger"
	"relstrength-scanner/internal/metrics"
	"relstrength-scanner/internal/model"
)

// Publisher fans a freshly computed snapshot out to subscribers. Defined
// here (not imported from internal/broadcaster) so compute has no
// dependency on the transport that happens to carry its output.
type Publisher interface {
	Publish(timeframe string, snap model.ScannerSnapshot)
	PublishBenchmarks(timeframe string, states []model.BenchmarkState)
}

// noopPublisher discards everything; used when no broadcaster is wired.
type noopPublisher struct{}

func (noopPublisher) Publish(string, model.ScannerSnapshot)        {}
func (noopPublisher) PublishBenchmarks(string, []model.BenchmarkState) {}

// Engine computes and publishes one timeframe's scanner snapshot per call
// to ComputeTimeframe.
type Engine struct {
	Candles    model.CandleStore
	Cache      model.Cache
	Snapshots  model.SnapshotStore
	Benchmarks model.BenchmarkStateStore
	Watchlist  model.WatchlistRepository
	Publisher  Publisher
	Metrics    *metrics.Metrics
	Logger     *slog.Logger

	Params          kernel.Params
	ComputeBars     int
	DefaultBenchmark string
	CacheTTL        time.Duration
}

// ComputeTimeframe runs one full tick: benchmarks first (their regimes are
// needed even for stocks that fail their own alignment check), then every
// active stock against its mapped benchmark.
func (e *Engine) ComputeTimeframe(ctx context.Context, timeframe string) error {
	start := time.Now()
	if e.Publisher == nil {
		e.Publisher = noopPublisher{}
	}
	now := time.Now().UTC()
	ctx = logger.WithTraceID(ctx, logger.GenerateTraceID(timeframe, now))

	benchmarkSymbols, err := e.benchmarkUniverse(ctx)
	if err != nil {
		e.observeOutcome(timeframe, "error", time.Since(start))
		return err
	}

	benchmarkSeries := map[string]kernel.Series{}
	var benchStates []model.BenchmarkState
	for _, sym := range benchmarkSymbols {
		series, ok, err := e.loadSeries(ctx, sym, timeframe)
		if err != nil {
			e.Logger.Warn("load benchmark candles failed", "benchmark", sym, "timeframe", timeframe, "error", err)
			continue
		}
		if !ok {
			e.Logger.Warn("missing benchmark candles", "benchmark", sym, "timeframe", timeframe)
			benchStates = append(benchStates, model.BenchmarkState{
				Symbol: sym, Timeframe: timeframe, TS: now, Regime: model.RegimeNoData,
			})
			continue
		}
		benchmarkSeries[sym] = series
		benchStates = append(benchStates, kernel.BenchmarkState(sym, timeframe, now, series, e.Params.Length))
	}

	symbols, err := e.Watchlist.ActiveSymbols(ctx)
	if err != nil {
		e.observeOutcome(timeframe, "error", time.Since(start))
		return err
	}

	var rows []model.ScannerRow
	for _, symbol := range symbols {
		row, ok, err := e.computeSymbol(ctx, symbol, timeframe, benchmarkSeries)
		if err != nil {
			e.Logger.Warn("compute symbol failed", "symbol", symbol, "timeframe", timeframe, "error", err)
			continue
		}
		if ok {
			rows = append(rows, row)
		}
	}
	model.SortRows(rows)

	snap := model.ScannerSnapshot{Timeframe: timeframe, TS: now, Rows: rows, Benchmarks: benchStates}

	if err := e.Cache.SetJSON(ctx, scannercache.SnapshotKey(timeframe), snap, e.CacheTTL); err != nil {
		e.Logger.Warn("snapshot cache refresh failed", "timeframe", timeframe, "error", err)
	}
	snapStart := time.Now()
	if err := e.Snapshots.Save(ctx, snap); err != nil {
		e.observeOutcome(timeframe, "error", time.Since(start))
		return err
	}
	e.Metrics.SnapshotSaveDur.Observe(time.Since(snapStart).Seconds())
	e.Metrics.SnapshotRows.WithLabelValues(timeframe).Set(float64(len(rows)))

	if err := e.Cache.SetJSON(ctx, scannercache.BenchmarksKey(timeframe), benchStates, e.CacheTTL); err != nil {
		e.Logger.Warn("benchmark cache refresh failed", "timeframe", timeframe, "error", err)
	}
	if err := e.Benchmarks.Save(ctx, benchStates); err != nil {
		e.Logger.Warn("benchmark state save failed", "timeframe", timeframe, "error", err)
	}

	e.Publisher.Publish(timeframe, snap)
	e.Publisher.PublishBenchmarks(timeframe, benchStates)

	e.Logger.Info("compute complete", append([]any{"timeframe", timeframe, "rows", len(rows)},
		logger.LogWithTrace(ctx)...)...)
	e.observeOutcome(timeframe, "ok", time.Since(start))
	return nil
}

// computeSymbol aligns a stock against its mapped benchmark and runs the
// RRS/RRV/RVE/classify pipeline. ok is false (with nil error) when the
// symbol has no candles or too few aligned bars — a normal, logged skip,
// not a failure of the tick.
func (e *Engine) computeSymbol(ctx context.Context, symbol, timeframe string, loaded map[string]kernel.Series) (model.ScannerRow, bool, error) {
	symSeries, ok, err := e.loadSeries(ctx, symbol, timeframe)
	if err != nil {
		return model.ScannerRow{}, false, err
	}
	if !ok {
		e.Logger.Warn("missing symbol candles", "symbol", symbol, "timeframe", timeframe)
		return model.ScannerRow{}, false, nil
	}

	benchSymbol, err := e.Watchlist.BenchmarkFor(ctx, symbol)
	if err != nil {
		return model.ScannerRow{}, false, err
	}
	if benchSymbol == "" {
		benchSymbol = e.DefaultBenchmark
	}

	benchSeries, ok := loaded[benchSymbol]
	if !ok {
		benchSeries, ok, err = e.loadSeries(ctx, benchSymbol, timeframe)
		if err != nil {
			return model.ScannerRow{}, false, err
		}
		if !ok {
			e.Logger.Warn("missing benchmark for symbol", "symbol", symbol, "benchmark", benchSymbol, "timeframe", timeframe)
			return model.ScannerRow{}, false, nil
		}
		loaded[benchSymbol] = benchSeries
	}

	symAligned, benAligned, commonTS := kernel.Align(symSeries, benchSeries)
	if len(commonTS) < kernel.MinAlignedBars {
		e.Logger.Warn("insufficient aligned candles", "symbol", symbol, "aligned", len(commonTS))
		return model.ScannerRow{}, false, nil
	}

	rrsSeries := kernel.RRS(symAligned, benAligned, e.Params)
	rrvSeries := kernel.RRV(symAligned.Volume, benAligned.Volume, e.Params)
	rveSeries := kernel.RVE(symAligned, benAligned, e.Params)

	rrsVal := rrsSeries[len(rrsSeries)-1]
	rrvVal := rrvSeries[len(rrvSeries)-1]
	rveVal := rveSeries[len(rveSeries)-1]
	signal := kernel.Classify(rrsVal, rrvVal, rveVal, rrsSeries)

	return model.ScannerRow{
		Symbol:          symbol,
		Timeframe:       timeframe,
		TS:              time.Unix(commonTS[len(commonTS)-1], 0).UTC(),
		BenchmarkSymbol: benchSymbol,
		RRS:             rrsVal,
		RRV:             rrvVal,
		RVE:             rveVal,
		Signal:          signal,
	}, true, nil
}

// benchmarkUniverse unions the configured default benchmark with every
// active watch index, matching compute.py's base_benchmarks | watch_indices.
func (e *Engine) benchmarkUniverse(ctx context.Context) ([]string, error) {
	set := map[string]bool{}
	if e.DefaultBenchmark != "" {
		set[e.DefaultBenchmark] = true
	}
	indices, err := e.Watchlist.IndexSymbols(ctx)
	if err != nil {
		return nil, err
	}
	for _, s := range indices {
		set[s] = true
	}
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out, nil
}

// loadSeries prefers the hot cache's candle window, falling back to the
// candle store on a miss, matching compute.py's _load_candles.
func (e *Engine) loadSeries(ctx context.Context, symbol, timeframe string) (kernel.Series, bool, error) {
	var cached []model.Candle
	hit, err := e.Cache.GetJSON(ctx, scannercache.CandlesKey(symbol, timeframe, e.ComputeBars), &cached)
	if err == nil && hit && len(cached) > 0 {
		e.Metrics.CacheHits.WithLabelValues("hit").Inc()
		return candlesToSeries(cached), true, nil
	}
	e.Metrics.CacheHits.WithLabelValues("miss").Inc()

	candles, err := e.Candles.LatestWindow(ctx, symbol, timeframe, e.ComputeBars)
	if err != nil {
		return kernel.Series{}, false, err
	}
	if len(candles) == 0 {
		return kernel.Series{}, false, nil
	}
	return candlesToSeries(candles), true, nil
}

func candlesToSeries(candles []model.Candle) kernel.Series {
	s := kernel.Series{
		TS:     make([]int64, len(candles)),
		Open:   make([]float64, len(candles)),
		High:   make([]float64, len(candles)),
		Low:    make([]float64, len(candles)),
		Close:  make([]float64, len(candles)),
		Volume: make([]float64, len(candles)),
	}
	for i, c := range candles {
		s.TS[i] = c.TS.Unix()
		s.Open[i] = c.Open
		s.High[i] = c.High
		s.Low[i] = c.Low
		s.Close[i] = c.Close
		s.Volume[i] = c.Volume
	}
	return s
}

func (e *Engine) observeOutcome(timeframe, outcome string, d time.Duration) {
	e.Metrics.ComputeTicksTotal.WithLabelValues(timeframe, outcome).Inc()
	e.Metrics.ComputeDur.WithLabelValues(timeframe).Observe(d.Seconds())
}
