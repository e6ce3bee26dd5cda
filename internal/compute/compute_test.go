package compute

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"relstrength-scanner/internal/kernel"
	"relstrength-scanner/internal/metrics"
	"relstrength-scanner/internal/model"
)

var (
	testMetricsOnce sync.Once
	testMetrics     *metrics.Metrics
)

func sharedTestMetrics() *metrics.Metrics {
	testMetricsOnce.Do(func() { testMetrics = metrics.NewMetrics() })
	return testMetrics
}

type stubCandleStore struct {
	bySymbol map[string][]model.Candle
}

func (s *stubCandleStore) Upsert(ctx context.Context, candles []model.Candle) error {
	for _, c := range candles {
		s.bySymbol[c.Symbol] = append(s.bySymbol[c.Symbol], c)
	}
	return nil
}
func (s *stubCandleStore) LatestWindow(ctx context.Context, symbol, timeframe string, n int) ([]model.Candle, error) {
	cs := s.bySymbol[symbol]
	if len(cs) > n {
		cs = cs[len(cs)-n:]
	}
	return cs, nil
}
func (s *stubCandleStore) LatestBatch(ctx context.Context, symbols []string, timeframe string, n int) (map[string][]model.Candle, error) {
	return nil, nil
}
func (s *stubCandleStore) Close() error { return nil }

type noopCache struct{}

func (noopCache) GetJSON(ctx context.Context, key string, out any) (bool, error) { return false, nil }
func (noopCache) SetJSON(ctx context.Context, key string, val any, ttl time.Duration) error {
	return nil
}
func (noopCache) GetBytes(ctx context.Context, key string) ([]byte, bool, error) { return nil, false, nil }
func (noopCache) SetBytes(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	return nil
}

type capturingSnapshotStore struct {
	saved model.ScannerSnapshot
}

func (s *capturingSnapshotStore) Save(ctx context.Context, snap model.ScannerSnapshot) error {
	s.saved = snap
	return nil
}
func (s *capturingSnapshotStore) Latest(ctx context.Context, timeframe string) (model.ScannerSnapshot, error) {
	return s.saved, nil
}
func (s *capturingSnapshotStore) Close() error { return nil }

type capturingBenchmarkStore struct {
	saved []model.BenchmarkState
}

func (s *capturingBenchmarkStore) Save(ctx context.Context, states []model.BenchmarkState) error {
	s.saved = states
	return nil
}
func (s *capturingBenchmarkStore) Latest(ctx context.Context, timeframe string) ([]model.BenchmarkState, error) {
	return s.saved, nil
}
func (s *capturingBenchmarkStore) Close() error { return nil }

type stubWatchlist struct {
	active  []string
	indices []string
	mapping map[string]string
	def     string
}

func (w *stubWatchlist) ActiveSymbols(ctx context.Context) ([]string, error) { return w.active, nil }
func (w *stubWatchlist) IndexSymbols(ctx context.Context) ([]string, error)  { return w.indices, nil }
func (w *stubWatchlist) DefaultBenchmark(ctx context.Context) (string, error) {
	return w.def, nil
}
func (w *stubWatchlist) BenchmarkFor(ctx context.Context, stockSymbol string) (string, error) {
	if b, ok := w.mapping[stockSymbol]; ok {
		return b, nil
	}
	return w.def, nil
}
func (w *stubWatchlist) AssociatedIndices(ctx context.Context, stockSymbol string) ([]string, error) {
	return []string{w.def}, nil
}

type capturingPublisher struct {
	published  bool
	benchCount int
}

func (p *capturingPublisher) Publish(timeframe string, snap model.ScannerSnapshot) { p.published = true }
func (p *capturingPublisher) PublishBenchmarks(timeframe string, states []model.BenchmarkState) {
	p.benchCount = len(states)
}

// rampCandles builds n ascending-TS bars 5 minutes apart whose close price
// follows closeAt(i), with a small fixed spread for high/low/open.
func rampCandles(symbol, timeframe string, n int, closeAt func(i int) float64) []model.Candle {
	base := time.Date(2026, 6, 1, 9, 15, 0, 0, time.UTC)
	out := make([]model.Candle, n)
	for i := 0; i < n; i++ {
		c := closeAt(i)
		out[i] = model.Candle{
			Symbol: symbol, Timeframe: timeframe,
			TS: base.Add(time.Duration(i) * 5 * time.Minute),
			Open: c * 0.999, High: c * 1.002, Low: c * 0.998, Close: c,
			Volume: 1000 + float64(i),
		}
	}
	return out
}

func TestComputeTimeframeEndToEnd(t *testing.T) {
	candleStore := &stubCandleStore{bySymbol: map[string][]model.Candle{}}
	// BENCH drifts up slowly; A outpaces it sharply (should read positive
	// RRS); B tracks BENCH almost exactly (should stay near neutral).
	bench := rampCandles("BENCH", "5m", 60, func(i int) float64 { return 100 + float64(i)*0.05 })
	a := rampCandles("A", "5m", 60, func(i int) float64 { return 100 + float64(i)*1.0 })
	b := rampCandles("B", "5m", 60, func(i int) float64 { return 100 + float64(i)*0.05 })
	candleStore.bySymbol["BENCH"] = bench
	candleStore.bySymbol["A"] = a
	candleStore.bySymbol["B"] = b

	wl := &stubWatchlist{active: []string{"A", "B"}, indices: nil, def: "BENCH", mapping: map[string]string{}}
	pub := &capturingPublisher{}
	snaps := &capturingSnapshotStore{}
	benches := &capturingBenchmarkStore{}

	eng := &Engine{
		Candles:          candleStore,
		Cache:            noopCache{},
		Snapshots:        snaps,
		Benchmarks:       benches,
		Watchlist:        wl,
		Publisher:        pub,
		Metrics:          sharedTestMetrics(),
		Logger:           slog.New(slog.NewTextHandler(io.Discard, nil)),
		Params:           kernel.DefaultParams(),
		ComputeBars:      60,
		DefaultBenchmark: "BENCH",
		CacheTTL:         time.Minute,
	}

	if err := eng.ComputeTimeframe(context.Background(), "5m"); err != nil {
		t.Fatalf("ComputeTimeframe: %v", err)
	}

	if len(snaps.saved.Rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(snaps.saved.Rows))
	}
	if !pub.published {
		t.Fatalf("expected snapshot to be published")
	}
	if pub.benchCount != 1 {
		t.Fatalf("expected 1 benchmark state published, got %d", pub.benchCount)
	}

	var rowA model.ScannerRow
	found := false
	for _, r := range snaps.saved.Rows {
		if r.Symbol == "A" {
			rowA = r
			found = true
		}
	}
	if !found {
		t.Fatalf("expected row for A")
	}
	if rowA.RRS <= 0 {
		t.Fatalf("A outpaces BENCH, expected positive RRS, got %v", rowA.RRS)
	}
	if rowA.Signal == model.SignalNoData {
		t.Fatalf("expected a real signal for A, got NO_DATA")
	}
}

func TestComputeTimeframeSkipsSymbolMissingCandles(t *testing.T) {
	candleStore := &stubCandleStore{bySymbol: map[string][]model.Candle{}}
	bench := rampCandles("BENCH", "5m", 60, func(i int) float64 { return 100 + float64(i)*0.05 })
	candleStore.bySymbol["BENCH"] = bench
	// "GHOST" is active but has no candles at all.

	wl := &stubWatchlist{active: []string{"GHOST"}, def: "BENCH", mapping: map[string]string{}}
	snaps := &capturingSnapshotStore{}
	benches := &capturingBenchmarkStore{}

	eng := &Engine{
		Candles:          candleStore,
		Cache:            noopCache{},
		Snapshots:        snaps,
		Benchmarks:       benches,
		Watchlist:        wl,
		Publisher:        &capturingPublisher{},
		Metrics:          sharedTestMetrics(),
		Logger:           slog.New(slog.NewTextHandler(io.Discard, nil)),
		Params:           kernel.DefaultParams(),
		ComputeBars:      60,
		DefaultBenchmark: "BENCH",
		CacheTTL:         time.Minute,
	}

	if err := eng.ComputeTimeframe(context.Background(), "5m"); err != nil {
		t.Fatalf("ComputeTimeframe: %v", err)
	}
	if len(snaps.saved.Rows) != 0 {
		t.Fatalf("expected no rows for a symbol with no candles, got %d", len(snaps.saved.Rows))
	}
}
