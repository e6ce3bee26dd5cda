package model

import (
	"context"
	"time"
)

// ── Storage Port Interfaces ──
// These decouple the ingest/compute/scheduler business logic from the
// concrete SQLite/Redis implementations underneath.

// CandleStore persists and serves OHLCV bars.
type CandleStore interface {
	// Upsert writes candles idempotently; re-ingesting an overlapping
	// window must not duplicate or corrupt existing rows.
	Upsert(ctx context.Context, candles []Candle) error

	// LatestWindow returns the most recent n candles for symbol+timeframe,
	// ordered ascending by TS.
	LatestWindow(ctx context.Context, symbol, timeframe string, n int) ([]Candle, error)

	// LatestBatch is LatestWindow for many symbols at once, keyed by symbol.
	LatestBatch(ctx context.Context, symbols []string, timeframe string, n int) (map[string][]Candle, error)

	Close() error
}

// SnapshotStore persists and serves ranked scanner snapshots.
type SnapshotStore interface {
	// Save persists a full snapshot for one timeframe tick.
	Save(ctx context.Context, snap ScannerSnapshot) error

	// Latest returns the most recently saved snapshot for a timeframe,
	// read atomically (the max(ts) and its rows come from one transaction).
	Latest(ctx context.Context, timeframe string) (ScannerSnapshot, error)

	Close() error
}

// BenchmarkStateStore persists and serves benchmark regime readings.
type BenchmarkStateStore interface {
	Save(ctx context.Context, states []BenchmarkState) error
	Latest(ctx context.Context, timeframe string) ([]BenchmarkState, error)
	Close() error
}

// WatchlistRepository is the read-only view over the scanner universe.
type WatchlistRepository interface {
	// ActiveSymbols returns every active stock symbol.
	ActiveSymbols(ctx context.Context) ([]string, error)

	// IndexSymbols returns every active benchmark index's data symbol.
	IndexSymbols(ctx context.Context) ([]string, error)

	// DefaultBenchmark returns the data symbol of the default index.
	DefaultBenchmark(ctx context.Context) (string, error)

	// BenchmarkFor returns the data symbol of the benchmark mapped to a
	// stock, falling back to the default index when no mapping exists.
	BenchmarkFor(ctx context.Context, stockSymbol string) (string, error)

	// AssociatedIndices returns every index symbol mapped to a stock, with
	// the default index always first, de-duplicated, remainder sorted.
	AssociatedIndices(ctx context.Context, stockSymbol string) ([]string, error)
}

// Cache is the Hot Cache port (component D): a TTL key-value store holding
// candle windows written by ingest and the snapshot and benchmark payloads
// written by compute. Ingest always fetches from the provider.
type Cache interface {
	GetJSON(ctx context.Context, key string, out any) (bool, error)
	SetJSON(ctx context.Context, key string, val any, ttl time.Duration) error
	GetBytes(ctx context.Context, key string) ([]byte, bool, error)
	SetBytes(ctx context.Context, key string, val []byte, ttl time.Duration) error
}
