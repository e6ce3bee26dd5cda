package cache

import "strconv"

// Key builders for the cache namespaces used across the ingest/compute
// pipeline. Centralized here so every caller agrees on the same layout.

// CandlesKey addresses a symbol's latest-n candle window for a timeframe.
func CandlesKey(symbol, timeframe string, n int) string {
	return "candles:" + symbol + ":" + timeframe + ":" + strconv.Itoa(n)
}

// SnapshotKey addresses the latest ranked scanner snapshot for a timeframe.
func SnapshotKey(timeframe string) string {
	return "scanner:" + timeframe
}

// BenchmarksKey addresses the latest benchmark regime readings for a
// timeframe.
func BenchmarksKey(timeframe string) string {
	return "benchmarks:" + timeframe
}

// RelativeKey addresses an intermediate RRS/RRV/RVE computation for one
// symbol. No caller reads or writes this key; compute recomputes every tick.
func RelativeKey(symbol, timeframe string, n int) string {
	return "relative:" + symbol + ":" + timeframe + ":" + strconv.Itoa(n)
}
