// Package provider is the upstream market-data boundary (component O):
// fetching historical OHLCV bars for a symbol/timeframe/window and
// returning them as RawCandle values. Grounded on
// original_source/.../infra/groww/client.py's RealGrowwClient and the
// teacher's pkg/smartconnect/client.go HTTP/session conventions.
package provider

import (
	"context"
	"time"
)

// RawCandle is a single OHLCV bar as returned by the upstream API, before
// it is attached to a symbol/timeframe and handed to the store.
type RawCandle struct {
	TS     time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Client fetches historical candles for a symbol over [start, end), chunked
// internally per-timeframe tier limits.
type Client interface {
	FetchCandles(ctx context.Context, symbol, timeframe string, start, end time.Time) ([]RawCandle, error)
}

// Interval describes one timeframe's upstream polling characteristics: how
// many minutes each bar spans, and the longest window the upstream API
// accepts in a single request.
type Interval struct {
	Minutes int
	MaxDays int
}

// Intervals mirrors TIMEFRAME_INTERVALS from the Python client: each
// supported timeframe's bar width and max per-request window.
var Intervals = map[string]Interval{
	"5m":  {Minutes: 5, MaxDays: 30},
	"15m": {Minutes: 15, MaxDays: 90},
	"1h":  {Minutes: 60, MaxDays: 180},
	"1d":  {Minutes: 1440, MaxDays: 180},
}

// chunkWindows splits [start, end) into consecutive windows no longer than
// maxDays, matching the Python client's cursor-advancing loop.
func chunkWindows(start, end time.Time, maxDays int) [][2]time.Time {
	if !start.Before(end) {
		return nil
	}
	step := time.Duration(maxDays) * 24 * time.Hour
	var windows [][2]time.Time
	cursor := start
	for cursor.Before(end) {
		chunkEnd := cursor.Add(step)
		if chunkEnd.After(end) {
			chunkEnd = end
		}
		windows = append(windows, [2]time.Time{cursor, chunkEnd})
		cursor = chunkEnd
	}
	return windows
}
