package provider

import (
	"context"
	"time"
)

// FakeClient is a deterministic in-memory Client for tests: it generates a
// bar every interval.Minutes between start and end, with a price path
// supplied per-symbol by Series so tests can script specific scenarios
// (a monotone ramp, a flat line, etc).
type FakeClient struct {
	// Series maps symbol to a function producing the close price at bar
	// index i (0-based). Open/high/low are derived as a small fixed spread
	// around the close so True Range is well-defined but not zero.
	Series map[string]func(i int) float64
	Volume func(symbol string, i int) float64
}

// NewFakeClient builds a FakeClient with no series and a flat volume of
// 1000 for every bar.
func NewFakeClient() *FakeClient {
	return &FakeClient{
		Series: map[string]func(i int) float64{},
		Volume: func(symbol string, i int) float64 { return 1000 },
	}
}

func (f *FakeClient) FetchCandles(ctx context.Context, symbol, timeframe string, start, end time.Time) ([]RawCandle, error) {
	interval, ok := Intervals[timeframe]
	if !ok {
		return nil, &unsupportedTimeframeError{timeframe}
	}
	path, ok := f.Series[symbol]
	if !ok {
		return nil, nil
	}

	step := time.Duration(interval.Minutes) * time.Minute
	var out []RawCandle
	i := 0
	for ts := start; ts.Before(end); ts = ts.Add(step) {
		closeV := path(i)
		out = append(out, RawCandle{
			TS:     ts.UTC(),
			Open:   closeV * 0.999,
			High:   closeV * 1.002,
			Low:    closeV * 0.998,
			Close:  closeV,
			Volume: f.Volume(symbol, i),
		})
		i++
	}
	return out, nil
}

type unsupportedTimeframeError struct{ timeframe string }

func (e *unsupportedTimeframeError) Error() string {
	return "provider: unsupported timeframe " + e.timeframe
}
