package model

import (
	"encoding/json"
	"sort"
	"time"
)

// ScannerRow is one symbol's relative-strength reading for one timeframe,
// as computed at a single tick. It is the unit persisted by the Snapshot
// Store and published by the Broadcaster.
type ScannerRow struct {
	Symbol          string    `json:"symbol"`
	Timeframe       string    `json:"timeframe"`
	TS              time.Time `json:"ts"`
	BenchmarkSymbol string    `json:"benchmark_symbol"`
	RRS             float64   `json:"rrs"`
	RRV             float64   `json:"rrv"`
	RVE             float64   `json:"rve"`
	Signal          Signal    `json:"signal"`
}

// BenchmarkState is a benchmark index's own trend/volatility-expansion
// reading at a single tick, computed independently of any stock.
type BenchmarkState struct {
	Symbol        string    `json:"symbol"`
	Timeframe     string    `json:"timeframe"`
	TS            time.Time `json:"ts"`
	Trend         float64   `json:"trend"`
	VolExp        float64   `json:"vol_expansion"`
	Participation float64   `json:"participation"`
	Regime        Regime    `json:"regime"`
}

// ScannerSnapshot is the full payload for one timeframe at one tick:
// every row ranked, plus the benchmark states that produced them.
type ScannerSnapshot struct {
	Timeframe  string           `json:"timeframe"`
	TS         time.Time        `json:"ts"`
	Rows       []ScannerRow     `json:"rows"`
	Benchmarks []BenchmarkState `json:"benchmarks"`
}

// JSON returns the JSON encoding, swallowing marshal errors for hot-path use.
func (s ScannerSnapshot) JSON() []byte {
	b, _ := json.Marshal(s)
	return b
}

// SortRows orders rows by (signal rank asc, |rrs| desc, |rve| desc, symbol
// asc) in place, matching the ranking invariant: actionable signals first,
// stronger moves first within a signal, ties broken lexicographically.
func SortRows(rows []ScannerRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.Signal.Order() != b.Signal.Order() {
			return a.Signal.Order() < b.Signal.Order()
		}
		if absf(a.RRS) != absf(b.RRS) {
			return absf(a.RRS) > absf(b.RRS)
		}
		if absf(a.RVE) != absf(b.RVE) {
			return absf(a.RVE) > absf(b.RVE)
		}
		return a.Symbol < b.Symbol
	})
}

func absf(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
