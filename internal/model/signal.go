package model

// Signal is the discrete classification a scanner row carries. The zero
// value "" is not one of the named signals; Order sorts it after NoData.
type Signal string

const (
	SignalNoData       Signal = "NO_DATA"
	SignalTriggerLong  Signal = "TRIGGER_LONG"
	SignalTriggerShort Signal = "TRIGGER_SHORT"
	SignalWatch        Signal = "WATCH"
	SignalNeutral      Signal = "NEUTRAL"
	SignalExit         Signal = "EXIT/AVOID"
)

// rank orders signals from most actionable to least for the scanner table;
// lower rank sorts first. Ties within a rank are broken by |rrs| desc,
// |rve| desc, then symbol ascending (see model.SortRows). Matches
// spec §3's total order TRIGGER_LONG < TRIGGER_SHORT < WATCH < NEUTRAL <
// EXIT/AVOID, and original_source/.../domain/indicators/rrs_rrv_rve.py's
// and services/compute.py's {0,1,2,3,4} encoding.
var rank = map[Signal]int{
	SignalTriggerLong:  0,
	SignalTriggerShort: 1,
	SignalWatch:        2,
	SignalNeutral:      3,
	SignalExit:         4,
	SignalNoData:       5,
}

// Order returns this signal's sort rank; unknown values sort last.
func (s Signal) Order() int {
	if o, ok := rank[s]; ok {
		return o
	}
	return len(rank)
}

// Regime is the benchmark's own trend/volatility-expansion classification.
type Regime string

const (
	RegimeBullish Regime = "BULLISH"
	RegimeBearish Regime = "BEARISH"
	RegimeNeutral Regime = "NEUTRAL"
	RegimeNoData  Regime = "NO_DATA"
)
