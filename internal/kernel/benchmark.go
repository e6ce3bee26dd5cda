package kernel

import (
	"math"
	"time"

	"relstrength-scanner/internal/model"
)

// BenchmarkState computes a benchmark index's own trend/volatility-expansion
// reading: trend = rolling_move(close, L); vol_expansion =
// rolling_move(RMA(TR,L), L); participation = rolling_move(volume, L).
// Regime is BULLISH when both trend and vol_expansion are positive, BEARISH
// when trend is negative and vol_expansion is positive, NEUTRAL otherwise.
func BenchmarkState(symbol, timeframe string, ts time.Time, s Series, length int) model.BenchmarkState {
	if s.Len() == 0 {
		return model.BenchmarkState{
			Symbol: symbol, Timeframe: timeframe, TS: ts, Regime: model.RegimeNoData,
		}
	}

	trendSeries := RollingMove(s.Close, length)
	atr := RMA(TrueRange(s.High, s.Low, s.Close), length)
	volExpSeries := RollingMove(atr, length)
	participationSeries := RollingMove(s.Volume, length)

	trend := trendSeries[len(trendSeries)-1]
	volExp := volExpSeries[len(volExpSeries)-1]
	participation := participationSeries[len(participationSeries)-1]

	if math.IsNaN(trend) || math.IsNaN(volExp) {
		return model.BenchmarkState{
			Symbol: symbol, Timeframe: timeframe, TS: ts, Regime: model.RegimeNoData,
		}
	}
	if math.IsNaN(participation) {
		participation = 0
	}

	regime := model.RegimeNeutral
	switch {
	case trend > 0 && volExp > 0:
		regime = model.RegimeBullish
	case trend < 0 && volExp > 0:
		regime = model.RegimeBearish
	}

	return model.BenchmarkState{
		Symbol:        symbol,
		Timeframe:     timeframe,
		TS:            ts,
		Trend:         trend,
		VolExp:        volExp,
		Participation: participation,
		Regime:        regime,
	}
}
