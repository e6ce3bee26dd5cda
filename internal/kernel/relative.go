package kernel

import "math"

// Params bundles the tunable knobs of the relative-strength formulas. Zero
// values are not valid; use DefaultParams() and override as needed.
type Params struct {
	Length       int // rolling-move / variance-proxy length
	ATRPeriod    int // RVE's own ATR smoothing period
	VolumeSmooth int // RRV's pre-smoothing SMA window
	UseLogVolume bool
	SmoothATR    int // RVE's ATR post-smoothing SMA window (1 = off)
	PowerMax     float64
	FloorWindow  int
	FloorQuantile float64
}

// DefaultParams returns the scanner's standard configuration:
// L=12, atr_period=14, volume smooth=3 with log compression, no extra ATR
// smoothing.
func DefaultParams() Params {
	return Params{
		Length:        12,
		ATRPeriod:     14,
		VolumeSmooth:  3,
		UseLogVolume:  true,
		SmoothATR:     1,
		PowerMax:      DefaultPowerMax,
		FloorWindow:   DefaultFloorWindow,
		FloorQuantile: DefaultFloorQuantile,
	}
}

// RRS is the relative-return-strength indicator: how much of the symbol's
// own momentum is explained by the benchmark's momentum scaled into the
// symbol's own volatility units, with the residual normalized by that
// volatility.
func RRS(sym, ben Series, p Params) []float64 {
	symMove := RollingMove(sym.Close, p.Length)
	benMove := RollingMove(ben.Close, p.Length)
	symScale := RMA(TrueRange(sym.High, sym.Low, sym.Close), p.Length)
	benScale := RMA(TrueRange(ben.High, ben.Low, ben.Close), p.Length)
	return relative(symMove, benMove, symScale, benScale, p)
}

// RRV is the relative-volume indicator: same shape as RRS but operating on
// (optionally log-compressed, SMA-smoothed) volume, with scale estimated by
// the variance proxy of that smoothed series instead of true range.
func RRV(symVol, benVol []float64, p Params) []float64 {
	vSym := sma(symVol, p.VolumeSmooth)
	vBen := sma(benVol, p.VolumeSmooth)
	if p.UseLogVolume {
		for i := range vSym {
			vSym[i] = math.Log(maxF(vSym[i], 1.0))
		}
		for i := range vBen {
			vBen[i] = math.Log(maxF(vBen[i], 1.0))
		}
	}
	symMove := RollingMove(vSym, p.Length)
	benMove := RollingMove(vBen, p.Length)
	symVar := VarianceProxy(vSym, p.Length, VarianceAbs, 0, 1)
	benVar := VarianceProxy(vBen, p.Length, VarianceAbs, 0, 1)
	return relative(symMove, benMove, symVar, benVar, p)
}

// RVE is the relative-volatility-expansion indicator: operates on each
// side's own RMA(true range) ("ATR") series instead of price or volume, so
// it measures whether the symbol's volatility is expanding faster or
// slower than the benchmark's.
func RVE(sym, ben Series, p Params) []float64 {
	symATR := RMA(TrueRange(sym.High, sym.Low, sym.Close), p.ATRPeriod)
	benATR := RMA(TrueRange(ben.High, ben.Low, ben.Close), p.ATRPeriod)
	if p.SmoothATR > 1 {
		symATR = sma(symATR, p.SmoothATR)
		benATR = sma(benATR, p.SmoothATR)
	}
	symMove := RollingMove(symATR, p.Length)
	benMove := RollingMove(benATR, p.Length)
	symVar := VarianceProxy(symATR, p.Length, VarianceAbs, 0, 1)
	benVar := VarianceProxy(benATR, p.Length, VarianceAbs, 0, 1)
	return relative(symMove, benMove, symVar, benVar, p)
}

// relative runs the shared power/expected/residual pipeline shared by RRS,
// RRV and RVE once the move and scale series have been derived.
func relative(symMove, benMove, symScale, benScale []float64, p Params) []float64 {
	n := len(symMove)
	floorB := RollingFloor(benScale, p.FloorWindow, p.FloorQuantile)
	floorS := RollingFloor(symScale, p.FloorWindow, p.FloorQuantile)
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		if math.IsNaN(symMove[i]) || math.IsNaN(benMove[i]) {
			out[i] = nan()
			continue
		}
		power := ClipPower(SafeDivide(benMove[i], benScale[i], floorB[i]), p.PowerMax)
		expected := power * symScale[i]
		raw := symMove[i] - expected
		out[i] = SafeDivide(raw, symScale[i], floorS[i])
	}
	return out
}

// sma is a centered simple moving average: output length equals input
// length, and each window spans (n-1)/2 samples back and n/2 forward,
// clipped at the boundaries and averaged over the samples it covers (no
// zero padding, unlike np.convolve mode="same").
func sma(x []float64, n int) []float64 {
	if n <= 1 {
		out := make([]float64, len(x))
		copy(out, x)
		return out
	}
	lowOff := (n - 1) / 2
	highOff := n / 2
	out := make([]float64, len(x))
	for i := range x {
		lo := i - lowOff
		if lo < 0 {
			lo = 0
		}
		hi := i + highOff
		if hi >= len(x) {
			hi = len(x) - 1
		}
		var sum float64
		for k := lo; k <= hi; k++ {
			sum += x[k]
		}
		out[i] = sum / float64(hi-lo+1)
	}
	return out
}
