package kernel

// RMA is Wilder's running moving average: y[0]=x[0]; y[i] = y[i-1] +
// (x[i]-y[i-1])/length. Used for ATR and as the smoothing step of the
// variance proxy.
func RMA(x []float64, length int) []float64 {
	out := make([]float64, len(x))
	if len(x) == 0 {
		return out
	}
	alpha := 1.0 / float64(length)
	out[0] = x[0]
	for i := 1; i < len(x); i++ {
		out[i] = out[i-1] + alpha*(x[i]-out[i-1])
	}
	return out
}

// TrueRange computes Wilder's true range: max(H-L, |H-Cprev|, |L-Cprev|),
// with Cprev[0] defined as C[0] so the first bar's range is just H-L.
func TrueRange(high, low, close []float64) []float64 {
	n := len(high)
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		prevClose := close[0]
		if i > 0 {
			prevClose = close[i-1]
		}
		hl := high[i] - low[i]
		hc := absF(high[i] - prevClose)
		lc := absF(low[i] - prevClose)
		out[i] = maxF(hl, maxF(hc, lc))
	}
	return out
}

// RollingMove is the length-bar momentum: M[i] = x[i] - x[i-length] for
// i >= length, NaN before that.
func RollingMove(x []float64, length int) []float64 {
	out := make([]float64, len(x))
	for i := range out {
		if i < length {
			out[i] = nan()
			continue
		}
		out[i] = x[i] - x[i-length]
	}
	return out
}

func absF(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

func maxF(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
