package kernel

import (
	"math"

	"relstrength-scanner/internal/model"
)

// CrossesUp reports whether x's last two samples strictly cross above
// level: x[-2] <= level < x[-1]. It is false if either sample is NaN.
func CrossesUp(x []float64, level float64) bool {
	if len(x) < 2 {
		return false
	}
	prev, last := x[len(x)-2], x[len(x)-1]
	if math.IsNaN(prev) || math.IsNaN(last) {
		return false
	}
	return prev <= level && last > level
}

// CrossesDown reports whether x's last two samples strictly cross below
// level: x[-2] >= level > x[-1]. It is false if either sample is NaN.
func CrossesDown(x []float64, level float64) bool {
	if len(x) < 2 {
		return false
	}
	prev, last := x[len(x)-2], x[len(x)-1]
	if math.IsNaN(prev) || math.IsNaN(last) {
		return false
	}
	return prev >= level && last < level
}

// Classify applies the five ordered rules over the last RRS/RRV/RVE values
// and the full RRS history (needed for the zero-crossing and rising checks).
func Classify(rrsVal, rrvVal, rveVal float64, rrsSeries []float64) model.Signal {
	if math.IsNaN(rrsVal) || math.IsNaN(rrvVal) || math.IsNaN(rveVal) {
		return model.SignalNoData
	}

	switch {
	case CrossesUp(rrsSeries, 0) && rrvVal > 0 && rveVal > 0:
		return model.SignalTriggerLong
	case CrossesDown(rrsSeries, 0) && rrvVal < 0 && rveVal < 0:
		return model.SignalTriggerShort
	case rveVal > 0 && rrvVal > 0 && rrsVal < 0 && rrsRising(rrsSeries):
		return model.SignalWatch
	case CrossesDown(rrsSeries, 0) || rveVal < 0 || rrvVal < 0:
		return model.SignalExit
	default:
		return model.SignalNeutral
	}
}

func rrsRising(x []float64) bool {
	if len(x) < 2 {
		return false
	}
	prev, last := x[len(x)-2], x[len(x)-1]
	return !math.IsNaN(prev) && !math.IsNaN(last) && last > prev
}
