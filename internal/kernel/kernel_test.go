package kernel

import (
	"math"
	"testing"
	"time"

	"relstrength-scanner/internal/model"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestWildersRMA(t *testing.T) {
	got := RMA([]float64{1, 2, 3}, 2)
	want := []float64{1.0, 1.5, 2.25}
	for i := range want {
		if !almostEqual(got[i], want[i]) {
			t.Fatalf("RMA[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestWildersRMAIdempotentOnConstant(t *testing.T) {
	x := make([]float64, 10)
	for i := range x {
		x[i] = 7
	}
	got := RMA(x, 4)
	for i, v := range got {
		if !almostEqual(v, 7) {
			t.Fatalf("RMA[%d] = %v, want constant 7", i, v)
		}
	}
}

func TestTrueRange(t *testing.T) {
	high := []float64{10, 12, 11}
	low := []float64{8, 9, 9.5}
	close := []float64{9, 10, 10.5}
	got := TrueRange(high, low, close)
	want := []float64{2.0, 3.0, 1.5}
	for i := range want {
		if !almostEqual(got[i], want[i]) {
			t.Fatalf("TR[%d] = %v, want %v", i, got[i], want[i])
		}
	}
	if !almostEqual(got[0], high[0]-low[0]) {
		t.Fatalf("TR[0] must equal H[0]-L[0] under the prev_close:=close[0] convention")
	}
}

func TestRollingMoveLengthAndLeadingUnknown(t *testing.T) {
	x := []float64{1, 2, 3, 4, 5, 6}
	L := 3
	got := RollingMove(x, L)
	if len(got) != len(x) {
		t.Fatalf("length = %d, want %d", len(got), len(x))
	}
	for i := 0; i < L; i++ {
		if !math.IsNaN(got[i]) {
			t.Fatalf("RollingMove[%d] = %v, want NaN (unknown)", i, got[i])
		}
	}
	if !almostEqual(got[L], x[L]-x[0]) {
		t.Fatalf("RollingMove[%d] = %v, want %v", L, got[L], x[L]-x[0])
	}
}

func TestAlignIntersection(t *testing.T) {
	a := Series{TS: []int64{1, 2, 3, 4}, Close: []float64{10, 20, 30, 40}}
	b := Series{TS: []int64{3, 4, 5}, Close: []float64{300, 400, 500}}
	ga, gb, common := Align(a, b)
	wantCommon := []int64{3, 4}
	if len(common) != len(wantCommon) {
		t.Fatalf("common = %v, want %v", common, wantCommon)
	}
	for i := range wantCommon {
		if common[i] != wantCommon[i] {
			t.Fatalf("common[%d] = %d, want %d", i, common[i], wantCommon[i])
		}
	}
	if len(ga.Close) != 2 || len(gb.Close) != 2 {
		t.Fatalf("gathered value arrays must have length 2")
	}
	if ga.Close[0] != 30 || gb.Close[0] != 300 {
		t.Fatalf("gathered values misaligned: got %v / %v", ga.Close, gb.Close)
	}
}

func TestAlignSubsetOfBoth(t *testing.T) {
	a := Series{TS: []int64{1, 2, 3}}
	b := Series{TS: []int64{2, 3, 4, 5}}
	_, _, common := Align(a, b)
	if len(common) > len(a.TS) || len(common) > len(b.TS) {
		t.Fatalf("|common| must be <= min(|A|,|B|)")
	}
	aSet := map[int64]bool{}
	for _, ts := range a.TS {
		aSet[ts] = true
	}
	for _, ts := range common {
		if !aSet[ts] {
			t.Fatalf("common ts %d not present in A", ts)
		}
	}
}

func TestSafeDivideNeverInfiniteWithFiniteFloor(t *testing.T) {
	got := SafeDivide(5, 0, 0.01)
	if math.IsInf(got, 0) {
		t.Fatalf("SafeDivide produced infinity with a finite positive floor")
	}
}

func TestClipPowerRange(t *testing.T) {
	if got := ClipPower(100, 10); got != 10 {
		t.Fatalf("ClipPower(100,10) = %v, want 10", got)
	}
	if got := ClipPower(-100, 10); got != -10 {
		t.Fatalf("ClipPower(-100,10) = %v, want -10", got)
	}
	if got := ClipPower(3, 10); got != 3 {
		t.Fatalf("ClipPower(3,10) = %v, want 3", got)
	}
}

func TestClassifyTriggerLong(t *testing.T) {
	rrsSeries := []float64{-0.1, 0.2}
	got := Classify(0.2, 1, 1, rrsSeries)
	if got != model.SignalTriggerLong {
		t.Fatalf("Classify = %v, want TRIGGER_LONG", got)
	}
}

func TestClassifyWatch(t *testing.T) {
	rrsSeries := []float64{-0.5, -0.2}
	got := Classify(-0.2, 1, 1, rrsSeries)
	if got != model.SignalWatch {
		t.Fatalf("Classify = %v, want WATCH", got)
	}
}

func TestClassifyNoDataOnNaN(t *testing.T) {
	got := Classify(math.NaN(), 1, 1, []float64{0, math.NaN()})
	if got != model.SignalNoData {
		t.Fatalf("Classify = %v, want NO_DATA", got)
	}
}

func TestBenchmarkStateComputesParticipation(t *testing.T) {
	n := 10
	s := Series{
		TS: make([]int64, n), Open: make([]float64, n), High: make([]float64, n),
		Low: make([]float64, n), Close: make([]float64, n), Volume: make([]float64, n),
	}
	for i := 0; i < n; i++ {
		s.TS[i] = int64(i)
		s.Open[i] = 100 + float64(i)
		s.High[i] = 101 + float64(i)
		s.Low[i] = 99 + float64(i)
		s.Close[i] = 100 + float64(i)
		s.Volume[i] = 1000 + float64(i)*10
	}

	got := BenchmarkState("NIFTY", "5m", time.Unix(0, 0), s, 3)
	if got.Regime == model.RegimeNoData {
		t.Fatalf("expected a computed regime, got NO_DATA")
	}
	want := s.Volume[n-1] - s.Volume[n-1-3]
	if !almostEqual(got.Participation, want) {
		t.Fatalf("Participation = %v, want %v", got.Participation, want)
	}
}

func TestBenchmarkStateEmptySeriesIsNoData(t *testing.T) {
	got := BenchmarkState("NIFTY", "5m", time.Unix(0, 0), Series{}, 3)
	if got.Regime != model.RegimeNoData {
		t.Fatalf("Regime = %v, want NO_DATA for empty series", got.Regime)
	}
	if got.Participation != 0 {
		t.Fatalf("Participation = %v, want 0 for empty series", got.Participation)
	}
}
