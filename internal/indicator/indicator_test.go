package indicator

import (
	"math"
	"testing"
	"time"

	"CandleFeed/internal/domain/models"
)

func closes(vs []float64) []models.Candle {
	out := make([]models.Candle, len(vs))
	base := time.Unix(1700000000, 0).UTC()
	for i, v := range vs {
		out[i] = models.Candle{
			Time: base.Add(time.Duration(i) * time.Minute),
			Open: v, High: v + 1, Low: v - 1, Close: v, Volume: 1,
		}
	}
	return out
}

// syntheticSeries builds a deterministic but non-trivial price path.
func syntheticSeries(n int) []models.Candle {
	vs := make([]float64, n)
	price := 100.0
	for i := range vs {
		price += 3*math.Sin(float64(i)/5) + 0.1*float64(i%7) - 0.2
		vs[i] = price
	}
	return closes(vs)
}

func almostEqual(a, b float64) bool {
	if math.IsNaN(a) && math.IsNaN(b) {
		return true
	}
	return math.Abs(a-b) < 1e-9
}

// naiveSMA recomputes from scratch at every index.
func naiveSMA(candles []models.Candle, n, i int) float64 {
	if i < n-1 {
		return math.NaN()
	}
	sum := 0.0
	for j := i - n + 1; j <= i; j++ {
		sum += candles[j].Close
	}
	return sum / float64(n)
}

func naiveEMA(candles []models.Candle, n, i int) float64 {
	if i < n-1 {
		return math.NaN()
	}
	val := naiveSMA(candles, n, n-1)
	k := 2.0 / float64(n+1)
	for j := n; j <= i; j++ {
		val = (candles[j].Close-val)*k + val
	}
	return val
}

func TestSMAIncrementalMatchesBatch(t *testing.T) {
	candles := syntheticSeries(120)
	got, err := Compute("sma", Params{"period": 20}, candles)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	for i := range candles {
		want := naiveSMA(candles, 20, i)
		if !almostEqual(got[i], want) {
			t.Fatalf("sma[%d]: got %v want %v", i, got[i], want)
		}
	}
}

func TestEMAIncrementalMatchesBatch(t *testing.T) {
	candles := syntheticSeries(150)
	got, err := Compute("ema", Params{"period": 12}, candles)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	for i := range candles {
		want := naiveEMA(candles, 12, i)
		if !almostEqual(got[i], want) {
			t.Fatalf("ema[%d]: got %v want %v", i, got[i], want)
		}
	}
}

func TestEMASeededWithSMA(t *testing.T) {
	candles := closes([]float64{1, 2, 3, 4, 5})
	got, err := Compute("ema", Params{"period": 5}, candles)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	for i := 0; i < 4; i++ {
		if !math.IsNaN(got[i]) {
			t.Fatalf("expected warmup NaN at %d, got %v", i, got[i])
		}
	}
	if !almostEqual(got[4], 3.0) {
		t.Fatalf("seed must be SMA(5)=3, got %v", got[4])
	}
}

func TestRSIAllGainsSaturates(t *testing.T) {
	vs := make([]float64, 20)
	for i := range vs {
		vs[i] = float64(i + 1)
	}
	got, err := Compute("rsi", Params{"period": 14}, closes(vs))
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	last := got[len(got)-1]
	if !almostEqual(last, 100) {
		t.Fatalf("monotonic gains must give RSI 100, got %v", last)
	}
}

func TestRSIWarmupLength(t *testing.T) {
	candles := syntheticSeries(30)
	got, err := Compute("rsi", Params{"period": 14}, candles)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	// First value needs period+1 candles (period deltas).
	for i := 0; i < 14; i++ {
		if !math.IsNaN(got[i]) {
			t.Fatalf("expected warmup NaN at %d", i)
		}
	}
	if math.IsNaN(got[14]) {
		t.Fatalf("expected value at index 14")
	}
}

func TestMACDComponentsConsistent(t *testing.T) {
	candles := syntheticSeries(200)
	macd, err := Compute("macd", nil, candles)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	signal, _ := Compute("macd_signal", nil, candles)
	hist, _ := Compute("macd_hist", nil, candles)
	for i := range candles {
		if math.IsNaN(macd[i]) {
			continue
		}
		if math.IsNaN(signal[i]) {
			continue
		}
		if !almostEqual(hist[i], macd[i]-signal[i]) {
			t.Fatalf("hist[%d] != macd-signal", i)
		}
	}
}

func TestBollingerPopulationStddev(t *testing.T) {
	// Constant closes: zero deviation, all bands collapse onto the mean.
	vs := make([]float64, 25)
	for i := range vs {
		vs[i] = 50
	}
	high, err := Compute("bb_high", nil, closes(vs))
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	low, _ := Compute("bb_low", nil, closes(vs))
	if !almostEqual(high[24], 50) || !almostEqual(low[24], 50) {
		t.Fatalf("expected collapsed bands, got %v/%v", high[24], low[24])
	}

	// Alternating series with known population stddev.
	vs2 := make([]float64, 20)
	for i := range vs2 {
		if i%2 == 0 {
			vs2[i] = 40
		} else {
			vs2[i] = 60
		}
	}
	mid, _ := Compute("bb_mid", nil, closes(vs2))
	high2, _ := Compute("bb_high", nil, closes(vs2))
	if !almostEqual(mid[19], 50) {
		t.Fatalf("expected mid 50, got %v", mid[19])
	}
	// Population stddev of an even 40/60 split is 10, so the band is 50+2*10.
	if !almostEqual(high2[19], 70) {
		t.Fatalf("expected high band 70, got %v", high2[19])
	}
}

func TestATRWarmupAndPositive(t *testing.T) {
	candles := syntheticSeries(50)
	got, err := Compute("atr", nil, candles)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	for i := 0; i < 13; i++ {
		if !math.IsNaN(got[i]) {
			t.Fatalf("expected warmup NaN at %d", i)
		}
	}
	for i := 14; i < len(got); i++ {
		if got[i] <= 0 {
			t.Fatalf("atr must stay positive, got %v at %d", got[i], i)
		}
	}
}

func TestHeikinAshiEnvelope(t *testing.T) {
	candles := syntheticSeries(40)
	ha := HeikinAshi(candles)
	if len(ha) != len(candles) {
		t.Fatalf("length mismatch")
	}
	for i, c := range ha {
		if !c.Valid() {
			t.Fatalf("heikin-ashi candle %d violates envelope: %+v", i, c)
		}
	}
	if !almostEqual(ha[0].Open, (candles[0].Open+candles[0].Close)/2) {
		t.Fatalf("first open must average raw open/close")
	}
}

func TestUnknownIndicatorFails(t *testing.T) {
	if _, err := Compute("vwap", nil, nil); err == nil {
		t.Fatalf("expected error for unknown indicator")
	}
}

func TestTrackerIncrementalMatchesBatch(t *testing.T) {
	candles := syntheticSeries(120)
	tr, err := NewTracker("ema", Params{"period": 10})
	if err != nil {
		t.Fatalf("tracker: %v", err)
	}

	// Feed candle by candle through the tracker.
	var got []float64
	for i := 1; i <= len(candles); i++ {
		got = tr.Advance(candles[:i])
	}

	want, _ := Compute("ema", Params{"period": 10}, candles)
	for i := range want {
		if !almostEqual(got[i], want[i]) {
			t.Fatalf("tracker[%d]: got %v want %v", i, got[i], want[i])
		}
	}
}

func TestTrackerReplaysOnCorrection(t *testing.T) {
	candles := syntheticSeries(60)
	tr, err := NewTracker("sma", Params{"period": 5})
	if err != nil {
		t.Fatalf("tracker: %v", err)
	}
	tr.Advance(candles)

	// Correct a candle in the middle and re-advance: values must match a
	// fresh batch pass over the corrected series.
	candles[30].Close += 10
	candles[30].High += 10
	got := tr.Advance(candles[:40])

	want, _ := Compute("sma", Params{"period": 5}, candles[:40])
	for i := range want {
		if !almostEqual(got[i], want[i]) {
			t.Fatalf("post-correction[%d]: got %v want %v", i, got[i], want[i])
		}
	}
}
