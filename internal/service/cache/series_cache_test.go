package cache

import (
	"testing"
	"time"

	"CandleFeed/internal/domain/models"
)

func testSeries(n int) *models.Series {
	key := models.SeriesKey{Symbol: "BTC/USD", Market: models.MarketCrypto, Interval: models.Interval1m}
	s := &models.Series{Key: key, Source: "binance"}
	base := time.Unix(1700000000, 0).UTC()
	for i := 0; i < n; i++ {
		s.Candles = append(s.Candles, models.Candle{
			Time: base.Add(time.Duration(i) * time.Minute),
			Open: 100, High: 101, Low: 99, Close: 100.5, Volume: 1,
		})
	}
	return s
}

func TestSetGetSeries(t *testing.T) {
	st := NewSeriesStore(nil)
	ser := testSeries(3)
	st.SetSeries("k1", ser, time.Minute)

	got, ok := st.GetSeries("k1")
	if !ok {
		t.Fatalf("expected hit")
	}
	if len(got.Candles) != 3 {
		t.Fatalf("expected 3 candles, got %d", len(got.Candles))
	}
	// Returned copy must not alias the cached buffer.
	got.Candles[0].Close = -1
	again, _ := st.GetSeries("k1")
	if again.Candles[0].Close == -1 {
		t.Fatalf("cache returned aliased buffer")
	}
}

func TestLazyExpiry(t *testing.T) {
	st := NewSeriesStore(nil)
	now := time.Unix(1700000000, 0)
	st.now = func() time.Time { return now }

	st.SetSeries("k1", testSeries(1), time.Minute)
	if _, ok := st.GetSeries("k1"); !ok {
		t.Fatalf("expected hit before expiry")
	}

	now = now.Add(2 * time.Minute)
	if _, ok := st.GetSeries("k1"); ok {
		t.Fatalf("expected miss after expiry")
	}
	// Entry stays resident until replaced: expiry is lazy.
	if st.Len() != 1 {
		t.Fatalf("expected lazy-expired entry to remain, len=%d", st.Len())
	}

	st.SetSeries("k1", testSeries(2), time.Minute)
	if got, ok := st.GetSeries("k1"); !ok || len(got.Candles) != 2 {
		t.Fatalf("expected replacement to serve")
	}
}

func TestFreezeStoresHistoricalEntry(t *testing.T) {
	st := NewSeriesStore(nil)
	ser := testSeries(5)
	st.Freeze(ser)

	first := ser.Candles[0].Time
	last := ser.Candles[4].Time
	key := HistoryKey("binance", ser.Key, first, last)
	got, ok := st.GetSeries(key)
	if !ok {
		t.Fatalf("expected frozen series under %s", key)
	}
	if len(got.Candles) != 5 {
		t.Fatalf("expected 5 candles, got %d", len(got.Candles))
	}
}

func TestTTLForInterval(t *testing.T) {
	if got := TTLForInterval(models.Interval1m); got != TTLIntraday {
		t.Fatalf("intraday ttl: %v", got)
	}
	if got := TTLForInterval(models.Interval1d); got != TTLDaily {
		t.Fatalf("daily ttl: %v", got)
	}
}
