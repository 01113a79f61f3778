package normalize

import (
	"errors"
	"testing"

	"CandleFeed/internal/domain/models"
)

var testKey = models.SeriesKey{Symbol: "BTC/USD", Market: models.MarketCrypto, Interval: models.Interval1m}

func raw(ts int64, o, h, l, c, v string) models.RawCandle {
	return models.RawCandle{Ts: ts, Open: o, High: h, Low: l, Close: c, Volume: v}
}

func TestSeriesEnvelopeHolds(t *testing.T) {
	payload := []models.RawCandle{
		raw(1700000000, "100", "110", "90", "105", "12"),
		raw(1700000060, "105", "104", "95", "103", "8"),  // high below open: repair
		raw(1700000120, "103", "108", "104", "101", "3"), // low above close: repair
	}
	s, rep, err := Series(testKey, "binance", payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rep.Repaired != 2 {
		t.Fatalf("expected 2 repairs, got %d", rep.Repaired)
	}
	for i, c := range s.Candles {
		if !c.Valid() {
			t.Fatalf("candle %d violates envelope: %+v", i, c)
		}
	}
}

func TestSeriesDropsNonMonotonic(t *testing.T) {
	payload := []models.RawCandle{
		raw(1700000000, "1", "2", "1", "2", "1"),
		raw(1700000000, "1", "2", "1", "2", "1"), // duplicate ts
		raw(1700000060, "2", "3", "2", "3", "1"),
	}
	s, rep, err := Series(testKey, "kraken", payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rep.Dropped != 1 {
		t.Fatalf("expected 1 dropped, got %d", rep.Dropped)
	}
	if len(s.Candles) != 2 {
		t.Fatalf("expected 2 candles, got %d", len(s.Candles))
	}
}

func TestSeriesDuplicateTimestampLastRowWins(t *testing.T) {
	payload := []models.RawCandle{
		raw(1700000000, "1", "2", "1", "2", "1"),
		raw(1700000060, "2", "3", "2", "3", "1"),
		raw(1700000060, "2", "4", "2", "4", "5"), // resent candle supersedes
	}
	s, rep, err := Series(testKey, "binance", payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rep.Dropped != 1 || len(s.Candles) != 2 {
		t.Fatalf("expected one superseded row, got dropped=%d candles=%d", rep.Dropped, len(s.Candles))
	}
	if got := s.Candles[1]; got.Close != 4 || got.Volume != 5 {
		t.Fatalf("later duplicate must win: %+v", got)
	}
}

func TestSeriesNonNumericFails(t *testing.T) {
	payload := []models.RawCandle{raw(1700000000, "1", "2", "x", "2", "1")}
	_, _, err := Series(testKey, "coinbase", payload)
	var nerr *models.NormalizationError
	if !errors.As(err, &nerr) {
		t.Fatalf("expected NormalizationError, got %v", err)
	}
}

func TestSeriesMillisecondTimestamps(t *testing.T) {
	payload := []models.RawCandle{raw(1700000000000, "1", "2", "1", "2", "1")}
	s, _, err := Series(testKey, "binance", payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := s.Candles[0].Time.Unix(); got != 1700000000 {
		t.Fatalf("expected seconds reconciliation, got %d", got)
	}
}

func TestSeriesSortsByTimestamp(t *testing.T) {
	payload := []models.RawCandle{
		raw(1700000120, "3", "4", "3", "4", "1"),
		raw(1700000000, "1", "2", "1", "2", "1"),
		raw(1700000060, "2", "3", "2", "3", "1"),
	}
	s, _, err := Series(testKey, "kraken", payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 1; i < len(s.Candles); i++ {
		if !s.Candles[i].Time.After(s.Candles[i-1].Time) {
			t.Fatalf("series not strictly increasing at %d", i)
		}
	}
}
