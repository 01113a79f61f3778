package usecase

import (
	"math"
	"strings"
	"testing"
	"time"

	"CandleFeed/internal/domain/models"
	"CandleFeed/internal/indicator"
)

func trendCandles(n int) []models.Candle {
	base := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	out := make([]models.Candle, n)
	for i := range out {
		price := 100 + float64(i) + 3*math.Sin(float64(i)/4)
		out[i] = models.Candle{
			Time:   base.Add(time.Duration(i) * time.Minute),
			Open:   price,
			High:   price + 1,
			Low:    price - 1,
			Close:  price,
			Volume: 10,
		}
	}
	return out
}

func TestAdvanceExtendsStateIncrementally(t *testing.T) {
	uc := NewIndicatorsUseCase(nil, nil)
	candles := trendCandles(50)
	params := indicator.Params{"period": 10}

	first, err := uc.advance("k", "ema", params, candles[:30])
	if err != nil {
		t.Fatalf("first advance: %v", err)
	}
	if len(first) != 30 {
		t.Fatalf("expected 30 values, got %d", len(first))
	}

	second, err := uc.advance("k", "ema", params, candles)
	if err != nil {
		t.Fatalf("second advance: %v", err)
	}
	if len(second) != 50 {
		t.Fatalf("expected 50 values, got %d", len(second))
	}

	batch, err := indicator.Compute("ema", params, candles)
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	for i := range batch {
		got, want := second[i], batch[i]
		if math.IsNaN(want) {
			if !math.IsNaN(got) {
				t.Fatalf("value %d: got %v, want NaN", i, got)
			}
			continue
		}
		if math.Abs(got-want) > 1e-9 {
			t.Fatalf("value %d diverged from batch: got %v want %v", i, got, want)
		}
	}

	if len(uc.trackers) != 1 {
		t.Fatalf("expected one tracker reused across calls, got %d", len(uc.trackers))
	}
}

func TestAdvanceUnknownIndicator(t *testing.T) {
	uc := NewIndicatorsUseCase(nil, nil)
	_, err := uc.advance("k", "vwap", nil, trendCandles(5))
	if err == nil || !strings.Contains(err.Error(), "supported") {
		t.Fatalf("expected unknown-indicator error listing supported names, got %v", err)
	}
}

func TestResolveKeyNormalizesSlashlessCrypto(t *testing.T) {
	key, err := resolveKey("BTCUSD", "crypto", "1m")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key.Symbol != "BTC/USD" {
		t.Fatalf("expected canonical BTC/USD, got %q", key.Symbol)
	}
}
