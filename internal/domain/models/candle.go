package models

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"
)

// Market is the asset class a symbol trades in.
type Market string

const (
	MarketCrypto Market = "crypto"
	MarketStocks Market = "stocks"
)

// IsValidMarket returns true if m is a supported market.
func IsValidMarket(m Market) bool {
	return m == MarketCrypto || m == MarketStocks
}

// NormalizeMarket converts a raw string to a valid market (or crypto).
func NormalizeMarket(s string) Market {
	m := Market(strings.ToLower(s))
	if IsValidMarket(m) {
		return m
	}
	return MarketCrypto
}

// Interval is the candle bucket width.
type Interval string

const (
	Interval1m  Interval = "1m"
	Interval5m  Interval = "5m"
	Interval15m Interval = "15m"
	Interval30m Interval = "30m"
	Interval1h  Interval = "1h"
	Interval4h  Interval = "4h"
	Interval1d  Interval = "1d"
)

var intervalDurations = map[Interval]time.Duration{
	Interval1m:  time.Minute,
	Interval5m:  5 * time.Minute,
	Interval15m: 15 * time.Minute,
	Interval30m: 30 * time.Minute,
	Interval1h:  time.Hour,
	Interval4h:  4 * time.Hour,
	Interval1d:  24 * time.Hour,
}

// IsValidInterval returns true if iv is a supported interval.
func IsValidInterval(iv Interval) bool {
	_, ok := intervalDurations[iv]
	return ok
}

// DefaultInterval returns the default interval.
func DefaultInterval() Interval { return Interval1m }

// NormalizeInterval converts a raw string to a valid interval (or default).
// Bare minute counts ("1", "5", "60") from legacy clients are accepted.
func NormalizeInterval(s string) Interval {
	if s == "" {
		return DefaultInterval()
	}
	iv := Interval(strings.ToLower(s))
	if IsValidInterval(iv) {
		return iv
	}
	switch s {
	case "1":
		return Interval1m
	case "5":
		return Interval5m
	case "15":
		return Interval15m
	case "30":
		return Interval30m
	case "60":
		return Interval1h
	case "240":
		return Interval4h
	case "1440", "d", "D":
		return Interval1d
	}
	return DefaultInterval()
}

// Duration returns the bucket width of the interval.
func (iv Interval) Duration() time.Duration {
	if d, ok := intervalDurations[iv]; ok {
		return d
	}
	return time.Minute
}

// Minutes returns the interval width in whole minutes.
func (iv Interval) Minutes() int {
	return int(iv.Duration() / time.Minute)
}

// Bucket truncates t to the open time of the interval bucket containing it.
func (iv Interval) Bucket(t time.Time) time.Time {
	return t.UTC().Truncate(iv.Duration())
}

// Candle is one interval's OHLCV summary. Open time identifies the bucket;
// a candle is immutable once its interval has closed.
type Candle struct {
	Time   time.Time `json:"ts"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Valid reports whether the OHLC envelope holds: low <= open,close <= high.
func (c Candle) Valid() bool {
	return c.Low <= c.Open && c.Low <= c.Close &&
		c.High >= c.Open && c.High >= c.Close &&
		c.Low <= c.High
}

// Tick is a single trade event from a live stream.
type Tick struct {
	Symbol string
	Price  float64
	Volume float64
	Time   time.Time
}

// SeriesKey identifies one canonical candle series.
type SeriesKey struct {
	Symbol   string   `json:"symbol"`
	Market   Market   `json:"market"`
	Interval Interval `json:"interval"`
}

func (k SeriesKey) String() string {
	return fmt.Sprintf("%s:%s:%s", k.Market, k.Symbol, k.Interval)
}

// Series is an ordered, gap-aware candle sequence for one key.
// Candles are strictly increasing by open time; mutation is append or
// refinement of the last open candle only.
type Series struct {
	Key     SeriesKey `json:"key"`
	Source  string    `json:"source"` // provider id the data came from
	Candles []Candle  `json:"candles"`
}

// Last returns the most recent candle, or false when empty.
func (s *Series) Last() (Candle, bool) {
	if len(s.Candles) == 0 {
		return Candle{}, false
	}
	return s.Candles[len(s.Candles)-1], true
}

// Clone returns a deep copy safe to hand to readers.
func (s *Series) Clone() *Series {
	cp := *s
	cp.Candles = make([]Candle, len(s.Candles))
	copy(cp.Candles, s.Candles)
	return &cp
}

// IndicatorResult is one derived series, aligned 1:1 with its source candles.
// Warmup positions hold NaN and serialize as JSON null.
type IndicatorResult struct {
	Key    SeriesKey   `json:"key"`
	Name   string      `json:"name"`
	Params string      `json:"params"`
	Values []JSONFloat `json:"values"`
}

// JSONFloat is a float64 that marshals NaN/Inf as null, matching the wire
// format chart consumers expect for warmup gaps.
type JSONFloat float64

func (f JSONFloat) MarshalJSON() ([]byte, error) {
	v := float64(f)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return []byte("null"), nil
	}
	return json.Marshal(v)
}

func (f *JSONFloat) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*f = JSONFloat(math.NaN())
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*f = JSONFloat(v)
	return nil
}
