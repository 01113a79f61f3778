package normalize

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"CandleFeed/internal/domain/models"
)

// Report describes what normalization did to a payload.
type Report struct {
	Repaired int // candles whose high/low were widened to the envelope
	Dropped  int // candles discarded for non-monotonic or duplicate timestamps
}

// Timestamps larger than this are treated as milliseconds. Anything this big
// in seconds is beyond year 33658.
const msThreshold = int64(1e12)

// Series converts a raw provider payload into a canonical series. It
// reconciles timestamp units to UTC seconds, parses numeric fields (failing
// the whole payload on the first non-numeric value), repairs OHLC envelope
// violations by widening high/low, and collapses duplicate timestamps
// keeping the later row, since a provider resending a candle is correcting
// it.
func Series(key models.SeriesKey, source string, raw []models.RawCandle) (*models.Series, Report, error) {
	var rep Report

	candles := make([]models.Candle, 0, len(raw))
	for i, r := range raw {
		c, err := parseCandle(r)
		if err != nil {
			return nil, rep, &models.NormalizationError{
				Provider: source,
				Reason:   fmt.Sprintf("row %d: %v", i, err),
			}
		}
		candles = append(candles, c)
	}

	// Stable sort keeps payload order among equal timestamps, so the last
	// row the provider sent wins the dedup below.
	sort.SliceStable(candles, func(i, j int) bool {
		return candles[i].Time.Before(candles[j].Time)
	})

	out := candles[:0]
	for _, c := range candles {
		if n := len(out); n > 0 && c.Time.Equal(out[n-1].Time) {
			out[n-1] = c
			rep.Dropped++
			continue
		}
		out = append(out, c)
	}
	for i := range out {
		if repairEnvelope(&out[i]) {
			rep.Repaired++
		}
	}

	s := &models.Series{Key: key, Source: source, Candles: out}
	if len(out) == 0 && len(raw) > 0 {
		return s, rep, &models.NormalizationError{Provider: source, Reason: "no usable candles after repair"}
	}
	return s, rep, nil
}

func parseCandle(r models.RawCandle) (models.Candle, error) {
	if r.Ts <= 0 {
		return models.Candle{}, fmt.Errorf("invalid timestamp %d", r.Ts)
	}
	ts := r.Ts
	if ts > msThreshold {
		ts /= 1000
	}

	o, err := parseField("open", r.Open)
	if err != nil {
		return models.Candle{}, err
	}
	h, err := parseField("high", r.High)
	if err != nil {
		return models.Candle{}, err
	}
	l, err := parseField("low", r.Low)
	if err != nil {
		return models.Candle{}, err
	}
	c, err := parseField("close", r.Close)
	if err != nil {
		return models.Candle{}, err
	}
	v, err := parseField("volume", r.Volume)
	if err != nil {
		return models.Candle{}, err
	}
	if o < 0 || h < 0 || l < 0 || c < 0 || v < 0 {
		return models.Candle{}, fmt.Errorf("negative price/volume at ts %d", ts)
	}

	return models.Candle{
		Time:   time.Unix(ts, 0).UTC(),
		Open:   o,
		High:   h,
		Low:    l,
		Close:  c,
		Volume: v,
	}, nil
}

func parseField(name, s string) (float64, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("non-numeric %s %q", name, s)
	}
	return f, nil
}

// repairEnvelope widens high/low to enclose open/close. Returns true when a
// repair was applied. Candles are corrected, not discarded: a too-narrow
// envelope is a provider rounding artifact, not a data gap.
func repairEnvelope(c *models.Candle) bool {
	repaired := false
	if hi := max(c.Open, c.Close); c.High < hi {
		c.High = hi
		repaired = true
	}
	if lo := min(c.Open, c.Close); c.Low > lo {
		c.Low = lo
		repaired = true
	}
	if c.Low > c.High {
		c.Low, c.High = c.High, c.Low
		repaired = true
	}
	return repaired
}
