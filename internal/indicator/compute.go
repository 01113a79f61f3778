package indicator

import (
	"fmt"
	"strconv"
	"strings"

	"CandleFeed/internal/domain/models"
)

// Params are the parsed name=value options of an indicator request.
type Params map[string]int

// ParseParams parses "period=14,fast=12" style option strings.
func ParseParams(s string) (Params, error) {
	p := make(Params)
	if s == "" {
		return p, nil
	}
	for _, part := range strings.Split(s, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			return nil, fmt.Errorf("bad indicator param %q", part)
		}
		v, err := strconv.Atoi(kv[1])
		if err != nil || v <= 0 {
			return nil, fmt.Errorf("bad indicator param %q", part)
		}
		p[kv[0]] = v
	}
	return p, nil
}

func (p Params) get(key string, def int) int {
	if v, ok := p[key]; ok {
		return v
	}
	return def
}

// newState builds the per-candle update function for a named indicator.
// Multi-output indicators are addressed by component name.
func newState(name string, params Params) (func(models.Candle) float64, error) {
	switch name {
	case "sma":
		st := NewSMA(params.get("period", 20))
		return func(c models.Candle) float64 { return st.Update(c.Close) }, nil
	case "ema":
		st := NewEMA(params.get("period", 20))
		return func(c models.Candle) float64 { return st.Update(c.Close) }, nil
	case "rsi":
		st := NewRSI(params.get("period", 14))
		return func(c models.Candle) float64 { return st.Update(c.Close) }, nil
	case "macd", "macd_signal", "macd_hist":
		st := NewMACD(params.get("fast", 12), params.get("slow", 26), params.get("signal", 9))
		return func(c models.Candle) float64 {
			m, s, h := st.Update(c.Close)
			switch name {
			case "macd":
				return m
			case "macd_signal":
				return s
			default:
				return h
			}
		}, nil
	case "bb_high", "bb_mid", "bb_low":
		st := NewBollinger(params.get("period", 20), float64(params.get("mult", 2)))
		return func(c models.Candle) float64 {
			h, m, l := st.Update(c.Close)
			switch name {
			case "bb_high":
				return h
			case "bb_mid":
				return m
			default:
				return l
			}
		}, nil
	case "atr":
		st := NewATR(params.get("period", 14))
		return func(c models.Candle) float64 { return st.Update(c) }, nil
	default:
		return nil, fmt.Errorf("unknown indicator %q", name)
	}
}

// Compute runs the named indicator over a candle slice and returns one value
// per candle, NaN during warmup. Unknown names fail so the handler can
// return a client error.
func Compute(name string, params Params, candles []models.Candle) ([]float64, error) {
	update, err := newState(name, params)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = update(c)
	}
	return out, nil
}

// Names lists the supported indicator names.
func Names() []string {
	return []string{
		"sma", "ema", "rsi",
		"macd", "macd_signal", "macd_hist",
		"bb_high", "bb_mid", "bb_low",
		"atr",
	}
}
