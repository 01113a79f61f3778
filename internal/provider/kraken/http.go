package kraken

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"CandleFeed/internal/domain/models"
	xhttp "CandleFeed/pkg/http"
)

type ohlcResponse struct {
	Error  []string                   `json:"error"`
	Result map[string]json.RawMessage `json:"result"`
}

// fetchOHLC calls /0/public/OHLC. Kraken keys the result by its own pair
// alias, so the row array is found by skipping the "last" cursor field.
// Rows are positional: [time, open, high, low, close, vwap, volume, count].
func (a *Adapter) fetchOHLC(ctx context.Context, pair string, intervalMin int, fromSec, toSec int64) ([]models.RawCandle, error) {
	var resp ohlcResponse
	err := a.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    a.rest + "/0/public/OHLC",
		QueryParams: map[string][]string{
			"pair":     {pair},
			"interval": {fmt.Sprintf("%d", intervalMin)},
			"since":    {fmt.Sprintf("%d", fromSec)},
		},
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("kraken ohlc: %v: %w", err, models.ErrProviderUnavailable)
	}
	if len(resp.Error) > 0 {
		return nil, fmt.Errorf("kraken ohlc: %s: %w", strings.Join(resp.Error, "; "), models.ErrProviderUnavailable)
	}

	var rows [][]json.RawMessage
	for k, v := range resp.Result {
		if k == "last" {
			continue
		}
		if err := json.Unmarshal(v, &rows); err != nil {
			return nil, fmt.Errorf("kraken ohlc rows: %w", err)
		}
		break
	}

	out := make([]models.RawCandle, 0, len(rows))
	for _, row := range rows {
		rc, err := parseRow(row)
		if err != nil {
			return nil, fmt.Errorf("kraken ohlc: %w", err)
		}
		// Kraken ignores an upper bound, so trim to the requested window.
		if rc.Ts >= toSec {
			continue
		}
		out = append(out, rc)
	}
	return out, nil
}

func parseRow(row []json.RawMessage) (models.RawCandle, error) {
	if len(row) < 7 {
		return models.RawCandle{}, fmt.Errorf("short ohlc row (%d fields)", len(row))
	}
	var ts int64
	if err := json.Unmarshal(row[0], &ts); err != nil {
		// Some pairs report fractional timestamps.
		var f float64
		if err2 := json.Unmarshal(row[0], &f); err2 != nil {
			return models.RawCandle{}, fmt.Errorf("ohlc time: %w", err)
		}
		ts = int64(f)
	}
	var o, h, l, c, v string
	for i, dst := range []*string{&o, &h, &l, &c} {
		if err := json.Unmarshal(row[i+1], dst); err != nil {
			return models.RawCandle{}, fmt.Errorf("ohlc field %d: %w", i+1, err)
		}
	}
	if err := json.Unmarshal(row[6], &v); err != nil {
		return models.RawCandle{}, fmt.Errorf("ohlc volume: %w", err)
	}
	return models.RawCandle{Ts: ts, Open: o, High: h, Low: l, Close: c, Volume: v}, nil
}
