package binance

import (
	"context"
	"encoding/json"
	"fmt"

	"CandleFeed/internal/domain/models"
	xhttp "CandleFeed/pkg/http"
)

// maxLimit is Binance's per-request kline cap.
const maxLimit = 1000

// fetchKlines pages through /api/v3/klines until the window is covered.
// Binance rows are positional arrays:
// [openTime, open, high, low, close, volume, closeTime, ...].
func (a *Adapter) fetchKlines(ctx context.Context, pair, interval string, fromMs, toMs int64) ([]models.RawCandle, error) {
	var out []models.RawCandle
	cursor := fromMs

	for cursor < toMs {
		var rows [][]json.RawMessage
		err := a.client.SendAndParse(ctx, &xhttp.RequestOptions{
			Method: xhttp.MethodGet,
			URL:    a.rest + "/api/v3/klines",
			QueryParams: map[string][]string{
				"symbol":    {pair},
				"interval":  {interval},
				"startTime": {fmt.Sprintf("%d", cursor)},
				"endTime":   {fmt.Sprintf("%d", toMs)},
				"limit":     {fmt.Sprintf("%d", maxLimit)},
			},
		}, &rows)
		if err != nil {
			return nil, fmt.Errorf("binance klines: %v: %w", err, models.ErrProviderUnavailable)
		}
		if len(rows) == 0 {
			break
		}

		for _, row := range rows {
			rc, err := parseKline(row)
			if err != nil {
				return nil, fmt.Errorf("binance klines: %w", err)
			}
			out = append(out, rc)
		}

		last := out[len(out)-1].Ts
		if last < cursor {
			break
		}
		cursor = last + 1
		if len(rows) < maxLimit {
			break
		}
	}

	return out, nil
}

func parseKline(row []json.RawMessage) (models.RawCandle, error) {
	if len(row) < 6 {
		return models.RawCandle{}, fmt.Errorf("short kline row (%d fields)", len(row))
	}
	var ts int64
	if err := json.Unmarshal(row[0], &ts); err != nil {
		return models.RawCandle{}, fmt.Errorf("kline open time: %w", err)
	}
	fields := make([]string, 5)
	for i := 0; i < 5; i++ {
		if err := json.Unmarshal(row[i+1], &fields[i]); err != nil {
			return models.RawCandle{}, fmt.Errorf("kline field %d: %w", i+1, err)
		}
	}
	return models.RawCandle{
		Ts:     ts,
		Open:   fields[0],
		High:   fields[1],
		Low:    fields[2],
		Close:  fields[3],
		Volume: fields[4],
	}, nil
}
