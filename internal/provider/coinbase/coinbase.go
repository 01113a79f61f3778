package coinbase

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"CandleFeed/internal/domain/models"
	xhttp "CandleFeed/pkg/http"
)

// Coinbase's Exchange API caps candles per request.
const maxRows = 300

// Adapter is the Coinbase market-data source. History only; it sits at the
// end of the crypto fallback chain.
type Adapter struct {
	desc   models.ProviderDescriptor
	client *xhttp.Client
	rest   string
}

type Config struct {
	RESTURL  string
	Quota    models.Quota
	Priority int
}

func New(cfg Config, client *xhttp.Client) *Adapter {
	rest := cfg.RESTURL
	if rest == "" {
		rest = "https://api.exchange.coinbase.com"
	}
	return &Adapter{
		desc: models.ProviderDescriptor{
			ID:           "coinbase",
			Markets:      []models.Market{models.MarketCrypto},
			Quota:        cfg.Quota,
			Priority:     cfg.Priority,
			Capabilities: models.Capabilities{History: true},
		},
		client: client,
		rest:   rest,
	}
}

func (a *Adapter) Descriptor() models.ProviderDescriptor { return a.desc }

// productID converts "BTC/USD" to Coinbase's "BTC-USD".
func productID(symbol string) (string, error) {
	parts := strings.Split(strings.ToUpper(symbol), "/")
	if len(parts) != 2 {
		return "", fmt.Errorf("bad pair %q", symbol)
	}
	base := parts[0]
	if base == "XBT" {
		base = "BTC"
	}
	return base + "-" + parts[1], nil
}

// granularities Coinbase accepts, in seconds.
var granularities = map[models.Interval]int{
	models.Interval1m:  60,
	models.Interval5m:  300,
	models.Interval15m: 900,
	models.Interval1h:  3600,
	models.Interval4h:  21600, // closest supported bucket is 6h
	models.Interval1d:  86400,
}

// FetchHistory pages /products/{id}/candles. Rows come newest-first as
// [time, low, high, open, close, volume] with numeric fields; the normalizer
// reorders them.
func (a *Adapter) FetchHistory(ctx context.Context, key models.SeriesKey, from, to time.Time) ([]models.RawCandle, error) {
	if !a.desc.SupportsMarket(key.Market) {
		return nil, fmt.Errorf("coinbase: %s: %w", key.Market, models.ErrUnsupportedMarket)
	}
	product, err := productID(key.Symbol)
	if err != nil {
		return nil, err
	}
	gran, ok := granularities[key.Interval]
	if !ok {
		gran = 60
	}

	var out []models.RawCandle
	step := time.Duration(gran) * time.Second * maxRows
	for cursor := from; cursor.Before(to); cursor = cursor.Add(step) {
		end := cursor.Add(step)
		if end.After(to) {
			end = to
		}
		rows, err := a.fetchWindow(ctx, product, gran, cursor, end)
		if err != nil {
			return nil, err
		}
		out = append(out, rows...)
	}
	return out, nil
}

func (a *Adapter) fetchWindow(ctx context.Context, product string, gran int, from, to time.Time) ([]models.RawCandle, error) {
	var rows [][]json.Number
	err := a.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    fmt.Sprintf("%s/products/%s/candles", a.rest, product),
		QueryParams: map[string][]string{
			"granularity": {strconv.Itoa(gran)},
			"start":       {from.UTC().Format(time.RFC3339)},
			"end":         {to.UTC().Format(time.RFC3339)},
		},
	}, &rows)
	if err != nil {
		return nil, fmt.Errorf("coinbase candles: %v: %w", err, models.ErrProviderUnavailable)
	}

	out := make([]models.RawCandle, 0, len(rows))
	for _, row := range rows {
		if len(row) < 6 {
			return nil, fmt.Errorf("coinbase candles: short row (%d fields)", len(row))
		}
		ts, err := row[0].Int64()
		if err != nil {
			return nil, fmt.Errorf("coinbase candles: time: %w", err)
		}
		out = append(out, models.RawCandle{
			Ts:     ts,
			Low:    row[1].String(),
			High:   row[2].String(),
			Open:   row[3].String(),
			Close:  row[4].String(),
			Volume: row[5].String(),
		})
	}
	return out, nil
}
