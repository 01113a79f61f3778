package alphavantage

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"CandleFeed/internal/domain/models"
	xhttp "CandleFeed/pkg/http"
)

// Adapter is the Alpha Vantage stocks source. Free-tier keys allow very few
// calls per minute, so it depends on the shared limiter and cache more than
// any other source. History only.
type Adapter struct {
	desc   models.ProviderDescriptor
	client *xhttp.Client
	rest   string
	apiKey string
}

type Config struct {
	RESTURL  string
	APIKey   string
	Quota    models.Quota
	Priority int
}

func New(cfg Config, client *xhttp.Client) *Adapter {
	rest := cfg.RESTURL
	if rest == "" {
		rest = "https://www.alphavantage.co"
	}
	quota := cfg.Quota
	if quota.Calls == 0 {
		quota = models.Quota{Calls: 5, Window: time.Minute}
	}
	return &Adapter{
		desc: models.ProviderDescriptor{
			ID:           "alpha_vantage",
			Markets:      []models.Market{models.MarketStocks},
			Quota:        quota,
			Priority:     cfg.Priority,
			Capabilities: models.Capabilities{History: true},
		},
		client: client,
		rest:   rest,
		apiKey: cfg.APIKey,
	}
}

func (a *Adapter) Descriptor() models.ProviderDescriptor { return a.desc }

// intervalParams maps canonical intervals onto Alpha Vantage functions.
// Anything above an hour is served from the daily series.
func intervalParams(iv models.Interval) (function, interval string, daily bool) {
	switch iv {
	case models.Interval1m:
		return "TIME_SERIES_INTRADAY", "1min", false
	case models.Interval5m:
		return "TIME_SERIES_INTRADAY", "5min", false
	case models.Interval15m:
		return "TIME_SERIES_INTRADAY", "15min", false
	case models.Interval30m:
		return "TIME_SERIES_INTRADAY", "30min", false
	case models.Interval1h:
		return "TIME_SERIES_INTRADAY", "60min", false
	default:
		return "TIME_SERIES_DAILY", "", true
	}
}

type avBar struct {
	Open   string `json:"1. open"`
	High   string `json:"2. high"`
	Low    string `json:"3. low"`
	Close  string `json:"4. close"`
	Volume string `json:"5. volume"`
}

func (a *Adapter) FetchHistory(ctx context.Context, key models.SeriesKey, from, to time.Time) ([]models.RawCandle, error) {
	if !a.desc.SupportsMarket(key.Market) {
		return nil, fmt.Errorf("alpha_vantage: %s: %w", key.Market, models.ErrUnsupportedMarket)
	}

	function, interval, daily := intervalParams(key.Interval)
	params := map[string][]string{
		"function":   {function},
		"symbol":     {key.Symbol},
		"apikey":     {a.apiKey},
		"outputsize": {"full"},
	}
	if !daily {
		params["interval"] = []string{interval}
	}

	var payload map[string]json.RawMessage
	err := a.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:      xhttp.MethodGet,
		URL:         a.rest + "/query",
		QueryParams: params,
	}, &payload)
	if err != nil {
		return nil, fmt.Errorf("alpha_vantage query: %v: %w", err, models.ErrProviderUnavailable)
	}

	// Quota exhaustion and bad symbols both come back as 200 with a Note or
	// Error Message field instead of a series.
	if note, ok := payload["Note"]; ok {
		return nil, fmt.Errorf("alpha_vantage throttled: %s: %w", note, models.ErrRateLimited)
	}
	if msg, ok := payload["Error Message"]; ok {
		return nil, fmt.Errorf("alpha_vantage: %s: %w", msg, models.ErrProviderUnavailable)
	}

	series, layout, err := findSeries(payload, daily)
	if err != nil {
		return nil, err
	}

	out := make([]models.RawCandle, 0, len(series))
	for stamp, bar := range series {
		t, err := time.Parse(layout, stamp)
		if err != nil {
			return nil, fmt.Errorf("alpha_vantage timestamp %q: %w", stamp, err)
		}
		t = t.UTC()
		if t.Before(from) || !t.Before(to) {
			continue
		}
		out = append(out, models.RawCandle{
			Ts:     t.Unix(),
			Open:   bar.Open,
			High:   bar.High,
			Low:    bar.Low,
			Close:  bar.Close,
			Volume: bar.Volume,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ts < out[j].Ts })
	return out, nil
}

// findSeries locates the time-series object. The key embeds the interval
// ("Time Series (5min)", "Time Series (Daily)"), so match by prefix.
func findSeries(payload map[string]json.RawMessage, daily bool) (map[string]avBar, string, error) {
	layout := "2006-01-02 15:04:05"
	if daily {
		layout = "2006-01-02"
	}
	for k, v := range payload {
		if len(k) < 11 || k[:11] != "Time Series" {
			continue
		}
		var series map[string]avBar
		if err := json.Unmarshal(v, &series); err != nil {
			return nil, "", fmt.Errorf("alpha_vantage series: %w", err)
		}
		return series, layout, nil
	}
	return nil, "", fmt.Errorf("alpha_vantage: no time series in response: %w", models.ErrProviderUnavailable)
}
