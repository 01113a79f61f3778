package finnhub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"CandleFeed/internal/domain/models"
	xhttp "CandleFeed/pkg/http"

	"github.com/gorilla/websocket"
)

const pingInterval = 20 * time.Second

// Adapter is the Finnhub stocks source: REST candles for history plus a
// WebSocket trade stream. It is the only streaming source for the stocks
// market, so the crypto failover path never reaches it.
type Adapter struct {
	desc   models.ProviderDescriptor
	client *xhttp.Client
	rest   string
	ws     string
	apiKey string
}

type Config struct {
	RESTURL  string
	WSURL    string
	APIKey   string
	Quota    models.Quota
	Priority int
}

func New(cfg Config, client *xhttp.Client) *Adapter {
	rest := cfg.RESTURL
	if rest == "" {
		rest = "https://finnhub.io/api/v1"
	}
	ws := cfg.WSURL
	if ws == "" {
		ws = "wss://ws.finnhub.io"
	}
	return &Adapter{
		desc: models.ProviderDescriptor{
			ID:           "finnhub",
			Markets:      []models.Market{models.MarketStocks},
			Quota:        cfg.Quota,
			Priority:     cfg.Priority,
			Capabilities: models.Capabilities{History: true, Streaming: true},
		},
		client: client,
		rest:   rest,
		ws:     ws,
		apiKey: cfg.APIKey,
	}
}

func (a *Adapter) Descriptor() models.ProviderDescriptor { return a.desc }

func resolution(iv models.Interval) string {
	switch iv {
	case models.Interval1m:
		return "1"
	case models.Interval5m:
		return "5"
	case models.Interval15m:
		return "15"
	case models.Interval30m:
		return "30"
	case models.Interval1h, models.Interval4h:
		return "60"
	default:
		return "D"
	}
}

// candleResponse is Finnhub's column-oriented candle payload. json.Number
// keeps the wire text intact for the normalizer.
type candleResponse struct {
	Status string        `json:"s"`
	Time   []int64       `json:"t"`
	Open   []json.Number `json:"o"`
	High   []json.Number `json:"h"`
	Low    []json.Number `json:"l"`
	Close  []json.Number `json:"c"`
	Volume []json.Number `json:"v"`
}

func (a *Adapter) FetchHistory(ctx context.Context, key models.SeriesKey, from, to time.Time) ([]models.RawCandle, error) {
	if !a.desc.SupportsMarket(key.Market) {
		return nil, fmt.Errorf("finnhub: %s: %w", key.Market, models.ErrUnsupportedMarket)
	}

	var resp candleResponse
	err := a.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    a.rest + "/stock/candle",
		QueryParams: map[string][]string{
			"symbol":     {key.Symbol},
			"resolution": {resolution(key.Interval)},
			"from":       {fmt.Sprintf("%d", from.Unix())},
			"to":         {fmt.Sprintf("%d", to.Unix())},
			"token":      {a.apiKey},
		},
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("finnhub candle: %v: %w", err, models.ErrProviderUnavailable)
	}
	if resp.Status == "no_data" {
		return nil, nil
	}
	if resp.Status != "ok" {
		return nil, fmt.Errorf("finnhub candle: status %q: %w", resp.Status, models.ErrProviderUnavailable)
	}

	n := len(resp.Time)
	if len(resp.Open) != n || len(resp.High) != n || len(resp.Low) != n || len(resp.Close) != n || len(resp.Volume) != n {
		return nil, fmt.Errorf("finnhub candle: ragged columns")
	}
	out := make([]models.RawCandle, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, models.RawCandle{
			Ts:     resp.Time[i],
			Open:   resp.Open[i].String(),
			High:   resp.High[i].String(),
			Low:    resp.Low[i].String(),
			Close:  resp.Close[i].String(),
			Volume: resp.Volume[i].String(),
		})
	}
	return out, nil
}

type wsTrade struct {
	Symbol string  `json:"s"`
	Price  float64 `json:"p"`
	Volume float64 `json:"v"`
	Time   int64   `json:"t"` // ms
}

type wsMessage struct {
	Type string    `json:"type"`
	Data []wsTrade `json:"data"`
}

// OpenStream subscribes to trade events for the symbol.
func (a *Adapter) OpenStream(ctx context.Context, key models.SeriesKey) (<-chan models.Tick, <-chan error, error) {
	if !a.desc.SupportsMarket(key.Market) {
		return nil, nil, fmt.Errorf("finnhub: %s: %w", key.Market, models.ErrUnsupportedMarket)
	}

	u := fmt.Sprintf("%s?token=%s", a.ws, a.apiKey)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("finnhub connect: %v: %w", err, models.ErrProviderUnavailable)
	}
	sub := map[string]string{"type": "subscribe", "symbol": key.Symbol}
	if err := conn.WriteJSON(sub); err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("finnhub subscribe: %v: %w", err, models.ErrProviderUnavailable)
	}

	ticks := make(chan models.Tick, 1024)
	errs := make(chan error, 1)

	go func() {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				_ = conn.Close()
				return
			case <-ticker.C:
				_ = conn.WriteMessage(websocket.PingMessage, nil)
			}
		}
	}()

	go func() {
		defer close(ticks)
		defer close(errs)
		defer conn.Close()
		for {
			_, b, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				errs <- fmt.Errorf("finnhub read: %w", err)
				return
			}
			var m wsMessage
			if err := json.Unmarshal(b, &m); err != nil || m.Type != "trade" {
				continue
			}
			for _, d := range m.Data {
				tick := models.Tick{
					Symbol: key.Symbol,
					Price:  d.Price,
					Volume: d.Volume,
					Time:   time.UnixMilli(d.Time).UTC(),
				}
				select {
				case ticks <- tick:
				default:
					// drop on backpressure
				}
			}
		}
	}()

	return ticks, errs, nil
}
