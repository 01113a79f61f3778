package binance

import (
	"context"
	"fmt"
	"strings"
	"time"

	"CandleFeed/internal/domain/models"
	xhttp "CandleFeed/pkg/http"
)

// Adapter is the Binance market-data source: REST klines for history and a
// WebSocket trade stream for live data. It never retries internally; fallback
// and reconnection policy live in the router and streaming manager.
type Adapter struct {
	desc   models.ProviderDescriptor
	client *xhttp.Client
	rest   string
	ws     string
}

type Config struct {
	RESTURL  string
	WSURL    string
	Quota    models.Quota
	Priority int
	Timeout  time.Duration
}

func New(cfg Config, client *xhttp.Client) *Adapter {
	rest := cfg.RESTURL
	if rest == "" {
		rest = "https://api.binance.com"
	}
	ws := cfg.WSURL
	if ws == "" {
		ws = "wss://stream.binance.com:9443/ws"
	}
	return &Adapter{
		desc: models.ProviderDescriptor{
			ID:           "binance",
			Markets:      []models.Market{models.MarketCrypto},
			Quota:        cfg.Quota,
			Priority:     cfg.Priority,
			Capabilities: models.Capabilities{History: true, Streaming: true},
		},
		client: client,
		rest:   rest,
		ws:     ws,
	}
}

func (a *Adapter) Descriptor() models.ProviderDescriptor { return a.desc }

// pairSymbol converts "BTC/USD" to Binance's "BTCUSDT" form. USD pairs trade
// against USDT on Binance.
func pairSymbol(symbol string) (string, error) {
	parts := strings.Split(strings.ToUpper(symbol), "/")
	if len(parts) != 2 {
		return "", fmt.Errorf("bad pair %q", symbol)
	}
	base, quote := parts[0], parts[1]
	if base == "XBT" {
		base = "BTC"
	}
	if quote == "USD" {
		quote = "USDT"
	}
	return base + quote, nil
}

func intervalToken(iv models.Interval) string {
	// Binance interval tokens match ours directly.
	return string(iv)
}

func (a *Adapter) checkKey(key models.SeriesKey) (string, error) {
	if !a.desc.SupportsMarket(key.Market) {
		return "", fmt.Errorf("binance: %s: %w", key.Market, models.ErrUnsupportedMarket)
	}
	return pairSymbol(key.Symbol)
}

// FetchHistory pulls klines for [from, to), paginating in maxLimit pages.
func (a *Adapter) FetchHistory(ctx context.Context, key models.SeriesKey, from, to time.Time) ([]models.RawCandle, error) {
	pair, err := a.checkKey(key)
	if err != nil {
		return nil, err
	}
	return a.fetchKlines(ctx, pair, intervalToken(key.Interval), from.UnixMilli(), to.UnixMilli())
}
