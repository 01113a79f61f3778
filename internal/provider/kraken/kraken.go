package kraken

import (
	"context"
	"fmt"
	"strings"
	"time"

	"CandleFeed/internal/domain/models"
	xhttp "CandleFeed/pkg/http"
)

// Adapter is the Kraken market-data source. Kraken serves OHLC directly over
// REST and trades over WebSocket.
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
}

func New(cfg Config, client *xhttp.Client) *Adapter {
	rest := cfg.RESTURL
	if rest == "" {
		rest = "https://api.kraken.com"
	}
	ws := cfg.WSURL
	if ws == "" {
		ws = "wss://ws.kraken.com"
	}
	return &Adapter{
		desc: models.ProviderDescriptor{
			ID:           "kraken",
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

// pairSymbol converts "BTC/USD" to Kraken's slash-less REST pair. Kraken
// names bitcoin XBT.
func pairSymbol(symbol string) (string, error) {
	parts := strings.Split(strings.ToUpper(symbol), "/")
	if len(parts) != 2 {
		return "", fmt.Errorf("bad pair %q", symbol)
	}
	base := parts[0]
	if base == "BTC" {
		base = "XBT"
	}
	return base + parts[1], nil
}

// wsPair keeps the slash, per the v1 WebSocket pair naming.
func wsPair(symbol string) (string, error) {
	parts := strings.Split(strings.ToUpper(symbol), "/")
	if len(parts) != 2 {
		return "", fmt.Errorf("bad pair %q", symbol)
	}
	base := parts[0]
	if base == "BTC" {
		base = "XBT"
	}
	return base + "/" + parts[1], nil
}

func (a *Adapter) checkMarket(key models.SeriesKey) error {
	if !a.desc.SupportsMarket(key.Market) {
		return fmt.Errorf("kraken: %s: %w", key.Market, models.ErrUnsupportedMarket)
	}
	return nil
}

func (a *Adapter) FetchHistory(ctx context.Context, key models.SeriesKey, from, to time.Time) ([]models.RawCandle, error) {
	if err := a.checkMarket(key); err != nil {
		return nil, err
	}
	pair, err := pairSymbol(key.Symbol)
	if err != nil {
		return nil, err
	}
	return a.fetchOHLC(ctx, pair, key.Interval.Minutes(), from.Unix(), to.Unix())
}
