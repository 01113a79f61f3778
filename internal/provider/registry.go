package provider

import (
	"time"

	"CandleFeed/internal/domain/models"
	"CandleFeed/internal/domain/repository"
	"CandleFeed/internal/provider/alphavantage"
	"CandleFeed/internal/provider/binance"
	"CandleFeed/internal/provider/coinbase"
	"CandleFeed/internal/provider/finnhub"
	"CandleFeed/internal/provider/kraken"
	"CandleFeed/pkg/config"
	xhttp "CandleFeed/pkg/http"
	"CandleFeed/pkg/logger"
)

// Registry holds the constructed provider adapters plus the per-market
// fallback chains. Providers whose API key is missing are built but excluded
// from the chains, so a misconfigured key degrades to the next source
// instead of failing every request.
type Registry struct {
	providers map[string]repository.Provider
	chains    map[models.Market][]string
}

func quota(pc config.ProviderConfig) models.Quota {
	if pc.QuotaCalls == 0 {
		return models.Quota{}
	}
	w := pc.QuotaWindow
	if w == 0 {
		w = time.Minute
	}
	return models.Quota{Calls: pc.QuotaCalls, Window: w}
}

// NewRegistry constructs every adapter from config.
func NewRegistry(cfg *config.Config, client *xhttp.Client, log *logger.Logger) *Registry {
	p := cfg.Providers
	providers := map[string]repository.Provider{
		"binance": binance.New(binance.Config{
			RESTURL:  p.Binance.RESTURL,
			WSURL:    p.Binance.WSURL,
			Quota:    quota(p.Binance),
			Priority: p.Binance.Priority,
		}, client),
		"kraken": kraken.New(kraken.Config{
			RESTURL:  p.Kraken.RESTURL,
			WSURL:    p.Kraken.WSURL,
			Quota:    quota(p.Kraken),
			Priority: p.Kraken.Priority,
		}, client),
		"coinbase": coinbase.New(coinbase.Config{
			RESTURL:  p.Coinbase.RESTURL,
			Quota:    quota(p.Coinbase),
			Priority: p.Coinbase.Priority,
		}, client),
		"alpha_vantage": alphavantage.New(alphavantage.Config{
			RESTURL:  p.AlphaVantage.RESTURL,
			APIKey:   p.AlphaVantage.APIKey,
			Quota:    quota(p.AlphaVantage),
			Priority: p.AlphaVantage.Priority,
		}, client),
		"finnhub": finnhub.New(finnhub.Config{
			RESTURL:  p.Finnhub.RESTURL,
			WSURL:    p.Finnhub.WSURL,
			APIKey:   p.Finnhub.APIKey,
			Quota:    quota(p.Finnhub),
			Priority: p.Finnhub.Priority,
		}, client),
	}

	keyed := map[string]string{
		"alpha_vantage": p.AlphaVantage.APIKey,
		"finnhub":       p.Finnhub.APIKey,
	}

	chains := map[models.Market][]string{
		models.MarketCrypto: filterChain(cfg.Router.CryptoChain, keyed, log),
		models.MarketStocks: filterChain(cfg.Router.StocksChain, keyed, log),
	}

	return &Registry{providers: providers, chains: chains}
}

func filterChain(chain []string, keyed map[string]string, log *logger.Logger) []string {
	out := make([]string, 0, len(chain))
	for _, id := range chain {
		if key, needsKey := keyed[id]; needsKey && key == "" {
			log.Warn("provider excluded from chain, no API key", logger.String("provider", id))
			continue
		}
		out = append(out, id)
	}
	return out
}

// Get returns the adapter by id.
func (r *Registry) Get(id string) (repository.Provider, bool) {
	p, ok := r.providers[id]
	return p, ok
}

// Chain returns the configured fallback order for a market.
func (r *Registry) Chain(market models.Market) []string {
	return r.chains[market]
}

// Streamer returns the adapter as a Streamer if it declares the capability.
func (r *Registry) Streamer(id string) (repository.Streamer, bool) {
	p, ok := r.providers[id]
	if !ok || !p.Descriptor().Capabilities.Streaming {
		return nil, false
	}
	s, ok := p.(repository.Streamer)
	return s, ok
}

// All returns every constructed provider keyed by id.
func (r *Registry) All() map[string]repository.Provider {
	return r.providers
}
