package provider

import (
	"testing"

	"CandleFeed/internal/domain/models"
	"CandleFeed/pkg/config"
	xhttp "CandleFeed/pkg/http"
	"CandleFeed/pkg/logger"
)

func testRegistry(t *testing.T, mutate func(*config.Config)) *Registry {
	t.Helper()
	cfg := &config.Config{Environment: "test"}
	cfg.Providers.AlphaVantage.APIKey = "demo"
	cfg.Providers.Finnhub.APIKey = "demo"
	cfg.Router.CryptoChain = []string{"binance", "kraken", "coinbase"}
	cfg.Router.StocksChain = []string{"finnhub", "alpha_vantage"}
	if mutate != nil {
		mutate(cfg)
	}
	log, err := logger.New(&logger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return NewRegistry(cfg, xhttp.NewClient(), log)
}

func TestKeylessProviderDroppedFromChain(t *testing.T) {
	reg := testRegistry(t, func(cfg *config.Config) {
		cfg.Providers.AlphaVantage.APIKey = ""
	})

	chain := reg.Chain(models.MarketStocks)
	if len(chain) != 1 || chain[0] != "finnhub" {
		t.Fatalf("expected chain [finnhub], got %v", chain)
	}
	// The adapter is still constructed and addressable by pin.
	if _, ok := reg.Get("alpha_vantage"); !ok {
		t.Fatalf("keyless provider must remain registered")
	}
}

func TestStreamerCapabilityGate(t *testing.T) {
	reg := testRegistry(t, nil)

	if _, ok := reg.Streamer("binance"); !ok {
		t.Fatalf("binance should stream")
	}
	if _, ok := reg.Streamer("coinbase"); ok {
		t.Fatalf("coinbase declares no streaming capability")
	}
	if _, ok := reg.Streamer("nope"); ok {
		t.Fatalf("unknown provider cannot stream")
	}
}
