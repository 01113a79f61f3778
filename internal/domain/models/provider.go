package models

import (
	"regexp"
	"strings"
	"time"
)

// Quota is a provider's request budget: calls per rolling window.
type Quota struct {
	Calls  int           `json:"calls"`
	Window time.Duration `json:"window"`
}

// RefillPerSec returns the continuous token refill rate.
func (q Quota) RefillPerSec() float64 {
	if q.Calls <= 0 || q.Window <= 0 {
		return 0
	}
	return float64(q.Calls) / q.Window.Seconds()
}

// Capabilities declares which operations a provider implements.
type Capabilities struct {
	History   bool `json:"history"`
	Streaming bool `json:"streaming"`
}

// ProviderDescriptor is the static configuration of one upstream source.
// Loaded once at startup, immutable at runtime.
type ProviderDescriptor struct {
	ID           string       `json:"id"`
	Markets      []Market     `json:"markets"`
	Quota        Quota        `json:"quota"`
	Priority     int          `json:"priority"`
	Capabilities Capabilities `json:"capabilities"`
}

// SupportsMarket returns true if the provider declares support for m.
func (d ProviderDescriptor) SupportsMarket(m Market) bool {
	for _, sm := range d.Markets {
		if sm == m {
			return true
		}
	}
	return false
}

var (
	cryptoSymbolRe = regexp.MustCompile(`^[A-Z0-9]{2,10}/[A-Z]{2,6}$`)
	stockSymbolRe  = regexp.MustCompile(`^[A-Z]{1,5}(\.[A-Z])?$`)

	// Quote currencies recognized when splitting slashless pairs. Longer
	// suffixes first so BTCUSDT resolves to BTC/USDT, not BTCUS/DT.
	quoteSuffixes = []string{"USDT", "USDC", "USD", "EUR", "GBP", "JPY", "BTC", "ETH"}
)

// NormalizeSymbol canonicalizes user input for a market. Crypto pairs come in
// both BTC/USD and BTCUSD forms; the slashless form is split against the
// known quote suffixes so every downstream key uses BASE/QUOTE.
func NormalizeSymbol(symbol string, market Market) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if market != MarketCrypto || strings.Contains(s, "/") {
		return s
	}
	for _, q := range quoteSuffixes {
		if strings.HasSuffix(s, q) && len(s) >= len(q)+2 {
			return s[:len(s)-len(q)] + "/" + q
		}
	}
	return s
}

// ValidSymbol checks the symbol shape for a market before any provider is
// consulted. Crypto pairs are BASE/QUOTE ("BTC/USD", accepted slashless as
// "BTCUSD"); equities are plain tickers ("AAPL", "BRK.B").
func ValidSymbol(symbol string, market Market) bool {
	s := NormalizeSymbol(symbol, market)
	switch market {
	case MarketCrypto:
		return cryptoSymbolRe.MatchString(s)
	case MarketStocks:
		return stockSymbolRe.MatchString(s)
	}
	return false
}
