package repository

import (
	"context"
	"time"

	"CandleFeed/internal/domain/models"
)

// Provider is one upstream market-data source. Implementations translate the
// provider's wire format into the canonical series and never retry
// internally; retry and fallback policy belongs to the router and the
// streaming manager.
type Provider interface {
	Descriptor() models.ProviderDescriptor

	// FetchHistory returns raw candle rows for [from, to); the router runs
	// the normalizer on them so repairs are counted in one place. Fails with
	// models.ErrUnsupportedMarket outside the declared market set and
	// models.ErrProviderUnavailable on transport failure or deadline.
	FetchHistory(ctx context.Context, key models.SeriesKey, from, to time.Time) ([]models.RawCandle, error)
}

// Streamer is the optional live-stream capability of a Provider. Ticks are
// raw trade events; interval bucketing happens downstream in the streaming
// manager, provider-agnostic.
type Streamer interface {
	Provider

	// OpenStream connects and emits ticks until ctx is cancelled or the
	// transport drops, in which case the error channel receives the cause
	// and both channels are closed.
	OpenStream(ctx context.Context, key models.SeriesKey) (<-chan models.Tick, <-chan error, error)
}

// SeriesCache stores canonical series and derived indicator results under
// data-class TTLs. Expiry is lazy: expired entries are replaced on next
// access, never proactively swept.
type SeriesCache interface {
	GetSeries(key string) (*models.Series, bool)
	SetSeries(key string, s *models.Series, ttl time.Duration)

	// Freeze hands a live series buffer back as a historical entry when the
	// last stream subscriber leaves.
	Freeze(s *models.Series)
}

// CandlePublisher pushes finalized candles to downstream collaborators.
type CandlePublisher interface {
	PublishCandle(ctx context.Context, key models.SeriesKey, c models.Candle) error
	Close() error
}

// Metrics is the feed's observability port.
type Metrics interface {
	RecordProviderRequest(provider, outcome string)
	RecordCacheHit(kind string)
	RecordCacheMiss(kind string)
	RecordRepair(provider string)
	RecordReconnect(provider string)
	RecordError(kind string)
	RecordLastPrice(symbol string, price float64)
	RecordLatency(op string, seconds float64)
	SetSubscribers(key string, n int)
}
