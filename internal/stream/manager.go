package stream

import (
	"context"
	"fmt"
	"sync"
	"time"

	"CandleFeed/internal/domain/models"
	"CandleFeed/internal/domain/repository"
	"CandleFeed/pkg/logger"
)

// Manager owns one feed per series key. Feeds start on the first subscriber,
// survive transport drops through backoff and provider failover, and are
// torn down when the last subscriber leaves, freezing the accumulated
// candles into the cache.
type Manager struct {
	providers StreamerSet
	cache     repository.SeriesCache
	publisher repository.CandlePublisher
	metrics   repository.Metrics
	log       *logger.Logger
	opts      Options

	sleep func(ctx context.Context, d time.Duration) error

	mu    sync.Mutex
	feeds map[string]*feed
}

func NewManager(providers StreamerSet, cache repository.SeriesCache, publisher repository.CandlePublisher, metrics repository.Metrics, log *logger.Logger, opts Options) *Manager {
	opts.defaults()
	return &Manager{
		providers: providers,
		cache:     cache,
		publisher: publisher,
		metrics:   metrics,
		log:       log,
		opts:      opts,
		sleep:     sleepCtx,
		feeds:     make(map[string]*feed),
	}
}

// Subscribe attaches a consumer to the live feed for key, starting the feed
// if it is not running. Fails with models.ErrStreamingUnsupported when no
// provider in the market's chain can stream.
func (m *Manager) Subscribe(key models.SeriesKey) (*Subscription, error) {
	if !m.hasStreamer(key.Market) {
		return nil, fmt.Errorf("%s: %w", key.Market, models.ErrStreamingUnsupported)
	}

	for {
		m.mu.Lock()
		f, ok := m.feeds[key.String()]
		if !ok {
			f = newFeed(m, key)
			m.feeds[key.String()] = f
			go f.run()
		}
		m.mu.Unlock()

		if sub := f.subscribe(); sub != nil {
			return sub, nil
		}
		// Lost a race with the feed's shutdown; drop the dead entry and
		// start over with a fresh feed.
		m.mu.Lock()
		if m.feeds[key.String()] == f {
			delete(m.feeds, key.String())
		}
		m.mu.Unlock()
	}
}

// Backlog returns up to n of the newest closed candles accumulated by the
// feed for key, oldest first. Empty when the feed is not running.
func (m *Manager) Backlog(key models.SeriesKey, n int) []models.Candle {
	m.mu.Lock()
	f, ok := m.feeds[key.String()]
	m.mu.Unlock()
	if !ok || n <= 0 {
		return nil
	}
	return f.backlog(n)
}

// SubscriberCount reports total subscribers across feeds, for health output.
func (m *Manager) SubscriberCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, f := range m.feeds {
		n += f.subscriberCount()
	}
	return n
}

// FeedStates reports each running feed's state, for health output.
func (m *Manager) FeedStates() map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(m.feeds))
	for k, f := range m.feeds {
		out[k] = f.currentState().String()
	}
	return out
}

// Shutdown terminates every feed.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	feeds := make([]*feed, 0, len(m.feeds))
	for _, f := range m.feeds {
		feeds = append(feeds, f)
	}
	m.mu.Unlock()
	for _, f := range feeds {
		f.terminate()
	}
}

func (m *Manager) hasStreamer(market models.Market) bool {
	for _, id := range m.providers.Chain(market) {
		if _, ok := m.providers.Streamer(id); ok {
			return true
		}
	}
	return false
}

// dropFeed unregisters f, but only while the entry still points at f: a
// replacement feed may already occupy the key.
func (m *Manager) dropFeed(f *feed) {
	m.mu.Lock()
	if m.feeds[f.key.String()] == f {
		delete(m.feeds, f.key.String())
	}
	m.mu.Unlock()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
