package stream

import (
	"context"
	"testing"
	"time"

	"CandleFeed/internal/domain/models"
	"CandleFeed/internal/domain/repository"
	"CandleFeed/pkg/logger"
)

var testKey = models.SeriesKey{Symbol: "BTC/USD", Market: models.MarketCrypto, Interval: models.Interval5m}

type fakeStreamer struct {
	id    string
	calls int
	open  func(call int) (<-chan models.Tick, <-chan error, error)
}

func (f *fakeStreamer) Descriptor() models.ProviderDescriptor {
	return models.ProviderDescriptor{
		ID:           f.id,
		Markets:      []models.Market{models.MarketCrypto},
		Capabilities: models.Capabilities{History: true, Streaming: true},
	}
}

func (f *fakeStreamer) FetchHistory(context.Context, models.SeriesKey, time.Time, time.Time) ([]models.RawCandle, error) {
	return nil, nil
}

func (f *fakeStreamer) OpenStream(ctx context.Context, key models.SeriesKey) (<-chan models.Tick, <-chan error, error) {
	f.calls++
	return f.open(f.calls)
}

type fakeSet struct {
	streamers map[string]*fakeStreamer
	chain     []string
}

func (s *fakeSet) Streamer(id string) (repository.Streamer, bool) {
	st, ok := s.streamers[id]
	return st, ok
}

func (s *fakeSet) Chain(models.Market) []string { return s.chain }

type fakeCache struct {
	frozen chan *models.Series
}

func (c *fakeCache) GetSeries(string) (*models.Series, bool)           { return nil, false }
func (c *fakeCache) SetSeries(string, *models.Series, time.Duration)   {}
func (c *fakeCache) Freeze(s *models.Series)                           { c.frozen <- s }

type nopMetrics struct{}

func (nopMetrics) RecordProviderRequest(string, string) {}
func (nopMetrics) RecordCacheHit(string)               {}
func (nopMetrics) RecordCacheMiss(string)              {}
func (nopMetrics) RecordRepair(string)                 {}
func (nopMetrics) RecordReconnect(string)              {}
func (nopMetrics) RecordError(string)                  {}
func (nopMetrics) RecordLastPrice(string, float64)     {}
func (nopMetrics) RecordLatency(string, float64)       {}
func (nopMetrics) SetSubscribers(string, int)          {}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(&logger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return log
}

func newTestManager(t *testing.T, set *fakeSet, cache *fakeCache, opts Options) *Manager {
	t.Helper()
	if cache == nil {
		cache = &fakeCache{frozen: make(chan *models.Series, 1)}
	}
	return NewManager(set, cache, nil, nopMetrics{}, testLogger(t), opts)
}

func at(clock string) time.Time {
	t, err := time.Parse("2006-01-02 15:04:05", "2024-03-01 "+clock)
	if err != nil {
		panic(err)
	}
	return t.UTC()
}

func TestTickBucketBoundary(t *testing.T) {
	m := newTestManager(t, &fakeSet{}, nil, Options{})
	f := newFeed(m, testKey)

	// 09:31:15 belongs to the 09:30 five-minute bucket.
	f.applyTick(models.Tick{Symbol: "BTC/USD", Price: 100, Volume: 1, Time: at("09:31:15")}, "test")
	f.applyTick(models.Tick{Symbol: "BTC/USD", Price: 105, Volume: 2, Time: at("09:33:00")}, "test")

	f.mu.Lock()
	cur := *f.current
	f.mu.Unlock()
	if !cur.Time.Equal(at("09:30:00")) {
		t.Fatalf("expected bucket 09:30:00, got %v", cur.Time)
	}
	if cur.Open != 100 || cur.Close != 105 || cur.High != 105 || cur.Volume != 3 {
		t.Fatalf("bad aggregation: %+v", cur)
	}

	// Crossing into 09:35 finalizes the 09:30 candle.
	f.applyTick(models.Tick{Symbol: "BTC/USD", Price: 99, Volume: 1, Time: at("09:35:01")}, "test")

	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.closed) != 1 {
		t.Fatalf("expected 1 closed candle, got %d", len(f.closed))
	}
	if !f.closed[0].Time.Equal(at("09:30:00")) || f.closed[0].Close != 105 {
		t.Fatalf("bad closed candle: %+v", f.closed[0])
	}
	if !f.current.Time.Equal(at("09:35:00")) || f.current.Open != 99 {
		t.Fatalf("bad new bucket: %+v", f.current)
	}
}

func TestStaleTickIgnored(t *testing.T) {
	m := newTestManager(t, &fakeSet{}, nil, Options{})
	f := newFeed(m, testKey)

	f.applyTick(models.Tick{Price: 100, Volume: 1, Time: at("09:36:00")}, "test")
	f.applyTick(models.Tick{Price: 50, Volume: 1, Time: at("09:29:00")}, "test")

	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.closed) != 0 || f.current.Low != 100 {
		t.Fatalf("stale tick must not touch state: %+v", f.current)
	}
}

func TestBackoffSequence(t *testing.T) {
	if got := backoffDelay(time.Second, 30*time.Second, 0); got != time.Second {
		t.Fatalf("k=0: got %v", got)
	}
	if got := backoffDelay(time.Second, 30*time.Second, 3); got != 8*time.Second {
		t.Fatalf("k=3: got %v", got)
	}
	if got := backoffDelay(time.Second, 30*time.Second, 10); got != 30*time.Second {
		t.Fatalf("k=10 must cap at 30s: got %v", got)
	}
}

func TestReconnectBacksOff(t *testing.T) {
	st := &fakeStreamer{
		id: "binance",
		open: func(int) (<-chan models.Tick, <-chan error, error) {
			return nil, nil, models.ErrProviderUnavailable
		},
	}
	set := &fakeSet{streamers: map[string]*fakeStreamer{"binance": st}, chain: []string{"binance"}}
	m := newTestManager(t, set, nil, Options{})

	delays := make(chan time.Duration, 8)
	m.sleep = func(ctx context.Context, d time.Duration) error {
		delays <- d
		if len(delays) >= 4 {
			return context.Canceled
		}
		return nil
	}

	sub, err := m.Subscribe(testKey)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Cancel()

	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second}
	for i, w := range want {
		select {
		case d := <-delays:
			if d != w {
				t.Fatalf("delay %d: got %v want %v", i, d, w)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for delay %d", i)
		}
	}
}

func TestFailoverToNextStreamer(t *testing.T) {
	ticks := make(chan models.Tick)
	errs := make(chan error)
	broken := &fakeStreamer{
		id: "binance",
		open: func(int) (<-chan models.Tick, <-chan error, error) {
			return nil, nil, models.ErrProviderUnavailable
		},
	}
	healthy := &fakeStreamer{
		id: "kraken",
		open: func(int) (<-chan models.Tick, <-chan error, error) {
			return ticks, errs, nil
		},
	}
	set := &fakeSet{
		streamers: map[string]*fakeStreamer{"binance": broken, "kraken": healthy},
		chain:     []string{"binance", "kraken"},
	}
	m := newTestManager(t, set, nil, Options{FailoverAfter: time.Nanosecond})
	m.sleep = func(context.Context, time.Duration) error { return nil }

	sub, err := m.Subscribe(testKey)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Cancel()

	ticks <- models.Tick{Symbol: "BTC/USD", Price: 42, Volume: 1, Time: at("10:00:01")}
	select {
	case u := <-sub.C:
		if u.Source != "kraken" {
			t.Fatalf("expected failover to kraken, got %s", u.Source)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no update after failover")
	}
}

func TestDropOldestOnSlowSubscriber(t *testing.T) {
	m := newTestManager(t, &fakeSet{}, nil, Options{SubscriberBuf: 2})
	f := newFeed(m, testKey)
	sub := f.subscribe()

	for i := 0; i < 5; i++ {
		f.applyTick(models.Tick{Price: float64(100 + i), Volume: 1, Time: at("09:30:05").Add(time.Duration(i) * time.Second)}, "test")
	}

	// Buffer holds the two newest live updates; the rest were dropped.
	var last Update
	for i := 0; i < 2; i++ {
		select {
		case last = <-sub.C:
		default:
			t.Fatalf("expected buffered update %d", i)
		}
	}
	if last.Candle.Close != 104 {
		t.Fatalf("expected newest update last, got close %v", last.Candle.Close)
	}
	select {
	case <-sub.C:
		t.Fatalf("buffer should have been drained")
	default:
	}
}

func TestSubscribeAfterTerminationStartsFreshFeed(t *testing.T) {
	ticks := make(chan models.Tick)
	errs := make(chan error)
	st := &fakeStreamer{
		id: "binance",
		open: func(int) (<-chan models.Tick, <-chan error, error) {
			return ticks, errs, nil
		},
	}
	set := &fakeSet{streamers: map[string]*fakeStreamer{"binance": st}, chain: []string{"binance"}}
	m := newTestManager(t, set, nil, Options{})

	// Model the shutdown window: a feed that already finished but is still
	// registered because its unregister has not landed yet.
	dead := newFeed(m, testKey)
	dead.finish()
	m.mu.Lock()
	m.feeds[testKey.String()] = dead
	m.mu.Unlock()

	if sub := dead.subscribe(); sub != nil {
		t.Fatalf("finished feed must refuse subscribers")
	}

	sub, err := m.Subscribe(testKey)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Cancel()

	m.mu.Lock()
	replacement := m.feeds[testKey.String()]
	m.mu.Unlock()
	if replacement == dead {
		t.Fatalf("dead feed still registered")
	}

	ticks <- models.Tick{Symbol: "BTC/USD", Price: 100, Volume: 1, Time: at("09:31:00")}
	select {
	case u := <-sub.C:
		if u.Candle.Close != 100 {
			t.Fatalf("unexpected update: %+v", u)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("replacement feed never delivered")
	}
}

func TestFanoutSameSequenceToAllSubscribers(t *testing.T) {
	m := newTestManager(t, &fakeSet{}, nil, Options{})
	f := newFeed(m, testKey)
	a := f.subscribe()
	b := f.subscribe()

	f.applyTick(models.Tick{Price: 100, Volume: 1, Time: at("09:31:00")}, "test")
	f.applyTick(models.Tick{Price: 101, Volume: 1, Time: at("09:32:00")}, "test")
	f.applyTick(models.Tick{Price: 102, Volume: 1, Time: at("09:36:00")}, "test")

	// live, live, closed(09:30), live(09:35) for both.
	for i := 0; i < 4; i++ {
		var ua, ub Update
		select {
		case ua = <-a.C:
		default:
			t.Fatalf("subscriber a missing update %d", i)
		}
		select {
		case ub = <-b.C:
		default:
			t.Fatalf("subscriber b missing update %d", i)
		}
		if ua.Closed != ub.Closed || ua.Candle.Close != ub.Candle.Close || !ua.Candle.Time.Equal(ub.Candle.Time) {
			t.Fatalf("update %d diverged: %+v vs %+v", i, ua, ub)
		}
	}
}

func TestFreezeOnLastUnsubscribe(t *testing.T) {
	ticks := make(chan models.Tick)
	errs := make(chan error)
	st := &fakeStreamer{
		id: "binance",
		open: func(int) (<-chan models.Tick, <-chan error, error) {
			return ticks, errs, nil
		},
	}
	set := &fakeSet{streamers: map[string]*fakeStreamer{"binance": st}, chain: []string{"binance"}}
	cache := &fakeCache{frozen: make(chan *models.Series, 1)}
	m := newTestManager(t, set, cache, Options{})

	sub, err := m.Subscribe(testKey)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	// Two ticks in different buckets give one closed candle.
	ticks <- models.Tick{Price: 100, Volume: 1, Time: at("09:31:00")}
	ticks <- models.Tick{Price: 101, Volume: 1, Time: at("09:36:00")}

	// Drain the three updates (live, closed, live) before cancelling.
	for i := 0; i < 3; i++ {
		select {
		case <-sub.C:
		case <-time.After(2 * time.Second):
			t.Fatalf("missing update %d", i)
		}
	}
	sub.Cancel()

	select {
	case s := <-cache.frozen:
		if len(s.Candles) != 1 || !s.Candles[0].Time.Equal(at("09:30:00")) {
			t.Fatalf("bad frozen series: %+v", s.Candles)
		}
		if s.Source != "binance" {
			t.Fatalf("expected source binance, got %s", s.Source)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("series was not frozen")
	}
}
