package stream

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"CandleFeed/internal/domain/models"
	"CandleFeed/pkg/logger"
)

// feed runs the live pipeline for one series key: connect, bucket ticks
// into interval candles, fan out to subscribers, reconnect on drop.
type feed struct {
	m      *Manager
	key    models.SeriesKey
	ctx    context.Context
	cancel context.CancelFunc

	state atomic.Int32

	mu      sync.Mutex
	subs    map[int]*subscriber
	nextID  int
	done    bool
	closed  []models.Candle
	current *models.Candle
	source  string
}

func newFeed(m *Manager, key models.SeriesKey) *feed {
	ctx, cancel := context.WithCancel(context.Background())
	return &feed{
		m:      m,
		key:    key,
		ctx:    ctx,
		cancel: cancel,
		subs:   make(map[int]*subscriber),
	}
}

func (f *feed) currentState() State { return State(f.state.Load()) }

func (f *feed) setState(s State) { f.state.Store(int32(s)) }

// subscribe attaches a consumer. Returns nil when the feed has already shut
// down; the caller must start a fresh feed instead of joining a dead one.
func (f *feed) subscribe() *Subscription {
	f.mu.Lock()
	if f.done {
		f.mu.Unlock()
		return nil
	}
	id := f.nextID
	f.nextID++
	sub := &subscriber{ch: make(chan Update, f.m.opts.SubscriberBuf)}
	f.subs[id] = sub
	n := len(f.subs)
	f.mu.Unlock()

	f.m.metrics.SetSubscribers(f.key.String(), n)
	var once sync.Once
	return &Subscription{
		C:      sub.ch,
		cancel: func() { once.Do(func() { f.unsubscribe(id) }) },
	}
}

func (f *feed) unsubscribe(id int) {
	f.mu.Lock()
	delete(f.subs, id)
	n := len(f.subs)
	f.mu.Unlock()

	f.m.metrics.SetSubscribers(f.key.String(), n)
	if n == 0 {
		f.terminate()
	}
}

func (f *feed) backlog(n int) []models.Candle {
	f.mu.Lock()
	defer f.mu.Unlock()
	if n > len(f.closed) {
		n = len(f.closed)
	}
	out := make([]models.Candle, n)
	copy(out, f.closed[len(f.closed)-n:])
	return out
}

func (f *feed) subscriberCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

func (f *feed) terminate() { f.cancel() }

// run owns the connection loop. Reconnects back off exponentially; a
// provider failing continuously past the failover window is abandoned for
// the next streaming provider in the chain.
func (f *feed) run() {
	defer f.finish()

	chain := f.streamChain()
	if len(chain) == 0 {
		return
	}

	idx := 0
	failures := 0
	var failingSince time.Time

	for {
		if f.ctx.Err() != nil {
			return
		}
		id := chain[idx]
		s, ok := f.m.providers.Streamer(id)
		if !ok {
			idx = (idx + 1) % len(chain)
			continue
		}

		if failures == 0 {
			f.setState(StateConnecting)
		} else {
			f.setState(StateReconnecting)
		}

		ticks, errs, err := s.OpenStream(f.ctx, f.key)
		if err != nil {
			failures++
			f.m.metrics.RecordReconnect(id)
			f.setState(StateDegraded)
			if failingSince.IsZero() {
				failingSince = time.Now()
			}
			if time.Since(failingSince) >= f.m.opts.FailoverAfter && len(chain) > 1 {
				f.m.log.Warn("stream failover",
					logger.String("series", f.key.String()),
					logger.String("from", id),
					logger.String("to", chain[(idx+1)%len(chain)]))
				idx = (idx + 1) % len(chain)
				failures = 0
				failingSince = time.Time{}
				continue
			}
			delay := backoffDelay(f.m.opts.BackoffBase, f.m.opts.BackoffCap, failures-1)
			if f.m.sleep(f.ctx, delay) != nil {
				return
			}
			continue
		}

		failures = 0
		failingSince = time.Time{}
		f.setState(StateConnected)
		f.mu.Lock()
		f.source = id
		f.mu.Unlock()
		f.m.log.Info("stream connected",
			logger.String("series", f.key.String()),
			logger.String("provider", id))

		if !f.consume(ticks, errs, id) {
			return
		}
		// Connection dropped; count it as a failure and go around.
		failures = 1
		failingSince = time.Now()
		f.m.metrics.RecordReconnect(id)
		f.setState(StateDegraded)
		if f.m.sleep(f.ctx, f.m.opts.BackoffBase) != nil {
			return
		}
	}
}

// consume drains a connection. Returns false when the feed is shutting
// down, true when the transport dropped and a reconnect should follow.
func (f *feed) consume(ticks <-chan models.Tick, errs <-chan error, source string) bool {
	for {
		select {
		case <-f.ctx.Done():
			return false
		case tick, ok := <-ticks:
			if !ok {
				return true
			}
			f.applyTick(tick, source)
		case err, ok := <-errs:
			if !ok {
				return true
			}
			if err != nil {
				f.m.log.Warn("stream error",
					logger.String("series", f.key.String()),
					logger.String("provider", source),
					logger.Error(err))
				f.m.metrics.RecordError("stream")
			}
			return true
		}
	}
}

// applyTick folds a trade into the current interval bucket. A tick landing
// past the bucket boundary finalizes the candle being built and opens the
// next one; ticks older than the current bucket are discarded.
func (f *feed) applyTick(tick models.Tick, source string) {
	bucket := f.key.Interval.Bucket(tick.Time)

	f.mu.Lock()
	var finalized *models.Candle
	switch {
	case f.current == nil:
		f.current = newCandle(bucket, tick)
	case bucket.After(f.current.Time):
		done := *f.current
		finalized = &done
		f.closed = append(f.closed, done)
		if len(f.closed) > f.m.opts.MaxLiveCandles {
			f.closed = f.closed[1:]
		}
		f.current = newCandle(bucket, tick)
	case bucket.Before(f.current.Time):
		f.mu.Unlock()
		return
	default:
		c := f.current
		if tick.Price > c.High {
			c.High = tick.Price
		}
		if tick.Price < c.Low {
			c.Low = tick.Price
		}
		c.Close = tick.Price
		c.Volume += tick.Volume
	}
	live := *f.current
	f.mu.Unlock()

	f.m.metrics.RecordLastPrice(f.key.Symbol, tick.Price)

	if finalized != nil {
		f.fanout(Update{Key: f.key, Candle: *finalized, Closed: true, Source: source})
		if f.m.publisher != nil {
			if err := f.m.publisher.PublishCandle(f.ctx, f.key, *finalized); err != nil {
				f.m.log.Warn("publish candle failed",
					logger.String("series", f.key.String()),
					logger.Error(err))
			}
		}
	}
	f.fanout(Update{Key: f.key, Candle: live, Closed: false, Source: source})
}

func newCandle(bucket time.Time, tick models.Tick) *models.Candle {
	return &models.Candle{
		Time:   bucket,
		Open:   tick.Price,
		High:   tick.Price,
		Low:    tick.Price,
		Close:  tick.Price,
		Volume: tick.Volume,
	}
}

func (f *feed) fanout(u Update) {
	f.mu.Lock()
	subs := make([]*subscriber, 0, len(f.subs))
	for _, s := range f.subs {
		subs = append(subs, s)
	}
	f.mu.Unlock()
	for _, s := range subs {
		s.push(u)
	}
}

// finish freezes the accumulated closed candles into the cache and
// unregisters the feed.
func (f *feed) finish() {
	f.setState(StateTerminated)

	f.mu.Lock()
	f.done = true
	candles := f.closed
	f.closed = nil
	source := f.source
	for _, s := range f.subs {
		close(s.ch)
	}
	f.subs = make(map[int]*subscriber)
	f.mu.Unlock()

	if len(candles) > 0 {
		f.m.cache.Freeze(&models.Series{Key: f.key, Source: source, Candles: candles})
	}
	f.m.dropFeed(f)
	f.m.log.Info("stream closed", logger.String("series", f.key.String()))
}

func (f *feed) streamChain() []string {
	chain := f.m.providers.Chain(f.key.Market)
	out := make([]string, 0, len(chain))
	for _, id := range chain {
		if _, ok := f.m.providers.Streamer(id); ok {
			out = append(out, id)
		}
	}
	return out
}
