package stream

import (
	"time"

	"CandleFeed/internal/domain/models"
	"CandleFeed/internal/domain/repository"
)

// State is the lifecycle of one live feed.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateDegraded
	StateReconnecting
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDegraded:
		return "degraded"
	case StateReconnecting:
		return "reconnecting"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Update is one fan-out event. Closed marks a candle finalized by a tick
// crossing its interval boundary; otherwise the candle is the live bucket
// being built.
type Update struct {
	Key    models.SeriesKey `json:"-"`
	Candle models.Candle    `json:"candle"`
	Closed bool             `json:"closed"`
	Source string           `json:"source"`
}

// StreamerSet is the slice of the provider registry the manager needs.
type StreamerSet interface {
	Streamer(id string) (repository.Streamer, bool)
	Chain(market models.Market) []string
}

// Subscription is one consumer of a live feed. C delivers updates until
// Cancel is called; slow consumers lose their oldest undelivered updates
// rather than stalling the feed.
type Subscription struct {
	C      <-chan Update
	cancel func()
}

func (s *Subscription) Cancel() { s.cancel() }

type subscriber struct {
	ch chan Update
}

// push delivers without blocking. When the buffer is full the oldest update
// is discarded to make room; a live chart only cares about the latest state.
func (s *subscriber) push(u Update) {
	for {
		select {
		case s.ch <- u:
			return
		default:
			select {
			case <-s.ch:
			default:
			}
		}
	}
}

type Options struct {
	BackoffBase    time.Duration
	BackoffCap     time.Duration
	FailoverAfter  time.Duration
	SubscriberBuf  int
	MaxLiveCandles int
}

func (o *Options) defaults() {
	if o.BackoffBase == 0 {
		o.BackoffBase = time.Second
	}
	if o.BackoffCap == 0 {
		o.BackoffCap = 30 * time.Second
	}
	if o.FailoverAfter == 0 {
		o.FailoverAfter = 5 * time.Minute
	}
	if o.SubscriberBuf == 0 {
		o.SubscriberBuf = 64
	}
	if o.MaxLiveCandles == 0 {
		o.MaxLiveCandles = 500
	}
}

// backoffDelay is the reconnect delay for the given consecutive failure
// count: base doubled per failure, capped.
func backoffDelay(base, cap time.Duration, failures int) time.Duration {
	d := base
	for i := 0; i < failures; i++ {
		d *= 2
		if d >= cap {
			return cap
		}
	}
	if d > cap {
		return cap
	}
	return d
}
