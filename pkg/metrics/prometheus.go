package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	providerReqs *prometheus.CounterVec
	cacheTotal   *prometheus.CounterVec
	repairsTotal *prometheus.CounterVec
	reconnects   *prometheus.CounterVec
	errorsTotal  *prometheus.CounterVec
	lastPrice    *prometheus.GaugeVec
	latency      *prometheus.HistogramVec
	subscribers  *prometheus.GaugeVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		providerReqs: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "candlefeed_provider_requests_total",
				Help: "Upstream provider requests by outcome",
			},
			[]string{"provider", "outcome"},
		),
		cacheTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "candlefeed_cache_requests_total",
				Help: "Cache lookups by kind and result",
			},
			[]string{"kind", "result"},
		),
		repairsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "candlefeed_candle_repairs_total",
				Help: "Candles whose OHLC envelope needed widening",
			},
			[]string{"provider"},
		),
		reconnects: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "candlefeed_stream_reconnects_total",
				Help: "Live stream reconnect attempts",
			},
			[]string{"provider"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "candlefeed_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		lastPrice: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "candlefeed_last_price",
				Help: "Last recorded price for a symbol",
			},
			[]string{"symbol"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "candlefeed_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		subscribers: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "candlefeed_stream_subscribers",
				Help: "Subscribers per live series",
			},
			[]string{"series"},
		),
	}
}

// RecordProviderRequest records one upstream request and its outcome.
func (r *Recorder) RecordProviderRequest(provider, outcome string) {
	r.providerReqs.WithLabelValues(provider, outcome).Inc()
}

// RecordCacheHit records a cache hit for the given data kind.
func (r *Recorder) RecordCacheHit(kind string) {
	r.cacheTotal.WithLabelValues(kind, "hit").Inc()
}

// RecordCacheMiss records a cache miss for the given data kind.
func (r *Recorder) RecordCacheMiss(kind string) {
	r.cacheTotal.WithLabelValues(kind, "miss").Inc()
}

// RecordRepair records a repaired candle.
func (r *Recorder) RecordRepair(provider string) {
	r.repairsTotal.WithLabelValues(provider).Inc()
}

// RecordReconnect records a stream reconnect attempt.
func (r *Recorder) RecordReconnect(provider string) {
	r.reconnects.WithLabelValues(provider).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLastPrice records the last price for a symbol.
func (r *Recorder) RecordLastPrice(symbol string, price float64) {
	r.lastPrice.WithLabelValues(symbol).Set(price)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// SetSubscribers records the subscriber count for a live series.
func (r *Recorder) SetSubscribers(series string, n int) {
	r.subscribers.WithLabelValues(series).Set(float64(n))
}
