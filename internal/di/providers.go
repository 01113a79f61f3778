package di

import (
	"fmt"
	"time"

	"CandleFeed/internal/domain/repository"
	"CandleFeed/internal/handler/api"
	"CandleFeed/internal/provider"
	internalrepo "CandleFeed/internal/repository"
	"CandleFeed/internal/router"
	"CandleFeed/internal/service/cache"
	"CandleFeed/internal/service/ratelimit"
	"CandleFeed/internal/stream"
	"CandleFeed/internal/usecase"
	"CandleFeed/pkg/config"
	xhttp "CandleFeed/pkg/http"
	pkgkafka "CandleFeed/pkg/kafka"
	"CandleFeed/pkg/logger"
	"CandleFeed/pkg/metrics"
	"CandleFeed/pkg/server"
)

// ProvideLogger creates the application logger with the in-memory error
// collector attached for the health endpoint.
func ProvideLogger(cfg *config.Config, recent *logger.MemoryPublisher) (*logger.Logger, error) {
	level := "info"
	format := "json"
	if cfg.Environment == "development" {
		level = "debug"
		format = "console"
	}
	l, err := logger.New(&logger.Config{Level: level, Format: format, Output: "stdout"})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	l.AddCollector(&logger.CollectionConfig{
		TimeInterval:   30 * time.Second,
		CountThreshold: 100,
		Topic:          "errors",
		Publisher:      recent,
	})
	return l, nil
}

// ProvideMemoryPublisher creates the recent-error ring.
func ProvideMemoryPublisher() *logger.MemoryPublisher {
	return logger.NewMemoryPublisher(50)
}

// ProvideHTTPClient creates the shared outbound HTTP client.
func ProvideHTTPClient(cfg *config.Config) *xhttp.Client {
	timeout := cfg.Router.FetchTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return xhttp.NewClient(xhttp.WithTimeout(timeout))
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideRedisCache creates the second-level cache, nil when disabled.
func ProvideRedisCache(cfg *config.Config) *cache.RedisCache {
	if !cfg.Redis.Enabled {
		return nil
	}
	return cache.NewRedisCache(cache.RedisConfig{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

// ProvideSeriesStore creates the in-process series cache.
func ProvideSeriesStore(redis *cache.RedisCache) *cache.SeriesStore {
	if redis == nil {
		return cache.NewSeriesStore(nil)
	}
	return cache.NewSeriesStore(redis)
}

// ProvideRegistry constructs all provider adapters.
func ProvideRegistry(cfg *config.Config, client *xhttp.Client, log *logger.Logger) *provider.Registry {
	return provider.NewRegistry(cfg, client, log)
}

// ProvideLimiter creates the shared rate limiter with one bucket per
// provider that declares a quota.
func ProvideLimiter(cfg *config.Config, reg *provider.Registry) *ratelimit.Limiter {
	l := ratelimit.New(cfg.Router.AcquireMaxWait)
	for id, p := range reg.All() {
		if q := p.Descriptor().Quota; q.Calls > 0 {
			l.Register(id, q)
		}
	}
	return l
}

// ProvideRouter creates the provider-selection router.
func ProvideRouter(
	reg *provider.Registry,
	limiter *ratelimit.Limiter,
	store *cache.SeriesStore,
	m repository.Metrics,
	log *logger.Logger,
	cfg *config.Config,
) *router.Router {
	return router.New(reg, limiter, store, m, log, router.Options{
		FetchTimeout:  cfg.Router.FetchTimeout,
		MaxConcurrent: cfg.Router.MaxConcurrent,
	})
}

// ProvideCandlePublisher creates the Kafka closed-candle publisher, nil when
// Kafka is disabled.
func ProvideCandlePublisher(cfg *config.Config) (repository.CandlePublisher, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return internalrepo.NewKafkaCandlePublisher(producer, cfg.Kafka.Topic), nil
}

// ProvideStreamManager creates the live stream manager.
func ProvideStreamManager(
	reg *provider.Registry,
	store *cache.SeriesStore,
	publisher repository.CandlePublisher,
	m repository.Metrics,
	log *logger.Logger,
	cfg *config.Config,
) *stream.Manager {
	return stream.NewManager(reg, store, publisher, m, log, stream.Options{
		BackoffBase:    cfg.Stream.BackoffBase,
		BackoffCap:     cfg.Stream.BackoffCap,
		FailoverAfter:  cfg.Stream.FailoverAfter,
		SubscriberBuf:  cfg.Stream.SubscriberBuf,
		MaxLiveCandles: cfg.Stream.MaxLiveCandles,
	})
}

// ProvideHistoryUseCase creates the history use case.
func ProvideHistoryUseCase(r *router.Router) *usecase.HistoryUseCase {
	return usecase.NewHistoryUseCase(r)
}

// ProvideIndicatorsUseCase creates the indicators use case.
func ProvideIndicatorsUseCase(r *router.Router, store *cache.SeriesStore) *usecase.IndicatorsUseCase {
	return usecase.NewIndicatorsUseCase(r, store)
}

// ProvideFeedHandler creates the HTTP handler.
func ProvideFeedHandler(
	log *logger.Logger,
	history *usecase.HistoryUseCase,
	indicators *usecase.IndicatorsUseCase,
	r *router.Router,
	reg *provider.Registry,
	streams *stream.Manager,
	recent *logger.MemoryPublisher,
) xhttp.Handler {
	return api.NewFeedHandler(log, history, indicators, r, reg.All(), streams, recent)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	log *logger.Logger,
	handler xhttp.Handler,
	streams *stream.Manager,
	publisher repository.CandlePublisher,
	redis *cache.RedisCache,
) *server.App {
	return server.New(cfg, log, handler, streams, publisher, redis)
}
