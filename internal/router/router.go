package router

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"CandleFeed/internal/domain/models"
	"CandleFeed/internal/domain/repository"
	"CandleFeed/internal/normalize"
	"CandleFeed/internal/service/cache"
	"CandleFeed/internal/service/ratelimit"
	"CandleFeed/pkg/logger"
)

// ProviderSet is the slice of the provider registry the router needs.
type ProviderSet interface {
	Get(id string) (repository.Provider, bool)
	Chain(market models.Market) []string
}

type Options struct {
	FetchTimeout  time.Duration
	MaxConcurrent int
}

// Router walks the market's fallback chain until one provider yields a
// usable series. Each attempt checks the cache before spending a rate-limit
// token, so a warm cache never burns quota.
type Router struct {
	providers ProviderSet
	limiter   *ratelimit.Limiter
	cache     repository.SeriesCache
	metrics   repository.Metrics
	log       *logger.Logger

	fetchTimeout time.Duration
	sem          chan struct{}

	mu     sync.Mutex
	health map[string]*providerHealth
}

type providerHealth struct {
	consecutiveFailures int
	lastError           string
	lastErrorAt         time.Time
	lastSuccessAt       time.Time
	requests            int64
}

func New(providers ProviderSet, limiter *ratelimit.Limiter, seriesCache repository.SeriesCache, metrics repository.Metrics, log *logger.Logger, opts Options) *Router {
	if opts.FetchTimeout == 0 {
		opts.FetchTimeout = 10 * time.Second
	}
	if opts.MaxConcurrent == 0 {
		opts.MaxConcurrent = 8
	}
	return &Router{
		providers:    providers,
		limiter:      limiter,
		cache:        seriesCache,
		metrics:      metrics,
		log:          log,
		fetchTimeout: opts.FetchTimeout,
		sem:          make(chan struct{}, opts.MaxConcurrent),
		health:       make(map[string]*providerHealth),
	}
}

// GetHistory resolves a historical series. When pin names a provider, only
// that provider is tried and its failure is final.
func (r *Router) GetHistory(ctx context.Context, key models.SeriesKey, from, to time.Time, pin string) (*models.Series, error) {
	candidates := r.providers.Chain(key.Market)
	if pin != "" {
		candidates = []string{pin}
	}

	var attempts []models.ProviderFailure
	for _, id := range candidates {
		p, ok := r.providers.Get(id)
		if !ok || !p.Descriptor().SupportsMarket(key.Market) {
			continue
		}

		cacheKey := cache.HistoryKey(id, key, from, to)
		if s, ok := r.cache.GetSeries(cacheKey); ok {
			r.metrics.RecordCacheHit("history")
			return s, nil
		}
		r.metrics.RecordCacheMiss("history")

		s, err := r.attempt(ctx, p, key, from, to)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			reason := err.Error()
			var pf *models.ProviderFailure
			if errors.As(err, &pf) {
				reason = pf.Reason
			}
			attempts = append(attempts, models.ProviderFailure{Provider: id, Reason: reason})
			r.noteFailure(id, err)
			r.log.Warn("provider attempt failed",
				logger.String("provider", id),
				logger.String("series", key.String()),
				logger.Error(err))
			continue
		}

		r.noteSuccess(id)
		r.cache.SetSeries(cacheKey, s, cache.TTLForInterval(key.Interval))
		return s, nil
	}

	r.metrics.RecordError("data_unavailable")
	return nil, &models.DataUnavailableError{Key: key, Attempts: attempts}
}

// attempt runs one provider fetch under the concurrency bound and
// normalizes the payload. A partially usable payload counts as success.
func (r *Router) attempt(ctx context.Context, p repository.Provider, key models.SeriesKey, from, to time.Time) (*models.Series, error) {
	select {
	case r.sem <- struct{}{}:
		defer func() { <-r.sem }()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	id := p.Descriptor().ID
	if err := r.limiter.Acquire(ctx, id); err != nil {
		r.metrics.RecordProviderRequest(id, "rate_limited")
		return nil, err
	}

	fetchCtx, cancel := context.WithTimeout(ctx, r.fetchTimeout)
	defer cancel()

	start := time.Now()
	raw, err := p.FetchHistory(fetchCtx, key, from, to)
	r.metrics.RecordLatency("fetch_history", time.Since(start).Seconds())
	if err != nil {
		r.metrics.RecordProviderRequest(id, "error")
		return nil, err
	}
	if len(raw) == 0 {
		r.metrics.RecordProviderRequest(id, "empty")
		return nil, &models.ProviderFailure{Provider: id, Reason: "empty payload"}
	}

	s, rep, err := normalize.Series(key, id, raw)
	for i := 0; i < rep.Repaired; i++ {
		r.metrics.RecordRepair(id)
	}
	if err != nil {
		var nerr *models.NormalizationError
		if errors.As(err, &nerr) && s != nil && len(s.Candles) > 0 {
			// Usable remainder after dropping bad rows.
			r.metrics.RecordProviderRequest(id, "partial")
			return s, nil
		}
		r.metrics.RecordProviderRequest(id, "invalid")
		return nil, err
	}

	r.metrics.RecordProviderRequest(id, "success")
	return s, nil
}

func (r *Router) noteFailure(id string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h := r.healthFor(id)
	h.consecutiveFailures++
	h.lastError = err.Error()
	h.lastErrorAt = time.Now()
	h.requests++
}

func (r *Router) noteSuccess(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h := r.healthFor(id)
	h.consecutiveFailures = 0
	h.lastSuccessAt = time.Now()
	h.requests++
}

func (r *Router) healthFor(id string) *providerHealth {
	h, ok := r.health[id]
	if !ok {
		h = &providerHealth{}
		r.health[id] = h
	}
	return h
}

// Status reports per-provider health for the operator endpoint.
func (r *Router) Status(ids map[string]repository.Provider) []models.ProviderStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]models.ProviderStatus, 0, len(ids))
	for id, p := range ids {
		d := p.Descriptor()
		h := r.healthFor(id)
		out = append(out, models.ProviderStatus{
			ID:           id,
			Markets:      d.Markets,
			Capabilities: d.Capabilities,
			Priority:     d.Priority,
			Healthy:      h.consecutiveFailures < 3,
			Failures:     h.consecutiveFailures,
			TokensLeft:   r.limiter.Tokens(id),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
