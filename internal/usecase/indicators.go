package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"CandleFeed/internal/domain/models"
	"CandleFeed/internal/indicator"
	"CandleFeed/internal/router"
	"CandleFeed/internal/service/cache"
	"CandleFeed/pkg/util"
)

// IndicatorsUseCase computes derived series on top of routed history.
// Results are cached under the source series' data-class TTL, and each
// requested (series, indicator, params) keeps a live incremental tracker so
// a cache expiry only runs the state over candles it has not seen yet.
type IndicatorsUseCase struct {
	router *router.Router
	store  *cache.SeriesStore
	now    func() time.Time

	mu       sync.Mutex
	trackers map[string]*indicator.Tracker
}

func NewIndicatorsUseCase(r *router.Router, store *cache.SeriesStore) *IndicatorsUseCase {
	return &IndicatorsUseCase{
		router:   r,
		store:    store,
		now:      time.Now,
		trackers: make(map[string]*indicator.Tracker),
	}
}

type GetIndicatorsParams struct {
	Symbol   string
	Market   string
	Interval string
	Days     int
	Name     string
	Params   string
	Provider string
}

func (uc *IndicatorsUseCase) GetIndicators(ctx context.Context, p GetIndicatorsParams) (*models.IndicatorsResponse, error) {
	key, err := resolveKey(p.Symbol, p.Market, p.Interval)
	if err != nil {
		return nil, err
	}
	params, err := indicator.ParseParams(p.Params)
	if err != nil {
		return nil, err
	}
	if p.Days <= 0 {
		p.Days = 1
	}
	if p.Days > 365 {
		p.Days = 365
	}

	cacheKey := cache.IndicatorKey(key, p.Name, fmt.Sprintf("%s:%d", p.Params, p.Days))
	if r, ok := uc.store.GetIndicator(cacheKey); ok {
		return indicatorsResponse(key, p, r.Values), nil
	}

	to := uc.now().UTC()
	from, to := util.AlignRange(to.AddDate(0, 0, -p.Days), to, key.Interval.Duration())
	s, err := uc.router.GetHistory(ctx, key, from, to, p.Provider)
	if err != nil {
		return nil, err
	}

	values, err := uc.advance(cacheKey, p.Name, params, s.Candles)
	if err != nil {
		return nil, err
	}
	jf := make([]models.JSONFloat, len(values))
	for i, v := range values {
		jf[i] = models.JSONFloat(v)
	}

	uc.store.SetIndicator(cacheKey, &models.IndicatorResult{
		Key:    key,
		Name:   p.Name,
		Params: p.Params,
		Values: jf,
	}, cache.TTLForInterval(key.Interval))

	return indicatorsResponse(key, p, jf), nil
}

// advance runs the per-request tracker over the routed series. New candles
// run the incremental state; a corrected series makes the tracker replay.
func (uc *IndicatorsUseCase) advance(key, name string, params indicator.Params, candles []models.Candle) ([]float64, error) {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	t, ok := uc.trackers[key]
	if !ok {
		var err error
		t, err = indicator.NewTracker(name, params)
		if err != nil {
			return nil, fmt.Errorf("%w (supported: %s)", err, strings.Join(indicator.Names(), ", "))
		}
		uc.trackers[key] = t
	}

	values := t.Advance(candles)
	out := make([]float64, len(values))
	copy(out, values)
	return out, nil
}

func indicatorsResponse(key models.SeriesKey, p GetIndicatorsParams, values []models.JSONFloat) *models.IndicatorsResponse {
	return &models.IndicatorsResponse{
		Symbol: key.Symbol,
		Name:   p.Name,
		Params: p.Params,
		Count:  len(values),
		Values: values,
	}
}
