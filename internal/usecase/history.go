package usecase

import (
	"context"
	"fmt"
	"time"

	"CandleFeed/internal/domain/models"
	"CandleFeed/internal/indicator"
	"CandleFeed/internal/router"
	"CandleFeed/pkg/util"
)

// HistoryUseCase provides business logic for historical candle retrieval.
type HistoryUseCase struct {
	router *router.Router
	now    func() time.Time
}

func NewHistoryUseCase(r *router.Router) *HistoryUseCase {
	return &HistoryUseCase{router: r, now: time.Now}
}

type GetHistoryParams struct {
	Symbol   string
	Market   string
	Interval string
	Days     int
	Provider string
	Style    string
}

func (uc *HistoryUseCase) GetHistory(ctx context.Context, p GetHistoryParams) (*models.HistoryResponse, error) {
	key, err := resolveKey(p.Symbol, p.Market, p.Interval)
	if err != nil {
		return nil, err
	}
	if p.Days <= 0 {
		p.Days = 1
	}
	if p.Days > 365 {
		p.Days = 365
	}

	// Aligning the window to bucket boundaries keeps the range-keyed cache
	// warm across requests landing inside the same bucket.
	to := uc.now().UTC()
	from, to := util.AlignRange(to.AddDate(0, 0, -p.Days), to, key.Interval.Duration())

	s, err := uc.router.GetHistory(ctx, key, from, to, p.Provider)
	if err != nil {
		return nil, err
	}

	candles := s.Candles
	if p.Style == "heikin_ashi" {
		candles = indicator.HeikinAshi(candles)
	}

	return &models.HistoryResponse{
		Symbol: key.Symbol,
		Count:  len(candles),
		Source: s.Source,
		OHLC:   candles,
	}, nil
}

// resolveKey normalizes and validates the request triple.
func resolveKey(symbol, market, interval string) (models.SeriesKey, error) {
	m := models.NormalizeMarket(market)
	sym := models.NormalizeSymbol(symbol, m)
	if !models.ValidSymbol(sym, m) {
		return models.SeriesKey{}, fmt.Errorf("invalid %s symbol %q", m, symbol)
	}
	return models.SeriesKey{
		Symbol:   sym,
		Market:   m,
		Interval: models.NormalizeInterval(interval),
	}, nil
}
