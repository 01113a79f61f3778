package api

import (
	"errors"
	"net/http"
	"time"

	"CandleFeed/internal/domain/models"
	"CandleFeed/internal/domain/repository"
	"CandleFeed/internal/router"
	"CandleFeed/internal/stream"
	"CandleFeed/internal/usecase"
	xhttp "CandleFeed/pkg/http"
	xlogger "CandleFeed/pkg/logger"

	"github.com/labstack/echo/v4"
)

// FeedHandler serves the history, indicator and operator endpoints plus the
// live OHLC WebSocket.
type FeedHandler struct {
	logger     *xlogger.Logger
	history    *usecase.HistoryUseCase
	indicators *usecase.IndicatorsUseCase
	router     *router.Router
	providers  map[string]repository.Provider
	streams    *stream.Manager
	recent     *xlogger.MemoryPublisher
	started    time.Time
}

func NewFeedHandler(
	logger *xlogger.Logger,
	history *usecase.HistoryUseCase,
	indicators *usecase.IndicatorsUseCase,
	r *router.Router,
	providers map[string]repository.Provider,
	streams *stream.Manager,
	recent *xlogger.MemoryPublisher,
) *FeedHandler {
	return &FeedHandler{
		logger:     logger,
		history:    history,
		indicators: indicators,
		router:     r,
		providers:  providers,
		streams:    streams,
		recent:     recent,
		started:    time.Now(),
	}
}

func (h *FeedHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/history", h.History)
	g.GET("/indicators", h.Indicators)
	g.GET("/providers", h.Providers)

	e.GET("/health", h.Health)
	e.GET("/ws/:market/ohlc", h.StreamOHLC)
}

func (h *FeedHandler) History(c echo.Context) error {
	req := &models.HistoryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.history.GetHistory(c.Request().Context(), usecase.GetHistoryParams{
		Symbol:   req.Symbol,
		Market:   req.Market,
		Interval: req.Interval,
		Days:     req.Days,
		Provider: req.Provider,
		Style:    req.Style,
	})
	if err != nil {
		return h.feedError(c, err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *FeedHandler) Indicators(c echo.Context) error {
	req := &models.IndicatorsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.indicators.GetIndicators(c.Request().Context(), usecase.GetIndicatorsParams{
		Symbol:   req.Symbol,
		Market:   req.Market,
		Interval: req.Interval,
		Days:     req.Days,
		Name:     req.Name,
		Params:   req.Params,
		Provider: req.Provider,
	})
	if err != nil {
		return h.feedError(c, err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *FeedHandler) Providers(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.router.Status(h.providers))
}

type healthResponse struct {
	Status        string                       `json:"status"`
	UptimeSeconds int64                        `json:"uptime_seconds"`
	Subscribers   int                          `json:"subscribers"`
	Feeds         map[string]string            `json:"feeds"`
	RecentErrors  []xlogger.AggregatedLogEntry `json:"recent_errors"`
}

func (h *FeedHandler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, healthResponse{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(h.started).Seconds()),
		Subscribers:   h.streams.SubscriberCount(),
		Feeds:         h.streams.FeedStates(),
		RecentErrors:  h.recent.Recent(),
	})
}

// feedError maps domain failures onto HTTP statuses. Upstream exhaustion is
// a gateway problem, not a client one.
func (h *FeedHandler) feedError(c echo.Context, err error) error {
	var derr *models.DataUnavailableError
	switch {
	case errors.As(err, &derr):
		h.logger.Error("history unavailable", xlogger.Error(err))
		return xhttp.AppErrorResponse(c,
			xhttp.NewAppError("ERR_DATA_UNAVAILABLE", "", derr.Error(), http.StatusBadGateway))
	case errors.Is(err, models.ErrRateLimited):
		return xhttp.AppErrorResponse(c,
			xhttp.NewAppError("ERR_RATE_LIMITED", "", err.Error(), http.StatusTooManyRequests))
	case errors.Is(err, models.ErrStreamingUnsupported):
		return xhttp.AppErrorResponse(c,
			xhttp.NewAppError("ERR_NO_STREAM", "market", err.Error(), http.StatusBadRequest))
	default:
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()))
	}
}
