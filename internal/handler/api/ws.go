package api

import (
	"net/http"

	"CandleFeed/internal/domain/models"
	xhttp "CandleFeed/pkg/http"
	xlogger "CandleFeed/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// wsEvent is one frame pushed to a WebSocket consumer.
type wsEvent struct {
	Type     string        `json:"type"` // update or closed
	Symbol   string        `json:"symbol"`
	Interval string        `json:"interval"`
	Candle   models.Candle `json:"candle"`
	Source   string        `json:"source"`
}

// StreamOHLC upgrades the connection and pumps live candle updates for
// ?symbol=...&interval=... until either side closes.
func (h *FeedHandler) StreamOHLC(c echo.Context) error {
	market := models.NormalizeMarket(c.Param("market"))
	symbol := models.NormalizeSymbol(c.QueryParam("symbol"), market)
	if !models.ValidSymbol(symbol, market) {
		return xhttp.BadRequestResponse(c,
			xhttp.BadRequestError("invalid symbol for market"))
	}
	key := models.SeriesKey{
		Symbol:   symbol,
		Market:   market,
		Interval: models.NormalizeInterval(c.QueryParam("interval")),
	}

	sub, err := h.streams.Subscribe(key)
	if err != nil {
		return h.feedError(c, err)
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		sub.Cancel()
		return err
	}

	h.logger.Info("ws subscriber connected", xlogger.String("series", key.String()))

	// Replay recent closed candles so a reconnecting chart does not start
	// from a blank pane. ?backlog=N, capped at 200.
	if n := xhttp.ParseIntDefault(c.QueryParam("backlog"), 0); n > 0 {
		if n > 200 {
			n = 200
		}
		for _, candle := range h.streams.Backlog(key, n) {
			ev := wsEvent{
				Type:     "closed",
				Symbol:   key.Symbol,
				Interval: string(key.Interval),
				Candle:   candle,
			}
			if err := conn.WriteJSON(ev); err != nil {
				sub.Cancel()
				_ = conn.Close()
				return nil
			}
		}
	}

	// Reader exists only to notice the peer going away.
	go func() {
		defer sub.Cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for u := range sub.C {
		ev := wsEvent{
			Type:     "update",
			Symbol:   key.Symbol,
			Interval: string(key.Interval),
			Candle:   u.Candle,
			Source:   u.Source,
		}
		if u.Closed {
			ev.Type = "closed"
		}
		if err := conn.WriteJSON(ev); err != nil {
			break
		}
	}

	sub.Cancel()
	// The feed shut down or the write failed; tell the peer before closing
	// so a dead stream is never mistaken for a quiet one.
	_ = conn.WriteJSON(wsEvent{Type: "terminated", Symbol: key.Symbol, Interval: string(key.Interval)})
	_ = conn.Close()
	h.logger.Info("ws subscriber disconnected", xlogger.String("series", key.String()))
	return nil
}
