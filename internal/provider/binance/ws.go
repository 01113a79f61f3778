package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"CandleFeed/internal/domain/models"

	"github.com/gorilla/websocket"
)

const pingInterval = 20 * time.Second

type wsTrade struct {
	Event    string `json:"e"`
	Symbol   string `json:"s"`
	Price    string `json:"p"`
	Quantity string `json:"q"`
	Time     int64  `json:"T"` // ms
}

// OpenStream subscribes to the pair's trade stream. The connection is not
// retried here; the streaming manager owns reconnect policy.
func (a *Adapter) OpenStream(ctx context.Context, key models.SeriesKey) (<-chan models.Tick, <-chan error, error) {
	pair, err := a.checkKey(key)
	if err != nil {
		return nil, nil, err
	}

	u := fmt.Sprintf("%s/%s@trade", a.ws, strings.ToLower(pair))
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("binance connect: %v: %w", err, models.ErrProviderUnavailable)
	}

	ticks := make(chan models.Tick, 1024)
	errs := make(chan error, 1)

	// ping loop
	go func() {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				_ = conn.Close()
				return
			case <-ticker.C:
				_ = conn.WriteMessage(websocket.PingMessage, nil)
			}
		}
	}()

	// read loop
	go func() {
		defer close(ticks)
		defer close(errs)
		defer conn.Close()
		for {
			_, b, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				errs <- fmt.Errorf("binance read: %w", err)
				return
			}
			var m wsTrade
			if err := json.Unmarshal(b, &m); err != nil || m.Event != "trade" {
				continue
			}
			tick, err := tradeTick(key.Symbol, m)
			if err != nil {
				continue
			}
			select {
			case ticks <- tick:
			default:
				// drop on backpressure
			}
		}
	}()

	return ticks, errs, nil
}

func tradeTick(symbol string, m wsTrade) (models.Tick, error) {
	price, err := strconv.ParseFloat(m.Price, 64)
	if err != nil {
		return models.Tick{}, err
	}
	qty, err := strconv.ParseFloat(m.Quantity, 64)
	if err != nil {
		return models.Tick{}, err
	}
	return models.Tick{
		Symbol: symbol,
		Price:  price,
		Volume: qty,
		Time:   time.UnixMilli(m.Time).UTC(),
	}, nil
}
