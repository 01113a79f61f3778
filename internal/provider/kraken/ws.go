package kraken

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"CandleFeed/internal/domain/models"

	"github.com/gorilla/websocket"
)

const pingInterval = 20 * time.Second

// OpenStream subscribes to the pair's trade channel over the v1 WebSocket
// API. Trade frames arrive as positional arrays:
// [channelID, [[price, volume, time, side, orderType, misc], ...], "trade", pair].
func (a *Adapter) OpenStream(ctx context.Context, key models.SeriesKey) (<-chan models.Tick, <-chan error, error) {
	if err := a.checkMarket(key); err != nil {
		return nil, nil, err
	}
	pair, err := wsPair(key.Symbol)
	if err != nil {
		return nil, nil, err
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, a.ws, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("kraken connect: %v: %w", err, models.ErrProviderUnavailable)
	}

	sub := map[string]interface{}{
		"event":        "subscribe",
		"pair":         []string{pair},
		"subscription": map[string]string{"name": "trade"},
	}
	if err := conn.WriteJSON(sub); err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("kraken subscribe: %v: %w", err, models.ErrProviderUnavailable)
	}

	ticks := make(chan models.Tick, 1024)
	errs := make(chan error, 1)

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
				errs <- fmt.Errorf("kraken read: %w", err)
				return
			}
			for _, tick := range parseTrades(key.Symbol, b) {
				select {
				case ticks <- tick:
				default:
					// drop on backpressure
				}
			}
		}
	}()

	return ticks, errs, nil
}

func parseTrades(symbol string, b []byte) []models.Tick {
	// Event frames (heartbeat, subscription status) are JSON objects; trade
	// frames are arrays.
	var frame []json.RawMessage
	if err := json.Unmarshal(b, &frame); err != nil || len(frame) < 4 {
		return nil
	}
	var channel string
	if err := json.Unmarshal(frame[2], &channel); err != nil || channel != "trade" {
		return nil
	}
	var rows [][]json.RawMessage
	if err := json.Unmarshal(frame[1], &rows); err != nil {
		return nil
	}

	out := make([]models.Tick, 0, len(rows))
	for _, row := range rows {
		if len(row) < 3 {
			continue
		}
		var priceS, volS, timeS string
		if json.Unmarshal(row[0], &priceS) != nil ||
			json.Unmarshal(row[1], &volS) != nil ||
			json.Unmarshal(row[2], &timeS) != nil {
			continue
		}
		price, err1 := strconv.ParseFloat(priceS, 64)
		vol, err2 := strconv.ParseFloat(volS, 64)
		sec, err3 := strconv.ParseFloat(timeS, 64)
		if err1 != nil || err2 != nil || err3 != nil {
			continue
		}
		out = append(out, models.Tick{
			Symbol: symbol,
			Price:  price,
			Volume: vol,
			Time:   time.Unix(int64(sec), int64((sec-float64(int64(sec)))*1e9)).UTC(),
		})
	}
	return out
}
