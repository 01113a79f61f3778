package api

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"CandleFeed/internal/domain/models"
	"CandleFeed/internal/domain/repository"
	"CandleFeed/internal/stream"
	xlogger "CandleFeed/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

type wsStreamer struct {
	ticks chan models.Tick
	errs  chan error
}

func (s *wsStreamer) Descriptor() models.ProviderDescriptor {
	return models.ProviderDescriptor{
		ID:           "binance",
		Markets:      []models.Market{models.MarketCrypto},
		Capabilities: models.Capabilities{History: true, Streaming: true},
	}
}

func (s *wsStreamer) FetchHistory(context.Context, models.SeriesKey, time.Time, time.Time) ([]models.RawCandle, error) {
	return nil, nil
}

func (s *wsStreamer) OpenStream(context.Context, models.SeriesKey) (<-chan models.Tick, <-chan error, error) {
	return s.ticks, s.errs, nil
}

type wsSet struct{ s *wsStreamer }

func (f *wsSet) Streamer(string) (repository.Streamer, bool) { return f.s, true }
func (f *wsSet) Chain(models.Market) []string                { return []string{"binance"} }

type wsCache struct{}

func (wsCache) GetSeries(string) (*models.Series, bool)         { return nil, false }
func (wsCache) SetSeries(string, *models.Series, time.Duration) {}
func (wsCache) Freeze(*models.Series)                           {}

type wsMetrics struct{}

func (wsMetrics) RecordProviderRequest(string, string) {}
func (wsMetrics) RecordCacheHit(string)                {}
func (wsMetrics) RecordCacheMiss(string)               {}
func (wsMetrics) RecordRepair(string)                  {}
func (wsMetrics) RecordReconnect(string)               {}
func (wsMetrics) RecordError(string)                   {}
func (wsMetrics) RecordLastPrice(string, float64)      {}
func (wsMetrics) RecordLatency(string, float64)        {}
func (wsMetrics) SetSubscribers(string, int)           {}

func TestStreamOHLCAnnouncesTermination(t *testing.T) {
	log, err := xlogger.New(&xlogger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	st := &wsStreamer{ticks: make(chan models.Tick), errs: make(chan error)}
	m := stream.NewManager(&wsSet{s: st}, wsCache{}, nil, wsMetrics{}, log, stream.Options{})
	h := NewFeedHandler(log, nil, nil, nil, nil, m, xlogger.NewMemoryPublisher(10))

	e := echo.New()
	h.RegisterRoutes(e)
	srv := httptest.NewServer(e)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/crypto/ohlc?symbol=BTCUSD&interval=5m"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	st.ticks <- models.Tick{Symbol: "BTC/USD", Price: 100, Volume: 1, Time: time.Now().UTC()}

	var ev wsEvent
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("first frame: %v", err)
	}
	if ev.Type != "update" || ev.Symbol != "BTC/USD" {
		t.Fatalf("expected live update for the canonical pair, got %+v", ev)
	}

	// Shutting the manager down must surface as an explicit frame, never a
	// silent close.
	m.Shutdown()
	for {
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		if err := conn.ReadJSON(&ev); err != nil {
			t.Fatalf("socket closed without termination notice: %v", err)
		}
		if ev.Type == "terminated" {
			return
		}
	}
}
