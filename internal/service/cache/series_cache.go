package cache

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"CandleFeed/internal/domain/models"
)

// Data-class TTLs: live-adjacent intraday data goes stale fast, end-of-day
// aggregates slower, provider metadata slowest.
const (
	TTLIntraday = 60 * time.Second
	TTLDaily    = 300 * time.Second
	TTLMetadata = 3600 * time.Second
)

// TTLForInterval maps an interval to its data-class TTL.
func TTLForInterval(iv models.Interval) time.Duration {
	if iv == models.Interval1d {
		return TTLDaily
	}
	return TTLIntraday
}

// HistoryKey builds the cache key for a fetched range. The provider is part
// of the key: series from different sources are never conflated.
func HistoryKey(provider string, key models.SeriesKey, from, to time.Time) string {
	return fmt.Sprintf("hist:%s:%s:%d:%d", provider, key, from.Unix(), to.Unix())
}

// IndicatorKey builds the cache key for a derived series.
func IndicatorKey(key models.SeriesKey, name, params string) string {
	return fmt.Sprintf("ind:%s:%s:%s", key, name, params)
}

type entry struct {
	series *models.Series
	result *models.IndicatorResult
	exp    time.Time
}

func (e entry) expired(now time.Time) bool {
	return !e.exp.IsZero() && now.After(e.exp)
}

// SeriesStore is the in-process series/indicator cache. Expiry is lazy:
// expired entries report a miss and are overwritten by the next fill, which
// keeps the map at O(active keys) without a sweeper goroutine. An optional
// BytesCache second level (Redis) holds frozen live series across restarts.
type SeriesStore struct {
	mu  sync.RWMutex
	m   map[string]entry
	l2  BytesCache
	now func() time.Time
}

// NewSeriesStore creates a store. l2 may be nil.
func NewSeriesStore(l2 BytesCache) *SeriesStore {
	return &SeriesStore{m: make(map[string]entry), l2: l2, now: time.Now}
}

// GetSeries returns a deep copy so readers never alias the cached buffer.
func (s *SeriesStore) GetSeries(key string) (*models.Series, bool) {
	s.mu.RLock()
	e, ok := s.m[key]
	s.mu.RUnlock()
	if ok && !e.expired(s.now()) && e.series != nil {
		return e.series.Clone(), true
	}
	if s.l2 == nil {
		return nil, false
	}
	b, ok, err := s.l2.GetBytes(key)
	if err != nil || !ok {
		return nil, false
	}
	var ser models.Series
	if err := json.Unmarshal(b, &ser); err != nil {
		return nil, false
	}
	return &ser, true
}

// SetSeries stores a copy of the series under the given TTL.
func (s *SeriesStore) SetSeries(key string, ser *models.Series, ttl time.Duration) {
	cp := ser.Clone()
	var exp time.Time
	if ttl > 0 {
		exp = s.now().Add(ttl)
	}
	s.mu.Lock()
	s.m[key] = entry{series: cp, exp: exp}
	s.mu.Unlock()
}

// Freeze converts a live series buffer into a historical cache entry. Called
// by the streaming manager when the last subscriber leaves; the frozen copy
// is also written through to the second level when configured.
func (s *SeriesStore) Freeze(ser *models.Series) {
	if ser == nil || len(ser.Candles) == 0 {
		return
	}
	first := ser.Candles[0].Time
	last := ser.Candles[len(ser.Candles)-1].Time
	key := HistoryKey(ser.Source, ser.Key, first, last)
	ttl := TTLForInterval(ser.Key.Interval)
	s.SetSeries(key, ser, ttl)

	if s.l2 != nil {
		if b, err := json.Marshal(ser); err == nil {
			_ = s.l2.SetBytes(key, b, ttl)
		}
	}
}

// GetIndicator returns a cached derived series.
func (s *SeriesStore) GetIndicator(key string) (*models.IndicatorResult, bool) {
	s.mu.RLock()
	e, ok := s.m[key]
	s.mu.RUnlock()
	if !ok || e.expired(s.now()) || e.result == nil {
		return nil, false
	}
	return e.result, true
}

// SetIndicator stores a derived series under the given TTL.
func (s *SeriesStore) SetIndicator(key string, r *models.IndicatorResult, ttl time.Duration) {
	var exp time.Time
	if ttl > 0 {
		exp = s.now().Add(ttl)
	}
	s.mu.Lock()
	s.m[key] = entry{result: r, exp: exp}
	s.mu.Unlock()
}

// Len reports the number of resident entries, expired included (lazy expiry).
func (s *SeriesStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.m)
}
