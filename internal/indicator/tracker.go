package indicator

import (
	"time"

	"CandleFeed/internal/domain/models"
)

// Tracker keeps a live incremental computation for one series. Appends feed
// the state one candle at a time; a corrected candle (timestamp at or before
// the last seen one) throws the state away and replays the whole series,
// since smoothed indicators cannot be rewound.
type Tracker struct {
	name   string
	params Params
	update func(models.Candle) float64
	last   time.Time
	values []float64
}

func NewTracker(name string, params Params) (*Tracker, error) {
	update, err := newState(name, params)
	if err != nil {
		return nil, err
	}
	return &Tracker{name: name, params: params, update: update}, nil
}

// Advance consumes the series and returns the value history, one entry per
// candle. Already-seen candles cost nothing; only new ones run the state.
func (t *Tracker) Advance(candles []models.Candle) []float64 {
	// A correction shows up as fewer candles than values, or as the candle
	// at our high-water mark no longer carrying the timestamp we recorded.
	if len(candles) < len(t.values) {
		t.reset()
	} else if n := len(t.values); n > 0 && !candles[n-1].Time.Equal(t.last) {
		t.reset()
	}

	for i := len(t.values); i < len(candles); i++ {
		t.values = append(t.values, t.update(candles[i]))
		t.last = candles[i].Time
	}
	return t.values
}

func (t *Tracker) reset() {
	update, err := newState(t.name, t.params)
	if err != nil {
		return
	}
	t.update = update
	t.last = time.Time{}
	t.values = t.values[:0]
}
