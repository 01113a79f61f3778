package indicator

import (
	"math"

	"CandleFeed/internal/domain/models"
)

// Incremental indicator states. Each Update consumes one closed candle and
// returns the indicator value, or NaN while the state is still warming up.
// Feeding candles one at a time yields exactly the values a batch pass over
// the same slice would.

// SMA is a simple moving average over a fixed window.
type SMA struct {
	n     int
	buf   []float64
	head  int
	count int
	sum   float64
}

func NewSMA(n int) *SMA {
	return &SMA{n: n, buf: make([]float64, n)}
}

func (s *SMA) Update(v float64) float64 {
	if s.count == s.n {
		s.sum -= s.buf[s.head]
	} else {
		s.count++
	}
	s.buf[s.head] = v
	s.head = (s.head + 1) % s.n
	s.sum += v
	if s.count < s.n {
		return math.NaN()
	}
	return s.sum / float64(s.n)
}

// EMA is an exponential moving average seeded with the SMA of the first n
// values, smoothing factor 2/(n+1).
type EMA struct {
	n     int
	k     float64
	count int
	sum   float64
	val   float64
}

func NewEMA(n int) *EMA {
	return &EMA{n: n, k: 2.0 / float64(n+1)}
}

func (e *EMA) Update(v float64) float64 {
	e.count++
	if e.count < e.n {
		e.sum += v
		return math.NaN()
	}
	if e.count == e.n {
		e.sum += v
		e.val = e.sum / float64(e.n)
		return e.val
	}
	e.val = (v-e.val)*e.k + e.val
	return e.val
}

// Value returns the current EMA, NaN while warming up.
func (e *EMA) Value() float64 {
	if e.count < e.n {
		return math.NaN()
	}
	return e.val
}

// RSI is the relative strength index with Wilder smoothing.
type RSI struct {
	n       int
	count   int
	prev    float64
	gainSum float64
	lossSum float64
	avgGain float64
	avgLoss float64
}

func NewRSI(n int) *RSI {
	return &RSI{n: n}
}

func (r *RSI) Update(close float64) float64 {
	r.count++
	if r.count == 1 {
		r.prev = close
		return math.NaN()
	}
	change := close - r.prev
	r.prev = close
	gain, loss := 0.0, 0.0
	if change > 0 {
		gain = change
	} else {
		loss = -change
	}

	// First n changes seed the averages; Wilder smoothing after that.
	if r.count <= r.n+1 {
		r.gainSum += gain
		r.lossSum += loss
		if r.count < r.n+1 {
			return math.NaN()
		}
		r.avgGain = r.gainSum / float64(r.n)
		r.avgLoss = r.lossSum / float64(r.n)
	} else {
		r.avgGain = (r.avgGain*float64(r.n-1) + gain) / float64(r.n)
		r.avgLoss = (r.avgLoss*float64(r.n-1) + loss) / float64(r.n)
	}

	if r.avgLoss == 0 {
		return 100
	}
	rs := r.avgGain / r.avgLoss
	return 100 - 100/(1+rs)
}

// MACD is the moving average convergence divergence with a signal line.
type MACD struct {
	fast   *EMA
	slow   *EMA
	signal *EMA
}

func NewMACD(fast, slow, signal int) *MACD {
	return &MACD{fast: NewEMA(fast), slow: NewEMA(slow), signal: NewEMA(signal)}
}

// Update returns the MACD line, the signal line and the histogram. The
// signal line warms up on MACD values, not on raw closes.
func (m *MACD) Update(close float64) (macd, signal, hist float64) {
	f := m.fast.Update(close)
	s := m.slow.Update(close)
	if math.IsNaN(f) || math.IsNaN(s) {
		return math.NaN(), math.NaN(), math.NaN()
	}
	macd = f - s
	signal = m.signal.Update(macd)
	return macd, signal, macd - signal
}

// Bollinger computes the middle band (SMA) with bands at stddev multiples.
// Standard deviation is the population form over the window.
type Bollinger struct {
	n     int
	mult  float64
	buf   []float64
	head  int
	count int
	sum   float64
	sumSq float64
}

func NewBollinger(n int, mult float64) *Bollinger {
	return &Bollinger{n: n, mult: mult, buf: make([]float64, n)}
}

func (b *Bollinger) Update(v float64) (high, mid, low float64) {
	if b.count == b.n {
		old := b.buf[b.head]
		b.sum -= old
		b.sumSq -= old * old
	} else {
		b.count++
	}
	b.buf[b.head] = v
	b.head = (b.head + 1) % b.n
	b.sum += v
	b.sumSq += v * v
	if b.count < b.n {
		return math.NaN(), math.NaN(), math.NaN()
	}
	mean := b.sum / float64(b.n)
	variance := b.sumSq/float64(b.n) - mean*mean
	if variance < 0 {
		variance = 0
	}
	sd := math.Sqrt(variance)
	return mean + b.mult*sd, mean, mean - b.mult*sd
}

// ATR is the average true range with Wilder smoothing.
type ATR struct {
	n         int
	count     int
	prevClose float64
	sum       float64
	val       float64
}

func NewATR(n int) *ATR {
	return &ATR{n: n}
}

func (a *ATR) Update(c models.Candle) float64 {
	a.count++
	tr := c.High - c.Low
	if a.count > 1 {
		tr = math.Max(tr, math.Max(
			math.Abs(c.High-a.prevClose),
			math.Abs(c.Low-a.prevClose)))
	}
	a.prevClose = c.Close

	if a.count <= a.n {
		a.sum += tr
		if a.count < a.n {
			return math.NaN()
		}
		a.val = a.sum / float64(a.n)
		return a.val
	}
	a.val = (a.val*float64(a.n-1) + tr) / float64(a.n)
	return a.val
}

// HeikinAshi transforms candles into their smoothed Heikin-Ashi form. The
// first candle's open averages its own open and close.
func HeikinAshi(in []models.Candle) []models.Candle {
	out := make([]models.Candle, len(in))
	for i, c := range in {
		haClose := (c.Open + c.High + c.Low + c.Close) / 4
		var haOpen float64
		if i == 0 {
			haOpen = (c.Open + c.Close) / 2
		} else {
			haOpen = (out[i-1].Open + out[i-1].Close) / 2
		}
		out[i] = models.Candle{
			Time:   c.Time,
			Open:   haOpen,
			High:   math.Max(c.High, math.Max(haOpen, haClose)),
			Low:    math.Min(c.Low, math.Min(haOpen, haClose)),
			Close:  haClose,
			Volume: c.Volume,
		}
	}
	return out
}
