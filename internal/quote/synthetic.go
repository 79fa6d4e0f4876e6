package quote

import (
	"math"
	"math/rand"
	"strings"
	"sync"
	"time"

	"papertrade/internal/market"
)

// seriesShape controls the random walk for one period.
type seriesShape struct {
	step       time.Duration
	maxPoints  int
	volatility float64
	baseVolume float64
}

func shapeFor(req HistoryRequest) seriesShape {
	switch req.Period {
	case market.Period1D:
		return seriesShape{5 * time.Minute, 78, 0.002, 100_000}
	case market.Period5D:
		return seriesShape{15 * time.Minute, 130, 0.005, 5_000_000}
	case market.Period1M:
		return seriesShape{time.Hour, 300, 0.012, 5_000_000}
	case market.Period5Y:
		return seriesShape{7 * 24 * time.Hour, 500, 0.012, 5_000_000}
	case market.PeriodMax:
		return seriesShape{30 * 24 * time.Hour, 500, 0.012, 5_000_000}
	case market.PeriodCustom:
		step := 24 * time.Hour
		switch market.CustomInterval(req.Start, req.End) {
		case "5m":
			step = 5 * time.Minute
		case "15m":
			step = 15 * time.Minute
		case "1h":
			step = time.Hour
		}
		return seriesShape{step, 500, 0.012, 5_000_000}
	default:
		return seriesShape{24 * time.Hour, 500, 0.012, 5_000_000}
	}
}

// Synthesizer generates stand-in data when no provider answers. Everything it
// produces is tagged SourceSynthetic.
type Synthesizer struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func NewSynthesizer(seed int64) *Synthesizer {
	return &Synthesizer{rnd: rand.New(rand.NewSource(seed))}
}

func (s *Synthesizer) float() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rnd.Float64()
}

// Quote perturbs the reference price of symbol by at most one percent.
func (s *Synthesizer) Quote(symbol string, now time.Time) Quote {
	symbol = strings.ToUpper(symbol)
	base := basePrice(symbol)
	variation := (s.float() - 0.5) * 0.02
	price := base * (1 + variation)

	return Quote{
		Symbol:        symbol,
		Name:          DisplayName(symbol),
		Price:         market.Round2(price),
		Change:        market.Round2(price - base),
		ChangePercent: market.Round2(variation * 100),
		Open:          market.Round2(base * (1 + (s.float()-0.5)*0.01)),
		High:          market.Round2(price * 1.015),
		Low:           market.Round2(price * 0.985),
		PreviousClose: market.Round2(base),
		Volume:        int64(s.float()*10_000_000) + 1_000_000,
		Source:        SourceSynthetic,
		UpdatedAt:     now,
	}
}

// Series builds a random walk for req that ends exactly at q.Price. Intraday
// points only fall inside the exchange session, and 1d points stay within
// the quote's day range.
func (s *Synthesizer) Series(q Quote, req HistoryRequest, now time.Time) []Bar {
	ex := market.ExchangeFor(q.Symbol)
	shape := shapeFor(req)

	end := ex.DataEnd(now)
	start := end.AddDate(0, 0, -req.Period.LookbackDays())
	if req.Period == market.PeriodCustom {
		start, end = req.Start, req.End
		if de := ex.DataEnd(now); end.After(de) {
			end = de
		}
	}

	slots := s.slots(ex, shape, start, end)
	if len(slots) == 0 {
		return nil
	}

	price := q.PreviousClose
	if req.Period != market.Period1D || price <= 0 {
		price = q.Price * (0.88 + s.float()*0.10)
	}

	lo, hi := q.Low, q.High
	clamp := req.Period == market.Period1D && lo > 0 && hi >= lo

	bars := make([]Bar, 0, len(slots))
	n := len(slots)
	for i, t := range slots {
		open := price

		remaining := n - i
		price += (q.Price - price) / float64(remaining)
		price += (s.float() - 0.5) * shape.volatility * price
		price += math.Sin(float64(i)/15*math.Pi*2) * shape.volatility * price * 0.3
		if i == n-1 {
			price = q.Price
		}
		if clamp {
			price = math.Max(lo, math.Min(hi, price))
			open = math.Max(lo, math.Min(hi, open))
		}

		high := math.Max(open, price) * (1 + s.float()*shape.volatility/2)
		low := math.Min(open, price) * (1 - s.float()*shape.volatility/2)
		if clamp {
			high = math.Min(high, hi)
			low = math.Max(low, lo)
		}

		volume := shape.baseVolume * (0.5 + s.float())
		if s.float() > 0.9 {
			volume *= 2 + s.float()
		}

		bars = append(bars, Bar{
			Timestamp: t.UnixMilli(),
			Open:      market.Round2(open),
			High:      market.Round2(high),
			Low:       market.Round2(low),
			Close:     market.Round2(price),
			Volume:    int64(volume),
		})
	}
	bars[n-1].Close = q.Price
	return bars
}

// slots lists bar timestamps from end backwards, then returns them oldest
// first. Weekends are skipped; intraday steps also skip out-of-session times.
// Daily and coarser steps keep the local time of day of end.
func (s *Synthesizer) slots(ex market.Exchange, shape seriesShape, start, end time.Time) []time.Time {
	intraday := shape.step < 24*time.Hour
	t := end
	if intraday {
		t = end.Truncate(shape.step)
	}

	var out []time.Time
	for !t.Before(start) && len(out) < shape.maxPoints {
		if ex.IsTradingDay(t) && (!intraday || ex.InSession(t)) {
			out = append(out, t)
		}
		t = t.Add(-shape.step)
	}

	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}
