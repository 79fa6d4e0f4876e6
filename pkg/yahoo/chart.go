package yahoo

import (
	"fmt"
	"math"
	"time"
)

// ParseSnapshot converts chart metadata to a quote snapshot, filling gaps
// the way the chart page does: missing previous close, high, low and open
// fall back to the current price.
func ParseSnapshot(symbol string, r *ChartResult) (*Snapshot, error) {
	m := r.Meta
	if m.RegularMarketPrice <= 0 {
		return nil, fmt.Errorf("%w: no market price for %s", ErrNoData, symbol)
	}
	price := m.RegularMarketPrice

	s := &Snapshot{
		Symbol:        firstNonEmpty(m.Symbol, symbol),
		Name:          firstNonEmpty(m.LongName, m.ShortName, symbol),
		Price:         price,
		PreviousClose: firstPositive(m.ChartPreviousClose, m.PreviousClose, price),
		High:          firstPositive(m.RegularMarketDayHigh, price),
		Low:           firstPositive(m.RegularMarketDayLow, price),
		Volume:        m.RegularMarketVolume,
		MarketCap:     m.MarketCap,
	}

	var firstOpen float64
	if len(r.Indicators.Quote) > 0 && len(r.Indicators.Quote[0].Open) > 0 && r.Indicators.Quote[0].Open[0] != nil {
		firstOpen = *r.Indicators.Quote[0].Open[0]
	}
	s.Open = firstPositive(firstOpen, m.RegularMarketOpen, price)
	return s, nil
}

// ParsePoints converts chart arrays into rows. Rows with a missing price,
// rows later than now and rows falling on a weekend are skipped; prices are
// rounded to two decimals.
func ParsePoints(r *ChartResult, now time.Time) ([]Point, error) {
	if len(r.Timestamp) == 0 || len(r.Indicators.Quote) == 0 {
		return nil, ErrNoData
	}
	q := r.Indicators.Quote[0]
	n := len(r.Timestamp)
	if len(q.Open) < n || len(q.High) < n || len(q.Low) < n || len(q.Close) < n {
		return nil, fmt.Errorf("yahoo: OHLC arrays shorter than timestamps")
	}

	out := make([]Point, 0, n)
	for i, ts := range r.Timestamp {
		if q.Open[i] == nil || q.High[i] == nil || q.Low[i] == nil || q.Close[i] == nil {
			continue
		}
		t := time.Unix(ts, 0)
		if t.After(now) {
			continue
		}
		switch t.UTC().Weekday() {
		case time.Saturday, time.Sunday:
			continue
		}

		var vol int64
		if i < len(q.Volume) && q.Volume[i] != nil {
			vol = int64(*q.Volume[i])
		}
		out = append(out, Point{
			Timestamp: t.UnixMilli(),
			Open:      round2(*q.Open[i]),
			High:      round2(*q.High[i]),
			Low:       round2(*q.Low[i]),
			Close:     round2(*q.Close[i]),
			Volume:    vol,
		})
	}
	if len(out) == 0 {
		return nil, ErrNoData
	}
	return out, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func firstPositive(vs ...float64) float64 {
	for _, v := range vs {
		if v > 0 {
			return v
		}
	}
	return 0
}

func firstNonEmpty(vs ...string) string {
	for _, v := range vs {
		if v != "" {
			return v
		}
	}
	return ""
}
