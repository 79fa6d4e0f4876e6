package market

import "time"

// Policy holds the freshness windows applied by a cache tier.
type Policy struct {
	OpenTTL     time.Duration // quotes and 1d series while the exchange is open
	ClosedTTL   time.Duration // quotes and 1d series while it is closed
	MultiDayTTL time.Duration // 5d and 1mo series
	LongTTL     time.Duration // 6mo and longer, and custom ranges
}

func DefaultPolicy() Policy {
	return Policy{
		OpenTTL:     time.Minute,
		ClosedTTL:   60 * time.Minute,
		MultiDayTTL: 24 * time.Hour,
		LongTTL:     7 * 24 * time.Hour,
	}
}

// QuoteTTL returns how long a quote for symbol stays fresh at now.
func (p Policy) QuoteTTL(symbol string, now time.Time) time.Duration {
	if ExchangeFor(symbol).IsOpen(now) {
		return p.OpenTTL
	}
	return p.ClosedTTL
}

// HistoryTTL returns how long a series for symbol and period stays fresh at now.
func (p Policy) HistoryTTL(period Period, symbol string, now time.Time) time.Duration {
	switch period {
	case Period1D:
		return p.QuoteTTL(symbol, now)
	case Period5D, Period1M:
		return p.MultiDayTTL
	default:
		return p.LongTTL
	}
}

// Fresh reports whether an entry captured at capturedAt is still within ttl at now.
// An entry exactly ttl old is stale.
func Fresh(capturedAt, now time.Time, ttl time.Duration) bool {
	return now.Sub(capturedAt) < ttl
}
