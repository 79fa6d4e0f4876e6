package quote

import (
	"errors"
	"time"

	"papertrade/internal/market"
)

// Source identifies where a quote or series came from.
type Source string

const (
	SourceFinnhub   Source = "finnhub"
	SourceYahoo     Source = "yahoo"
	SourceStream    Source = "finnhub-stream"
	SourceSynthetic Source = "synthetic"
)

// Authoritative is false only for data generated locally.
func (s Source) Authoritative() bool {
	return s != SourceSynthetic && s != ""
}

var (
	// ErrUpstreamUnavailable means every provider in a chain failed.
	ErrUpstreamUnavailable = errors.New("all upstream providers failed")
	ErrInvalidPayload      = errors.New("invalid provider payload")
	ErrNotCached           = errors.New("not cached")
)

// Quote is a point-in-time price snapshot for one symbol.
type Quote struct {
	Symbol        string    `json:"symbol"`
	Name          string    `json:"name"`
	Price         float64   `json:"price"`
	Change        float64   `json:"change"`
	ChangePercent float64   `json:"change_percent"`
	Open          float64   `json:"open"`
	High          float64   `json:"high"`
	Low           float64   `json:"low"`
	PreviousClose float64   `json:"previous_close"`
	Volume        int64     `json:"volume"`
	MarketCap     *float64  `json:"market_cap,omitempty"`
	PERatio       *float64  `json:"pe_ratio,omitempty"`
	Source        Source    `json:"source"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Valid reports whether the quote carries a usable price.
func (q Quote) Valid() bool {
	return q.Symbol != "" && q.Price > 0
}

// Bar is one OHLCV point of a series.
type Bar struct {
	Timestamp int64   `json:"timestamp"` // milliseconds since epoch
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    int64   `json:"volume"`
}

func (b Bar) Time() time.Time {
	return time.UnixMilli(b.Timestamp)
}

// Series is a historical price series.
type Series struct {
	Symbol string        `json:"symbol"`
	Period market.Period `json:"period"`
	Bars   []Bar         `json:"data"`
	Source Source        `json:"source"`
	Cached bool          `json:"cached"`
}

// HistoryRequest selects a named period or, for PeriodCustom, an explicit range.
type HistoryRequest struct {
	Symbol string
	Period market.Period
	Start  time.Time
	End    time.Time
}

// Key identifies the request in cache tiers.
func (r HistoryRequest) Key() string {
	if r.Period == market.PeriodCustom {
		return r.Symbol + ":custom:" + r.Start.UTC().Format("20060102") + "-" + r.End.UTC().Format("20060102")
	}
	return r.Symbol + ":" + string(r.Period)
}

// Window resolves the request to a concrete range and bar interval ending no
// later than end.
func (r HistoryRequest) Window(end time.Time) (time.Time, time.Time, string) {
	if r.Period == market.PeriodCustom {
		return r.Start, r.End, market.CustomInterval(r.Start, r.End)
	}
	start := end.AddDate(0, 0, -r.Period.LookbackDays())
	return start, end, r.Period.Interval()
}

// Trade is one execution print from the streaming feed.
type Trade struct {
	Symbol    string
	Price     float64
	Volume    float64
	Timestamp int64 // milliseconds since epoch
}
