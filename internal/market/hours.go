package market

import (
	"strings"
	"time"
	_ "time/tzdata" // exchange time zones must resolve on minimal images
)

// Exchange describes a regular trading session in the exchange's local time.
type Exchange struct {
	Name        string
	Location    *time.Location
	OpenMinute  int // minutes after local midnight
	CloseMinute int
}

var (
	US    = Exchange{Name: "US", Location: mustLoad("America/New_York"), OpenMinute: 9*60 + 30, CloseMinute: 16 * 60}
	India = Exchange{Name: "IN", Location: mustLoad("Asia/Kolkata"), OpenMinute: 9*60 + 15, CloseMinute: 15*60 + 30}
)

func mustLoad(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic("market: load location " + name + ": " + err.Error())
	}
	return loc
}

// ExchangeFor returns the exchange a symbol trades on. NSE and BSE symbols
// carry a ".NS" or ".BO" suffix; everything else is treated as US-listed.
func ExchangeFor(symbol string) Exchange {
	if IsIndianSymbol(symbol) {
		return India
	}
	return US
}

func IsIndianSymbol(symbol string) bool {
	s := strings.ToUpper(symbol)
	return strings.HasSuffix(s, ".NS") || strings.HasSuffix(s, ".BO")
}

func IsUSSymbol(symbol string) bool {
	return !IsIndianSymbol(symbol)
}

// IsTradingDay reports whether t falls on a weekday in the exchange's time zone.
// Exchange holidays are not modelled.
func (e Exchange) IsTradingDay(t time.Time) bool {
	switch t.In(e.Location).Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	return true
}

// IsOpen reports whether t falls inside the regular session. The session is
// half-open: the opening minute counts as open, the closing minute as closed.
func (e Exchange) IsOpen(t time.Time) bool {
	if !e.IsTradingDay(t) {
		return false
	}
	local := t.In(e.Location)
	m := local.Hour()*60 + local.Minute()
	return m >= e.OpenMinute && m < e.CloseMinute
}

// SessionBounds returns the open and close instants of the session on the
// local calendar day containing t.
func (e Exchange) SessionBounds(t time.Time) (time.Time, time.Time) {
	local := t.In(e.Location)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, e.Location)
	open := midnight.Add(time.Duration(e.OpenMinute) * time.Minute)
	closeAt := midnight.Add(time.Duration(e.CloseMinute) * time.Minute)
	return open, closeAt
}

// LastClose returns the most recent session close at or before t.
func (e Exchange) LastClose(t time.Time) time.Time {
	day := t
	for i := 0; i < 8; i++ {
		if e.IsTradingDay(day) {
			_, closeAt := e.SessionBounds(day)
			if !closeAt.After(t) {
				return closeAt
			}
		}
		day = day.In(e.Location).AddDate(0, 0, -1)
	}
	_, closeAt := e.SessionBounds(day)
	return closeAt
}

// DataEnd is the newest instant market data can exist for: t itself while
// the session is open, otherwise the previous close.
func (e Exchange) DataEnd(t time.Time) time.Time {
	if e.IsOpen(t) {
		return t
	}
	return e.LastClose(t)
}

// InSession reports whether t lies between the open and close of its own day.
func (e Exchange) InSession(t time.Time) bool {
	open, closeAt := e.SessionBounds(t)
	return !t.Before(open) && !t.After(closeAt)
}

// Status is the market summary returned alongside quote batches.
type Status struct {
	IsOpen       bool `json:"isOpen"`
	USMarket     bool `json:"usMarket"`
	IndianMarket bool `json:"indianMarket"`
	IsWeekend    bool `json:"isWeekend"`
}

func StatusAt(t time.Time) Status {
	us := US.IsOpen(t)
	in := India.IsOpen(t)
	return Status{
		IsOpen:       us || in,
		USMarket:     us,
		IndianMarket: in,
		IsWeekend:    !US.IsTradingDay(t) && !India.IsTradingDay(t),
	}
}
