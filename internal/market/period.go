package market

import (
	"errors"
	"fmt"
	"time"
)

// Period is a named historical lookback window.
type Period string

const (
	Period1D     Period = "1d"
	Period5D     Period = "5d"
	Period1M     Period = "1mo"
	Period6M     Period = "6mo"
	Period1Y     Period = "1y"
	Period5Y     Period = "5y"
	PeriodMax    Period = "max"
	PeriodCustom Period = "custom"
)

var ErrUnknownPeriod = errors.New("unknown period")

var lookbackDays = map[Period]int{
	Period1D:  1,
	Period5D:  5,
	Period1M:  30,
	Period6M:  180,
	Period1Y:  365,
	Period5Y:  1825,
	PeriodMax: 3650,
}

var barIntervals = map[Period]string{
	Period1D:  "5m",
	Period5D:  "15m",
	Period1M:  "1d",
	Period6M:  "1d",
	Period1Y:  "1d",
	Period5Y:  "1wk",
	PeriodMax: "1mo",
}

// ParsePeriod validates a period name.
func ParsePeriod(s string) (Period, error) {
	p := Period(s)
	if p == PeriodCustom {
		return p, nil
	}
	if _, ok := lookbackDays[p]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownPeriod, s)
	}
	return p, nil
}

// LookbackDays returns the span of a named period in calendar days.
func (p Period) LookbackDays() int {
	return lookbackDays[p]
}

// Interval returns the bar interval used for a named period.
func (p Period) Interval() string {
	return barIntervals[p]
}

// CustomInterval picks a bar interval for an explicit date range.
func CustomInterval(start, end time.Time) string {
	days := end.Sub(start).Hours() / 24
	switch {
	case days <= 1:
		return "5m"
	case days <= 5:
		return "15m"
	case days <= 60:
		return "1h"
	default:
		return "1d"
	}
}
