package market

import "math"

// DefaultUSDINR is the fixed conversion rate applied to US-listed prices.
const DefaultUSDINR = 83.50

// Converter expresses prices of US-listed symbols in rupees.
// A zero rate leaves prices untouched.
type Converter struct {
	USDINR float64
}

func (c Converter) Applies(symbol string) bool {
	return c.USDINR > 0 && IsUSSymbol(symbol)
}

// Price converts a single price for symbol.
func (c Converter) Price(symbol string, v float64) float64 {
	if !c.Applies(symbol) {
		return v
	}
	return Round2(v * c.USDINR)
}

// Round2 rounds to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
