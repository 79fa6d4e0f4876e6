package ledger

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// Valuation summarises a portfolio at its current marks.
type Valuation struct {
	Cash            decimal.Decimal   `json:"cash"`
	HoldingsValue   decimal.Decimal   `json:"holdingsValue"`
	TotalValue      decimal.Decimal   `json:"totalValue"`
	StartingCash    decimal.Decimal   `json:"startingCash"`
	GainLoss        decimal.Decimal   `json:"gainLoss"`
	GainLossPercent decimal.Decimal   `json:"gainLossPercent"`
	Holdings        []HoldingSnapshot `json:"holdings"`
}

// HoldingSnapshot is a position marked to its current price.
type HoldingSnapshot struct {
	Position
	MarketValue           decimal.Decimal `json:"marketValue"`
	UnrealizedGain        decimal.Decimal `json:"unrealizedGain"`
	UnrealizedGainPercent decimal.Decimal `json:"unrealizedGainPercent"`
}

// TotalValue is cash plus every position at its current price.
func (p *Portfolio) TotalValue() decimal.Decimal {
	total := p.Cash
	for _, pos := range p.Positions {
		total = total.Add(pos.CurrentPrice.Mul(decimal.NewFromInt(pos.Quantity)))
	}
	return total
}

// GainLoss returns the change in value against the starting balance and that
// change as a percentage. The percentage is zero when starting cash is zero.
func (p *Portfolio) GainLoss() (decimal.Decimal, decimal.Decimal) {
	amount := p.TotalValue().Sub(p.StartingCash)
	return amount, Percent(amount, p.StartingCash)
}

func (p *Portfolio) Valuation() Valuation {
	amount, pct := p.GainLoss()
	v := Valuation{
		Cash:            p.Cash,
		TotalValue:      p.TotalValue(),
		StartingCash:    p.StartingCash,
		GainLoss:        amount,
		GainLossPercent: pct,
		HoldingsValue:   decimal.Zero,
	}
	for _, pos := range p.Holdings() {
		qty := decimal.NewFromInt(pos.Quantity)
		mv := pos.CurrentPrice.Mul(qty)
		cost := pos.AverageCost.Mul(qty)
		gain := mv.Sub(cost)
		v.HoldingsValue = v.HoldingsValue.Add(mv)
		v.Holdings = append(v.Holdings, HoldingSnapshot{
			Position:              pos,
			MarketValue:           mv,
			UnrealizedGain:        gain,
			UnrealizedGainPercent: Percent(gain, cost),
		})
	}
	return v
}

// RealizedGain is the profit of selling qty shares at price against avgCost.
func RealizedGain(avgCost, price decimal.Decimal, qty int64) decimal.Decimal {
	return price.Sub(avgCost).Mul(decimal.NewFromInt(qty))
}

// Percent returns part/base*100, or zero for a zero base.
func Percent(part, base decimal.Decimal) decimal.Decimal {
	if base.IsZero() {
		return decimal.Zero
	}
	return part.Div(base).Mul(hundred)
}
