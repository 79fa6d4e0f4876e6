package ledger

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultStartingCash is the balance of a fresh simulator portfolio, in rupees.
var DefaultStartingCash = decimal.NewFromInt(100000)

type TransactionType string

const (
	Buy  TransactionType = "buy"
	Sell TransactionType = "sell"
)

// Position is a holding of one symbol.
type Position struct {
	Symbol       string          `json:"symbol"`
	Name         string          `json:"name"`
	Quantity     int64           `json:"quantity"`
	AverageCost  decimal.Decimal `json:"averagePrice"`
	CurrentPrice decimal.Decimal `json:"currentPrice"`
	OpenedAt     time.Time       `json:"purchaseDate"`
}

// Outcome is attached to a transaction once its result is known.
type Outcome struct {
	PriceAtCompletion decimal.Decimal `json:"priceAtCompletion"`
	GainLoss          decimal.Decimal `json:"gainLoss"`
	GainLossPercent   decimal.Decimal `json:"gainLossPercent"`
}

// Transaction records one executed order. Transactions are never edited
// except to attach an Outcome.
type Transaction struct {
	ID        string          `json:"id"`
	Type      TransactionType `json:"type"`
	Symbol    string          `json:"symbol"`
	Name      string          `json:"name"`
	Quantity  int64           `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Total     decimal.Decimal `json:"total"`
	Timestamp time.Time       `json:"timestamp"`
	Outcome   *Outcome        `json:"outcome,omitempty"`
}

// Portfolio is one owner's simulated account.
type Portfolio struct {
	Cash         decimal.Decimal      `json:"cash"`
	StartingCash decimal.Decimal      `json:"startingCash"`
	Positions    map[string]*Position `json:"positions"`
	// Transactions are ordered newest first.
	Transactions []Transaction `json:"transactions"`
	// Version is bumped by the store on every save.
	Version int64 `json:"version"`
}

// Order is a request to buy or sell. A zero At means now.
type Order struct {
	Symbol   string
	Name     string
	Quantity int64
	Price    decimal.Decimal
	At       time.Time
}

func New(startingCash decimal.Decimal) *Portfolio {
	return &Portfolio{
		Cash:         startingCash,
		StartingCash: startingCash,
		Positions:    make(map[string]*Position),
	}
}

// Clone returns a deep copy.
func (p *Portfolio) Clone() *Portfolio {
	cp := &Portfolio{
		Cash:         p.Cash,
		StartingCash: p.StartingCash,
		Positions:    make(map[string]*Position, len(p.Positions)),
		Transactions: make([]Transaction, len(p.Transactions)),
		Version:      p.Version,
	}
	for sym, pos := range p.Positions {
		c := *pos
		cp.Positions[sym] = &c
	}
	for i, tx := range p.Transactions {
		if tx.Outcome != nil {
			o := *tx.Outcome
			tx.Outcome = &o
		}
		cp.Transactions[i] = tx
	}
	return cp
}

// Holdings returns positions ordered by symbol.
func (p *Portfolio) Holdings() []Position {
	out := make([]Position, 0, len(p.Positions))
	for _, pos := range p.Positions {
		out = append(out, *pos)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

func normalize(o Order) (Order, error) {
	o.Symbol = strings.ToUpper(strings.TrimSpace(o.Symbol))
	if o.Quantity <= 0 {
		return o, fmt.Errorf("%w: got %d", ErrInvalidQuantity, o.Quantity)
	}
	if !o.Price.IsPositive() {
		return o, fmt.Errorf("%w: got %s", ErrInvalidPrice, o.Price)
	}
	if o.At.IsZero() {
		o.At = time.Now()
	}
	return o, nil
}

// Buy debits cash and adds to the position, re-weighting its average cost.
// Nothing changes when an error is returned.
func (p *Portfolio) Buy(o Order) (Transaction, error) {
	o, err := normalize(o)
	if err != nil {
		return Transaction{}, err
	}

	if pos, ok := p.Positions[o.Symbol]; ok && pos.Quantity > math.MaxInt64-o.Quantity {
		return Transaction{}, fmt.Errorf("%w: %d more shares of %s would overflow the position", ErrInvalidQuantity, o.Quantity, o.Symbol)
	}

	total := o.Price.Mul(decimal.NewFromInt(o.Quantity))
	if total.GreaterThan(p.Cash) {
		return Transaction{}, fmt.Errorf("%w: need %s, have %s", ErrInsufficientFunds, total.StringFixed(2), p.Cash.StringFixed(2))
	}

	p.Cash = p.Cash.Sub(total)
	if p.Positions == nil {
		p.Positions = make(map[string]*Position)
	}

	if pos, ok := p.Positions[o.Symbol]; ok {
		pos.AverageCost = WeightedAverage(pos.AverageCost, pos.Quantity, o.Price, o.Quantity)
		pos.Quantity += o.Quantity
		pos.CurrentPrice = o.Price
		if o.Name != "" {
			pos.Name = o.Name
		}
	} else {
		name := o.Name
		if name == "" {
			name = o.Symbol
		}
		p.Positions[o.Symbol] = &Position{
			Symbol:       o.Symbol,
			Name:         name,
			Quantity:     o.Quantity,
			AverageCost:  o.Price,
			CurrentPrice: o.Price,
			OpenedAt:     o.At,
		}
	}

	tx := p.record(Buy, o, total)
	return tx, nil
}

// Sell credits cash and reduces the position. Average cost is left as is;
// a position reaching zero shares is removed.
// Nothing changes when an error is returned.
func (p *Portfolio) Sell(o Order) (Transaction, error) {
	o, err := normalize(o)
	if err != nil {
		return Transaction{}, err
	}

	pos, ok := p.Positions[o.Symbol]
	if !ok {
		return Transaction{}, fmt.Errorf("%w: %s", ErrPositionNotFound, o.Symbol)
	}
	if o.Quantity > pos.Quantity {
		return Transaction{}, fmt.Errorf("%w: want %d, hold %d", ErrInsufficientShares, o.Quantity, pos.Quantity)
	}

	total := o.Price.Mul(decimal.NewFromInt(o.Quantity))
	p.Cash = p.Cash.Add(total)

	if o.Name == "" {
		o.Name = pos.Name
	}
	pos.Quantity -= o.Quantity
	if pos.Quantity == 0 {
		delete(p.Positions, o.Symbol)
	} else {
		pos.CurrentPrice = o.Price
	}

	tx := p.record(Sell, o, total)
	return tx, nil
}

func (p *Portfolio) record(kind TransactionType, o Order, total decimal.Decimal) Transaction {
	tx := Transaction{
		ID:        uuid.NewString(),
		Type:      kind,
		Symbol:    o.Symbol,
		Name:      o.Name,
		Quantity:  o.Quantity,
		Price:     o.Price,
		Total:     total,
		Timestamp: o.At,
	}
	p.Transactions = append([]Transaction{tx}, p.Transactions...)
	return tx
}

// UpdatePrices marks held positions to the given prices. Symbols that are
// not held, and non-positive prices, are ignored; positions without a new
// price keep their previous one.
func (p *Portfolio) UpdatePrices(prices map[string]decimal.Decimal) int {
	updated := 0
	for sym, price := range prices {
		pos, ok := p.Positions[strings.ToUpper(sym)]
		if !ok || !price.IsPositive() {
			continue
		}
		pos.CurrentPrice = price
		updated++
	}
	return updated
}

// Reset restores the starting balance and clears positions and history.
func (p *Portfolio) Reset() {
	p.Cash = p.StartingCash
	p.Positions = make(map[string]*Position)
	p.Transactions = nil
}

// WeightedAverage combines an existing average cost with a new lot.
func WeightedAverage(oldAvg decimal.Decimal, oldQty int64, price decimal.Decimal, qty int64) decimal.Decimal {
	totalQty := oldQty + qty
	if totalQty == 0 {
		return decimal.Zero
	}
	cost := oldAvg.Mul(decimal.NewFromInt(oldQty)).Add(price.Mul(decimal.NewFromInt(qty)))
	return cost.Div(decimal.NewFromInt(totalQty))
}
