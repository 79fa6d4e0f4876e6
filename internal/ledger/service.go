package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PriceSource supplies latest prices for a set of symbols.
type PriceSource interface {
	Prices(ctx context.Context, symbols []string, force bool) map[string]float64
}

// TradeResult is the outcome of a trade request. A rejected trade is not an
// error: Success is false, Message says why, and Portfolio is unchanged.
type TradeResult struct {
	Success     bool         `json:"success"`
	Message     string       `json:"message"`
	Portfolio   *Portfolio   `json:"portfolio,omitempty"`
	Transaction *Transaction `json:"transaction,omitempty"`
}

// Service runs read-modify-write cycles against a Store.
//
// Operations on one owner are serialised inside this process only. Running
// several processes against the same owner is unsupported; the store's
// version check turns such races into ErrStaleVersion instead of lost writes.
type Service struct {
	store        Store
	prices       PriceSource
	startingCash decimal.Decimal
	logger       *zap.Logger
	now          func() time.Time

	locks sync.Map // owner -> *sync.Mutex
}

func NewService(store Store, prices PriceSource, startingCash decimal.Decimal, logger *zap.Logger) *Service {
	return &Service{
		store:        store,
		prices:       prices,
		startingCash: startingCash,
		logger:       logger,
		now:          time.Now,
	}
}

// WithClock replaces the time source used for transaction timestamps.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) lock(owner string) func() {
	m, _ := s.locks.LoadOrStore(owner, &sync.Mutex{})
	mu := m.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func (s *Service) load(ctx context.Context, owner string) (*Portfolio, error) {
	p, err := s.store.Load(ctx, owner, s.startingCash)
	if err != nil {
		return nil, fmt.Errorf("%w: load %s: %v", ErrPersistence, owner, err)
	}
	return p, nil
}

func (s *Service) save(ctx context.Context, owner string, p *Portfolio) error {
	if err := s.store.Save(ctx, owner, p); err != nil {
		s.logger.Error("failed to save portfolio", zap.String("owner", owner), zap.Error(err))
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return nil
}

// Portfolio returns the owner's portfolio, creating it on first access.
func (s *Service) Portfolio(ctx context.Context, owner string) (*Portfolio, error) {
	return s.load(ctx, owner)
}

func (s *Service) Valuation(ctx context.Context, owner string) (Valuation, error) {
	p, err := s.load(ctx, owner)
	if err != nil {
		return Valuation{}, err
	}
	return p.Valuation(), nil
}

func (s *Service) Buy(ctx context.Context, owner, symbol, name string, quantity int64, price decimal.Decimal) (TradeResult, error) {
	return s.trade(ctx, owner, Buy, Order{Symbol: symbol, Name: name, Quantity: quantity, Price: price})
}

func (s *Service) Sell(ctx context.Context, owner, symbol string, quantity int64, price decimal.Decimal) (TradeResult, error) {
	return s.trade(ctx, owner, Sell, Order{Symbol: symbol, Quantity: quantity, Price: price})
}

func (s *Service) trade(ctx context.Context, owner string, kind TransactionType, o Order) (TradeResult, error) {
	unlock := s.lock(owner)
	defer unlock()

	p, err := s.load(ctx, owner)
	if err != nil {
		return TradeResult{Message: err.Error()}, err
	}

	o.At = s.now()
	var tx Transaction
	if kind == Buy {
		tx, err = p.Buy(o)
	} else {
		tx, err = p.Sell(o)
	}
	if err != nil {
		s.logger.Info("trade rejected",
			zap.String("owner", owner),
			zap.String("type", string(kind)),
			zap.String("symbol", o.Symbol),
			zap.Int64("quantity", o.Quantity),
			zap.Error(err))
		return TradeResult{Message: rejection(err), Portfolio: p}, nil
	}

	if err := s.save(ctx, owner, p); err != nil {
		return TradeResult{Message: "Failed to save trade", Portfolio: p}, err
	}

	verb := "bought"
	if kind == Sell {
		verb = "sold"
	}
	return TradeResult{
		Success:     true,
		Message:     fmt.Sprintf("Successfully %s %d shares of %s", verb, tx.Quantity, tx.Symbol),
		Portfolio:   p,
		Transaction: &tx,
	}, nil
}

// UpdatePrices marks the owner's positions to the given prices and saves.
func (s *Service) UpdatePrices(ctx context.Context, owner string, prices map[string]decimal.Decimal) (*Portfolio, error) {
	unlock := s.lock(owner)
	defer unlock()

	p, err := s.load(ctx, owner)
	if err != nil {
		return nil, err
	}
	if p.UpdatePrices(prices) == 0 {
		return p, nil
	}
	if err := s.save(ctx, owner, p); err != nil {
		return p, err
	}
	return p, nil
}

// RefreshPrices pulls latest prices for every held symbol from the price
// source and applies them.
func (s *Service) RefreshPrices(ctx context.Context, owner string, force bool) (*Portfolio, error) {
	p, err := s.Portfolio(ctx, owner)
	if err != nil {
		return nil, err
	}
	if len(p.Positions) == 0 || s.prices == nil {
		return p, nil
	}

	symbols := make([]string, 0, len(p.Positions))
	for sym := range p.Positions {
		symbols = append(symbols, sym)
	}

	latest := s.prices.Prices(ctx, symbols, force)
	prices := make(map[string]decimal.Decimal, len(latest))
	for sym, v := range latest {
		prices[sym] = decimal.NewFromFloat(v)
	}
	return s.UpdatePrices(ctx, owner, prices)
}

func (s *Service) Reset(ctx context.Context, owner string) (*Portfolio, error) {
	unlock := s.lock(owner)
	defer unlock()

	p, err := s.load(ctx, owner)
	if err != nil {
		return nil, err
	}
	p.Reset()
	if err := s.save(ctx, owner, p); err != nil {
		return p, err
	}
	s.logger.Info("portfolio reset", zap.String("owner", owner))
	return p, nil
}

// rejection turns a domain error into the message shown to the trader.
func rejection(err error) string {
	for _, known := range []error{ErrInsufficientFunds, ErrInsufficientShares, ErrPositionNotFound, ErrInvalidQuantity, ErrInvalidPrice} {
		if errors.Is(err, known) {
			msg := known.Error()
			return strings.ToUpper(msg[:1]) + msg[1:]
		}
	}
	return err.Error()
}
