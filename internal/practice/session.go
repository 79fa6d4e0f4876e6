package practice

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"papertrade/internal/ledger"
	"papertrade/internal/quote"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	ErrSessionNotFound  = errors.New("practice session not found")
	ErrSessionCompleted = errors.New("practice session already completed")
	ErrNothingToSettle  = errors.New("make some trades first")
	ErrInvalidDate      = errors.New("practice date must be in the past")
	ErrTooManySessions  = errors.New("too many open practice sessions")
)

// Sessions are dropped by Prune once completed or older than SessionTTL.
// Start refuses new sessions beyond MaxSessions.
const (
	SessionTTL  = 24 * time.Hour
	MaxSessions = 10000
)

// Defaults for a session started without explicit values.
var (
	DefaultDate = time.Date(2024, 12, 2, 0, 0, 0, 0, time.UTC)
	DefaultCash = decimal.NewFromInt(50000)
)

// PriceSource gives historical and current prices.
type PriceSource interface {
	PriceOn(ctx context.Context, symbol string, date time.Time) (float64, quote.Source)
	Prices(ctx context.Context, symbols []string, force bool) map[string]float64
}

// Result is the settlement of a completed session.
type Result struct {
	FinalCash       decimal.Decimal `json:"finalCash"`
	TotalValue      decimal.Decimal `json:"totalValue"`
	GainLoss        decimal.Decimal `json:"gainLoss"`
	GainLossPercent decimal.Decimal `json:"gainLossPercent"`
	CompletedAt     time.Time       `json:"completedAt"`
}

// Session trades a throwaway portfolio as of a past date.
type Session struct {
	ID        string            `json:"id"`
	Date      time.Time         `json:"practiceDate"`
	Portfolio *ledger.Portfolio `json:"portfolio"`
	Completed bool              `json:"completed"`
	Result    *Result           `json:"result,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
}

func (s *Session) clone() Session {
	cp := *s
	cp.Portfolio = s.Portfolio.Clone()
	if s.Result != nil {
		r := *s.Result
		cp.Result = &r
	}
	return cp
}

type entry struct {
	mu      sync.Mutex
	session Session
}

// Manager holds practice sessions in memory.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*entry

	prices PriceSource
	logger *zap.Logger
	now    func() time.Time
}

func NewManager(prices PriceSource, logger *zap.Logger) *Manager {
	return &Manager{
		sessions: make(map[string]*entry),
		prices:   prices,
		logger:   logger,
		now:      time.Now,
	}
}

// WithClock replaces the time source.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// Start opens a session. A zero date or non-positive cash takes the default.
func (m *Manager) Start(date time.Time, cash decimal.Decimal) (Session, error) {
	if date.IsZero() {
		date = DefaultDate
	}
	if !cash.IsPositive() {
		cash = DefaultCash
	}
	now := m.now()
	if !date.Before(now) {
		return Session{}, fmt.Errorf("%w: %s", ErrInvalidDate, date.Format("2006-01-02"))
	}

	if m.count() >= MaxSessions && m.Prune() == 0 {
		return Session{}, ErrTooManySessions
	}

	e := &entry{session: Session{
		ID:        uuid.NewString(),
		Date:      date,
		Portfolio: ledger.New(cash),
		CreatedAt: now,
	}}

	m.mu.Lock()
	m.sessions[e.session.ID] = e
	m.mu.Unlock()

	m.logger.Info("practice session started",
		zap.String("session", e.session.ID),
		zap.Time("date", date),
		zap.String("cash", cash.String()))
	return e.session.clone(), nil
}

func (m *Manager) count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Prune drops completed sessions and sessions started more than SessionTTL
// ago. It returns how many were removed.
func (m *Manager) Prune() int {
	cutoff := m.now().Add(-SessionTTL)

	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for id, e := range m.sessions {
		e.mu.Lock()
		drop := e.session.Completed || e.session.CreatedAt.Before(cutoff)
		e.mu.Unlock()
		if drop {
			delete(m.sessions, id)
			n++
		}
	}
	if n > 0 {
		m.logger.Info("pruned practice sessions", zap.Int("removed", n), zap.Int("open", len(m.sessions)))
	}
	return n
}

func (m *Manager) lookup(id string) (*entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return e, nil
}

func (m *Manager) Get(id string) (Session, error) {
	e, err := m.lookup(id)
	if err != nil {
		return Session{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session.clone(), nil
}

// Buy purchases at the closing price on the session date.
func (m *Manager) Buy(ctx context.Context, id, symbol, name string, quantity int64) (Session, ledger.Transaction, error) {
	return m.trade(ctx, id, ledger.Buy, ledger.Order{Symbol: symbol, Name: name, Quantity: quantity})
}

// Sell sells at the closing price on the session date.
func (m *Manager) Sell(ctx context.Context, id, symbol string, quantity int64) (Session, ledger.Transaction, error) {
	return m.trade(ctx, id, ledger.Sell, ledger.Order{Symbol: symbol, Quantity: quantity})
}

func (m *Manager) trade(ctx context.Context, id string, kind ledger.TransactionType, o ledger.Order) (Session, ledger.Transaction, error) {
	e, err := m.lookup(id)
	if err != nil {
		return Session{}, ledger.Transaction{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	s := &e.session
	if s.Completed {
		return s.clone(), ledger.Transaction{}, ErrSessionCompleted
	}

	o.Symbol = strings.ToUpper(strings.TrimSpace(o.Symbol))
	price, source := m.prices.PriceOn(ctx, o.Symbol, s.Date)
	if !source.Authoritative() {
		m.logger.Warn("practice trade at synthetic price",
			zap.String("session", s.ID),
			zap.String("symbol", o.Symbol),
			zap.Float64("price", price))
	}
	o.Price = decimal.NewFromFloat(price).Round(2)
	o.At = s.Date

	next := s.Portfolio.Clone()
	var tx ledger.Transaction
	if kind == ledger.Buy {
		tx, err = next.Buy(o)
	} else {
		tx, err = next.Sell(o)
	}
	if err != nil {
		return s.clone(), ledger.Transaction{}, err
	}
	s.Portfolio = next
	return s.clone(), tx, nil
}

// FastForward marks the portfolio to today's prices, attaches an outcome to
// every trade and completes the session.
func (m *Manager) FastForward(ctx context.Context, id string) (Session, error) {
	e, err := m.lookup(id)
	if err != nil {
		return Session{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	s := &e.session
	if s.Completed {
		return s.clone(), ErrSessionCompleted
	}
	if len(s.Portfolio.Positions) == 0 {
		return s.clone(), ErrNothingToSettle
	}

	seen := make(map[string]bool)
	var symbols []string
	for _, tx := range s.Portfolio.Transactions {
		if !seen[tx.Symbol] {
			seen[tx.Symbol] = true
			symbols = append(symbols, tx.Symbol)
		}
	}

	raw := m.prices.Prices(ctx, symbols, true)
	current := make(map[string]decimal.Decimal, len(raw))
	for sym, p := range raw {
		current[sym] = decimal.NewFromFloat(p).Round(2)
	}

	p := s.Portfolio.Clone()
	p.UpdatePrices(current)
	for i := range p.Transactions {
		tx := &p.Transactions[i]
		pc, ok := current[tx.Symbol]
		if !ok {
			continue
		}
		tx.Outcome = Settle(*tx, pc)
	}

	amount, pct := p.GainLoss()
	s.Portfolio = p
	s.Completed = true
	s.Result = &Result{
		FinalCash:       p.Cash,
		TotalValue:      p.TotalValue(),
		GainLoss:        amount,
		GainLossPercent: pct,
		CompletedAt:     m.now(),
	}

	m.logger.Info("practice session completed",
		zap.String("session", s.ID),
		zap.String("gain_loss", amount.StringFixed(2)),
		zap.Int("priced", len(current)),
		zap.Int("symbols", len(symbols)))
	return s.clone(), nil
}

// Settle computes the outcome of tx had it been closed at pc. A buy gains
// when the price rose; a sell gains when it fell.
func Settle(tx ledger.Transaction, pc decimal.Decimal) *ledger.Outcome {
	qty := decimal.NewFromInt(tx.Quantity)
	if tx.Type == ledger.Sell {
		diff := tx.Price.Sub(pc)
		return &ledger.Outcome{
			PriceAtCompletion: pc,
			GainLoss:          diff.Mul(qty),
			GainLossPercent:   ledger.Percent(diff, pc),
		}
	}
	diff := pc.Sub(tx.Price)
	return &ledger.Outcome{
		PriceAtCompletion: pc,
		GainLoss:          diff.Mul(qty),
		GainLossPercent:   ledger.Percent(diff, tx.Price),
	}
}
