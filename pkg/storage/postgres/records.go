package postgres

import (
	"time"

	"papertrade/internal/ledger"
	"papertrade/internal/quote"

	"github.com/shopspring/decimal"
)

// PortfolioRecord is one owner's simulator account.
type PortfolioRecord struct {
	ID           uint            `gorm:"primaryKey"`
	Owner        string          `gorm:"type:text;not null;uniqueIndex:idx_portfolio_owner"`
	Cash         decimal.Decimal `gorm:"type:numeric;not null"`
	StartingCash decimal.Decimal `gorm:"type:numeric;not null"`
	Version      int64           `gorm:"not null;default:0"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (PortfolioRecord) TableName() string {
	return "simulator_portfolios"
}

// HoldingRecord is one open position.
type HoldingRecord struct {
	ID          uint   `gorm:"primaryKey"`
	PortfolioID uint   `gorm:"not null;index:idx_holding_portfolio_symbol,unique"`
	Symbol      string `gorm:"type:varchar(32);not null;index:idx_holding_portfolio_symbol,unique"`
	Name        string `gorm:"type:text"`
	Quantity    int64  `gorm:"not null"`

	AverageCost  decimal.Decimal `gorm:"type:numeric;not null"`
	CurrentPrice decimal.Decimal `gorm:"type:numeric;not null"`
	OpenedAt     time.Time       `gorm:"not null"`
}

func (HoldingRecord) TableName() string {
	return "simulator_holdings"
}

// TradeRecord is one executed order. Seq orders trades within a portfolio,
// oldest first.
type TradeRecord struct {
	ID          string `gorm:"type:uuid;primaryKey"`
	PortfolioID uint   `gorm:"not null;index:idx_trade_portfolio_seq"`
	Seq         int    `gorm:"not null;index:idx_trade_portfolio_seq"`
	Type        string `gorm:"type:varchar(4);not null"`
	Symbol      string `gorm:"type:varchar(32);not null"`
	Name        string `gorm:"type:text"`
	Quantity    int64  `gorm:"not null"`

	Price     decimal.Decimal `gorm:"type:numeric;not null"`
	Total     decimal.Decimal `gorm:"type:numeric;not null"`
	Timestamp time.Time       `gorm:"not null"`

	PriceAtCompletion decimal.NullDecimal `gorm:"type:numeric"`
	GainLoss          decimal.NullDecimal `gorm:"type:numeric"`
	GainLossPercent   decimal.NullDecimal `gorm:"type:numeric"`
}

func (TradeRecord) TableName() string {
	return "simulator_trades"
}

// QuoteRecord is the shared-tier copy of a quote, in provider currency.
type QuoteRecord struct {
	Symbol        string   `gorm:"type:varchar(32);primaryKey"`
	Name          string   `gorm:"type:text"`
	Price         float64  `gorm:"type:numeric;not null"`
	Change        float64  `gorm:"type:numeric"`
	ChangePercent float64  `gorm:"type:numeric"`
	Open          float64  `gorm:"type:numeric"`
	High          float64  `gorm:"type:numeric"`
	Low           float64  `gorm:"type:numeric"`
	PreviousClose float64  `gorm:"type:numeric"`
	Volume        int64    `gorm:"not null;default:0"`
	MarketCap     *float64 `gorm:"type:numeric"`
	PERatio       *float64 `gorm:"type:numeric"`
	Source        string   `gorm:"type:varchar(32);not null"`

	QuotedAt  time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null;index:idx_quote_updated_at"`
}

func (QuoteRecord) TableName() string {
	return "stock_quotes"
}

// QuoteSnapshotRecord is one collected observation of a quote.
type QuoteSnapshotRecord struct {
	ID            uint      `gorm:"primaryKey"`
	Symbol        string    `gorm:"type:varchar(32);not null;index:idx_snapshot_symbol_time"`
	Price         float64   `gorm:"type:numeric;not null"`
	ChangePercent float64   `gorm:"type:numeric"`
	Volume        int64     `gorm:"not null;default:0"`
	Source        string    `gorm:"type:varchar(32);not null"`
	CapturedAt    time.Time `gorm:"not null;index:idx_snapshot_symbol_time;index:idx_snapshot_time"`
}

func (QuoteSnapshotRecord) TableName() string {
	return "stock_quotes_realtime"
}

// HistoricalBarRecord is one bar of a cached series, keyed by request.
type HistoricalBarRecord struct {
	ID        uint      `gorm:"primaryKey"`
	CacheKey  string    `gorm:"type:text;not null;index:idx_history_key_ts,unique"`
	Timestamp int64     `gorm:"not null;index:idx_history_key_ts,unique"`
	Symbol    string    `gorm:"type:varchar(32);not null"`
	Open      float64   `gorm:"type:numeric;not null"`
	High      float64   `gorm:"type:numeric;not null"`
	Low       float64   `gorm:"type:numeric;not null"`
	Close     float64   `gorm:"type:numeric;not null"`
	Volume    int64     `gorm:"not null;default:0"`
	Source    string    `gorm:"type:varchar(32);not null"`
	FetchedAt time.Time `gorm:"not null;index:idx_history_fetched_at"`
}

func (HistoricalBarRecord) TableName() string {
	return "stock_historical_data"
}

// ToHoldingRecords converts positions for storage.
func ToHoldingRecords(portfolioID uint, p *ledger.Portfolio) []HoldingRecord {
	out := make([]HoldingRecord, 0, len(p.Positions))
	for _, pos := range p.Holdings() {
		out = append(out, HoldingRecord{
			PortfolioID:  portfolioID,
			Symbol:       pos.Symbol,
			Name:         pos.Name,
			Quantity:     pos.Quantity,
			AverageCost:  pos.AverageCost,
			CurrentPrice: pos.CurrentPrice,
			OpenedAt:     pos.OpenedAt,
		})
	}
	return out
}

// ToTradeRecords converts the newest-first transaction log; the oldest trade
// gets Seq 1.
func ToTradeRecords(portfolioID uint, p *ledger.Portfolio) []TradeRecord {
	n := len(p.Transactions)
	out := make([]TradeRecord, 0, n)
	for i, tx := range p.Transactions {
		rec := TradeRecord{
			ID:          tx.ID,
			PortfolioID: portfolioID,
			Seq:         n - i,
			Type:        string(tx.Type),
			Symbol:      tx.Symbol,
			Name:        tx.Name,
			Quantity:    tx.Quantity,
			Price:       tx.Price,
			Total:       tx.Total,
			Timestamp:   tx.Timestamp,
		}
		if tx.Outcome != nil {
			rec.PriceAtCompletion = decimal.NewNullDecimal(tx.Outcome.PriceAtCompletion)
			rec.GainLoss = decimal.NewNullDecimal(tx.Outcome.GainLoss)
			rec.GainLossPercent = decimal.NewNullDecimal(tx.Outcome.GainLossPercent)
		}
		out = append(out, rec)
	}
	return out
}

// ToPortfolio rebuilds a ledger portfolio. trades must be ordered newest first.
func ToPortfolio(rec PortfolioRecord, holdings []HoldingRecord, trades []TradeRecord) *ledger.Portfolio {
	p := &ledger.Portfolio{
		Cash:         rec.Cash,
		StartingCash: rec.StartingCash,
		Positions:    make(map[string]*ledger.Position, len(holdings)),
		Version:      rec.Version,
	}
	for _, h := range holdings {
		p.Positions[h.Symbol] = &ledger.Position{
			Symbol:       h.Symbol,
			Name:         h.Name,
			Quantity:     h.Quantity,
			AverageCost:  h.AverageCost,
			CurrentPrice: h.CurrentPrice,
			OpenedAt:     h.OpenedAt,
		}
	}
	for _, t := range trades {
		tx := ledger.Transaction{
			ID:        t.ID,
			Type:      ledger.TransactionType(t.Type),
			Symbol:    t.Symbol,
			Name:      t.Name,
			Quantity:  t.Quantity,
			Price:     t.Price,
			Total:     t.Total,
			Timestamp: t.Timestamp,
		}
		if t.PriceAtCompletion.Valid {
			tx.Outcome = &ledger.Outcome{
				PriceAtCompletion: t.PriceAtCompletion.Decimal,
				GainLoss:          t.GainLoss.Decimal,
				GainLossPercent:   t.GainLossPercent.Decimal,
			}
		}
		p.Transactions = append(p.Transactions, tx)
	}
	return p
}

// ToQuoteRecord converts a quote captured at capturedAt.
func ToQuoteRecord(q quote.Quote, capturedAt time.Time) QuoteRecord {
	return QuoteRecord{
		Symbol:        q.Symbol,
		Name:          q.Name,
		Price:         q.Price,
		Change:        q.Change,
		ChangePercent: q.ChangePercent,
		Open:          q.Open,
		High:          q.High,
		Low:           q.Low,
		PreviousClose: q.PreviousClose,
		Volume:        q.Volume,
		MarketCap:     q.MarketCap,
		PERatio:       q.PERatio,
		Source:        string(q.Source),
		QuotedAt:      q.UpdatedAt,
		UpdatedAt:     capturedAt,
	}
}

func (r QuoteRecord) Quote() quote.Quote {
	return quote.Quote{
		Symbol:        r.Symbol,
		Name:          r.Name,
		Price:         r.Price,
		Change:        r.Change,
		ChangePercent: r.ChangePercent,
		Open:          r.Open,
		High:          r.High,
		Low:           r.Low,
		PreviousClose: r.PreviousClose,
		Volume:        r.Volume,
		MarketCap:     r.MarketCap,
		PERatio:       r.PERatio,
		Source:        quote.Source(r.Source),
		UpdatedAt:     r.QuotedAt,
	}
}

// ToBarRecords converts a series for storage under key.
func ToBarRecords(key, symbol string, bars []quote.Bar, source quote.Source, fetchedAt time.Time) []HistoricalBarRecord {
	out := make([]HistoricalBarRecord, len(bars))
	for i, b := range bars {
		out[i] = HistoricalBarRecord{
			CacheKey:  key,
			Timestamp: b.Timestamp,
			Symbol:    symbol,
			Open:      b.Open,
			High:      b.High,
			Low:       b.Low,
			Close:     b.Close,
			Volume:    b.Volume,
			Source:    string(source),
			FetchedAt: fetchedAt,
		}
	}
	return out
}

func (r HistoricalBarRecord) Bar() quote.Bar {
	return quote.Bar{
		Timestamp: r.Timestamp,
		Open:      r.Open,
		High:      r.High,
		Low:       r.Low,
		Close:     r.Close,
		Volume:    r.Volume,
	}
}
