package postgres

import (
	"testing"
	"time"

	"papertrade/internal/ledger"
	"papertrade/internal/quote"

	"github.com/shopspring/decimal"
)

func samplePortfolio(t *testing.T) *ledger.Portfolio {
	t.Helper()
	p := ledger.New(decimal.NewFromInt(100000))
	at := time.Date(2024, 7, 15, 15, 0, 0, 0, time.UTC)

	if _, err := p.Buy(ledger.Order{Symbol: "TCS.NS", Name: "Tata Consultancy Services", Quantity: 10, Price: decimal.NewFromInt(1000), At: at}); err != nil {
		t.Fatalf("buy: %v", err)
	}
	if _, err := p.Buy(ledger.Order{Symbol: "INFY.NS", Quantity: 4, Price: decimal.NewFromInt(1500), At: at.Add(time.Minute)}); err != nil {
		t.Fatalf("buy: %v", err)
	}
	if _, err := p.Sell(ledger.Order{Symbol: "TCS.NS", Quantity: 5, Price: decimal.NewFromInt(1100), At: at.Add(2 * time.Minute)}); err != nil {
		t.Fatalf("sell: %v", err)
	}
	p.Transactions[2].Outcome = &ledger.Outcome{
		PriceAtCompletion: decimal.NewFromInt(1200),
		GainLoss:          decimal.NewFromInt(2000),
		GainLossPercent:   decimal.NewFromInt(20),
	}
	p.Version = 3
	return p
}

// go test -v --run TestPortfolioRecordRoundTrip
func TestPortfolioRecordRoundTrip(t *testing.T) {
	p := samplePortfolio(t)

	holdings := ToHoldingRecords(7, p)
	trades := ToTradeRecords(7, p)
	if len(holdings) != 2 || holdings[0].Symbol != "INFY.NS" {
		t.Fatalf("holdings not sorted by symbol: %+v", holdings)
	}
	if trades[0].Seq != 3 || trades[2].Seq != 1 || trades[0].Type != "sell" {
		t.Fatalf("unexpected trade sequence: %+v", trades)
	}
	if !trades[2].PriceAtCompletion.Valid || trades[0].PriceAtCompletion.Valid {
		t.Fatalf("outcome columns not mapped")
	}

	rec := PortfolioRecord{ID: 7, Owner: "u1", Cash: p.Cash, StartingCash: p.StartingCash, Version: p.Version}
	got := ToPortfolio(rec, holdings, trades)

	if !got.Cash.Equal(p.Cash) || got.Version != 3 {
		t.Fatalf("cash/version mismatch: %s v%d", got.Cash, got.Version)
	}
	if len(got.Positions) != 2 || got.Positions["TCS.NS"].Quantity != 5 {
		t.Fatalf("positions mismatch: %+v", got.Positions)
	}
	if len(got.Transactions) != 3 || got.Transactions[0].ID != p.Transactions[0].ID {
		t.Fatalf("transactions out of order")
	}
	if o := got.Transactions[2].Outcome; o == nil || !o.GainLoss.Equal(decimal.NewFromInt(2000)) {
		t.Fatalf("outcome lost: %+v", o)
	}
	if got.Transactions[0].Outcome != nil {
		t.Fatalf("unexpected outcome on open trade")
	}
}

// go test -v --run TestQuoteRecordConversion
func TestQuoteRecordConversion(t *testing.T) {
	quotedAt := time.Date(2024, 7, 15, 15, 0, 0, 0, time.UTC)
	mc := 2.95e12
	q := quote.Quote{Symbol: "AAPL", Name: "Apple Inc", Price: 189.5, High: 190, Low: 187, PreviousClose: 188, MarketCap: &mc, Source: quote.SourceFinnhub, UpdatedAt: quotedAt}

	rec := ToQuoteRecord(q, quotedAt.Add(time.Second))
	if !rec.UpdatedAt.Equal(quotedAt.Add(time.Second)) || rec.Source != "finnhub" {
		t.Fatalf("unexpected record: %+v", rec)
	}

	back := rec.Quote()
	if back.Price != 189.5 || back.MarketCap == nil || *back.MarketCap != mc || !back.UpdatedAt.Equal(quotedAt) {
		t.Fatalf("unexpected quote: %+v", back)
	}

	bars := []quote.Bar{{Timestamp: 1720000000000, Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 10}}
	recs := ToBarRecords("AAPL:1mo", "AAPL", bars, quote.SourceYahoo, quotedAt)
	if len(recs) != 1 || recs[0].Bar() != bars[0] || recs[0].Source != "yahoo" {
		t.Fatalf("unexpected bar records: %+v", recs)
	}
}
