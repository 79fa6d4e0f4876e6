package collector

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"papertrade/config"
	"papertrade/internal/quote"

	"go.uber.org/zap"
)

type fakeQuotes struct {
	mu      sync.Mutex
	updated time.Time
	forced []bool
	trades []quote.Trade
}

func (f *fakeQuotes) Quotes(_ context.Context, symbols []string, force bool) quote.Batch {
	f.mu.Lock()
	f.forced = append(f.forced, force)
	updated := f.updated
	f.mu.Unlock()

	b := quote.Batch{Success: true, Data: map[string]quote.Quote{}}
	for _, s := range symbols {
		src := quote.SourceFinnhub
		if s == "ZZZZ" {
			src = quote.SourceSynthetic
		}
		b.Data[s] = quote.Quote{Symbol: s, Price: 10, Source: src, UpdatedAt: updated}
	}
	return b
}

func (f *fakeQuotes) ApplyTrade(_ context.Context, tr quote.Trade) (quote.Quote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.trades = append(f.trades, tr)
	return quote.Quote{Symbol: tr.Symbol, Price: tr.Price}, nil
}

type fakeSnapshots struct {
	mu      sync.Mutex
	symbols map[string]bool
	fail    string
}

func (f *fakeSnapshots) InsertSnapshot(_ context.Context, q quote.Quote) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if q.Symbol == f.fail {
		return errors.New("insert failed")
	}
	f.symbols[q.Symbol] = true
	return nil
}

type fakeStream struct {
	handler   func([]byte)
	connected bool
	listening chan struct{}
}

func (s *fakeStream) SetMessageHandler(h func([]byte)) {
	s.handler = h
}

func (s *fakeStream) Connect(context.Context) error {
	s.connected = true
	return nil
}

func (s *fakeStream) Listen(ctx context.Context) {
	close(s.listening)
	<-ctx.Done()
}

// go test -v --run TestCollectOnce
func TestCollectOnce(t *testing.T) {
	quotes := &fakeQuotes{}
	snaps := &fakeSnapshots{symbols: map[string]bool{}, fail: "MSFT"}
	c := New(config.CollectorConfig{}, Deps{Quotes: quotes, Snapshots: snaps, Logger: zap.NewNop()})

	for _, s := range []string{"AAPL", "MSFT", "TCS.NS", "ZZZZ"} {
		c.Symbols().Add(s)
	}

	if n := c.CollectOnce(context.Background()); n != 2 {
		t.Fatalf("wrote %d snapshots, want 2", n)
	}
	if !snaps.symbols["AAPL"] || !snaps.symbols["TCS.NS"] || snaps.symbols["ZZZZ"] {
		t.Fatalf("unexpected snapshots: %v", snaps.symbols)
	}
	if len(quotes.forced) != 1 || !quotes.forced[0] {
		t.Fatalf("expected one forced refresh, got %v", quotes.forced)
	}
}

// go test -v --run TestCollectOnceSkipsUnchangedQuotes
func TestCollectOnceSkipsUnchangedQuotes(t *testing.T) {
	at := time.Date(2024, 7, 13, 15, 0, 0, 0, time.UTC)
	quotes := &fakeQuotes{updated: at}
	snaps := &fakeSnapshots{symbols: map[string]bool{}}
	c := New(config.CollectorConfig{}, Deps{Quotes: quotes, Snapshots: snaps, Logger: zap.NewNop()})
	c.Symbols().Add("AAPL")

	if n := c.CollectOnce(context.Background()); n != 1 {
		t.Fatalf("first tick wrote %d snapshots, want 1", n)
	}
	// Served from the shared tier: same capture, nothing new to record.
	if n := c.CollectOnce(context.Background()); n != 0 {
		t.Fatalf("unchanged quote wrote %d snapshots", n)
	}

	quotes.mu.Lock()
	quotes.updated = at.Add(time.Hour)
	quotes.mu.Unlock()
	if n := c.CollectOnce(context.Background()); n != 1 {
		t.Fatalf("refreshed quote wrote %d snapshots, want 1", n)
	}
}

// go test -v --run TestStartWiresStream
func TestStartWiresStream(t *testing.T) {
	quotes := &fakeQuotes{}
	ws := &fakeStream{listening: make(chan struct{})}
	c := New(config.CollectorConfig{Interval: time.Hour, Watchlist: []string{"aapl", "msft"}},
		Deps{Quotes: quotes, Stream: ws, Logger: zap.NewNop()})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := c.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	<-ws.listening

	if got := c.Symbols().GetAll(); len(got) != 2 || got[0] != "AAPL" {
		t.Fatalf("tracked symbols = %v", got)
	}
	if !ws.connected || ws.handler == nil {
		t.Fatalf("stream not wired")
	}

	ws.handler([]byte(`{"type":"trade","data":[{"p":191,"s":"AAPL","t":1,"v":2}]}`))
	quotes.mu.Lock()
	defer quotes.mu.Unlock()
	if len(quotes.trades) != 1 || quotes.trades[0].Price != 191 {
		t.Fatalf("trade not applied: %+v", quotes.trades)
	}
}
