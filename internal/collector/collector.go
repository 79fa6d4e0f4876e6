package collector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"papertrade/config"
	"papertrade/internal/memorystore"
	"papertrade/internal/quote"
	"papertrade/internal/scheduler"
	"papertrade/internal/snapshot"
	"papertrade/internal/stream"

	"go.uber.org/zap"
)

// QuoteSource is the part of the quote cache the collector drives.
type QuoteSource interface {
	Quotes(ctx context.Context, symbols []string, force bool) quote.Batch
	ApplyTrade(ctx context.Context, tr quote.Trade) (quote.Quote, error)
}

// SnapshotWriter records collected quotes.
type SnapshotWriter interface {
	InsertSnapshot(ctx context.Context, q quote.Quote) error
}

// Streamer is a live trade feed.
type Streamer interface {
	SetMessageHandler(h func([]byte))
	Connect(ctx context.Context) error
	Listen(ctx context.Context)
}

// Deps are the collaborators of a Collector. Snapshots, Stream and
// Housekeeping are optional.
type Deps struct {
	Quotes       QuoteSource
	Snapshots    SnapshotWriter
	Stream       Streamer
	Housekeeping *scheduler.Midnight
	Symbols      *memorystore.MemorySymbolStore
	Logger       *zap.Logger
}

// Collector keeps watchlist quotes warm in both cache tiers.
type Collector struct {
	cfg  config.CollectorConfig
	deps Deps

	mu      sync.Mutex
	written map[string]time.Time // symbol -> UpdatedAt of the last snapshot
}

func New(cfg config.CollectorConfig, deps Deps) *Collector {
	if deps.Symbols == nil {
		deps.Symbols = memorystore.NewSymbolStore()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	return &Collector{cfg: cfg, deps: deps, written: make(map[string]time.Time)}
}

// Symbols is the tracked symbol set; the stream subscribes to it.
func (c *Collector) Symbols() *memorystore.MemorySymbolStore {
	return c.deps.Symbols
}

// Start loads the watchlist and launches the refresh loop, the trade stream
// and housekeeping. It returns once everything is running; work stops when
// ctx is canceled.
func (c *Collector) Start(ctx context.Context) error {
	logger := c.deps.Logger

	// Load watchlist asynchronously into the symbol store
	loader := &snapshot.WatchlistLoader{Symbols: c.cfg.Watchlist, Logger: logger}
	symbolCh := make(chan string, 100)
	go func() {
		if err := loader.LoadSymbols(ctx, symbolCh); err != nil {
			logger.Warn("failed to load watchlist", zap.Error(err))
		}
	}()
	select {
	case <-c.deps.Symbols.StartWorker(symbolCh):
	case <-ctx.Done():
		return ctx.Err()
	}
	logger.Info("tracking symbols", zap.Int("count", len(c.deps.Symbols.GetAll())))

	if c.deps.Stream != nil {
		c.deps.Stream.SetMessageHandler(stream.MakeMessageHandler(logger, c.deps.Quotes))
		if err := c.deps.Stream.Connect(ctx); err != nil {
			return fmt.Errorf("connect trade stream: %w", err)
		}
		go c.deps.Stream.Listen(ctx)
	}

	if c.deps.Housekeeping != nil {
		c.deps.Housekeeping.Start(ctx)
	}

	go c.loop(ctx)
	return nil
}

func (c *Collector) loop(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.Interval)
	defer ticker.Stop()

	for {
		c.CollectOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// CollectOnce refreshes every tracked symbol past the client tier and records
// a snapshot of each real quote it has not recorded yet. Symbols still fresh
// in the shared tier are not fetched again. It returns the number of
// snapshots written.
func (c *Collector) CollectOnce(ctx context.Context) int {
	logger := c.deps.Logger
	symbols := c.deps.Symbols.GetAll()
	if len(symbols) == 0 {
		return 0
	}

	batch := c.deps.Quotes.Quotes(ctx, symbols, true)
	logger.Info("collected quotes",
		zap.Int("symbols", len(symbols)),
		zap.Int("fetched", batch.Fetched),
		zap.Int("synthesized", batch.Synthesized))

	if c.deps.Snapshots == nil {
		return 0
	}

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		written int
	)
	sem := make(chan struct{}, 5) // max 5 concurrent inserts
	for symbol, q := range batch.Data {
		if !q.Source.Authoritative() || !c.isNew(symbol, q.UpdatedAt) {
			continue
		}
		sem <- struct{}{}
		wg.Add(1)
		go func() {
			defer func() { <-sem; wg.Done() }()

			dbCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
			err := c.deps.Snapshots.InsertSnapshot(dbCtx, q)
			cancel()
			if err != nil {
				logger.Warn("failed to insert snapshot", zap.String("symbol", symbol), zap.Error(err))
				return
			}
			c.markWritten(symbol, q.UpdatedAt)
			mu.Lock()
			written++
			mu.Unlock()
		}()
	}
	wg.Wait()
	return written
}

func (c *Collector) isNew(symbol string, updatedAt time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	last, ok := c.written[symbol]
	return !ok || updatedAt.After(last)
}

func (c *Collector) markWritten(symbol string, updatedAt time.Time) {
	c.mu.Lock()
	c.written[symbol] = updatedAt
	c.mu.Unlock()
}
