package quote

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"papertrade/internal/market"
	"papertrade/internal/memorystore"
	"papertrade/pkg/finnhub"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Searcher looks up symbols upstream.
type Searcher interface {
	Search(ctx context.Context, query string) ([]finnhub.SearchResult, error)
}

// Options configures a Cache. Zero values fall back to defaults.
type Options struct {
	LocalPolicy      market.Policy
	SharedPolicy     market.Policy
	Converter        market.Converter
	FetchConcurrency int
	Now              func() time.Time
}

// Cache resolves quotes and series through the client tier, the shared tier,
// the provider chain and finally the synthesizer, in that order.
//
// The client tier holds values as returned to callers, after currency
// conversion. The shared tier holds provider data as received.
type Cache struct {
	local       *memorystore.EntryStore[Quote]
	localSeries *memorystore.EntryStore[Series]
	shared      SharedTier
	quotes      Chain
	history     HistoryChain
	synth       *Synthesizer
	searcher    Searcher
	opts        Options
	logger      *zap.Logger
}

func NewCache(shared SharedTier, quotes Chain, history HistoryChain, synth *Synthesizer, searcher Searcher, opts Options, logger *zap.Logger) *Cache {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.LocalPolicy == (market.Policy{}) {
		opts.LocalPolicy = market.DefaultPolicy()
	}
	if opts.SharedPolicy == (market.Policy{}) {
		opts.SharedPolicy = market.DefaultPolicy()
	}
	if opts.FetchConcurrency <= 0 {
		opts.FetchConcurrency = 5
	}
	if synth == nil {
		synth = NewSynthesizer(time.Now().UnixNano())
	}
	return &Cache{
		local:       memorystore.NewEntryStore[Quote](opts.Now),
		localSeries: memorystore.NewEntryStore[Series](opts.Now),
		shared:      shared,
		quotes:      quotes,
		history:     history,
		synth:       synth,
		searcher:    searcher,
		opts:        opts,
		logger:      logger,
	}
}

type origin int

const (
	fromLocal origin = iota
	fromShared
	fromUpstream
	fromSynthetic
)

// Quote returns the best available quote for symbol. It never fails: when
// every provider is down the result is synthetic and tagged as such.
func (c *Cache) Quote(ctx context.Context, symbol string) Quote {
	q, _ := c.resolve(ctx, normalize(symbol), false)
	return q
}

// resolve walks the tiers for symbol. skipLocal bypasses the client tier
// only; a fresh shared entry still answers, so the shared window bounds
// upstream calls even for forced refreshes.
func (c *Cache) resolve(ctx context.Context, symbol string, skipLocal bool) (Quote, origin) {
	now := c.opts.Now()

	if !skipLocal {
		if q, ok := c.local.Get(symbol, c.opts.LocalPolicy.QuoteTTL(symbol, now)); ok {
			return q, fromLocal
		}
	}

	if c.shared != nil {
		q, capturedAt, err := c.shared.GetQuote(ctx, symbol)
		switch {
		case err == nil && market.Fresh(capturedAt, now, c.opts.SharedPolicy.QuoteTTL(symbol, now)):
			out := c.convertQuote(q)
			c.local.Set(symbol, out)
			return out, fromShared
		case err != nil && !errors.Is(err, ErrNotCached):
			c.logger.Warn("shared quote lookup failed", zap.String("symbol", symbol), zap.Error(err))
		}
	}

	q, err := c.quotes.FetchQuote(ctx, symbol)
	if err == nil {
		q.Symbol = symbol
		q.UpdatedAt = now
		if c.shared != nil {
			if err := c.shared.PutQuote(ctx, q); err != nil {
				c.logger.Warn("failed to store quote", zap.String("symbol", symbol), zap.Error(err))
			}
		}
		out := c.convertQuote(q)
		c.local.Set(symbol, out)
		return out, fromUpstream
	}

	c.logger.Warn("using synthetic quote", zap.String("symbol", symbol), zap.Error(err))
	return c.convertQuote(c.synth.Quote(symbol, now)), fromSynthetic
}

// Batch is the result of a multi-symbol lookup.
type Batch struct {
	Success      bool             `json:"success"`
	Data         map[string]Quote `json:"data"`
	Cached       int              `json:"cached"`
	Fetched      int              `json:"fetched"`
	Synthesized  int              `json:"synthesized"`
	MarketStatus market.Status    `json:"marketStatus"`
}

// Quotes resolves several symbols concurrently. With force set the client
// tier is bypassed; the shared tier is left intact and still answers while
// its entries are fresh.
func (c *Cache) Quotes(ctx context.Context, symbols []string, force bool) Batch {
	symbols = dedupe(symbols)

	batch := Batch{
		Success:      true,
		Data:         make(map[string]Quote, len(symbols)),
		MarketStatus: market.StatusAt(c.opts.Now()),
	}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.FetchConcurrency)
	for _, symbol := range symbols {
		g.Go(func() error {
			q, from := c.resolve(gctx, symbol, force)

			mu.Lock()
			defer mu.Unlock()
			batch.Data[symbol] = q
			switch from {
			case fromLocal, fromShared:
				batch.Cached++
			case fromUpstream:
				batch.Fetched++
			default:
				batch.Synthesized++
			}
			return nil
		})
	}
	_ = g.Wait()

	c.logger.Debug("quote batch resolved",
		zap.Int("symbols", len(symbols)),
		zap.Int("cached", batch.Cached),
		zap.Int("fetched", batch.Fetched),
		zap.Int("synthesized", batch.Synthesized))
	return batch
}

// Prices returns latest prices for symbols, leaving out synthetic ones so a
// caller marking positions keeps its previous marks instead.
func (c *Cache) Prices(ctx context.Context, symbols []string, force bool) map[string]float64 {
	batch := c.Quotes(ctx, symbols, force)
	out := make(map[string]float64, len(batch.Data))
	for sym, q := range batch.Data {
		if q.Source.Authoritative() {
			out[sym] = q.Price
		}
	}
	return out
}

// History returns the series for req. Only a malformed request is an error.
func (c *Cache) History(ctx context.Context, req HistoryRequest) (Series, error) {
	req.Symbol = normalize(req.Symbol)
	if req.Symbol == "" {
		return Series{}, errors.New("symbol is required")
	}
	if _, err := market.ParsePeriod(string(req.Period)); err != nil {
		return Series{}, err
	}
	if req.Period == market.PeriodCustom && !req.Start.Before(req.End) {
		return Series{}, fmt.Errorf("custom range needs start before end")
	}

	now := c.opts.Now()
	key := req.Key()

	if s, ok := c.localSeries.Get(key, c.opts.LocalPolicy.HistoryTTL(req.Period, req.Symbol, now)); ok {
		s.Cached = true
		return s, nil
	}

	if c.shared != nil {
		bars, source, capturedAt, err := c.shared.GetSeries(ctx, key)
		switch {
		case err == nil && len(bars) > 0 && market.Fresh(capturedAt, now, c.opts.SharedPolicy.HistoryTTL(req.Period, req.Symbol, now)):
			s := Series{Symbol: req.Symbol, Period: req.Period, Bars: c.convertBars(req.Symbol, bars), Source: source}
			c.localSeries.Set(key, s)
			s.Cached = true
			return s, nil
		case err != nil && !errors.Is(err, ErrNotCached):
			c.logger.Warn("shared series lookup failed", zap.String("key", key), zap.Error(err))
		}
	}

	end := market.ExchangeFor(req.Symbol).DataEnd(now)
	bars, provider, err := c.history.FetchHistory(ctx, req, end)
	if err == nil {
		if c.shared != nil {
			if err := c.shared.PutSeries(ctx, key, bars, Source(provider)); err != nil {
				c.logger.Warn("failed to store series", zap.String("key", key), zap.Error(err))
			}
		}
		s := Series{Symbol: req.Symbol, Period: req.Period, Bars: c.convertBars(req.Symbol, bars), Source: Source(provider)}
		c.localSeries.Set(key, s)
		return s, nil
	}

	c.logger.Warn("using synthetic series", zap.String("key", key), zap.Error(err))
	// The anchor quote is already converted, so the walk is too.
	anchor := c.Quote(ctx, req.Symbol)
	return Series{
		Symbol: req.Symbol,
		Period: req.Period,
		Bars:   c.synth.Series(anchor, req, now),
		Source: SourceSynthetic,
	}, nil
}

// PriceOn returns the closing price of symbol on the day starting at date,
// falling back to a synthetic price.
func (c *Cache) PriceOn(ctx context.Context, symbol string, date time.Time) (float64, Source) {
	s, err := c.History(ctx, HistoryRequest{
		Symbol: symbol,
		Period: market.PeriodCustom,
		Start:  date,
		End:    date.Add(24 * time.Hour),
	})
	if err == nil && s.Source.Authoritative() && len(s.Bars) > 0 {
		return s.Bars[0].Close, s.Source
	}
	q := c.convertQuote(c.synth.Quote(normalize(symbol), c.opts.Now()))
	return q.Price, SourceSynthetic
}

// Clear evicts symbol from both tiers so the next lookup goes upstream.
func (c *Cache) Clear(ctx context.Context, symbol string) {
	symbol = normalize(symbol)
	c.local.Delete(symbol)
	c.localSeries.DeletePrefix(symbol + ":")
	if c.shared != nil {
		if err := c.shared.DeleteQuote(ctx, symbol); err != nil {
			c.logger.Warn("failed to clear shared quote", zap.String("symbol", symbol), zap.Error(err))
		}
	}
}

// ClearAll empties the client tier.
func (c *Cache) ClearAll() {
	c.local.DeleteAll()
	c.localSeries.DeleteAll()
}

// Prune drops stale client-tier entries and returns how many went.
func (c *Cache) Prune() int {
	now := c.opts.Now()
	n := c.local.Prune(func(symbol string, _ Quote) time.Duration {
		return c.opts.LocalPolicy.QuoteTTL(symbol, now)
	})
	n += c.localSeries.Prune(func(_ string, s Series) time.Duration {
		return c.opts.LocalPolicy.HistoryTTL(s.Period, s.Symbol, now)
	})
	return n
}

// ApplyTrade folds a streamed trade into the cached quote for its symbol.
func (c *Cache) ApplyTrade(ctx context.Context, tr Trade) (Quote, error) {
	symbol := normalize(tr.Symbol)
	if symbol == "" || tr.Price <= 0 {
		return Quote{}, fmt.Errorf("%w: trade %+v", ErrInvalidPayload, tr)
	}
	now := c.opts.Now()

	var q Quote
	var found bool
	if c.shared != nil {
		prev, _, err := c.shared.GetQuote(ctx, symbol)
		if err == nil {
			q, found = prev, true
		} else if !errors.Is(err, ErrNotCached) {
			return Quote{}, err
		}
	}

	if !found {
		q = Quote{
			Symbol:        symbol,
			Name:          DisplayName(symbol),
			Open:          tr.Price,
			High:          tr.Price,
			Low:           tr.Price,
			PreviousClose: tr.Price,
		}
	}

	q.Price = tr.Price
	if q.PreviousClose > 0 {
		q.Change = tr.Price - q.PreviousClose
		q.ChangePercent = q.Change / q.PreviousClose * 100
	}
	if tr.Price > q.High {
		q.High = tr.Price
	}
	if q.Low == 0 || tr.Price < q.Low {
		q.Low = tr.Price
	}
	q.Volume += int64(tr.Volume)
	q.Source = SourceStream
	q.UpdatedAt = now

	if c.shared != nil {
		if err := c.shared.PutQuote(ctx, q); err != nil {
			return Quote{}, err
		}
	}
	out := c.convertQuote(q)
	c.local.Set(symbol, out)
	return out, nil
}

// Search returns listings matching query: the popular list for an empty
// query, upstream results otherwise, and a local match if upstream fails.
func (c *Cache) Search(ctx context.Context, query string) []Listing {
	if strings.TrimSpace(query) == "" {
		return Popular()
	}
	if c.searcher == nil {
		return filterPopular(query)
	}

	results, err := c.searcher.Search(ctx, query)
	if err != nil {
		c.logger.Warn("symbol search failed, using local list", zap.String("query", query), zap.Error(err))
		return filterPopular(query)
	}

	out := make([]Listing, 0, min(len(results), 50))
	for _, r := range results {
		if len(out) == 50 {
			break
		}
		name := r.Description
		if name == "" {
			name = r.DisplaySymbol
		}
		if name == "" {
			name = r.Symbol
		}
		typ := r.Type
		if typ == "" {
			typ = "Stock"
		}
		out = append(out, Listing{Symbol: r.Symbol, Name: name, Type: typ})
	}
	return out
}

func (c *Cache) convertQuote(q Quote) Quote {
	conv := c.opts.Converter
	if !conv.Applies(q.Symbol) {
		return q
	}
	q.Price = conv.Price(q.Symbol, q.Price)
	q.Change = conv.Price(q.Symbol, q.Change)
	q.Open = conv.Price(q.Symbol, q.Open)
	q.High = conv.Price(q.Symbol, q.High)
	q.Low = conv.Price(q.Symbol, q.Low)
	q.PreviousClose = conv.Price(q.Symbol, q.PreviousClose)
	if q.MarketCap != nil {
		mc := conv.Price(q.Symbol, *q.MarketCap)
		q.MarketCap = &mc
	}
	return q
}

func (c *Cache) convertBars(symbol string, bars []Bar) []Bar {
	conv := c.opts.Converter
	out := make([]Bar, len(bars))
	copy(out, bars)
	if !conv.Applies(symbol) {
		return out
	}
	for i := range out {
		out[i].Open = conv.Price(symbol, out[i].Open)
		out[i].High = conv.Price(symbol, out[i].High)
		out[i].Low = conv.Price(symbol, out[i].Low)
		out[i].Close = conv.Price(symbol, out[i].Close)
	}
	return out
}

func normalize(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

func dedupe(symbols []string) []string {
	seen := make(map[string]bool, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		s = normalize(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
