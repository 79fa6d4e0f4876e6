package quote

import (
	"context"
	"time"

	"papertrade/internal/memorystore"
)

// SharedTier is the persisted cache shared by every client. Entries carry the
// time they were captured; freshness is decided by the reader.
type SharedTier interface {
	GetQuote(ctx context.Context, symbol string) (Quote, time.Time, error)
	PutQuote(ctx context.Context, q Quote) error
	DeleteQuote(ctx context.Context, symbol string) error
	GetSeries(ctx context.Context, key string) ([]Bar, Source, time.Time, error)
	PutSeries(ctx context.Context, key string, bars []Bar, source Source) error
}

type storedSeries struct {
	bars   []Bar
	source Source
}

// MemoryTier is a SharedTier kept in process, used when no database is configured.
type MemoryTier struct {
	quotes *memorystore.EntryStore[Quote]
	series *memorystore.EntryStore[storedSeries]
	now    func() time.Time
}

func NewMemoryTier(now func() time.Time) *MemoryTier {
	if now == nil {
		now = time.Now
	}
	return &MemoryTier{
		quotes: memorystore.NewEntryStore[Quote](now),
		series: memorystore.NewEntryStore[storedSeries](now),
		now:    now,
	}
}

func (t *MemoryTier) GetQuote(_ context.Context, symbol string) (Quote, time.Time, error) {
	q, at, ok := t.quotes.Peek(symbol)
	if !ok {
		return Quote{}, time.Time{}, ErrNotCached
	}
	return q, at, nil
}

func (t *MemoryTier) PutQuote(_ context.Context, q Quote) error {
	t.quotes.Set(q.Symbol, q)
	return nil
}

func (t *MemoryTier) DeleteQuote(_ context.Context, symbol string) error {
	t.quotes.Delete(symbol)
	return nil
}

func (t *MemoryTier) GetSeries(_ context.Context, key string) ([]Bar, Source, time.Time, error) {
	s, at, ok := t.series.Peek(key)
	if !ok {
		return nil, "", time.Time{}, ErrNotCached
	}
	return s.bars, s.source, at, nil
}

func (t *MemoryTier) PutSeries(_ context.Context, key string, bars []Bar, source Source) error {
	cp := make([]Bar, len(bars))
	copy(cp, bars)
	t.series.Set(key, storedSeries{bars: cp, source: source})
	return nil
}

// Prune drops entries older than maxAge.
func (t *MemoryTier) Prune(maxAge time.Duration) int {
	n := t.quotes.Prune(func(string, Quote) time.Duration { return maxAge })
	n += t.series.Prune(func(string, storedSeries) time.Duration { return maxAge })
	return n
}

// Purge drops entries captured before the given time.
func (t *MemoryTier) Purge(_ context.Context, before time.Time) (int64, error) {
	return int64(t.Prune(t.now().Sub(before))), nil
}
