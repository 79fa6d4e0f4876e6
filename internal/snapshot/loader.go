package snapshot

import (
	"context"
	"strings"

	"papertrade/internal/quote"

	"go.uber.org/zap"
)

// WatchlistLoader streams the symbols the collector tracks.
type WatchlistLoader struct {
	Symbols []string // empty means the built-in popular list
	Logger  *zap.Logger
}

func (l *WatchlistLoader) symbols() []string {
	if len(l.Symbols) == 0 {
		return quote.PopularSymbols()
	}
	out := make([]string, 0, len(l.Symbols))
	for _, s := range l.Symbols {
		if s = strings.ToUpper(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// LoadSymbols streams the watchlist into ch and closes it.
func (l *WatchlistLoader) LoadSymbols(ctx context.Context, ch chan<- string) error {
	defer close(ch) // Ensure downstream consumers can exit cleanly

	symbols := l.symbols()
	l.Logger.Info("loaded watchlist", zap.Int("count", len(symbols)))

	for _, symbol := range symbols {
		select {
		case ch <- symbol:
		case <-ctx.Done():
			l.Logger.Warn("symbol streaming interrupted", zap.Error(ctx.Err()))
			return ctx.Err()
		}
	}

	return nil
}
