package quote

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Provider fetches live quotes from one upstream.
type Provider interface {
	Name() string
	FetchQuote(ctx context.Context, symbol string) (Quote, error)
}

// HistoryProvider fetches historical bars from one upstream. end is the
// newest instant data may exist for.
type HistoryProvider interface {
	Name() string
	FetchHistory(ctx context.Context, req HistoryRequest, end time.Time) ([]Bar, error)
}

// Chain tries providers in order and returns the first valid quote. Each
// provider gets exactly one attempt.
type Chain []Provider

func (c Chain) FetchQuote(ctx context.Context, symbol string) (Quote, error) {
	var errs []error
	for _, p := range c {
		q, err := p.FetchQuote(ctx, symbol)
		if err == nil && !q.Valid() {
			err = fmt.Errorf("%w: no price", ErrInvalidPayload)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
			continue
		}
		return q, nil
	}
	return Quote{}, fmt.Errorf("%w for %s: %w", ErrUpstreamUnavailable, symbol, errors.Join(errs...))
}

// HistoryChain is the Chain equivalent for series.
type HistoryChain []HistoryProvider

// FetchHistory returns the bars and the name of the provider that produced them.
func (c HistoryChain) FetchHistory(ctx context.Context, req HistoryRequest, end time.Time) ([]Bar, string, error) {
	var errs []error
	for _, p := range c {
		bars, err := p.FetchHistory(ctx, req, end)
		if err == nil && len(bars) == 0 {
			err = fmt.Errorf("%w: empty series", ErrInvalidPayload)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
			continue
		}
		return bars, p.Name(), nil
	}
	return nil, "", fmt.Errorf("%w for %s: %w", ErrUpstreamUnavailable, req.Symbol, errors.Join(errs...))
}
