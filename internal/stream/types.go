package stream

import (
	"context"

	"papertrade/internal/quote"
)

// TradeSink receives parsed trades.
type TradeSink interface {
	ApplyTrade(ctx context.Context, tr quote.Trade) (quote.Quote, error)
}

// messageTypeTrade marks a Finnhub trade push; pings and
// subscription acks carry other types.
const messageTypeTrade = "trade"
