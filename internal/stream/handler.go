package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"papertrade/internal/quote"
	"papertrade/pkg/finnhub"

	"go.uber.org/zap"
)

// ParseTradeMessage decodes a Finnhub trade push. Messages of any other type
// yield no trades and no error.
func ParseTradeMessage(msg []byte) ([]quote.Trade, error) {
	// Step 1: Extract type for early filtering
	var meta struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(msg, &meta); err != nil {
		return nil, fmt.Errorf("%w: %v", quote.ErrInvalidPayload, err)
	}
	if meta.Type != messageTypeTrade {
		return nil, nil
	}

	// Step 2: Fully parse the trade payload
	var parsed finnhub.TradeMessage
	if err := json.Unmarshal(msg, &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", quote.ErrInvalidPayload, err)
	}

	trades := make([]quote.Trade, 0, len(parsed.Data))
	for _, d := range parsed.Data {
		symbol := strings.ToUpper(strings.TrimSpace(d.Symbol))
		if symbol == "" || d.Price <= 0 {
			continue
		}
		trades = append(trades, quote.Trade{
			Symbol:    symbol,
			Price:     d.Price,
			Volume:    d.Volume,
			Timestamp: d.Timestamp,
		})
	}
	return trades, nil
}

// Apply parses msg and hands each trade to sink. It returns how many trades
// were applied.
func Apply(ctx context.Context, logger *zap.Logger, sink TradeSink, msg []byte) (int, error) {
	trades, err := ParseTradeMessage(msg)
	if err != nil {
		return 0, err
	}

	applied := 0
	for _, tr := range trades {
		if _, err := sink.ApplyTrade(ctx, tr); err != nil {
			logger.Warn("failed to apply trade", zap.String("symbol", tr.Symbol), zap.Error(err))
			continue
		}
		applied++
	}
	return applied, nil
}

// MakeMessageHandler returns a function that handles incoming WebSocket
// messages by applying trades to the quote cache.
func MakeMessageHandler(logger *zap.Logger, sink TradeSink) func(msg []byte) {
	return func(msg []byte) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		n, err := Apply(ctx, logger, sink, msg)
		if err != nil {
			logger.Warn("failed to parse trade message", zap.Error(err))
			return
		}
		if n > 0 {
			logger.Debug("applied streamed trades", zap.Int("count", n))
		}
	}
}
