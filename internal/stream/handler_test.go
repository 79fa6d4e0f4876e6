package stream

import (
	"context"
	"errors"
	"sync"
	"testing"

	"papertrade/internal/quote"

	"go.uber.org/zap"
)

type recordingSink struct {
	mu     sync.Mutex
	trades []quote.Trade
	fail   string
}

func (s *recordingSink) ApplyTrade(_ context.Context, tr quote.Trade) (quote.Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tr.Symbol == s.fail {
		return quote.Quote{}, errors.New("store down")
	}
	s.trades = append(s.trades, tr)
	return quote.Quote{Symbol: tr.Symbol, Price: tr.Price}, nil
}

// go test -v --run TestParseTradeMessage
func TestParseTradeMessage(t *testing.T) {
	tests := []struct {
		name    string
		msg     string
		want    int
		wantErr bool
	}{
		{"trade", `{"type":"trade","data":[{"p":190.5,"s":"AAPL","t":1721052000000,"v":10},{"p":420,"s":"msft","t":1721052000001,"v":3}]}`, 2, false},
		{"ping", `{"type":"ping"}`, 0, false},
		{"zero price skipped", `{"type":"trade","data":[{"p":0,"s":"AAPL","t":1,"v":1}]}`, 0, false},
		{"garbage", `not json`, 0, true},
		{"bad data", `{"type":"trade","data":"nope"}`, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trades, err := ParseTradeMessage([]byte(tt.msg))
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, quote.ErrInvalidPayload) {
				t.Fatalf("expected ErrInvalidPayload, got %v", err)
			}
			if len(trades) != tt.want {
				t.Fatalf("got %d trades, want %d", len(trades), tt.want)
			}
		})
	}

	trades, _ := ParseTradeMessage([]byte(tests[0].msg))
	if trades[1].Symbol != "MSFT" || trades[0].Volume != 10 {
		t.Fatalf("unexpected trades: %+v", trades)
	}
}

// go test -v --run TestMessageHandlerAppliesTrades
func TestMessageHandlerAppliesTrades(t *testing.T) {
	sink := &recordingSink{fail: "MSFT"}
	handler := MakeMessageHandler(zap.NewNop(), sink)

	handler([]byte(`{"type":"trade","data":[{"p":190.5,"s":"AAPL","t":1,"v":10},{"p":420,"s":"MSFT","t":2,"v":3}]}`))
	handler([]byte(`{"type":"ping"}`))

	if len(sink.trades) != 1 || sink.trades[0].Symbol != "AAPL" {
		t.Fatalf("unexpected applied trades: %+v", sink.trades)
	}

	n, err := Apply(context.Background(), zap.NewNop(), sink, []byte(`{"type":"trade","data":[{"p":1,"s":"TSLA","t":3,"v":1}]}`))
	if err != nil || n != 1 {
		t.Fatalf("apply: n=%d err=%v", n, err)
	}
}
