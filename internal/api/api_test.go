package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"papertrade/internal/ledger"
	"papertrade/internal/practice"
	"papertrade/internal/quote"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Monday 6 January 2025, 10:00 in New York.
var testNow = time.Date(2025, 1, 6, 15, 0, 0, 0, time.UTC)

type stubProvider struct {
	prices map[string]float64
	bars   []quote.Bar
}

func (p *stubProvider) Name() string { return "finnhub" }

func (p *stubProvider) FetchQuote(_ context.Context, symbol string) (quote.Quote, error) {
	price, ok := p.prices[symbol]
	if !ok {
		return quote.Quote{}, errors.New("unknown symbol")
	}
	return quote.Quote{Symbol: symbol, Name: symbol + " Inc", Price: price, PreviousClose: price}, nil
}

func (p *stubProvider) FetchHistory(context.Context, quote.HistoryRequest, time.Time) ([]quote.Bar, error) {
	return p.bars, nil
}

type testEnv struct {
	server *httptest.Server
	deps   Deps
}

func newTestEnv(t *testing.T, healthy bool) *testEnv {
	t.Helper()
	return newTestEnvWithStore(t, healthy, ledger.NewMemoryStore())
}

func newTestEnvWithStore(t *testing.T, healthy bool, store ledger.Store) *testEnv {
	t.Helper()

	now := func() time.Time { return testNow }
	logger := zap.NewNop()
	provider := &stubProvider{
		prices: map[string]float64{"AAPL": 190, "MSFT": 410},
		bars: []quote.Bar{
			{Timestamp: time.Date(2024, 12, 2, 21, 0, 0, 0, time.UTC).UnixMilli(), Open: 148, High: 151, Low: 147, Close: 150, Volume: 1000},
		},
	}

	cache := quote.NewCache(quote.NewMemoryTier(now), quote.Chain{provider}, quote.HistoryChain{provider},
		quote.NewSynthesizer(1), nil, quote.Options{Now: now}, logger)

	d := Deps{
		Quotes:        cache,
		Ledger:        ledger.NewService(store, cache, decimal.NewFromInt(100000), logger).WithClock(now),
		Practice:      practice.NewManager(cache, logger).WithClock(now),
		WebhookSecret: "s3cret",
		Healthy:       func(context.Context) bool { return healthy },
		Logger:        logger,
		Now:           now,
	}

	srv := httptest.NewServer(NewHandler(d))
	t.Cleanup(srv.Close)
	return &testEnv{server: srv, deps: d}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, header map[string]string) (int, map[string]json.RawMessage) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, e.server.URL+path, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	out := map[string]json.RawMessage{}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode %s %s: %v", method, path, err)
	}
	return resp.StatusCode, out
}

func field[T any](t *testing.T, m map[string]json.RawMessage, key string) T {
	t.Helper()
	var v T
	raw, ok := m[key]
	if !ok {
		t.Fatalf("response has no %q field: %v", key, m)
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		t.Fatalf("decode field %q: %v", key, err)
	}
	return v
}

var asUser = map[string]string{OwnerHeader: "user-1"}

// conflictingStore loses every save to a concurrent writer.
type conflictingStore struct {
	*ledger.MemoryStore
}

func (s conflictingStore) Save(context.Context, string, *ledger.Portfolio) error {
	return fmt.Errorf("save: %w", ledger.ErrStaleVersion)
}

// go test -v --run TestHealth
func TestHealth(t *testing.T) {
	tests := []struct {
		name    string
		healthy bool
		status  int
		state   string
	}{
		{"healthy", true, http.StatusOK, "ok"},
		{"storage down", false, http.StatusServiceUnavailable, "degraded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, tt.healthy)
			status, body := env.do(t, http.MethodGet, "/health", nil, nil)
			if status != tt.status {
				t.Fatalf("status = %d, want %d", status, tt.status)
			}
			if got := field[string](t, body, "status"); got != tt.state {
				t.Fatalf("state = %q, want %q", got, tt.state)
			}
		})
	}
}

// go test -v --run TestQuotesEndpoint
func TestQuotesEndpoint(t *testing.T) {
	env := newTestEnv(t, true)

	status, body := env.do(t, http.MethodPost, "/quotes", map[string]any{"symbols": []string{}}, nil)
	if status != http.StatusBadRequest || field[bool](t, body, "success") {
		t.Fatalf("empty symbols: status %d body %v", status, body)
	}

	status, body = env.do(t, http.MethodPost, "/quotes", map[string]any{"symbols": []string{"AAPL", "ZZZZ"}}, nil)
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	data := field[map[string]quote.Quote](t, body, "data")
	if data["AAPL"].Price != 190 || data["AAPL"].Source != quote.SourceFinnhub {
		t.Fatalf("AAPL = %+v", data["AAPL"])
	}
	if data["ZZZZ"].Source != quote.SourceSynthetic {
		t.Fatalf("ZZZZ should be synthetic, got %+v", data["ZZZZ"])
	}
	if field[int](t, body, "fetched") != 1 || field[int](t, body, "synthesized") != 1 {
		t.Fatalf("unexpected counters: %v", body)
	}

	status, _ = env.do(t, http.MethodDelete, "/quotes/aapl", nil, nil)
	if status != http.StatusOK {
		t.Fatalf("clear status = %d", status)
	}
}

// go test -v --run TestHistoricalEndpoint
func TestHistoricalEndpoint(t *testing.T) {
	env := newTestEnv(t, true)

	tests := []struct {
		name   string
		body   map[string]any
		status int
	}{
		{"missing period", map[string]any{"symbol": "AAPL"}, http.StatusBadRequest},
		{"custom without dates", map[string]any{"symbol": "AAPL", "period": "custom"}, http.StatusBadRequest},
		{"bad date", map[string]any{"symbol": "AAPL", "period": "custom", "startDate": "yesterday", "endDate": "2024-12-03"}, http.StatusBadRequest},
		{"unknown period", map[string]any{"symbol": "AAPL", "period": "2w"}, http.StatusBadRequest},
		{"named period", map[string]any{"symbol": "AAPL", "period": "1mo"}, http.StatusOK},
		{"custom range", map[string]any{"symbol": "AAPL", "period": "custom", "startDate": "2024-12-01", "endDate": "2024-12-03"}, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := env.do(t, http.MethodPost, "/historical", tt.body, nil)
			if status != tt.status {
				t.Fatalf("status = %d, want %d (%v)", status, tt.status, body)
			}
			if status != http.StatusOK {
				return
			}
			bars := field[[]quote.Bar](t, body, "data")
			if len(bars) != 1 || bars[0].Close != 150 {
				t.Fatalf("bars = %+v", bars)
			}
			if src := field[quote.Source](t, body, "source"); src != quote.SourceFinnhub {
				t.Fatalf("source = %q", src)
			}
		})
	}
}

// go test -v --run TestSearchEndpoint
func TestSearchEndpoint(t *testing.T) {
	env := newTestEnv(t, true)

	_, body := env.do(t, http.MethodGet, "/search", nil, nil)
	if got := field[[]quote.Listing](t, body, "results"); len(got) != len(quote.Popular()) {
		t.Fatalf("empty query returned %d results", len(got))
	}
}

// go test -v --run TestPortfolioTrading
func TestPortfolioTrading(t *testing.T) {
	env := newTestEnv(t, true)

	status, _ := env.do(t, http.MethodGet, "/portfolio", nil, nil)
	if status != http.StatusUnauthorized {
		t.Fatalf("missing owner: status = %d", status)
	}

	status, body := env.do(t, http.MethodPost, "/portfolio/buy", map[string]any{"symbol": "AAPL", "quantity": 10}, asUser)
	if status != http.StatusOK {
		t.Fatalf("buy status = %d (%v)", status, body)
	}
	tx := field[ledger.Transaction](t, body, "transaction")
	if !tx.Price.Equal(decimal.NewFromInt(190)) || tx.Name != "AAPL Inc" {
		t.Fatalf("buy should fill at the quote: %+v", tx)
	}

	status, body = env.do(t, http.MethodPost, "/portfolio/buy", map[string]any{"symbol": "MSFT", "quantity": 2, "price": 400}, asUser)
	if status != http.StatusOK {
		t.Fatalf("priced buy status = %d", status)
	}
	if tx := field[ledger.Transaction](t, body, "transaction"); !tx.Price.Equal(decimal.NewFromInt(400)) {
		t.Fatalf("explicit price ignored: %+v", tx)
	}

	status, body = env.do(t, http.MethodPost, "/portfolio/sell", map[string]any{"symbol": "AAPL", "quantity": 11}, asUser)
	if status != http.StatusBadRequest || field[bool](t, body, "success") {
		t.Fatalf("oversell: status %d body %v", status, body)
	}

	status, body = env.do(t, http.MethodPost, "/portfolio/buy", map[string]any{"symbol": "AAPL", "quantity": 1000}, asUser)
	if status != http.StatusBadRequest || field[string](t, body, "message") == "" {
		t.Fatalf("overspend: status %d body %v", status, body)
	}

	status, body = env.do(t, http.MethodGet, "/portfolio", nil, asUser)
	if status != http.StatusOK {
		t.Fatalf("portfolio status = %d", status)
	}
	v := field[ledger.Valuation](t, body, "valuation")
	if want := decimal.NewFromInt(100000 - 1900 - 800); !v.Cash.Equal(want) {
		t.Fatalf("cash = %s, want %s", v.Cash, want)
	}
	if len(v.Holdings) != 2 {
		t.Fatalf("holdings = %+v", v.Holdings)
	}

	status, body = env.do(t, http.MethodPost, "/portfolio/prices", map[string]any{"forceRefresh": true}, asUser)
	if status != http.StatusOK {
		t.Fatalf("refresh status = %d", status)
	}
	p := field[ledger.Portfolio](t, body, "portfolio")
	if !p.Positions["MSFT"].CurrentPrice.Equal(decimal.NewFromInt(410)) {
		t.Fatalf("MSFT not marked to market: %+v", p.Positions["MSFT"])
	}

	status, body = env.do(t, http.MethodPost, "/portfolio/reset", nil, asUser)
	if status != http.StatusOK {
		t.Fatalf("reset status = %d", status)
	}
	if p := field[ledger.Portfolio](t, body, "portfolio"); len(p.Positions) != 0 || !p.Cash.Equal(decimal.NewFromInt(100000)) {
		t.Fatalf("reset left %+v", p)
	}
}

// go test -v --run TestTradeWithoutLivePrice
func TestTradeWithoutLivePrice(t *testing.T) {
	env := newTestEnv(t, true)

	// NVDA is unknown upstream, so its quote is synthetic.
	status, body := env.do(t, http.MethodPost, "/portfolio/buy", map[string]any{"symbol": "NVDA", "quantity": 1}, asUser)
	if status != http.StatusServiceUnavailable || field[bool](t, body, "success") {
		t.Fatalf("synthetic fill: status %d body %v", status, body)
	}

	_, body = env.do(t, http.MethodGet, "/portfolio", nil, asUser)
	if v := field[ledger.Valuation](t, body, "valuation"); !v.Cash.Equal(decimal.NewFromInt(100000)) || len(v.Holdings) != 0 {
		t.Fatalf("portfolio changed: %+v", v)
	}

	// An explicit price needs no quote.
	status, _ = env.do(t, http.MethodPost, "/portfolio/buy", map[string]any{"symbol": "NVDA", "quantity": 1, "price": 120}, asUser)
	if status != http.StatusOK {
		t.Fatalf("priced buy status = %d", status)
	}
}

// go test -v --run TestTradeVersionConflict
func TestTradeVersionConflict(t *testing.T) {
	env := newTestEnvWithStore(t, true, conflictingStore{ledger.NewMemoryStore()})

	status, body := env.do(t, http.MethodPost, "/portfolio/buy", map[string]any{"symbol": "AAPL", "quantity": 1}, asUser)
	if status != http.StatusConflict || field[bool](t, body, "success") {
		t.Fatalf("stale save: status %d body %v", status, body)
	}
}

// go test -v --run TestPracticeFlow
func TestPracticeFlow(t *testing.T) {
	env := newTestEnv(t, true)

	status, _ := env.do(t, http.MethodPost, "/practice", map[string]any{"practiceDate": "2025-03-01"}, nil)
	if status != http.StatusBadRequest {
		t.Fatalf("future date: status = %d", status)
	}

	status, _ = env.do(t, http.MethodGet, "/practice/nope", nil, nil)
	if status != http.StatusNotFound {
		t.Fatalf("unknown session: status = %d", status)
	}

	status, body := env.do(t, http.MethodPost, "/practice", map[string]any{"initialCash": 10000}, nil)
	if status != http.StatusCreated {
		t.Fatalf("start status = %d (%v)", status, body)
	}
	s := field[practice.Session](t, body, "session")
	if !s.Date.Equal(practice.DefaultDate) || !s.Portfolio.Cash.Equal(decimal.NewFromInt(10000)) {
		t.Fatalf("session = %+v", s)
	}
	base := "/practice/" + s.ID

	status, _ = env.do(t, http.MethodPost, base+"/fast-forward", nil, nil)
	if status != http.StatusBadRequest {
		t.Fatalf("fast-forward with no trades: status = %d", status)
	}

	status, body = env.do(t, http.MethodPost, base+"/buy", map[string]any{"symbol": "AAPL", "quantity": 10}, nil)
	if status != http.StatusOK {
		t.Fatalf("practice buy status = %d (%v)", status, body)
	}
	if tx := field[ledger.Transaction](t, body, "transaction"); !tx.Price.Equal(decimal.NewFromInt(150)) {
		t.Fatalf("practice buy should fill at the historical close: %+v", tx)
	}

	status, body = env.do(t, http.MethodPost, base+"/fast-forward", nil, nil)
	if status != http.StatusOK {
		t.Fatalf("fast-forward status = %d (%v)", status, body)
	}
	done := field[practice.Session](t, body, "session")
	if !done.Completed || done.Result == nil {
		t.Fatalf("session not completed: %+v", done)
	}
	if want := decimal.NewFromInt(400); !done.Result.GainLoss.Equal(want) {
		t.Fatalf("gain = %s, want %s", done.Result.GainLoss, want)
	}

	status, _ = env.do(t, http.MethodPost, base+"/sell", map[string]any{"symbol": "AAPL", "quantity": 1}, nil)
	if status != http.StatusConflict {
		t.Fatalf("trade after completion: status = %d", status)
	}
}

// go test -v --run TestFinnhubWebhook
func TestFinnhubWebhook(t *testing.T) {
	env := newTestEnv(t, true)
	event := map[string]any{
		"type": "trade",
		"data": []map[string]any{{"s": "NVDA", "p": 131.5, "t": testNow.UnixMilli(), "v": 10}},
	}

	status, _ := env.do(t, http.MethodPost, "/webhooks/finnhub", event, map[string]string{FinnhubSecretHeader: "wrong"})
	if status != http.StatusUnauthorized {
		t.Fatalf("bad secret: status = %d", status)
	}

	status, _ = env.do(t, http.MethodPost, "/webhooks/finnhub", event, map[string]string{FinnhubSecretHeader: "s3cret"})
	if status != http.StatusOK {
		t.Fatalf("webhook status = %d", status)
	}

	// NVDA is unknown upstream, so only the streamed trade can make it real.
	deadline := time.Now().Add(2 * time.Second)
	for {
		q := env.deps.Quotes.Quote(context.Background(), "NVDA")
		if q.Source == quote.SourceStream {
			if q.Price != 131.5 {
				t.Fatalf("streamed price = %v", q.Price)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("webhook trade never applied, last quote %+v", q)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
