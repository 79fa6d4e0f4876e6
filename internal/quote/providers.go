package quote

import (
	"context"
	"fmt"
	"strings"
	"time"

	"papertrade/internal/market"
	"papertrade/pkg/finnhub"
	"papertrade/pkg/yahoo"
)

// FinnhubProvider adapts the Finnhub REST client.
type FinnhubProvider struct {
	client *finnhub.RESTClient
	now    func() time.Time
}

func NewFinnhubProvider(client *finnhub.RESTClient) *FinnhubProvider {
	return &FinnhubProvider{client: client, now: time.Now}
}

func (p *FinnhubProvider) Name() string { return string(SourceFinnhub) }

func (p *FinnhubProvider) FetchQuote(ctx context.Context, symbol string) (Quote, error) {
	raw, err := p.client.GetQuote(ctx, symbol)
	if err != nil {
		return Quote{}, err
	}

	q := Quote{
		Symbol:        symbol,
		Name:          symbol,
		Price:         raw.Current,
		Change:        raw.Change,
		ChangePercent: raw.PercentChange,
		Open:          raw.Open,
		High:          raw.High,
		Low:           raw.Low,
		PreviousClose: raw.PreviousClose,
		Source:        SourceFinnhub,
		UpdatedAt:     p.now(),
	}

	// The profile only adds name and market cap; a failure there is not fatal.
	if profile, err := p.client.GetProfile(ctx, symbol); err == nil {
		if profile.Name != "" {
			q.Name = profile.Name
		}
		if profile.MarketCapitalization > 0 {
			mc := profile.MarketCapitalization * 1e6
			q.MarketCap = &mc
		}
	}
	return q, nil
}

func (p *FinnhubProvider) FetchHistory(ctx context.Context, req HistoryRequest, end time.Time) ([]Bar, error) {
	from, to, interval := req.Window(end)
	raw, err := p.client.GetCandles(ctx, req.Symbol, finnhub.Resolution(interval), from, to)
	if err != nil {
		return nil, err
	}

	bars := make([]Bar, 0, len(raw.Time))
	for i, ts := range raw.Time {
		t := time.Unix(ts, 0)
		if t.After(end) {
			continue
		}
		var vol int64
		if i < len(raw.Volume) {
			vol = int64(raw.Volume[i])
		}
		bars = append(bars, Bar{
			Timestamp: t.UnixMilli(),
			Open:      market.Round2(raw.Open[i]),
			High:      market.Round2(raw.High[i]),
			Low:       market.Round2(raw.Low[i]),
			Close:     market.Round2(raw.Close[i]),
			Volume:    vol,
		})
	}
	return bars, nil
}

// YahooProvider adapts the Yahoo chart client.
type YahooProvider struct {
	client *yahoo.RESTClient
	now    func() time.Time
}

func NewYahooProvider(client *yahoo.RESTClient) *YahooProvider {
	return &YahooProvider{client: client, now: time.Now}
}

func (p *YahooProvider) Name() string { return string(SourceYahoo) }

func (p *YahooProvider) FetchQuote(ctx context.Context, symbol string) (Quote, error) {
	s, err := p.client.GetSnapshot(ctx, symbol)
	if err != nil {
		return Quote{}, err
	}

	change := s.Price - s.PreviousClose
	var pct float64
	if s.PreviousClose > 0 {
		pct = change / s.PreviousClose * 100
	}
	q := Quote{
		Symbol:        strings.ToUpper(symbol),
		Name:          s.Name,
		Price:         s.Price,
		Change:        change,
		ChangePercent: pct,
		Open:          s.Open,
		High:          s.High,
		Low:           s.Low,
		PreviousClose: s.PreviousClose,
		Volume:        s.Volume,
		Source:        SourceYahoo,
		UpdatedAt:     p.now(),
	}
	if s.MarketCap > 0 {
		mc := s.MarketCap
		q.MarketCap = &mc
	}
	return q, nil
}

func (p *YahooProvider) FetchHistory(ctx context.Context, req HistoryRequest, end time.Time) ([]Bar, error) {
	from, to, interval := req.Window(end)
	points, err := p.client.GetPoints(ctx, req.Symbol, interval, from, to, p.now())
	if err != nil {
		return nil, err
	}

	bars := make([]Bar, len(points))
	for i, pt := range points {
		bars[i] = Bar{
			Timestamp: pt.Timestamp,
			Open:      pt.Open,
			High:      pt.High,
			Low:       pt.Low,
			Close:     pt.Close,
			Volume:    pt.Volume,
		}
	}
	return bars, nil
}

// Named picks providers by name in the configured order. An unknown name is
// an error.
func Named[P interface{ Name() string }](order []string, available ...P) ([]P, error) {
	byName := make(map[string]P, len(available))
	for _, p := range available {
		byName[p.Name()] = p
	}
	out := make([]P, 0, len(order))
	for _, name := range order {
		p, ok := byName[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return nil, fmt.Errorf("unknown provider %q", name)
		}
		out = append(out, p)
	}
	return out, nil
}
