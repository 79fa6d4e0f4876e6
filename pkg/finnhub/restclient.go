package finnhub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

var ErrNoData = errors.New("finnhub: no data")

type RESTClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewRESTClient(baseURL, token string, timeout time.Duration) *RESTClient {
	return &RESTClient{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *RESTClient) HTTPClient() *http.Client {
	return c.httpClient
}

// get issues a GET to path with the API token appended and decodes the body into out.
func (c *RESTClient) get(ctx context.Context, path string, params url.Values, out any) error {
	if params == nil {
		params = url.Values{}
	}
	params.Set("token", c.token)
	endpoint := c.baseURL + path + "?" + params.Encode()

	// Construct the GET request with context for timeout/cancel support
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("making request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("finnhub error: status %d: %s", resp.StatusCode, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// GetQuote fetches the latest quote for symbol.
func (c *RESTClient) GetQuote(ctx context.Context, symbol string) (*QuoteResponse, error) {
	var q QuoteResponse
	if err := c.get(ctx, "/quote", url.Values{"symbol": {symbol}}, &q); err != nil {
		return nil, err
	}
	if q.Empty() {
		return nil, fmt.Errorf("%w for %s", ErrNoData, symbol)
	}
	return &q, nil
}

// GetProfile fetches company metadata for symbol.
func (c *RESTClient) GetProfile(ctx context.Context, symbol string) (*ProfileResponse, error) {
	var p ProfileResponse
	if err := c.get(ctx, "/stock/profile2", url.Values{"symbol": {symbol}}, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Search looks up symbols matching query.
func (c *RESTClient) Search(ctx context.Context, query string) ([]SearchResult, error) {
	var r SearchResponse
	if err := c.get(ctx, "/search", url.Values{"q": {query}}, &r); err != nil {
		return nil, err
	}
	return r.Result, nil
}

// GetCandles fetches OHLCV candles between from and to. resolution is one of
// 1, 5, 15, 30, 60, D, W, M.
func (c *RESTClient) GetCandles(ctx context.Context, symbol, resolution string, from, to time.Time) (*CandleResponse, error) {
	params := url.Values{
		"symbol":     {symbol},
		"resolution": {resolution},
		"from":       {strconv.FormatInt(from.Unix(), 10)},
		"to":         {strconv.FormatInt(to.Unix(), 10)},
	}
	var r CandleResponse
	if err := c.get(ctx, "/stock/candle", params, &r); err != nil {
		return nil, err
	}
	if r.Status != "ok" || len(r.Time) == 0 {
		return nil, fmt.Errorf("%w: candles for %s", ErrNoData, symbol)
	}
	if len(r.Close) != len(r.Time) || len(r.Open) != len(r.Time) ||
		len(r.High) != len(r.Time) || len(r.Low) != len(r.Time) {
		return nil, fmt.Errorf("finnhub: ragged candle arrays for %s", symbol)
	}
	return &r, nil
}

// Resolution maps a bar interval such as "5m" or "1d" to a candle resolution.
func Resolution(interval string) string {
	switch interval {
	case "1m":
		return "1"
	case "5m":
		return "5"
	case "15m":
		return "15"
	case "30m":
		return "30"
	case "1h", "60m":
		return "60"
	case "1wk":
		return "W"
	case "1mo":
		return "M"
	default:
		return "D"
	}
}
