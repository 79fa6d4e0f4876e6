package yahoo

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

var ErrNoData = errors.New("yahoo: no chart data")

// ChartParams selects the chart window. Range (e.g. "1d") is used when
// Period1 is zero.
type ChartParams struct {
	Interval string
	Range    string
	Period1  time.Time
	Period2  time.Time
}

func (p ChartParams) values() url.Values {
	v := url.Values{}
	interval := p.Interval
	if interval == "" {
		interval = "1d"
	}
	v.Set("interval", interval)
	if p.Period1.IsZero() {
		r := p.Range
		if r == "" {
			r = "1d"
		}
		v.Set("range", r)
		return v
	}
	v.Set("period1", strconv.FormatInt(p.Period1.Unix(), 10))
	v.Set("period2", strconv.FormatInt(p.Period2.Unix(), 10))
	return v
}

type RESTClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewRESTClient(baseURL string, timeout time.Duration) *RESTClient {
	return &RESTClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// GetChart fetches the chart for symbol and returns its first result.
func (c *RESTClient) GetChart(ctx context.Context, symbol string, params ChartParams) (*ChartResult, error) {
	endpoint := fmt.Sprintf("%s/v8/finance/chart/%s?%s", c.baseURL, url.PathEscape(symbol), params.values().Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	// The chart endpoint rejects requests without a browser-like agent.
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("making request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("yahoo error: status %d: %s", resp.StatusCode, body)
	}

	var raw ChartResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if raw.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo error: %s: %s", raw.Chart.Error.Code, raw.Chart.Error.Description)
	}
	if len(raw.Chart.Result) == 0 {
		return nil, fmt.Errorf("%w for %s", ErrNoData, symbol)
	}
	return &raw.Chart.Result[0], nil
}

// GetSnapshot fetches the one-day chart and extracts the latest quote.
func (c *RESTClient) GetSnapshot(ctx context.Context, symbol string) (*Snapshot, error) {
	result, err := c.GetChart(ctx, symbol, ChartParams{Interval: "1d", Range: "1d"})
	if err != nil {
		return nil, err
	}
	return ParseSnapshot(symbol, result)
}

// GetPoints fetches chart rows between from and to at interval. Rows after
// now are dropped.
func (c *RESTClient) GetPoints(ctx context.Context, symbol, interval string, from, to, now time.Time) ([]Point, error) {
	result, err := c.GetChart(ctx, symbol, ChartParams{Interval: interval, Period1: from, Period2: to})
	if err != nil {
		return nil, err
	}
	return ParsePoints(result, now)
}
