package yahoo

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

const chartBody = `{"chart":{"result":[{
  "meta":{"symbol":"TCS.NS","currency":"INR","longName":"Tata Consultancy Services Limited",
          "regularMarketPrice":3010.456,"chartPreviousClose":2995,"regularMarketDayHigh":3020,
          "regularMarketDayLow":0,"regularMarketVolume":120345},
  "timestamp":[1720000000,1720086400,1720310400,1720396800,1721052000],
  "indicators":{"quote":[{
     "open":[2990.123,null,3000,3001,3005],
     "high":[3001,3002,3003,3011.119,3015],
     "low":[2980,2981,2982,2990,2999],
     "close":[2999.996,2998,2997,3009,3010],
     "volume":[1000,null,3000,4000,5000]}]}
}],"error":null}}`

func newChartServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.Header.Get("User-Agent"), "Mozilla/5.0") {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		switch r.URL.Path {
		case "/v8/finance/chart/TCS.NS":
			w.Write([]byte(chartBody))
		case "/v8/finance/chart/BROKEN":
			w.Write([]byte(`{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found, symbol may be delisted"}}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

// go test -v --run TestGetSnapshot
func TestGetSnapshot(t *testing.T) {
	srv := newChartServer(t)
	defer srv.Close()

	client := NewRESTClient(srv.URL, 5*time.Second)
	s, err := client.GetSnapshot(context.Background(), "TCS.NS")
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if s.Price != 3010.456 || s.PreviousClose != 2995 || s.High != 3020 {
		t.Fatalf("unexpected snapshot: %+v", s)
	}
	if s.Low != s.Price {
		t.Fatalf("missing day low should fall back to price, got %v", s.Low)
	}
	if s.Open != 2990.123 {
		t.Fatalf("open = %v, want first chart open", s.Open)
	}
	if s.Name != "Tata Consultancy Services Limited" {
		t.Fatalf("name = %q", s.Name)
	}
}

// go test -v --run TestGetPoints
func TestGetPoints(t *testing.T) {
	srv := newChartServer(t)
	defer srv.Close()

	client := NewRESTClient(srv.URL, 5*time.Second)
	now := time.Unix(1720400000, 0) // Monday 8 July, before the last row
	to := now
	from := to.AddDate(0, 0, -7)

	points, err := client.GetPoints(context.Background(), "TCS.NS", "1d", from, to, now)
	if err != nil {
		t.Fatalf("points: %v", err)
	}
	// Row 1 has a null open, row 2 is a Sunday, row 4 is after now.
	if len(points) != 2 {
		t.Fatalf("got %d points, want 2: %+v", len(points), points)
	}
	if points[0].Close != 3000 || points[0].Open != 2990.12 {
		t.Fatalf("rounding not applied: %+v", points[0])
	}
	if points[1].High != 3011.12 || points[1].Timestamp != 1720396800000 {
		t.Fatalf("unexpected second point: %+v", points[1])
	}
}

// go test -v --run TestGetChartErrors
func TestGetChartErrors(t *testing.T) {
	srv := newChartServer(t)
	defer srv.Close()

	client := NewRESTClient(srv.URL, 5*time.Second)
	if _, err := client.GetSnapshot(context.Background(), "BROKEN"); err == nil || !strings.Contains(err.Error(), "Not Found") {
		t.Fatalf("expected chart error, got %v", err)
	}
	if _, err := client.GetSnapshot(context.Background(), "MISSING"); err == nil {
		t.Fatal("expected error for 404")
	}

	if _, err := ParsePoints(&ChartResult{}, time.Now()); !errors.Is(err, ErrNoData) {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
}
