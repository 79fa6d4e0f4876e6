package finnhub

// QuoteResponse is the payload of GET /quote.
type QuoteResponse struct {
	Current       float64 `json:"c"`  // Current price
	Change        float64 `json:"d"`  // Change since previous close
	PercentChange float64 `json:"dp"` // Percent change since previous close
	High          float64 `json:"h"`  // High price of the day
	Low           float64 `json:"l"`  // Low price of the day
	Open          float64 `json:"o"`  // Open price of the day
	PreviousClose float64 `json:"pc"` // Previous close price
	Timestamp     int64   `json:"t"`  // Unix seconds
}

// Empty reports whether Finnhub returned its all-zero placeholder, which it
// does for unknown symbols instead of an error status.
func (q QuoteResponse) Empty() bool {
	return q.Current == 0 && q.High == 0 && q.Low == 0
}

// ProfileResponse is the payload of GET /stock/profile2.
type ProfileResponse struct {
	Name                 string  `json:"name"`
	Ticker               string  `json:"ticker"`
	Exchange             string  `json:"exchange"`
	Currency             string  `json:"currency"`
	MarketCapitalization float64 `json:"marketCapitalization"` // millions
	ShareOutstanding     float64 `json:"shareOutstanding"`
}

// SearchResponse is the payload of GET /search.
type SearchResponse struct {
	Count  int            `json:"count"`
	Result []SearchResult `json:"result"`
}

type SearchResult struct {
	Description   string `json:"description"`
	DisplaySymbol string `json:"displaySymbol"`
	Symbol        string `json:"symbol"`
	Type          string `json:"type"`
}

// CandleResponse is the payload of GET /stock/candle. Status is "ok" or "no_data".
type CandleResponse struct {
	Close  []float64 `json:"c"`
	High   []float64 `json:"h"`
	Low    []float64 `json:"l"`
	Open   []float64 `json:"o"`
	Status string    `json:"s"`
	Time   []int64   `json:"t"` // Unix seconds
	Volume []float64 `json:"v"`
}

// TradeMessage is a frame of the trade stream and the body of trade webhooks.
type TradeMessage struct {
	Type string      `json:"type"` // "trade" or "ping"
	Data []TradeData `json:"data"`
}

type TradeData struct {
	Price     float64  `json:"p"`
	Symbol    string   `json:"s"`
	Timestamp int64    `json:"t"` // Unix milliseconds
	Volume    float64  `json:"v"`
	Condition []string `json:"c,omitempty"`
}
