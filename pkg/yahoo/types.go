package yahoo

// ChartResponse is the envelope of GET /v8/finance/chart/{symbol}.
type ChartResponse struct {
	Chart struct {
		Result []ChartResult `json:"result"`
		Error  *ChartError   `json:"error"`
	} `json:"chart"`
}

type ChartError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type ChartResult struct {
	Meta       ChartMeta `json:"meta"`
	Timestamp  []int64   `json:"timestamp"` // Unix seconds
	Indicators struct {
		Quote []ChartQuote `json:"quote"`
	} `json:"indicators"`
}

// ChartMeta carries the latest market snapshot for the symbol.
type ChartMeta struct {
	Symbol               string  `json:"symbol"`
	Currency             string  `json:"currency"`
	LongName             string  `json:"longName"`
	ShortName            string  `json:"shortName"`
	RegularMarketPrice   float64 `json:"regularMarketPrice"`
	RegularMarketOpen    float64 `json:"regularMarketOpen"`
	RegularMarketDayHigh float64 `json:"regularMarketDayHigh"`
	RegularMarketDayLow  float64 `json:"regularMarketDayLow"`
	RegularMarketVolume  int64   `json:"regularMarketVolume"`
	RegularMarketTime    int64   `json:"regularMarketTime"`
	PreviousClose        float64 `json:"previousClose"`
	ChartPreviousClose   float64 `json:"chartPreviousClose"`
	MarketCap            float64 `json:"marketCap"`
}

// ChartQuote holds parallel OHLCV arrays; Yahoo uses null for missing points.
type ChartQuote struct {
	Open   []*float64 `json:"open"`
	High   []*float64 `json:"high"`
	Low    []*float64 `json:"low"`
	Close  []*float64 `json:"close"`
	Volume []*float64 `json:"volume"`
}

// Snapshot is the latest quote extracted from chart metadata.
type Snapshot struct {
	Symbol        string
	Name          string
	Price         float64
	Open          float64
	High          float64
	Low           float64
	PreviousClose float64
	Volume        int64
	MarketCap     float64
}

// Point is one OHLCV row of a chart.
type Point struct {
	Timestamp int64 // milliseconds
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    int64
}
