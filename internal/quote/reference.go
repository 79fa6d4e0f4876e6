package quote

import "strings"

// Listing is a symbol with its display name.
type Listing struct {
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
	Type   string `json:"type,omitempty"`
}

type reference struct {
	Listing
	basePrice float64 // native currency
}

// DefaultBasePrice is used for symbols with no reference price.
const DefaultBasePrice = 100.0

var popular = []reference{
	{Listing{"RELIANCE.NS", "Reliance Industries", "Common Stock"}, 1285},
	{Listing{"TCS.NS", "Tata Consultancy Services", "Common Stock"}, 2995},
	{Listing{"HDFCBANK.NS", "HDFC Bank", "Common Stock"}, 1740},
	{Listing{"INFY.NS", "Infosys", "Common Stock"}, 1920},
	{Listing{"ICICIBANK.NS", "ICICI Bank", "Common Stock"}, 1320},
	{Listing{"HINDUNILVR.NS", "Hindustan Unilever", "Common Stock"}, 2345},
	{Listing{"ITC.NS", "ITC Limited", "Common Stock"}, 465},
	{Listing{"SBIN.NS", "State Bank of India", "Common Stock"}, 835},
	{Listing{"BHARTIARTL.NS", "Bharti Airtel", "Common Stock"}, 1665},
	{Listing{"KOTAKBANK.NS", "Kotak Mahindra Bank", "Common Stock"}, 1720},
	{Listing{"AAPL", "Apple Inc.", "Common Stock"}, 180},
	{Listing{"MSFT", "Microsoft", "Common Stock"}, 420},
	{Listing{"GOOGL", "Alphabet Inc.", "Common Stock"}, 175},
	{Listing{"AMZN", "Amazon", "Common Stock"}, 210},
	{Listing{"TSLA", "Tesla", "Common Stock"}, 350},
}

var popularBySymbol = func() map[string]reference {
	m := make(map[string]reference, len(popular))
	for _, r := range popular {
		m[r.Symbol] = r
	}
	return m
}()

// Popular returns the built-in watchlist.
func Popular() []Listing {
	out := make([]Listing, len(popular))
	for i, r := range popular {
		out[i] = r.Listing
	}
	return out
}

// PopularSymbols returns the symbols of the built-in watchlist.
func PopularSymbols() []string {
	out := make([]string, len(popular))
	for i, r := range popular {
		out[i] = r.Symbol
	}
	return out
}

// DisplayName returns the known name of symbol, or the symbol itself.
func DisplayName(symbol string) string {
	if r, ok := popularBySymbol[strings.ToUpper(symbol)]; ok {
		return r.Name
	}
	return symbol
}

func basePrice(symbol string) float64 {
	if r, ok := popularBySymbol[strings.ToUpper(symbol)]; ok {
		return r.basePrice
	}
	return DefaultBasePrice
}

// filterPopular matches query against symbol and name, case-insensitively.
func filterPopular(query string) []Listing {
	q := strings.ToLower(strings.TrimSpace(query))
	var out []Listing
	for _, r := range popular {
		if strings.Contains(strings.ToLower(r.Symbol), q) || strings.Contains(strings.ToLower(r.Name), q) {
			out = append(out, r.Listing)
		}
	}
	return out
}
