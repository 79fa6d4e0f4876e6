package api

import (
	"net/http"
	"strings"

	"papertrade/internal/market"
	"papertrade/internal/quote"
)

type quotesRequest struct {
	Symbols      []string `json:"symbols"`
	ForceRefresh bool     `json:"forceRefresh"`
}

func makeQuotesHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in quotesRequest
		if err := decodeBody(r, &in); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json")
			return
		}
		if len(in.Symbols) == 0 {
			writeError(w, http.StatusBadRequest, "symbols array is required")
			return
		}

		writeJSON(w, http.StatusOK, d.Quotes.Quotes(r.Context(), in.Symbols, in.ForceRefresh))
	}
}

func makeClearQuoteHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		symbol := strings.TrimSpace(r.PathValue("symbol"))
		if symbol == "" {
			writeError(w, http.StatusBadRequest, "symbol is required")
			return
		}
		d.Quotes.Clear(r.Context(), symbol)
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "symbol": strings.ToUpper(symbol)})
	}
}

type historicalRequest struct {
	Symbol    string `json:"symbol"`
	Period    string `json:"period"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

type historicalResponse struct {
	Success bool         `json:"success"`
	Data    []quote.Bar  `json:"data"`
	Cached  bool         `json:"cached"`
	Source  quote.Source `json:"source"`
}

func makeHistoricalHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in historicalRequest
		if err := decodeBody(r, &in); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json")
			return
		}
		if in.Symbol == "" || in.Period == "" {
			writeError(w, http.StatusBadRequest, "symbol and period are required")
			return
		}

		req := quote.HistoryRequest{Symbol: in.Symbol, Period: market.Period(in.Period)}
		if req.Period == market.PeriodCustom {
			if in.StartDate == "" || in.EndDate == "" {
				writeError(w, http.StatusBadRequest, "startDate and endDate are required for custom period")
				return
			}
			start, err := parseDate(in.StartDate)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid startDate")
				return
			}
			end, err := parseDate(in.EndDate)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid endDate")
				return
			}
			req.Start, req.End = start, end
		}

		s, err := d.Quotes.History(r.Context(), req)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		bars := s.Bars
		if bars == nil {
			bars = []quote.Bar{}
		}
		writeJSON(w, http.StatusOK, historicalResponse{Success: true, Data: bars, Cached: s.Cached, Source: s.Source})
	}
}

func makeSearchHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		results := d.Quotes.Search(r.Context(), r.URL.Query().Get("q"))
		if results == nil {
			results = []quote.Listing{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"results": results})
	}
}
