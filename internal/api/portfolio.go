package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"papertrade/internal/ledger"

	"github.com/shopspring/decimal"
)

// OwnerHeader carries the authenticated user id set by the gateway.
const OwnerHeader = "X-User-ID"

type ownerKey struct{}

func withOwner(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner := strings.TrimSpace(r.Header.Get(OwnerHeader))
		if owner == "" {
			writeError(w, http.StatusUnauthorized, "missing "+OwnerHeader+" header")
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), ownerKey{}, owner)))
	}
}

func ownerFrom(r *http.Request) string {
	owner, _ := r.Context().Value(ownerKey{}).(string)
	return owner
}

type portfolioResponse struct {
	Success   bool              `json:"success"`
	Portfolio *ledger.Portfolio `json:"portfolio"`
	Valuation ledger.Valuation  `json:"valuation"`
}

func respondPortfolio(w http.ResponseWriter, p *ledger.Portfolio) {
	writeJSON(w, http.StatusOK, portfolioResponse{Success: true, Portfolio: p, Valuation: p.Valuation()})
}

func makePortfolioHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := d.Ledger.Portfolio(r.Context(), ownerFrom(r))
		if err != nil {
			writeError(w, statusForError(err), err.Error())
			return
		}
		respondPortfolio(w, p)
	}
}

type tradeRequest struct {
	Symbol   string          `json:"symbol"`
	Name     string          `json:"name"`
	Quantity int64           `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

func makeTradeHandler(d Deps, kind ledger.TransactionType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in tradeRequest
		if err := decodeBody(r, &in); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json")
			return
		}
		if strings.TrimSpace(in.Symbol) == "" {
			writeError(w, http.StatusBadRequest, "symbol is required")
			return
		}

		// Without an explicit price the trade fills at the current quote,
		// which must be real market data.
		if in.Price.IsZero() {
			q := d.Quotes.Quote(r.Context(), in.Symbol)
			if !q.Source.Authoritative() {
				writeJSON(w, http.StatusServiceUnavailable, ledger.TradeResult{
					Message: "no live price for " + strings.ToUpper(strings.TrimSpace(in.Symbol)) + "; try again later or give a price",
				})
				return
			}
			in.Price = decimal.NewFromFloat(q.Price).Round(2)
			if in.Name == "" {
				in.Name = q.Name
			}
		}

		var (
			res ledger.TradeResult
			err error
		)
		owner := ownerFrom(r)
		if kind == ledger.Buy {
			res, err = d.Ledger.Buy(r.Context(), owner, in.Symbol, in.Name, in.Quantity, in.Price)
		} else {
			res, err = d.Ledger.Sell(r.Context(), owner, in.Symbol, in.Quantity, in.Price)
		}

		switch {
		case errors.Is(err, ledger.ErrStaleVersion):
			writeJSON(w, http.StatusConflict, res)
		case errors.Is(err, ledger.ErrPersistence):
			d.Logger.Sugar().Errorw("trade not persisted", "owner", owner, "error", err)
			writeJSON(w, http.StatusInternalServerError, res)
		case err != nil:
			writeError(w, statusForError(err), err.Error())
		case !res.Success:
			writeJSON(w, http.StatusBadRequest, res)
		default:
			writeJSON(w, http.StatusOK, res)
		}
	}
}

func makeResetHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := d.Ledger.Reset(r.Context(), ownerFrom(r))
		if err != nil {
			writeError(w, statusForError(err), err.Error())
			return
		}
		respondPortfolio(w, p)
	}
}

type refreshRequest struct {
	ForceRefresh bool `json:"forceRefresh"`
}

func makeRefreshPricesHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in refreshRequest
		if err := decodeBody(r, &in); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json")
			return
		}
		p, err := d.Ledger.RefreshPrices(r.Context(), ownerFrom(r), in.ForceRefresh)
		if err != nil {
			writeError(w, statusForError(err), err.Error())
			return
		}
		respondPortfolio(w, p)
	}
}
