package api

import (
	"net/http"
	"strings"

	"papertrade/internal/ledger"
	"papertrade/internal/practice"

	"github.com/shopspring/decimal"
)

type startPracticeRequest struct {
	PracticeDate string          `json:"practiceDate"`
	InitialCash  decimal.Decimal `json:"initialCash"`
}

type sessionResponse struct {
	Success bool             `json:"success"`
	Session practice.Session `json:"session"`
}

func makeStartPracticeHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in startPracticeRequest
		if err := decodeBody(r, &in); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json")
			return
		}

		var date = practice.DefaultDate
		if in.PracticeDate != "" {
			t, err := parseDate(in.PracticeDate)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid practiceDate")
				return
			}
			date = t
		}

		s, err := d.Practice.Start(date, in.InitialCash)
		if err != nil {
			writeError(w, statusForError(err), err.Error())
			return
		}
		writeJSON(w, http.StatusCreated, sessionResponse{Success: true, Session: s})
	}
}

func makeGetPracticeHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := d.Practice.Get(r.PathValue("id"))
		if err != nil {
			writeError(w, statusForError(err), err.Error())
			return
		}
		writeJSON(w, http.StatusOK, sessionResponse{Success: true, Session: s})
	}
}

type practiceTradeRequest struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Quantity int64  `json:"quantity"`
}

type practiceTradeResponse struct {
	Success     bool               `json:"success"`
	Session     practice.Session   `json:"session"`
	Transaction ledger.Transaction `json:"transaction"`
}

func makePracticeTradeHandler(d Deps, kind ledger.TransactionType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in practiceTradeRequest
		if err := decodeBody(r, &in); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json")
			return
		}
		if strings.TrimSpace(in.Symbol) == "" {
			writeError(w, http.StatusBadRequest, "symbol is required")
			return
		}

		id := r.PathValue("id")
		var (
			s   practice.Session
			tx  ledger.Transaction
			err error
		)
		if kind == ledger.Buy {
			s, tx, err = d.Practice.Buy(r.Context(), id, in.Symbol, in.Name, in.Quantity)
		} else {
			s, tx, err = d.Practice.Sell(r.Context(), id, in.Symbol, in.Quantity)
		}
		if err != nil {
			writeError(w, statusForError(err), err.Error())
			return
		}
		writeJSON(w, http.StatusOK, practiceTradeResponse{Success: true, Session: s, Transaction: tx})
	}
}

func makeFastForwardHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := d.Practice.FastForward(r.Context(), r.PathValue("id"))
		if err != nil {
			writeError(w, statusForError(err), err.Error())
			return
		}
		writeJSON(w, http.StatusOK, sessionResponse{Success: true, Session: s})
	}
}
