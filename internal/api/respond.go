package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"papertrade/internal/ledger"
	"papertrade/internal/market"
	"papertrade/internal/practice"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"success": false, "error": message})
}

// decodeBody reads a JSON request body into v. An empty body leaves v as is.
func decodeBody(r *http.Request, v any) error {
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, practice.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, practice.ErrSessionCompleted):
		return http.StatusConflict
	case errors.Is(err, ledger.ErrStaleVersion):
		return http.StatusConflict
	case errors.Is(err, practice.ErrTooManySessions):
		return http.StatusServiceUnavailable
	case errors.Is(err, practice.ErrNothingToSettle),
		errors.Is(err, practice.ErrInvalidDate),
		errors.Is(err, market.ErrUnknownPeriod),
		errors.Is(err, ledger.ErrInvalidQuantity),
		errors.Is(err, ledger.ErrInvalidPrice),
		errors.Is(err, ledger.ErrInsufficientFunds),
		errors.Is(err, ledger.ErrInsufficientShares),
		errors.Is(err, ledger.ErrPositionNotFound):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// parseDate accepts a calendar date or an RFC 3339 timestamp.
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}
