package api

import (
	"crypto/subtle"
	"io"
	"net/http"

	"papertrade/internal/stream"

	"go.uber.org/zap"
)

// FinnhubSecretHeader is set by Finnhub on every webhook delivery.
const FinnhubSecretHeader = "X-Finnhub-Secret"

// makeFinnhubWebhookHandler acknowledges the event before applying it;
// Finnhub disables endpoints that are slow to answer.
func makeFinnhubWebhookHandler(d Deps) http.HandlerFunc {
	apply := stream.MakeMessageHandler(d.Logger, d.Quotes)

	return func(w http.ResponseWriter, r *http.Request) {
		got := r.Header.Get(FinnhubSecretHeader)
		if d.WebhookSecret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(d.WebhookSecret)) != 1 {
			writeError(w, http.StatusUnauthorized, "invalid webhook secret")
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
		if err != nil {
			writeError(w, http.StatusBadRequest, "unreadable body")
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{"success": true})

		go func() {
			defer func() {
				if p := recover(); p != nil {
					d.Logger.Error("webhook processing panic", zap.Any("panic", p))
				}
			}()
			apply(body)
		}()
	}
}
