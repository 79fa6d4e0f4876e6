package api

import (
	"context"
	"net/http"
	"time"

	"papertrade/internal/ledger"
	"papertrade/internal/market"
	"papertrade/internal/practice"
	"papertrade/internal/quote"

	"go.uber.org/zap"
)

// Deps are the services behind the HTTP routes.
type Deps struct {
	Quotes        *quote.Cache
	Ledger        *ledger.Service
	Practice      *practice.Manager
	WebhookSecret string
	// Healthy reports storage health; nil means always healthy.
	Healthy func(ctx context.Context) bool
	Logger  *zap.Logger
	Now     func() time.Time
}

// NewHandler builds the router.
func NewHandler(d Deps) http.Handler {
	if d.Now == nil {
		d.Now = time.Now
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", makeHealthHandler(d))

	mux.HandleFunc("POST /quotes", makeQuotesHandler(d))
	mux.HandleFunc("DELETE /quotes/{symbol}", makeClearQuoteHandler(d))
	mux.HandleFunc("POST /historical", makeHistoricalHandler(d))
	mux.HandleFunc("GET /search", makeSearchHandler(d))

	mux.HandleFunc("GET /portfolio", withOwner(makePortfolioHandler(d)))
	mux.HandleFunc("POST /portfolio/buy", withOwner(makeTradeHandler(d, ledger.Buy)))
	mux.HandleFunc("POST /portfolio/sell", withOwner(makeTradeHandler(d, ledger.Sell)))
	mux.HandleFunc("POST /portfolio/reset", withOwner(makeResetHandler(d)))
	mux.HandleFunc("POST /portfolio/prices", withOwner(makeRefreshPricesHandler(d)))

	mux.HandleFunc("POST /practice", makeStartPracticeHandler(d))
	mux.HandleFunc("GET /practice/{id}", makeGetPracticeHandler(d))
	mux.HandleFunc("POST /practice/{id}/buy", makePracticeTradeHandler(d, ledger.Buy))
	mux.HandleFunc("POST /practice/{id}/sell", makePracticeTradeHandler(d, ledger.Sell))
	mux.HandleFunc("POST /practice/{id}/fast-forward", makeFastForwardHandler(d))

	mux.HandleFunc("POST /webhooks/finnhub", makeFinnhubWebhookHandler(d))

	return logRequests(d.Logger, mux)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func logRequests(logger *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		defer func() {
			if p := recover(); p != nil {
				logger.Error("handler panic", zap.Any("panic", p), zap.String("path", r.URL.Path))
				writeError(rec, http.StatusInternalServerError, "internal error")
			}
			logger.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", rec.status),
				zap.Duration("took", time.Since(start)))
		}()

		next.ServeHTTP(rec, r)
	})
}

func makeHealthHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		healthy := true
		if d.Healthy != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			healthy = d.Healthy(ctx)
			cancel()
		}

		status := http.StatusOK
		state := "ok"
		if !healthy {
			status = http.StatusServiceUnavailable
			state = "degraded"
		}
		writeJSON(w, status, map[string]any{
			"status":       state,
			"storage":      healthy,
			"marketStatus": market.StatusAt(d.Now()),
		})
	}
}
