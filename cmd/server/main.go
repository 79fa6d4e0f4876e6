package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"papertrade/config"
	"papertrade/internal/api"
	"papertrade/internal/collector"
	"papertrade/internal/ledger"
	"papertrade/internal/market"
	"papertrade/internal/memorystore"
	"papertrade/internal/practice"
	"papertrade/internal/quote"
	"papertrade/internal/scheduler"
	"papertrade/logger"
	"papertrade/pkg/finnhub"
	"papertrade/pkg/storage/postgres"
	"papertrade/pkg/yahoo"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// sharedTier is what the memory and postgres backends both provide.
type sharedTier interface {
	quote.SharedTier
	scheduler.Purger
}

func main() {
	// viper config
	cfg := config.Load()
	env := cfg.Log.Environment

	// zap logger
	log, err := logger.New(cfg.Log)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// storage
	var (
		store     ledger.Store
		shared    sharedTier
		snapshots collector.SnapshotWriter
		healthy   func(context.Context) bool
	)
	switch cfg.Storage.Backend {
	case "postgres":
		client, err := postgres.InitializeAndMigrate(cfg.Postgres, env, cfg.Storage.CreateDB)
		if err != nil {
			log.Fatal("failed to initialize postgres", zap.Error(err))
		}
		defer client.Close()

		tier := postgres.NewQuoteTier(client, time.Now)
		store, shared, snapshots = postgres.NewLedgerStore(client), tier, tier
		healthy = client.IsHealthy
	case "memory", "":
		store, shared = ledger.NewMemoryStore(), quote.NewMemoryTier(time.Now)
	default:
		log.Fatal("unknown storage backend", zap.String("backend", cfg.Storage.Backend))
	}

	// upstream providers
	token, err := cfg.Finnhub.Token(ctx, env)
	if err != nil {
		log.Fatal("failed to resolve finnhub api key", zap.Error(err))
	}
	finnhubREST := finnhub.NewRESTClient(cfg.Finnhub.REST.BaseURL, token, cfg.Finnhub.REST.Timeout)
	finnhubProvider := quote.NewFinnhubProvider(finnhubREST)
	yahooProvider := quote.NewYahooProvider(yahoo.NewRESTClient(cfg.Yahoo.REST.BaseURL, cfg.Yahoo.REST.Timeout))

	quoteProviders, err := quote.Named[quote.Provider](cfg.Quotes.Providers, finnhubProvider, yahooProvider)
	if err != nil {
		log.Fatal("invalid quotes.providers", zap.Error(err))
	}
	historyProviders, err := quote.Named[quote.HistoryProvider](cfg.Quotes.HistoryProviders, finnhubProvider, yahooProvider)
	if err != nil {
		log.Fatal("invalid quotes.history_providers", zap.Error(err))
	}

	cache := quote.NewCache(shared, quote.Chain(quoteProviders), quote.HistoryChain(historyProviders),
		quote.NewSynthesizer(time.Now().UnixNano()), finnhubREST,
		quote.Options{
			LocalPolicy:      policy(cfg.Cache.Local),
			SharedPolicy:     policy(cfg.Cache.Shared),
			Converter:        market.Converter{USDINR: cfg.Quotes.USDINRRate},
			FetchConcurrency: cfg.Quotes.FetchConcurrency,
		}, log)

	ledgerService := ledger.NewService(store, cache, decimal.NewFromFloat(cfg.Ledger.StartingCash), log)
	practiceManager := practice.NewManager(cache, log)

	// background work
	housekeeping := &scheduler.Midnight{
		Name:   "cache-housekeeping",
		Run:    scheduler.Housekeeping(scheduler.Pruners{cache, practiceManager}, shared, cfg.Collector.Retention, time.Now, log),
		Logger: log,
	}
	if cfg.Collector.Enabled {
		symbols := memorystore.NewSymbolStore()
		deps := collector.Deps{
			Quotes:       cache,
			Snapshots:    snapshots,
			Housekeeping: housekeeping,
			Symbols:      symbols,
			Logger:       log,
		}
		if cfg.Finnhub.WS.Enabled {
			deps.Stream = finnhub.NewWSClient(cfg.Finnhub.WS.URL, token, symbols, log)
		}
		if err := collector.New(cfg.Collector, deps).Start(ctx); err != nil {
			log.Fatal("collector failed", zap.Error(err))
		}
	} else {
		housekeeping.Start(ctx)
	}

	webhookSecret, err := cfg.Finnhub.Secret(ctx, env)
	if err != nil {
		log.Warn("finnhub webhook disabled", zap.Error(err))
	}

	// http
	srv := &http.Server{
		Addr: cfg.Server.Addr,
		Handler: api.NewHandler(api.Deps{
			Quotes:        cache,
			Ledger:        ledgerService,
			Practice:      practiceManager,
			WebhookSecret: webhookSecret,
			Healthy:       healthy,
			Logger:        log,
		}),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info("listening", zap.String("addr", srv.Addr), zap.String("storage", cfg.Storage.Backend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("http server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("graceful shutdown failed", zap.Error(err))
	}
}

func policy(c config.PolicyConfig) market.Policy {
	return market.Policy{
		OpenTTL:     c.OpenTTL,
		ClosedTTL:   c.ClosedTTL,
		MultiDayTTL: c.MultiDayTTL,
		LongTTL:     c.LongTTL,
	}
}
