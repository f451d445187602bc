package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/hft-exchange/lightning/internal/api"
	"github.com/hft-exchange/lightning/internal/bot"
	"github.com/hft-exchange/lightning/internal/cache"
	"github.com/hft-exchange/lightning/internal/config"
	"github.com/hft-exchange/lightning/internal/domain"
	"github.com/hft-exchange/lightning/internal/ledger"
	"github.com/hft-exchange/lightning/internal/logging"
	"github.com/hft-exchange/lightning/internal/pricefeed"
	"github.com/hft-exchange/lightning/internal/proto"
	"github.com/hft-exchange/lightning/internal/router"
	"github.com/hft-exchange/lightning/internal/shard"
	"github.com/hft-exchange/lightning/internal/wsgateway"
)

// Demo currency and symbol ids, the registry's fixed seed data: currencies
// and symbols are static config, not runtime state.
const (
	currencyBTC int32 = 1
	currencyETH int32 = 2
	currencyUSDT int32 = 3

	symbolBTCUSDT int32 = 1
	symbolETHUSDT int32 = 2

	marketMakerAccountID int32 = 1
)

func defaultRegistry() (*config.Registry, error) {
	return config.New(
		[]config.Currency{
			{ID: currencyBTC, Name: "BTC"},
			{ID: currencyETH, Name: "ETH"},
			{ID: currencyUSDT, Name: "USDT"},
		},
		[]config.Symbol{
			{ID: symbolBTCUSDT, Name: "BTC-USDT", Base: currencyBTC, Quote: currencyUSDT},
			{ID: symbolETHUSDT, Name: "ETH-USDT", Base: currencyETH, Quote: currencyUSDT},
		},
	)
}

func main() {
	log := logging.Base.With().Str("component", "main").Logger()

	if err := godotenv.Load(); err != nil {
		log.Info().Msg("no.env file found, using system environment variables")
	}

	registry, err := defaultRegistry()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build registry")
	}

	shardCount := getEnvInt("SHARD_COUNT", 4)
	mailboxBuffer := getEnvInt("MAILBOX_BUFFER", 256)

	dispatcher, err := router.New(shardCount, registry, mailboxBuffer)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build dispatcher")
	}
	dispatcher.Start()
	defer dispatcher.Wait()
	defer dispatcher.Stop()

	seedMarketMakerAccount(dispatcher, registry, log)

	hub := wsgateway.NewHub()
	go hub.Run()

	var ledgerDB *ledger.DB
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		ledgerDB, err = ledger.Open(dbURL)
		if err != nil {
			log.Warn().Err(err).Msg("failed to connect to ledger database, continuing without trade history")
		} else if err := ledgerDB.InitSchema(); err != nil {
			log.Warn().Err(err).Msg("failed to initialize ledger schema, continuing without trade history")
			ledgerDB.Close()
			ledgerDB = nil
		} else {
			defer ledgerDB.Close()
		}
	}

	var tradeSink *ledger.TradeSink
	sinkDying := make(chan struct{})
	if ledgerDB != nil {
		tradeSink = ledger.NewTradeSink(ledgerDB, 4096)
		go tradeSink.Run(sinkDying)
		defer close(sinkDying)
	}

	redisCache, err := cache.NewRedisCache(getEnv("REDIS_URL", "redis://localhost:6379/0"))
	if err != nil {
		log.Warn().Err(err).Msg("failed to connect to redis, continuing without cache")
		redisCache = nil
	} else {
		defer redisCache.Close()
	}

	dispatcher.SetTradeObserver(func(trade domain.Trade) {
		hub.BroadcastTrade(trade)
		if redisCache != nil {
			if err := redisCache.PublishTrade(domain.NewTradeView(trade)); err != nil {
				log.Warn().Err(err).Msg("failed to publish trade to redis")
			}
		}
		if tradeSink != nil {
			tradeSink.Observe(trade)
		}
	})

	seed := map[int32]decimal.Decimal{
		symbolBTCUSDT: decimal.RequireFromString("65000"),
		symbolETHUSDT: decimal.RequireFromString("3200"),
	}
	simulator := pricefeed.New(registry, seed, 3*time.Second)
	simulator.SetUpdateHandler(func(t domain.Ticker) {
		hub.BroadcastTicker(t)
		if redisCache != nil {
			if err := redisCache.CacheTicker(t); err != nil {
				log.Warn().Err(err).Msg("failed to cache ticker")
			}
		}
		broadcastOrderBook(dispatcher, redisCache, hub, t.SymbolID)
	})
	simulator.Start()
	defer simulator.Stop()

	marketMaker := bot.New(marketMakerAccountID, registry, dispatcher, simulator)
	marketMaker.Start()
	defer marketMaker.Stop()

	handler := api.NewHandler(dispatcher, registry, ledgerDB)
	httpHandler := api.NewRouter(handler, hub)

	port := getEnv("PORT", "8080")
	server := &http.Server{
		Addr: ":" + port,
		Handler: httpHandler,
		ReadTimeout: 15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Info().Str("port", port).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}
	log.Info().Msg("server exited")
}

// seedMarketMakerAccount credits the demo market maker enough of every
// currency to quote both sides of every symbol at bootstrap.
func seedMarketMakerAccount(d *router.Dispatcher, registry *config.Registry, log zerolog.Logger) {
	amount := "1000000"
	for _, currencyID := range []int32{currencyBTC, currencyETH, currencyUSDT} {
		req := proto.IncreaseRequest{
			RequestID: "bootstrap",
			AccountID: marketMakerAccountID,
			CurrencyID: currencyID,
			Amount: amount,
			Reply: shard.NewReply[proto.BalanceOpResult](),
		}
		d.RouteIncrease(req)
		if res := <-req.Reply; res.Code != 0 {
			log.Warn().Int32("currency_id", currencyID).Str("message", res.Message).Msg("failed to seed market maker balance")
		}
	}
}

func broadcastOrderBook(d *router.Dispatcher, redisCache *cache.RedisCache, hub *wsgateway.Hub, symbolID int32) {
	req := proto.GetOrderBookRequest{
		RequestID: "bootstrap",
		SymbolID: symbolID,
		Levels: 20,
		Reply: shard.NewReply[proto.GetOrderBookResult](),
	}
	d.RouteGetOrderBook(req)
	res := <-req.Reply

	snapshot := domain.BookSnapshot{
		SymbolID: res.SymbolID,
		Timestamp: res.Timestamp,
	}
	for _, lvl := range res.Bids {
		snapshot.Bids = append(snapshot.Bids, domain.BookLevel{Price: lvl.Price.String(), Quantity: lvl.Quantity.String()})
	}
	for _, lvl := range res.Asks {
		snapshot.Asks = append(snapshot.Asks, domain.BookLevel{Price: lvl.Price.String(), Quantity: lvl.Quantity.String()})
	}
	if res.BestBid != nil {
		s := res.BestBid.String()
		snapshot.BestBid = &s
	}
	if res.BestAsk != nil {
		s := res.BestAsk.String()
		snapshot.BestAsk = &s
	}
	if res.Spread != nil {
		s := res.Spread.String()
		snapshot.Spread = &s
	}

	hub.BroadcastOrderBook(snapshot)
	if redisCache != nil {
		redisCache.CacheOrderBook(snapshot)
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
