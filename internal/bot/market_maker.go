// Package bot is a demo market maker: it quotes a bid and an ask around
// internal/pricefeed's current price on every configured symbol, so a
// freshly booted exchange has resting liquidity instead of an empty book.
// It is an ordinary client of the core: it only ever calls
// RoutePlaceOrder, the same entry point any other caller uses.
package bot

import (
	"context"
	"math/rand"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/hft-exchange/lightning/internal/config"
	"github.com/hft-exchange/lightning/internal/domain"
	"github.com/hft-exchange/lightning/internal/logging"
	"github.com/hft-exchange/lightning/internal/proto"
	"github.com/hft-exchange/lightning/internal/shard"
)

// Dispatcher is the subset of router.Dispatcher the market maker needs.
type Dispatcher interface {
	RoutePlaceOrder(req proto.PlaceOrderRequest)
}

// PriceSource supplies the current mid price to quote around, satisfied
// by internal/pricefeed.Simulator.
type PriceSource interface {
	CurrentPrice(symbolID int32) decimal.Decimal
}

// MarketMaker places a resting bid and ask on every registry symbol at a
// fixed interval, using AccountID as its own trading account.
type MarketMaker struct {
	accountID int32
	registry *config.Registry
	dispatcher Dispatcher
	prices PriceSource

	ctx context.Context
	cancel context.CancelFunc
	log zerolog.Logger
}

func New(accountID int32, registry *config.Registry, dispatcher Dispatcher, prices PriceSource) *MarketMaker {
	ctx, cancel := context.WithCancel(context.Background())
	return &MarketMaker{
		accountID: accountID,
		registry: registry,
		dispatcher: dispatcher,
		prices: prices,
		ctx: ctx,
		cancel: cancel,
		log: logging.Base.With().Str("component", "bot").Int32("account_id", accountID).Logger(),
	}
}

// Start launches one quoting goroutine per registry symbol.
func (mm *MarketMaker) Start() {
	for _, sym := range mm.registry.Symbols() {
		go mm.quote(sym.ID)
	}
	mm.log.Info().Int("symbols", len(mm.registry.Symbols())).Msg("market maker started")
}

func (mm *MarketMaker) Stop() { mm.cancel() }

func (mm *MarketMaker) quote(symbolID int32) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-mm.ctx.Done():
			return
		case <-ticker.C:
			mm.placeOrders(symbolID)
		}
	}
}

const decimalSpread = "0.002" // 0.2% spread around mid

func (mm *MarketMaker) placeOrders(symbolID int32) {
	mid := mm.prices.CurrentPrice(symbolID)
	if mid.IsZero() {
		return
	}

	spread := decimal.RequireFromString(decimalSpread)
	quantity := mm.randomQuantity()

	bidPrice := mid.Mul(decimal.NewFromInt(1).Sub(spread)).Round(2)
	mm.place(symbolID, domain.SideBid, bidPrice, quantity)

	askPrice := mid.Mul(decimal.NewFromInt(1).Add(spread)).Round(2)
	mm.place(symbolID, domain.SideAsk, askPrice, quantity)
}

func (mm *MarketMaker) place(symbolID int32, side domain.OrderSide, price, quantity decimal.Decimal) {
	req := proto.PlaceOrderRequest{
		RequestID: "bot",
		SymbolID: symbolID,
		AccountID: mm.accountID,
		Kind: domain.KindLimit,
		Side: side,
		Price: price.String(),
		Quantity: quantity.String(),
		Reply: shard.NewReply[proto.PlaceOrderResult](),
	}
	mm.dispatcher.RoutePlaceOrder(req)

	res := <-req.Reply
	if res.Code != 0 {
		mm.log.Debug().Int("code", res.Code).Str("message", res.Message).Int32("symbol_id", symbolID).Msg("market maker order rejected")
	}
}

func (mm *MarketMaker) randomQuantity() decimal.Decimal {
	base := 0.01 + rand.Float64()*0.09
	return decimal.NewFromFloat(base).Round(6)
}
