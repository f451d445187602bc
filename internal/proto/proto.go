// Package proto is the message contract of the tagged request
// and reply payloads that cross shard boundaries, modeled as plain structs
// rather than a wire format. Sequencer and matcher shards both depend on this
// package; it depends on neither, so there is no import cycle between them
// — they only ever reach each other through an internal/router.Dispatcher
// that holds concrete shard handles.
package proto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/hft-exchange/lightning/internal/domain"
	"github.com/hft-exchange/lightning/internal/shard"
)

// BalanceView is the {total, frozen, available} reply shape,
// rendered as decimal strings on the wire but kept as decimal.Decimal
// internally between shards.
type BalanceView struct {
	CurrencyID int32
	Total decimal.Decimal
	Frozen decimal.Decimal
	Available decimal.Decimal
}

// GetAccountResult is the GetAccount reply payload.
type GetAccountResult struct {
	Code int
	Message string
	Balances []BalanceView
}

// BalanceOpResult is the Increase/Decrease reply payload.
type BalanceOpResult struct {
	Code int
	Message string
	Balance BalanceView
}

// PlaceOrderResult is the PlaceOrder reply payload: "{code,
// message, order_id}".
type PlaceOrderResult struct {
	Code int
	Message string
	OrderID uint64
}

// CancelOrderResult is the CancelOrder reply payload.
type CancelOrderResult struct {
	Code int
	Message string
	OrderID uint64
	CancelledQuantity decimal.Decimal
}

// GetOrderBookResult is the GetOrderBook reply payload.
type GetOrderBookResult struct {
	SymbolID int32
	Bids []PriceLevelView
	Asks []PriceLevelView
	BestBid *decimal.Decimal
	BestAsk *decimal.Decimal
	Spread *decimal.Decimal
	Timestamp time.Time
}

// PriceLevelView is one aggregated (price, quantity) row of a depth
// snapshot.
type PriceLevelView struct {
	Price decimal.Decimal
	Quantity decimal.Decimal
}

// --- Requests delivered to a sequencer shard's primary mailbox ---

type GetAccountRequest struct {
	RequestID string
	AccountID int32
	CurrencyID *int32
	Reply shard.Reply[GetAccountResult]
}

type IncreaseRequest struct {
	RequestID string
	AccountID int32
	CurrencyID int32
	Amount string
	Reply shard.Reply[BalanceOpResult]
}

type DecreaseRequest struct {
	RequestID string
	AccountID int32
	CurrencyID int32
	Amount string
	Reply shard.Reply[BalanceOpResult]
}

// PlaceOrderRequest is the edge-facing place-order command. It is first
// delivered to the owning sequencer; the sequencer freezes collateral and
// then hands a MatcherPlaceOrder (below) to the owning matcher, which owns
// Reply from that point on.
type PlaceOrderRequest struct {
	RequestID string
	SymbolID int32
	AccountID int32
	Kind domain.OrderKind
	Side domain.OrderSide
	Price string
	Quantity string
	Reply shard.Reply[PlaceOrderResult]
}

// CancelOrderRequest is the edge-facing cancel command, first delivered to
// the owning sequencer which forwards to the owning matcher.
type CancelOrderRequest struct {
	RequestID string
	SymbolID int32
	AccountID int32
	OrderID uint64
	Reply shard.Reply[CancelOrderResult]
}

// --- Requests delivered to a matcher shard's primary mailbox ---

// MatcherPlaceOrder is what the sequencer forwards after a successful
// freeze. Price/Quantity are already-parsed decimals: the
// sequencer did the string parsing as part of freeze math, so the matcher
// never re-parses user input.
type MatcherPlaceOrder struct {
	RequestID string
	SymbolID int32
	AccountID int32
	Kind domain.OrderKind
	Side domain.OrderSide
	Price decimal.Decimal
	Quantity decimal.Decimal
	Reply shard.Reply[PlaceOrderResult]
}

// MatcherCancelOrder is what the sequencer forwards for a cancel.
type MatcherCancelOrder struct {
	RequestID string
	SymbolID int32
	AccountID int32
	OrderID uint64
	Reply shard.Reply[CancelOrderResult]
}

// GetOrderBookRequest is routed directly by symbol_id; it never
// touches a sequencer.
type GetOrderBookRequest struct {
	RequestID string
	SymbolID int32
	Levels int
	Reply shard.Reply[GetOrderBookResult]
}

// --- Settlement messages delivered to a sequencer shard's secondary
// (matcher-originated) mailbox ---

// ExecuteTradeSettlement asks the owning sequencer to apply its side of a
// trade. The matcher emits two of these per trade, one for the buy side and
// one for the sell side: both buyer and seller need their balances settled,
// even when one shard owns both accounts or both sides are one account.
type ExecuteTradeSettlement struct {
	Trade domain.Trade
	BaseCurrency int32
	QuoteCurrency int32
	// Side is the settling account's role in this trade: SideBid for the
	// buyer's branch, SideAsk for the seller's branch.
	Side domain.OrderSide
}

// UnfreezeOrderSettlement asks the owning sequencer to release the
// residual frozen collateral of a cancelled (or residual market) order.
type UnfreezeOrderSettlement struct {
	AccountID int32
	Side domain.OrderSide
	Price decimal.Decimal
	Remaining decimal.Decimal
	BaseCurrency int32
	QuoteCurrency int32
}
