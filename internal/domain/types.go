// Package domain holds the data model shared across shard boundaries:
// account balances (sequencer-owned), and orders/trades, whose values
// travel between sequencer and matcher shards as message payloads.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderSide is the Bid/Ask direction.
type OrderSide int32

const (
	SideBid OrderSide = 0
	SideAsk OrderSide = 1
)

func (s OrderSide) String() string {
	if s == SideBid {
		return "BID"
	}
	return "ASK"
}

// OrderKind distinguishes resting limit orders from immediate-or-discard
// market orders.
type OrderKind int32

const (
	KindLimit OrderKind = 0
	KindMarket OrderKind = 1
)

func (k OrderKind) String() string {
	if k == KindLimit {
		return "LIMIT"
	}
	return "MARKET"
}

// OrderStatus is an order's position in its fill lifecycle: pending,
// partially filled, fully filled, or cancelled.
type OrderStatus int32

const (
	StatusPending OrderStatus = iota
	StatusPartial
	StatusFilled
	StatusCancelled
)

func (s OrderStatus) String() string {
	switch s {
	case StatusPending:
		return "PENDING"
	case StatusPartial:
		return "PARTIAL"
	case StatusFilled:
		return "FILLED"
	case StatusCancelled:
		return "CANCELLED"
	default:
		return "UNKNOWN"
	}
}

// AccountBalance is the per (account, currency) balance triple.
// Invariant: Total == Frozen + Available, both parts >= 0. Mutating
// methods live in internal/sequencer, not here, so the sequencer remains
// the sole writer of balance state.
type AccountBalance struct {
	CurrencyID int32
	Total decimal.Decimal
	Frozen decimal.Decimal
	Available decimal.Decimal
}

// NewAccountBalance returns the zero balance lazily created on first
// reference 
func NewAccountBalance(currencyID int32) *AccountBalance {
	return &AccountBalance{
		CurrencyID: currencyID,
		Total: decimal.Zero,
		Frozen: decimal.Zero,
		Available: decimal.Zero,
	}
}

// Account is { id, balances } owned exclusively by one sequencer shard.
type Account struct {
	ID int32
	Balances map[int32]*AccountBalance
}

// NewAccount creates an account with no balances yet; currencies are
// materialized lazily on first reference.
func NewAccount(id int32) *Account {
	return &Account{ID: id, Balances: make(map[int32]*AccountBalance)}
}

// Balance returns the account's balance for currencyID, creating a zero
// balance on first reference.
func (a *Account) Balance(currencyID int32) *AccountBalance {
	b, ok := a.Balances[currencyID]
	if !ok {
		b = NewAccountBalance(currencyID)
		a.Balances[currencyID] = b
	}
	return b
}

// Order is the order record. Quantity fields use Decimal so the
// core never touches floating point.
type Order struct {
	ID uint64
	RequestID string
	SymbolID int32
	AccountID int32
	Kind OrderKind
	Side OrderSide
	Price decimal.Decimal // sentinel (ignored) for market orders
	Quantity decimal.Decimal
	FilledQuantity decimal.Decimal
	Status OrderStatus
	CreatedAt time.Time
}

// Remaining returns quantity - filled_quantity, the `remaining`.
func (o *Order) Remaining() decimal.Decimal {
	return o.Quantity.Sub(o.FilledQuantity)
}

// IsFilled reports status == Filled <=> filled_quantity == quantity.
func (o *Order) IsFilled() bool {
	return o.FilledQuantity.GreaterThanOrEqual(o.Quantity)
}

// IsResting reports whether the order may still be present in a book level
// (Pending or Partial).
func (o *Order) IsResting() bool {
	return o.Status == StatusPending || o.Status == StatusPartial
}

// Snapshot is an immutable copy of an Order safe to hand across a shard
// boundary inside a message (the owning matcher keeps mutating its live
// *Order; callers get a point-in-time value instead of a shared pointer).
func (o *Order) Snapshot() Order {
	return *o
}

// Trade is the immutable, append-only trade record.
type Trade struct {
	ID uint64
	SymbolID int32
	BuyOrderID uint64
	SellOrderID uint64
	BuyAccountID int32
	SellAccountID int32
	Price decimal.Decimal
	Quantity decimal.Decimal
	CreatedAt time.Time
}

// Notional returns price * quantity: the quote-currency amount that
// changes hands for this trade.
func (t Trade) Notional() decimal.Decimal {
	return t.Price.Mul(t.Quantity)
}
