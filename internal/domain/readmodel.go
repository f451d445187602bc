package domain

import "time"

// Ticker is an edge/demo read-model, populated by internal/pricefeed and
// broadcast over internal/wsgateway. It plays no part in the core's
// consistency domain.
type Ticker struct {
	SymbolID int32 `json:"symbol_id"`
	Price string `json:"price"`
	High24h string `json:"high_24h"`
	Low24h string `json:"low_24h"`
	Volume24h string `json:"volume_24h"`
	Change24h string `json:"change_24h"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BookLevel is one aggregated (price, quantity) row of a depth snapshot,
// the wire shape from the GetOrderBook reply.
type BookLevel struct {
	Price string `json:"price"`
	Quantity string `json:"quantity"`
}

// BookSnapshot is a GetOrderBook reply rendered for the websocket
// broadcast and the Redis cache: top levels of bids (descending) and asks
// (ascending), best bid/ask, spread, and timestamp. The REST order-book
// endpoint renders proto.GetOrderBookResult instead.
type BookSnapshot struct {
	SymbolID int32 `json:"symbol_id"`
	Bids []BookLevel `json:"bids"`
	Asks []BookLevel `json:"asks"`
	BestBid *string `json:"best_bid,omitempty"`
	BestAsk *string `json:"best_ask,omitempty"`
	Spread *string `json:"spread,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// TradeView is the read-only broadcast shape of a Trade, rendered for
// the wsgateway feed and the ledger's audit sink. The core's own Trade
// never carries JSON tags; this is strictly an edge concern.
type TradeView struct {
	ID uint64 `json:"id"`
	SymbolID int32 `json:"symbol_id"`
	BuyOrderID uint64 `json:"buy_order_id"`
	SellOrderID uint64 `json:"sell_order_id"`
	BuyAccountID int32 `json:"buy_account_id"`
	SellAccountID int32 `json:"sell_account_id"`
	Price string `json:"price"`
	Quantity string `json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
}

// NewTradeView renders a core Trade for the wsgateway/ledger edge.
func NewTradeView(t Trade) TradeView {
	return TradeView{
		ID: t.ID,
		SymbolID: t.SymbolID,
		BuyOrderID: t.BuyOrderID,
		SellOrderID: t.SellOrderID,
		BuyAccountID: t.BuyAccountID,
		SellAccountID: t.SellAccountID,
		Price: t.Price.String(),
		Quantity: t.Quantity.String(),
		CreatedAt: t.CreatedAt,
	}
}
