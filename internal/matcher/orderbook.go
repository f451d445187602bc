package matcher

import (
	"container/list"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tidwall/btree"

	"github.com/hft-exchange/lightning/internal/domain"
)

// priceLevel groups all resting orders at one price on one side, FIFO by
// arrival. totalQuantity is kept as a running sum so a depth read never
// has to walk the list.
type priceLevel struct {
	price decimal.Decimal
	orders *list.List // of *domain.Order
	totalQuantity decimal.Decimal
}

// OrderBook is the per-symbol book: two price-indexed ordered trees (one
// per side) plus an id index for read-back and cancel lookup.
// tidwall/btree gives O(log P) best-price access on each side.
type OrderBook struct {
	symbolID int32
	baseCurrency int32
	quoteCurrency int32

	// bids order by descending price (best bid = highest price = Min()
	// under this Less); asks order by ascending price (best ask = lowest
	// price = Min()). Both sides therefore expose "best price" as Min().
	bids *btree.BTreeG[*priceLevel]
	asks *btree.BTreeG[*priceLevel]

	index map[uint64]*domain.Order
}

func newOrderBook(symbolID, base, quote int32) *OrderBook {
	return &OrderBook{
		symbolID: symbolID,
		baseCurrency: base,
		quoteCurrency: quote,
		bids: btree.NewBTreeG[*priceLevel](func(a, b *priceLevel) bool { return a.price.GreaterThan(b.price) }),
		asks: btree.NewBTreeG[*priceLevel](func(a, b *priceLevel) bool { return a.price.LessThan(b.price) }),
		index: make(map[uint64]*domain.Order),
	}
}

// Match runs the price-time priority sweep for an incoming taker against
// the opposite side of the book, mutating both the taker and any makers
// it fills. genTradeID is injected so ID allocation stays under the
// matcher shard's single idGenerator.
func (b *OrderBook) Match(taker *domain.Order, genTradeID func() uint64) []domain.Trade {
	b.index[taker.ID] = taker

	var opposite *btree.BTreeG[*priceLevel]
	var eligible func(levelPrice decimal.Decimal) bool
	switch taker.Side {
	case domain.SideBid:
		opposite = b.asks
		eligible = func(levelPrice decimal.Decimal) bool {
			return taker.Kind == domain.KindMarket || levelPrice.LessThanOrEqual(taker.Price)
		}
	case domain.SideAsk:
		opposite = b.bids
		eligible = func(levelPrice decimal.Decimal) bool {
			return taker.Kind == domain.KindMarket || levelPrice.GreaterThanOrEqual(taker.Price)
		}
	}

	var trades []domain.Trade
	for taker.Remaining().IsPositive() {
		level, ok := opposite.Min()
		if !ok || !eligible(level.price) {
			break
		}

		for taker.Remaining().IsPositive() && level.orders.Len() > 0 {
			front := level.orders.Front()
			maker := front.Value.(*domain.Order)

			fill := decimal.Min(taker.Remaining(), maker.Remaining())
			taker.FilledQuantity = taker.FilledQuantity.Add(fill)
			maker.FilledQuantity = maker.FilledQuantity.Add(fill)
			level.totalQuantity = level.totalQuantity.Sub(fill)

			trades = append(trades, newTrade(genTradeID(), b.symbolID, level.price, fill, taker, maker))

			if maker.IsFilled() {
				maker.Status = domain.StatusFilled
				level.orders.Remove(front)
			} else {
				maker.Status = domain.StatusPartial
			}
		}

		if level.orders.Len() == 0 {
			opposite.Delete(level)
		}
	}

	return trades
}

// newTrade assigns buy/sell identities by side: the Bid participant is
// always the buyer, the Ask participant always the seller, regardless of
// which one is the taker.
func newTrade(id uint64, symbolID int32, price, quantity decimal.Decimal, taker, maker *domain.Order) domain.Trade {
	t := domain.Trade{
		ID: id,
		SymbolID: symbolID,
		Price: price,
		Quantity: quantity,
		CreatedAt: time.Now(),
	}
	if taker.Side == domain.SideBid {
		t.BuyOrderID, t.BuyAccountID = taker.ID, taker.AccountID
		t.SellOrderID, t.SellAccountID = maker.ID, maker.AccountID
	} else {
		t.BuyOrderID, t.BuyAccountID = maker.ID, maker.AccountID
		t.SellOrderID, t.SellAccountID = taker.ID, taker.AccountID
	}
	return t
}

// rest inserts a limit order with residual quantity at the tail of its
// price level, creating the level if this is the first order at that
// price.
func (b *OrderBook) rest(order *domain.Order) {
	tree := b.sideTree(order.Side)
	probe := &priceLevel{price: order.Price}
	level, ok := tree.Get(probe)
	if !ok {
		level = &priceLevel{price: order.Price, orders: list.New(), totalQuantity: decimal.Zero}
		tree.Set(level)
	}
	level.orders.PushBack(order)
	level.totalQuantity = level.totalQuantity.Add(order.Remaining())
}

// removeFromLevel removes a resting order from its price level on cancel,
// dropping the level entirely if it becomes empty.
func (b *OrderBook) removeFromLevel(order *domain.Order) {
	tree := b.sideTree(order.Side)
	level, ok := tree.Get(&priceLevel{price: order.Price})
	if !ok {
		return
	}
	for e := level.orders.Front(); e != nil; e = e.Next() {
		if e.Value.(*domain.Order).ID == order.ID {
			level.totalQuantity = level.totalQuantity.Sub(order.Remaining())
			level.orders.Remove(e)
			break
		}
	}
	if level.orders.Len() == 0 {
		tree.Delete(level)
	}
}

func (b *OrderBook) sideTree(side domain.OrderSide) *btree.BTreeG[*priceLevel] {
	if side == domain.SideAsk {
		return b.asks
	}
	return b.bids
}

// topLevels aggregates up to n price levels best-first, the shape
// reports for a depth read.
func topLevels(tree *btree.BTreeG[*priceLevel], n int) []levelView {
	out := make([]levelView, 0, n)
	tree.Scan(func(pl *priceLevel) bool {
		out = append(out, levelView{Price: pl.price, Quantity: pl.totalQuantity})
		return len(out) < n
	})
	return out
}

type levelView struct {
	Price decimal.Decimal
	Quantity decimal.Decimal
}
