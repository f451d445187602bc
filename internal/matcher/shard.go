// Package matcher implements the per-symbol shard that owns
// an order book and executes price-time priority matching for limit and
// market orders.
package matcher

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/hft-exchange/lightning/internal/config"
	"github.com/hft-exchange/lightning/internal/coreerr"
	"github.com/hft-exchange/lightning/internal/domain"
	"github.com/hft-exchange/lightning/internal/logging"
	"github.com/hft-exchange/lightning/internal/proto"
	"github.com/hft-exchange/lightning/internal/shard"
)

// SequencerRouter is how a matcher reaches back to the owning sequencer of
// a trade participant or a cancelled/residual order.
type SequencerRouter interface {
	SettleTrade(accountID int32, msg proto.ExecuteTradeSettlement)
	Unfreeze(accountID int32, msg proto.UnfreezeOrderSettlement)
}

// Shard is one matcher partition: `matcher_shard = |symbol_id| mod N`
//. It owns map[int32]*OrderBook for its partition exclusively.
type Shard struct {
	index int
	registry *config.Registry
	books map[int32]*OrderBook
	ids *idGenerator
	primary shard.Mailbox[any]
	sequencers SequencerRouter
	onTrade func(domain.Trade)
	worker shard.Worker
	log zerolog.Logger
}

// NewShard allocates a matcher shard. Order books are created lazily per
// symbol on first reference, the same policy the sequencer uses for
// accounts.
func NewShard(index int, registry *config.Registry, mailboxBuffer int) (*Shard, error) {
	ids, err := newIDGenerator(index)
	if err != nil {
		return nil, err
	}
	return &Shard{
		index: index,
		registry: registry,
		books: make(map[int32]*OrderBook),
		ids: ids,
		primary: shard.NewMailbox[any](mailboxBuffer),
		log: logging.For("matcher", index),
	}, nil
}

// SetSequencerRouter attaches the router used to deliver settlement and
// unfreeze messages back to owning sequencer shards.
func (s *Shard) SetSequencerRouter(r SequencerRouter) { s.sequencers = r }

// SetTradeObserver registers a callback invoked once per trade from the
// shard's own goroutine, after matching but before the reply is sent. This
// is an edge-only hook (wsgateway broadcast, Redis trade publish, ledger
// audit sink) with no bearing on the core's consistency domain; the core
// never reads it back.
func (s *Shard) SetTradeObserver(fn func(domain.Trade)) { s.onTrade = fn }

// Index returns this shard's position in the ring.
func (s *Shard) Index() int { return s.index }

// Primary returns the mailbox for edge- and sequencer-forwarded requests.
func (s *Shard) Primary() shard.Mailbox[any] { return s.primary }

// Start launches the shard's dedicated worker goroutine.
func (s *Shard) Start() { s.worker.Go(s.run) }

// Stop signals the worker to exit at its next select iteration.
func (s *Shard) Stop() { s.worker.Stop() }

// Wait blocks until the worker goroutine has returned.
func (s *Shard) Wait() error { return s.worker.Wait() }

func (s *Shard) run(dying <-chan struct{}) error {
	for {
		select {
		case <-dying:
			return nil
		case msg := <-s.primary:
			s.handle(msg)
		}
	}
}

func (s *Shard) handle(msg any) {
	switch req := msg.(type) {
	case proto.MatcherPlaceOrder:
		s.handlePlaceOrder(req)
	case proto.MatcherCancelOrder:
		s.handleCancelOrder(req)
	case proto.GetOrderBookRequest:
		s.handleGetOrderBook(req)
	default:
		s.log.Error().Type("type", msg).Msg("unrecognized message on primary mailbox")
	}
}

// bookFor returns the symbol's book, creating it on first reference. It
// returns nil only if the symbol is not in the registry, which should not
// happen: the owning sequencer already resolved it before forwarding.
func (s *Shard) bookFor(symbolID int32) *OrderBook {
	if b, ok := s.books[symbolID]; ok {
		return b
	}
	sym, ok := s.registry.Symbol(symbolID)
	if !ok {
		return nil
	}
	b := newOrderBook(symbolID, sym.Base, sym.Quote)
	s.books[symbolID] = b
	return b
}

func (s *Shard) handlePlaceOrder(req proto.MatcherPlaceOrder) {
	book := s.bookFor(req.SymbolID)
	if book == nil {
		req.Reply.Send(proto.PlaceOrderResult{Code: int(coreerr.CodeNotFound), Message: "unknown symbol"})
		return
	}

	order := &domain.Order{
		ID: s.ids.next(),
		RequestID: req.RequestID,
		SymbolID: req.SymbolID,
		AccountID: req.AccountID,
		Kind: req.Kind,
		Side: req.Side,
		Price: req.Price,
		Quantity: req.Quantity,
		FilledQuantity: decimal.Zero,
		Status: domain.StatusPending,
		CreatedAt: time.Now(),
	}

	trades := book.Match(order, s.ids.next)

	switch {
	case order.IsFilled():
		order.Status = domain.StatusFilled
	case order.Kind == domain.KindLimit:
		if order.FilledQuantity.IsPositive() {
			order.Status = domain.StatusPartial
		}
		book.rest(order)
	default:
		// Market taker residual is discarded, never rests. The
		// frozen collateral reserved for the discarded remainder is
		// released back through the owning sequencer.
		order.Status = domain.StatusCancelled
		if remaining := order.Remaining(); remaining.IsPositive() && s.sequencers != nil {
			s.sequencers.Unfreeze(order.AccountID, proto.UnfreezeOrderSettlement{
				AccountID: order.AccountID,
				Side: order.Side,
				Price: order.Price,
				Remaining: remaining,
				BaseCurrency: book.baseCurrency,
				QuoteCurrency: book.quoteCurrency,
			})
		}
	}

	for _, t := range trades {
		s.sequencers.SettleTrade(t.BuyAccountID, proto.ExecuteTradeSettlement{
			Trade: t, BaseCurrency: book.baseCurrency, QuoteCurrency: book.quoteCurrency, Side: domain.SideBid,
		})
		s.sequencers.SettleTrade(t.SellAccountID, proto.ExecuteTradeSettlement{
			Trade: t, BaseCurrency: book.baseCurrency, QuoteCurrency: book.quoteCurrency, Side: domain.SideAsk,
		})
		if s.onTrade != nil {
			s.onTrade(t)
		}
	}

	req.Reply.Send(proto.PlaceOrderResult{Code: int(coreerr.CodeOK), OrderID: order.ID})
}

func (s *Shard) handleCancelOrder(req proto.MatcherCancelOrder) {
	book, ok := s.books[req.SymbolID]
	if !ok {
		req.Reply.Send(proto.CancelOrderResult{Code: int(coreerr.CodeNotFound), OrderID: req.OrderID})
		return
	}
	order, ok := book.index[req.OrderID]
	if !ok || !order.IsResting() {
		req.Reply.Send(proto.CancelOrderResult{Code: int(coreerr.CodeNotFound), OrderID: req.OrderID})
		return
	}
	if order.AccountID != req.AccountID {
		req.Reply.Send(proto.CancelOrderResult{Code: int(coreerr.CodeForbidden), OrderID: req.OrderID})
		return
	}

	remaining := order.Remaining()
	book.removeFromLevel(order)
	order.Status = domain.StatusCancelled

	if s.sequencers != nil {
		s.sequencers.Unfreeze(order.AccountID, proto.UnfreezeOrderSettlement{
			AccountID: order.AccountID,
			Side: order.Side,
			Price: order.Price,
			Remaining: remaining,
			BaseCurrency: book.baseCurrency,
			QuoteCurrency: book.quoteCurrency,
		})
	}

	req.Reply.Send(proto.CancelOrderResult{
		Code: int(coreerr.CodeOK), OrderID: order.ID, CancelledQuantity: remaining,
	})
}

func (s *Shard) handleGetOrderBook(req proto.GetOrderBookRequest) {
	levels := req.Levels
	if levels <= 0 {
		levels = 20
	}

	book, ok := s.books[req.SymbolID]
	if !ok {
		req.Reply.Send(proto.GetOrderBookResult{SymbolID: req.SymbolID, Timestamp: time.Now()})
		return
	}

	bids := topLevels(book.bids, levels)
	asks := topLevels(book.asks, levels)

	result := proto.GetOrderBookResult{
		SymbolID: req.SymbolID,
		Bids: toPriceLevelViews(bids),
		Asks: toPriceLevelViews(asks),
		Timestamp: time.Now(),
	}
	if len(bids) > 0 {
		p := bids[0].Price
		result.BestBid = &p
	}
	if len(asks) > 0 {
		p := asks[0].Price
		result.BestAsk = &p
	}
	if result.BestBid != nil && result.BestAsk != nil {
		spread := result.BestAsk.Sub(*result.BestBid)
		result.Spread = &spread
	}

	req.Reply.Send(result)
}

func toPriceLevelViews(levels []levelView) []proto.PriceLevelView {
	out := make([]proto.PriceLevelView, len(levels))
	for i, l := range levels {
		out[i] = proto.PriceLevelView{Price: l.Price, Quantity: l.Quantity}
	}
	return out
}
