// Package sequencer implements the per-account shard that owns account
// balances, enforces the freeze/settle/unfreeze invariants on them, and
// forwards order placement and cancellation to the owning matcher shard.
package sequencer

import (
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/hft-exchange/lightning/internal/config"
	"github.com/hft-exchange/lightning/internal/coreerr"
	"github.com/hft-exchange/lightning/internal/decimalx"
	"github.com/hft-exchange/lightning/internal/domain"
	"github.com/hft-exchange/lightning/internal/logging"
	"github.com/hft-exchange/lightning/internal/proto"
	"github.com/hft-exchange/lightning/internal/shard"
)

// MatcherRouter is how a sequencer reaches the matcher shards. The router
// package supplies the concrete implementation; sequencer only depends on
// this interface, keeping sequencer and matcher free of a direct import of
// one another.
type MatcherRouter interface {
	PlaceOrder(symbolID int32, req proto.MatcherPlaceOrder)
	CancelOrder(symbolID int32, req proto.MatcherCancelOrder)
}

// Shard is one sequencer partition: `owner_shard(account) = |account_id|
// mod N`. It owns map[int32]*domain.Account for its partition
// exclusively and mutates it only from its own worker goroutine.
type Shard struct {
	index int
	registry *config.Registry
	accounts map[int32]*domain.Account
	primary shard.Mailbox[any]
	settlement shard.Mailbox[any]
	matcher MatcherRouter
	worker shard.Worker
	log zerolog.Logger
}

// NewShard allocates a sequencer shard. The matcher router is attached
// afterward via SetMatcherRouter, once all shards exist and can reference
// each other (bootstrap wires a ring of sequencer and matcher shards
// before starting any of them).
func NewShard(index int, registry *config.Registry, mailboxBuffer int) *Shard {
	return &Shard{
		index: index,
		registry: registry,
		accounts: make(map[int32]*domain.Account),
		primary: shard.NewMailbox[any](mailboxBuffer),
		settlement: shard.NewMailbox[any](mailboxBuffer),
		log: logging.For("sequencer", index),
	}
}

// SetMatcherRouter attaches the router used to forward PlaceOrder and
// CancelOrder to the owning matcher shard.
func (s *Shard) SetMatcherRouter(r MatcherRouter) { s.matcher = r }

// Index returns this shard's position in the ring.
func (s *Shard) Index() int { return s.index }

// Primary returns the mailbox for edge-originated requests.
func (s *Shard) Primary() shard.Mailbox[any] { return s.primary }

// Settlement returns the second mailbox, fed only by matcher shards with
// trade settlements and cancel/residual unfreezes.
func (s *Shard) Settlement() shard.Mailbox[any] { return s.settlement }

// Start launches the shard's dedicated worker goroutine.
func (s *Shard) Start() { s.worker.Go(s.run) }

// Stop signals the worker to exit at its next select iteration.
func (s *Shard) Stop() { s.worker.Stop() }

// Wait blocks until the worker goroutine has returned.
func (s *Shard) Wait() error { return s.worker.Wait() }

// run is the shard's single suspension point: a fair select across both
// mailboxes. Go's select already chooses pseudo-randomly among ready
// cases, so neither mailbox can starve the other.
func (s *Shard) run(dying <-chan struct{}) error {
	for {
		select {
		case <-dying:
			return nil
		case msg := <-s.primary:
			s.handlePrimary(msg)
		case msg := <-s.settlement:
			s.handleSettlement(msg)
		}
	}
}

func (s *Shard) handlePrimary(msg any) {
	switch req := msg.(type) {
	case proto.GetAccountRequest:
		s.handleGetAccount(req)
	case proto.IncreaseRequest:
		s.handleIncrease(req)
	case proto.DecreaseRequest:
		s.handleDecrease(req)
	case proto.PlaceOrderRequest:
		s.handlePlaceOrder(req)
	case proto.CancelOrderRequest:
		s.handleCancelOrder(req)
	default:
		s.log.Error().Type("type", msg).Msg("unrecognized message on primary mailbox")
	}
}

func (s *Shard) handleSettlement(msg any) {
	switch m := msg.(type) {
	case proto.ExecuteTradeSettlement:
		s.handleExecuteTrade(m)
	case proto.UnfreezeOrderSettlement:
		s.handleUnfreezeOrder(m)
	default:
		s.log.Error().Type("type", msg).Msg("unrecognized message on settlement mailbox")
	}
}

func (s *Shard) account(id int32) (*domain.Account, bool) {
	a, ok := s.accounts[id]
	return a, ok
}

func (s *Shard) getOrCreateAccount(id int32) *domain.Account {
	a, ok := s.accounts[id]
	if !ok {
		a = domain.NewAccount(id)
		s.accounts[id] = a
	}
	return a
}

func balanceView(b *domain.AccountBalance) proto.BalanceView {
	return proto.BalanceView{
		CurrencyID: b.CurrencyID,
		Total: b.Total,
		Frozen: b.Frozen,
		Available: b.Available,
	}
}

// handleGetAccount never fails on an existing account; a missing account
// reports 404.
func (s *Shard) handleGetAccount(req proto.GetAccountRequest) {
	acct, ok := s.account(req.AccountID)
	if !ok {
		req.Reply.Send(proto.GetAccountResult{
			Code: int(coreerr.CodeNotFound),
			Message: "account not found",
		})
		return
	}
	var balances []proto.BalanceView
	if req.CurrencyID != nil {
		balances = []proto.BalanceView{balanceView(acct.Balance(*req.CurrencyID))}
	} else {
		balances = make([]proto.BalanceView, 0, len(acct.Balances))
		for _, b := range acct.Balances {
			balances = append(balances, balanceView(b))
		}
	}
	req.Reply.Send(proto.GetAccountResult{Code: int(coreerr.CodeOK), Balances: balances})
}

func (s *Shard) handleIncrease(req proto.IncreaseRequest) {
	amount, err := decimalx.ParsePositive(req.Amount)
	if err != nil {
		req.Reply.Send(proto.BalanceOpResult{Code: int(coreerr.CodeOf(err)), Message: err.Error()})
		return
	}
	acct := s.getOrCreateAccount(req.AccountID)
	bal := acct.Balance(req.CurrencyID)
	if err := increase(bal, amount); err != nil {
		req.Reply.Send(proto.BalanceOpResult{Code: int(coreerr.CodeOf(err)), Message: err.Error()})
		return
	}
	req.Reply.Send(proto.BalanceOpResult{Code: int(coreerr.CodeOK), Balance: balanceView(bal)})
}

func (s *Shard) handleDecrease(req proto.DecreaseRequest) {
	amount, err := decimalx.ParsePositive(req.Amount)
	if err != nil {
		req.Reply.Send(proto.BalanceOpResult{Code: int(coreerr.CodeOf(err)), Message: err.Error()})
		return
	}
	acct := s.getOrCreateAccount(req.AccountID)
	bal := acct.Balance(req.CurrencyID)
	if err := decrease(bal, amount); err != nil {
		req.Reply.Send(proto.BalanceOpResult{Code: int(coreerr.CodeOf(err)), Message: err.Error()})
		return
	}
	req.Reply.Send(proto.BalanceOpResult{Code: int(coreerr.CodeOK), Balance: balanceView(bal)})
}

// handlePlaceOrder is the freeze rule, then a forward to the owning
// matcher. The matcher inherits req.Reply and finalizes the command.
func (s *Shard) handlePlaceOrder(req proto.PlaceOrderRequest) {
	symbol, ok := s.registry.Symbol(req.SymbolID)
	if !ok {
		req.Reply.Send(proto.PlaceOrderResult{
			Code: int(coreerr.CodeNotFound),
			Message: "unknown symbol",
		})
		return
	}

	// Market Bid cannot pre-freeze exactly, since its quote-currency cost
	// depends on a price not yet known, so it is rejected here; only
	// Market Ask is supported.
	if req.Kind == domain.KindMarket && req.Side == domain.SideBid {
		req.Reply.Send(proto.PlaceOrderResult{
			Code: int(coreerr.CodeInvalid),
			Message: "market bid is not supported; quote collateral cannot be pre-frozen without a price",
		})
		return
	}

	quantity, err := decimalx.ParsePositive(req.Quantity)
	if err != nil {
		req.Reply.Send(proto.PlaceOrderResult{Code: int(coreerr.CodeOf(err)), Message: err.Error()})
		return
	}

	var price decimal.Decimal
	if req.Kind == domain.KindLimit {
		price, err = decimalx.ParsePositive(req.Price)
		if err != nil {
			req.Reply.Send(proto.PlaceOrderResult{Code: int(coreerr.CodeOf(err)), Message: err.Error()})
			return
		}
	}

	var collateralCurrency int32
	var collateralAmount decimal.Decimal
	switch req.Side {
	case domain.SideBid:
		collateralCurrency = symbol.Quote
		collateralAmount = price.Mul(quantity)
	case domain.SideAsk:
		collateralCurrency = symbol.Base
		collateralAmount = quantity
	default:
		req.Reply.Send(proto.PlaceOrderResult{Code: int(coreerr.CodeInvalid), Message: "invalid side"})
		return
	}

	acct := s.getOrCreateAccount(req.AccountID)
	bal := acct.Balance(collateralCurrency)
	if err := freeze(bal, collateralAmount); err != nil {
		req.Reply.Send(proto.PlaceOrderResult{Code: int(coreerr.CodeOf(err)), Message: err.Error()})
		return
	}

	s.matcher.PlaceOrder(req.SymbolID, proto.MatcherPlaceOrder{
		RequestID: req.RequestID,
		SymbolID: req.SymbolID,
		AccountID: req.AccountID,
		Kind: req.Kind,
		Side: req.Side,
		Price: price,
		Quantity: quantity,
		Reply: req.Reply,
	})
}

// handleCancelOrder is a pure forward. The matcher finalizes the reply and, on success,
// sends an UnfreezeOrderSettlement back to this shard's settlement mailbox.
func (s *Shard) handleCancelOrder(req proto.CancelOrderRequest) {
	s.matcher.CancelOrder(req.SymbolID, proto.MatcherCancelOrder{
		RequestID: req.RequestID,
		SymbolID: req.SymbolID,
		AccountID: req.AccountID,
		OrderID: req.OrderID,
		Reply: req.Reply,
	})
}

// handleExecuteTrade applies only the branch for the side it was asked to
// settle; the matcher sends one message per side of each trade, so a
// self-trade yields two messages to the same sequencer, each applying its
// own branch independently.
func (s *Shard) handleExecuteTrade(m proto.ExecuteTradeSettlement) {
	quantity := m.Trade.Quantity
	notional := m.Trade.Notional()

	switch m.Side {
	case domain.SideBid:
		acct := s.getOrCreateAccount(m.Trade.BuyAccountID)
		settleReduce(acct.Balance(m.QuoteCurrency), notional)
		settleCredit(acct.Balance(m.BaseCurrency), quantity)
	case domain.SideAsk:
		acct := s.getOrCreateAccount(m.Trade.SellAccountID)
		settleReduce(acct.Balance(m.BaseCurrency), quantity)
		settleCredit(acct.Balance(m.QuoteCurrency), notional)
	}
}

// handleUnfreezeOrder releases the residual frozen collateral of a
// cancelled order, or the discarded residual of a market order.
func (s *Shard) handleUnfreezeOrder(m proto.UnfreezeOrderSettlement) {
	if m.Remaining.IsZero() {
		return
	}

	var currency int32
	var amount decimal.Decimal
	switch m.Side {
	case domain.SideBid:
		currency = m.QuoteCurrency
		amount = m.Price.Mul(m.Remaining)
	case domain.SideAsk:
		currency = m.BaseCurrency
		amount = m.Remaining
	}
	if !amount.IsPositive() {
		return
	}

	acct := s.getOrCreateAccount(m.AccountID)
	bal := acct.Balance(currency)
	if clamped := unfreeze(bal, amount); clamped {
		s.log.Warn().
			Int32("account_id", m.AccountID).
			Int32("currency_id", currency).
			Str("requested", amount.String()).
			Msg("unfreeze amount exceeded frozen balance; clamped to residual")
	}
}
