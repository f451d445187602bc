// Package router implements the "Edge router": shard-selection by
// account id or symbol id, and delivery of a request (with its one-shot
// reply channel) to the owning shard. It holds the only concrete
// references to sequencer.Shard and matcher.Shard, so sequencer and
// matcher themselves depend only on the interfaces in internal/proto's
// neighboring packages, never on each other.
package router

import (
	"fmt"

	"github.com/hft-exchange/lightning/internal/config"
	"github.com/hft-exchange/lightning/internal/domain"
	"github.com/hft-exchange/lightning/internal/matcher"
	"github.com/hft-exchange/lightning/internal/proto"
	"github.com/hft-exchange/lightning/internal/sequencer"
)

// Dispatcher owns the full ring of N sequencer and N matcher shards and
// implements both cross-shard router interfaces those packages depend on.
type Dispatcher struct {
	n int
	sequencers []*sequencer.Shard
	matchers []*matcher.Shard
}

// New builds N sequencer shards and N matcher shards and wires each to
// this Dispatcher as its cross-shard router. Shards are constructed but
// not started; call Start once bootstrap is ready to serve traffic.
func New(n int, registry *config.Registry, mailboxBuffer int) (*Dispatcher, error) {
	if n <= 0 {
		return nil, fmt.Errorf("router: shard count must be positive, got %d", n)
	}

	d := &Dispatcher{n: n}
	for i := 0; i < n; i++ {
		d.sequencers = append(d.sequencers, sequencer.NewShard(i, registry, mailboxBuffer))
	}
	for i := 0; i < n; i++ {
		m, err := matcher.NewShard(i, registry, mailboxBuffer)
		if err != nil {
			return nil, fmt.Errorf("router: matcher shard %d: %w", i, err)
		}
		d.matchers = append(d.matchers, m)
	}
	for _, s := range d.sequencers {
		s.SetMatcherRouter(d)
	}
	for _, m := range d.matchers {
		m.SetSequencerRouter(d)
	}
	return d, nil
}

// Start launches every shard's worker goroutine.
func (d *Dispatcher) Start() {
	for _, s := range d.sequencers {
		s.Start()
	}
	for _, m := range d.matchers {
		m.Start()
	}
}

// Stop signals every shard to exit.
func (d *Dispatcher) Stop() {
	for _, s := range d.sequencers {
		s.Stop()
	}
	for _, m := range d.matchers {
		m.Stop()
	}
}

// Wait blocks until every shard goroutine has returned, returning the
// first error encountered (if any).
func (d *Dispatcher) Wait() error {
	var first error
	for _, s := range d.sequencers {
		if err := s.Wait(); err != nil && first == nil {
			first = err
		}
	}
	for _, m := range d.matchers {
		if err := m.Wait(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// ShardCount returns N.
func (d *Dispatcher) ShardCount() int { return d.n }

// SetTradeObserver registers fn on every matcher shard (see
// matcher.Shard.SetTradeObserver); it is the edge's only window into
// trades as they happen, for broadcast and audit purposes.
func (d *Dispatcher) SetTradeObserver(fn func(domain.Trade)) {
	for _, m := range d.matchers {
		m.SetTradeObserver(fn)
	}
}

// SequencerIndex is the shard-selection formula:
// sequencer_shard = |account_id| mod N.
func SequencerIndex(accountID int32, n int) int {
	return int(abs32(accountID) % int64(n))
}

// MatcherIndex is the shard-selection formula:
// matcher_shard = |symbol_id| mod N.
func MatcherIndex(symbolID int32, n int) int {
	return int(abs32(symbolID) % int64(n))
}

// abs32 widens to int64 so that |math.MinInt32| does not overflow.
func abs32(x int32) int64 {
	v := int64(x)
	if v < 0 {
		return -v
	}
	return v
}

// --- sequencer.MatcherRouter ---

func (d *Dispatcher) PlaceOrder(symbolID int32, req proto.MatcherPlaceOrder) {
	d.matchers[MatcherIndex(symbolID, d.n)].Primary() <- req
}

func (d *Dispatcher) CancelOrder(symbolID int32, req proto.MatcherCancelOrder) {
	d.matchers[MatcherIndex(symbolID, d.n)].Primary() <- req
}

// --- matcher.SequencerRouter ---

func (d *Dispatcher) SettleTrade(accountID int32, msg proto.ExecuteTradeSettlement) {
	d.sequencers[SequencerIndex(accountID, d.n)].Settlement() <- msg
}

func (d *Dispatcher) Unfreeze(accountID int32, msg proto.UnfreezeOrderSettlement) {
	d.sequencers[SequencerIndex(accountID, d.n)].Settlement() <- msg
}

// --- Edge entry points ---

// RouteGetAccount delivers a GetAccount request to its owning sequencer.
func (d *Dispatcher) RouteGetAccount(req proto.GetAccountRequest) {
	d.sequencers[SequencerIndex(req.AccountID, d.n)].Primary() <- req
}

// RouteIncrease delivers an Increase request to its owning sequencer.
func (d *Dispatcher) RouteIncrease(req proto.IncreaseRequest) {
	d.sequencers[SequencerIndex(req.AccountID, d.n)].Primary() <- req
}

// RouteDecrease delivers a Decrease request to its owning sequencer.
func (d *Dispatcher) RouteDecrease(req proto.DecreaseRequest) {
	d.sequencers[SequencerIndex(req.AccountID, d.n)].Primary() <- req
}

// RoutePlaceOrder delivers a PlaceOrder request to its owning sequencer,
// which freezes collateral and forwards to the owning matcher.
func (d *Dispatcher) RoutePlaceOrder(req proto.PlaceOrderRequest) {
	d.sequencers[SequencerIndex(req.AccountID, d.n)].Primary() <- req
}

// RouteCancelOrder delivers a CancelOrder request to its owning sequencer,
// which forwards to the owning matcher.
func (d *Dispatcher) RouteCancelOrder(req proto.CancelOrderRequest) {
	d.sequencers[SequencerIndex(req.AccountID, d.n)].Primary() <- req
}

// RouteGetOrderBook delivers a GetOrderBook request directly to its owning
// matcher; it never touches a sequencer.
func (d *Dispatcher) RouteGetOrderBook(req proto.GetOrderBookRequest) {
	d.matchers[MatcherIndex(req.SymbolID, d.n)].Primary() <- req
}
