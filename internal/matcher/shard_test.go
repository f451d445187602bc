package matcher

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hft-exchange/lightning/internal/config"
	"github.com/hft-exchange/lightning/internal/domain"
	"github.com/hft-exchange/lightning/internal/proto"
	"github.com/hft-exchange/lightning/internal/shard"
)

const (
	testBTC int32 = 1
	testUSDT int32 = 2
	testSym int32 = 1
)

func testRegistry(t *testing.T) *config.Registry {
	t.Helper()
	reg, err := config.New(
		[]config.Currency{{ID: testBTC, Name: "BTC"}, {ID: testUSDT, Name: "USDT"}},
		[]config.Symbol{{ID: testSym, Name: "BTC/USDT", Base: testBTC, Quote: testUSDT}},
	)
	require.NoError(t, err)
	return reg
}

// recordingRouter captures settlement and unfreeze traffic the matcher
// emits back toward sequencers, so tests stay scoped to
type recordingRouter struct {
	settled []proto.ExecuteTradeSettlement
	unfrozen []proto.UnfreezeOrderSettlement
}

func (r *recordingRouter) SettleTrade(accountID int32, msg proto.ExecuteTradeSettlement) {
	r.settled = append(r.settled, msg)
}

func (r *recordingRouter) Unfreeze(accountID int32, msg proto.UnfreezeOrderSettlement) {
	r.unfrozen = append(r.unfrozen, msg)
}

func newTestShard(t *testing.T) (*Shard, *recordingRouter) {
	t.Helper()
	s, err := NewShard(0, testRegistry(t), 16)
	require.NoError(t, err)
	router := &recordingRouter{}
	s.SetSequencerRouter(router)
	s.Start()
	t.Cleanup(func() {
		s.Stop()
		_ = s.Wait()
	})
	return s, router
}

func await[T any](t *testing.T, reply shard.Reply[T]) T {
	t.Helper()
	select {
	case v := <-reply:
		return v
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for reply")
		var zero T
		return zero
	}
}

func place(t *testing.T, s *Shard, side domain.OrderSide, kind domain.OrderKind, price, qty string) proto.PlaceOrderResult {
	t.Helper()
	reply := shard.NewReply[proto.PlaceOrderResult]()
	var p decimal.Decimal
	if price != "" {
		p = decimal.RequireFromString(price)
	}
	s.Primary() <- proto.MatcherPlaceOrder{
		SymbolID: testSym, AccountID: 0, Kind: kind, Side: side,
		Price: p, Quantity: decimal.RequireFromString(qty), Reply: reply,
	}
	return await(t, reply)
}

// TestMatchAtMakerPrice is scenario S1: a crossing Bid/Ask pair trades at
// the maker's (resting) price.
func TestMatchAtMakerPrice(t *testing.T) {
	s, router := newTestShard(t)

	reply := shard.NewReply[proto.PlaceOrderResult]()
	s.Primary() <- proto.MatcherPlaceOrder{
		SymbolID: testSym, AccountID: 10, Kind: domain.KindLimit, Side: domain.SideAsk,
		Price: decimal.RequireFromString("50000"), Quantity: decimal.RequireFromString("0.1"), Reply: reply,
	}
	await(t, reply)

	reply = shard.NewReply[proto.PlaceOrderResult]()
	s.Primary() <- proto.MatcherPlaceOrder{
		SymbolID: testSym, AccountID: 20, Kind: domain.KindLimit, Side: domain.SideBid,
		Price: decimal.RequireFromString("50000"), Quantity: decimal.RequireFromString("0.1"), Reply: reply,
	}
	res := await(t, reply)
	assert.Equal(t, 0, res.Code)

	require.Len(t, router.settled, 2)
	for _, m := range router.settled {
		assert.True(t, m.Trade.Price.Equal(decimal.RequireFromString("50000")))
		assert.True(t, m.Trade.Quantity.Equal(decimal.RequireFromString("0.1")))
		assert.Equal(t, int32(20), m.Trade.BuyAccountID)
		assert.Equal(t, int32(10), m.Trade.SellAccountID)
	}
}

// TestPartialFillRests is scenario S2: a larger Bid only partially fills
// against a smaller Ask and the remainder stays on the book.
func TestPartialFillRests(t *testing.T) {
	s, router := newTestShard(t)

	reply := shard.NewReply[proto.PlaceOrderResult]()
	s.Primary() <- proto.MatcherPlaceOrder{
		SymbolID: testSym, AccountID: 1, Kind: domain.KindLimit, Side: domain.SideBid,
		Price: decimal.RequireFromString("50000"), Quantity: decimal.RequireFromString("0.2"), Reply: reply,
	}
	await(t, reply)

	reply = shard.NewReply[proto.PlaceOrderResult]()
	s.Primary() <- proto.MatcherPlaceOrder{
		SymbolID: testSym, AccountID: 2, Kind: domain.KindLimit, Side: domain.SideAsk,
		Price: decimal.RequireFromString("50000"), Quantity: decimal.RequireFromString("0.05"), Reply: reply,
	}
	await(t, reply)

	require.Len(t, router.settled, 2)

	bookReply := shard.NewReply[proto.GetOrderBookResult]()
	s.Primary() <- proto.GetOrderBookRequest{SymbolID: testSym, Levels: 10, Reply: bookReply}
	book := await(t, bookReply)
	require.Len(t, book.Bids, 1)
	assert.True(t, book.Bids[0].Quantity.Equal(decimal.RequireFromString("0.15")))
	assert.Empty(t, book.Asks)
}

// TestPriceImprovementForTaker is scenario S3: a Bid taker sweeps two ask
// levels, each trade executing at its own maker price.
func TestPriceImprovementForTaker(t *testing.T) {
	s, router := newTestShard(t)
	place(t, s, domain.SideAsk, domain.KindLimit, "50000", "0.1")
	place(t, s, domain.SideAsk, domain.KindLimit, "51000", "0.2")

	res := place(t, s, domain.SideBid, domain.KindLimit, "51000", "0.2")
	assert.Equal(t, 0, res.Code)

	require.Len(t, router.settled, 4) // 2 trades * 2 accounts each
	var prices []string
	seen := map[string]bool{}
	for _, m := range router.settled {
		key := m.Trade.Price.String() + m.Trade.Quantity.String()
		if seen[key] {
			continue
		}
		seen[key] = true
		prices = append(prices, m.Trade.Price.String())
	}
	assert.ElementsMatch(t, []string{"50000", "51000"}, prices)
}

// TestFIFOAtOnePrice is scenario S6: of two equal-priced asks, the
// earlier-arrived one fills first.
func TestFIFOAtOnePrice(t *testing.T) {
	s, router := newTestShard(t)

	reply := shard.NewReply[proto.PlaceOrderResult]()
	s.Primary() <- proto.MatcherPlaceOrder{
		SymbolID: testSym, AccountID: 100, Kind: domain.KindLimit, Side: domain.SideAsk,
		Price: decimal.RequireFromString("50000"), Quantity: decimal.RequireFromString("0.1"), Reply: reply,
	}
	await(t, reply)

	reply = shard.NewReply[proto.PlaceOrderResult]()
	s.Primary() <- proto.MatcherPlaceOrder{
		SymbolID: testSym, AccountID: 200, Kind: domain.KindLimit, Side: domain.SideAsk,
		Price: decimal.RequireFromString("50000"), Quantity: decimal.RequireFromString("0.1"), Reply: reply,
	}
	await(t, reply)

	place(t, s, domain.SideBid, domain.KindLimit, "50000", "0.1")

	require.Len(t, router.settled, 2)
	for _, m := range router.settled {
		assert.Equal(t, int32(100), m.Trade.SellAccountID)
	}
}

// TestCancelRemovesFromBookAndRefunds is scenario S4's matcher half: cancel
// removes the resting order and emits an unfreeze for its full remaining
// quantity.
func TestCancelRemovesFromBookAndRefunds(t *testing.T) {
	s, router := newTestShard(t)

	placeReply := shard.NewReply[proto.PlaceOrderResult]()
	s.Primary() <- proto.MatcherPlaceOrder{
		SymbolID: testSym, AccountID: 1, Kind: domain.KindLimit, Side: domain.SideBid,
		Price: decimal.RequireFromString("50000"), Quantity: decimal.RequireFromString("1"), Reply: placeReply,
	}
	placed := await(t, placeReply)

	cancelReply := shard.NewReply[proto.CancelOrderResult]()
	s.Primary() <- proto.MatcherCancelOrder{SymbolID: testSym, AccountID: 1, OrderID: placed.OrderID, Reply: cancelReply}
	res := await(t, cancelReply)
	assert.Equal(t, 0, res.Code)
	assert.True(t, res.CancelledQuantity.Equal(decimal.RequireFromString("1")))

	require.Len(t, router.unfrozen, 1)
	assert.True(t, router.unfrozen[0].Remaining.Equal(decimal.RequireFromString("1")))

	bookReply := shard.NewReply[proto.GetOrderBookResult]()
	s.Primary() <- proto.GetOrderBookRequest{SymbolID: testSym, Levels: 10, Reply: bookReply}
	book := await(t, bookReply)
	assert.Empty(t, book.Bids)
}

func TestCancelForbiddenForNonOwner(t *testing.T) {
	s, _ := newTestShard(t)

	placeReply := shard.NewReply[proto.PlaceOrderResult]()
	s.Primary() <- proto.MatcherPlaceOrder{
		SymbolID: testSym, AccountID: 1, Kind: domain.KindLimit, Side: domain.SideBid,
		Price: decimal.RequireFromString("50000"), Quantity: decimal.RequireFromString("1"), Reply: placeReply,
	}
	placed := await(t, placeReply)

	cancelReply := shard.NewReply[proto.CancelOrderResult]()
	s.Primary() <- proto.MatcherCancelOrder{SymbolID: testSym, AccountID: 999, OrderID: placed.OrderID, Reply: cancelReply}
	res := await(t, cancelReply)
	assert.Equal(t, 403, res.Code)
}

func TestCancelNotFound(t *testing.T) {
	s, _ := newTestShard(t)
	cancelReply := shard.NewReply[proto.CancelOrderResult]()
	s.Primary() <- proto.MatcherCancelOrder{SymbolID: testSym, AccountID: 1, OrderID: 123456, Reply: cancelReply}
	res := await(t, cancelReply)
	assert.Equal(t, 404, res.Code)
}

// TestMarketAskResidualDiscardedAndUnfrozen covers the market-order edge
// case of: a market Ask with no eligible bids never rests, and its
// full (never-filled) quantity is released back to the sequencer.
func TestMarketAskResidualDiscardedAndUnfrozen(t *testing.T) {
	s, router := newTestShard(t)
	res := place(t, s, domain.SideAsk, domain.KindMarket, "", "1")
	assert.Equal(t, 0, res.Code)

	require.Len(t, router.unfrozen, 1)
	assert.True(t, router.unfrozen[0].Remaining.Equal(decimal.RequireFromString("1")))

	bookReply := shard.NewReply[proto.GetOrderBookResult]()
	s.Primary() <- proto.GetOrderBookRequest{SymbolID: testSym, Levels: 10, Reply: bookReply}
	book := await(t, bookReply)
	assert.Empty(t, book.Asks)
}
