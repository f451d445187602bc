package sequencer

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

// recordingRouter captures everything forwarded to the matcher instead of
// actually matching, so sequencer tests stay scoped to
type recordingRouter struct {
	placed []proto.MatcherPlaceOrder
	cancelled []proto.MatcherCancelOrder
}

func (r *recordingRouter) PlaceOrder(symbolID int32, req proto.MatcherPlaceOrder) {
	r.placed = append(r.placed, req)
}

func (r *recordingRouter) CancelOrder(symbolID int32, req proto.MatcherCancelOrder) {
	r.cancelled = append(r.cancelled, req)
}

func newTestShard(t *testing.T) (*Shard, *recordingRouter) {
	t.Helper()
	s := NewShard(0, testRegistry(t), 16)
	router := &recordingRouter{}
	s.SetMatcherRouter(router)
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

func TestIncreaseThenGetAccount(t *testing.T) {
	s, _ := newTestShard(t)

	incReply := shard.NewReply[proto.BalanceOpResult]()
	s.Primary() <- proto.IncreaseRequest{AccountID: 1, CurrencyID: testUSDT, Amount: "10000", Reply: incReply}
	incRes := await(t, incReply)
	require.Equal(t, 0, incRes.Code)
	assert.True(t, incRes.Balance.Total.Equal(decimal.RequireFromString("10000")))

	getReply := shard.NewReply[proto.GetAccountResult]()
	s.Primary() <- proto.GetAccountRequest{AccountID: 1, Reply: getReply}
	getRes := await(t, getReply)
	require.Equal(t, 0, getRes.Code)
	require.Len(t, getRes.Balances, 1)
	assert.True(t, getRes.Balances[0].Available.Equal(decimal.RequireFromString("10000")))
}

func TestGetAccountUnknownIsNotFound(t *testing.T) {
	s, _ := newTestShard(t)
	reply := shard.NewReply[proto.GetAccountResult]()
	s.Primary() <- proto.GetAccountRequest{AccountID: 999, Reply: reply}
	res := await(t, reply)
	assert.Equal(t, 404, res.Code)
}

func TestDecreaseInsufficientBalance(t *testing.T) {
	s, _ := newTestShard(t)
	reply := shard.NewReply[proto.BalanceOpResult]()
	s.Primary() <- proto.DecreaseRequest{AccountID: 1, CurrencyID: testUSDT, Amount: "5", Reply: reply}
	res := await(t, reply)
	assert.Equal(t, 400, res.Code)
}

// TestPlaceOrderFreezesAndForwards covers: a Bid limit freezes
// price*quantity of quote and the request reaches the matcher unchanged.
func TestPlaceOrderFreezesAndForwards(t *testing.T) {
	s, router := newTestShard(t)

	incReply := shard.NewReply[proto.BalanceOpResult]()
	s.Primary() <- proto.IncreaseRequest{AccountID: 1, CurrencyID: testUSDT, Amount: "10000", Reply: incReply}
	await(t, incReply)

	orderReply := shard.NewReply[proto.PlaceOrderResult]()
	s.Primary() <- proto.PlaceOrderRequest{
		SymbolID: testSym, AccountID: 1,
		Kind: domain.KindLimit, Side: domain.SideBid,
		Price: "50000", Quantity: "0.1",
		Reply: orderReply,
	}

	// The sequencer never replies for a forwarded order; only the
	// recording router observes it.
	deadline := time.After(time.Second)
	for len(router.placed) == 0 {
		select {
		case <-deadline:
			t.Fatal("order was never forwarded to the matcher")
		default:
		}
	}

	require.Len(t, router.placed, 1)
	assert.True(t, router.placed[0].Price.Equal(decimal.RequireFromString("50000")))
	assert.True(t, router.placed[0].Quantity.Equal(decimal.RequireFromString("0.1")))

	getReply := shard.NewReply[proto.GetAccountResult]()
	s.Primary() <- proto.GetAccountRequest{AccountID: 1, CurrencyID: &[]int32{testUSDT}[0], Reply: getReply}
	res := await(t, getReply)
	require.Len(t, res.Balances, 1)
	assert.True(t, res.Balances[0].Frozen.Equal(decimal.RequireFromString("5000")))
	assert.True(t, res.Balances[0].Available.Equal(decimal.RequireFromString("5000")))
}

func TestPlaceOrderInsufficientCollateralNeverForwards(t *testing.T) {
	s, router := newTestShard(t)
	orderReply := shard.NewReply[proto.PlaceOrderResult]()
	s.Primary() <- proto.PlaceOrderRequest{
		SymbolID: testSym, AccountID: 1,
		Kind: domain.KindLimit, Side: domain.SideBid,
		Price: "50000", Quantity: "1",
		Reply: orderReply,
	}
	res := await(t, orderReply)
	assert.Equal(t, 400, res.Code)
	assert.Empty(t, router.placed)
}

func TestPlaceOrderRejectsMarketBid(t *testing.T) {
	s, router := newTestShard(t)
	orderReply := shard.NewReply[proto.PlaceOrderResult]()
	s.Primary() <- proto.PlaceOrderRequest{
		SymbolID: testSym, AccountID: 1,
		Kind: domain.KindMarket, Side: domain.SideBid,
		Quantity: "1",
		Reply: orderReply,
	}
	res := await(t, orderReply)
	assert.Equal(t, 400, res.Code)
	assert.Empty(t, router.placed)
}

// TestExecuteTradeSettlementBuyerBranch covers the buyer half of
func TestExecuteTradeSettlementBuyerBranch(t *testing.T) {
	s, _ := newTestShard(t)

	incReply := shard.NewReply[proto.BalanceOpResult]()
	s.Primary() <- proto.IncreaseRequest{AccountID: 1, CurrencyID: testUSDT, Amount: "10000", Reply: incReply}
	await(t, incReply)

	orderReply := shard.NewReply[proto.PlaceOrderResult]()
	s.Primary() <- proto.PlaceOrderRequest{
		SymbolID: testSym, AccountID: 1,
		Kind: domain.KindLimit, Side: domain.SideBid,
		Price: "50000", Quantity: "0.1",
		Reply: orderReply,
	}
	// drain asynchronously — we only care about the settlement effect here
	go func() { <-orderReply }()
	time.Sleep(10 * time.Millisecond)

	trade := domain.Trade{
		SymbolID: testSym, BuyAccountID: 1, SellAccountID: 2,
		Price: decimal.RequireFromString("50000"), Quantity: decimal.RequireFromString("0.1"),
	}
	s.Settlement() <- proto.ExecuteTradeSettlement{
		Trade: trade, BaseCurrency: testBTC, QuoteCurrency: testUSDT, Side: domain.SideBid,
	}

	getReply := shard.NewReply[proto.GetAccountResult]()
	// Poll until the settlement message has been applied. It arrives on
	// the settlement mailbox, which is not ordered against the primary one.
	require.Eventually(t, func() bool {
		s.Primary() <- proto.GetAccountRequest{AccountID: 1, Reply: getReply}
		res := await(t, getReply)
		for _, b := range res.Balances {
			if b.CurrencyID == testBTC && b.Total.Equal(decimal.RequireFromString("0.1")) {
				return true
			}
		}
		getReply = shard.NewReply[proto.GetAccountResult]()
		return false
	}, time.Second, 5*time.Millisecond)
}

func TestUnfreezeOrderClampsOnOverdraw(t *testing.T) {
	s, _ := newTestShard(t)
	incReply := shard.NewReply[proto.BalanceOpResult]()
	s.Primary() <- proto.IncreaseRequest{AccountID: 1, CurrencyID: testUSDT, Amount: "100", Reply: incReply}
	await(t, incReply)

	orderReply := shard.NewReply[proto.PlaceOrderResult]()
	s.Primary() <- proto.PlaceOrderRequest{
		SymbolID: testSym, AccountID: 1,
		Kind: domain.KindLimit, Side: domain.SideBid,
		Price: "10", Quantity: "10",
		Reply: orderReply,
	}
	go func() { <-orderReply }()
	time.Sleep(10 * time.Millisecond)

	// Ask for more unfreeze than is actually frozen (100); this can only
	// happen if a settlement already reduced it, but the shard must clamp
	// rather than go negative regardless of cause.
	s.Settlement() <- proto.UnfreezeOrderSettlement{
		AccountID: 1, Side: domain.SideBid,
		Price: decimal.RequireFromString("10"), Remaining: decimal.RequireFromString("100"),
		BaseCurrency: testBTC, QuoteCurrency: testUSDT,
	}

	getReply := shard.NewReply[proto.GetAccountResult]()
	require.Eventually(t, func() bool {
		s.Primary() <- proto.GetAccountRequest{AccountID: 1, Reply: getReply}
		res := await(t, getReply)
		for _, b := range res.Balances {
			if b.CurrencyID == testUSDT {
				ok := b.Frozen.Equal(decimal.Zero) && b.Available.Equal(decimal.RequireFromString("100"))
				if !ok {
					getReply = shard.NewReply[proto.GetAccountResult]()
				}
				return ok
			}
		}
		getReply = shard.NewReply[proto.GetAccountResult]()
		return false
	}, time.Second, 5*time.Millisecond)
}
