package router

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
	btc int32 = 1
	usdt int32 = 2
	sym int32 = 1
)

func newTestDispatcher(t *testing.T) *Dispatcher {
	t.Helper()
	reg, err := config.New(
		[]config.Currency{{ID: btc, Name: "BTC"}, {ID: usdt, Name: "USDT"}},
		[]config.Symbol{{ID: sym, Name: "BTC/USDT", Base: btc, Quote: usdt}},
	)
	require.NoError(t, err)

	d, err := New(4, reg, 64)
	require.NoError(t, err)
	d.Start()
	t.Cleanup(func() {
		d.Stop()
		_ = d.Wait()
	})
	return d
}

func await[T any](t *testing.T, reply shard.Reply[T]) T {
	t.Helper()
	select {
	case v := <-reply:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for reply")
		var zero T
		return zero
	}
}

func increase(t *testing.T, d *Dispatcher, account, currency int32, amount string) {
	t.Helper()
	reply := shard.NewReply[proto.BalanceOpResult]()
	d.RouteIncrease(proto.IncreaseRequest{AccountID: account, CurrencyID: currency, Amount: amount, Reply: reply})
	res := await(t, reply)
	require.Equal(t, 0, res.Code, res.Message)
}

func getAccount(t *testing.T, d *Dispatcher, account int32) proto.GetAccountResult {
	t.Helper()
	reply := shard.NewReply[proto.GetAccountResult]()
	d.RouteGetAccount(proto.GetAccountRequest{AccountID: account, Reply: reply})
	return await(t, reply)
}

func balanceOf(res proto.GetAccountResult, currency int32) (proto.BalanceView, bool) {
	for _, b := range res.Balances {
		if b.CurrencyID == currency {
			return b, true
		}
	}
	return proto.BalanceView{}, false
}

// TestEndToEndMatchAtMakerPrice is scenario S1, driven through
// the full edge -> sequencer -> matcher -> sequencer path with account A
// and B hashed to different sequencer shards.
func TestEndToEndMatchAtMakerPrice(t *testing.T) {
	d := newTestDispatcher(t)
	const accountA, accountB int32 = 1, 2
	require.NotEqual(t, SequencerIndex(accountA, d.n), SequencerIndex(accountB, d.n))

	increase(t, d, accountA, usdt, "10000")
	increase(t, d, accountB, btc, "1")

	bidReply := shard.NewReply[proto.PlaceOrderResult]()
	d.RoutePlaceOrder(proto.PlaceOrderRequest{
		SymbolID: sym, AccountID: accountA, Kind: domain.KindLimit, Side: domain.SideBid,
		Price: "50000", Quantity: "0.1", Reply: bidReply,
	})

	askReply := shard.NewReply[proto.PlaceOrderResult]()
	d.RoutePlaceOrder(proto.PlaceOrderRequest{
		SymbolID: sym, AccountID: accountB, Kind: domain.KindLimit, Side: domain.SideAsk,
		Price: "50000", Quantity: "0.1", Reply: askReply,
	})

	bidRes := await(t, bidReply)
	askRes := await(t, askReply)
	assert.Equal(t, 0, bidRes.Code)
	assert.Equal(t, 0, askRes.Code)

	require.Eventually(t, func() bool {
		a := getAccount(t, d, accountA)
		aBTC, ok1 := balanceOf(a, btc)
		aUSDT, ok2 := balanceOf(a, usdt)
		if !ok1 || !ok2 {
			return false
		}
		return aBTC.Total.Equal(decimal.RequireFromString("0.1")) &&
			aUSDT.Total.Equal(decimal.RequireFromString("5000")) &&
			aUSDT.Frozen.IsZero()
	}, 2*time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		b := getAccount(t, d, accountB)
		bBTC, ok1 := balanceOf(b, btc)
		bUSDT, ok2 := balanceOf(b, usdt)
		if !ok1 || !ok2 {
			return false
		}
		return bBTC.Total.Equal(decimal.RequireFromString("0.9")) &&
			bUSDT.Total.Equal(decimal.RequireFromString("5000"))
	}, 2*time.Second, 10*time.Millisecond)
}

// TestEndToEndCancelRefund is scenario S4.
func TestEndToEndCancelRefund(t *testing.T) {
	d := newTestDispatcher(t)
	const account int32 = 5

	increase(t, d, account, usdt, "60000")

	placeReply := shard.NewReply[proto.PlaceOrderResult]()
	d.RoutePlaceOrder(proto.PlaceOrderRequest{
		SymbolID: sym, AccountID: account, Kind: domain.KindLimit, Side: domain.SideBid,
		Price: "50000", Quantity: "1.0", Reply: placeReply,
	})
	placed := await(t, placeReply)
	require.Equal(t, 0, placed.Code)

	require.Eventually(t, func() bool {
		a := getAccount(t, d, account)
		bal, ok := balanceOf(a, usdt)
		return ok && bal.Frozen.Equal(decimal.RequireFromString("50000"))
	}, 2*time.Second, 10*time.Millisecond)

	cancelReply := shard.NewReply[proto.CancelOrderResult]()
	d.RouteCancelOrder(proto.CancelOrderRequest{
		SymbolID: sym, AccountID: account, OrderID: placed.OrderID, Reply: cancelReply,
	})
	cancelled := await(t, cancelReply)
	assert.Equal(t, 0, cancelled.Code)

	require.Eventually(t, func() bool {
		a := getAccount(t, d, account)
		bal, ok := balanceOf(a, usdt)
		return ok && bal.Frozen.IsZero() && bal.Available.Equal(decimal.RequireFromString("60000"))
	}, 2*time.Second, 10*time.Millisecond)
}

// TestEndToEndInsufficientBalance is scenario S5.
func TestEndToEndInsufficientBalance(t *testing.T) {
	d := newTestDispatcher(t)
	const account int32 = 7
	increase(t, d, account, btc, "0.1")

	placeReply := shard.NewReply[proto.PlaceOrderResult]()
	d.RoutePlaceOrder(proto.PlaceOrderRequest{
		SymbolID: sym, AccountID: account, Kind: domain.KindLimit, Side: domain.SideAsk,
		Price: "50000", Quantity: "0.2", Reply: placeReply,
	})
	res := await(t, placeReply)
	assert.Equal(t, 400, res.Code)

	a := getAccount(t, d, account)
	bal, ok := balanceOf(a, btc)
	require.True(t, ok)
	assert.True(t, bal.Total.Equal(decimal.RequireFromString("0.1")))
	assert.True(t, bal.Frozen.IsZero())
}
