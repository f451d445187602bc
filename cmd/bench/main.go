// Command bench fires synthetic place-order traffic directly through a
// Dispatcher and reports throughput. It has no bearing on the core's
// correctness surface: it never asserts anything, only measures.
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hft-exchange/lightning/internal/config"
	"github.com/hft-exchange/lightning/internal/domain"
	"github.com/hft-exchange/lightning/internal/proto"
	"github.com/hft-exchange/lightning/internal/router"
	"github.com/hft-exchange/lightning/internal/shard"
)

func main() {
	shardCount := flag.Int("shards", 4, "number of sequencer/matcher shards")
	accounts := flag.Int("accounts", 200, "number of distinct accounts placing orders")
	workers := flag.Int("workers", 16, "number of concurrent order-placing goroutines")
	duration := flag.Duration("duration", 10*time.Second, "how long to fire orders")
	flag.Parse()

	registry, err := config.New(
		[]config.Currency{{ID: 1, Name: "BTC"}, {ID: 2, Name: "USDT"}},
		[]config.Symbol{{ID: 1, Name: "BTC-USDT", Base: 1, Quote: 2}},
	)
	if err != nil {
		panic(err)
	}

	dispatcher, err := router.New(*shardCount, registry, 4096)
	if err != nil {
		panic(err)
	}
	dispatcher.Start()
	defer dispatcher.Stop()

	var placed, filled int64
	dispatcher.SetTradeObserver(func(domain.Trade) {
		atomic.AddInt64(&filled, 1)
	})

	fmt.Printf("seeding %d accounts...\n", *accounts)
	for i := 1; i <= *accounts; i++ {
		credit(dispatcher, int32(i), 1, "10")
		credit(dispatcher, int32(i), 2, "1000000")
	}

	fmt.Printf("firing orders from %d workers for %s...\n", *workers, *duration)
	stop := make(chan struct{})
	time.AfterFunc(*duration, func() { close(stop) })

	var wg sync.WaitGroup
	start := time.Now()
	for w := 0; w < *workers; w++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rnd := rand.New(rand.NewSource(seed))
			for {
				select {
				case <-stop:
					return
				default:
					placeRandomOrder(dispatcher, rnd, *accounts)
					atomic.AddInt64(&placed, 1)
				}
			}
		}(int64(w))
	}
	wg.Wait()
	elapsed := time.Since(start)

	fmt.Printf("placed=%d filled=%d elapsed=%s orders/sec=%.0f fills/sec=%.0f\n",
		placed, filled, elapsed,
		float64(placed)/elapsed.Seconds(), float64(filled)/elapsed.Seconds())
}

func credit(d *router.Dispatcher, accountID, currencyID int32, amount string) {
	req := proto.IncreaseRequest{
		RequestID: "bench",
		AccountID: accountID,
		CurrencyID: currencyID,
		Amount: amount,
		Reply: shard.NewReply[proto.BalanceOpResult](),
	}
	d.RouteIncrease(req)
	<-req.Reply
}

func placeRandomOrder(d *router.Dispatcher, rnd *rand.Rand, accounts int) {
	accountID := int32(rnd.Intn(accounts) + 1)
	side := domain.SideBid
	if rnd.Intn(2) == 1 {
		side = domain.SideAsk
	}
	price := decimal.NewFromFloat(99 + rnd.Float64()*2).Round(2)
	quantity := decimal.NewFromFloat(0.01 + rnd.Float64()*0.1).Round(6)

	req := proto.PlaceOrderRequest{
		RequestID: "bench",
		SymbolID: 1,
		AccountID: accountID,
		Kind: domain.KindLimit,
		Side: side,
		Price: price.String(),
		Quantity: quantity.String(),
		Reply: shard.NewReply[proto.PlaceOrderResult](),
	}
	d.RoutePlaceOrder(req)
	<-req.Reply
}
