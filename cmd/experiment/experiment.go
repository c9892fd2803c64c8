package main

import (
	"context"
	"fmt"

	"github.com/Yusufzhafir/escrow-orderbook/internal/ledger"
	"github.com/Yusufzhafir/escrow-orderbook/internal/usecase/order"
	"github.com/Yusufzhafir/escrow-orderbook/pkg/logger"
	"github.com/Yusufzhafir/escrow-orderbook/pkg/model"
)

const (
	owner  model.UserId = 1
	maker  model.UserId = 2
	taker  model.UserId = 3
	seller model.UserId = 4
)

// experiment plays a short session against the in-memory ledger and prints
// the book after every step.
func main() {
	ctx := context.Background()
	log, err := logger.New(logger.DebugLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	mem := ledger.NewMemory()
	uc := order.NewOrderUseCase(order.OrderUseCaseOpts{Ledger: mem, Logger: log})

	btc := model.Asset{Symbol: "BTC", Decimals: 2}
	usd := model.Asset{Symbol: "USD", Decimals: 2}
	key, err := uc.Initialize(ctx, owner, btc, usd)
	if err != nil {
		panic(err)
	}

	must(mem.Deposit(ctx, maker, "USD", 1_000_000))
	must(mem.Deposit(ctx, taker, "BTC", 1_000))
	must(mem.Deposit(ctx, seller, "BTC", 1_000))

	steps := []struct {
		user  model.UserId
		side  model.Side
		price model.Price
		size  model.Quantity
	}{
		{maker, model.BID, 10_000, 150},
		{maker, model.BID, 9_950, 200},
		{seller, model.ASK, 10_100, 100},
		{taker, model.ASK, 9_950, 250},
		{taker, model.ASK, 9_900, 400},
		{maker, model.BID, 10_200, 300},
	}
	for i, s := range steps {
		var res any
		if s.side == model.BID {
			res, err = uc.PlaceBuyOrder(ctx, s.user, key, s.price, s.size)
		} else {
			res, err = uc.PlaceSellOrder(ctx, s.user, key, s.price, s.size)
		}
		fmt.Printf("step %d: %s %d @ %d by user %d\n  result: %+v err: %v\n", i+1, s.side, s.size, s.price, s.user, res, err)
		printBook(ctx, uc, key)
	}

	for _, u := range []model.UserId{maker, taker, seller} {
		b, _ := mem.Balance(ctx, u, "BTC")
		q, _ := mem.Balance(ctx, u, "USD")
		fmt.Printf("user %d: BTC %d USD %d\n", u, b, q)
	}
}

func printBook(ctx context.Context, uc order.OrderUseCase, key model.BookKey) {
	depth, _ := uc.BookDepth(ctx, key, 5)
	spread, _ := uc.Spread(ctx, key)
	esc, _ := uc.Escrow(ctx, key)
	fmt.Printf("  bids %v %v | asks %v %v | spread %d | escrow %+v\n",
		depth.BidPrices, depth.BidSizes, depth.AskPrices, depth.AskSizes, spread, *esc)
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}
