package engine

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"
	"time"

	orderbookModel "github.com/Yusufzhafir/escrow-orderbook/internal/engine/model"
	"github.com/Yusufzhafir/escrow-orderbook/internal/ledger"
	"github.com/Yusufzhafir/escrow-orderbook/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	alice model.UserId = 1
	bob   model.UserId = 2
	carol model.UserId = 3
)

var (
	btc = model.Asset{Symbol: "BTC", Decimals: 0}
	usd = model.Asset{Symbol: "USD", Decimals: 0}
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type failingSink struct{ calls int }

func (s *failingSink) PublishTrades(context.Context, model.BookKey, []model.Trade) error {
	s.calls++
	return errors.New("sink down")
}

type fixture struct {
	book   *OrderBook
	ledger *ledger.Memory
	log    *TradeLog
	now    time.Time
}

func newFixture(t *testing.T, base, quote model.Asset) *fixture {
	t.Helper()
	f := &fixture{
		ledger: ledger.NewMemory(),
		log:    NewTradeLog(),
		now:    time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	book, err := NewOrderBook(99, base, quote, Options{
		Ledger: f.ledger,
		Clock:  fixedClock{t: f.now},
		Sink:   f.log,
	})
	require.NoError(t, err)
	f.book = book
	return f
}

func (f *fixture) fund(t *testing.T, user model.UserId, asset string, amount model.Quantity) {
	t.Helper()
	require.NoError(t, f.ledger.Deposit(context.Background(), user, asset, amount))
}

func (f *fixture) balance(t *testing.T, user model.UserId, asset string) model.Quantity {
	t.Helper()
	b, err := f.ledger.Balance(context.Background(), user, asset)
	require.NoError(t, err)
	return b
}

// checkInvariants asserts the structural properties that must hold between
// operations.
func checkInvariants(t *testing.T, ob *OrderBook) {
	t.Helper()
	ob.mu.RLock()
	defer ob.mu.RUnlock()

	var owedQuote, owedBase model.Quantity
	resting := 0
	for _, ladder := range []*Ladder{ob.bids, ob.asks} {
		var prev *orderbookModel.PriceLevel
		ladder.Ascend(func(level *orderbookModel.PriceLevel) bool {
			if prev != nil {
				if ladder.Side() == model.BID {
					assert.Greater(t, prev.Price, level.Price, "bids must strictly descend")
				} else {
					assert.Less(t, prev.Price, level.Price, "asks must strictly ascend")
				}
			}
			prev = level

			var sum model.Quantity
			level.Each(func(o *model.Order) bool {
				assert.False(t, o.IsFilled(), "filled order %d still queued", o.GetId())
				assert.Equal(t, level.Price, o.GetPrice())
				assert.Equal(t, ladder.Side(), o.GetSide())
				sum += o.GetRemainingQuantity()
				if o.GetSide() == model.BID {
					q, err := QuoteAmount(o.GetPrice(), o.GetRemainingQuantity(), ob.scale)
					assert.NoError(t, err)
					owedQuote += q
				} else {
					owedBase += o.GetRemainingQuantity()
				}
				resting++
				return true
			})
			assert.Equal(t, sum, level.TotalVolume, "level %d total", level.Price)
			assert.False(t, level.IsEmpty(), "empty level %d left in ladder", level.Price)
			return true
		})
	}

	bid, ask := bestPrice(ob.bids), bestPrice(ob.asks)
	if bid != 0 && ask != 0 {
		assert.Less(t, bid, ask, "book is crossed")
	}
	assert.Equal(t, owedBase, ob.baseEscrow.value())
	assert.GreaterOrEqual(t, ob.quoteEscrow.value(), owedQuote)
	assert.Equal(t, resting, ob.orderCount)
}

func TestEmptyBook(t *testing.T) {
	f := newFixture(t, btc, usd)

	assert.Equal(t, model.Price(0), f.book.BestBid())
	assert.Equal(t, model.Price(0), f.book.BestAsk())
	assert.Equal(t, model.Price(0), f.book.Spread())

	depth := f.book.Depth(5)
	assert.Empty(t, depth.BidPrices)
	assert.Empty(t, depth.AskPrices)
	checkInvariants(t, f.book)
}

func TestBuyRestsOnEmptyBook(t *testing.T) {
	f := newFixture(t, btc, usd)
	f.fund(t, alice, "USD", 1500)

	res, err := f.book.PlaceBuyOrder(context.Background(), alice, 100, 10)
	require.NoError(t, err)

	assert.Equal(t, model.OrderId(1), res.OrderID)
	assert.Empty(t, res.Trades)
	assert.True(t, res.Resting)
	assert.Equal(t, model.Quantity(1000), res.Committed)

	depth := f.book.Depth(10)
	assert.Equal(t, []model.Price{100}, depth.BidPrices)
	assert.Equal(t, []model.Quantity{10}, depth.BidSizes)

	base, quote := f.book.Escrow()
	assert.Equal(t, model.Quantity(0), base)
	assert.Equal(t, model.Quantity(1000), quote)
	assert.Equal(t, model.Quantity(500), f.balance(t, alice, "USD"))
	checkInvariants(t, f.book)
}

func TestPartialFillLeavesMakerResting(t *testing.T) {
	f := newFixture(t, btc, usd)
	f.fund(t, alice, "BTC", 10)
	f.fund(t, bob, "USD", 600)
	ctx := context.Background()

	sell, err := f.book.PlaceSellOrder(ctx, alice, 100, 10)
	require.NoError(t, err)

	buy, err := f.book.PlaceBuyOrder(ctx, bob, 100, 6)
	require.NoError(t, err)

	require.Len(t, buy.Trades, 1)
	tr := buy.Trades[0]
	assert.Equal(t, sell.OrderID, tr.MakerID)
	assert.Equal(t, buy.OrderID, tr.TakerID)
	assert.Equal(t, model.Price(100), tr.Price)
	assert.Equal(t, model.Quantity(6), tr.Quantity)
	assert.Equal(t, model.Quantity(600), tr.QuoteAmount)
	assert.Equal(t, bob, tr.Buyer)
	assert.Equal(t, alice, tr.Seller)
	assert.Equal(t, model.BID, tr.Side)
	assert.Equal(t, f.now, tr.Timestamp)

	assert.False(t, buy.Resting)
	assert.Equal(t, model.Quantity(6), buy.Filled)

	maker := f.book.asks.Best().Head()
	assert.Equal(t, model.Quantity(6), maker.GetFilledQuantity())
	assert.Equal(t, model.Quantity(4), f.book.asks.Best().TotalVolume)
	assert.Equal(t, 0, f.book.bids.Len())

	assert.Equal(t, model.Quantity(6), f.balance(t, bob, "BTC"))
	assert.Equal(t, model.Quantity(600), f.balance(t, alice, "USD"))
	checkInvariants(t, f.book)
}

func TestFullFillPrunesLevel(t *testing.T) {
	f := newFixture(t, btc, usd)
	f.fund(t, alice, "BTC", 5)
	f.fund(t, bob, "USD", 500)
	ctx := context.Background()

	_, err := f.book.PlaceSellOrder(ctx, alice, 100, 5)
	require.NoError(t, err)
	assert.Equal(t, model.Price(100), f.book.BestAsk())

	res, err := f.book.PlaceBuyOrder(ctx, bob, 100, 5)
	require.NoError(t, err)
	require.Len(t, res.Trades, 1)

	assert.Equal(t, model.Price(0), f.book.BestAsk())
	assert.Equal(t, 0, f.book.asks.Len())
	assert.Equal(t, 0, f.book.OrderSize())
	base, quote := f.book.Escrow()
	assert.Zero(t, base)
	assert.Zero(t, quote)
	checkInvariants(t, f.book)
}

func TestBuyWalksSeveralLevels(t *testing.T) {
	f := newFixture(t, btc, usd)
	f.fund(t, alice, "BTC", 3)
	f.fund(t, carol, "BTC", 10)
	f.fund(t, bob, "USD", 800)
	ctx := context.Background()

	first, err := f.book.PlaceSellOrder(ctx, alice, 98, 3)
	require.NoError(t, err)
	second, err := f.book.PlaceSellOrder(ctx, carol, 99, 10)
	require.NoError(t, err)

	res, err := f.book.PlaceBuyOrder(ctx, bob, 100, 8)
	require.NoError(t, err)

	require.Len(t, res.Trades, 2)
	assert.Equal(t, first.OrderID, res.Trades[0].MakerID)
	assert.Equal(t, model.Price(98), res.Trades[0].Price)
	assert.Equal(t, model.Quantity(3), res.Trades[0].Quantity)
	assert.Equal(t, second.OrderID, res.Trades[1].MakerID)
	assert.Equal(t, model.Price(99), res.Trades[1].Price)
	assert.Equal(t, model.Quantity(5), res.Trades[1].Quantity)
	assert.False(t, res.Resting)

	depth := f.book.Depth(10)
	assert.Equal(t, []model.Price{99}, depth.AskPrices)
	assert.Equal(t, []model.Quantity{5}, depth.AskSizes)

	// bob committed 800 and paid 3*98 + 5*99 = 789
	_, quote := f.book.Escrow()
	assert.Equal(t, model.Quantity(11), quote)
	assert.Equal(t, model.Quantity(294), f.balance(t, alice, "USD"))
	assert.Equal(t, model.Quantity(495), f.balance(t, carol, "USD"))
	assert.Equal(t, model.Quantity(8), f.balance(t, bob, "BTC"))

	assert.Equal(t, res.Trades, f.log.Trades(f.book.Key()))
	checkInvariants(t, f.book)
}

func TestSellExecutesAtBidPrice(t *testing.T) {
	f := newFixture(t, btc, usd)
	f.fund(t, alice, "USD", 1000)
	f.fund(t, bob, "BTC", 4)
	ctx := context.Background()

	_, err := f.book.PlaceBuyOrder(ctx, alice, 100, 10)
	require.NoError(t, err)

	res, err := f.book.PlaceSellOrder(ctx, bob, 90, 4)
	require.NoError(t, err)

	require.Len(t, res.Trades, 1)
	assert.Equal(t, model.Price(100), res.Trades[0].Price)
	assert.Equal(t, model.ASK, res.Trades[0].Side)
	assert.Equal(t, alice, res.Trades[0].Buyer)
	assert.Equal(t, bob, res.Trades[0].Seller)
	assert.Equal(t, model.Quantity(400), f.balance(t, bob, "USD"))
	assert.Equal(t, model.Quantity(4), f.balance(t, alice, "BTC"))
	assert.Equal(t, model.Quantity(6), f.book.bids.Best().TotalVolume)
	checkInvariants(t, f.book)
}

func TestTimePriorityWithinLevel(t *testing.T) {
	f := newFixture(t, btc, usd)
	f.fund(t, alice, "BTC", 5)
	f.fund(t, carol, "BTC", 5)
	f.fund(t, bob, "USD", 700)
	ctx := context.Background()

	older, err := f.book.PlaceSellOrder(ctx, alice, 100, 5)
	require.NoError(t, err)
	newer, err := f.book.PlaceSellOrder(ctx, carol, 100, 5)
	require.NoError(t, err)
	assert.Equal(t, 1, f.book.asks.Len())

	res, err := f.book.PlaceBuyOrder(ctx, bob, 100, 7)
	require.NoError(t, err)

	require.Len(t, res.Trades, 2)
	assert.Equal(t, older.OrderID, res.Trades[0].MakerID)
	assert.Equal(t, model.Quantity(5), res.Trades[0].Quantity)
	assert.Equal(t, newer.OrderID, res.Trades[1].MakerID)
	assert.Equal(t, model.Quantity(2), res.Trades[1].Quantity)

	head := f.book.asks.Best().Head()
	assert.Equal(t, newer.OrderID, head.GetId())
	assert.Equal(t, 1, f.book.asks.Best().OrderCount())
	checkInvariants(t, f.book)
}

func TestResidualRestsAfterPartialMatch(t *testing.T) {
	f := newFixture(t, btc, usd)
	f.fund(t, alice, "BTC", 2)
	f.fund(t, bob, "USD", 1000)
	ctx := context.Background()

	_, err := f.book.PlaceSellOrder(ctx, alice, 95, 2)
	require.NoError(t, err)
	res, err := f.book.PlaceBuyOrder(ctx, bob, 100, 10)
	require.NoError(t, err)

	assert.True(t, res.Resting)
	assert.Equal(t, model.Quantity(2), res.Filled)
	assert.Equal(t, model.Price(100), f.book.BestBid())
	assert.Equal(t, model.Price(0), f.book.BestAsk())
	assert.Equal(t, model.Quantity(8), f.book.bids.Best().TotalVolume)

	// 1000 committed, 190 paid, 800 owed to the resting 8, 10 of surplus
	_, quote := f.book.Escrow()
	assert.Equal(t, model.Quantity(810), quote)
	checkInvariants(t, f.book)
}

func TestLimitStopsWalk(t *testing.T) {
	f := newFixture(t, btc, usd)
	f.fund(t, alice, "BTC", 10)
	f.fund(t, bob, "USD", 1000)
	ctx := context.Background()

	_, err := f.book.PlaceSellOrder(ctx, alice, 101, 5)
	require.NoError(t, err)
	_, err = f.book.PlaceSellOrder(ctx, alice, 103, 5)
	require.NoError(t, err)

	res, err := f.book.PlaceBuyOrder(ctx, bob, 102, 8)
	require.NoError(t, err)

	require.Len(t, res.Trades, 1)
	assert.Equal(t, model.Price(101), res.Trades[0].Price)
	assert.Equal(t, model.Price(102), f.book.BestBid())
	assert.Equal(t, model.Price(103), f.book.BestAsk())
	assert.Equal(t, model.Price(1), f.book.Spread())
	checkInvariants(t, f.book)
}

func TestRejectedPlacementLeavesBookUntouched(t *testing.T) {
	f := newFixture(t, btc, usd)
	f.fund(t, alice, "BTC", 10)
	f.fund(t, bob, "USD", 50)
	ctx := context.Background()

	_, err := f.book.PlaceSellOrder(ctx, alice, 100, 10)
	require.NoError(t, err)

	cases := []struct {
		name  string
		price model.Price
		size  model.Quantity
		want  error
	}{
		{"zero price", 0, 1, ErrInvalidPrice},
		{"zero size", 100, 0, ErrInvalidSize},
		{"not enough quote", 100, 1, ledger.ErrInsufficientBalance},
		{"overflow", math.MaxUint64, 2, ErrAmountOverflow},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			before := f.book.Depth(10)
			_, err := f.book.PlaceBuyOrder(ctx, bob, tc.price, tc.size)
			assert.ErrorIs(t, err, tc.want)
			assert.Equal(t, before, f.book.Depth(10))
			assert.Equal(t, model.Quantity(50), f.balance(t, bob, "USD"))
			checkInvariants(t, f.book)
		})
	}

	// failed attempts do not consume ids
	f.fund(t, bob, "USD", 50)
	res, err := f.book.PlaceBuyOrder(ctx, bob, 100, 1)
	require.NoError(t, err)
	assert.Equal(t, model.OrderId(2), res.OrderID)
	assert.Zero(t, f.balance(t, alice, "BTC"))
}

func TestSellWithoutBaseFails(t *testing.T) {
	f := newFixture(t, btc, usd)
	_, err := f.book.PlaceSellOrder(context.Background(), alice, 100, 1)
	assert.ErrorIs(t, err, ledger.ErrInsufficientBalance)
	assert.Equal(t, 0, f.book.OrderSize())
}

func TestRoundingLossStaysInEscrow(t *testing.T) {
	cents := model.Asset{Symbol: "USDC", Decimals: 2}
	eth := model.Asset{Symbol: "ETH", Decimals: 2}
	f := newFixture(t, eth, cents)
	f.fund(t, alice, "USDC", 4)
	f.fund(t, bob, "ETH", 3)
	ctx := context.Background()

	res, err := f.book.PlaceBuyOrder(ctx, alice, 150, 3)
	require.NoError(t, err)
	assert.Equal(t, model.Quantity(4), res.Committed)

	for i := 0; i < 3; i++ {
		_, err := f.book.PlaceSellOrder(ctx, bob, 150, 1)
		require.NoError(t, err)
	}

	assert.Equal(t, model.Quantity(3), f.balance(t, bob, "USDC"))
	assert.Equal(t, model.Quantity(3), f.balance(t, alice, "ETH"))
	base, quote := f.book.Escrow()
	assert.Zero(t, base)
	assert.Equal(t, model.Quantity(1), quote)
	assert.Equal(t, 0, f.book.OrderSize())
	checkInvariants(t, f.book)
}

func TestSinkFailureDoesNotFailPlacement(t *testing.T) {
	sink := &failingSink{}
	mem := ledger.NewMemory()
	book, err := NewOrderBook(1, btc, usd, Options{Ledger: mem, Sink: sink})
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, mem.Deposit(ctx, alice, "BTC", 1))
	require.NoError(t, mem.Deposit(ctx, bob, "USD", 100))

	_, err = book.PlaceSellOrder(ctx, alice, 100, 1)
	require.NoError(t, err)
	assert.Zero(t, sink.calls, "no trades, no publish")

	res, err := book.PlaceBuyOrder(ctx, bob, 100, 1)
	require.NoError(t, err)
	assert.Len(t, res.Trades, 1)
	assert.Equal(t, 1, sink.calls)
}

func TestNewOrderBookRejectsPairs(t *testing.T) {
	mem := ledger.NewMemory()
	cases := []struct {
		name        string
		base, quote model.Asset
	}{
		{"mismatched decimals", model.Asset{Symbol: "BTC", Decimals: 8}, model.Asset{Symbol: "USD", Decimals: 2}},
		{"same asset", usd, usd},
		{"missing symbol", model.Asset{}, usd},
		{"scale overflow", model.Asset{Symbol: "A", Decimals: 20}, model.Asset{Symbol: "B", Decimals: 20}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewOrderBook(1, tc.base, tc.quote, Options{Ledger: mem})
			assert.ErrorIs(t, err, ErrUnsupportedPair)
		})
	}
}

func TestQueriesDoNotMutate(t *testing.T) {
	f := newFixture(t, btc, usd)
	f.fund(t, alice, "BTC", 10)
	f.fund(t, bob, "USD", 1000)
	ctx := context.Background()
	_, err := f.book.PlaceSellOrder(ctx, alice, 105, 4)
	require.NoError(t, err)
	_, err = f.book.PlaceBuyOrder(ctx, bob, 100, 3)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		assert.Equal(t, model.Price(100), f.book.BestBid())
		assert.Equal(t, model.Price(105), f.book.BestAsk())
		assert.Equal(t, model.Price(5), f.book.Spread())
		tob := f.book.GetTopOfBook()
		require.NotNil(t, tob.BestBid)
		require.NotNil(t, tob.BestAsk)
		assert.Equal(t, model.Quantity(3), tob.BestBid.Volume)
		assert.Equal(t, 1, tob.BestAsk.OrderCount)
		assert.Equal(t, model.Price(5), tob.Spread)
	}
	checkInvariants(t, f.book)
}

func TestDepthTruncates(t *testing.T) {
	f := newFixture(t, btc, usd)
	f.fund(t, alice, "USD", 10_000)
	ctx := context.Background()
	for _, p := range []model.Price{97, 99, 98, 99} {
		_, err := f.book.PlaceBuyOrder(ctx, alice, p, 2)
		require.NoError(t, err)
	}

	depth := f.book.Depth(2)
	assert.Equal(t, []model.Price{99, 98}, depth.BidPrices)
	assert.Equal(t, []model.Quantity{4, 2}, depth.BidSizes)
	assert.Empty(t, depth.AskPrices)

	all := f.book.Depth(10)
	assert.Equal(t, []model.Price{99, 98, 97}, all.BidPrices)

	none := f.book.Depth(0)
	assert.Empty(t, none.BidPrices)
	checkInvariants(t, f.book)
}

func TestRandomFlowKeepsInvariants(t *testing.T) {
	f := newFixture(t, btc, usd)
	users := []model.UserId{alice, bob, carol}
	for _, u := range users {
		f.fund(t, u, "BTC", 1_000_000)
		f.fund(t, u, "USD", 1_000_000_000)
	}
	ctx := context.Background()
	rng := rand.New(rand.NewSource(7))

	var lastID model.OrderId
	for i := 0; i < 2000; i++ {
		user := users[rng.Intn(len(users))]
		price := model.Price(90 + rng.Intn(21))
		size := model.Quantity(1 + rng.Intn(20))

		var (
			res *PlaceResult
			err error
		)
		if rng.Intn(2) == 0 {
			res, err = f.book.PlaceBuyOrder(ctx, user, price, size)
		} else {
			res, err = f.book.PlaceSellOrder(ctx, user, price, size)
		}
		require.NoError(t, err)
		assert.Equal(t, lastID+1, res.OrderID)
		lastID = res.OrderID

		var traded model.Quantity
		for _, tr := range res.Trades {
			traded += tr.Quantity
			if res.Side == model.BID {
				assert.LessOrEqual(t, tr.Price, price)
			} else {
				assert.GreaterOrEqual(t, tr.Price, price)
			}
		}
		assert.Equal(t, res.Filled, traded)
		assert.Equal(t, res.Resting, res.Filled < size)

		if i%50 == 0 {
			checkInvariants(t, f.book)
		}
	}
	checkInvariants(t, f.book)

	// assets are only moved, never created
	var btcTotal, usdTotal model.Quantity
	for _, u := range users {
		btcTotal += f.balance(t, u, "BTC")
		usdTotal += f.balance(t, u, "USD")
	}
	base, quote := f.book.Escrow()
	assert.Equal(t, model.Quantity(3_000_000), btcTotal+base)
	assert.Equal(t, model.Quantity(3_000_000_000), usdTotal+quote)
}
