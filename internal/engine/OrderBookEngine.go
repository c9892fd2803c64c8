package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Yusufzhafir/escrow-orderbook/internal/ledger"
	"github.com/Yusufzhafir/escrow-orderbook/pkg/logger"
	"github.com/Yusufzhafir/escrow-orderbook/pkg/model"
)

type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// TradeSink receives the trades of every placement in emission order. It is
// called while the book is still locked, so it must not call back into the
// book.
type TradeSink interface {
	PublishTrades(ctx context.Context, book model.BookKey, trades []model.Trade) error
}

// Settler posts the user side of a placement. Only Commit is needed here.
type Settler interface {
	Commit(ctx context.Context, batch *ledger.Batch) error
}

// PlaceResult describes the incoming order after matching.
type PlaceResult struct {
	OrderID   model.OrderId  `json:"orderId"`
	Side      model.Side     `json:"side"`
	Price     model.Price    `json:"price"`
	Size      model.Quantity `json:"size"`
	Filled    model.Quantity `json:"filled"`
	Committed model.Quantity `json:"committed"`
	Resting   bool           `json:"resting"`
	Trades    []model.Trade  `json:"trades"`
}

type Options struct {
	Ledger Settler
	Clock  Clock
	Sink   TradeSink
	Logger *logger.Logger
}

// OrderBook owns both ladders of one pair and the escrow backing them.
type OrderBook struct {
	mu sync.RWMutex

	key         model.BookKey
	base, quote model.Asset
	scale       uint64
	bids, asks  *Ladder
	nextOrderID model.OrderId
	baseEscrow  escrow
	quoteEscrow escrow
	orderCount  int
	ledger      Settler
	clock       Clock
	sink        TradeSink
	log         *logger.Logger
}

func NewOrderBook(owner model.UserId, base, quote model.Asset, opts Options) (*OrderBook, error) {
	if base.Symbol == "" || quote.Symbol == "" || base.Symbol == quote.Symbol {
		return nil, fmt.Errorf("%w: %q/%q", ErrUnsupportedPair, base.Symbol, quote.Symbol)
	}
	if base.Decimals != quote.Decimals {
		return nil, fmt.Errorf("%w: %s has %d, %s has %d", ErrUnsupportedPair, base.Symbol, base.Decimals, quote.Symbol, quote.Decimals)
	}
	scale := quote.Scale()
	if scale == 0 {
		return nil, fmt.Errorf("%w: %d decimals", ErrUnsupportedPair, quote.Decimals)
	}
	if opts.Ledger == nil {
		return nil, fmt.Errorf("order book needs a ledger")
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock{}
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNop()
	}

	key := model.BookKey{Owner: owner, Base: base.Symbol, Quote: quote.Symbol}
	return &OrderBook{
		key:         key,
		base:        base,
		quote:       quote,
		scale:       scale,
		bids:        NewLadder(model.BID),
		asks:        NewLadder(model.ASK),
		nextOrderID: 1,
		baseEscrow:  escrow{asset: base.Symbol},
		quoteEscrow: escrow{asset: quote.Symbol},
		ledger:      opts.Ledger,
		clock:       opts.Clock,
		sink:        opts.Sink,
		log:         opts.Logger.With(logger.NewField("book", key.String())),
	}, nil
}

func (ob *OrderBook) Key() model.BookKey {
	return ob.key
}

func (ob *OrderBook) Scale() uint64 {
	return ob.scale
}

func (ob *OrderBook) PlaceBuyOrder(ctx context.Context, user model.UserId, price model.Price, size model.Quantity) (*PlaceResult, error) {
	return ob.Place(ctx, user, model.BID, price, size)
}

func (ob *OrderBook) PlaceSellOrder(ctx context.Context, user model.UserId, price model.Price, size model.Quantity) (*PlaceResult, error) {
	return ob.Place(ctx, user, model.ASK, price, size)
}

// Place escrows the commitment of a new limit order, matches it against the
// opposite ladder and rests whatever is left. Either every effect lands or
// none does: the match is planned first, the ledger batch (commitment plus
// all settlements) is posted next, and the plan is applied last.
func (ob *OrderBook) Place(ctx context.Context, user model.UserId, side model.Side, price model.Price, size model.Quantity) (*PlaceResult, error) {
	if price == 0 {
		return nil, ErrInvalidPrice
	}
	if size == 0 {
		return nil, ErrInvalidSize
	}

	ob.mu.Lock()
	defer ob.mu.Unlock()

	own, opposite := ob.bids, ob.asks
	if side == model.ASK {
		own, opposite = ob.asks, ob.bids
	}

	committedAsset, committed, err := ob.commitment(side, price, size)
	if err != nil {
		return nil, err
	}

	fills, err := planMatch(opposite, price, size, ob.scale)
	if err != nil {
		return nil, err
	}

	baseOut, quoteOut := settlement(fills)
	baseIn, quoteIn := ob.baseEscrow.value(), ob.quoteEscrow.value()
	if side == model.ASK {
		baseIn += committed
	} else {
		quoteIn += committed
	}
	if baseOut > baseIn || quoteOut > quoteIn {
		ob.log.Error(ErrEscrowShortfall,
			logger.NewField("base_out", baseOut), logger.NewField("base_in", baseIn),
			logger.NewField("quote_out", quoteOut), logger.NewField("quote_in", quoteIn))
		return nil, ErrEscrowShortfall
	}

	batch := ledger.NewBatch().Debit(user, committedAsset, committed)
	for _, f := range fills {
		buyer, seller := user, f.maker.GetOwner()
		if side == model.ASK {
			buyer, seller = f.maker.GetOwner(), user
		}
		batch.Credit(buyer, ob.base.Symbol, f.quantity)
		batch.Credit(seller, ob.quote.Symbol, f.quoteAmount)
	}
	if err := ob.ledger.Commit(ctx, batch); err != nil {
		return nil, err
	}

	// nothing below can fail
	now := ob.clock.Now()
	order := model.NewOrder(ob.nextOrderID, user, side, price, size, now)
	ob.nextOrderID++

	if side == model.ASK {
		ob.baseEscrow.merge(committed)
	} else {
		ob.quoteEscrow.merge(committed)
	}

	trades := applyFills(order, fills, now)
	_ = ob.baseEscrow.extract(baseOut)
	_ = ob.quoteEscrow.extract(quoteOut)
	ob.orderCount -= filledMakers(fills)
	opposite.Prune()

	resting := !order.IsFilled()
	if resting {
		if err := own.Insert(order); err != nil {
			panic(fmt.Sprintf("order book: %v", err))
		}
		ob.orderCount++
	}

	ob.log.DebugContext(ctx, "order placed",
		logger.NewField("order_id", order.GetId()),
		logger.NewField("side", side.String()),
		logger.NewField("price", price),
		logger.NewField("size", size),
		logger.NewField("trades", len(trades)),
		logger.NewField("resting", resting))

	ob.publish(ctx, trades)

	return &PlaceResult{
		OrderID:   order.GetId(),
		Side:      side,
		Price:     price,
		Size:      size,
		Filled:    order.GetFilledQuantity(),
		Committed: committed,
		Resting:   resting,
		Trades:    trades,
	}, nil
}

// commitment is what the order locks up front: floor(price*size/scale) of the
// quote asset for a buy, size of the base asset for a sell.
func (ob *OrderBook) commitment(side model.Side, price model.Price, size model.Quantity) (string, model.Quantity, error) {
	if side == model.ASK {
		return ob.base.Symbol, size, nil
	}
	amount, err := QuoteAmount(price, size, ob.scale)
	if err != nil {
		return "", 0, err
	}
	return ob.quote.Symbol, amount, nil
}

func (ob *OrderBook) publish(ctx context.Context, trades []model.Trade) {
	if ob.sink == nil || len(trades) == 0 {
		return
	}
	if err := ob.sink.PublishTrades(ctx, ob.key, trades); err != nil {
		ob.log.ErrorContext(ctx, err, logger.NewField("trades", len(trades)))
	}
}

func filledMakers(fills []fill) int {
	n := 0
	for _, f := range fills {
		if f.maker.IsFilled() {
			n++
		}
	}
	return n
}
