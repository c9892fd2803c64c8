package order

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/Yusufzhafir/escrow-orderbook/internal/engine"
	"github.com/Yusufzhafir/escrow-orderbook/internal/ledger"
	"github.com/Yusufzhafir/escrow-orderbook/pkg/logger"
	"github.com/Yusufzhafir/escrow-orderbook/pkg/model"
)

const defaultTradeLimit = 100

type EscrowBalance struct {
	Base  model.Quantity `json:"base"`
	Quote model.Quantity `json:"quote"`
}

type OrderUseCase interface {
	Initialize(ctx context.Context, owner model.UserId, base, quote model.Asset) (model.BookKey, error)

	PlaceBuyOrder(ctx context.Context, user model.UserId, book model.BookKey, price model.Price, size model.Quantity) (*engine.PlaceResult, error)
	PlaceSellOrder(ctx context.Context, user model.UserId, book model.BookKey, price model.Price, size model.Quantity) (*engine.PlaceResult, error)

	BestBid(ctx context.Context, book model.BookKey) (model.Price, error)
	BestAsk(ctx context.Context, book model.BookKey) (model.Price, error)
	Spread(ctx context.Context, book model.BookKey) (model.Price, error)
	BookDepth(ctx context.Context, book model.BookKey, levels int) (*model.BookDepth, error)
	GetTopOfBook(ctx context.Context, book model.BookKey) (*model.TopOfBook, error)
	Escrow(ctx context.Context, book model.BookKey) (*EscrowBalance, error)
	ListBooks(ctx context.Context) []model.BookKey
	Trades(ctx context.Context, book model.BookKey, limit int) ([]model.Trade, error)

	// RegisterTradeSink adds a sink that receives the trades of every book,
	// including books created before the call.
	RegisterTradeSink(sink engine.TradeSink)
}

type orderUseCaseImpl struct {
	mu    sync.RWMutex
	books map[model.BookKey]*engine.OrderBook

	ledger  ledger.Ledger
	clock   engine.Clock
	sinks   *sinkSet
	history TradeHistory
	log     *logger.Logger
}

// TradeHistory serves the executed trades of a book, newest first.
type TradeHistory interface {
	ListTrades(ctx context.Context, book model.BookKey, limit int) ([]model.Trade, error)
}

type OrderUseCaseOpts struct {
	Ledger ledger.Ledger
	Clock  engine.Clock
	// History defaults to an in-process trade log when nil.
	History TradeHistory
	Logger  *logger.Logger
}

func NewOrderUseCase(opts OrderUseCaseOpts) OrderUseCase {
	if opts.Clock == nil {
		opts.Clock = engine.SystemClock{}
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNop()
	}
	ou := &orderUseCaseImpl{
		books:   make(map[model.BookKey]*engine.OrderBook),
		ledger:  opts.Ledger,
		clock:   opts.Clock,
		sinks:   &sinkSet{},
		history: opts.History,
		log:     opts.Logger,
	}
	if ou.history == nil {
		tl := engine.NewTradeLog()
		ou.sinks.add(tl)
		ou.history = tradeLogHistory{tl}
	}
	return ou
}

func (ou *orderUseCaseImpl) RegisterTradeSink(sink engine.TradeSink) {
	ou.sinks.add(sink)
}

// Initialize creates the empty book of base/quote owned by owner.
func (ou *orderUseCaseImpl) Initialize(ctx context.Context, owner model.UserId, base, quote model.Asset) (model.BookKey, error) {
	key := model.BookKey{Owner: owner, Base: base.Symbol, Quote: quote.Symbol}

	ou.mu.Lock()
	defer ou.mu.Unlock()
	if _, ok := ou.books[key]; ok {
		return key, fmt.Errorf("%w: %s", engine.ErrAlreadyInitialized, key)
	}

	book, err := engine.NewOrderBook(owner, base, quote, engine.Options{
		Ledger: ou.ledger,
		Clock:  ou.clock,
		Sink:   ou.sinks,
		Logger: ou.log,
	})
	if err != nil {
		return key, err
	}
	ou.books[key] = book
	ou.log.InfoContext(ctx, "order book initialized",
		logger.NewField("book", key.String()),
		logger.NewField("scale", book.Scale()))
	return key, nil
}

func (ou *orderUseCaseImpl) book(key model.BookKey) (*engine.OrderBook, error) {
	ou.mu.RLock()
	defer ou.mu.RUnlock()
	book, ok := ou.books[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", engine.ErrNotInitialized, key)
	}
	return book, nil
}

func (ou *orderUseCaseImpl) PlaceBuyOrder(ctx context.Context, user model.UserId, key model.BookKey, price model.Price, size model.Quantity) (*engine.PlaceResult, error) {
	return ou.place(ctx, user, key, model.BID, price, size)
}

func (ou *orderUseCaseImpl) PlaceSellOrder(ctx context.Context, user model.UserId, key model.BookKey, price model.Price, size model.Quantity) (*engine.PlaceResult, error) {
	return ou.place(ctx, user, key, model.ASK, price, size)
}

func (ou *orderUseCaseImpl) place(ctx context.Context, user model.UserId, key model.BookKey, side model.Side, price model.Price, size model.Quantity) (*engine.PlaceResult, error) {
	book, err := ou.book(key)
	if err != nil {
		return nil, err
	}
	// the taker must be able to receive both legs of any fill
	if err := ou.ledger.OpenAccounts(ctx, user, key.Base, key.Quote); err != nil {
		return nil, err
	}
	res, err := book.Place(ctx, user, side, price, size)
	if err != nil {
		ou.log.WarnContext(ctx, "order rejected",
			logger.NewField("book", key.String()),
			logger.NewField("user", user),
			logger.NewField("side", side.String()),
			logger.NewField("reason", err.Error()))
		return nil, err
	}
	return res, nil
}

func (ou *orderUseCaseImpl) BestBid(ctx context.Context, key model.BookKey) (model.Price, error) {
	book, err := ou.book(key)
	if err != nil {
		return 0, err
	}
	return book.BestBid(), nil
}

func (ou *orderUseCaseImpl) BestAsk(ctx context.Context, key model.BookKey) (model.Price, error) {
	book, err := ou.book(key)
	if err != nil {
		return 0, err
	}
	return book.BestAsk(), nil
}

func (ou *orderUseCaseImpl) Spread(ctx context.Context, key model.BookKey) (model.Price, error) {
	book, err := ou.book(key)
	if err != nil {
		return 0, err
	}
	return book.Spread(), nil
}

func (ou *orderUseCaseImpl) BookDepth(ctx context.Context, key model.BookKey, levels int) (*model.BookDepth, error) {
	book, err := ou.book(key)
	if err != nil {
		return nil, err
	}
	return book.Depth(levels), nil
}

func (ou *orderUseCaseImpl) GetTopOfBook(ctx context.Context, key model.BookKey) (*model.TopOfBook, error) {
	book, err := ou.book(key)
	if err != nil {
		return nil, err
	}
	return book.GetTopOfBook(), nil
}

func (ou *orderUseCaseImpl) Escrow(ctx context.Context, key model.BookKey) (*EscrowBalance, error) {
	book, err := ou.book(key)
	if err != nil {
		return nil, err
	}
	base, quote := book.Escrow()
	return &EscrowBalance{Base: base, Quote: quote}, nil
}

func (ou *orderUseCaseImpl) ListBooks(ctx context.Context) []model.BookKey {
	ou.mu.RLock()
	keys := make([]model.BookKey, 0, len(ou.books))
	for k := range ou.books {
		keys = append(keys, k)
	}
	ou.mu.RUnlock()

	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	return keys
}

func (ou *orderUseCaseImpl) Trades(ctx context.Context, key model.BookKey, limit int) ([]model.Trade, error) {
	if _, err := ou.book(key); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultTradeLimit
	}
	return ou.history.ListTrades(ctx, key, limit)
}
