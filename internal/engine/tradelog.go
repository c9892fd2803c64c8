package engine

import (
	"context"
	"sync"

	"github.com/Yusufzhafir/escrow-orderbook/pkg/model"
)

// TradeLog is an append-only in-memory TradeSink. Trades keep the order in
// which they were published.
type TradeLog struct {
	mu     sync.Mutex
	trades map[model.BookKey][]model.Trade
}

func NewTradeLog() *TradeLog {
	return &TradeLog{trades: make(map[model.BookKey][]model.Trade)}
}

func (tl *TradeLog) PublishTrades(_ context.Context, book model.BookKey, trades []model.Trade) error {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	tl.trades[book] = append(tl.trades[book], trades...)
	return nil
}

// Trades returns a copy of everything published for book.
func (tl *TradeLog) Trades(book model.BookKey) []model.Trade {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	out := make([]model.Trade, len(tl.trades[book]))
	copy(out, tl.trades[book])
	return out
}

// MultiSink fans trades out to several sinks and returns the first error after
// trying all of them.
type MultiSink []TradeSink

func (m MultiSink) PublishTrades(ctx context.Context, book model.BookKey, trades []model.Trade) error {
	var first error
	for _, s := range m {
		if err := s.PublishTrades(ctx, book, trades); err != nil && first == nil {
			first = err
		}
	}
	return first
}
