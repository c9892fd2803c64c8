package order

import (
	"context"
	"sync"

	"github.com/Yusufzhafir/escrow-orderbook/internal/engine"
	"github.com/Yusufzhafir/escrow-orderbook/pkg/model"
)

// sinkSet is the single sink every book publishes to. Sinks can be added
// while books are live.
type sinkSet struct {
	mu    sync.RWMutex
	sinks engine.MultiSink
}

func (s *sinkSet) add(sink engine.TradeSink) {
	s.mu.Lock()
	s.sinks = append(s.sinks, sink)
	s.mu.Unlock()
}

func (s *sinkSet) PublishTrades(ctx context.Context, book model.BookKey, trades []model.Trade) error {
	s.mu.RLock()
	sinks := s.sinks
	s.mu.RUnlock()
	return sinks.PublishTrades(ctx, book, trades)
}

type tradeLogHistory struct {
	log *engine.TradeLog
}

func (h tradeLogHistory) ListTrades(_ context.Context, book model.BookKey, limit int) ([]model.Trade, error) {
	trades := h.log.Trades(book)
	out := make([]model.Trade, 0, min(limit, len(trades)))
	for i := len(trades) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, trades[i])
	}
	return out, nil
}
