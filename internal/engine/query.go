package engine

import (
	orderbookModel "github.com/Yusufzhafir/escrow-orderbook/internal/engine/model"
	"github.com/Yusufzhafir/escrow-orderbook/pkg/model"
)

// BestBid returns the highest resting bid price, 0 when there are no bids.
func (ob *OrderBook) BestBid() model.Price {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	return bestPrice(ob.bids)
}

// BestAsk returns the lowest resting ask price, 0 when there are no asks.
func (ob *OrderBook) BestAsk() model.Price {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	return bestPrice(ob.asks)
}

// Spread is best ask minus best bid, 0 when either side is empty.
func (ob *OrderBook) Spread() model.Price {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	return spread(bestPrice(ob.bids), bestPrice(ob.asks))
}

// Depth returns up to levels price/size pairs per side, best first.
func (ob *OrderBook) Depth(levels int) *model.BookDepth {
	ob.mu.RLock()
	defer ob.mu.RUnlock()

	depth := &model.BookDepth{
		BidPrices: make([]model.Price, 0),
		BidSizes:  make([]model.Quantity, 0),
		AskPrices: make([]model.Price, 0),
		AskSizes:  make([]model.Quantity, 0),
	}
	if levels <= 0 {
		return depth
	}
	for _, level := range ob.bids.Levels(levels) {
		depth.BidPrices = append(depth.BidPrices, level.Price)
		depth.BidSizes = append(depth.BidSizes, level.TotalVolume)
	}
	for _, level := range ob.asks.Levels(levels) {
		depth.AskPrices = append(depth.AskPrices, level.Price)
		depth.AskSizes = append(depth.AskSizes, level.TotalVolume)
	}
	return depth
}

// GetTopOfBook returns best bid and ask with their sizes
func (ob *OrderBook) GetTopOfBook() *model.TopOfBook {
	ob.mu.RLock()
	defer ob.mu.RUnlock()

	tob := &model.TopOfBook{
		BestBid: depthLevel(ob.bids.Best()),
		BestAsk: depthLevel(ob.asks.Best()),
	}
	if tob.BestBid != nil && tob.BestAsk != nil {
		tob.Spread = spread(tob.BestBid.Price, tob.BestAsk.Price)
	}
	return tob
}

// Escrow returns what the book holds of each asset.
func (ob *OrderBook) Escrow() (base, quote model.Quantity) {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	return ob.baseEscrow.value(), ob.quoteEscrow.value()
}

// OrderSize is the number of resting orders on both sides.
func (ob *OrderBook) OrderSize() int {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	return ob.orderCount
}

func bestPrice(l *Ladder) model.Price {
	best := l.Best()
	if best == nil {
		return 0
	}
	return best.Price
}

func spread(bid, ask model.Price) model.Price {
	if bid == 0 || ask == 0 || ask < bid {
		return 0
	}
	return ask - bid
}

func depthLevel(level *orderbookModel.PriceLevel) *model.MarketDepthLevel {
	if level == nil {
		return nil
	}
	return &model.MarketDepthLevel{
		Price:      level.Price,
		Volume:     level.TotalVolume,
		OrderCount: level.OrderCount(),
	}
}
