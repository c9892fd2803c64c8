package engine

import (
	"fmt"
	"math/bits"
	"time"

	orderbookModel "github.com/Yusufzhafir/escrow-orderbook/internal/engine/model"
	"github.com/Yusufzhafir/escrow-orderbook/pkg/model"
)

// fill is one planned execution of the incoming order against a resting one.
type fill struct {
	level       *orderbookModel.PriceLevel
	maker       *model.Order
	quantity    model.Quantity
	quoteAmount model.Quantity
}

// QuoteAmount returns floor(price*size/scale) computed over 128 bits.
func QuoteAmount(price model.Price, size model.Quantity, scale uint64) (model.Quantity, error) {
	hi, lo := bits.Mul64(uint64(price), uint64(size))
	if hi >= scale {
		return 0, ErrAmountOverflow
	}
	quo, _ := bits.Div64(hi, lo, scale)
	return model.Quantity(quo), nil
}

// planMatch walks the opposite ladder best first and returns the fills an
// incoming order of the given limit and size would produce. Nothing is
// mutated: a plan can be discarded when settlement fails.
func planMatch(opposite *Ladder, limit model.Price, size model.Quantity, scale uint64) ([]fill, error) {
	var (
		fills     []fill
		remaining = size
		planErr   error
	)

	opposite.Ascend(func(level *orderbookModel.PriceLevel) bool {
		if !opposite.Reaches(limit, level) {
			return false
		}
		level.Each(func(maker *model.Order) bool {
			qty := min(remaining, maker.GetRemainingQuantity())
			quote, err := QuoteAmount(level.Price, qty, scale)
			if err != nil {
				planErr = err
				return false
			}
			fills = append(fills, fill{
				level:       level,
				maker:       maker,
				quantity:    qty,
				quoteAmount: quote,
			})
			remaining -= qty
			return remaining > 0
		})
		return planErr == nil && remaining > 0
	})

	if planErr != nil {
		return nil, planErr
	}
	return fills, nil
}

// settlement totals what a plan draws out of each escrow.
func settlement(fills []fill) (base, quote model.Quantity) {
	for _, f := range fills {
		base += f.quantity
		quote += f.quoteAmount
	}
	return base, quote
}

// applyFills executes a plan produced by planMatch under the same lock. The
// plan already respects every level and order bound, so a failure here means
// the book changed underneath it and is treated as a programming error.
func applyFills(taker *model.Order, fills []fill, at time.Time) []model.Trade {
	trades := make([]model.Trade, 0, len(fills))
	for _, f := range fills {
		maker, err := f.level.FillHead(f.quantity)
		if err != nil || maker != f.maker {
			panic(fmt.Sprintf("order book: stale match plan at level %d: %v", f.level.Price, err))
		}
		if err := taker.Fill(f.quantity); err != nil {
			panic(fmt.Sprintf("order book: %v", err))
		}

		trade := model.Trade{
			Side:        taker.GetSide(),
			MakerID:     maker.GetId(),
			TakerID:     taker.GetId(),
			Price:       f.level.Price,
			Quantity:    f.quantity,
			QuoteAmount: f.quoteAmount,
			Timestamp:   at,
		}
		if taker.GetSide() == model.BID {
			trade.Buyer, trade.Seller = taker.GetOwner(), maker.GetOwner()
		} else {
			trade.Buyer, trade.Seller = maker.GetOwner(), taker.GetOwner()
		}
		trades = append(trades, trade)
	}
	return trades
}
