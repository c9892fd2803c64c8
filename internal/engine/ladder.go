package engine

import (
	orderbookModel "github.com/Yusufzhafir/escrow-orderbook/internal/engine/model"
	"github.com/Yusufzhafir/escrow-orderbook/pkg/model"
	"github.com/google/btree"
)

const ladderDegree = 32

// Ladder keeps the price levels of one side ordered best first: bids by
// descending price, asks by ascending price. Each price appears at most once.
type Ladder struct {
	side   model.Side
	levels *btree.BTreeG[*orderbookModel.PriceLevel]
}

func NewLadder(side model.Side) *Ladder {
	less := func(a, b *orderbookModel.PriceLevel) bool { return a.Price < b.Price }
	if side == model.BID {
		less = func(a, b *orderbookModel.PriceLevel) bool { return a.Price > b.Price }
	}
	return &Ladder{
		side:   side,
		levels: btree.NewG(ladderDegree, less),
	}
}

func (l *Ladder) Side() model.Side {
	return l.side
}

func (l *Ladder) Len() int {
	return l.levels.Len()
}

// Best returns the level at index 0, or nil when the ladder is empty.
func (l *Ladder) Best() *orderbookModel.PriceLevel {
	level, ok := l.levels.Min()
	if !ok {
		return nil
	}
	return level
}

func (l *Ladder) Get(price model.Price) *orderbookModel.PriceLevel {
	level, ok := l.levels.Get(&orderbookModel.PriceLevel{Price: price})
	if !ok {
		return nil
	}
	return level
}

// Reaches reports whether an incoming order on the other side with the given
// limit may trade against level.
func (l *Ladder) Reaches(limit model.Price, level *orderbookModel.PriceLevel) bool {
	if l.side == model.ASK {
		return limit >= level.Price
	}
	return limit <= level.Price
}

// Insert rests order at the tail of its price level, creating the level in
// sorted position when the price is new.
func (l *Ladder) Insert(order *model.Order) error {
	level := l.Get(order.GetPrice())
	if level == nil {
		level = orderbookModel.NewPriceLevel(order.GetPrice())
		l.levels.ReplaceOrInsert(level)
	}
	return level.Append(order)
}

// Prune drops emptied levels from the front of the ladder. Matching drains
// levels strictly in ladder order, so every empty level sits before the first
// non-empty one.
func (l *Ladder) Prune() int {
	pruned := 0
	for {
		best := l.Best()
		if best == nil || !best.IsEmpty() {
			return pruned
		}
		l.levels.DeleteMin()
		pruned++
	}
}

// Ascend visits levels best first until fn returns false.
func (l *Ladder) Ascend(fn func(level *orderbookModel.PriceLevel) bool) {
	l.levels.Ascend(fn)
}

// Levels returns up to n levels best first. n <= 0 returns every level.
func (l *Ladder) Levels(n int) []*orderbookModel.PriceLevel {
	out := make([]*orderbookModel.PriceLevel, 0)
	l.levels.Ascend(func(level *orderbookModel.PriceLevel) bool {
		if n > 0 && len(out) >= n {
			return false
		}
		out = append(out, level)
		return true
	})
	return out
}
