package model

import (
	"fmt"

	"github.com/Yusufzhafir/escrow-orderbook/pkg/model"
	"github.com/emirpasic/gods/queues/linkedlistqueue"
)

// PriceLevel is the FIFO queue of resting orders sharing one price.
// TotalVolume always equals the sum of the remaining quantities of the queued
// orders. Fully filled orders are dequeued the moment they fill, so the head
// is always the oldest order with something left.
type PriceLevel struct {
	Price       model.Price
	TotalVolume model.Quantity
	orders      *linkedlistqueue.Queue
}

func NewPriceLevel(price model.Price) *PriceLevel {
	return &PriceLevel{
		Price:  price,
		orders: linkedlistqueue.New(),
	}
}

// Append puts the order at the back of the queue, behind every order already
// resting at this price.
func (pl *PriceLevel) Append(order *model.Order) error {
	if order.GetPrice() != pl.Price {
		return fmt.Errorf("order %d with price %d does not belong to level %d", order.GetId(), order.GetPrice(), pl.Price)
	}
	pl.orders.Enqueue(order)
	pl.TotalVolume += order.GetRemainingQuantity()
	return nil
}

// Head returns the oldest order of the level or nil when the level is empty.
func (pl *PriceLevel) Head() *model.Order {
	v, ok := pl.orders.Peek()
	if !ok {
		return nil
	}
	return v.(*model.Order)
}

// FillHead fills the head order by quantity and dequeues it once it is done.
func (pl *PriceLevel) FillHead(quantity model.Quantity) (*model.Order, error) {
	head := pl.Head()
	if head == nil {
		return nil, fmt.Errorf("fill on empty level %d", pl.Price)
	}
	if err := head.Fill(quantity); err != nil {
		return nil, err
	}
	pl.TotalVolume -= quantity
	if head.IsFilled() {
		pl.orders.Dequeue()
	}
	return head, nil
}

// Each visits the orders from oldest to newest until fn returns false.
func (pl *PriceLevel) Each(fn func(order *model.Order) bool) {
	it := pl.orders.Iterator()
	for it.Next() {
		if !fn(it.Value().(*model.Order)) {
			return
		}
	}
}

func (pl *PriceLevel) Orders() []*model.Order {
	orders := make([]*model.Order, 0, pl.orders.Size())
	pl.Each(func(o *model.Order) bool {
		orders = append(orders, o)
		return true
	})
	return orders
}

func (pl *PriceLevel) OrderCount() int {
	return pl.orders.Size()
}

// IsEmpty reports a level with nothing left to trade. Such a level must not
// stay in its ladder.
func (pl *PriceLevel) IsEmpty() bool {
	return pl.TotalVolume == 0
}
