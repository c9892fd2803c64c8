package model

import (
	"fmt"
	"time"
)

type Price uint64
type Quantity uint64
type OrderId uint64
type UserId int64

type Side uint8

const (
	BID Side = iota
	ASK
)

func (s Side) String() string {
	if s == ASK {
		return "SELL"
	}
	return "BUY"
}

// Opposite returns the side an incoming order of side s matches against.
func (s Side) Opposite() Side {
	if s == BID {
		return ASK
	}
	return BID
}

// Order is a single resting or incoming limit order. Price and size are fixed
// at creation; only the filled quantity moves.
type Order struct {
	id        OrderId
	owner     UserId
	side      Side
	price     Price
	size      Quantity
	filled    Quantity
	createdAt time.Time
}

func NewOrder(id OrderId, owner UserId, side Side, price Price, size Quantity, createdAt time.Time) *Order {
	return &Order{
		id:        id,
		owner:     owner,
		side:      side,
		price:     price,
		size:      size,
		createdAt: createdAt,
	}
}

func (o *Order) Fill(quantity Quantity) error {
	if quantity > o.GetRemainingQuantity() {
		return fmt.Errorf("order %d cannot be filled for more than its remaining quantity", o.id)
	}
	o.filled += quantity
	return nil
}

func (o *Order) IsFilled() bool {
	return o.filled == o.size
}

func (o *Order) GetRemainingQuantity() Quantity {
	return o.size - o.filled
}

func (o *Order) GetFilledQuantity() Quantity {
	return o.filled
}

func (o *Order) GetInitialQuantity() Quantity {
	return o.size
}

func (o *Order) GetPrice() Price {
	return o.price
}

func (o *Order) GetId() OrderId {
	return o.id
}

func (o *Order) GetOwner() UserId {
	return o.owner
}

func (o *Order) GetSide() Side {
	return o.side
}

func (o *Order) GetCreatedAt() time.Time {
	return o.createdAt
}
