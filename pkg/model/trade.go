package model

import "time"

// Trade is one execution between an incoming (taker) order and one resting
// (maker) order. Side is the taker's side.
type Trade struct {
	Side        Side      `json:"side"`
	MakerID     OrderId   `json:"makerId"`
	TakerID     OrderId   `json:"takerId"`
	Buyer       UserId    `json:"buyer"`
	Seller      UserId    `json:"seller"`
	Price       Price     `json:"price"`
	Quantity    Quantity  `json:"quantity"`
	QuoteAmount Quantity  `json:"quoteAmount"`
	Timestamp   time.Time `json:"timestamp"`
}
