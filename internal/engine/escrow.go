package engine

import (
	"fmt"

	"github.com/Yusufzhafir/escrow-orderbook/pkg/model"
)

// escrow is a custodial balance of one asset. Only OrderBook holds one, and
// only OrderBook methods move it.
type escrow struct {
	asset  string
	amount model.Quantity
}

func (e *escrow) merge(amount model.Quantity) {
	e.amount += amount
}

func (e *escrow) extract(amount model.Quantity) error {
	if amount > e.amount {
		return fmt.Errorf("%w: %s escrow holds %d, need %d", ErrEscrowShortfall, e.asset, e.amount, amount)
	}
	e.amount -= amount
	return nil
}

func (e *escrow) value() model.Quantity {
	return e.amount
}
