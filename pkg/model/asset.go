package model

import (
	"fmt"
	"math/big"
)

// Asset identifies a traded token and the number of decimals its smallest
// unit carries.
type Asset struct {
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
}

// Scale is the fixed-point factor of the asset, 10^Decimals.
func (a Asset) Scale() uint64 {
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(a.Decimals)), nil)
	if !scale.IsUint64() {
		return 0
	}
	return scale.Uint64()
}

// BookKey addresses one order book: an asset pair under one owning account.
type BookKey struct {
	Owner UserId `json:"owner"`
	Base  string `json:"base"`
	Quote string `json:"quote"`
}

func (k BookKey) String() string {
	return fmt.Sprintf("%d:%s-%s", k.Owner, k.Base, k.Quote)
}

// Symbol is the pair name used for feeds, e.g. "BTC-USD".
func (k BookKey) Symbol() string {
	return k.Base + "-" + k.Quote
}
