package util

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// FromUnits turns an integer amount of smallest units into its decimal value,
// e.g. 12345 with 2 decimals is 123.45.
func FromUnits(units uint64, decimals uint8) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(units), -int32(decimals))
}

// ToUnits converts a decimal string such as "123.45" into smallest units. It
// fails when the value is negative, has more precision than decimals allows or
// does not fit in uint64.
func ToUnits(value string, decimals uint8) (uint64, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return 0, err
	}
	if d.Sign() < 0 {
		return 0, errNegative
	}
	scaled := d.Shift(int32(decimals))
	if !scaled.Equal(scaled.Truncate(0)) {
		return 0, errPrecision
	}
	bi := scaled.BigInt()
	if !bi.IsUint64() {
		return 0, errRange
	}
	return bi.Uint64(), nil
}
