package util

import (
	"math/big"

	"github.com/pkg/errors"
	tbtypes "github.com/tigerbeetle/tigerbeetle-go/pkg/types"
)

// StringToUint128 parses a decimal TigerBeetle id as stored in Postgres.
func StringToUint128(s string) (tbtypes.Uint128, error) {
	bi, ok := new(big.Int).SetString(s, 10)
	if !ok || bi.Sign() < 0 || bi.BitLen() > 128 {
		return tbtypes.Uint128{}, errors.Errorf("invalid uint128 string: %q", s)
	}
	return tbtypes.BigIntToUint128(*bi), nil
}
