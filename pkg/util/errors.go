package util

import "errors"

var (
	errNegative  = errors.New("amount must not be negative")
	errPrecision = errors.New("amount has more decimals than the asset allows")
	errRange     = errors.New("amount out of range")
)
