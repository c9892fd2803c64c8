package engine

import "errors"

var (
	ErrNotInitialized     = errors.New("order book not initialized")
	ErrAlreadyInitialized = errors.New("order book already initialized")
	ErrInvalidPrice       = errors.New("price must be positive")
	ErrInvalidSize        = errors.New("size must be positive")
	// ErrOrderNotFound is reserved for cancel/amend, which the book does not offer.
	ErrOrderNotFound = errors.New("order not found")

	ErrUnsupportedPair = errors.New("base and quote assets must share the same decimals")
	ErrAmountOverflow  = errors.New("quote amount overflows uint64")
	// ErrEscrowShortfall means a planned settlement would draw more than the
	// book holds. It signals a broken book, not a user mistake.
	ErrEscrowShortfall = errors.New("escrow cannot cover settlement")
)
