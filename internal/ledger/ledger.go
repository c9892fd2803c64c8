package ledger

import (
	"context"
	"errors"

	"github.com/Yusufzhafir/escrow-orderbook/pkg/model"
)

var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrAccountNotFound     = errors.New("ledger account not found")
	ErrUnknownAsset        = errors.New("unknown asset")
)

type Direction uint8

const (
	// Debit moves funds from the user into exchange custody.
	Debit Direction = iota
	// Credit releases funds from exchange custody to the user.
	Credit
)

func (d Direction) String() string {
	if d == Credit {
		return "credit"
	}
	return "debit"
}

type Entry struct {
	Direction Direction
	User      model.UserId
	Asset     string
	Amount    model.Quantity
}

// Batch is a set of movements that post all together or not at all.
type Batch struct {
	entries []Entry
}

func NewBatch() *Batch {
	return &Batch{}
}

// Debit adds a user-to-custody movement. Zero amounts are dropped.
func (b *Batch) Debit(user model.UserId, asset string, amount model.Quantity) *Batch {
	return b.add(Debit, user, asset, amount)
}

// Credit adds a custody-to-user movement. Zero amounts are dropped.
func (b *Batch) Credit(user model.UserId, asset string, amount model.Quantity) *Batch {
	return b.add(Credit, user, asset, amount)
}

func (b *Batch) add(dir Direction, user model.UserId, asset string, amount model.Quantity) *Batch {
	if amount == 0 {
		return b
	}
	b.entries = append(b.entries, Entry{Direction: dir, User: user, Asset: asset, Amount: amount})
	return b
}

func (b *Batch) Entries() []Entry {
	return b.entries
}

func (b *Batch) Len() int {
	return len(b.entries)
}

// Ledger holds user balances per asset plus the custody balance backing every
// order book escrow.
type Ledger interface {
	// Commit posts every entry of batch atomically. A debit larger than the
	// user's balance fails the whole batch with ErrInsufficientBalance.
	Commit(ctx context.Context, batch *Batch) error
	// OpenAccounts makes sure user can hold each of the assets.
	OpenAccounts(ctx context.Context, user model.UserId, assets ...string) error
	// Deposit tops up user from the treasury of asset.
	Deposit(ctx context.Context, user model.UserId, asset string, amount model.Quantity) error
	Balance(ctx context.Context, user model.UserId, asset string) (model.Quantity, error)
}
