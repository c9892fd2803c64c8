package ledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/Yusufzhafir/escrow-orderbook/pkg/model"
)

type accountKey struct {
	user  model.UserId
	asset string
}

// Memory is a process-local Ledger. Credits open missing accounts on the fly;
// a debit against a missing account sees a zero balance.
type Memory struct {
	mu       sync.Mutex
	balances map[accountKey]model.Quantity
	custody  map[string]model.Quantity
}

func NewMemory() *Memory {
	return &Memory{
		balances: make(map[accountKey]model.Quantity),
		custody:  make(map[string]model.Quantity),
	}
}

func (m *Memory) Commit(ctx context.Context, batch *Batch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	// stage every touched balance so a failing entry leaves nothing behind
	users := make(map[accountKey]model.Quantity)
	custody := make(map[string]model.Quantity)
	for _, e := range batch.Entries() {
		key := accountKey{user: e.User, asset: e.Asset}
		if _, ok := users[key]; !ok {
			users[key] = m.balances[key]
		}
		if _, ok := custody[e.Asset]; !ok {
			custody[e.Asset] = m.custody[e.Asset]
		}

		switch e.Direction {
		case Debit:
			if users[key] < e.Amount {
				return fmt.Errorf("%w: user %d holds %d %s, needs %d", ErrInsufficientBalance, e.User, users[key], e.Asset, e.Amount)
			}
			users[key] -= e.Amount
			custody[e.Asset] += e.Amount
		case Credit:
			if custody[e.Asset] < e.Amount {
				return fmt.Errorf("%w: custody holds %d %s, needs %d", ErrInsufficientBalance, custody[e.Asset], e.Asset, e.Amount)
			}
			custody[e.Asset] -= e.Amount
			users[key] += e.Amount
		}
	}

	for key, v := range users {
		m.balances[key] = v
	}
	for asset, v := range custody {
		m.custody[asset] = v
	}
	return nil
}

func (m *Memory) OpenAccounts(ctx context.Context, user model.UserId, assets ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, asset := range assets {
		key := accountKey{user: user, asset: asset}
		if _, ok := m.balances[key]; !ok {
			m.balances[key] = 0
		}
	}
	return nil
}

func (m *Memory) Deposit(ctx context.Context, user model.UserId, asset string, amount model.Quantity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[accountKey{user: user, asset: asset}] += amount
	return nil
}

func (m *Memory) Balance(ctx context.Context, user model.UserId, asset string) (model.Quantity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[accountKey{user: user, asset: asset}], nil
}

// Custody is the amount of asset currently held on behalf of every book.
func (m *Memory) Custody(asset string) model.Quantity {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.custody[asset]
}
