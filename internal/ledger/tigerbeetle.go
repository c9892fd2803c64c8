package ledger

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/Yusufzhafir/escrow-orderbook/pkg/model"
	"github.com/pkg/errors"
	tbTypes "github.com/tigerbeetle/tigerbeetle-go/pkg/types"
)

const (
	codeAccountUser     = 1
	codeAccountCustody  = 1001
	codeAccountTreasury = 1002

	codeTransferCommit  = 2001
	codeTransferRelease = 3001
	codeTransferDeposit = 1005
)

// TBClient is the part of the TigerBeetle client the ledger needs.
type TBClient interface {
	CreateAccounts(accounts []tbTypes.Account) ([]tbTypes.AccountEventResult, error)
	CreateTransfers(transfers []tbTypes.Transfer) ([]tbTypes.TransferEventResult, error)
	LookupAccounts(accountIDs []tbTypes.Uint128) ([]tbTypes.Account, error)
}

// AssetLedger maps an asset to its TigerBeetle ledger and house accounts.
type AssetLedger struct {
	Asset    model.Asset
	TBLedger uint32
	Custody  tbTypes.Uint128
	Treasury tbTypes.Uint128
}

// Directory stores which TigerBeetle accounts belong to whom.
type Directory interface {
	AssetLedger(ctx context.Context, symbol string) (*AssetLedger, error)
	UserAccount(ctx context.Context, user model.UserId, symbol string) (tbTypes.Uint128, error)
	SaveUserAccount(ctx context.Context, user model.UserId, symbol string, account tbTypes.Uint128) error
}

// TigerBeetle is a Ledger whose balances live in TigerBeetle. Every user
// account is created with DebitsMustNotExceedCredits so overdrafts are refused
// by the cluster itself, and a batch is posted as one linked chain.
type TigerBeetle struct {
	client TBClient
	dir    Directory

	mu       sync.RWMutex
	accounts map[accountKey]tbTypes.Uint128
}

func NewTigerBeetle(client TBClient, dir Directory) *TigerBeetle {
	return &TigerBeetle{
		client:   client,
		dir:      dir,
		accounts: make(map[accountKey]tbTypes.Uint128),
	}
}

func (t *TigerBeetle) Commit(ctx context.Context, batch *Batch) error {
	if batch.Len() == 0 {
		return nil
	}

	transfers := make([]tbTypes.Transfer, 0, batch.Len())
	for i, e := range batch.Entries() {
		asset, err := t.dir.AssetLedger(ctx, e.Asset)
		if err != nil {
			return err
		}
		user, err := t.userAccount(ctx, e.User, e.Asset)
		if err != nil {
			return err
		}

		transfer := tbTypes.Transfer{
			ID:     tbTypes.ID(),
			Amount: tbTypes.ToUint128(uint64(e.Amount)),
			Ledger: asset.TBLedger,
			Flags:  tbTypes.TransferFlags{Linked: i < batch.Len()-1}.ToUint16(),
		}
		if e.Direction == Debit {
			transfer.DebitAccountID, transfer.CreditAccountID = user, asset.Custody
			transfer.Code = codeTransferCommit
		} else {
			transfer.DebitAccountID, transfer.CreditAccountID = asset.Custody, user
			transfer.Code = codeTransferRelease
		}
		transfers = append(transfers, transfer)
	}

	results, err := t.client.CreateTransfers(transfers)
	if err != nil {
		return errors.Wrap(err, "create transfers")
	}
	return transferError(batch, results)
}

// transferError picks the root cause out of a failed linked chain. TigerBeetle
// reports every other member of the chain as LinkedEventFailed.
func transferError(batch *Batch, results []tbTypes.TransferEventResult) error {
	if len(results) == 0 {
		return nil
	}
	for _, r := range results {
		if r.Result == tbTypes.TransferLinkedEventFailed {
			continue
		}
		e := batch.Entries()[r.Index]
		if r.Result == tbTypes.TransferExceedsCredits {
			return fmt.Errorf("%w: %s %d %s for user %d", ErrInsufficientBalance, e.Direction, e.Amount, e.Asset, e.User)
		}
		return errors.Errorf("transfer %d (%s %d %s for user %d) failed: %s", r.Index, e.Direction, e.Amount, e.Asset, e.User, r.Result)
	}
	return errors.Errorf("transfer batch failed: %+v", results)
}

// OpenAccounts creates the user's TigerBeetle account for every asset that
// does not have one yet.
func (t *TigerBeetle) OpenAccounts(ctx context.Context, user model.UserId, assets ...string) error {
	type pending struct {
		symbol string
		id     tbTypes.Uint128
	}
	var (
		accounts []tbTypes.Account
		created  []pending
	)
	for _, symbol := range assets {
		if _, err := t.userAccount(ctx, user, symbol); err == nil {
			continue
		} else if !errors.Is(err, ErrAccountNotFound) {
			return err
		}
		asset, err := t.dir.AssetLedger(ctx, symbol)
		if err != nil {
			return err
		}
		id := tbTypes.ID()
		accounts = append(accounts, tbTypes.Account{
			ID:         id,
			Ledger:     asset.TBLedger,
			Code:       codeAccountUser,
			UserData64: uint64(user),
			Flags: tbTypes.AccountFlags{
				DebitsMustNotExceedCredits: true,
				History:                    true,
			}.ToUint16(),
		})
		created = append(created, pending{symbol: symbol, id: id})
	}
	if len(accounts) == 0 {
		return nil
	}
	for i := range accounts[:len(accounts)-1] {
		flags := tbTypes.AccountFlags{DebitsMustNotExceedCredits: true, History: true, Linked: true}
		accounts[i].Flags = flags.ToUint16()
	}

	results, err := t.client.CreateAccounts(accounts)
	if err != nil {
		return errors.Wrap(err, "create accounts")
	}
	for _, r := range results {
		if r.Result != tbTypes.AccountExists {
			return errors.Errorf("account %d for user %d failed: %s", r.Index, user, r.Result)
		}
	}

	for _, p := range created {
		if err := t.dir.SaveUserAccount(ctx, user, p.symbol, p.id); err != nil {
			return err
		}
		t.remember(user, p.symbol, p.id)
	}
	return nil
}

// Deposit moves amount from the asset treasury into the user's account.
func (t *TigerBeetle) Deposit(ctx context.Context, user model.UserId, symbol string, amount model.Quantity) error {
	asset, err := t.dir.AssetLedger(ctx, symbol)
	if err != nil {
		return err
	}
	account, err := t.userAccount(ctx, user, symbol)
	if err != nil {
		return err
	}
	results, err := t.client.CreateTransfers([]tbTypes.Transfer{{
		ID:              tbTypes.ID(),
		DebitAccountID:  asset.Treasury,
		CreditAccountID: account,
		Amount:          tbTypes.ToUint128(uint64(amount)),
		Ledger:          asset.TBLedger,
		Code:            codeTransferDeposit,
	}})
	if err != nil {
		return errors.Wrap(err, "deposit transfer")
	}
	if len(results) > 0 {
		return errors.Errorf("deposit transfer failed: %s", results[0].Result)
	}
	return nil
}

func (t *TigerBeetle) Balance(ctx context.Context, user model.UserId, symbol string) (model.Quantity, error) {
	account, err := t.userAccount(ctx, user, symbol)
	if err != nil {
		return 0, err
	}
	found, err := t.client.LookupAccounts([]tbTypes.Uint128{account})
	if err != nil {
		return 0, errors.Wrap(err, "lookup account")
	}
	if len(found) == 0 {
		return 0, fmt.Errorf("%w: user %d %s", ErrAccountNotFound, user, symbol)
	}
	return netBalance(found[0])
}

func netBalance(a tbTypes.Account) (model.Quantity, error) {
	credits := a.CreditsPosted.BigInt()
	debits := a.DebitsPosted.BigInt()
	balance := new(big.Int).Sub(&credits, &debits)
	if balance.Sign() < 0 || !balance.IsUint64() {
		return 0, errors.Errorf("account balance %s out of range", balance.String())
	}
	return model.Quantity(balance.Uint64()), nil
}

func (t *TigerBeetle) userAccount(ctx context.Context, user model.UserId, symbol string) (tbTypes.Uint128, error) {
	key := accountKey{user: user, asset: symbol}
	t.mu.RLock()
	id, ok := t.accounts[key]
	t.mu.RUnlock()
	if ok {
		return id, nil
	}

	id, err := t.dir.UserAccount(ctx, user, symbol)
	if err != nil {
		return tbTypes.Uint128{}, err
	}
	t.remember(user, symbol, id)
	return id, nil
}

func (t *TigerBeetle) remember(user model.UserId, symbol string, id tbTypes.Uint128) {
	t.mu.Lock()
	t.accounts[accountKey{user: user, asset: symbol}] = id
	t.mu.Unlock()
}

// HouseAccounts builds the custody and treasury accounts of one asset ledger.
// Custody may never pay out more than it received; the treasury is the issuer
// and may only be debited.
func HouseAccounts(tbLedger uint32) (custody, treasury tbTypes.Account) {
	custody = tbTypes.Account{
		ID:     tbTypes.ID(),
		Ledger: tbLedger,
		Code:   codeAccountCustody,
		Flags:  tbTypes.AccountFlags{DebitsMustNotExceedCredits: true, History: true}.ToUint16(),
	}
	treasury = tbTypes.Account{
		ID:     tbTypes.ID(),
		Ledger: tbLedger,
		Code:   codeAccountTreasury,
		Flags:  tbTypes.AccountFlags{CreditsMustNotExceedDebits: true, History: true}.ToUint16(),
	}
	return custody, treasury
}
