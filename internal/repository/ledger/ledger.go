package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	ledgerCore "github.com/Yusufzhafir/escrow-orderbook/internal/ledger"
	"github.com/Yusufzhafir/escrow-orderbook/pkg/model"
	"github.com/Yusufzhafir/escrow-orderbook/pkg/util"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	tbTypes "github.com/tigerbeetle/tigerbeetle-go/pkg/types"
)

type AssetLedger struct {
	ID                int64     `db:"id"`
	Symbol            string    `db:"symbol"`
	Decimals          int16     `db:"decimals"`
	TBLedgerID        int64     `db:"tb_ledger_id"`
	CustodyAccountID  string    `db:"custody_account_id"`
	TreasuryAccountID string    `db:"treasury_account_id"`
	CreatedAt         time.Time `db:"created_at"`
}

func (a AssetLedger) Asset() model.Asset {
	return model.Asset{Symbol: a.Symbol, Decimals: uint8(a.Decimals)}
}

type UserAccount struct {
	ID            int64     `db:"id"`
	UserID        int64     `db:"user_id"`
	AssetLedgerID int64     `db:"asset_ledger_id"`
	TBAccountID   string    `db:"tb_account_id"`
	CreatedAt     time.Time `db:"created_at"`
}

// LedgerRepository is the account directory behind the TigerBeetle ledger and
// the asset catalog of the exchange.
type LedgerRepository interface {
	ledgerCore.Directory
	ledgerCore.Catalog

	CreateLedger(ctx context.Context, tx *sqlx.Tx, asset model.Asset, tbLedgerID uint32, custody, treasury tbTypes.Uint128) (int64, error)
	ListLedgers(ctx context.Context) ([]AssetLedger, error)
	ListUserAccounts(ctx context.Context, userID model.UserId) ([]UserAccount, error)
}

type ledgerRepositoryImpl struct {
	db *sqlx.DB
}

func NewLedgerRepository(db *sqlx.DB) LedgerRepository {
	return &ledgerRepositoryImpl{db: db}
}

const selectLedger = `SELECT id, symbol, decimals, tb_ledger_id, custody_account_id, treasury_account_id, created_at FROM asset_ledger`

func (r *ledgerRepositoryImpl) CreateLedger(ctx context.Context, tx *sqlx.Tx, asset model.Asset, tbLedgerID uint32, custody, treasury tbTypes.Uint128) (int64, error) {
	custodyID, treasuryID := custody.BigInt(), treasury.BigInt()
	var id int64
	err := tx.QueryRowContext(ctx,
		`INSERT INTO asset_ledger (symbol, decimals, tb_ledger_id, custody_account_id, treasury_account_id)
         VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		asset.Symbol, int16(asset.Decimals), int64(tbLedgerID), custodyID.String(), treasuryID.String(),
	).Scan(&id)
	if err != nil {
		return 0, errors.Wrapf(err, "insert asset ledger %s", asset.Symbol)
	}
	return id, nil
}

func (r *ledgerRepositoryImpl) ListLedgers(ctx context.Context) ([]AssetLedger, error) {
	var list []AssetLedger
	if err := r.db.SelectContext(ctx, &list, selectLedger+` ORDER BY id`); err != nil {
		return nil, errors.Wrap(err, "list asset ledgers")
	}
	return list, nil
}

func (r *ledgerRepositoryImpl) getLedger(ctx context.Context, symbol string) (*AssetLedger, error) {
	var l AssetLedger
	err := r.db.GetContext(ctx, &l, selectLedger+` WHERE symbol=$1`, symbol)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ledgerCore.ErrUnknownAsset, symbol)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get asset ledger %s", symbol)
	}
	return &l, nil
}

func (r *ledgerRepositoryImpl) AssetLedger(ctx context.Context, symbol string) (*ledgerCore.AssetLedger, error) {
	l, err := r.getLedger(ctx, symbol)
	if err != nil {
		return nil, err
	}
	custody, err := util.StringToUint128(l.CustodyAccountID)
	if err != nil {
		return nil, err
	}
	treasury, err := util.StringToUint128(l.TreasuryAccountID)
	if err != nil {
		return nil, err
	}
	return &ledgerCore.AssetLedger{
		Asset:    l.Asset(),
		TBLedger: uint32(l.TBLedgerID),
		Custody:  custody,
		Treasury: treasury,
	}, nil
}

func (r *ledgerRepositoryImpl) Asset(ctx context.Context, symbol string) (model.Asset, error) {
	l, err := r.getLedger(ctx, symbol)
	if err != nil {
		return model.Asset{}, err
	}
	return l.Asset(), nil
}

func (r *ledgerRepositoryImpl) Assets(ctx context.Context) ([]model.Asset, error) {
	list, err := r.ListLedgers(ctx)
	if err != nil {
		return nil, err
	}
	assets := make([]model.Asset, 0, len(list))
	for _, l := range list {
		assets = append(assets, l.Asset())
	}
	return assets, nil
}

// UserAccount

func (r *ledgerRepositoryImpl) UserAccount(ctx context.Context, user model.UserId, symbol string) (tbTypes.Uint128, error) {
	var tbAccountID string
	err := r.db.GetContext(ctx, &tbAccountID,
		`SELECT ua.tb_account_id
         FROM user_account ua
         JOIN asset_ledger al ON al.id = ua.asset_ledger_id
         WHERE ua.user_id=$1 AND al.symbol=$2`,
		int64(user), symbol)
	if errors.Is(err, sql.ErrNoRows) {
		return tbTypes.Uint128{}, fmt.Errorf("%w: user %d %s", ledgerCore.ErrAccountNotFound, user, symbol)
	}
	if err != nil {
		return tbTypes.Uint128{}, errors.Wrapf(err, "get account of user %d for %s", user, symbol)
	}
	return util.StringToUint128(tbAccountID)
}

func (r *ledgerRepositoryImpl) SaveUserAccount(ctx context.Context, user model.UserId, symbol string, account tbTypes.Uint128) error {
	id := account.BigInt()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO user_account (user_id, asset_ledger_id, tb_account_id)
         SELECT $1, id, $3 FROM asset_ledger WHERE symbol=$2`,
		int64(user), symbol, id.String())
	if err != nil {
		return errors.Wrapf(err, "save account of user %d for %s", user, symbol)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ledgerCore.ErrUnknownAsset, symbol)
	}
	return nil
}

func (r *ledgerRepositoryImpl) ListUserAccounts(ctx context.Context, userID model.UserId) ([]UserAccount, error) {
	var list []UserAccount
	err := r.db.SelectContext(ctx, &list,
		`SELECT id, user_id, asset_ledger_id, tb_account_id, created_at
         FROM user_account
         WHERE user_id=$1
         ORDER BY asset_ledger_id`,
		int64(userID))
	if err != nil {
		return nil, errors.Wrapf(err, "list accounts of user %d", userID)
	}
	return list, nil
}
