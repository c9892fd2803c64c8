package user

import (
	"context"
	"fmt"

	"github.com/Yusufzhafir/escrow-orderbook/internal/ledger"
	repository "github.com/Yusufzhafir/escrow-orderbook/internal/repository/user"
	"github.com/Yusufzhafir/escrow-orderbook/pkg/logger"
	"github.com/Yusufzhafir/escrow-orderbook/pkg/model"
	"github.com/Yusufzhafir/escrow-orderbook/pkg/util"
	"github.com/pkg/errors"
)

var ErrInvalidAmount = errors.New("amount must be positive")

type UserUseCase interface {
	Register(ctx context.Context, username, password string) (model.UserId, error)
	Login(ctx context.Context, username, password string) (*repository.User, error)
	GetProfile(ctx context.Context, userID model.UserId) (*UserProfile, error)
	Deposit(ctx context.Context, userID model.UserId, symbol string, amount model.Quantity) error
	Balance(ctx context.Context, userID model.UserId, symbol string) (*AssetBalance, error)
}

type AssetBalance struct {
	Asset  model.Asset    `json:"asset"`
	Units  model.Quantity `json:"units"`
	Amount string         `json:"amount"`
}

type UserProfile struct {
	*repository.User
	Balances []AssetBalance `json:"balances"`
}

type userUseCaseImpl struct {
	repo    repository.UserRepository
	ledger  ledger.Ledger
	catalog ledger.Catalog
	log     *logger.Logger
}

type UserUseCaseOpts struct {
	UserRepo repository.UserRepository
	Ledger   ledger.Ledger
	Catalog  ledger.Catalog
	Logger   *logger.Logger
}

func NewUserUseCase(opts UserUseCaseOpts) UserUseCase {
	if opts.Logger == nil {
		opts.Logger = logger.NewNop()
	}
	return &userUseCaseImpl{
		repo:    opts.UserRepo,
		ledger:  opts.Ledger,
		catalog: opts.Catalog,
		log:     opts.Logger,
	}
}

// Register stores the user and opens a ledger account for every listed asset.
func (uc *userUseCaseImpl) Register(ctx context.Context, username, password string) (model.UserId, error) {
	if username == "" || password == "" {
		return 0, errors.New("username and password are required")
	}
	id, err := uc.repo.Create(ctx, username, password)
	if err != nil {
		return 0, err
	}

	assets, err := uc.catalog.Assets(ctx)
	if err != nil {
		return 0, err
	}
	symbols := make([]string, 0, len(assets))
	for _, a := range assets {
		symbols = append(symbols, a.Symbol)
	}
	if err := uc.ledger.OpenAccounts(ctx, id, symbols...); err != nil {
		// accounts are reopened on first deposit or order
		uc.log.ErrorContext(ctx, err, logger.NewField("user", id), logger.NewField("step", "open accounts"))
		return 0, err
	}
	uc.log.InfoContext(ctx, "user registered", logger.NewField("user", id), logger.NewField("assets", len(symbols)))
	return id, nil
}

func (uc *userUseCaseImpl) Login(ctx context.Context, username, password string) (*repository.User, error) {
	return uc.repo.VerifyPassword(ctx, username, password)
}

func (uc *userUseCaseImpl) GetProfile(ctx context.Context, userID model.UserId) (*UserProfile, error) {
	user, err := uc.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	assets, err := uc.catalog.Assets(ctx)
	if err != nil {
		return nil, err
	}
	profile := &UserProfile{User: user, Balances: make([]AssetBalance, 0, len(assets))}
	for _, a := range assets {
		b, err := uc.balance(ctx, userID, a)
		if errors.Is(err, ledger.ErrAccountNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		profile.Balances = append(profile.Balances, *b)
	}
	return profile, nil
}

func (uc *userUseCaseImpl) Deposit(ctx context.Context, userID model.UserId, symbol string, amount model.Quantity) error {
	if amount == 0 {
		return ErrInvalidAmount
	}
	if _, err := uc.catalog.Asset(ctx, symbol); err != nil {
		return err
	}
	if err := uc.ledger.OpenAccounts(ctx, userID, symbol); err != nil {
		return err
	}
	if err := uc.ledger.Deposit(ctx, userID, symbol, amount); err != nil {
		return err
	}
	uc.log.InfoContext(ctx, "deposit",
		logger.NewField("user", userID),
		logger.NewField("asset", symbol),
		logger.NewField("units", amount))
	return nil
}

func (uc *userUseCaseImpl) Balance(ctx context.Context, userID model.UserId, symbol string) (*AssetBalance, error) {
	asset, err := uc.catalog.Asset(ctx, symbol)
	if err != nil {
		return nil, err
	}
	return uc.balance(ctx, userID, asset)
}

func (uc *userUseCaseImpl) balance(ctx context.Context, userID model.UserId, asset model.Asset) (*AssetBalance, error) {
	units, err := uc.ledger.Balance(ctx, userID, asset.Symbol)
	if err != nil {
		return nil, fmt.Errorf("balance of %s: %w", asset.Symbol, err)
	}
	return &AssetBalance{
		Asset:  asset,
		Units:  units,
		Amount: util.FromUnits(uint64(units), asset.Decimals).StringFixed(int32(asset.Decimals)),
	}, nil
}
