package user

import (
	"context"
	"testing"

	"github.com/Yusufzhafir/escrow-orderbook/internal/ledger"
	repository "github.com/Yusufzhafir/escrow-orderbook/internal/repository/user"
	"github.com/Yusufzhafir/escrow-orderbook/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	users map[string]*repository.User
	pass  map[string]string
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{users: map[string]*repository.User{}, pass: map[string]string{}}
}

func (f *fakeRepo) Create(_ context.Context, username, password string) (model.UserId, error) {
	if _, ok := f.users[username]; ok {
		return 0, repository.ErrUsernameTaken
	}
	id := model.UserId(len(f.users) + 1)
	f.users[username] = &repository.User{ID: id, Username: username}
	f.pass[username] = password
	return id, nil
}

func (f *fakeRepo) GetByID(_ context.Context, id model.UserId) (*repository.User, error) {
	for _, u := range f.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (f *fakeRepo) GetByUsername(_ context.Context, username string) (*repository.User, error) {
	u, ok := f.users[username]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return u, nil
}

func (f *fakeRepo) VerifyPassword(ctx context.Context, username, password string) (*repository.User, error) {
	u, err := f.GetByUsername(ctx, username)
	if err != nil || f.pass[username] != password {
		return nil, repository.ErrInvalidCredentials
	}
	return u, nil
}

// openRecorder wraps the in-memory ledger and remembers opened accounts.
type openRecorder struct {
	*ledger.Memory
	opened map[model.UserId][]string
}

func (o *openRecorder) OpenAccounts(ctx context.Context, user model.UserId, assets ...string) error {
	o.opened[user] = append(o.opened[user], assets...)
	return o.Memory.OpenAccounts(ctx, user, assets...)
}

func newUseCase() (UserUseCase, *openRecorder) {
	led := &openRecorder{Memory: ledger.NewMemory(), opened: map[model.UserId][]string{}}
	uc := NewUserUseCase(UserUseCaseOpts{
		UserRepo: newFakeRepo(),
		Ledger:   led,
		Catalog: ledger.NewStaticCatalog(
			model.Asset{Symbol: "USD", Decimals: 2},
			model.Asset{Symbol: "BTC", Decimals: 8},
		),
	})
	return uc, led
}

func TestRegisterOpensAccounts(t *testing.T) {
	ctx := context.Background()
	uc, led := newUseCase()

	id, err := uc.Register(ctx, "alice", "secret")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"BTC", "USD"}, led.opened[id])

	_, err = uc.Register(ctx, "alice", "other")
	assert.ErrorIs(t, err, repository.ErrUsernameTaken)

	_, err = uc.Register(ctx, "", "x")
	assert.Error(t, err)
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	uc, _ := newUseCase()
	id, err := uc.Register(ctx, "bob", "hunter2")
	require.NoError(t, err)

	u, err := uc.Login(ctx, "bob", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, id, u.ID)

	_, err = uc.Login(ctx, "bob", "wrong")
	assert.ErrorIs(t, err, repository.ErrInvalidCredentials)
}

func TestDepositAndBalance(t *testing.T) {
	ctx := context.Background()
	uc, _ := newUseCase()
	id, err := uc.Register(ctx, "carol", "pw")
	require.NoError(t, err)

	require.NoError(t, uc.Deposit(ctx, id, "USD", 12345))
	assert.ErrorIs(t, uc.Deposit(ctx, id, "USD", 0), ErrInvalidAmount)
	assert.ErrorIs(t, uc.Deposit(ctx, id, "DOGE", 1), ledger.ErrUnknownAsset)

	b, err := uc.Balance(ctx, id, "USD")
	require.NoError(t, err)
	assert.Equal(t, model.Quantity(12345), b.Units)
	assert.Equal(t, "123.45", b.Amount)

	_, err = uc.Balance(ctx, id, "DOGE")
	assert.ErrorIs(t, err, ledger.ErrUnknownAsset)

	profile, err := uc.GetProfile(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "carol", profile.Username)
	require.Len(t, profile.Balances, 2)
	for _, bal := range profile.Balances {
		if bal.Asset.Symbol == "BTC" {
			assert.Equal(t, "0.00000000", bal.Amount)
		}
	}
}
