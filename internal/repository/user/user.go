package user

import (
	"context"
	"database/sql"
	"time"

	"github.com/Yusufzhafir/escrow-orderbook/pkg/model"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrUsernameTaken      = errors.New("username already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
)

const uniqueViolation = "23505"

type User struct {
	ID           model.UserId `db:"id" json:"id"`
	Username     string       `db:"username" json:"username"`
	PasswordHash string       `db:"password_hash" json:"-"`
	CreatedAt    time.Time    `db:"created_at" json:"createdAt"`
}

type UserRepository interface {
	Create(ctx context.Context, username, password string) (model.UserId, error)
	GetByID(ctx context.Context, id model.UserId) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	VerifyPassword(ctx context.Context, username, password string) (*User, error)
}

type userRepositoryImpl struct {
	db *sqlx.DB
}

func NewUserRepository(db *sqlx.DB) UserRepository {
	return &userRepositoryImpl{db: db}
}

func (r *userRepositoryImpl) Create(ctx context.Context, username, password string) (model.UserId, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return 0, errors.Wrap(err, "hash password")
	}

	var id model.UserId
	err = r.db.QueryRowxContext(ctx,
		`INSERT INTO users (username, password_hash) VALUES ($1, $2) RETURNING id`,
		username, string(hash)).Scan(&id)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return 0, ErrUsernameTaken
	}
	if err != nil {
		return 0, errors.Wrap(err, "insert user")
	}
	return id, nil
}

func (r *userRepositoryImpl) GetByID(ctx context.Context, id model.UserId) (*User, error) {
	return r.get(ctx, `SELECT id, username, password_hash, created_at FROM users WHERE id=$1`, id)
}

func (r *userRepositoryImpl) GetByUsername(ctx context.Context, username string) (*User, error) {
	return r.get(ctx, `SELECT id, username, password_hash, created_at FROM users WHERE username=$1`, username)
}

func (r *userRepositoryImpl) get(ctx context.Context, query string, arg any) (*User, error) {
	u := &User{}
	err := r.db.GetContext(ctx, u, query, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "get user")
	}
	return u, nil
}

func (r *userRepositoryImpl) VerifyPassword(ctx context.Context, username, password string) (*User, error) {
	u, err := r.GetByUsername(ctx, username)
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}
