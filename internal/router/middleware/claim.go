package middleware

import (
	"time"

	"github.com/Yusufzhafir/escrow-orderbook/pkg/model"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type UserClaims struct {
	UserId model.UserId `json:"user_id"`
	jwt.RegisteredClaims
}

func NewUserClaims(id model.UserId, username string, duration time.Duration) *UserClaims {
	now := time.Now()
	return &UserClaims{
		UserId: id,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(duration)),
		},
	}
}
