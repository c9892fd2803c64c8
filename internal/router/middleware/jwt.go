package middleware

import (
	"fmt"
	"time"

	"github.com/Yusufzhafir/escrow-orderbook/pkg/model"
	"github.com/golang-jwt/jwt/v5"
)

// JWTMaker signs and verifies HS256 user tokens.
type JWTMaker struct {
	secret []byte
}

func NewJWTMaker(secret string) *JWTMaker {
	return &JWTMaker{secret: []byte(secret)}
}

func (m *JWTMaker) CreateToken(id model.UserId, username string, duration time.Duration) (string, *UserClaims, error) {
	claims := NewUserClaims(id, username, duration)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", nil, fmt.Errorf("sign token: %w", err)
	}
	return signed, claims, nil
}

func (m *JWTMaker) VerifyToken(token string) (*UserClaims, error) {
	claims := &UserClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	return claims, nil
}
