package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Yusufzhafir/escrow-orderbook/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	maker := NewJWTMaker("s3cret")
	token, claims, err := maker.CreateToken(42, "alice", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, model.UserId(42), claims.UserId)

	got, err := maker.VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, model.UserId(42), got.UserId)
	assert.Equal(t, "alice", got.Subject)

	_, err = NewJWTMaker("other").VerifyToken(token)
	assert.Error(t, err)

	expired, _, err := maker.CreateToken(42, "alice", -time.Minute)
	require.NoError(t, err)
	_, err = maker.VerifyToken(expired)
	assert.Error(t, err)
}

func TestAuthMiddleware(t *testing.T) {
	maker := NewJWTMaker("s3cret")
	var seen model.UserId
	h := AuthMiddleware(maker)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		require.True(t, ok)
		seen = claims.UserId
	}))

	token, _, err := maker.CreateToken(7, "bob", time.Minute)
	require.NoError(t, err)

	cases := []struct {
		name   string
		header string
		status int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + token, http.StatusUnauthorized},
		{"garbage", "Bearer nope", http.StatusUnauthorized},
		{"valid", "Bearer " + token, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tc.status, rec.Code)
		})
	}
	assert.Equal(t, model.UserId(7), seen)
}
