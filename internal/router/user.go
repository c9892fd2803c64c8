package router

import (
	"errors"
	"net/http"
	"time"

	"github.com/Yusufzhafir/escrow-orderbook/internal/ledger"
	"github.com/Yusufzhafir/escrow-orderbook/internal/router/middleware"
	"github.com/Yusufzhafir/escrow-orderbook/internal/usecase/user"
	"github.com/Yusufzhafir/escrow-orderbook/pkg/model"
	"github.com/Yusufzhafir/escrow-orderbook/pkg/util"
)

type UserRouter interface {
	GetUser(w http.ResponseWriter, r *http.Request)
	RegisterUser(w http.ResponseWriter, r *http.Request)
	LoginUser(w http.ResponseWriter, r *http.Request)
	Deposit(w http.ResponseWriter, r *http.Request)
	Balance(w http.ResponseWriter, r *http.Request)
}

type userRouterImpl struct {
	usecase    user.UserUseCase
	catalog    ledger.Catalog
	tokenMaker *middleware.JWTMaker
	tokenTTL   time.Duration
}

func NewUserRouter(usecase user.UserUseCase, catalog ledger.Catalog, tokenMaker *middleware.JWTMaker, tokenTTL time.Duration) UserRouter {
	return &userRouterImpl{
		usecase:    usecase,
		catalog:    catalog,
		tokenMaker: tokenMaker,
		tokenTTL:   tokenTTL,
	}
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (ur *userRouterImpl) GetUser(w http.ResponseWriter, r *http.Request) {
	claims, _ := middleware.ClaimsFromContext(r.Context())
	profile, err := ur.usecase.GetProfile(r.Context(), claims.UserId)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (ur *userRouterImpl) RegisterUser(w http.ResponseWriter, r *http.Request) {
	req, err := decodeJSON[credentials](w, r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}
	if req.Username == "" || req.Password == "" {
		writeJSONError(w, http.StatusBadRequest, errors.New("username and password are required"))
		return
	}
	id, err := ur.usecase.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"id": id})
}

func (ur *userRouterImpl) LoginUser(w http.ResponseWriter, r *http.Request) {
	type LoginResponse struct {
		Token     string       `json:"token"`
		UserID    model.UserId `json:"userId"`
		ExpiresAt time.Time    `json:"expiresAt"`
	}
	req, err := decodeJSON[credentials](w, r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}
	u, err := ur.usecase.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	token, claims, err := ur.tokenMaker.CreateToken(u.ID, u.Username, ur.tokenTTL)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, LoginResponse{
		Token:     token,
		UserID:    u.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	})
}

// Deposit takes a decimal amount, e.g. "12.50", in the asset's own precision.
func (ur *userRouterImpl) Deposit(w http.ResponseWriter, r *http.Request) {
	type DepositRequest struct {
		Asset  string `json:"asset"`
		Amount string `json:"amount"`
	}
	req, err := decodeJSON[DepositRequest](w, r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}
	asset, err := ur.catalog.Asset(r.Context(), req.Asset)
	if err != nil {
		writeError(w, err)
		return
	}
	units, err := util.ToUnits(req.Amount, asset.Decimals)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}

	claims, _ := middleware.ClaimsFromContext(r.Context())
	if err := ur.usecase.Deposit(r.Context(), claims.UserId, asset.Symbol, model.Quantity(units)); err != nil {
		writeError(w, err)
		return
	}
	balance, err := ur.usecase.Balance(r.Context(), claims.UserId, asset.Symbol)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, balance)
}

func (ur *userRouterImpl) Balance(w http.ResponseWriter, r *http.Request) {
	claims, _ := middleware.ClaimsFromContext(r.Context())
	balance, err := ur.usecase.Balance(r.Context(), claims.UserId, r.PathValue("asset"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, balance)
}
