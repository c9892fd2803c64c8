package router

import (
	"errors"
	"net/http"

	"github.com/Yusufzhafir/escrow-orderbook/internal/engine"
	"github.com/Yusufzhafir/escrow-orderbook/internal/ledger"
	"github.com/Yusufzhafir/escrow-orderbook/internal/router/middleware"
	"github.com/Yusufzhafir/escrow-orderbook/internal/usecase/order"
	"github.com/Yusufzhafir/escrow-orderbook/pkg/model"
	"github.com/Yusufzhafir/escrow-orderbook/pkg/util"
)

type BookRouter interface {
	List(w http.ResponseWriter, r *http.Request)
	Initialize(w http.ResponseWriter, r *http.Request)
	Buy(w http.ResponseWriter, r *http.Request)
	Sell(w http.ResponseWriter, r *http.Request)
	Top(w http.ResponseWriter, r *http.Request)
	Depth(w http.ResponseWriter, r *http.Request)
	Escrow(w http.ResponseWriter, r *http.Request)
	Trades(w http.ResponseWriter, r *http.Request)
}

type bookRouterImpl struct {
	usecase order.OrderUseCase
	catalog ledger.Catalog
}

func NewBookRouter(usecase order.OrderUseCase, catalog ledger.Catalog) BookRouter {
	return &bookRouterImpl{
		usecase: usecase,
		catalog: catalog,
	}
}

func (br *bookRouterImpl) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, br.usecase.ListBooks(r.Context()))
}

func (br *bookRouterImpl) Initialize(w http.ResponseWriter, r *http.Request) {
	type InitializeRequest struct {
		Base  string `json:"base"`
		Quote string `json:"quote"`
	}
	req, err := decodeJSON[InitializeRequest](w, r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}
	claims, _ := middleware.ClaimsFromContext(r.Context())

	base, err := br.catalog.Asset(r.Context(), req.Base)
	if err != nil {
		writeError(w, err)
		return
	}
	quote, err := br.catalog.Asset(r.Context(), req.Quote)
	if err != nil {
		writeError(w, err)
		return
	}

	key, err := br.usecase.Initialize(r.Context(), claims.UserId, base, quote)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, key)
}

type placeOrderRequest struct {
	Price model.Price    `json:"price"`
	Size  model.Quantity `json:"size"`
}

func (br *bookRouterImpl) Buy(w http.ResponseWriter, r *http.Request) {
	br.place(w, r, model.BID)
}

func (br *bookRouterImpl) Sell(w http.ResponseWriter, r *http.Request) {
	br.place(w, r, model.ASK)
}

func (br *bookRouterImpl) place(w http.ResponseWriter, r *http.Request, side model.Side) {
	key, err := bookKeyFromPath(r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}
	req, err := decodeJSON[placeOrderRequest](w, r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}
	claims, _ := middleware.ClaimsFromContext(r.Context())

	var res *engine.PlaceResult
	if side == model.BID {
		res, err = br.usecase.PlaceBuyOrder(r.Context(), claims.UserId, key, req.Price, req.Size)
	} else {
		res, err = br.usecase.PlaceSellOrder(r.Context(), claims.UserId, key, req.Price, req.Size)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (br *bookRouterImpl) Top(w http.ResponseWriter, r *http.Request) {
	type TopResponse struct {
		*model.TopOfBook
		BestBidText string `json:"bestBidText"`
		BestAskText string `json:"bestAskText"`
		SpreadText  string `json:"spreadText"`
	}
	key, err := bookKeyFromPath(r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}
	top, err := br.usecase.GetTopOfBook(r.Context(), key)
	if err != nil {
		writeError(w, err)
		return
	}
	quote, err := br.catalog.Asset(r.Context(), key.Quote)
	if err != nil {
		writeError(w, err)
		return
	}

	text := func(level *model.MarketDepthLevel) string {
		if level == nil {
			return ""
		}
		return util.FromUnits(uint64(level.Price), quote.Decimals).String()
	}
	writeJSON(w, http.StatusOK, TopResponse{
		TopOfBook:   top,
		BestBidText: text(top.BestBid),
		BestAskText: text(top.BestAsk),
		SpreadText:  util.FromUnits(uint64(top.Spread), quote.Decimals).String(),
	})
}

func (br *bookRouterImpl) Depth(w http.ResponseWriter, r *http.Request) {
	key, err := bookKeyFromPath(r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}
	levels, err := intQuery(r, "levels", 10)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}
	depth, err := br.usecase.BookDepth(r.Context(), key, levels)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, depth)
}

func (br *bookRouterImpl) Escrow(w http.ResponseWriter, r *http.Request) {
	key, err := bookKeyFromPath(r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}
	esc, err := br.usecase.Escrow(r.Context(), key)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, esc)
}

func (br *bookRouterImpl) Trades(w http.ResponseWriter, r *http.Request) {
	key, err := bookKeyFromPath(r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}
	limit, err := intQuery(r, "limit", 100)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}
	if limit > 1000 {
		writeJSONError(w, http.StatusBadRequest, errors.New("limit must be at most 1000"))
		return
	}
	trades, err := br.usecase.Trades(r.Context(), key, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, trades)
}
