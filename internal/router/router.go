package router

import (
	"net/http"
	"time"

	"github.com/Yusufzhafir/escrow-orderbook/internal/ledger"
	"github.com/Yusufzhafir/escrow-orderbook/internal/router/middleware"
	"github.com/Yusufzhafir/escrow-orderbook/internal/usecase/order"
	"github.com/Yusufzhafir/escrow-orderbook/internal/usecase/user"
	"github.com/Yusufzhafir/escrow-orderbook/pkg/logger"
	"github.com/Yusufzhafir/escrow-orderbook/pkg/util"
)

const requestIDHeader = "X-Request-ID"

type statusWriter struct {
	http.ResponseWriter
	status int
	n      int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(b)
	w.n += n
	return n, err
}

// logging tags every request with an id and writes one access log line.
func logging(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := util.WithRequestID(r.Context(), r.Header.Get(requestIDHeader))
			w.Header().Set(requestIDHeader, util.RequestID(ctx))

			sw := &statusWriter{ResponseWriter: w}
			start := time.Now()
			next.ServeHTTP(sw, r.WithContext(ctx))
			log.InfoContext(ctx, "http request",
				logger.NewField("method", r.Method),
				logger.NewField("path", r.URL.Path),
				logger.NewField("status", sw.status),
				logger.NewField("bytes", sw.n),
				logger.NewField("duration", time.Since(start)))
		})
	}
}

func Cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Vary", "Origin")

			reqHdrs := r.Header.Get("Access-Control-Request-Headers")
			if reqHdrs == "" {
				reqHdrs = "Content-Type, Authorization"
			}
			w.Header().Set("Access-Control-Allow-Headers", reqHdrs)

			reqMethod := r.Header.Get("Access-Control-Request-Method")
			if reqMethod == "" {
				reqMethod = "GET, POST, OPTIONS"
			}
			w.Header().Set("Access-Control-Allow-Methods", reqMethod)
			w.Header().Set("Access-Control-Max-Age", "86400")
		}

		// preflight never reaches the route table
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

const bookPath = "/api/v1/book/{owner}/{base}/{quote}"

func bindBook(serverRouter *http.ServeMux, opts BindRouterOpts) {
	auth := middleware.AuthMiddleware(opts.TokenMaker)
	logged := logging(opts.Logger)
	br := NewBookRouter(opts.OrderUseCase, opts.Catalog)

	serverRouter.Handle("GET /api/v1/book", logged(http.HandlerFunc(br.List)))
	serverRouter.Handle("POST /api/v1/book", logged(auth(http.HandlerFunc(br.Initialize))))
	serverRouter.Handle("POST "+bookPath+"/buy", logged(auth(http.HandlerFunc(br.Buy))))
	serverRouter.Handle("POST "+bookPath+"/sell", logged(auth(http.HandlerFunc(br.Sell))))
	serverRouter.Handle("GET "+bookPath+"/top", logged(http.HandlerFunc(br.Top)))
	serverRouter.Handle("GET "+bookPath+"/depth", logged(http.HandlerFunc(br.Depth)))
	serverRouter.Handle("GET "+bookPath+"/escrow", logged(http.HandlerFunc(br.Escrow)))
	serverRouter.Handle("GET "+bookPath+"/trades", logged(http.HandlerFunc(br.Trades)))
}

func bindUser(serverRouter *http.ServeMux, opts BindRouterOpts) {
	auth := middleware.AuthMiddleware(opts.TokenMaker)
	logged := logging(opts.Logger)
	ur := NewUserRouter(opts.UserUseCase, opts.Catalog, opts.TokenMaker, opts.TokenTTL)

	serverRouter.Handle("GET /api/v1/user/", logged(auth(http.HandlerFunc(ur.GetUser))))
	serverRouter.Handle("POST /api/v1/user/register", logged(http.HandlerFunc(ur.RegisterUser)))
	serverRouter.Handle("POST /api/v1/user/login", logged(http.HandlerFunc(ur.LoginUser)))
	serverRouter.Handle("POST /api/v1/user/deposit", logged(auth(http.HandlerFunc(ur.Deposit))))
	serverRouter.Handle("GET /api/v1/user/balance/{asset}", logged(auth(http.HandlerFunc(ur.Balance))))
}

type BindRouterOpts struct {
	ServerRouter *http.ServeMux
	OrderUseCase order.OrderUseCase
	UserUseCase  user.UserUseCase
	Catalog      ledger.Catalog
	TokenMaker   *middleware.JWTMaker
	TokenTTL     time.Duration
	// TradeFeed serves the websocket trade feed when set.
	TradeFeed http.Handler
	Logger    *logger.Logger
}

func BindRouter(opts BindRouterOpts) {
	if opts.Logger == nil {
		opts.Logger = logger.NewNop()
	}
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = 24 * time.Hour
	}
	bindBook(opts.ServerRouter, opts)
	bindUser(opts.ServerRouter, opts)
	if opts.TradeFeed != nil {
		opts.ServerRouter.Handle("GET /ws", opts.TradeFeed)
	}

	//healthcheck
	opts.ServerRouter.Handle("GET /healthz", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status": 200,
			"health": "healthy",
		})
	}))
}
