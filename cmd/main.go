package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Yusufzhafir/escrow-orderbook/internal/config"
	"github.com/Yusufzhafir/escrow-orderbook/internal/ledger"
	"github.com/Yusufzhafir/escrow-orderbook/internal/publisher/kafka"
	ledgerRepository "github.com/Yusufzhafir/escrow-orderbook/internal/repository/ledger"
	tradeRepository "github.com/Yusufzhafir/escrow-orderbook/internal/repository/trade"
	userRepository "github.com/Yusufzhafir/escrow-orderbook/internal/repository/user"
	"github.com/Yusufzhafir/escrow-orderbook/internal/router"
	"github.com/Yusufzhafir/escrow-orderbook/internal/router/middleware"
	"github.com/Yusufzhafir/escrow-orderbook/internal/usecase/order"
	"github.com/Yusufzhafir/escrow-orderbook/internal/usecase/user"
	"github.com/Yusufzhafir/escrow-orderbook/internal/websocket"
	"github.com/Yusufzhafir/escrow-orderbook/pkg/logger"
	"github.com/jmoiron/sqlx"
	tb "github.com/tigerbeetle/tigerbeetle-go"
	tbTypes "github.com/tigerbeetle/tigerbeetle-go/pkg/types"

	_ "github.com/lib/pq"
)

func main() {
	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.MustLoad()
	log, err := logger.New(logger.Level(cfg.App.LogLevel))
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	log = log.With(logger.NewField("app", cfg.App.Name))

	db, err := sqlx.Connect("postgres", cfg.DB.DSN())
	if err != nil {
		log.Error(err, logger.NewField("step", "connect postgres"))
		os.Exit(1)
	}
	defer db.Close()
	if err := ledgerRepository.Migrate(rootCtx, db); err != nil {
		log.Error(err, logger.NewField("step", "migrate"))
		os.Exit(1)
	}

	userRepo := userRepository.NewUserRepository(db)
	ledgerRepo := ledgerRepository.NewLedgerRepository(db)
	tradeRepo := tradeRepository.NewTradeRepository(db)

	var (
		books   ledger.Ledger
		catalog ledger.Catalog
	)
	switch cfg.App.Ledger {
	case config.LedgerTigerBeetle:
		tbClient, err := tb.NewClient(tbTypes.ToUint128(cfg.TigerBeetle.ClusterID), cfg.TigerBeetle.Addresses)
		if err != nil {
			log.Error(err, logger.NewField("step", "tigerbeetle client"))
			os.Exit(1)
		}
		defer tbClient.Close()
		books = ledger.NewTigerBeetle(tbClient, ledgerRepo)
		catalog = ledgerRepo
	default:
		books = ledger.NewMemory()
		catalog = ledger.NewStaticCatalog(cfg.App.Assets...)
	}
	log.Info("ledger ready", logger.NewField("backend", cfg.App.Ledger))

	hub := websocket.NewHub(websocket.Config{
		SendBuffer:    cfg.WS.SendBuffer,
		PublishBuffer: cfg.WS.PublishBuffer,
	}, catalog, log.With(logger.NewField("component", "ws")))
	go hub.Run(rootCtx)

	orderUseCase := order.NewOrderUseCase(order.OrderUseCaseOpts{
		Ledger:  books,
		History: tradeRepo,
		Logger:  log.With(logger.NewField("component", "order")),
	})
	orderUseCase.RegisterTradeSink(tradeRepo)
	orderUseCase.RegisterTradeSink(hub)

	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer producer.Close()
		orderUseCase.RegisterTradeSink(producer)
		log.Info("kafka trade stream enabled", logger.NewField("topic", cfg.Kafka.Topic))
	}

	userUseCase := user.NewUserUseCase(user.UserUseCaseOpts{
		UserRepo: userRepo,
		Ledger:   books,
		Catalog:  catalog,
		Logger:   log.With(logger.NewField("component", "user")),
	})

	serveMux := http.NewServeMux()
	router.BindRouter(router.BindRouterOpts{
		ServerRouter: serveMux,
		OrderUseCase: orderUseCase,
		UserUseCase:  userUseCase,
		Catalog:      catalog,
		TokenMaker:   middleware.NewJWTMaker(cfg.App.JWTSecret),
		TokenTTL:     cfg.App.TokenTTL,
		TradeFeed:    http.HandlerFunc(hub.ServeWS),
		Logger:       log.With(logger.NewField("component", "http")),
	})

	server := http.Server{
		Addr:    cfg.App.HTTPAddr,
		Handler: router.Cors(serveMux),
	}

	go func() {
		log.Info("HTTP server listening", logger.NewField("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(err, logger.NewField("step", "listen"))
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("graceful shutdown failed, forcing close", logger.NewField("error", err.Error()))
		_ = server.Close()
	}

	log.Info("server stopped")
}
