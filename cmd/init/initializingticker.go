package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/Yusufzhafir/escrow-orderbook/internal/config"
	ledgerCore "github.com/Yusufzhafir/escrow-orderbook/internal/ledger"
	ledgerRepository "github.com/Yusufzhafir/escrow-orderbook/internal/repository/ledger"
	"github.com/Yusufzhafir/escrow-orderbook/pkg/logger"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	tb "github.com/tigerbeetle/tigerbeetle-go"
	tbTypes "github.com/tigerbeetle/tigerbeetle-go/pkg/types"

	_ "github.com/lib/pq"
)

// init applies the schema and, for every configured asset that is not yet
// registered, creates its TigerBeetle custody and treasury accounts.
func main() {
	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.MustLoad()
	log, err := logger.New(logger.Level(cfg.App.LogLevel))
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if err := run(rootCtx, cfg, log); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	db, err := sqlx.Connect("postgres", cfg.DB.DSN())
	if err != nil {
		return errors.Wrap(err, "connect postgres")
	}
	defer db.Close()

	if err := ledgerRepository.Migrate(ctx, db); err != nil {
		return err
	}

	client, err := tb.NewClient(tbTypes.ToUint128(cfg.TigerBeetle.ClusterID), cfg.TigerBeetle.Addresses)
	if err != nil {
		return errors.Wrap(err, "connect tigerbeetle")
	}
	defer client.Close()

	repo := ledgerRepository.NewLedgerRepository(db)
	existing, err := repo.ListLedgers(ctx)
	if err != nil {
		return err
	}
	known := make(map[string]bool, len(existing))
	used := make(map[int64]bool, len(existing))
	for _, l := range existing {
		known[l.Symbol] = true
		used[l.TBLedgerID] = true
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin")
	}
	defer tx.Rollback()

	var accounts []tbTypes.Account
	tbLedger := cfg.TigerBeetle.FirstLedger
	for _, asset := range cfg.App.Assets {
		if known[asset.Symbol] {
			log.Info("asset already registered", logger.NewField("asset", asset.Symbol))
			continue
		}
		for used[int64(tbLedger)] {
			tbLedger += 10
		}
		used[int64(tbLedger)] = true

		custody, treasury := ledgerCore.HouseAccounts(tbLedger)
		if _, err := repo.CreateLedger(ctx, tx, asset, tbLedger, custody.ID, treasury.ID); err != nil {
			return err
		}
		accounts = append(accounts, custody, treasury)
		log.Info("registering asset",
			logger.NewField("asset", asset.Symbol),
			logger.NewField("decimals", asset.Decimals),
			logger.NewField("tb_ledger", tbLedger))
	}
	if len(accounts) == 0 {
		return nil
	}

	results, err := client.CreateAccounts(accounts)
	if err != nil {
		return errors.Wrap(err, "create house accounts")
	}
	for _, r := range results {
		log.Warn("house account rejected",
			logger.NewField("index", r.Index),
			logger.NewField("result", r.Result))
	}
	if len(results) > 0 {
		return errors.Errorf("%d house accounts rejected", len(results))
	}

	return errors.Wrap(tx.Commit(), "commit asset ledgers")
}
