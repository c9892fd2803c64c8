package ledger

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

// Schema creates every table the repositories use.
const Schema = `
CREATE TABLE IF NOT EXISTS users (
    id            BIGSERIAL PRIMARY KEY,
    username      TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS asset_ledger (
    id                  BIGSERIAL PRIMARY KEY,
    symbol              TEXT NOT NULL UNIQUE,
    decimals            SMALLINT NOT NULL,
    tb_ledger_id        BIGINT NOT NULL UNIQUE,
    custody_account_id  NUMERIC(39,0) NOT NULL,
    treasury_account_id NUMERIC(39,0) NOT NULL,
    created_at          TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS user_account (
    id              BIGSERIAL PRIMARY KEY,
    user_id         BIGINT NOT NULL REFERENCES users(id),
    asset_ledger_id BIGINT NOT NULL REFERENCES asset_ledger(id),
    tb_account_id   NUMERIC(39,0) NOT NULL,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
    UNIQUE (user_id, asset_ledger_id)
);

CREATE TABLE IF NOT EXISTS trade (
    id           BIGSERIAL PRIMARY KEY,
    book_owner   BIGINT NOT NULL,
    base         TEXT NOT NULL,
    quote        TEXT NOT NULL,
    side         SMALLINT NOT NULL,
    maker_id     NUMERIC(20,0) NOT NULL,
    taker_id     NUMERIC(20,0) NOT NULL,
    buyer_id     BIGINT NOT NULL,
    seller_id    BIGINT NOT NULL,
    price        NUMERIC(20,0) NOT NULL,
    quantity     NUMERIC(20,0) NOT NULL,
    quote_amount NUMERIC(20,0) NOT NULL,
    traded_at    TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS trade_book_idx ON trade (book_owner, base, quote, id);
`

func Migrate(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, Schema)
	return errors.Wrap(err, "apply schema")
}
