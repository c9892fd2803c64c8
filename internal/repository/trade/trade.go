package trade

import (
	"context"
	"time"

	"github.com/Yusufzhafir/escrow-orderbook/pkg/model"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

// TradeRecord is one row of the trade table.
type TradeRecord struct {
	ID          int64     `db:"id"`
	BookOwner   int64     `db:"book_owner"`
	Base        string    `db:"base"`
	Quote       string    `db:"quote"`
	Side        int16     `db:"side"`
	MakerID     uint64    `db:"maker_id"`
	TakerID     uint64    `db:"taker_id"`
	BuyerID     int64     `db:"buyer_id"`
	SellerID    int64     `db:"seller_id"`
	Price       uint64    `db:"price"`
	Quantity    uint64    `db:"quantity"`
	QuoteAmount uint64    `db:"quote_amount"`
	TradedAt    time.Time `db:"traded_at"`
}

func NewTradeRecord(book model.BookKey, t model.Trade) TradeRecord {
	return TradeRecord{
		BookOwner:   int64(book.Owner),
		Base:        book.Base,
		Quote:       book.Quote,
		Side:        int16(t.Side),
		MakerID:     uint64(t.MakerID),
		TakerID:     uint64(t.TakerID),
		BuyerID:     int64(t.Buyer),
		SellerID:    int64(t.Seller),
		Price:       uint64(t.Price),
		Quantity:    uint64(t.Quantity),
		QuoteAmount: uint64(t.QuoteAmount),
		TradedAt:    t.Timestamp,
	}
}

func (r TradeRecord) Trade() model.Trade {
	return model.Trade{
		Side:        model.Side(r.Side),
		MakerID:     model.OrderId(r.MakerID),
		TakerID:     model.OrderId(r.TakerID),
		Buyer:       model.UserId(r.BuyerID),
		Seller:      model.UserId(r.SellerID),
		Price:       model.Price(r.Price),
		Quantity:    model.Quantity(r.Quantity),
		QuoteAmount: model.Quantity(r.QuoteAmount),
		Timestamp:   r.TradedAt,
	}
}

type TradeRepository interface {
	// PublishTrades stores trades so the repository can serve as a book's
	// trade sink.
	PublishTrades(ctx context.Context, book model.BookKey, trades []model.Trade) error
	ListTrades(ctx context.Context, book model.BookKey, limit int) ([]model.Trade, error)
}

type tradeRepositoryImpl struct {
	db *sqlx.DB
}

func NewTradeRepository(db *sqlx.DB) TradeRepository {
	return &tradeRepositoryImpl{db: db}
}

func (r *tradeRepositoryImpl) PublishTrades(ctx context.Context, book model.BookKey, trades []model.Trade) error {
	if len(trades) == 0 {
		return nil
	}
	records := make([]TradeRecord, 0, len(trades))
	for _, t := range trades {
		records = append(records, NewTradeRecord(book, t))
	}
	_, err := r.db.NamedExecContext(ctx,
		`INSERT INTO trade (book_owner, base, quote, side, maker_id, taker_id, buyer_id, seller_id, price, quantity, quote_amount, traded_at)
         VALUES (:book_owner, :base, :quote, :side, :maker_id, :taker_id, :buyer_id, :seller_id, :price, :quantity, :quote_amount, :traded_at)`,
		records)
	return errors.Wrapf(err, "insert %d trades of %s", len(records), book)
}

// ListTrades returns the latest trades of book, newest first.
func (r *tradeRepositoryImpl) ListTrades(ctx context.Context, book model.BookKey, limit int) ([]model.Trade, error) {
	var records []TradeRecord
	err := r.db.SelectContext(ctx, &records,
		`SELECT id, book_owner, base, quote, side, maker_id, taker_id, buyer_id, seller_id, price, quantity, quote_amount, traded_at
         FROM trade
         WHERE book_owner=$1 AND base=$2 AND quote=$3
         ORDER BY id DESC
         LIMIT $4`,
		int64(book.Owner), book.Base, book.Quote, limit)
	if err != nil {
		return nil, errors.Wrapf(err, "list trades of %s", book)
	}
	trades := make([]model.Trade, 0, len(records))
	for _, rec := range records {
		trades = append(trades, rec.Trade())
	}
	return trades, nil
}
