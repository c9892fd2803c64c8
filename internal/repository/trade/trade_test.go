package trade

import (
	"testing"
	"time"

	"github.com/Yusufzhafir/escrow-orderbook/pkg/model"
	"github.com/stretchr/testify/assert"
)

func TestTradeRecordMapping(t *testing.T) {
	book := model.BookKey{Owner: 4, Base: "ETH", Quote: "USD"}
	tr := model.Trade{
		Side:        model.ASK,
		MakerID:     11,
		TakerID:     12,
		Buyer:       5,
		Seller:      6,
		Price:       250_000,
		Quantity:    3,
		QuoteAmount: 750_000,
		Timestamp:   time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
	}

	rec := NewTradeRecord(book, tr)
	assert.Equal(t, int64(4), rec.BookOwner)
	assert.Equal(t, "ETH", rec.Base)
	assert.Equal(t, int16(model.ASK), rec.Side)
	assert.Equal(t, tr, rec.Trade())
}
