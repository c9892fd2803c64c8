package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Yusufzhafir/escrow-orderbook/pkg/model"
	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
)

// MessageWriter is the part of kafka.Writer the producer uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// TradeEvent is the value written for each trade; the message key is the
// book, so every trade of one book lands on the same partition in order.
type TradeEvent struct {
	Book  model.BookKey `json:"book"`
	Trade model.Trade   `json:"trade"`
}

// Producer streams trades to a Kafka topic. It implements engine.TradeSink.
type Producer struct {
	writer MessageWriter
}

func NewProducer(brokers []string, topic string) *Producer {
	return NewProducerWithWriter(&kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 10 * time.Millisecond,
	})
}

func NewProducerWithWriter(w MessageWriter) *Producer {
	return &Producer{writer: w}
}

func (p *Producer) PublishTrades(ctx context.Context, book model.BookKey, trades []model.Trade) error {
	if len(trades) == 0 {
		return nil
	}
	key := []byte(book.String())
	msgs := make([]kafka.Message, 0, len(trades))
	for _, t := range trades {
		value, err := json.Marshal(TradeEvent{Book: book, Trade: t})
		if err != nil {
			return errors.Wrap(err, "marshal trade event")
		}
		msgs = append(msgs, kafka.Message{Key: key, Value: value, Time: t.Timestamp})
	}
	return errors.Wrapf(p.writer.WriteMessages(ctx, msgs...), "write %d trades of %s", len(msgs), book)
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
