package stockfeed

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/rl1809/cart-sync/internal/core/store"
)

// DeltaHandler is notified after each stock level lands in the store; the
// trigger orchestrator satisfies it.
type DeltaHandler interface {
	HandleStockDelta(itemID string, available float64)
}

type stockDelta struct {
	ItemID   string  `json:"item_id"`
	Quantity float64 `json:"quantity"`
}

// Consumer feeds incremental stock pushes from Kafka into the stock store.
type Consumer struct {
	reader  *kafka.Reader
	stock   *store.StockStore
	handler DeltaHandler
	logger  *zap.Logger
}

func NewConsumer(stock *store.StockStore, handler DeltaHandler, logger *zap.Logger, brokers []string, topic, groupID string) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MaxBytes: 10e6, // 10MB
	})
	return &Consumer{reader: reader, stock: stock, handler: handler, logger: logger}
}

func (c *Consumer) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		c.readAndApply(ctx)
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}

func (c *Consumer) readAndApply(ctx context.Context) {
	m, err := c.reader.ReadMessage(ctx)
	if err != nil {
		if ctx.Err() == nil {
			c.logger.Warn("stock delta read failed", zap.Error(err))
		}
		return
	}

	var delta stockDelta
	if err := json.Unmarshal(m.Value, &delta); err != nil {
		c.logger.Warn("malformed stock delta", zap.ByteString("payload", m.Value), zap.Error(err))
		return
	}
	if delta.ItemID == "" {
		c.logger.Warn("stock delta without item_id")
		return
	}

	c.stock.Update(delta.ItemID, delta.Quantity)
	if c.handler != nil {
		c.handler.HandleStockDelta(delta.ItemID, delta.Quantity)
	}
}
