package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/rl1809/cart-sync/internal/core/store"
	"github.com/rl1809/cart-sync/internal/port"
)

// CartCorrector applies validator-driven corrections: an optimistic cart
// mutation followed by an immediate (not debounced) write, rolled back on
// failure. Corrections bypass the coalescer's quiet period because the
// validator awaits each one individually; any queued intent for the item is
// superseded and canceled.
type CartCorrector struct {
	cart      *store.CartStore
	writer    port.CartWriter
	coalescer *WriteCoalescer
	session   func() port.Session
	logger    *zap.Logger
}

func NewCartCorrector(cart *store.CartStore, writer port.CartWriter, coalescer *WriteCoalescer, session func() port.Session, logger *zap.Logger) *CartCorrector {
	return &CartCorrector{
		cart:      cart,
		writer:    writer,
		coalescer: coalescer,
		session:   session,
		logger:    logger,
	}
}

// Apply sets an item to the given quantity, removing it at zero.
func (c *CartCorrector) Apply(ctx context.Context, itemID string, quantity float64) error {
	c.coalescer.CancelOperation(itemID)

	prior := c.cart.Snapshot()
	sess := c.session()

	if quantity <= 0 {
		c.cart.Remove(itemID)
		if err := c.writer.RemoveItem(ctx, itemID, sess); err != nil {
			c.cart.Restore(prior)
			return fmt.Errorf("remove %s: %w", itemID, err)
		}
		return nil
	}

	line, ok := c.cart.Line(itemID)
	if !ok {
		return fmt.Errorf("correct %s: item not in cart", itemID)
	}

	c.cart.SetQuantity(itemID, quantity)
	if err := c.writer.UpdateItem(ctx, line, quantity, line.Unit, sess); err != nil {
		c.cart.Restore(prior)
		return fmt.Errorf("update %s: %w", itemID, err)
	}

	c.logger.Debug("correction applied",
		zap.String("item_id", itemID),
		zap.Float64("quantity", quantity))
	return nil
}
