package port

import (
	"context"

	"github.com/rl1809/cart-sync/internal/core/domain"
)

// Session carries the caller identity for write operations. The engine treats
// authentication as an opaque signal; token mechanics live elsewhere.
type Session struct {
	UserID        string
	Authenticated bool
}

type CartWriter interface {
	// UpdateItem writes the authoritative quantity for one cart line.
	UpdateItem(ctx context.Context, line domain.CartLine, quantity float64, unit domain.MeasurementUnit, sess Session) error

	// RemoveItem deletes one cart line.
	RemoveItem(ctx context.Context, itemID string, sess Session) error

	// SaveCart replaces the whole cart in a single write, e.g. when merging a
	// guest cart after login.
	SaveCart(ctx context.Context, lines []domain.CartLine, sess Session) error
}
