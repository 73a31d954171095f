package port

import "context"

// StockFeed exposes the authoritative bulk stock view. Incremental deltas
// arrive separately through the stock feed consumer.
type StockFeed interface {
	Snapshot(ctx context.Context) (map[string]float64, error)
}
