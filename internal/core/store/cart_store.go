package store

import (
	"sort"
	"sync"

	"github.com/rl1809/cart-sync/internal/core/domain"
)

// Snapshot is a deep copy of the cart at one point in time. Callers take one
// before an optimistic mutation and hand it back to Restore on write failure.
type Snapshot struct {
	Quantities map[string]float64
	Details    map[string]domain.CartLine
}

// CartStore is the local cart projection: quantity-by-id plus detail-by-id.
// It knows nothing about network state; the owning component decides when to
// roll back.
type CartStore struct {
	mu         sync.RWMutex
	quantities map[string]float64
	details    map[string]domain.CartLine
}

func NewCartStore() *CartStore {
	return &CartStore{
		quantities: make(map[string]float64),
		details:    make(map[string]domain.CartLine),
	}
}

// Quantity returns the carted quantity for an item, 0 when absent.
func (c *CartStore) Quantity(itemID string) float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.quantities[itemID]
}

func (c *CartStore) Line(itemID string) (domain.CartLine, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	line, ok := c.details[itemID]
	if ok {
		line.Quantity = c.quantities[itemID]
	}
	return line, ok
}

// SetLine stores a line and its quantity. A non-positive quantity removes the
// line instead; zero-quantity lines are never kept.
func (c *CartStore) SetLine(line domain.CartLine) {
	if line.Quantity <= 0 {
		c.Remove(line.ID)
		return
	}
	c.mu.Lock()
	c.details[line.ID] = line
	c.quantities[line.ID] = line.Quantity
	c.mu.Unlock()
}

// SetQuantity adjusts an existing line's quantity, removing it at zero.
func (c *CartStore) SetQuantity(itemID string, quantity float64) {
	if quantity <= 0 {
		c.Remove(itemID)
		return
	}
	c.mu.Lock()
	c.quantities[itemID] = quantity
	if line, ok := c.details[itemID]; ok {
		line.Quantity = quantity
		c.details[itemID] = line
	}
	c.mu.Unlock()
}

func (c *CartStore) Remove(itemID string) {
	c.mu.Lock()
	delete(c.quantities, itemID)
	delete(c.details, itemID)
	c.mu.Unlock()
}

// Lines returns the cart ordered by item ID, quantities applied.
func (c *CartStore) Lines() []domain.CartLine {
	c.mu.RLock()
	lines := make([]domain.CartLine, 0, len(c.details))
	for itemID, line := range c.details {
		line.Quantity = c.quantities[itemID]
		lines = append(lines, line)
	}
	c.mu.RUnlock()

	sort.Slice(lines, func(i, j int) bool { return lines[i].ID < lines[j].ID })
	return lines
}

func (c *CartStore) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.quantities)
}

func (c *CartStore) Snapshot() *Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snap := &Snapshot{
		Quantities: make(map[string]float64, len(c.quantities)),
		Details:    make(map[string]domain.CartLine, len(c.details)),
	}
	for itemID, quantity := range c.quantities {
		snap.Quantities[itemID] = quantity
	}
	for itemID, line := range c.details {
		snap.Details[itemID] = line
	}
	return snap
}

// Restore replaces the cart with a previously taken snapshot.
func (c *CartStore) Restore(snap *Snapshot) {
	if snap == nil {
		return
	}
	c.mu.Lock()
	c.quantities = make(map[string]float64, len(snap.Quantities))
	c.details = make(map[string]domain.CartLine, len(snap.Details))
	for itemID, quantity := range snap.Quantities {
		c.quantities[itemID] = quantity
	}
	for itemID, line := range snap.Details {
		c.details[itemID] = line
	}
	c.mu.Unlock()
}
