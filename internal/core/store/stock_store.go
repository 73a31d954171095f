package store

import "sync"

// StockStore caches the latest known stock level per item. It is fed by bulk
// snapshots and incremental push deltas and is overwrite-only: an absent item
// means "unknown", never "zero".
type StockStore struct {
	mu     sync.RWMutex
	levels map[string]float64
}

func NewStockStore() *StockStore {
	return &StockStore{levels: make(map[string]float64)}
}

func (s *StockStore) Update(itemID string, quantity float64) {
	if quantity < 0 {
		quantity = 0
	}
	s.mu.Lock()
	s.levels[itemID] = quantity
	s.mu.Unlock()
}

func (s *StockStore) BulkUpdate(levels map[string]float64) {
	s.mu.Lock()
	for itemID, quantity := range levels {
		if quantity < 0 {
			quantity = 0
		}
		s.levels[itemID] = quantity
	}
	s.mu.Unlock()
}

// Get returns the known level for an item, or fallback when no real-time
// value has been received yet.
func (s *StockStore) Get(itemID string, fallback float64) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if quantity, ok := s.levels[itemID]; ok {
		return quantity
	}
	return fallback
}

// Lookup reports the known level and whether the item has one at all.
func (s *StockStore) Lookup(itemID string) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	quantity, ok := s.levels[itemID]
	return quantity, ok
}

// IsInStock reports whether the requested quantity is coverable. Items with
// no known level are treated as in stock until data arrives.
func (s *StockStore) IsInStock(itemID string, requested float64) bool {
	quantity, ok := s.Lookup(itemID)
	if !ok {
		return true
	}
	return quantity >= requested
}

func (s *StockStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.levels)
}
