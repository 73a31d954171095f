package storage

import (
	"context"
	"sync"
	"time"
)

// MemoryStampStore is the in-process StampStore used when no Redis is
// configured. The stamp does not survive a restart, which only means the
// first validation after startup is never suppressed by the hard cooldown.
type MemoryStampStore struct {
	mu sync.Mutex
	at time.Time
	ok bool
}

func NewMemoryStampStore() *MemoryStampStore {
	return &MemoryStampStore{}
}

func (m *MemoryStampStore) LastValidation(context.Context) (time.Time, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.at, m.ok, nil
}

func (m *MemoryStampStore) MarkValidated(_ context.Context, at time.Time) error {
	m.mu.Lock()
	m.at, m.ok = at, true
	m.mu.Unlock()
	return nil
}
