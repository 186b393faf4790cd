package ledger

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a process-local Store for development and tests.
// It is not durable across restarts.
type MemoryStore struct {
	mu         sync.RWMutex
	converted  map[string]Conversion
	interested map[string]struct{}
}

// Conversion is one ledger entry.
type Conversion struct {
	UserID      string
	Reason      Reason
	ConvertedAt time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		converted:  make(map[string]Conversion),
		interested: make(map[string]struct{}),
	}
}

func (m *MemoryStore) HasConverted(_ context.Context, userID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.converted[userID]
	return ok, nil
}

func (m *MemoryStore) ConversionReason(_ context.Context, userID string) (Reason, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.converted[userID]
	return c.Reason, ok, nil
}

func (m *MemoryStore) MarkConverted(_ context.Context, userID string, reason Reason) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.converted[userID]; ok && !supersedes(cur.Reason, reason) {
		return false, nil
	}
	m.converted[userID] = Conversion{UserID: userID, Reason: reason, ConvertedAt: time.Now().UTC()}
	return true, nil
}

func (m *MemoryStore) MarkInterested(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.interested[userID] = struct{}{}
	return nil
}

func (m *MemoryStore) IsInterested(_ context.Context, userID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.interested[userID]
	return ok, nil
}

// Len returns the number of converted users.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.converted)
}
