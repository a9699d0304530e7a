package storage

import (
	"context"
	"sync"
	"time"
)

// MemoryStore implements Store in memory, for tests and for running the
// server without Redis. Cooldown atomicity comes from holding the mutex
// across the check and the write.
type MemoryStore struct {
	mu       sync.Mutex
	scores   map[string]float64
	patrons  map[string]string
	cooldown map[string]time.Time // expiry per triple
	audit    []AuditEntry
	now      func() time.Time
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		scores:   make(map[string]float64),
		patrons:  make(map[string]string),
		cooldown: make(map[string]time.Time),
		now:      time.Now,
	}
}

// SetClock replaces the time source, for cooldown expiry tests.
func (m *MemoryStore) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

func (m *MemoryStore) Ping(ctx context.Context) error { return nil }
func (m *MemoryStore) Close() error                   { return nil }

func (m *MemoryStore) GetScore(ctx context.Context, requesterID, deityID string) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.scores[scoreKey(requesterID, deityID)], nil
}

func (m *MemoryStore) SetScore(ctx context.Context, requesterID, deityID string, score float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scores[scoreKey(requesterID, deityID)] = score
	return nil
}

func (m *MemoryStore) AddScore(ctx context.Context, requesterID, deityID string, delta float64) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := scoreKey(requesterID, deityID)
	m.scores[key] += delta
	return m.scores[key], nil
}

func (m *MemoryStore) GetPatron(ctx context.Context, requesterID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.patrons[requesterID], nil
}

func (m *MemoryStore) SetPatron(ctx context.Context, requesterID, deityID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.patrons[requesterID] = deityID
	return nil
}

func (m *MemoryStore) Reserve(ctx context.Context, requesterID, deityID, prayerType string, window time.Duration) (bool, error) {
	if window <= 0 {
		return true, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := cooldownKey(requesterID, deityID, prayerType)
	now := m.now()
	if expiry, held := m.cooldown[key]; held && now.Before(expiry) {
		return false, nil
	}
	m.cooldown[key] = now.Add(window)
	return true, nil
}

func (m *MemoryStore) Release(ctx context.Context, requesterID, deityID, prayerType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cooldown, cooldownKey(requesterID, deityID, prayerType))
	return nil
}

func (m *MemoryStore) Record(ctx context.Context, entry AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audit = append(m.audit, entry)
	return nil
}

// AuditEntries returns a copy of all recorded entries, oldest first.
func (m *MemoryStore) AuditEntries() []AuditEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]AuditEntry, len(m.audit))
	copy(out, m.audit)
	return out
}
