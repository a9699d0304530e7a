package world

import (
	"context"
	"fmt"
	"sync"

	"github.com/pantheonmod/pantheon/pkg/prayer"
)

// MockWorld is an in-memory implementation of SnapshotProvider and
// RelationshipStore for tests.
type MockWorld struct {
	mu        sync.RWMutex
	snapshots map[string]map[string]string
	scores    map[string]float64 // requesterID + "\x00" + deityID
	patrons   map[string]string
	failSnaps bool
}

func NewMockWorld() *MockWorld {
	return &MockWorld{
		snapshots: make(map[string]map[string]string),
		scores:    make(map[string]float64),
		patrons:   make(map[string]string),
	}
}

func (m *MockWorld) SetSnapshot(requesterID string, snap map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots[requesterID] = snap
}

func (m *MockWorld) SetScore(requesterID, deityID string, score float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scores[requesterID+"\x00"+deityID] = score
}

func (m *MockWorld) SetPatron(requesterID, deityID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.patrons[requesterID] = deityID
}

// FailSnapshots makes Snapshot return an error, for exercising the
// degraded context path.
func (m *MockWorld) FailSnapshots(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failSnaps = fail
}

func (m *MockWorld) Snapshot(ctx context.Context, requesterID string) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.failSnaps {
		return nil, fmt.Errorf("mock snapshot failure")
	}
	return m.snapshots[requesterID], nil
}

func (m *MockWorld) GetScore(ctx context.Context, requesterID, deityID string) (float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.scores[requesterID+"\x00"+deityID], nil
}

func (m *MockWorld) GetPatron(ctx context.Context, requesterID string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.patrons[requesterID], nil
}

// MockExecutor records dispatched batches for assertions.
type MockExecutor struct {
	mu      sync.Mutex
	batches [][]prayer.Action
	accept  bool
}

func NewMockExecutor() *MockExecutor {
	return &MockExecutor{accept: true}
}

func (m *MockExecutor) Reject() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accept = false
}

func (m *MockExecutor) Execute(ctx context.Context, batch []prayer.Action, requesterID string) <-chan bool {
	m.mu.Lock()
	copied := make([]prayer.Action, len(batch))
	copy(copied, batch)
	m.batches = append(m.batches, copied)
	accept := m.accept
	m.mu.Unlock()

	ch := make(chan bool, 1)
	ch <- accept
	close(ch)
	return ch
}

// Batches returns all batches dispatched so far.
func (m *MockExecutor) Batches() [][]prayer.Action {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]prayer.Action, len(m.batches))
	copy(out, m.batches)
	return out
}

// LastBatch returns the most recent batch, or nil.
func (m *MockExecutor) LastBatch() []prayer.Action {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.batches) == 0 {
		return nil
	}
	return m.batches[len(m.batches)-1]
}
