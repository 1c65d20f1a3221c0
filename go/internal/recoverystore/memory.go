package recoverystore

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/teamaction/geohunt/go/internal/models"
)

type memoryEntry struct {
	data      models.RecoveryCodeData
	expiresAt time.Time
}

// Memory is an in-process recovery code store for tests and single-node
// dev runs. The injected clock makes TTL behavior testable.
type Memory struct {
	clock clockwork.Clock

	mu    sync.Mutex
	codes map[string]memoryEntry
}

// NewMemory returns an empty in-memory recovery store on the given clock.
func NewMemory(clock clockwork.Clock) *Memory {
	return &Memory{clock: clock, codes: make(map[string]memoryEntry)}
}

func (m *Memory) CreateCode(ctx context.Context, code string, data models.RecoveryCodeData, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.codes[code] = memoryEntry{data: data, expiresAt: m.clock.Now().Add(ttl)}
	return nil
}

func (m *Memory) RedeemCode(ctx context.Context, code string) (*models.RecoveryCodeData, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.codes[code]
	if !ok {
		return nil, nil
	}
	delete(m.codes, code)
	if !entry.expiresAt.After(m.clock.Now()) {
		return nil, nil
	}
	data := entry.data
	return &data, nil
}
