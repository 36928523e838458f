package lock

import (
	"context"
	"sync"
)

// MemoryManager is an in-process Manager for tests and single-node runs.
// One mutex per key, created on demand and never evicted; the key space is
// bounded by active wallets and groups.
type MemoryManager struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewMemoryManager() *MemoryManager {
	return &MemoryManager{locks: make(map[string]*sync.Mutex)}
}

func (m *MemoryManager) Acquire(ctx context.Context, key, holder string) (Handle, error) {
	m.mu.Lock()
	l, ok := m.locks[key]
	if !ok {
		l = &sync.Mutex{}
		m.locks[key] = l
	}
	m.mu.Unlock()

	l.Lock()
	return memoryHandle{l}, nil
}

type memoryHandle struct {
	l *sync.Mutex
}

func (h memoryHandle) Unlock(ctx context.Context) error {
	h.l.Unlock()
	return nil
}
