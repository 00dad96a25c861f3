package preference

import (
	"context"
	"sync"

	"github.com/kbukum/bizbackend/backend"
)

// MemoryStore keeps the kind for the life of the process.
type MemoryStore struct {
	mu   sync.RWMutex
	kind backend.Kind
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load(context.Context) (backend.Kind, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.kind, s.kind != "", nil
}

func (s *MemoryStore) Save(_ context.Context, kind backend.Kind) error {
	s.mu.Lock()
	s.kind = kind
	s.mu.Unlock()
	return nil
}
