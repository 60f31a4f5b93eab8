package memory

import (
	"fmt"
	"sync"

	"github.com/angeloszaimis/kv-failover/internal/store"
)

// Store is a mutex-guarded in-memory store.Handle, used by the demo
// wiring and as a stand-in cluster in tests.
type Store struct {
	mutex sync.RWMutex
	data  map[string][]byte
}

func New() *Store {
	return &Store{
		data: make(map[string][]byte),
	}
}

func (s *Store) Add(key string, value []byte) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, exists := s.data[key]; exists {
		return fmt.Errorf("add %q: %w", key, store.ErrKeyExists)
	}

	s.data[key] = clone(value)
	return nil
}

func (s *Store) Read(key string) ([]byte, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	value, exists := s.data[key]
	if !exists {
		return nil, fmt.Errorf("read %q: %w", key, store.ErrKeyNotFound)
	}

	return clone(value), nil
}

func (s *Store) Update(key string, value []byte) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, exists := s.data[key]; !exists {
		return fmt.Errorf("update %q: %w", key, store.ErrKeyNotFound)
	}

	s.data[key] = clone(value)
	return nil
}

// Len returns the number of stored keys.
func (s *Store) Len() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.data)
}

func clone(value []byte) []byte {
	if value == nil {
		return nil
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out
}
