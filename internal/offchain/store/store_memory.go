package store

import (
	"context"
	"sync"

	"phonelease/pkg/platform/sentinel"
)

// InMemoryStore keeps addresses in process memory.
type InMemoryStore struct {
	mu     sync.RWMutex
	values map[Key][]byte
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{values: make(map[Key][]byte)}
}

func (s *InMemoryStore) Get(_ context.Context, key Key) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (s *InMemoryStore) Set(_ context.Context, key Key, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = append([]byte(nil), value...)
	return nil
}
