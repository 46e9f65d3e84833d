package store

import "sync"

// MemoryStore is a map-backed Store.
type MemoryStore struct {
	mu    sync.RWMutex
	boxes map[string][]byte
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{boxes: make(map[string][]byte)}
}

func (s *MemoryStore) Get(key []byte) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.boxes[string(key)]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), value...), nil
}

func (s *MemoryStore) Put(key, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.boxes[string(key)] = append([]byte(nil), value...)
	return nil
}

func (s *MemoryStore) Delete(key []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.boxes, string(key))
	return nil
}

func (s *MemoryStore) Keys() ([][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([][]byte, 0, len(s.boxes))
	for k := range s.boxes {
		keys = append(keys, []byte(k))
	}
	return keys, nil
}

func (s *MemoryStore) Close() error { return nil }
