package storage

import "sync"

// MemoryStore is a VisitedStore backed by a map
type MemoryStore struct {
	mu      sync.RWMutex
	visited map[string]struct{}
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{visited: make(map[string]struct{})}
}

func (s *MemoryStore) MarkVisited(url string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.visited[url]; ok {
		return false, nil
	}
	s.visited[url] = struct{}{}
	return true, nil
}

func (s *MemoryStore) IsVisited(url string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.visited[url]
	return ok, nil
}

func (s *MemoryStore) Count() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.visited), nil
}

func (s *MemoryStore) Reset() error {
	s.mu.Lock()
	s.visited = make(map[string]struct{})
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Close() error { return nil }
