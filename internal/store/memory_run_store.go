package store

import (
	"context"
	"sync"

	"github.com/dunamismax/pixelpost/internal/domain"
)

const DefaultMemoryCapacity = 1024

// MemoryRunStore keeps the most recent runs; the oldest are evicted once
// capacity is reached.
type MemoryRunStore struct {
	mu       sync.RWMutex
	runs     map[string]domain.Run
	order    []string
	capacity int
}

func NewMemoryRunStore(capacity int) *MemoryRunStore {
	if capacity <= 0 {
		capacity = DefaultMemoryCapacity
	}
	return &MemoryRunStore{
		runs:     make(map[string]domain.Run),
		capacity: capacity,
	}
}

func (s *MemoryRunStore) Create(_ context.Context, run domain.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.runs[run.ID]; !exists {
		s.order = append(s.order, run.ID)
	}
	s.runs[run.ID] = run

	for len(s.order) > s.capacity {
		delete(s.runs, s.order[0])
		s.order = s.order[1:]
	}
	return nil
}

func (s *MemoryRunStore) Get(_ context.Context, id string) (domain.Run, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[id]
	return run, ok, nil
}

// List returns up to limit runs, newest first.
func (s *MemoryRunStore) List(_ context.Context, limit int) ([]domain.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > len(s.order) {
		limit = len(s.order)
	}
	out := make([]domain.Run, 0, limit)
	for i := len(s.order) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.runs[s.order[i]])
	}
	return out, nil
}

func (s *MemoryRunStore) Close() error {
	return nil
}
