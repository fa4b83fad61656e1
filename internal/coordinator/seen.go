package coordinator

import (
	"context"
	"sync"

	"github.com/user/etymology-service/internal/domain"
)

// SeenSet remembers queries that already resolved so they are not fetched again.
type SeenSet interface {
	Lookup(ctx context.Context, q domain.WordQuery) (domain.FetchResult, bool, error)
	Store(ctx context.Context, q domain.WordQuery, result domain.FetchResult) error
}

// MemorySeenSet is the default per-run seen-set.
type MemorySeenSet struct {
	mu      sync.RWMutex
	results map[domain.WordQuery]domain.FetchResult
}

func NewMemorySeenSet() *MemorySeenSet {
	return &MemorySeenSet{
		results: make(map[domain.WordQuery]domain.FetchResult),
	}
}

func (s *MemorySeenSet) Lookup(_ context.Context, q domain.WordQuery) (domain.FetchResult, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res, ok := s.results[q]
	return res, ok, nil
}

func (s *MemorySeenSet) Store(_ context.Context, q domain.WordQuery, result domain.FetchResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[q] = result
	return nil
}

// Len is the number of remembered queries.
func (s *MemorySeenSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.results)
}
