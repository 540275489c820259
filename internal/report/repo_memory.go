package report

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is the in-memory Store used in tests and local development.
type MemoryStore struct {
	mu      sync.RWMutex
	reports map[string]Report
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{reports: make(map[string]Report)}
}

func (s *MemoryStore) Create(_ context.Context, r Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports[r.ID] = r
	return nil
}

func (s *MemoryStore) GetByID(_ context.Context, companyID, id string) (Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reports[id]
	if !ok || r.CompanyID != companyID {
		return Report{}, ErrNotFound
	}
	return r, nil
}

func (s *MemoryStore) GetByWindow(_ context.Context, companyID string, from, to time.Time) (Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var best Report
	found := false
	for _, r := range s.reports {
		if r.CompanyID != companyID || !r.WindowFrom.Equal(from) || !r.WindowTo.Equal(to) {
			continue
		}
		if !found || r.GeneratedAt.After(best.GeneratedAt) {
			best = r
			found = true
		}
	}
	if !found {
		return Report{}, ErrNotFound
	}
	return best, nil
}

func (s *MemoryStore) ListByCompany(_ context.Context, companyID string, limit, offset int) ([]Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Report, 0)
	for _, r := range s.reports {
		if r.CompanyID == companyID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(a, b int) bool {
		if !out[a].GeneratedAt.Equal(out[b].GeneratedAt) {
			return out[a].GeneratedAt.After(out[b].GeneratedAt)
		}
		return out[a].ID < out[b].ID
	})
	if offset >= len(out) {
		return []Report{}, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
