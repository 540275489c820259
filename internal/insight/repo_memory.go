package insight

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory insight store for tests and early development.
// Supersede-on-create matches the Postgres implementation.
type MemoryStore struct {
	mu     sync.Mutex
	byCall map[string][]Insight
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byCall: map[string][]Insight{}}
}

func (s *MemoryStore) Create(ctx context.Context, ins Insight) (Insight, error) {
	if ins.ID == "" || ins.CallID == "" || ins.CompanyID == "" {
		return Insight{}, ErrInvalidArgument
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	history := s.byCall[ins.CallID]
	for i := range history {
		history[i].Current = false
	}
	ins.Version = len(history) + 1
	ins.Current = true
	s.byCall[ins.CallID] = append(history, ins)
	return ins, nil
}

func (s *MemoryStore) GetCurrentByCall(ctx context.Context, companyID, callID string) (Insight, error) {
	if companyID == "" || callID == "" {
		return Insight{}, ErrInvalidArgument
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ins := range s.byCall[callID] {
		if ins.Current && ins.CompanyID == companyID {
			return ins, nil
		}
	}
	return Insight{}, ErrNotFound
}

// VersionCount reports how many versions exist for a call. Test helper.
func (s *MemoryStore) VersionCount(callID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byCall[callID])
}

func (s *MemoryStore) ListCurrentByCompanyAndWindow(ctx context.Context, companyID string, from, to time.Time) ([]Insight, error) {
	if companyID == "" {
		return nil, ErrInvalidArgument
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Insight, 0)
	for _, history := range s.byCall {
		for _, ins := range history {
			if !ins.Current || ins.CompanyID != companyID {
				continue
			}
			if ins.CreatedAt.Before(from) || !ins.CreatedAt.Before(to) {
				continue
			}
			out = append(out, ins)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}
