package company

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory company store for tests and early development.
type MemoryStore struct {
	mu        sync.Mutex
	companies map[string]Company
	byAPIKey  map[string]string
	clock     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		companies: map[string]Company{},
		byAPIKey:  map[string]string{},
		clock:     time.Now,
	}
}

func (s *MemoryStore) Create(ctx context.Context, c Company) error {
	if c.ID == "" || c.APIKey == "" {
		return ErrInvalidArgument
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.companies[c.ID] = c
	s.byAPIKey[c.APIKey] = c.ID
	return nil
}

func (s *MemoryStore) GetByID(ctx context.Context, id string) (Company, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.companies[id]
	if !ok {
		return Company{}, ErrNotFound
	}
	return c, nil
}

func (s *MemoryStore) GetByAPIKey(ctx context.Context, apiKey string) (Company, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byAPIKey[apiKey]
	if !ok {
		return Company{}, ErrNotFound
	}
	return s.companies[id], nil
}

func (s *MemoryStore) SetDisabled(ctx context.Context, id string, disabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.companies[id]
	if !ok {
		return ErrNotFound
	}
	c.Disabled = disabled
	c.UpdatedAt = s.clock().UTC()
	s.companies[id] = c
	return nil
}

func (s *MemoryStore) SetRegenReports(ctx context.Context, id string, allowed bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.companies[id]
	if !ok {
		return ErrNotFound
	}
	c.CanRegenReports = allowed
	c.UpdatedAt = s.clock().UTC()
	s.companies[id] = c
	return nil
}
