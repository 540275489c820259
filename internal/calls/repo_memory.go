package calls

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory call record store for tests and early
// development. The compare-and-set semantics mirror the Postgres
// implementation: a single mutex makes each transition atomic.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]CallRecord
	clock   func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: map[string]CallRecord{}, clock: time.Now}
}

// SetClock overrides the store clock for deterministic tests.
func (s *MemoryStore) SetClock(clock func() time.Time) { s.clock = clock }

func (s *MemoryStore) Create(ctx context.Context, rec CallRecord) error {
	if rec.ID == "" || rec.CompanyID == "" {
		return ErrInvalidArgument
	}
	if !rec.State.Valid() {
		return ErrInvalidArgument
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	s.records[rec.ID] = rec
	return nil
}

func (s *MemoryStore) GetByID(ctx context.Context, companyID, id string) (CallRecord, error) {
	if companyID == "" || id == "" {
		return CallRecord{}, ErrInvalidArgument
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok || rec.CompanyID != companyID {
		// Cross-tenant lookups are indistinguishable from missing records.
		return CallRecord{}, ErrNotFound
	}
	return rec, nil
}

// get returns a record without tenant scoping. Pipeline-internal only.
func (s *MemoryStore) get(id string) (CallRecord, bool) {
	rec, ok := s.records[id]
	return rec, ok
}

func (s *MemoryStore) CompareAndSetState(ctx context.Context, id string, expected, next State, opts TransitionOpts) (CallRecord, error) {
	if id == "" || !expected.Valid() || !next.Valid() {
		return CallRecord{}, ErrInvalidArgument
	}
	if !expected.CanTransition(next) {
		return CallRecord{}, ErrIllegalTransition
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.get(id)
	if !ok {
		return CallRecord{}, ErrNotFound
	}
	if rec.State != expected {
		return CallRecord{}, ErrAlreadyClaimed
	}
	if opts.IfLeaseExpiry != nil {
		if rec.LeaseExpiry == nil || !rec.LeaseExpiry.Equal(*opts.IfLeaseExpiry) {
			return CallRecord{}, ErrAlreadyClaimed
		}
	}
	rec.State = next
	rec.LeaseExpiry = opts.LeaseExpiry
	if opts.ErrorReason != "" {
		rec.ErrorReason = opts.ErrorReason
	}
	if next == StateInsightReady {
		rec.ErrorReason = ""
	}
	rec.UpdatedAt = s.clock().UTC()
	s.records[id] = rec
	return rec, nil
}

func (s *MemoryStore) IncrementRetry(ctx context.Context, id string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.get(id)
	if !ok {
		return 0, ErrNotFound
	}
	rec.RetryCount++
	rec.UpdatedAt = s.clock().UTC()
	s.records[id] = rec
	return rec.RetryCount, nil
}

func (s *MemoryStore) ExhaustRetries(ctx context.Context, id string, max int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.get(id)
	if !ok {
		return ErrNotFound
	}
	if rec.RetryCount < max {
		rec.RetryCount = max
	}
	rec.UpdatedAt = s.clock().UTC()
	s.records[id] = rec
	return nil
}

func (s *MemoryStore) Touch(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.get(id)
	if !ok {
		return ErrNotFound
	}
	rec.UpdatedAt = s.clock().UTC()
	s.records[id] = rec
	return nil
}

func (s *MemoryStore) ListByCompanyAndWindow(ctx context.Context, companyID string, from, to time.Time, filter ListFilter) ([]CallRecord, error) {
	if companyID == "" {
		return nil, ErrInvalidArgument
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]CallRecord, 0)
	for _, rec := range s.records {
		if rec.CompanyID != companyID {
			continue
		}
		if rec.CreatedAt.Before(from) || !rec.CreatedAt.Before(to) {
			continue
		}
		if filter.State != "" && rec.State != filter.State {
			continue
		}
		if filter.DurationAtLeast > 0 && rec.DurationSeconds < filter.DurationAtLeast {
			continue
		}
		if filter.DurationAtMost > 0 && rec.DurationSeconds > filter.DurationAtMost {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return []CallRecord{}, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *MemoryStore) ListExpiredLeases(ctx context.Context, now time.Time, limit int) ([]CallRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]CallRecord, 0)
	for _, rec := range s.records {
		if rec.State != StateProcessing {
			continue
		}
		if rec.LeaseExpiry == nil || rec.LeaseExpiry.After(now) {
			continue
		}
		out = append(out, rec)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *MemoryStore) ListStaleReceived(ctx context.Context, cutoff time.Time, limit int) ([]CallRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]CallRecord, 0)
	for _, rec := range s.records {
		if rec.State != StateReceived {
			continue
		}
		if !rec.UpdatedAt.Before(cutoff) {
			continue
		}
		out = append(out, rec)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *MemoryStore) ListStaleFailed(ctx context.Context, cutoff time.Time, maxAttempts, limit int) ([]CallRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]CallRecord, 0)
	for _, rec := range s.records {
		if rec.State != StateFailed {
			continue
		}
		if rec.RetryCount >= maxAttempts {
			continue
		}
		if !rec.UpdatedAt.Before(cutoff) {
			continue
		}
		out = append(out, rec)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}
