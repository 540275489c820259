package company

import (
	"context"
	"errors"
	"time"

	"call-insights-platform/internal/audit"

	"github.com/google/uuid"
)

var (
	ErrNotFound        = errors.New("company: not found")
	ErrInvalidArgument = errors.New("company: invalid argument")

	// ErrAuthFailed is returned for unknown or disabled API keys. Callers
	// surface it as access-denied without distinguishing the two cases.
	ErrAuthFailed = errors.New("company: authentication failed")
)

// Store is the persistence contract for companies.
type Store interface {
	Create(ctx context.Context, c Company) error
	GetByID(ctx context.Context, id string) (Company, error)
	GetByAPIKey(ctx context.Context, apiKey string) (Company, error)
	SetDisabled(ctx context.Context, id string, disabled bool) error
	SetRegenReports(ctx context.Context, id string, allowed bool) error
}

// Service provisions companies and resolves tenant identity from API keys.
type Service struct {
	store Store
	audit *audit.Service
	clock func() time.Time
}

func NewService(store Store) *Service {
	return &Service{store: store, clock: time.Now}
}

// SetAudit enables best-effort audit logging of provisioning actions.
func (s *Service) SetAudit(a *audit.Service) { s.audit = a }

// Provision creates a new company with a fresh API key.
func (s *Service) Provision(ctx context.Context, name string) (Company, error) {
	if name == "" {
		return Company{}, ErrInvalidArgument
	}
	if s.store == nil {
		return Company{}, errors.New("company: store not configured")
	}
	now := s.clock().UTC()
	c := Company{
		ID:              uuid.NewString(),
		Name:            name,
		APIKey:          uuid.NewString(),
		CanRegenReports: true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.store.Create(ctx, c); err != nil {
		return Company{}, err
	}
	_ = s.audit.LogCompanyProvisioned(ctx, c.ID, c.Name)
	return c, nil
}

// Authenticate resolves the owning company for an API key. Unknown and
// disabled keys both fail with ErrAuthFailed.
func (s *Service) Authenticate(ctx context.Context, apiKey string) (Company, error) {
	if apiKey == "" {
		return Company{}, ErrAuthFailed
	}
	if s.store == nil {
		return Company{}, errors.New("company: store not configured")
	}
	c, err := s.store.GetByAPIKey(ctx, apiKey)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Company{}, ErrAuthFailed
		}
		return Company{}, err
	}
	if c.Disabled {
		return Company{}, ErrAuthFailed
	}
	return c, nil
}

// Get returns a company by id.
func (s *Service) Get(ctx context.Context, id string) (Company, error) {
	if id == "" {
		return Company{}, ErrInvalidArgument
	}
	return s.store.GetByID(ctx, id)
}

// Disable soft-disables a company. Its data is retained but its API key stops
// authenticating.
func (s *Service) Disable(ctx context.Context, id string) error {
	if id == "" {
		return ErrInvalidArgument
	}
	if err := s.store.SetDisabled(ctx, id, true); err != nil {
		return err
	}
	_ = s.audit.LogCompanyDisabled(ctx, id)
	return nil
}

// SetRegenReports toggles whether the company may regenerate reports for a
// window that already has one.
func (s *Service) SetRegenReports(ctx context.Context, id string, allowed bool) error {
	if id == "" {
		return ErrInvalidArgument
	}
	return s.store.SetRegenReports(ctx, id, allowed)
}
