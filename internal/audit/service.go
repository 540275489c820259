package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events.
//
// It MUST be append-only. No Update/Delete methods are provided by design.
type Repository interface {
	Append(ctx context.Context, e Event) error
}

// Service logs internal audit information.
//
// Audit is internal-only; these records are not exposed to tenant users.
// Callers should treat audit logging as best-effort.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s == nil || s.repo == nil {
		return nil
	}
	if e.CompanyID == "" || e.Type == "" {
		return ErrInvalidEvent
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock().UTC()
	}
	return s.repo.Append(ctx, e)
}

// LogCallFailed records a call that failed permanently.
func (s *Service) LogCallFailed(ctx context.Context, companyID, callID, reason string) error {
	return s.Append(ctx, Event{
		CompanyID: companyID,
		Type:      EventTypeCallFailed,
		CallID:    callID,
		Message:   reason,
	})
}

// LogReportGenerated records a report generation.
func (s *Service) LogReportGenerated(ctx context.Context, companyID, reportID string) error {
	return s.Append(ctx, Event{
		CompanyID: companyID,
		Type:      EventTypeReportGenerated,
		ReportID:  reportID,
		Message:   "report generated",
	})
}

// LogCompanyProvisioned records an admin provisioning action.
func (s *Service) LogCompanyProvisioned(ctx context.Context, companyID, name string) error {
	return s.Append(ctx, Event{
		CompanyID: companyID,
		Type:      EventTypeCompanyProvisioned,
		Message:   "company provisioned: " + name,
	})
}

// LogCompanyDisabled records an admin disable action.
func (s *Service) LogCompanyDisabled(ctx context.Context, companyID string) error {
	return s.Append(ctx, Event{
		CompanyID: companyID,
		Type:      EventTypeCompanyDisabled,
		Message:   "company disabled",
	})
}
