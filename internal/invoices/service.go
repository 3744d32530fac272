package invoices

import (
	"context"
	"log/slog"

	"github.com/tillpoint/tillpoint/internal/platform/httpx"
	"github.com/tillpoint/tillpoint/internal/shared"
)

// RepositoryPort abstracts invoice reads and status writes.
type RepositoryPort interface {
	Get(ctx context.Context, number string) (Invoice, error)
	List(ctx context.Context, filter ListFilter) ([]Invoice, int, error)
	UpdateStatus(ctx context.Context, number string, status Status) (Invoice, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Invalidator is told when already reported sales change.
type Invalidator interface {
	Bump(ctx context.Context) error
}

// Service exposes invoice history and the status changes made outside checkout.
type Service struct {
	repo        RepositoryPort
	audit       AuditPort
	invalidator Invalidator
	logger      *slog.Logger
}

// NewService builds Service. audit and invalidator may be nil.
func NewService(repo RepositoryPort, audit AuditPort, invalidator Invalidator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, invalidator: invalidator, logger: logger}
}

// Get loads one invoice.
func (s *Service) Get(ctx context.Context, number string) (Invoice, error) {
	return s.repo.Get(ctx, number)
}

// List returns a page of invoices.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Invoice, int, error) {
	return s.repo.List(ctx, filter)
}

// Void cancels a completed sale. Stock is not restored; use an inventory
// adjustment with reason returned for goods that come back.
func (s *Service) Void(ctx context.Context, number string, change StatusChange) (Invoice, error) {
	return s.transition(ctx, number, StatusVoid, change)
}

// Refund flags a completed sale as refunded.
func (s *Service) Refund(ctx context.Context, number string, change StatusChange) (Invoice, error) {
	return s.transition(ctx, number, StatusRefunded, change)
}

func (s *Service) transition(ctx context.Context, number string, status Status, change StatusChange) (Invoice, error) {
	if err := httpx.Validate(change); err != nil {
		return Invoice{}, err
	}
	inv, err := s.repo.UpdateStatus(ctx, number, status)
	if err != nil {
		return Invoice{}, err
	}
	if s.audit != nil {
		if err := s.audit.Record(ctx, shared.AuditLog{
			ActorID:  shared.ActorFromContext(ctx),
			Action:   "invoices:" + string(status),
			Entity:   "invoice",
			EntityID: number,
			Meta:     map[string]any{"reason": change.Reason, "total": inv.Total},
		}); err != nil {
			s.logger.Warn("audit invoice status", slog.String("invoice", number), slog.Any("error", err))
		}
	}
	if s.invalidator != nil {
		if err := s.invalidator.Bump(ctx); err != nil {
			s.logger.Warn("invalidate reports", slog.Any("error", err))
		}
	}
	return inv, nil
}
