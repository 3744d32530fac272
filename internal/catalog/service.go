package catalog

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/tillpoint/tillpoint/internal/platform/httpx"
	"github.com/tillpoint/tillpoint/internal/shared"
)

// RepositoryPort abstracts product persistence for the service.
type RepositoryPort interface {
	List(ctx context.Context, filter ListFilter) ([]Product, int, error)
	ListActive(ctx context.Context) ([]Product, error)
	LowStock(ctx context.Context) ([]Product, error)
	Get(ctx context.Context, id int64) (Product, error)
	Create(ctx context.Context, in NewProductInput) (Product, error)
	Update(ctx context.Context, id int64, in ProductInput) (Product, error)
	Delete(ctx context.Context, id int64) error
}

// ChangeNotifier announces that the product collection changed.
type ChangeNotifier interface {
	Notify(ctx context.Context) error
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates product maintenance.
type Service struct {
	repo     RepositoryPort
	notifier ChangeNotifier
	audit    AuditPort
	logger   *slog.Logger
}

// NewService builds Service. notifier and audit may be nil.
func NewService(repo RepositoryPort, notifier ChangeNotifier, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, notifier: notifier, audit: audit, logger: logger}
}

// List returns a page of products.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Product, int, error) {
	return s.repo.List(ctx, filter)
}

// ListActive returns the sellable catalog ordered by name.
func (s *Service) ListActive(ctx context.Context) ([]Product, error) {
	return s.repo.ListActive(ctx)
}

// LowStock returns active products at or below min stock.
func (s *Service) LowStock(ctx context.Context) ([]Product, error) {
	return s.repo.LowStock(ctx)
}

// Get loads one product.
func (s *Service) Get(ctx context.Context, id int64) (Product, error) {
	return s.repo.Get(ctx, id)
}

// Create validates and inserts a product.
func (s *Service) Create(ctx context.Context, in NewProductInput) (Product, error) {
	normalize(&in.ProductInput)
	if err := httpx.Validate(in); err != nil {
		return Product{}, err
	}
	p, err := s.repo.Create(ctx, in)
	if err != nil {
		return Product{}, err
	}
	s.changed(ctx, "catalog:create", p.ID)
	return p, nil
}

// Update validates and rewrites editable product fields.
func (s *Service) Update(ctx context.Context, id int64, in ProductInput) (Product, error) {
	normalize(&in)
	if err := httpx.Validate(in); err != nil {
		return Product{}, err
	}
	p, err := s.repo.Update(ctx, id, in)
	if err != nil {
		return Product{}, err
	}
	s.changed(ctx, "catalog:update", id)
	return p, nil
}

// Delete removes a product.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.changed(ctx, "catalog:delete", id)
	return nil
}

func (s *Service) changed(ctx context.Context, action string, id int64) {
	if s.notifier != nil {
		if err := s.notifier.Notify(ctx); err != nil {
			s.logger.Warn("catalog change notify", slog.Int64("product_id", id), slog.Any("error", err))
		}
	}
	if s.audit != nil {
		if err := s.audit.Record(ctx, shared.AuditLog{
			ActorID:  shared.ActorFromContext(ctx),
			Action:   action,
			Entity:   "product",
			EntityID: strconv.FormatInt(id, 10),
		}); err != nil {
			s.logger.Warn("catalog audit", slog.Int64("product_id", id), slog.Any("error", err))
		}
	}
}

func normalize(in *ProductInput) {
	in.Code = strings.TrimSpace(in.Code)
	in.Barcode = strings.TrimSpace(in.Barcode)
	in.Name = strings.TrimSpace(in.Name)
	if in.Unit == "" {
		in.Unit = "pcs"
	}
	if in.Status == "" {
		in.Status = StatusActive
	}
}
