package promotions

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/tillpoint/tillpoint/internal/platform/httpx"
	"github.com/tillpoint/tillpoint/internal/shared"
)

// RepositoryPort abstracts promotion persistence.
type RepositoryPort interface {
	List(ctx context.Context, filter ListFilter) ([]Promotion, int, error)
	Get(ctx context.Context, id int64) (Promotion, error)
	GetByCode(ctx context.Context, code string) (Promotion, error)
	Create(ctx context.Context, in Input) (Promotion, error)
	Update(ctx context.Context, id int64, in Input) (Promotion, error)
	Delete(ctx context.Context, id int64) error
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service manages promotions and resolves codes at the till.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
}

// NewService builds Service. audit may be nil.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

// List returns a page of promotions.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Promotion, int, error) {
	return s.repo.List(ctx, filter)
}

// Get loads one promotion.
func (s *Service) Get(ctx context.Context, id int64) (Promotion, error) {
	return s.repo.Get(ctx, id)
}

// Create validates and stores a promotion. Codes are upper-cased.
func (s *Service) Create(ctx context.Context, in Input) (Promotion, error) {
	in = normalize(in)
	if err := httpx.Validate(in); err != nil {
		return Promotion{}, err
	}
	p, err := s.repo.Create(ctx, in)
	if err != nil {
		return Promotion{}, err
	}
	s.record(ctx, "promotions:create", p.ID)
	return p, nil
}

// Update validates and rewrites a promotion.
func (s *Service) Update(ctx context.Context, id int64, in Input) (Promotion, error) {
	in = normalize(in)
	if err := httpx.Validate(in); err != nil {
		return Promotion{}, err
	}
	p, err := s.repo.Update(ctx, id, in)
	if err != nil {
		return Promotion{}, err
	}
	s.record(ctx, "promotions:update", p.ID)
	return p, nil
}

// Delete removes a promotion.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.record(ctx, "promotions:delete", id)
	return nil
}

// Resolve returns the promotion for code if it can be redeemed at at.
func (s *Service) Resolve(ctx context.Context, code string, at time.Time) (Promotion, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return Promotion{}, ErrNotApplicable
	}
	p, err := s.repo.GetByCode(ctx, code)
	if errors.Is(err, ErrNotFound) {
		return Promotion{}, ErrNotApplicable
	}
	if err != nil {
		return Promotion{}, err
	}
	if !p.AppliesAt(at) {
		return Promotion{}, ErrNotApplicable
	}
	return p, nil
}

func normalize(in Input) Input {
	in.Code = strings.ToUpper(strings.TrimSpace(in.Code))
	in.Name = strings.TrimSpace(in.Name)
	return in
}

func (s *Service) record(ctx context.Context, action string, id int64) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  shared.ActorFromContext(ctx),
		Action:   action,
		Entity:   "promotion",
		EntityID: strconv.FormatInt(id, 10),
	})
}
