package users

import (
	"context"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/tillpoint/tillpoint/internal/platform/httpx"
	"github.com/tillpoint/tillpoint/internal/shared"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	List(ctx context.Context, filter shared.ListFilters) ([]User, int, error)
	Get(ctx context.Context, id int64) (User, error)
	Create(ctx context.Context, in CreateInput, passwordHash string) (User, error)
	Update(ctx context.Context, id int64, in UpdateInput) (User, error)
	SetPassword(ctx context.Context, id int64, passwordHash string) error
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service handles user business logic.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
	cost  int
}

// NewService builds Service instance. audit may be nil.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit, cost: bcrypt.DefaultCost}
}

// List returns a page of users.
func (s *Service) List(ctx context.Context, filter shared.ListFilters) ([]User, int, error) {
	return s.repo.List(ctx, filter)
}

// Get returns one user.
func (s *Service) Get(ctx context.Context, id int64) (User, error) {
	return s.repo.Get(ctx, id)
}

// Create validates input, hashes the password and stores the account.
func (s *Service) Create(ctx context.Context, in CreateInput) (User, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Name = strings.TrimSpace(in.Name)
	if err := httpx.Validate(in); err != nil {
		return User{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return User{}, err
	}
	u, err := s.repo.Create(ctx, in, string(hash))
	if err != nil {
		return User{}, err
	}
	s.record(ctx, "users:create", u.ID)
	return u, nil
}

// Update edits a user. Staff cannot deactivate their own account.
func (s *Service) Update(ctx context.Context, id int64, in UpdateInput) (User, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := httpx.Validate(in); err != nil {
		return User{}, err
	}
	if !in.IsActive && shared.ActorFromContext(ctx) == id {
		return User{}, ErrSelfDeactivate
	}
	u, err := s.repo.Update(ctx, id, in)
	if err != nil {
		return User{}, err
	}
	s.record(ctx, "users:update", u.ID)
	return u, nil
}

// ResetPassword stores a new bcrypt hash for the user.
func (s *Service) ResetPassword(ctx context.Context, id int64, in PasswordInput) error {
	if err := httpx.Validate(in); err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return err
	}
	if err := s.repo.SetPassword(ctx, id, string(hash)); err != nil {
		return err
	}
	s.record(ctx, "users:password", id)
	return nil
}

func (s *Service) record(ctx context.Context, action string, id int64) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  shared.ActorFromContext(ctx),
		Action:   action,
		Entity:   "user",
		EntityID: strconv.FormatInt(id, 10),
	})
}
