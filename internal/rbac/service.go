package rbac

import (
	"context"
	"slices"
	"strings"

	"github.com/tillpoint/tillpoint/internal/platform/httpx"
	"github.com/tillpoint/tillpoint/internal/shared"
)

// RepositoryPort abstracts role persistence.
type RepositoryPort interface {
	ListRoles(ctx context.Context) ([]Role, error)
	GetRole(ctx context.Context, id int64) (Role, error)
	CreateRole(ctx context.Context, in RoleInput) (Role, error)
	UpdateRole(ctx context.Context, id int64, in RoleInput) (Role, error)
	DeleteRole(ctx context.Context, id int64) error
	UserRole(ctx context.Context, userID int64) (Role, error)
}

// Service orchestrates RBAC operations.
type Service struct {
	repo RepositoryPort
}

// NewService constructs a Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// ListRoles returns all roles ordered by name.
func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	return s.repo.ListRoles(ctx)
}

// GetRole fetches a role by ID.
func (s *Service) GetRole(ctx context.Context, id int64) (Role, error) {
	return s.repo.GetRole(ctx, id)
}

// CreateRole validates and inserts a role.
func (s *Service) CreateRole(ctx context.Context, in RoleInput) (Role, error) {
	in, err := normalizeRole(in)
	if err != nil {
		return Role{}, err
	}
	if in.Name == AdminRole {
		return Role{}, ErrDuplicateRole
	}
	return s.repo.CreateRole(ctx, in)
}

// UpdateRole validates and rewrites a role. The admin role is immutable.
func (s *Service) UpdateRole(ctx context.Context, id int64, in RoleInput) (Role, error) {
	in, err := normalizeRole(in)
	if err != nil {
		return Role{}, err
	}
	current, err := s.repo.GetRole(ctx, id)
	if err != nil {
		return Role{}, err
	}
	if current.Name == AdminRole || in.Name == AdminRole {
		return Role{}, ErrBuiltinRole
	}
	return s.repo.UpdateRole(ctx, id, in)
}

// DeleteRole removes a role. The admin role cannot be removed.
func (s *Service) DeleteRole(ctx context.Context, id int64) error {
	current, err := s.repo.GetRole(ctx, id)
	if err != nil {
		return err
	}
	if current.Name == AdminRole {
		return ErrBuiltinRole
	}
	return s.repo.DeleteRole(ctx, id)
}

// ListPermissions returns every permission the service checks.
func (s *Service) ListPermissions() []string {
	return shared.AllPermissions()
}

// EffectivePermissions returns the permission names granted to a user.
func (s *Service) EffectivePermissions(ctx context.Context, userID int64) ([]string, error) {
	role, err := s.repo.UserRole(ctx, userID)
	if err != nil {
		return nil, err
	}
	if role.Name == AdminRole {
		return shared.AllPermissions(), nil
	}
	return role.Permissions, nil
}

func normalizeRole(in RoleInput) (RoleInput, error) {
	in.Name = strings.ToLower(strings.TrimSpace(in.Name))
	in.Description = strings.TrimSpace(in.Description)
	if err := httpx.Validate(in); err != nil {
		return RoleInput{}, err
	}
	known := shared.AllPermissions()
	perms := make([]string, 0, len(in.Permissions))
	for _, p := range in.Permissions {
		p = strings.ToLower(strings.TrimSpace(p))
		if !slices.Contains(known, p) {
			return RoleInput{}, ErrUnknownPermission
		}
		if !slices.Contains(perms, p) {
			perms = append(perms, p)
		}
	}
	slices.Sort(perms)
	in.Permissions = perms
	return in, nil
}
