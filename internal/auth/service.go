package auth

import (
	"context"
	"errors"

	"golang.org/x/crypto/bcrypt"

	"github.com/tillpoint/tillpoint/internal/shared"
)

// PermissionSource resolves permissions for the profile endpoint.
type PermissionSource interface {
	EffectivePermissions(ctx context.Context, userID int64) ([]string, error)
}

// Service wraps authentication business rules.
type Service struct {
	repo  Repository
	perms PermissionSource
}

// NewService constructs a new Service.
func NewService(repo Repository, perms PermissionSource) *Service {
	return &Service{repo: repo, perms: perms}
}

// Authenticate validates email/password credentials. Unknown, inactive and
// mismatched accounts all fail with ErrLoginFailed.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, ErrLoginFailed
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrLoginFailed
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrLoginFailed
	}
	return user, nil
}

// Profile loads the signed-in user with their effective permissions.
func (s *Service) Profile(ctx context.Context, userID int64) (Profile, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return Profile{}, ErrLoginFailed
		}
		return Profile{}, err
	}
	if !user.IsActive {
		return Profile{}, ErrLoginFailed
	}
	profile := Profile{ID: user.ID, Email: user.Email, Name: user.Name, Permissions: []string{}}
	if s.perms != nil {
		perms, err := s.perms.EffectivePermissions(ctx, user.ID)
		if err != nil {
			return Profile{}, err
		}
		if perms != nil {
			profile.Permissions = perms
		}
	}
	return profile, nil
}
