package users

import (
	"time"

	"github.com/tillpoint/tillpoint/internal/platform/httpx"
	"github.com/tillpoint/tillpoint/internal/shared"
)

// User is a staff account as shown to administrators. The password hash never
// leaves the repository.
type User struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	RoleID    *int64    `json:"role_id,omitempty"`
	RoleName  string    `json:"role_name,omitempty"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateInput registers a new staff account.
type CreateInput struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Name     string `json:"name" validate:"required,max=128"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	RoleID   *int64 `json:"role_id" validate:"omitempty,gt=0"`
}

// UpdateInput edits profile and access fields.
type UpdateInput struct {
	Name     string `json:"name" validate:"required,max=128"`
	RoleID   *int64 `json:"role_id" validate:"omitempty,gt=0"`
	IsActive bool   `json:"is_active"`
}

// PasswordInput resets a password.
type PasswordInput struct {
	Password string `json:"password" validate:"required,min=8,max=72"`
}

var (
	// ErrNotFound indicates the user does not exist.
	ErrNotFound = shared.Safe("User not found", httpx.ErrNotFound)
	// ErrDuplicateEmail indicates the email is already registered.
	ErrDuplicateEmail = shared.Safe("A user with this email already exists", httpx.ErrDuplicate)
	// ErrSelfDeactivate stops an admin from locking themselves out.
	ErrSelfDeactivate = shared.Safe("You cannot deactivate your own account", httpx.ErrConflict)
)
