package rbac

import (
	"time"

	"github.com/tillpoint/tillpoint/internal/platform/httpx"
	"github.com/tillpoint/tillpoint/internal/shared"
)

// AdminRole is granted every permission regardless of its stored list.
const AdminRole = "admin"

// Role groups permissions assigned to staff.
type Role struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Permissions []string  `json:"permissions"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// RoleInput is the editable part of a role.
type RoleInput struct {
	Name        string   `json:"name" validate:"required,max=64"`
	Description string   `json:"description" validate:"max=255"`
	Permissions []string `json:"permissions" validate:"dive,required"`
}

var (
	// ErrNotFound indicates that the requested role does not exist.
	ErrNotFound = shared.Safe("Role not found", httpx.ErrNotFound)
	// ErrUnknownPermission rejects permission names the service does not check.
	ErrUnknownPermission = shared.Safe("Unknown permission", httpx.ErrValidation)
	// ErrDuplicateRole indicates the role name is taken.
	ErrDuplicateRole = shared.Safe("A role with this name already exists", httpx.ErrDuplicate)
	// ErrBuiltinRole protects the admin role from edits.
	ErrBuiltinRole = shared.Safe("The admin role cannot be changed", httpx.ErrConflict)
)
