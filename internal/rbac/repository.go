package rbac

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tillpoint/tillpoint/internal/platform/db"
)

// Repository persists roles in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const roleColumns = `id, name, description, permissions, created_at, updated_at`

// ListRoles returns all roles ordered by name.
func (r *Repository) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+roleColumns+` FROM roles ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	roles := make([]Role, 0)
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// GetRole fetches a role by ID.
func (r *Repository) GetRole(ctx context.Context, id int64) (Role, error) {
	role, err := scanRole(r.pool.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE id = $1`, id))
	if db.IsNoRows(err) {
		return Role{}, ErrNotFound
	}
	return role, err
}

// CreateRole inserts a role.
func (r *Repository) CreateRole(ctx context.Context, in RoleInput) (Role, error) {
	role, err := scanRole(r.pool.QueryRow(ctx, `INSERT INTO roles (name, description, permissions) VALUES ($1, $2, $3) RETURNING `+roleColumns,
		in.Name, in.Description, in.Permissions))
	if db.IsUniqueViolation(err) {
		return Role{}, ErrDuplicateRole
	}
	return role, err
}

// UpdateRole rewrites a role.
func (r *Repository) UpdateRole(ctx context.Context, id int64, in RoleInput) (Role, error) {
	role, err := scanRole(r.pool.QueryRow(ctx, `UPDATE roles SET name = $2, description = $3, permissions = $4, updated_at = NOW() WHERE id = $1 RETURNING `+roleColumns,
		id, in.Name, in.Description, in.Permissions))
	switch {
	case db.IsNoRows(err):
		return Role{}, ErrNotFound
	case db.IsUniqueViolation(err):
		return Role{}, ErrDuplicateRole
	}
	return role, err
}

// DeleteRole removes a role. Users holding it lose their permissions.
func (r *Repository) DeleteRole(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UserRole loads the role attached to an active user. Users without a role get
// an empty Role.
func (r *Repository) UserRole(ctx context.Context, userID int64) (Role, error) {
	role, err := scanRole(r.pool.QueryRow(ctx, `SELECT r.id, r.name, r.description, r.permissions, r.created_at, r.updated_at
FROM users u JOIN roles r ON r.id = u.role_id
WHERE u.id = $1 AND u.is_active`, userID))
	if db.IsNoRows(err) {
		return Role{}, nil
	}
	return role, err
}

func scanRole(row pgx.Row) (Role, error) {
	var role Role
	if err := row.Scan(&role.ID, &role.Name, &role.Description, &role.Permissions, &role.CreatedAt, &role.UpdatedAt); err != nil {
		return Role{}, err
	}
	role.Name = strings.TrimSpace(role.Name)
	return role, nil
}
