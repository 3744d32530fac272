package users

import (
	"context"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tillpoint/tillpoint/internal/platform/db"
	"github.com/tillpoint/tillpoint/internal/shared"
)

const userSelect = `SELECT u.id, u.email, u.name, u.role_id, COALESCE(r.name, ''), u.is_active, u.created_at, u.updated_at
FROM users u LEFT JOIN roles r ON r.id = u.role_id`

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// List returns a page of users and the total match count.
func (r *Repository) List(ctx context.Context, filter shared.ListFilters) ([]User, int, error) {
	cond := "TRUE"
	args := []any{}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		cond = "(u.email ILIKE $1 OR u.name ILIKE $1)"
	}
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users u WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	n := len(args)
	args = append(args, filter.Limit(), filter.Offset())
	rows, err := r.pool.Query(ctx, userSelect+` WHERE `+cond+` ORDER BY u.name LIMIT $`+strconv.Itoa(n+1)+` OFFSET $`+strconv.Itoa(n+2), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	out := make([]User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, u)
	}
	return out, total, rows.Err()
}

// Get fetches a user by id.
func (r *Repository) Get(ctx context.Context, id int64) (User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, userSelect+` WHERE u.id = $1`, id))
	if db.IsNoRows(err) {
		return User{}, ErrNotFound
	}
	return u, err
}

// Create inserts a user with an already hashed password.
func (r *Repository) Create(ctx context.Context, in CreateInput, passwordHash string) (User, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO users (email, name, password_hash, role_id) VALUES ($1, $2, $3, $4) RETURNING id`,
		strings.ToLower(in.Email), in.Name, passwordHash, in.RoleID).Scan(&id)
	if db.IsUniqueViolation(err) {
		return User{}, ErrDuplicateEmail
	}
	if err != nil {
		return User{}, err
	}
	return r.Get(ctx, id)
}

// Update rewrites profile and access fields.
func (r *Repository) Update(ctx context.Context, id int64, in UpdateInput) (User, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET name = $2, role_id = $3, is_active = $4, updated_at = NOW() WHERE id = $1`,
		id, in.Name, in.RoleID, in.IsActive)
	if err != nil {
		return User{}, err
	}
	if tag.RowsAffected() == 0 {
		return User{}, ErrNotFound
	}
	return r.Get(ctx, id)
}

// SetPassword replaces the stored hash.
func (r *Repository) SetPassword(ctx context.Context, id int64, passwordHash string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`, id, passwordHash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.RoleID, &u.RoleName, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}
