package promotions

import (
	"context"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tillpoint/tillpoint/internal/platform/db"
)

const promotionColumns = `id, code, name, discount_percent, starts_at, ends_at, active, created_at, updated_at`

// Repository persists promotions in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// List returns a page of promotions, newest window first.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Promotion, int, error) {
	where := []string{"TRUE"}
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}
	if filter.Search != "" {
		p := arg("%" + filter.Search + "%")
		where = append(where, "(code ILIKE "+p+" OR name ILIKE "+p+")")
	}
	if !filter.ActiveAt.IsZero() {
		p := arg(filter.ActiveAt)
		where = append(where, "active AND starts_at <= "+p+" AND ends_at > "+p)
	}
	cond := strings.Join(where, " AND ")
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM promotions WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `SELECT `+promotionColumns+` FROM promotions WHERE `+cond+
		` ORDER BY starts_at DESC LIMIT `+arg(filter.Limit())+` OFFSET `+arg(filter.Offset()), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	out := make([]Promotion, 0)
	for rows.Next() {
		p, err := scanPromotion(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, p)
	}
	return out, total, rows.Err()
}

// Get loads one promotion.
func (r *Repository) Get(ctx context.Context, id int64) (Promotion, error) {
	p, err := scanPromotion(r.pool.QueryRow(ctx, `SELECT `+promotionColumns+` FROM promotions WHERE id = $1`, id))
	if db.IsNoRows(err) {
		return Promotion{}, ErrNotFound
	}
	return p, err
}

// GetByCode loads a promotion by its code, ignoring case.
func (r *Repository) GetByCode(ctx context.Context, code string) (Promotion, error) {
	p, err := scanPromotion(r.pool.QueryRow(ctx, `SELECT `+promotionColumns+` FROM promotions WHERE UPPER(code) = UPPER($1)`, code))
	if db.IsNoRows(err) {
		return Promotion{}, ErrNotFound
	}
	return p, err
}

// Create inserts a promotion.
func (r *Repository) Create(ctx context.Context, in Input) (Promotion, error) {
	p, err := scanPromotion(r.pool.QueryRow(ctx, `INSERT INTO promotions (code, name, discount_percent, starts_at, ends_at, active)
VALUES ($1, $2, $3, $4, $5, $6) RETURNING `+promotionColumns,
		in.Code, in.Name, in.DiscountPercent, in.StartsAt, in.EndsAt, in.Active))
	if db.IsUniqueViolation(err) {
		return Promotion{}, ErrDuplicateCode
	}
	return p, err
}

// Update rewrites a promotion.
func (r *Repository) Update(ctx context.Context, id int64, in Input) (Promotion, error) {
	p, err := scanPromotion(r.pool.QueryRow(ctx, `UPDATE promotions SET code = $2, name = $3, discount_percent = $4,
starts_at = $5, ends_at = $6, active = $7, updated_at = NOW() WHERE id = $1 RETURNING `+promotionColumns,
		id, in.Code, in.Name, in.DiscountPercent, in.StartsAt, in.EndsAt, in.Active))
	switch {
	case db.IsNoRows(err):
		return Promotion{}, ErrNotFound
	case db.IsUniqueViolation(err):
		return Promotion{}, ErrDuplicateCode
	}
	return p, err
}

// Delete removes a promotion.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM promotions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanPromotion(row pgx.Row) (Promotion, error) {
	var p Promotion
	err := row.Scan(&p.ID, &p.Code, &p.Name, &p.DiscountPercent, &p.StartsAt, &p.EndsAt, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}
