package suppliers

import (
	"context"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tillpoint/tillpoint/internal/masterdata/shared"
)

type Repository interface {
	List(ctx context.Context, filters shared.ListFilters) ([]Supplier, int, error)
	Get(ctx context.Context, id int64) (Supplier, error)
	Create(ctx context.Context, supplier Supplier) (Supplier, error)
	Update(ctx context.Context, id int64, supplier Supplier) (Supplier, error)
	Delete(ctx context.Context, id int64) error
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const columns = `id, code, name, contact, phone, email, address, created_at, updated_at`

func scan(row pgx.Row) (Supplier, error) {
	var s Supplier
	err := row.Scan(&s.ID, &s.Code, &s.Name, &s.Contact, &s.Phone, &s.Email, &s.Address, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

func (r *repository) List(ctx context.Context, filters shared.ListFilters) ([]Supplier, int, error) {
	where := ` WHERE TRUE`
	args := []any{}
	if filters.Search != "" {
		args = append(args, "%"+filters.Search+"%")
		where += ` AND (name ILIKE $1 OR code ILIKE $1 OR contact ILIKE $1 OR phone ILIKE $1)`
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM suppliers`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + columns + ` FROM suppliers` + where +
		` ORDER BY ` + filters.OrderBy([]string{"code", "name", "created_at"}, "name") +
		` LIMIT $` + strconv.Itoa(len(args)+1) + ` OFFSET $` + strconv.Itoa(len(args)+2)
	args = append(args, filters.Limit(), filters.Offset())

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	suppliers := make([]Supplier, 0)
	for rows.Next() {
		s, err := scan(rows)
		if err != nil {
			return nil, 0, err
		}
		suppliers = append(suppliers, s)
	}
	return suppliers, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Supplier, error) {
	s, err := scan(r.pool.QueryRow(ctx, `SELECT `+columns+` FROM suppliers WHERE id = $1`, id))
	return s, shared.MapWriteError(err)
}

func (r *repository) Create(ctx context.Context, supplier Supplier) (Supplier, error) {
	s, err := scan(r.pool.QueryRow(ctx, `INSERT INTO suppliers (code, name, contact, phone, email, address, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $7) RETURNING `+columns,
		supplier.Code, supplier.Name, supplier.Contact, supplier.Phone, supplier.Email, supplier.Address, time.Now()))
	return s, shared.MapWriteError(err)
}

func (r *repository) Update(ctx context.Context, id int64, supplier Supplier) (Supplier, error) {
	s, err := scan(r.pool.QueryRow(ctx, `UPDATE suppliers SET code = $2, name = $3, contact = $4, phone = $5, email = $6, address = $7, updated_at = $8
WHERE id = $1 RETURNING `+columns,
		id, supplier.Code, supplier.Name, supplier.Contact, supplier.Phone, supplier.Email, supplier.Address, time.Now()))
	return s, shared.MapWriteError(err)
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM suppliers WHERE id = $1`, id)
	if err != nil {
		return shared.MapWriteError(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
