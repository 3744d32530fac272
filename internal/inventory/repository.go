package inventory

import (
	"context"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tillpoint/tillpoint/internal/catalog"
	"github.com/tillpoint/tillpoint/internal/platform/db"
)

// Repository persists stock movements in PostgreSQL and changes stock through
// the catalog increment primitive.
type Repository struct {
	pool     *pgxpool.Pool
	products *catalog.Repository
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool, products *catalog.Repository) *Repository {
	return &Repository{pool: pool, products: products}
}

// TxRepository exposes transactional operations used by service.
type TxRepository interface {
	LockProduct(ctx context.Context, productID int64) (ProductStock, error)
	IncrementStock(ctx context.Context, productID, delta int64) error
	InsertMovement(ctx context.Context, m Movement) error
}

type txRepo struct {
	tx       pgx.Tx
	products *catalog.Repository
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx, products: r.products})
	})
}

func (t *txRepo) LockProduct(ctx context.Context, productID int64) (ProductStock, error) {
	p, err := t.products.GetForUpdate(ctx, t.tx, productID)
	if err != nil {
		return ProductStock{}, err
	}
	return ProductStock{ID: p.ID, Name: p.Name, Stock: p.Stock}, nil
}

func (t *txRepo) IncrementStock(ctx context.Context, productID, delta int64) error {
	return t.products.IncrementStock(ctx, t.tx, productID, delta)
}

func (t *txRepo) InsertMovement(ctx context.Context, m Movement) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO stock_movements
(id, product_id, product_name, quantity, previous_stock, new_stock, reason, note, ref, actor_id, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		m.ID, m.ProductID, m.ProductName, m.Quantity, m.PreviousStock, m.NewStock, string(m.Reason), m.Note, m.Ref, m.ActorID, m.CreatedAt)
	return err
}

const movementColumns = `id::text, product_id, product_name, quantity, previous_stock, new_stock, reason, note, ref, actor_id, created_at`

// ListMovements returns the stock card for the filter, newest first.
func (r *Repository) ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, int, error) {
	where := []string{"TRUE"}
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}
	if filter.ProductID > 0 {
		where = append(where, "product_id = "+arg(filter.ProductID))
	}
	if filter.Reason != "" {
		where = append(where, "reason = "+arg(string(filter.Reason)))
	}
	if !filter.From.IsZero() {
		where = append(where, "created_at >= "+arg(filter.From))
	}
	if !filter.To.IsZero() {
		where = append(where, "created_at < "+arg(filter.To))
	}
	if filter.Search != "" {
		p := arg("%" + filter.Search + "%")
		where = append(where, "(product_name ILIKE "+p+" OR note ILIKE "+p+" OR ref ILIKE "+p+")")
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM stock_movements WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `SELECT `+movementColumns+` FROM stock_movements WHERE `+cond+
		` ORDER BY created_at DESC LIMIT `+arg(filter.Limit())+` OFFSET `+arg(filter.Offset()), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	out := make([]Movement, 0)
	for rows.Next() {
		var m Movement
		var reason string
		if err := rows.Scan(&m.ID, &m.ProductID, &m.ProductName, &m.Quantity, &m.PreviousStock, &m.NewStock,
			&reason, &m.Note, &m.Ref, &m.ActorID, &m.CreatedAt); err != nil {
			return nil, 0, err
		}
		m.Reason = Reason(reason)
		out = append(out, m)
	}
	return out, total, rows.Err()
}
