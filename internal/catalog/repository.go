package catalog

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tillpoint/tillpoint/internal/platform/db"
)

const productColumns = `id, code, barcode, name, category_id, supplier_id, unit, cost_price, selling_price, stock, min_stock, status, created_at, updated_at`

// Repository persists products in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// List returns a page of products plus the total match count.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Product, int, error) {
	where := []string{"1=1"}
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}
	if filter.Search != "" {
		p := arg("%" + filter.Search + "%")
		where = append(where, "(name ILIKE "+p+" OR code ILIKE "+p+" OR barcode ILIKE "+p+")")
	}
	if filter.Status != "" {
		where = append(where, "status = "+arg(string(filter.Status)))
	}
	if filter.CategoryID > 0 {
		where = append(where, "category_id = "+arg(filter.CategoryID))
	}
	if filter.LowStock {
		where = append(where, "stock <= min_stock")
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM products WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + productColumns + ` FROM products WHERE ` + cond +
		` ORDER BY name ASC LIMIT ` + arg(filter.Limit()) + ` OFFSET ` + arg(filter.Offset())
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	products, err := collectProducts(rows)
	if err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

// ListActive returns every Active product ordered by name.
func (r *Repository) ListActive(ctx context.Context) ([]Product, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+productColumns+` FROM products WHERE status = 'Active' ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	return collectProducts(rows)
}

// LowStock returns active products at or below their reorder threshold.
func (r *Repository) LowStock(ctx context.Context) ([]Product, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+productColumns+` FROM products WHERE status = 'Active' AND stock <= min_stock ORDER BY stock ASC, name ASC`)
	if err != nil {
		return nil, err
	}
	return collectProducts(rows)
}

// Get loads one product.
func (r *Repository) Get(ctx context.Context, id int64) (Product, error) {
	return r.get(ctx, r.pool, id, false)
}

// GetForUpdate loads one product and locks its row inside q's transaction.
func (r *Repository) GetForUpdate(ctx context.Context, q db.Querier, id int64) (Product, error) {
	return r.get(ctx, q, id, true)
}

func (r *Repository) get(ctx context.Context, q db.Querier, id int64, lock bool) (Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`
	if lock {
		query += ` FOR UPDATE`
	}
	p, err := scanProduct(q.QueryRow(ctx, query, id))
	if db.IsNoRows(err) {
		return Product{}, productNotFound(id)
	}
	return p, err
}

// Create inserts a product with its opening stock.
func (r *Repository) Create(ctx context.Context, in NewProductInput) (Product, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO products (code, barcode, name, category_id, supplier_id, unit, cost_price, selling_price, stock, min_stock, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW())
RETURNING `+productColumns,
		in.Code, in.Barcode, in.Name, in.CategoryID, in.SupplierID, in.Unit, in.CostPrice, in.SellingPrice, in.OpeningStock, in.MinStock, string(in.Status))
	p, err := scanProduct(row)
	if db.IsUniqueViolation(err) {
		return Product{}, ErrDuplicateCode
	}
	return p, err
}

// Update rewrites the editable fields. Stock is left untouched.
func (r *Repository) Update(ctx context.Context, id int64, in ProductInput) (Product, error) {
	row := r.pool.QueryRow(ctx, `UPDATE products SET code = $2, barcode = $3, name = $4, category_id = $5, supplier_id = $6, unit = $7,
cost_price = $8, selling_price = $9, min_stock = $10, status = $11, updated_at = NOW()
WHERE id = $1
RETURNING `+productColumns,
		id, in.Code, in.Barcode, in.Name, in.CategoryID, in.SupplierID, in.Unit, in.CostPrice, in.SellingPrice, in.MinStock, string(in.Status))
	p, err := scanProduct(row)
	switch {
	case db.IsNoRows(err):
		return Product{}, productNotFound(id)
	case db.IsUniqueViolation(err):
		return Product{}, ErrDuplicateCode
	}
	return p, err
}

// Delete removes a product.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return productNotFound(id)
	}
	return nil
}

// IncrementStock applies a signed delta to one product's stock in place. It is
// the only statement that mutates stock, so concurrent changes compose.
func (r *Repository) IncrementStock(ctx context.Context, q db.Querier, id, delta int64) error {
	tag, err := q.Exec(ctx, `UPDATE products SET stock = stock + $2, updated_at = NOW() WHERE id = $1`, id, delta)
	if err != nil {
		return fmt.Errorf("catalog: increment stock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return productNotFound(id)
	}
	return nil
}

// ApplyStockBatch sends one increment per delta as a single batch on q. Any
// failed statement aborts the batch with an error.
func (r *Repository) ApplyStockBatch(ctx context.Context, q db.Querier, deltas []StockDelta) error {
	if len(deltas) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, d := range deltas {
		batch.Queue(`UPDATE products SET stock = stock + $2, updated_at = NOW() WHERE id = $1`, d.ProductID, d.Delta)
	}
	results := q.SendBatch(ctx, batch)
	for _, d := range deltas {
		tag, err := results.Exec()
		if err != nil {
			_ = results.Close()
			return fmt.Errorf("catalog: stock batch: %w", err)
		}
		if tag.RowsAffected() == 0 {
			_ = results.Close()
			return productNotFound(d.ProductID)
		}
	}
	return results.Close()
}

// DecrementStockBatch subtracts each line's Delta from its product atomically:
// either every row changes or none does.
func (r *Repository) DecrementStockBatch(ctx context.Context, lines []StockDelta) error {
	deltas := make([]StockDelta, len(lines))
	for i, l := range lines {
		deltas[i] = StockDelta{ProductID: l.ProductID, Delta: -l.Delta}
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return r.ApplyStockBatch(ctx, tx, deltas)
	})
}

func collectProducts(rows pgx.Rows) ([]Product, error) {
	defer rows.Close()
	products := make([]Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	var status string
	err := row.Scan(&p.ID, &p.Code, &p.Barcode, &p.Name, &p.CategoryID, &p.SupplierID, &p.Unit,
		&p.CostPrice, &p.SellingPrice, &p.Stock, &p.MinStock, &status, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return Product{}, err
	}
	p.Status = Status(status)
	return p, nil
}
