package procurement

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tillpoint/tillpoint/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CountGRNsBetween counts receipts created in [from, to).
func (r *Repository) CountGRNsBetween(ctx context.Context, from, to time.Time) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM grns WHERE created_at >= $1 AND created_at < $2`, from, to).Scan(&n)
	return n, err
}

// CountReturnsBetween counts supplier returns created in [from, to).
func (r *Repository) CountReturnsBetween(ctx context.Context, from, to time.Time) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM supplier_returns WHERE created_at >= $1 AND created_at < $2`, from, to).Scan(&n)
	return n, err
}

// CreateGRN inserts the receipt header and lines together.
func (r *Repository) CreateGRN(ctx context.Context, g GoodsReceipt) (GoodsReceipt, error) {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `INSERT INTO grns (number, supplier_id, status, received_at, note, created_by, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
			g.Number, g.SupplierID, string(g.Status), g.ReceivedAt, g.Note, g.CreatedBy, g.CreatedAt).Scan(&g.ID)
		if err != nil {
			return err
		}
		return insertLines(ctx, tx, `INSERT INTO grn_lines (grn_id, product_id, qty, unit_cost) VALUES ($1, $2, $3, $4)`, g.ID, g.Lines)
	})
	if err != nil {
		return GoodsReceipt{}, mapWriteError(err)
	}
	return g, nil
}

// GetGRN loads a receipt with its lines.
func (r *Repository) GetGRN(ctx context.Context, id int64) (GoodsReceipt, error) {
	var g GoodsReceipt
	var status string
	err := r.pool.QueryRow(ctx, `SELECT id, number, supplier_id, status, received_at, note, created_by, created_at, posted_at
FROM grns WHERE id = $1`, id).Scan(&g.ID, &g.Number, &g.SupplierID, &status, &g.ReceivedAt, &g.Note, &g.CreatedBy, &g.CreatedAt, &g.PostedAt)
	if err != nil {
		if db.IsNoRows(err) {
			return GoodsReceipt{}, ErrNotFound
		}
		return GoodsReceipt{}, err
	}
	g.Status = GRNStatus(status)
	g.Lines, err = r.lines(ctx, `SELECT product_id, qty, unit_cost::float8 FROM grn_lines WHERE grn_id = $1 ORDER BY id`, id)
	if err != nil {
		return GoodsReceipt{}, err
	}
	return g, nil
}

// ListGRNs returns receipt headers newest first.
func (r *Repository) ListGRNs(ctx context.Context, filter ListFilter) ([]GoodsReceipt, int, error) {
	where := []string{"TRUE"}
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}
	if filter.SupplierID > 0 {
		where = append(where, "supplier_id = "+arg(filter.SupplierID))
	}
	if filter.Status != "" {
		where = append(where, "status = "+arg(string(filter.Status)))
	}
	if filter.Search != "" {
		p := arg("%" + filter.Search + "%")
		where = append(where, "(number ILIKE "+p+" OR note ILIKE "+p+")")
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM grns WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `SELECT id, number, supplier_id, status, received_at, note, created_by, created_at, posted_at
FROM grns WHERE `+cond+` ORDER BY created_at DESC, id DESC LIMIT `+arg(filter.Limit())+` OFFSET `+arg(filter.Offset()), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	out := make([]GoodsReceipt, 0)
	for rows.Next() {
		var g GoodsReceipt
		var status string
		if err := rows.Scan(&g.ID, &g.Number, &g.SupplierID, &status, &g.ReceivedAt, &g.Note, &g.CreatedBy, &g.CreatedAt, &g.PostedAt); err != nil {
			return nil, 0, err
		}
		g.Status = GRNStatus(status)
		out = append(out, g)
	}
	return out, total, rows.Err()
}

// MarkGRNPosted moves a draft receipt to posted.
func (r *Repository) MarkGRNPosted(ctx context.Context, id int64, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `UPDATE grns SET status = $2, posted_at = $3 WHERE id = $1 AND status = $4`,
		id, string(GRNStatusPosted), at, string(GRNStatusDraft))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.GetGRN(ctx, id); err != nil {
			return err
		}
		return ErrAlreadyPosted
	}
	return nil
}

// CreateReturn inserts the return header and lines together.
func (r *Repository) CreateReturn(ctx context.Context, ret SupplierReturn) (SupplierReturn, error) {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `INSERT INTO supplier_returns (number, supplier_id, grn_id, reason, created_by, created_at)
VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
			ret.Number, ret.SupplierID, ret.GRNID, ret.Reason, ret.CreatedBy, ret.CreatedAt).Scan(&ret.ID)
		if err != nil {
			return err
		}
		return insertLines(ctx, tx, `INSERT INTO supplier_return_lines (return_id, product_id, qty, unit_cost) VALUES ($1, $2, $3, $4)`, ret.ID, ret.Lines)
	})
	if err != nil {
		return SupplierReturn{}, mapWriteError(err)
	}
	return ret, nil
}

// DeleteReturn removes a return whose stock posting failed.
func (r *Repository) DeleteReturn(ctx context.Context, id int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM supplier_returns WHERE id = $1`, id)
	return err
}

// ListReturns returns supplier returns newest first, with lines.
func (r *Repository) ListReturns(ctx context.Context, filter ListFilter) ([]SupplierReturn, int, error) {
	where := []string{"TRUE"}
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}
	if filter.SupplierID > 0 {
		where = append(where, "supplier_id = "+arg(filter.SupplierID))
	}
	if filter.Search != "" {
		p := arg("%" + filter.Search + "%")
		where = append(where, "(number ILIKE "+p+" OR reason ILIKE "+p+")")
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM supplier_returns WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `SELECT id, number, supplier_id, grn_id, reason, created_by, created_at
FROM supplier_returns WHERE `+cond+` ORDER BY created_at DESC, id DESC LIMIT `+arg(filter.Limit())+` OFFSET `+arg(filter.Offset()), args...)
	if err != nil {
		return nil, 0, err
	}
	out := make([]SupplierReturn, 0)
	for rows.Next() {
		var ret SupplierReturn
		if err := rows.Scan(&ret.ID, &ret.Number, &ret.SupplierID, &ret.GRNID, &ret.Reason, &ret.CreatedBy, &ret.CreatedAt); err != nil {
			rows.Close()
			return nil, 0, err
		}
		out = append(out, ret)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	for i := range out {
		out[i].Lines, err = r.lines(ctx, `SELECT product_id, qty, unit_cost::float8 FROM supplier_return_lines WHERE return_id = $1 ORDER BY id`, out[i].ID)
		if err != nil {
			return nil, 0, err
		}
	}
	return out, total, nil
}

// ReturnedQty sums quantities already returned against a receipt, per product.
func (r *Repository) ReturnedQty(ctx context.Context, grnID int64) (map[int64]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT l.product_id, SUM(l.qty)
FROM supplier_return_lines l JOIN supplier_returns s ON s.id = l.return_id
WHERE s.grn_id = $1 GROUP BY l.product_id`, grnID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[int64]int64{}
	for rows.Next() {
		var id, qty int64
		if err := rows.Scan(&id, &qty); err != nil {
			return nil, err
		}
		out[id] = qty
	}
	return out, rows.Err()
}

func (r *Repository) lines(ctx context.Context, query string, id int64) ([]Line, error) {
	rows, err := r.pool.Query(ctx, query, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]Line, 0)
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ProductID, &l.Qty, &l.UnitCost); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func insertLines(ctx context.Context, tx pgx.Tx, query string, parentID int64, lines []Line) error {
	batch := &pgx.Batch{}
	for _, l := range lines {
		batch.Queue(query, parentID, l.ProductID, l.Qty, l.UnitCost)
	}
	return tx.SendBatch(ctx, batch).Close()
}

func mapWriteError(err error) error {
	switch {
	case db.IsUniqueViolation(err):
		return ErrDuplicateNumber
	case db.IsForeignKeyViolation(err):
		return ErrUnknownReference
	}
	return err
}
