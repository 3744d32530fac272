package invoices

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tillpoint/tillpoint/internal/platform/db"
)

const invoiceColumns = `invoice_number, customer_name, customer_phone, items, subtotal, discount_percent, discount_amount,
tax_rate_percent, tax_amount, total, payment_method, amount_received, change_given, status, cashier_id, terminal_id, created_at, updated_at`

// Repository persists invoices in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Pool exposes the pool so checkout can open a transaction spanning invoice
// and stock writes.
func (r *Repository) Pool() *pgxpool.Pool {
	return r.pool
}

// Create inserts inv on q. The invoice number is the primary key.
func (r *Repository) Create(ctx context.Context, q db.Querier, inv Invoice) error {
	items, err := json.Marshal(inv.Items)
	if err != nil {
		return fmt.Errorf("invoices: encode items: %w", err)
	}
	_, err = q.Exec(ctx, `INSERT INTO invoices (`+invoiceColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		inv.Number, inv.CustomerName, inv.CustomerPhone, items, inv.Subtotal, inv.DiscountPercent, inv.DiscountAmount,
		inv.TaxRatePercent, inv.TaxAmount, inv.Total, string(inv.PaymentMethod), inv.AmountReceived, inv.ChangeGiven,
		string(inv.Status), inv.CashierID, inv.TerminalID, inv.CreatedAt, inv.UpdatedAt)
	if db.IsUniqueViolation(err) {
		return ErrDuplicateNumber
	}
	if err != nil {
		return fmt.Errorf("invoices: create: %w", err)
	}
	return nil
}

// Get loads one invoice by number.
func (r *Repository) Get(ctx context.Context, number string) (Invoice, error) {
	inv, err := scanInvoice(r.pool.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE invoice_number = $1`, number))
	if db.IsNoRows(err) {
		return Invoice{}, ErrNotFound
	}
	return inv, err
}

// List returns a page of invoices, newest first, with the total match count.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Invoice, int, error) {
	where := []string{"TRUE"}
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}
	if !filter.From.IsZero() {
		where = append(where, "created_at >= "+arg(filter.From))
	}
	if !filter.To.IsZero() {
		where = append(where, "created_at < "+arg(filter.To))
	}
	if filter.Status != "" {
		where = append(where, "status = "+arg(string(filter.Status)))
	}
	if filter.Search != "" {
		p := arg("%" + filter.Search + "%")
		where = append(where, "(invoice_number ILIKE "+p+" OR customer_name ILIKE "+p+" OR customer_phone ILIKE "+p+")")
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM invoices WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE `+cond+
		` ORDER BY created_at DESC LIMIT `+arg(filter.Limit())+` OFFSET `+arg(filter.Offset()), args...)
	if err != nil {
		return nil, 0, err
	}
	list, err := collectInvoices(rows)
	return list, total, err
}

// CountBetween counts invoices created in [from, to).
func (r *Repository) CountBetween(ctx context.Context, from, to time.Time) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM invoices WHERE created_at >= $1 AND created_at < $2`, from, to).Scan(&n)
	return n, err
}

// InvoicesBetween returns every invoice created in [from, to), oldest first.
func (r *Repository) InvoicesBetween(ctx context.Context, from, to time.Time) ([]Invoice, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE created_at >= $1 AND created_at < $2 ORDER BY created_at`, from, to)
	if err != nil {
		return nil, err
	}
	return collectInvoices(rows)
}

// UpdateStatus moves a completed invoice to status.
func (r *Repository) UpdateStatus(ctx context.Context, number string, status Status) (Invoice, error) {
	inv, err := scanInvoice(r.pool.QueryRow(ctx, `UPDATE invoices SET status = $2, updated_at = NOW()
WHERE invoice_number = $1 AND status = 'completed'
RETURNING `+invoiceColumns, number, string(status)))
	if db.IsNoRows(err) {
		if _, getErr := r.Get(ctx, number); getErr != nil {
			return Invoice{}, getErr
		}
		return Invoice{}, ErrNotCompleted
	}
	return inv, err
}

func collectInvoices(rows pgx.Rows) ([]Invoice, error) {
	defer rows.Close()
	out := make([]Invoice, 0)
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

func scanInvoice(row pgx.Row) (Invoice, error) {
	var inv Invoice
	var items []byte
	var method, status string
	err := row.Scan(&inv.Number, &inv.CustomerName, &inv.CustomerPhone, &items, &inv.Subtotal, &inv.DiscountPercent,
		&inv.DiscountAmount, &inv.TaxRatePercent, &inv.TaxAmount, &inv.Total, &method, &inv.AmountReceived,
		&inv.ChangeGiven, &status, &inv.CashierID, &inv.TerminalID, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		return Invoice{}, err
	}
	if err := json.Unmarshal(items, &inv.Items); err != nil {
		return Invoice{}, fmt.Errorf("invoices: decode items: %w", err)
	}
	inv.PaymentMethod = PaymentMethod(method)
	inv.Status = Status(status)
	return inv, nil
}
