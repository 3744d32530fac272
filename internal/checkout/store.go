package checkout

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tillpoint/tillpoint/internal/catalog"
	"github.com/tillpoint/tillpoint/internal/invoices"
	"github.com/tillpoint/tillpoint/internal/platform/db"
)

// PGStore commits sales to PostgreSQL.
//
// By default the invoice insert and the stock batch are two separate writes:
// a failed batch leaves a recorded invoice with stock untouched. Strict mode
// runs both in one transaction that locks the product rows and refuses to
// take stock below zero.
type PGStore struct {
	pool     *pgxpool.Pool
	invoices *invoices.Repository
	products *catalog.Repository
	notifier catalog.ChangeNotifier
	strict   bool
	logger   *slog.Logger
}

// NewPGStore constructs a PGStore. notifier may be nil.
func NewPGStore(pool *pgxpool.Pool, inv *invoices.Repository, products *catalog.Repository, notifier catalog.ChangeNotifier, strict bool, logger *slog.Logger) *PGStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PGStore{pool: pool, invoices: inv, products: products, notifier: notifier, strict: strict, logger: logger}
}

// CountInvoicesBetween counts invoices created in [from, to).
func (s *PGStore) CountInvoicesBetween(ctx context.Context, from, to time.Time) (int, error) {
	return s.invoices.CountBetween(ctx, from, to)
}

// Commit writes the invoice then decrements stock.
func (s *PGStore) Commit(ctx context.Context, inv invoices.Invoice, sold []catalog.StockDelta) error {
	var err error
	if s.strict {
		err = commitStrict(ctx, s, inv, sold)
	} else {
		err = s.commitBestEffort(ctx, inv, sold)
	}
	if err != nil {
		return err
	}
	if s.notifier != nil {
		if nerr := s.notifier.Notify(ctx); nerr != nil {
			s.logger.Warn("publish catalog change after checkout", slog.String("invoice", inv.Number), slog.Any("error", nerr))
		}
	}
	return nil
}

func (s *PGStore) commitBestEffort(ctx context.Context, inv invoices.Invoice, sold []catalog.StockDelta) error {
	if err := s.invoices.Create(ctx, s.pool, inv); err != nil {
		return err
	}
	if err := s.products.DecrementStockBatch(ctx, sold); err != nil {
		return fmt.Errorf("invoice recorded but stock not updated: %w", err)
	}
	return nil
}

// SaleTx is the slice of the store a strict checkout writes through inside
// one transaction.
type SaleTx interface {
	LockStock(ctx context.Context, productID int64) (int64, error)
	InsertInvoice(ctx context.Context, inv invoices.Invoice) error
	ApplyStock(ctx context.Context, deltas []catalog.StockDelta) error
}

// SaleTxRunner runs fn in a transaction that commits only when fn returns nil.
type SaleTxRunner interface {
	WithTx(ctx context.Context, fn func(context.Context, SaleTx) error) error
}

type pgSaleTx struct {
	tx       pgx.Tx
	invoices *invoices.Repository
	products *catalog.Repository
}

// WithTx executes the callback inside a transaction on the pool.
func (s *PGStore) WithTx(ctx context.Context, fn func(context.Context, SaleTx) error) error {
	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(ctx, &pgSaleTx{tx: tx, invoices: s.invoices, products: s.products})
	})
}

func (t *pgSaleTx) LockStock(ctx context.Context, productID int64) (int64, error) {
	p, err := t.products.GetForUpdate(ctx, t.tx, productID)
	if err != nil {
		return 0, err
	}
	return p.Stock, nil
}

func (t *pgSaleTx) InsertInvoice(ctx context.Context, inv invoices.Invoice) error {
	return t.invoices.Create(ctx, t.tx, inv)
}

func (t *pgSaleTx) ApplyStock(ctx context.Context, deltas []catalog.StockDelta) error {
	return t.products.ApplyStockBatch(ctx, t.tx, deltas)
}

// commitStrict locks every sold product, refuses the sale when any of them
// no longer has the quantity, then writes the invoice and the decrements.
func commitStrict(ctx context.Context, runner SaleTxRunner, inv invoices.Invoice, sold []catalog.StockDelta) error {
	return runner.WithTx(ctx, func(ctx context.Context, tx SaleTx) error {
		// Lock rows in id order so concurrent strict checkouts cannot deadlock.
		ordered := slices.SortedFunc(slices.Values(sold), func(a, b catalog.StockDelta) int {
			return cmp.Compare(a.ProductID, b.ProductID)
		})
		deltas := make([]catalog.StockDelta, 0, len(ordered))
		for _, line := range ordered {
			stock, err := tx.LockStock(ctx, line.ProductID)
			if err != nil {
				return err
			}
			if stock < line.Delta {
				return ErrStockConflict
			}
			deltas = append(deltas, catalog.StockDelta{ProductID: line.ProductID, Delta: -line.Delta})
		}
		if err := tx.InsertInvoice(ctx, inv); err != nil {
			return err
		}
		return tx.ApplyStock(ctx, deltas)
	})
}
