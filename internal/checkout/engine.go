package checkout

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/tillpoint/tillpoint/internal/catalog"
	"github.com/tillpoint/tillpoint/internal/invoices"
	"github.com/tillpoint/tillpoint/internal/platform/httpx"
	"github.com/tillpoint/tillpoint/internal/promotions"
	"github.com/tillpoint/tillpoint/internal/shared"
)

// Store persists a completed sale.
type Store interface {
	// CountInvoicesBetween counts invoices created in [from, to).
	CountInvoicesBetween(ctx context.Context, from, to time.Time) (int, error)
	// Commit writes the invoice and takes each line's quantity off stock.
	Commit(ctx context.Context, inv invoices.Invoice, sold []catalog.StockDelta) error
}

// ProductLookup loads a product that is not in the live view yet.
type ProductLookup interface {
	Get(ctx context.Context, id int64) (catalog.Product, error)
}

// PromotionResolver maps a code to the promotion valid at a given time.
type PromotionResolver interface {
	Resolve(ctx context.Context, code string, at time.Time) (promotions.Promotion, error)
}

// Observer is told about every completed sale.
type Observer interface {
	CheckoutCompleted(ctx context.Context, inv invoices.Invoice)
}

// Recorder collects checkout metrics.
type Recorder interface {
	ObserveCheckout(result string, total float64, elapsed time.Duration)
}

// Deps are the collaborators shared by every terminal engine.
type Deps struct {
	Store      Store
	Products   ProductLookup
	Promotions PromotionResolver
	Observers  []Observer
	Metrics    Recorder
	Clock      func() time.Time
	// Location is the store's business calendar for invoice numbering.
	// Nil means the clock's own zone.
	Location *time.Location
	Logger   *slog.Logger
}

// Engine runs the sale of one terminal. All methods are safe for concurrent
// use; calls are serialised. The lock is never held across I/O: while a
// checkout is being committed the sale is frozen and edits are refused with
// ErrCheckoutInProgress, but catalog snapshots still apply.
type Engine struct {
	mu          sync.Mutex
	terminalID  string
	deps        Deps
	checkingOut bool
	touched     time.Time

	cart               Cart
	customerName       string
	customerPhone      string
	paymentMethod      invoices.PaymentMethod
	amountReceivedText string
	discountPercent    float64
	taxRatePercent     float64
	promotionCode      string

	live map[int64]catalog.Product
	last *invoices.Invoice
}

// NewEngine builds an engine for terminalID with an empty sale.
func NewEngine(terminalID string, deps Deps) *Engine {
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Engine{
		terminalID:    terminalID,
		deps:          deps,
		paymentMethod: invoices.PaymentCash,
		live:          map[int64]catalog.Product{},
		touched:       deps.Clock(),
	}
}

// lock takes the engine lock on behalf of the cashier and records activity.
func (e *Engine) lock() {
	e.mu.Lock()
	e.touched = e.deps.Clock()
}

// editable reports whether the sale may change. Callers hold the lock.
func (e *Engine) editable() error {
	if e.checkingOut {
		return ErrCheckoutInProgress
	}
	return nil
}

// Idle reports whether the terminal has an empty sale, no checkout in flight
// and no cashier activity since now minus after.
func (e *Engine) Idle(now time.Time, after time.Duration) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return !e.checkingOut && e.cart.Len() == 0 && now.Sub(e.touched) >= after
}

// ObserveCatalog replaces the live product view and refreshes the stock
// bound of every cart line still in the view.
func (e *Engine) ObserveCatalog(s catalog.Snapshot) {
	idx := s.Index()
	e.mu.Lock()
	defer e.mu.Unlock()
	e.live = idx
	e.cart.Refresh(idx)
}

// AddToCart adds one unit of p. The stock bound comes from p.
func (e *Engine) AddToCart(p catalog.Product) error {
	e.lock()
	defer e.mu.Unlock()
	if err := e.editable(); err != nil {
		return err
	}
	return e.cart.Add(p)
}

// AddProduct adds one unit of the product with id, preferring the live view.
func (e *Engine) AddProduct(ctx context.Context, id int64) error {
	e.mu.Lock()
	p, ok := e.live[id]
	e.mu.Unlock()
	if !ok {
		if e.deps.Products == nil {
			return ErrProductInactive
		}
		var err error
		if p, err = e.deps.Products.Get(ctx, id); err != nil {
			return err
		}
	}
	return e.AddToCart(p)
}

// UpdateQuantity changes a line by delta, bounded by the live stock of the
// product or the line's last known stock when the product left the view.
func (e *Engine) UpdateQuantity(productID, delta int64) error {
	if delta == 0 {
		return ErrInvalidDelta
	}
	e.lock()
	defer e.mu.Unlock()
	if err := e.editable(); err != nil {
		return err
	}
	line, ok := e.cart.Line(productID)
	if !ok {
		return ErrLineNotFound
	}
	stock := line.AvailableStock
	if p, ok := e.live[productID]; ok {
		stock = p.Stock
	}
	return e.cart.Adjust(productID, delta, stock)
}

// RemoveFromCart deletes the product's line. A missing line is not an error.
func (e *Engine) RemoveFromCart(productID int64) error {
	e.lock()
	defer e.mu.Unlock()
	if err := e.editable(); err != nil {
		return err
	}
	e.cart.Remove(productID)
	return nil
}

// UpdateSale replaces the customer, payment and rate fields. An empty payment
// method means cash.
func (e *Engine) UpdateSale(in SaleInput) error {
	if err := httpx.Validate(in); err != nil {
		return err
	}
	if !validPercent(in.DiscountPercent) || !validPercent(in.TaxRatePercent) {
		return ErrInvalidPercent
	}
	if in.PaymentMethod == "" {
		in.PaymentMethod = invoices.PaymentCash
	}
	e.lock()
	defer e.mu.Unlock()
	if err := e.editable(); err != nil {
		return err
	}
	e.customerName = strings.TrimSpace(in.CustomerName)
	e.customerPhone = strings.TrimSpace(in.CustomerPhone)
	e.paymentMethod = in.PaymentMethod
	e.amountReceivedText = in.AmountReceivedText
	if in.DiscountPercent != e.discountPercent {
		e.promotionCode = ""
	}
	e.discountPercent = in.DiscountPercent
	e.taxRatePercent = in.TaxRatePercent
	return nil
}

// ApplyPromotion sets the discount from an active promotion code.
func (e *Engine) ApplyPromotion(ctx context.Context, code string) error {
	if e.deps.Promotions == nil {
		return promotions.ErrNotApplicable
	}
	promo, err := e.deps.Promotions.Resolve(ctx, code, e.deps.Clock())
	if err != nil {
		return err
	}
	e.lock()
	defer e.mu.Unlock()
	if err := e.editable(); err != nil {
		return err
	}
	e.discountPercent = promo.DiscountPercent
	e.promotionCode = promo.Code
	return nil
}

// Totals recomputes the sale figures.
func (e *Engine) Totals() Totals {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.totals()
}

func (e *Engine) totals() Totals {
	return ComputeTotals(e.cart.lines, e.discountPercent, e.taxRatePercent, ParseAmount(e.amountReceivedText))
}

// View returns a copy of the sale in progress.
func (e *Engine) View() View {
	e.lock()
	defer e.mu.Unlock()
	return View{
		TerminalID:         e.terminalID,
		Lines:              e.cart.Lines(),
		CustomerName:       e.customerName,
		CustomerPhone:      e.customerPhone,
		PaymentMethod:      e.paymentMethod,
		AmountReceivedText: e.amountReceivedText,
		DiscountPercent:    e.discountPercent,
		TaxRatePercent:     e.taxRatePercent,
		PromotionCode:      e.promotionCode,
		CheckingOut:        e.checkingOut,
		Totals:             e.totals(),
	}
}

// LastInvoice returns the most recent invoice completed on this terminal.
func (e *Engine) LastInvoice() (invoices.Invoice, error) {
	e.lock()
	defer e.mu.Unlock()
	if e.last == nil {
		return invoices.Invoice{}, ErrNoLastInvoice
	}
	return *e.last, nil
}

// Checkout validates the sale, records the invoice and decrements stock. The
// sale is frozen while the store is called; on success it resets and the
// invoice is kept as the last invoice, on any error it is left as it was.
func (e *Engine) Checkout(ctx context.Context) (invoices.Invoice, error) {
	started := time.Now()
	e.lock()
	if err := e.editable(); err != nil {
		e.mu.Unlock()
		return invoices.Invoice{}, err
	}
	totals := e.totals()
	if e.cart.Len() == 0 {
		e.mu.Unlock()
		e.observe("rejected", 0, started)
		return invoices.Invoice{}, ErrEmptyCart
	}
	if e.paymentMethod == invoices.PaymentCash && totals.AmountReceived < totals.Total {
		e.mu.Unlock()
		e.observe("rejected", totals.Total, started)
		return invoices.Invoice{}, ErrInsufficientCash
	}
	now := e.now()
	inv := e.buildInvoice("", totals, now, shared.ActorFromContext(ctx))
	e.checkingOut = true
	e.mu.Unlock()

	inv.Number = e.allocateNumber(ctx, now)
	sold := make([]catalog.StockDelta, 0, len(inv.Items))
	for _, it := range inv.Items {
		sold = append(sold, catalog.StockDelta{ProductID: it.ProductID, Delta: it.Quantity})
	}
	err := e.deps.Store.Commit(ctx, inv, sold)

	e.lock()
	e.checkingOut = false
	if err != nil {
		e.mu.Unlock()
		e.observe("failed", inv.Total, started)
		e.deps.Logger.Error("checkout commit",
			slog.String("terminal", e.terminalID),
			slog.String("invoice", inv.Number),
			slog.Any("error", err))
		return invoices.Invoice{}, fmt.Errorf("checkout: %s: %w", inv.Number, err)
	}
	e.last = &inv
	e.reset()
	e.mu.Unlock()

	e.observe("completed", inv.Total, started)
	for _, o := range e.deps.Observers {
		o.CheckoutCompleted(ctx, inv)
	}
	return inv, nil
}

// now reads the clock in the store's calendar.
func (e *Engine) now() time.Time {
	t := e.deps.Clock()
	if e.deps.Location != nil {
		t = t.In(e.deps.Location)
	}
	return t
}

// allocateNumber numbers invoices per calendar month of now's location. When
// the month count cannot be read the sale still goes through under a
// timestamp number.
func (e *Engine) allocateNumber(ctx context.Context, now time.Time) string {
	from, to := shared.MonthBounds(now)
	n, err := e.deps.Store.CountInvoicesBetween(ctx, from, to)
	if err != nil {
		e.deps.Logger.Warn("invoice sequence unavailable, using timestamp number",
			slog.String("terminal", e.terminalID), slog.Any("error", err))
		return shared.FallbackNumber(InvoicePrefix, now)
	}
	return shared.SequenceNumber(InvoicePrefix, now, n+1)
}

func (e *Engine) buildInvoice(number string, totals Totals, now time.Time, cashier int64) invoices.Invoice {
	items := make([]invoices.Item, 0, e.cart.Len())
	for _, l := range e.cart.lines {
		items = append(items, invoices.Item{
			ProductID: l.ProductID,
			Name:      l.Name,
			UnitPrice: l.UnitPrice,
			Quantity:  l.Quantity,
			LineTotal: l.LineTotal,
		})
	}
	inv := invoices.Invoice{
		Number:          number,
		CustomerName:    e.customerName,
		CustomerPhone:   e.customerPhone,
		Items:           items,
		Subtotal:        totals.Subtotal,
		DiscountPercent: e.discountPercent,
		DiscountAmount:  totals.DiscountAmount,
		TaxRatePercent:  e.taxRatePercent,
		TaxAmount:       totals.TaxAmount,
		Total:           totals.Total,
		PaymentMethod:   e.paymentMethod,
		AmountReceived:  totals.AmountReceived,
		ChangeGiven:     totals.Change,
		Status:          invoices.StatusCompleted,
		CashierID:       cashier,
		TerminalID:      e.terminalID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if inv.PaymentMethod == invoices.PaymentCard {
		inv.AmountReceived = inv.Total
		inv.ChangeGiven = 0
	}
	return inv
}

func (e *Engine) reset() {
	e.cart.Clear()
	e.customerName = ""
	e.customerPhone = ""
	e.paymentMethod = invoices.PaymentCash
	e.amountReceivedText = ""
	e.discountPercent = 0
	e.taxRatePercent = 0
	e.promotionCode = ""
}

func (e *Engine) observe(result string, total float64, started time.Time) {
	if e.deps.Metrics != nil {
		e.deps.Metrics.ObserveCheckout(result, total, time.Since(started))
	}
}
