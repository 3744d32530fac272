package checkout

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tillpoint/tillpoint/internal/catalog"
	"github.com/tillpoint/tillpoint/internal/invoices"
	"github.com/tillpoint/tillpoint/internal/promotions"
)

type memoryStore struct {
	mu        sync.Mutex
	invoices  []invoices.Invoice
	stock     map[int64]int64
	countErr  error
	batchErr  error
	commitErr error
}

func newMemoryStore(stock map[int64]int64) *memoryStore {
	return &memoryStore{stock: stock}
}

func (m *memoryStore) CountInvoicesBetween(ctx context.Context, from, to time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.countErr != nil {
		return 0, m.countErr
	}
	n := 0
	for _, inv := range m.invoices {
		if !inv.CreatedAt.Before(from) && inv.CreatedAt.Before(to) {
			n++
		}
	}
	return n, nil
}

// Commit mirrors the default store: invoice first, then an all-or-nothing
// stock batch.
func (m *memoryStore) Commit(ctx context.Context, inv invoices.Invoice, sold []catalog.StockDelta) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.commitErr != nil {
		return m.commitErr
	}
	m.invoices = append(m.invoices, inv)
	if m.batchErr != nil {
		return m.batchErr
	}
	for _, d := range sold {
		m.stock[d.ProductID] -= d.Delta
	}
	return nil
}

type fixedClock struct{ now time.Time }

func (c *fixedClock) Now() time.Time { return c.now }

func product(id int64, name string, price float64, stock int64) catalog.Product {
	return catalog.Product{ID: id, Code: fmt.Sprintf("P%03d", id), Name: name, SellingPrice: price, Stock: stock, Status: catalog.StatusActive}
}

func newTestEngine(store Store, clock *fixedClock) *Engine {
	return NewEngine("front-1", Deps{Store: store, Clock: clock.Now})
}

func TestCartArithmetic(t *testing.T) {
	clock := &fixedClock{now: time.Date(2025, 10, 15, 10, 0, 0, 0, time.UTC)}
	e := newTestEngine(newMemoryStore(nil), clock)
	a := product(1, "Apple", 1.25, 10)
	b := product(2, "Bread", 3.40, 10)
	c := product(3, "Cheese", 7.99, 10)

	require.NoError(t, e.AddToCart(a))
	require.NoError(t, e.AddToCart(b))
	require.NoError(t, e.AddToCart(a))
	require.NoError(t, e.AddToCart(c))
	require.NoError(t, e.UpdateQuantity(2, 1))
	require.NoError(t, e.UpdateQuantity(3, -1))
	require.NoError(t, e.RemoveFromCart(99))

	view := e.View()
	require.Len(t, view.Lines, 2)
	require.Equal(t, int64(1), view.Lines[0].ProductID)
	require.Equal(t, int64(2), view.Lines[1].ProductID)

	var sum float64
	for _, l := range view.Lines {
		require.Positive(t, l.Quantity)
		require.InDelta(t, float64(l.Quantity)*l.UnitPrice, l.LineTotal, 0.001)
		sum += l.LineTotal
	}
	require.InDelta(t, sum, view.Totals.Subtotal, 0.001)
	require.InDelta(t, 9.30, view.Totals.Subtotal, 0.001)

	require.ErrorIs(t, e.UpdateQuantity(3, 1), ErrLineNotFound)
	require.ErrorIs(t, e.UpdateQuantity(1, 0), ErrInvalidDelta)
}

func TestPriceIsCapturedOnFirstAdd(t *testing.T) {
	e := newTestEngine(newMemoryStore(nil), &fixedClock{now: time.Now()})
	require.NoError(t, e.AddToCart(product(1, "Apple", 2, 10)))
	require.NoError(t, e.AddToCart(product(1, "Apple", 5, 10)))
	line := e.View().Lines[0]
	require.Equal(t, 2.0, line.UnitPrice)
	require.Equal(t, 4.0, line.LineTotal)
}

func TestDiscountAndTaxComposition(t *testing.T) {
	totals := ComputeTotals([]CartLine{{LineTotal: 1000}}, 10, 15, 0)
	require.Equal(t, 1000.0, totals.Subtotal)
	require.Equal(t, 100.0, totals.DiscountAmount)
	require.Equal(t, 900.0, totals.AfterDiscount)
	require.Equal(t, 135.0, totals.TaxAmount)
	require.Equal(t, 1035.0, totals.Total)
	require.Equal(t, totals.Total, totals.Subtotal-totals.DiscountAmount+totals.TaxAmount)

	for _, tc := range []struct{ s, d, tax float64 }{{19.99, 7.5, 8.25}, {0.01, 50, 50}, {1234.56, 0, 0}, {333.33, 33.33, 12.5}} {
		got := ComputeTotals([]CartLine{{LineTotal: tc.s}}, tc.d, tc.tax, 0)
		require.InDelta(t, tc.s*(1-tc.d/100)*(1+tc.tax/100), got.Total, 0.011)
	}
}

func TestRoundingIsHalfUp(t *testing.T) {
	require.Equal(t, 1.01, round2(1.005))
	require.Equal(t, 2.68, round2(2.675))
	require.Equal(t, 0.0, round2(0.004))
}

func TestParseAmount(t *testing.T) {
	require.Equal(t, 1100.0, ParseAmount("1100"))
	require.Equal(t, 1250.5, ParseAmount(" 1,250.50 "))
	require.Equal(t, 0.0, ParseAmount(""))
	require.Equal(t, 0.0, ParseAmount("abc"))
	require.Equal(t, 0.0, ParseAmount("NaN"))
	require.Equal(t, 0.0, ParseAmount("Inf"))
	require.Equal(t, 1500.0, ParseAmount("1,500"))
	require.Equal(t, 1500.25, ParseAmount("1,500.25"))
	require.Equal(t, 1e6, ParseAmount("1,000,000"))
	require.Equal(t, -2500.0, ParseAmount("-2,500"))
	require.Equal(t, 0.0, ParseAmount("1,5"))
	require.Equal(t, 0.0, ParseAmount("12,34,567"))
	require.Equal(t, 0.0, ParseAmount("1,50,0"))
	require.Equal(t, 0.0, ParseAmount(",500"))
	require.Equal(t, 0.0, ParseAmount("1500,"))
}

func TestDecimalCommaIsNotCash(t *testing.T) {
	store := newMemoryStore(map[int64]int64{1: 5})
	e := newTestEngine(store, &fixedClock{now: time.Date(2025, 10, 15, 10, 0, 0, 0, time.UTC)})
	require.NoError(t, e.AddToCart(product(1, "Gum", 2, 5)))
	require.NoError(t, e.UpdateSale(SaleInput{AmountReceivedText: "1,5"}))
	require.Zero(t, e.View().Totals.AmountReceived)
	_, err := e.Checkout(context.Background())
	require.ErrorIs(t, err, ErrInsufficientCash)
	require.Empty(t, store.invoices)
}

func cartOf1000(t *testing.T, e *Engine, received string) {
	t.Helper()
	require.NoError(t, e.AddToCart(product(1, "Kettle", 500, 5)))
	require.NoError(t, e.AddToCart(product(1, "Kettle", 500, 5)))
	require.NoError(t, e.UpdateSale(SaleInput{CustomerName: "Ana", CustomerPhone: "555-0100", AmountReceivedText: received, DiscountPercent: 10, TaxRatePercent: 15}))
}

func TestChangeComputation(t *testing.T) {
	clock := &fixedClock{now: time.Date(2025, 10, 15, 10, 0, 0, 0, time.UTC)}

	store := newMemoryStore(map[int64]int64{1: 5})
	e := newTestEngine(store, clock)
	cartOf1000(t, e, "1100")
	inv, err := e.Checkout(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1035.0, inv.Total)
	require.Equal(t, 65.0, inv.ChangeGiven)

	store = newMemoryStore(map[int64]int64{1: 5})
	e = newTestEngine(store, clock)
	cartOf1000(t, e, "1035")
	inv, err = e.Checkout(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0.0, inv.ChangeGiven)

	store = newMemoryStore(map[int64]int64{1: 5})
	e = newTestEngine(store, clock)
	cartOf1000(t, e, "1000")
	_, err = e.Checkout(context.Background())
	require.ErrorIs(t, err, ErrInsufficientCash)
	require.Empty(t, store.invoices)
	require.Equal(t, int64(5), store.stock[1])
	require.Len(t, e.View().Lines, 1)
}

func TestCardPaymentSettlesExactly(t *testing.T) {
	store := newMemoryStore(map[int64]int64{1: 5})
	e := newTestEngine(store, &fixedClock{now: time.Date(2025, 10, 15, 10, 0, 0, 0, time.UTC)})
	require.NoError(t, e.AddToCart(product(1, "Kettle", 500, 5)))
	require.NoError(t, e.UpdateSale(SaleInput{PaymentMethod: invoices.PaymentCard, AmountReceivedText: "9999"}))
	inv, err := e.Checkout(context.Background())
	require.NoError(t, err)
	require.Equal(t, invoices.PaymentCard, inv.PaymentMethod)
	require.Equal(t, inv.Total, inv.AmountReceived)
	require.Equal(t, 0.0, inv.ChangeGiven)
}

func TestEmptyCartRejected(t *testing.T) {
	store := newMemoryStore(map[int64]int64{})
	e := newTestEngine(store, &fixedClock{now: time.Now()})
	_, err := e.Checkout(context.Background())
	require.ErrorIs(t, err, ErrEmptyCart)
	require.Empty(t, store.invoices)
}

func TestStockBound(t *testing.T) {
	e := newTestEngine(newMemoryStore(nil), &fixedClock{now: time.Now()})
	p := product(1, "Tea", 4, 2)
	require.NoError(t, e.AddToCart(p))
	require.NoError(t, e.AddToCart(p))
	require.ErrorIs(t, e.AddToCart(p), ErrExceedsStock)
	require.Equal(t, int64(2), e.View().Lines[0].Quantity)
	require.ErrorIs(t, e.UpdateQuantity(1, 1), ErrExceedsStock)

	e.ObserveCatalog(catalog.Snapshot{Products: []catalog.Product{product(1, "Tea", 4, 3)}})
	require.Equal(t, int64(3), e.View().Lines[0].AvailableStock)
	require.NoError(t, e.UpdateQuantity(1, 1))
	require.Equal(t, int64(3), e.View().Lines[0].Quantity)

	e.ObserveCatalog(catalog.Snapshot{Products: []catalog.Product{product(1, "Tea", 4, 1)}})
	require.ErrorIs(t, e.UpdateQuantity(1, 1), ErrExceedsStock)
	require.NoError(t, e.UpdateQuantity(1, -1))
	require.Equal(t, int64(2), e.View().Lines[0].Quantity)

	// Product left the active view: the line keeps its last known bound.
	e.ObserveCatalog(catalog.Snapshot{})
	require.Equal(t, int64(1), e.View().Lines[0].AvailableStock)
	require.ErrorIs(t, e.UpdateQuantity(1, 1), ErrExceedsStock)

	require.NoError(t, e.UpdateQuantity(1, -5))
	require.Empty(t, e.View().Lines)

	require.ErrorIs(t, e.AddToCart(product(2, "Out", 1, 0)), ErrExceedsStock)
	inactive := product(3, "Old", 1, 10)
	inactive.Status = catalog.StatusInactive
	require.ErrorIs(t, e.AddToCart(inactive), ErrProductInactive)
	require.Empty(t, e.View().Lines)
}

func TestCheckoutDecrementsStockOnce(t *testing.T) {
	store := newMemoryStore(map[int64]int64{1: 10, 2: 10})
	e := newTestEngine(store, &fixedClock{now: time.Date(2025, 10, 15, 10, 0, 0, 0, time.UTC)})
	a, b := product(1, "A", 2, 10), product(2, "B", 3, 10)
	require.NoError(t, e.AddToCart(a))
	require.NoError(t, e.AddToCart(a))
	require.NoError(t, e.AddToCart(b))
	require.NoError(t, e.UpdateQuantity(2, 1))
	require.NoError(t, e.UpdateQuantity(2, 1))
	expected := e.Totals().Total
	require.NoError(t, e.UpdateSale(SaleInput{AmountReceivedText: "100"}))

	inv, err := e.Checkout(context.Background())
	require.NoError(t, err)
	require.Len(t, store.invoices, 1)
	require.Equal(t, expected, store.invoices[0].Total)
	require.Equal(t, inv.Number, store.invoices[0].Number)
	require.Equal(t, int64(8), store.stock[1])
	require.Equal(t, int64(7), store.stock[2])
}

func TestStockBatchFailureKeepsSale(t *testing.T) {
	store := newMemoryStore(map[int64]int64{1: 10, 2: 10})
	store.batchErr = errors.New("batch aborted")
	e := newTestEngine(store, &fixedClock{now: time.Date(2025, 10, 15, 10, 0, 0, 0, time.UTC)})
	require.NoError(t, e.AddToCart(product(1, "A", 2, 10)))
	require.NoError(t, e.AddToCart(product(2, "B", 3, 10)))
	require.NoError(t, e.UpdateSale(SaleInput{CustomerName: "Ana", AmountReceivedText: "5"}))
	before := e.View()

	_, err := e.Checkout(context.Background())
	require.Error(t, err)
	require.ErrorContains(t, err, "batch aborted")
	require.Equal(t, int64(10), store.stock[1])
	require.Equal(t, int64(10), store.stock[2])
	require.Len(t, store.invoices, 1)
	require.Equal(t, before, e.View())
	_, err = e.LastInvoice()
	require.ErrorIs(t, err, ErrNoLastInvoice)
}

func TestInvoiceNumbering(t *testing.T) {
	clock := &fixedClock{now: time.Date(2025, 10, 3, 9, 0, 0, 0, time.UTC)}
	store := newMemoryStore(map[int64]int64{1: 100})
	e := newTestEngine(store, clock)
	sell := func() string {
		require.NoError(t, e.AddToCart(product(1, "A", 1, 100)))
		require.NoError(t, e.UpdateSale(SaleInput{AmountReceivedText: "1"}))
		inv, err := e.Checkout(context.Background())
		require.NoError(t, err)
		return inv.Number
	}

	require.Equal(t, "INV-202510-0001", sell())
	clock.now = clock.now.Add(48 * time.Hour)
	require.Equal(t, "INV-202510-0002", sell())
	clock.now = time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC)
	require.Equal(t, "INV-202511-0001", sell())
	clock.now = time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	require.Equal(t, "INV-202601-0001", sell())
}

func TestInvoiceNumberFollowsStoreCalendar(t *testing.T) {
	// 20:00 UTC on 31 October is already 1 November at +05:30.
	clock := &fixedClock{now: time.Date(2025, 10, 31, 20, 0, 0, 0, time.UTC)}
	store := newMemoryStore(map[int64]int64{1: 100})
	store.invoices = []invoices.Invoice{{Number: "INV-202510-0001", CreatedAt: time.Date(2025, 10, 20, 9, 0, 0, 0, time.UTC)}}
	e := NewEngine("front-1", Deps{Store: store, Clock: clock.Now, Location: time.FixedZone("IST", 5*3600+1800)})
	require.NoError(t, e.AddToCart(product(1, "A", 1, 100)))
	require.NoError(t, e.UpdateSale(SaleInput{AmountReceivedText: "1"}))

	inv, err := e.Checkout(context.Background())
	require.NoError(t, err)
	require.Equal(t, "INV-202511-0001", inv.Number)
	require.True(t, inv.CreatedAt.Equal(clock.now))
}

func TestInvoiceNumberFallback(t *testing.T) {
	clock := &fixedClock{now: time.Date(2025, 10, 3, 9, 0, 0, 0, time.UTC)}
	store := newMemoryStore(map[int64]int64{1: 100})
	store.countErr = errors.New("store unavailable")
	e := newTestEngine(store, clock)
	require.NoError(t, e.AddToCart(product(1, "A", 1, 100)))
	require.NoError(t, e.UpdateSale(SaleInput{AmountReceivedText: "1"}))
	inv, err := e.Checkout(context.Background())
	require.NoError(t, err)
	require.Regexp(t, regexp.MustCompile(`^INV-\d+$`), inv.Number)
	require.Equal(t, fmt.Sprintf("INV-%d", clock.now.UnixMilli()), inv.Number)
}

func TestResetAfterCheckout(t *testing.T) {
	store := newMemoryStore(map[int64]int64{1: 5})
	e := newTestEngine(store, &fixedClock{now: time.Date(2025, 10, 15, 10, 0, 0, 0, time.UTC)})
	cartOf1000(t, e, "1100")
	inv, err := e.Checkout(context.Background())
	require.NoError(t, err)

	view := e.View()
	require.Empty(t, view.Lines)
	require.Empty(t, view.CustomerName)
	require.Empty(t, view.CustomerPhone)
	require.Empty(t, view.AmountReceivedText)
	require.Equal(t, invoices.PaymentCash, view.PaymentMethod)
	require.Zero(t, view.DiscountPercent)
	require.Zero(t, view.TaxRatePercent)
	require.Zero(t, view.Totals.Total)

	last, err := e.LastInvoice()
	require.NoError(t, err)
	require.Equal(t, inv, last)
	require.Equal(t, "Ana", last.CustomerName)
	require.Equal(t, invoices.StatusCompleted, last.Status)
	require.Equal(t, last.CreatedAt, last.UpdatedAt)
}

func TestUpdateSaleValidation(t *testing.T) {
	e := newTestEngine(newMemoryStore(nil), &fixedClock{now: time.Now()})
	require.Error(t, e.UpdateSale(SaleInput{DiscountPercent: 101}))
	require.Error(t, e.UpdateSale(SaleInput{TaxRatePercent: -1}))
	require.Error(t, e.UpdateSale(SaleInput{PaymentMethod: "voucher"}))
	require.NoError(t, e.UpdateSale(SaleInput{DiscountPercent: 100, TaxRatePercent: 0}))
}

type stubPromotions map[string]float64

func (s stubPromotions) Resolve(ctx context.Context, code string, at time.Time) (promotions.Promotion, error) {
	pct, ok := s[code]
	if !ok {
		return promotions.Promotion{}, promotions.ErrNotApplicable
	}
	return promotions.Promotion{Code: code, DiscountPercent: pct}, nil
}

func TestApplyPromotion(t *testing.T) {
	e := NewEngine("t1", Deps{Store: newMemoryStore(nil), Promotions: stubPromotions{"AUTUMN10": 10}})
	require.NoError(t, e.AddToCart(product(1, "A", 100, 5)))
	require.NoError(t, e.ApplyPromotion(context.Background(), "AUTUMN10"))
	view := e.View()
	require.Equal(t, 10.0, view.DiscountPercent)
	require.Equal(t, "AUTUMN10", view.PromotionCode)
	require.Equal(t, 90.0, view.Totals.Total)

	require.ErrorIs(t, e.ApplyPromotion(context.Background(), "NOPE"), promotions.ErrNotApplicable)
	require.Equal(t, 10.0, e.View().DiscountPercent)

	require.NoError(t, e.UpdateSale(SaleInput{DiscountPercent: 5}))
	require.Empty(t, e.View().PromotionCode)
}

type recordingObserver struct{ got []string }

func (r *recordingObserver) CheckoutCompleted(ctx context.Context, inv invoices.Invoice) {
	r.got = append(r.got, inv.Number)
}

type recordingMetrics struct{ results []string }

func (r *recordingMetrics) ObserveCheckout(result string, total float64, elapsed time.Duration) {
	r.results = append(r.results, result)
}

func TestObserversAndMetrics(t *testing.T) {
	obs := &recordingObserver{}
	metrics := &recordingMetrics{}
	store := newMemoryStore(map[int64]int64{1: 5})
	e := NewEngine("t1", Deps{
		Store:     store,
		Observers: []Observer{obs},
		Metrics:   metrics,
		Clock:     (&fixedClock{now: time.Date(2025, 10, 15, 10, 0, 0, 0, time.UTC)}).Now,
	})
	_, err := e.Checkout(context.Background())
	require.ErrorIs(t, err, ErrEmptyCart)

	require.NoError(t, e.AddToCart(product(1, "A", 1, 5)))
	require.NoError(t, e.UpdateSale(SaleInput{AmountReceivedText: "1"}))
	store.commitErr = errors.New("down")
	_, err = e.Checkout(context.Background())
	require.Error(t, err)

	store.commitErr = nil
	_, err = e.Checkout(context.Background())
	require.NoError(t, err)

	require.Equal(t, []string{"INV-202510-0001"}, obs.got)
	require.Equal(t, []string{"rejected", "failed", "completed"}, metrics.results)
}

// gatedStore holds every Commit until release is closed.
type gatedStore struct {
	*memoryStore
	entered chan struct{}
	release chan struct{}
}

func (g *gatedStore) Commit(ctx context.Context, inv invoices.Invoice, sold []catalog.StockDelta) error {
	close(g.entered)
	<-g.release
	return g.memoryStore.Commit(ctx, inv, sold)
}

func TestCheckoutDoesNotBlockOtherWork(t *testing.T) {
	store := &gatedStore{
		memoryStore: newMemoryStore(map[int64]int64{1: 5}),
		entered:     make(chan struct{}),
		release:     make(chan struct{}),
	}
	reg := NewRegistry(Deps{Store: store, Clock: (&fixedClock{now: time.Date(2025, 10, 15, 10, 0, 0, 0, time.UTC)}).Now})
	a, b := reg.Engine("front-1"), reg.Engine("front-2")
	require.NoError(t, a.AddToCart(product(1, "Tea", 4, 5)))
	require.NoError(t, a.UpdateSale(SaleInput{AmountReceivedText: "4"}))
	require.NoError(t, b.AddToCart(product(1, "Tea", 4, 5)))

	type result struct {
		inv invoices.Invoice
		err error
	}
	done := make(chan result, 1)
	go func() {
		inv, err := a.Checkout(context.Background())
		done <- result{inv, err}
	}()
	<-store.entered

	observed := make(chan struct{})
	go func() {
		reg.Observe(catalog.Snapshot{Products: []catalog.Product{product(1, "Tea", 4, 3)}})
		close(observed)
	}()
	select {
	case <-observed:
	case <-time.After(time.Second):
		t.Fatal("snapshot fan-out blocked by a checkout in flight")
	}
	require.Equal(t, int64(3), b.View().Lines[0].AvailableStock)
	require.True(t, a.View().CheckingOut)
	require.ErrorIs(t, a.AddToCart(product(1, "Tea", 4, 5)), ErrCheckoutInProgress)
	require.ErrorIs(t, a.UpdateSale(SaleInput{DiscountPercent: 50}), ErrCheckoutInProgress)
	require.ErrorIs(t, a.RemoveFromCart(1), ErrCheckoutInProgress)

	close(store.release)
	res := <-done
	require.NoError(t, res.err)
	require.Equal(t, 4.0, res.inv.Total)
	view := a.View()
	require.False(t, view.CheckingOut)
	require.Empty(t, view.Lines)
	require.Equal(t, int64(4), store.stock[1])
}
