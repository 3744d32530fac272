package reports

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/tillpoint/tillpoint/internal/invoices"
)

type memorySource struct {
	invoices []invoices.Invoice
	loads    atomic.Int32
}

func (m *memorySource) InvoicesBetween(ctx context.Context, from, to time.Time) ([]invoices.Invoice, error) {
	m.loads.Add(1)
	out := []invoices.Invoice{}
	for _, inv := range m.invoices {
		if !inv.CreatedAt.Before(from) && inv.CreatedAt.Before(to) {
			out = append(out, inv)
		}
	}
	return out, nil
}

func sale(number string, at time.Time, method invoices.PaymentMethod, status invoices.Status, received float64, items ...invoices.Item) invoices.Invoice {
	var subtotal float64
	for _, it := range items {
		subtotal += it.LineTotal
	}
	discount := subtotal * 0.10
	tax := (subtotal - discount) * 0.15
	total := subtotal - discount + tax
	inv := invoices.Invoice{
		Number: number, Items: items, Subtotal: subtotal,
		DiscountPercent: 10, DiscountAmount: discount, TaxRatePercent: 15, TaxAmount: tax, Total: total,
		PaymentMethod: method, Status: status, CreatedAt: at,
	}
	if method == invoices.PaymentCash {
		inv.AmountReceived = received
		inv.ChangeGiven = received - total
	} else {
		inv.AmountReceived = total
	}
	return inv
}

func item(id int64, name string, price float64, qty int64) invoices.Item {
	return invoices.Item{ProductID: id, Name: name, UnitPrice: price, Quantity: qty, LineTotal: price * float64(qty)}
}

func fixture() *memorySource {
	day := time.Date(2025, 10, 14, 10, 0, 0, 0, time.UTC)
	return &memorySource{invoices: []invoices.Invoice{
		sale("INV-202510-0001", day, invoices.PaymentCash, invoices.StatusCompleted, 1100, item(1, "Tea", 500, 2)),
		sale("INV-202510-0002", day.Add(time.Hour), invoices.PaymentCard, invoices.StatusCompleted, 0, item(2, "Milk", 100, 3), item(1, "Tea", 500, 1)),
		sale("INV-202510-0003", day.Add(2*time.Hour), invoices.PaymentCash, invoices.StatusVoid, 5000, item(3, "Cake", 1000, 4)),
		sale("INV-202510-0004", day.AddDate(0, 0, 1), invoices.PaymentCash, invoices.StatusCompleted, 200, item(2, "Milk", 100, 1)),
	}}
}

func newService(t *testing.T, src Source) (*Service, *Cache) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	cache := NewCache(client, time.Minute)
	svc := NewService(src, cache, time.UTC, "Corner Shop", nil)
	svc.now = func() time.Time { return time.Date(2025, 10, 14, 22, 0, 0, 0, time.UTC) }
	return svc, cache
}

func TestDailyExcludesVoids(t *testing.T) {
	svc, _ := newService(t, fixture())

	d, err := svc.Daily(context.Background(), time.Date(2025, 10, 14, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Equal(t, "2025-10-14", d.Date)
	require.Equal(t, 2, d.InvoiceCount)
	require.Equal(t, 1, d.VoidedCount)
	require.InDelta(t, 1800, d.GrossSubtotal, 1e-9)
	require.InDelta(t, 180, d.Discounts, 1e-9)
	require.InDelta(t, 243, d.Tax, 1e-9)
	require.InDelta(t, 1863, d.NetTotal, 1e-9)
	require.InDelta(t, 1035, d.CashTotal, 1e-9)
	require.InDelta(t, 828, d.CardTotal, 1e-9)
	require.InDelta(t, 65, d.ChangeGiven, 1e-9)
	require.Equal(t, int64(6), d.ItemsSold)
	require.Len(t, d.TopProducts, 2)
	require.Equal(t, "Tea", d.TopProducts[0].Name)
	require.Equal(t, int64(3), d.TopProducts[0].Quantity)
	require.InDelta(t, 1500, d.TopProducts[0].Revenue, 1e-9)
}

func TestDailyIsCachedUntilBump(t *testing.T) {
	src := fixture()
	svc, cache := newService(t, src)
	ctx := context.Background()
	date := time.Date(2025, 10, 14, 0, 0, 0, 0, time.UTC)

	_, err := svc.Daily(ctx, date)
	require.NoError(t, err)
	_, err = svc.Daily(ctx, date)
	require.NoError(t, err)
	require.Equal(t, int32(1), src.loads.Load())

	src.invoices = append(src.invoices, sale("INV-202510-0005", date.Add(20*time.Hour), invoices.PaymentCard, invoices.StatusCompleted, 0, item(4, "Bread", 50, 1)))
	svc.CheckoutCompleted(ctx, src.invoices[len(src.invoices)-1])
	ver, err := cache.Version(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(2), ver)

	d, err := svc.Daily(ctx, date)
	require.NoError(t, err)
	require.Equal(t, int32(2), src.loads.Load())
	require.Equal(t, 3, d.InvoiceCount)
}

func TestSummarySeries(t *testing.T) {
	svc, _ := newService(t, fixture())
	ctx := context.Background()

	s, err := svc.Summary(ctx, time.Date(2025, 10, 13, 0, 0, 0, 0, time.UTC), time.Date(2025, 10, 15, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, s.Days, 3)
	require.Equal(t, "2025-10-13", s.Days[0].Date)
	require.Zero(t, s.Days[0].InvoiceCount)
	require.Equal(t, 2, s.Days[1].InvoiceCount)
	require.Equal(t, 1, s.Days[2].InvoiceCount)
	require.Equal(t, 3, s.Totals.InvoiceCount)
	require.Equal(t, int64(7), s.Totals.ItemsSold)

	_, err = svc.Summary(ctx, time.Date(2025, 10, 15, 0, 0, 0, 0, time.UTC), time.Date(2025, 10, 14, 0, 0, 0, 0, time.UTC))
	require.ErrorIs(t, err, ErrInvalidRange)
	_, err = svc.Summary(ctx, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC))
	require.ErrorIs(t, err, ErrRangeTooLarge)
}

func TestZReportVariance(t *testing.T) {
	svc, _ := newService(t, fixture())
	ctx := context.Background()
	date := time.Date(2025, 10, 14, 0, 0, 0, 0, time.UTC)

	z, err := svc.ZReport(ctx, date, 1030)
	require.NoError(t, err)
	require.InDelta(t, 1035, z.ExpectedCash, 1e-9)
	require.InDelta(t, -5, z.Variance, 1e-9)
	require.Equal(t, "Corner Shop", z.StoreName)

	_, err = svc.ZReport(ctx, date, -1)
	require.ErrorIs(t, err, ErrNegativeCount)
}

func TestCacheDisabledWithoutClient(t *testing.T) {
	src := fixture()
	svc := NewService(src, NewCache(nil, time.Minute), time.UTC, "", nil)

	for range 2 {
		_, err := svc.Daily(context.Background(), time.Date(2025, 10, 14, 0, 0, 0, 0, time.UTC))
		require.NoError(t, err)
	}
	require.Equal(t, int32(2), src.loads.Load())
}
