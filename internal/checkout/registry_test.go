package checkout

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/tillpoint/tillpoint/internal/catalog"
	"github.com/tillpoint/tillpoint/internal/invoices"
	"github.com/tillpoint/tillpoint/internal/rbac"
	"github.com/tillpoint/tillpoint/internal/shared"
)

type scriptedSource struct {
	calls     atomic.Int32
	snapshots []catalog.Snapshot
}

// Subscribe emits the scripted snapshots and then closes, like a stream that
// lost its connection.
func (s *scriptedSource) Subscribe(ctx context.Context) <-chan catalog.Snapshot {
	s.calls.Add(1)
	out := make(chan catalog.Snapshot, len(s.snapshots))
	for _, snap := range s.snapshots {
		out <- snap
	}
	close(out)
	return out
}

func TestRegistryFansOutSnapshots(t *testing.T) {
	reg := NewRegistry(Deps{Store: newMemoryStore(nil)})
	first := reg.Engine("front-1")
	require.Same(t, first, reg.Engine("front-1"))
	require.NoError(t, first.AddToCart(product(1, "Tea", 4, 2)))

	reg.Observe(catalog.Snapshot{Products: []catalog.Product{product(1, "Tea", 4, 9)}})
	require.Equal(t, int64(9), first.View().Lines[0].AvailableStock)

	late := reg.Engine("front-2")
	require.NoError(t, late.AddProduct(context.Background(), 1))
	require.Equal(t, int64(9), late.View().Lines[0].AvailableStock)
	require.ElementsMatch(t, []string{"front-1", "front-2"}, reg.Terminals())
	require.Empty(t, reg.Engine("front-3").View().Lines)
}

func TestRegistryRefusesUnlistedTerminals(t *testing.T) {
	reg := NewRegistry(Deps{Store: newMemoryStore(nil)}, "front-1", "front-2")
	e, err := reg.Open("front-1")
	require.NoError(t, err)
	require.Same(t, e, reg.Engine("front-1"))

	_, err = reg.Open("front-9")
	require.ErrorIs(t, err, ErrUnknownTerminal)
	require.ElementsMatch(t, []string{"front-1"}, reg.Terminals())

	open := NewRegistry(Deps{Store: newMemoryStore(nil)})
	_, err = open.Open("anything")
	require.NoError(t, err)
}

func TestRegistryEvictsIdleTerminals(t *testing.T) {
	clock := &fixedClock{now: time.Date(2025, 10, 15, 10, 0, 0, 0, time.UTC)}
	reg := NewRegistry(Deps{Store: newMemoryStore(nil), Clock: clock.Now})
	busy := reg.Engine("busy")
	require.NoError(t, busy.AddToCart(product(1, "Tea", 4, 5)))
	reg.Engine("quiet")
	recent := reg.Engine("recent")

	clock.now = clock.now.Add(20 * time.Minute)
	recent.View()
	clock.now = clock.now.Add(20 * time.Minute)

	require.Equal(t, 1, reg.Evict(30*time.Minute))
	require.ElementsMatch(t, []string{"busy", "recent"}, reg.Terminals())
	require.Same(t, busy, reg.Engine("busy"))
	require.Len(t, busy.View().Lines, 1)

	fresh := reg.Engine("quiet")
	require.Empty(t, fresh.View().Lines)
	require.Zero(t, reg.Evict(30*time.Minute))
}

func TestRegistryResubscribes(t *testing.T) {
	src := &scriptedSource{snapshots: []catalog.Snapshot{{Products: []catalog.Product{product(1, "Tea", 4, 3)}}}}
	reg := NewRegistry(Deps{Store: newMemoryStore(nil)})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		reg.Run(ctx, src, 10*time.Millisecond)
		close(done)
	}()
	require.Eventually(t, func() bool { return src.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("registry did not stop")
	}
	require.NoError(t, reg.Engine("t").AddProduct(context.Background(), 1))
}

type lookupOnly map[int64]catalog.Product

func (l lookupOnly) Get(ctx context.Context, id int64) (catalog.Product, error) {
	p, ok := l[id]
	if !ok {
		return catalog.Product{}, catalog.ErrProductNotFound
	}
	return p, nil
}

func TestAddProductFallsBackToLookup(t *testing.T) {
	inactive := product(2, "Old", 1, 5)
	inactive.Status = catalog.StatusInactive
	e := NewEngine("t", Deps{Store: newMemoryStore(nil), Products: lookupOnly{1: product(1, "Tea", 4, 5), 2: inactive}})
	require.NoError(t, e.AddProduct(context.Background(), 1))
	require.ErrorIs(t, e.AddProduct(context.Background(), 2), ErrProductInactive)
	require.ErrorIs(t, e.AddProduct(context.Background(), 3), catalog.ErrProductNotFound)
}

type allowAll struct{}

func (allowAll) EffectivePermissions(ctx context.Context, userID int64) ([]string, error) {
	return []string{shared.PermPOSSell}, nil
}

type fakeReceipts struct{}

func (fakeReceipts) ReceiptPDF(ctx context.Context, inv invoices.Invoice) ([]byte, error) {
	return []byte("%PDF " + inv.Number), nil
}

func (fakeReceipts) ReceiptHTML(ctx context.Context, inv invoices.Invoice) ([]byte, error) {
	return []byte(inv.Number), nil
}

func TestHandlerSaleFlow(t *testing.T) {
	store := newMemoryStore(map[int64]int64{1: 5})
	reg := NewRegistry(Deps{Store: store, Clock: (&fixedClock{now: time.Date(2025, 10, 15, 10, 0, 0, 0, time.UTC)}).Now}, "front-1", "front-2")
	reg.Observe(catalog.Snapshot{Products: []catalog.Product{product(1, "Kettle", 500, 5)}})
	h := NewHandler(nil, reg, fakeReceipts{}, rbac.Middleware{Service: allowAll{}})

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			sess := &shared.Session{}
			sess.SetUser(42)
			next.ServeHTTP(w, req.WithContext(shared.ContextWithSession(req.Context(), sess)))
		})
	})
	r.Route("/pos", h.MountRoutes)

	do := func(method, path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	require.Equal(t, http.StatusBadRequest, do(http.MethodGet, "/pos/terminals/bad%20id", "").Code)
	require.Equal(t, http.StatusNotFound, do(http.MethodGet, "/pos/terminals/back-9", "").Code)
	require.Equal(t, http.StatusOK, do(http.MethodPost, "/pos/terminals/front-1/items", `{"product_id":1}`).Code)
	require.Equal(t, http.StatusOK, do(http.MethodPatch, "/pos/terminals/front-1/items/1", `{"delta":1}`).Code)

	rec := do(http.MethodPut, "/pos/terminals/front-1/sale", `{"discount_percent":10,"tax_rate_percent":15,"amount_received":"1000"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var view View
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	require.Equal(t, 1035.0, view.Totals.Total)

	rec = do(http.MethodPost, "/pos/terminals/front-1/checkout", "")
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Contains(t, rec.Body.String(), "Amount received is less than the total")

	require.Equal(t, http.StatusOK, do(http.MethodPut, "/pos/terminals/front-1/sale", `{"discount_percent":10,"tax_rate_percent":15,"amount_received":"1100"}`).Code)
	rec = do(http.MethodPost, "/pos/terminals/front-1/checkout", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	var inv invoices.Invoice
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &inv))
	require.Equal(t, "INV-202510-0001", inv.Number)
	require.Equal(t, 65.0, inv.ChangeGiven)
	require.Equal(t, int64(42), inv.CashierID)
	require.Equal(t, "front-1", inv.TerminalID)
	require.Equal(t, int64(3), store.stock[1])

	rec = do(http.MethodGet, "/pos/terminals/front-1/last-invoice/receipt.pdf", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))

	require.Equal(t, http.StatusNotFound, do(http.MethodGet, "/pos/terminals/front-2/last-invoice", "").Code)

	rec = do(http.MethodPost, "/pos/terminals/front-1/checkout", "")
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Contains(t, rec.Body.String(), "The cart is empty")
}
