package suppliers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/tillpoint/tillpoint/internal/masterdata/shared"
	"github.com/tillpoint/tillpoint/internal/platform/httpx"
	"github.com/tillpoint/tillpoint/internal/rbac"
	core "github.com/tillpoint/tillpoint/internal/shared"
)

type memoryRepo struct {
	items  map[int64]Supplier
	nextID int64
}

func (m *memoryRepo) List(ctx context.Context, filters shared.ListFilters) ([]Supplier, int, error) {
	out := make([]Supplier, 0, len(m.items))
	for _, s := range m.items {
		out = append(out, s)
	}
	return out, len(out), nil
}

func (m *memoryRepo) Get(ctx context.Context, id int64) (Supplier, error) {
	s, ok := m.items[id]
	if !ok {
		return Supplier{}, shared.ErrNotFound
	}
	return s, nil
}

func (m *memoryRepo) Create(ctx context.Context, s Supplier) (Supplier, error) {
	m.nextID++
	s.ID = m.nextID
	m.items[s.ID] = s
	return s, nil
}

func (m *memoryRepo) Update(ctx context.Context, id int64, s Supplier) (Supplier, error) {
	if _, ok := m.items[id]; !ok {
		return Supplier{}, shared.ErrNotFound
	}
	s.ID = id
	m.items[id] = s
	return s, nil
}

func (m *memoryRepo) Delete(ctx context.Context, id int64) error {
	delete(m.items, id)
	return nil
}

type grantAll struct{ perms []string }

func (g grantAll) EffectivePermissions(ctx context.Context, userID int64) ([]string, error) {
	return g.perms, nil
}

func TestSupplierNormalizesInput(t *testing.T) {
	svc := NewService(&memoryRepo{items: map[int64]Supplier{}})

	s, err := svc.Create(context.Background(), Supplier{Code: "acme", Name: " Acme Foods ", Email: " Orders@Acme.Test "})
	require.NoError(t, err)
	require.Equal(t, "ACME", s.Code)
	require.Equal(t, "orders@acme.test", s.Email)

	_, err = svc.Create(context.Background(), Supplier{Code: "X", Name: "Bad mail", Email: "nope"})
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestSupplierRoutesRequirePermission(t *testing.T) {
	repo := &memoryRepo{items: map[int64]Supplier{}}
	newRouter := func(perms ...string) http.Handler {
		h := NewHandler(nil, NewService(repo), rbac.Middleware{Service: grantAll{perms: perms}})
		r := chi.NewRouter()
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				sess := &core.Session{}
				sess.SetUser(7)
				next.ServeHTTP(w, req.WithContext(core.ContextWithSession(req.Context(), sess)))
			})
		})
		h.MountRoutes(r)
		return r
	}
	body := `{"code":"acme","name":"Acme Foods"}`

	rec := httptest.NewRecorder()
	newRouter(core.PermProcurementEdit).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)))
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	newRouter(core.PermMasterDataEdit).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = httptest.NewRecorder()
	newRouter(core.PermProcurementEdit).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"code":"ACME"`)
}
