package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/tillpoint/tillpoint/internal/auth"
	"github.com/tillpoint/tillpoint/internal/catalog"
	"github.com/tillpoint/tillpoint/internal/checkout"
	"github.com/tillpoint/tillpoint/internal/inventory"
	"github.com/tillpoint/tillpoint/internal/invoices"
	"github.com/tillpoint/tillpoint/internal/masterdata/categories"
	"github.com/tillpoint/tillpoint/internal/masterdata/suppliers"
	"github.com/tillpoint/tillpoint/internal/observability"
	"github.com/tillpoint/tillpoint/internal/procurement"
	"github.com/tillpoint/tillpoint/internal/promotions"
	"github.com/tillpoint/tillpoint/internal/rbac"
	"github.com/tillpoint/tillpoint/internal/reports"
	"github.com/tillpoint/tillpoint/internal/shared"
	"github.com/tillpoint/tillpoint/internal/users"
	"github.com/tillpoint/tillpoint/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager
	Metrics        *observability.Metrics

	AuthHandler        *auth.Handler
	CheckoutHandler    *checkout.Handler
	CatalogHandler     *catalog.Handler
	InvoicesHandler    *invoices.Handler
	InventoryHandler   *inventory.Handler
	ProcurementHandler *procurement.Handler
	CategoriesHandler  *categories.Handler
	SuppliersHandler   *suppliers.Handler
	PromotionsHandler  *promotions.Handler
	ReportsHandler     *reports.Handler
	UsersHandler       *users.Handler
	RBACHandler        *rbac.Handler
	JobHandler         *jobs.Handler
}

// NewRouter constructs the chi.Router with tillpoint defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		for _, mw := range MiddlewareStack(MiddlewareConfig{
			Logger:         params.Logger,
			Config:         params.Config,
			SessionManager: params.SessionManager,
			CSRFManager:    params.CSRFManager,
			Metrics:        params.Metrics,
		}) {
			r.Use(mw)
		}
		r.Use(chimw.Logger)

		r.Route("/auth", func(r chi.Router) {
			params.AuthHandler.MountRoutes(r, LoginLimit())
		})
		mount(r, "/pos", params.CheckoutHandler)
		mount(r, "/catalog", params.CatalogHandler)
		mount(r, "/invoices", params.InvoicesHandler)
		mount(r, "/inventory", params.InventoryHandler)
		mount(r, "/procurement", params.ProcurementHandler)
		mount(r, "/masterdata/categories", params.CategoriesHandler)
		mount(r, "/masterdata/suppliers", params.SuppliersHandler)
		mount(r, "/promotions", params.PromotionsHandler)
		mount(r, "/reports", params.ReportsHandler)
		mount(r, "/users", params.UsersHandler)
		mount(r, "/rbac", params.RBACHandler)
		mount(r, "/jobs", params.JobHandler)
	})

	return r
}

type routeMounter interface {
	MountRoutes(chi.Router)
}

func mount[H routeMounter](r chi.Router, prefix string, h H) {
	var zero H
	if any(h) == any(zero) {
		return
	}
	r.Route(prefix, h.MountRoutes)
}
