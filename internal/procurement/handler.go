package procurement

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/tillpoint/tillpoint/internal/platform/httpx"
	"github.com/tillpoint/tillpoint/internal/rbac"
	"github.com/tillpoint/tillpoint/internal/shared"
)

// Handler manages procurement endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers procurement routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermProcurementEdit, shared.PermInventoryView))
		r.Get("/grns", h.listGRNs)
		r.Get("/grns/{id}", h.showGRN)
		r.Get("/returns", h.listReturns)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.PermProcurementEdit))
		r.Post("/grns", h.createGRN)
		r.Post("/grns/{id}/post", h.postGRN)
		r.Post("/returns", h.createReturn)
	})
}

func parseListFilter(r *http.Request) ListFilter {
	q := r.URL.Query()
	filter := ListFilter{ListFilters: shared.ParseListFilters(r), Status: GRNStatus(q.Get("status"))}
	if id, err := strconv.ParseInt(q.Get("supplier_id"), 10, 64); err == nil {
		filter.SupplierID = id
	}
	return filter
}

func (h *Handler) listGRNs(w http.ResponseWriter, r *http.Request) {
	filter := parseListFilter(r)
	grns, total, err := h.service.ListGoodsReceipts(r.Context(), filter)
	if err != nil {
		httpx.Fail(w, h.logger, "list grns", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"grns":       grns,
		"pagination": shared.NewPagination(filter.Page, filter.Limit(), total),
	})
}

func (h *Handler) showGRN(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	grn, err := h.service.GetGoodsReceipt(r.Context(), id)
	if err != nil {
		httpx.Fail(w, h.logger, "get grn", err)
		return
	}
	httpx.JSON(w, http.StatusOK, grn)
}

func (h *Handler) createGRN(w http.ResponseWriter, r *http.Request) {
	var in GRNInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondBindError(w, err)
		return
	}
	grn, err := h.service.CreateGoodsReceipt(r.Context(), in)
	if err != nil {
		httpx.Fail(w, h.logger, "create grn", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, grn)
}

func (h *Handler) postGRN(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	grn, err := h.service.PostGoodsReceipt(r.Context(), id)
	if err != nil {
		httpx.Fail(w, h.logger, "post grn", err)
		return
	}
	httpx.JSON(w, http.StatusOK, grn)
}

func (h *Handler) listReturns(w http.ResponseWriter, r *http.Request) {
	filter := parseListFilter(r)
	returns, total, err := h.service.ListReturns(r.Context(), filter)
	if err != nil {
		httpx.Fail(w, h.logger, "list supplier returns", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"returns":    returns,
		"pagination": shared.NewPagination(filter.Page, filter.Limit(), total),
	})
}

func (h *Handler) createReturn(w http.ResponseWriter, r *http.Request) {
	var in ReturnInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondBindError(w, err)
		return
	}
	ret, err := h.service.CreateReturn(r.Context(), in)
	if err != nil {
		httpx.Fail(w, h.logger, "create supplier return", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, ret)
}

func (h *Handler) id(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return 0, false
	}
	return id, true
}
