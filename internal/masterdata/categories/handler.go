package categories

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/tillpoint/tillpoint/internal/masterdata/shared"
	"github.com/tillpoint/tillpoint/internal/platform/httpx"
	"github.com/tillpoint/tillpoint/internal/rbac"
	core "github.com/tillpoint/tillpoint/internal/shared"
)

type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(core.PermMasterDataEdit, core.PermCatalogView, core.PermCatalogEdit))
		r.Get("/", h.List)
		r.Get("/{id}", h.Show)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(core.PermMasterDataEdit))
		r.Post("/", h.Create)
		r.Put("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)
	})
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	filters := shared.ParseListFilters(r)
	categories, total, err := h.service.List(r.Context(), filters)
	if err != nil {
		httpx.Fail(w, h.logger, "list categories", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"categories": categories,
		"pagination": core.NewPagination(filters.Page, filters.Limit(), total),
	})
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	category, err := h.service.Get(r.Context(), parseID(r))
	if err != nil {
		httpx.Fail(w, h.logger, "get category", err)
		return
	}
	httpx.JSON(w, http.StatusOK, category)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var in Category
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondBindError(w, err)
		return
	}
	category, err := h.service.Create(r.Context(), in)
	if err != nil {
		httpx.Fail(w, h.logger, "create category", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, category)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var in Category
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondBindError(w, err)
		return
	}
	category, err := h.service.Update(r.Context(), parseID(r), in)
	if err != nil {
		httpx.Fail(w, h.logger, "update category", err)
		return
	}
	httpx.JSON(w, http.StatusOK, category)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), parseID(r)); err != nil {
		httpx.Fail(w, h.logger, "delete category", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// parseID yields 0 for malformed ids, which the service rejects.
func parseID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id
}
