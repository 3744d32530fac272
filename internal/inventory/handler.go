package inventory

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tillpoint/tillpoint/internal/platform/httpx"
	"github.com/tillpoint/tillpoint/internal/rbac"
	"github.com/tillpoint/tillpoint/internal/shared"
)

// Handler wires HTTP endpoints for inventory module.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler constructs inventory handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermInventoryView, shared.PermInventoryEdit))
		r.Get("/movements", h.listMovements)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.PermInventoryEdit))
		r.Post("/adjustments", h.adjust)
	})
}

func (h *Handler) listMovements(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := MovementFilter{
		ListFilters: shared.ParseListFilters(r),
		Reason:      Reason(q.Get("reason")),
	}
	if id, err := strconv.ParseInt(q.Get("product_id"), 10, 64); err == nil {
		filter.ProductID = id
	}
	var err error
	if filter.From, err = shared.ParseDate(q.Get("from"), time.Local); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "from must be YYYY-MM-DD")
		return
	}
	if filter.To, err = shared.ParseDate(q.Get("to"), time.Local); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "to must be YYYY-MM-DD")
		return
	}
	if !filter.To.IsZero() {
		filter.To = filter.To.AddDate(0, 0, 1)
	}
	moves, total, err := h.service.ListMovements(r.Context(), filter)
	if err != nil {
		httpx.Fail(w, h.logger, "list movements", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"movements":  moves,
		"pagination": shared.NewPagination(filter.Page, filter.Limit(), total),
	})
}

func (h *Handler) adjust(w http.ResponseWriter, r *http.Request) {
	var in AdjustmentInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondBindError(w, err)
		return
	}
	m, err := h.service.Adjust(r.Context(), in)
	if err != nil {
		httpx.Fail(w, h.logger, "post adjustment", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, m)
}
