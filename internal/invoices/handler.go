package invoices

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tillpoint/tillpoint/internal/platform/httpx"
	"github.com/tillpoint/tillpoint/internal/rbac"
	"github.com/tillpoint/tillpoint/internal/shared"
)

// ReceiptRenderer turns an invoice into printable output.
type ReceiptRenderer interface {
	ReceiptPDF(ctx context.Context, inv Invoice) ([]byte, error)
	ReceiptHTML(ctx context.Context, inv Invoice) ([]byte, error)
}

// Handler wires HTTP endpoints for invoice history.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	receipts ReceiptRenderer
	rbac     rbac.Middleware
}

// NewHandler constructs invoices handler.
func NewHandler(logger *slog.Logger, service *Service, receipts ReceiptRenderer, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, receipts: receipts, rbac: rbac}
}

// MountRoutes registers invoice routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermInvoicesView, shared.PermInvoicesVoid))
		r.Get("/", h.list)
		r.Get("/{number}", h.show)
		r.Get("/{number}/receipt.pdf", h.receiptPDF)
		r.Get("/{number}/print", h.print)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.PermInvoicesVoid))
		r.Post("/{number}/void", h.void)
		r.Post("/{number}/refund", h.refund)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, err := shared.ParseDate(q.Get("from"), time.Local)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "from must be YYYY-MM-DD")
		return
	}
	to, err := shared.ParseDate(q.Get("to"), time.Local)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "to must be YYYY-MM-DD")
		return
	}
	if !to.IsZero() {
		to = to.AddDate(0, 0, 1)
	}
	filter := ListFilter{
		ListFilters: shared.ParseListFilters(r),
		From:        from,
		To:          to,
		Status:      Status(q.Get("status")),
	}
	list, total, err := h.service.List(r.Context(), filter)
	if err != nil {
		httpx.Fail(w, h.logger, "list invoices", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"invoices":   list,
		"pagination": shared.NewPagination(filter.Page, filter.Limit(), total),
	})
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	inv, err := h.service.Get(r.Context(), chi.URLParam(r, "number"))
	if err != nil {
		httpx.Fail(w, h.logger, "get invoice", err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) receiptPDF(w http.ResponseWriter, r *http.Request) {
	inv, err := h.service.Get(r.Context(), chi.URLParam(r, "number"))
	if err != nil {
		httpx.Fail(w, h.logger, "get invoice", err)
		return
	}
	pdf, err := h.receipts.ReceiptPDF(r.Context(), inv)
	if err != nil {
		httpx.Fail(w, h.logger, "render receipt pdf", err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `inline; filename="`+inv.Number+`.pdf"`)
	_, _ = w.Write(pdf)
}

func (h *Handler) print(w http.ResponseWriter, r *http.Request) {
	inv, err := h.service.Get(r.Context(), chi.URLParam(r, "number"))
	if err != nil {
		httpx.Fail(w, h.logger, "get invoice", err)
		return
	}
	page, err := h.receipts.ReceiptHTML(r.Context(), inv)
	if err != nil {
		httpx.Fail(w, h.logger, "render receipt html", err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(page)
}

func (h *Handler) void(w http.ResponseWriter, r *http.Request) {
	h.changeStatus(w, r, "void invoice", h.service.Void)
}

func (h *Handler) refund(w http.ResponseWriter, r *http.Request) {
	h.changeStatus(w, r, "refund invoice", h.service.Refund)
}

func (h *Handler) changeStatus(w http.ResponseWriter, r *http.Request, op string, apply func(context.Context, string, StatusChange) (Invoice, error)) {
	var in StatusChange
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondBindError(w, err)
		return
	}
	inv, err := apply(r.Context(), chi.URLParam(r, "number"), in)
	if err != nil {
		httpx.Fail(w, h.logger, op, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}
