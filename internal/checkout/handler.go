package checkout

import (
	"log/slog"
	"net/http"
	"regexp"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/tillpoint/tillpoint/internal/invoices"
	"github.com/tillpoint/tillpoint/internal/platform/httpx"
	"github.com/tillpoint/tillpoint/internal/rbac"
	"github.com/tillpoint/tillpoint/internal/shared"
)

var terminalPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// Handler exposes terminal sales over JSON.
type Handler struct {
	logger   *slog.Logger
	registry *Registry
	receipts invoices.ReceiptRenderer
	rbac     rbac.Middleware
}

// NewHandler constructs the point-of-sale handler.
func NewHandler(logger *slog.Logger, registry *Registry, receipts invoices.ReceiptRenderer, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, registry: registry, receipts: receipts, rbac: rbac}
}

// MountRoutes registers terminal routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Use(h.rbac.RequireAll(shared.PermPOSSell))
	r.Route("/terminals/{terminal}", func(r chi.Router) {
		r.Get("/", h.show)
		r.Post("/items", h.addItem)
		r.Patch("/items/{productID}", h.updateItem)
		r.Delete("/items/{productID}", h.removeItem)
		r.Put("/sale", h.updateSale)
		r.Post("/promotion", h.applyPromotion)
		r.Post("/checkout", h.checkout)
		r.Get("/last-invoice", h.lastInvoice)
		r.Get("/last-invoice/receipt.pdf", h.lastReceipt)
	})
}

type addItemRequest struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
}

type updateItemRequest struct {
	Delta int64 `json:"delta" validate:"required"`
}

type promotionRequest struct {
	Code string `json:"code" validate:"required,max=64"`
}

func (h *Handler) engine(w http.ResponseWriter, r *http.Request) (*Engine, bool) {
	id := chi.URLParam(r, "terminal")
	if !terminalPattern.MatchString(id) {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid terminal id")
		return nil, false
	}
	e, err := h.registry.Open(id)
	if err != nil {
		httpx.Fail(w, h.logger, "open terminal", err)
		return nil, false
	}
	return e, true
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	e, ok := h.engine(w, r)
	if !ok {
		return
	}
	httpx.JSON(w, http.StatusOK, e.View())
}

func (h *Handler) addItem(w http.ResponseWriter, r *http.Request) {
	e, ok := h.engine(w, r)
	if !ok {
		return
	}
	var req addItemRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondBindError(w, err)
		return
	}
	if err := e.AddProduct(r.Context(), req.ProductID); err != nil {
		httpx.Fail(w, h.logger, "add to cart", err)
		return
	}
	httpx.JSON(w, http.StatusOK, e.View())
}

func (h *Handler) updateItem(w http.ResponseWriter, r *http.Request) {
	e, ok := h.engine(w, r)
	if !ok {
		return
	}
	productID, ok := productParam(w, r)
	if !ok {
		return
	}
	var req updateItemRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondBindError(w, err)
		return
	}
	if err := e.UpdateQuantity(productID, req.Delta); err != nil {
		httpx.Fail(w, h.logger, "update quantity", err)
		return
	}
	httpx.JSON(w, http.StatusOK, e.View())
}

func (h *Handler) removeItem(w http.ResponseWriter, r *http.Request) {
	e, ok := h.engine(w, r)
	if !ok {
		return
	}
	productID, ok := productParam(w, r)
	if !ok {
		return
	}
	if err := e.RemoveFromCart(productID); err != nil {
		httpx.Fail(w, h.logger, "remove from cart", err)
		return
	}
	httpx.JSON(w, http.StatusOK, e.View())
}

func (h *Handler) updateSale(w http.ResponseWriter, r *http.Request) {
	e, ok := h.engine(w, r)
	if !ok {
		return
	}
	var in SaleInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondBindError(w, err)
		return
	}
	if err := e.UpdateSale(in); err != nil {
		httpx.Fail(w, h.logger, "update sale", err)
		return
	}
	httpx.JSON(w, http.StatusOK, e.View())
}

func (h *Handler) applyPromotion(w http.ResponseWriter, r *http.Request) {
	e, ok := h.engine(w, r)
	if !ok {
		return
	}
	var req promotionRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondBindError(w, err)
		return
	}
	if err := e.ApplyPromotion(r.Context(), req.Code); err != nil {
		httpx.Fail(w, h.logger, "apply promotion", err)
		return
	}
	httpx.JSON(w, http.StatusOK, e.View())
}

func (h *Handler) checkout(w http.ResponseWriter, r *http.Request) {
	e, ok := h.engine(w, r)
	if !ok {
		return
	}
	inv, err := e.Checkout(r.Context())
	if err != nil {
		httpx.Fail(w, h.logger, "checkout", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, inv)
}

func (h *Handler) lastInvoice(w http.ResponseWriter, r *http.Request) {
	e, ok := h.engine(w, r)
	if !ok {
		return
	}
	inv, err := e.LastInvoice()
	if err != nil {
		httpx.Fail(w, h.logger, "last invoice", err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) lastReceipt(w http.ResponseWriter, r *http.Request) {
	e, ok := h.engine(w, r)
	if !ok {
		return
	}
	inv, err := e.LastInvoice()
	if err != nil {
		httpx.Fail(w, h.logger, "last invoice", err)
		return
	}
	pdf, err := h.receipts.ReceiptPDF(r.Context(), inv)
	if err != nil {
		httpx.Fail(w, h.logger, "render receipt", err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `inline; filename="`+inv.Number+`.pdf"`)
	_, _ = w.Write(pdf)
}

func productParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid product id")
		return 0, false
	}
	return id, true
}
