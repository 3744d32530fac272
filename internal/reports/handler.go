package reports

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tillpoint/tillpoint/internal/platform/httpx"
	"github.com/tillpoint/tillpoint/internal/rbac"
	"github.com/tillpoint/tillpoint/internal/shared"
)

// ZRenderer turns a Z report into a PDF.
type ZRenderer interface {
	ZReportPDF(ctx context.Context, z ZReport) ([]byte, error)
}

// Handler exposes report endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	renderer ZRenderer
	rbac     rbac.Middleware
}

// NewHandler constructs Handler.
func NewHandler(logger *slog.Logger, service *Service, renderer ZRenderer, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, renderer: renderer, rbac: rbac}
}

// MountRoutes registers report routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.PermReportsView))
		r.Get("/daily", h.daily)
		r.Get("/summary", h.summary)
		r.Get("/z", h.z)
		r.Get("/z.pdf", h.zPDF)
	})
}

// date parses the named query value, defaulting to today.
func (h *Handler) date(r *http.Request, name string) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return h.service.now().In(h.service.Location()), nil
	}
	d, err := shared.ParseDate(raw, h.service.Location())
	if err != nil {
		return time.Time{}, fmt.Errorf("%s must be YYYY-MM-DD", name)
	}
	return d, nil
}

func (h *Handler) daily(w http.ResponseWriter, r *http.Request) {
	date, err := h.date(r, "date")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	d, err := h.service.Daily(r.Context(), date)
	if err != nil {
		httpx.Fail(w, h.logger, "daily report", err)
		return
	}
	httpx.JSON(w, http.StatusOK, d)
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	from, err := h.date(r, "from")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	to, err := h.date(r, "to")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	s, err := h.service.Summary(r.Context(), from, to)
	if err != nil {
		httpx.Fail(w, h.logger, "summary report", err)
		return
	}
	httpx.JSON(w, http.StatusOK, s)
}

func (h *Handler) zReport(w http.ResponseWriter, r *http.Request) (ZReport, bool) {
	date, err := h.date(r, "date")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return ZReport{}, false
	}
	var counted float64
	if raw := r.URL.Query().Get("counted_cash"); raw != "" {
		counted, err = strconv.ParseFloat(raw, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "counted_cash must be a number")
			return ZReport{}, false
		}
	}
	z, err := h.service.ZReport(r.Context(), date, counted)
	if err != nil {
		httpx.Fail(w, h.logger, "z report", err)
		return ZReport{}, false
	}
	return z, true
}

func (h *Handler) z(w http.ResponseWriter, r *http.Request) {
	if z, ok := h.zReport(w, r); ok {
		httpx.JSON(w, http.StatusOK, z)
	}
}

func (h *Handler) zPDF(w http.ResponseWriter, r *http.Request) {
	z, ok := h.zReport(w, r)
	if !ok {
		return
	}
	pdf, err := h.renderer.ZReportPDF(r.Context(), z)
	if err != nil {
		httpx.Fail(w, h.logger, "render z report", err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=z-report-%s.pdf", z.Date))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}
