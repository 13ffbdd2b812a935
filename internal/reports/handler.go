package reports

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/stockline/stockline/internal/platform/httpx"
	"github.com/stockline/stockline/internal/shared"
)

// Handler exposes read-only report endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the reports handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers report routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/reports", func(r chi.Router) {
		r.Get("/low-stock", h.handleLowStock)
		r.Get("/top-selling", h.handleTopSelling)
		r.Get("/products-by-stock", h.handleProductsByStock)
		r.Get("/categories", h.handleCategories)
		r.Get("/sales-summary", h.handleSalesSummary)
	})
	r.Get("/dashboard", h.handleDashboard)
}

// queryInt parses an optional non-negative integer query parameter.
func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, shared.NewValidationError(name, "must be a non-negative integer")
	}
	return v, nil
}

func (h *Handler) fail(w http.ResponseWriter, report string, err error) {
	if shared.IsDomainError(err) {
		h.logger.Info("report rejected", slog.String("report", report), slog.Any("error", err))
	} else {
		h.logger.Error("report failed", slog.String("report", report), slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func (h *Handler) handleLowStock(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		h.fail(w, "low_stock", err)
		return
	}
	items, err := h.service.LowStock(r.Context(), limit)
	if err != nil {
		h.fail(w, "low_stock", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"threshold": h.service.Threshold(), "data": nonNil(items)})
}

func (h *Handler) handleTopSelling(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		h.fail(w, "top_selling", err)
		return
	}
	days, err := queryInt(r, "days")
	if err != nil {
		h.fail(w, "top_selling", err)
		return
	}
	items, err := h.service.TopSelling(r.Context(), days, limit)
	if err != nil {
		h.fail(w, "top_selling", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": nonNil(items)})
}

func (h *Handler) handleProductsByStock(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		h.fail(w, "products_by_stock", err)
		return
	}
	items, err := h.service.ProductsByStock(r.Context(), limit)
	if err != nil {
		h.fail(w, "products_by_stock", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": nonNil(items)})
}

func (h *Handler) handleCategories(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.CategoryRollup(r.Context())
	if err != nil {
		h.fail(w, "categories", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": nonNil(items)})
}

func (h *Handler) handleSalesSummary(w http.ResponseWriter, r *http.Request) {
	days, err := queryInt(r, "days")
	if err != nil {
		h.fail(w, "sales_summary", err)
		return
	}
	summary, err := h.service.SalesSummary(r.Context(), days)
	if err != nil {
		h.fail(w, "sales_summary", err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.service.Dashboard(r.Context())
	if err != nil {
		h.fail(w, "dashboard", err)
		return
	}
	httpx.JSON(w, http.StatusOK, d)
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
