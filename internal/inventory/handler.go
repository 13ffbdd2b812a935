package inventory

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/stockline/stockline/internal/platform/httpx"
	"github.com/stockline/stockline/internal/shared"
)

// Handler wires HTTP endpoints for product stock.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs inventory handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/pos/products", h.handleAvailable)
	r.Get("/inventory", h.handleList)
	r.Get("/products/{productID}", h.handleGet)
	r.Post("/products/restock", h.handleRestock)
}

type restockRequest struct {
	Products []RestockLine `json:"products"`
}

type productResponse struct {
	ID           string      `json:"id"`
	Name         string      `json:"name"`
	Description  string      `json:"description,omitempty"`
	Price        json.Number `json:"price"`
	Stock        int         `json:"stock"`
	CategoryID   string      `json:"category_id"`
	SupplierID   string      `json:"supplier_id"`
	CategoryName string      `json:"category_name,omitempty"`
	SupplierName string      `json:"supplier_name,omitempty"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

type inventoryPage struct {
	Data       []productResponse `json:"data"`
	Pagination shared.Pagination `json:"pagination"`
}

func toResponse(p Product) productResponse {
	return productResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       httpx.Money(p.Price),
		Stock:       p.Stock,
		CategoryID:  p.CategoryID,
		SupplierID:  p.SupplierID,
		UpdatedAt:   p.UpdatedAt,
	}
}

func (h *Handler) handleAvailable(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.ListAvailable(r.Context())
	if err != nil {
		h.logger.Error("list available products", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]productResponse, 0, len(products))
	for _, p := range products {
		out = append(out, toResponse(p))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filters := ListFilters{
		Search:     q.Get("search"),
		CategoryID: q.Get("category_id"),
		SupplierID: q.Get("supplier_id"),
		SortBy:     q.Get("sort_by"),
		SortDir:    q.Get("sort_dir"),
	}
	filters.Page, _ = strconv.Atoi(q.Get("page"))
	filters.Limit, _ = strconv.Atoi(q.Get("limit"))

	products, page, err := h.service.List(r.Context(), filters)
	if err != nil {
		h.logger.Error("list inventory", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	resp := inventoryPage{Data: make([]productResponse, 0, len(products)), Pagination: page}
	for _, v := range products {
		item := toResponse(v.Product)
		item.CategoryName = v.CategoryName
		item.SupplierName = v.SupplierName
		resp.Data = append(resp.Data, item)
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	product, err := h.service.Get(r.Context(), chi.URLParam(r, "productID"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(product))
}

func (h *Handler) handleRestock(w http.ResponseWriter, r *http.Request) {
	var req restockRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Malformed(w, err)
		return
	}
	result, err := h.service.Restock(r.Context(), req.Products)
	if err != nil {
		h.logger.Warn("restock rejected", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	h.logger.Info("restock applied",
		slog.Int("created", result.Created),
		slog.Int("updated", result.Updated),
		slog.Int("skipped", len(result.Skipped)))
	httpx.JSON(w, http.StatusOK, result)
}
