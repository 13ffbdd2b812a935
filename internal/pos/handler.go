package pos

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/stockline/stockline/internal/platform/httpx"
	"github.com/stockline/stockline/internal/shared"
)

const (
	// IdempotencyHeader carries the client generated checkout key.
	IdempotencyHeader = "Idempotency-Key"
	// ReplayedHeader is set on responses served from an earlier checkout.
	ReplayedHeader = "Idempotent-Replayed"
)

// Handler wires HTTP endpoints for the till.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the POS handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers POS routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/pos/checkout", h.handleCheckout)
	r.Get("/pos/invoices/{invoiceID}", h.handleGetInvoice)
}

type checkoutRequest struct {
	Items []checkoutItemRequest `json:"items"`
}

type checkoutItemRequest struct {
	ProductID string           `json:"product_id"`
	Quantity  int              `json:"quantity"`
	Price     *decimal.Decimal `json:"price"`
}

type checkoutResponse struct {
	InvoiceID   string      `json:"invoice_id"`
	TotalAmount json.Number `json:"total_amount"`
	InvoiceDate time.Time   `json:"invoice_date"`
	Status      string      `json:"status"`
}

type invoiceItemResponse struct {
	ProductID string      `json:"product_id"`
	Quantity  int         `json:"quantity"`
	Price     json.Number `json:"price"`
	Subtotal  json.Number `json:"subtotal"`
}

type invoiceResponse struct {
	checkoutResponse
	Items []invoiceItemResponse `json:"items"`
}

func (h *Handler) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Malformed(w, err)
		return
	}

	input := CheckoutInput{IdempotencyKey: r.Header.Get(IdempotencyHeader)}
	if req.Items != nil {
		input.Items = make([]CartItem, 0, len(req.Items))
	}
	for i, item := range req.Items {
		if item.Price == nil {
			httpx.RespondError(w, shared.NewItemValidationError(i, "price", "is required"))
			return
		}
		input.Items = append(input.Items, CartItem{ProductID: item.ProductID, Quantity: item.Quantity, Price: *item.Price})
	}

	receipt, err := h.service.Checkout(r.Context(), input)
	if err != nil {
		if shared.IsDomainError(err) {
			h.logger.Info("checkout rejected", slog.Any("error", err))
		} else {
			h.logger.Error("checkout failed", slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return
	}
	if receipt.Replayed {
		w.Header().Set(ReplayedHeader, "true")
	}
	httpx.JSON(w, http.StatusOK, checkoutResponse{
		InvoiceID:   receipt.InvoiceID,
		TotalAmount: httpx.Money(receipt.TotalAmount),
		InvoiceDate: receipt.InvoiceDate,
		Status:      receipt.Status,
	})
}

func (h *Handler) handleGetInvoice(w http.ResponseWriter, r *http.Request) {
	inv, err := h.service.GetInvoice(r.Context(), chi.URLParam(r, "invoiceID"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	resp := invoiceResponse{
		checkoutResponse: checkoutResponse{
			InvoiceID:   inv.ID,
			TotalAmount: httpx.Money(inv.TotalAmount),
			InvoiceDate: inv.CreatedAt,
			Status:      inv.Status,
		},
		Items: make([]invoiceItemResponse, 0, len(inv.Items)),
	}
	for _, item := range inv.Items {
		resp.Items = append(resp.Items, invoiceItemResponse{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     httpx.Money(item.Price),
			Subtotal:  httpx.Money(item.Subtotal()),
		})
	}
	httpx.JSON(w, http.StatusOK, resp)
}
