package payables

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/stockline/stockline/internal/platform/httpx"
	"github.com/stockline/stockline/internal/shared"
)

// Handler wires HTTP endpoints for supplier invoices and payments.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs payables handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers payables routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/supplier-invoices", func(r chi.Router) {
		r.Get("/", h.handleListInvoices)
		r.Post("/", h.handleCreateInvoice)
		r.Get("/{invoiceID}", h.handleGetInvoice)
	})
	r.Route("/payments", func(r chi.Router) {
		r.Get("/", h.handleListPayments)
		r.Post("/", h.handleRecordPayment)
		r.Patch("/{paymentID}", h.handleUpdatePaymentStatus)
	})
}

type paymentResponse struct {
	ID          string        `json:"id"`
	InvoiceID   string        `json:"invoice_id"`
	Amount      json.Number   `json:"amount"`
	PaymentDate time.Time     `json:"payment_date"`
	Status      PaymentStatus `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
}

type invoiceResponse struct {
	ID          string            `json:"id"`
	SupplierID  string            `json:"supplier_id"`
	FileName    string            `json:"fileName"`
	FileURL     string            `json:"fileUrl"`
	TotalAmount json.Number       `json:"totalAmount"`
	InvoiceDate time.Time         `json:"invoiceDate"`
	Status      InvoiceStatus     `json:"status"`
	CreatedAt   time.Time         `json:"createdAt"`
	Payments    []paymentResponse `json:"payments"`
}

type updatePaymentRequest struct {
	Status PaymentStatus `json:"status"`
}

func toPaymentResponse(p Payment) paymentResponse {
	return paymentResponse{
		ID:          p.ID,
		InvoiceID:   p.InvoiceID,
		Amount:      httpx.Money(p.Amount),
		PaymentDate: p.PaymentDate,
		Status:      p.Status,
		CreatedAt:   p.CreatedAt,
	}
}

func toInvoiceResponse(inv SupplierInvoice) invoiceResponse {
	resp := invoiceResponse{
		ID:          inv.ID,
		SupplierID:  inv.SupplierID,
		FileName:    inv.FileName,
		FileURL:     inv.FileURL,
		TotalAmount: httpx.Money(inv.TotalAmount),
		InvoiceDate: inv.InvoiceDate,
		Status:      inv.Status,
		CreatedAt:   inv.CreatedAt,
		Payments:    make([]paymentResponse, 0, len(inv.Payments)),
	}
	for _, p := range inv.Payments {
		resp.Payments = append(resp.Payments, toPaymentResponse(p))
	}
	return resp
}

func (h *Handler) respondError(w http.ResponseWriter, msg string, err error) {
	if shared.IsDomainError(err) {
		h.logger.Info(msg, slog.Any("error", err))
	} else {
		h.logger.Error(msg, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func (h *Handler) handleCreateInvoice(w http.ResponseWriter, r *http.Request) {
	var input CreateInvoiceInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.Malformed(w, err)
		return
	}
	inv, err := h.service.CreateInvoice(r.Context(), input)
	if err != nil {
		h.respondError(w, "create supplier invoice", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toInvoiceResponse(inv))
}

func (h *Handler) handleGetInvoice(w http.ResponseWriter, r *http.Request) {
	inv, err := h.service.GetInvoice(r.Context(), chi.URLParam(r, "invoiceID"))
	if err != nil {
		h.respondError(w, "get supplier invoice", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toInvoiceResponse(inv))
}

func (h *Handler) handleListInvoices(w http.ResponseWriter, r *http.Request) {
	invoices, err := h.service.ListInvoices(r.Context())
	if err != nil {
		h.respondError(w, "list supplier invoices", err)
		return
	}
	out := make([]invoiceResponse, 0, len(invoices))
	for _, inv := range invoices {
		out = append(out, toInvoiceResponse(inv))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) handleRecordPayment(w http.ResponseWriter, r *http.Request) {
	var input RecordPaymentInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.Malformed(w, err)
		return
	}
	p, err := h.service.RecordPayment(r.Context(), input)
	if err != nil {
		h.respondError(w, "record payment", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toPaymentResponse(p))
}

func (h *Handler) handleListPayments(w http.ResponseWriter, r *http.Request) {
	payments, err := h.service.ListPayments(r.Context())
	if err != nil {
		h.respondError(w, "list payments", err)
		return
	}
	out := make([]paymentResponse, 0, len(payments))
	for _, p := range payments {
		out = append(out, toPaymentResponse(p))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) handleUpdatePaymentStatus(w http.ResponseWriter, r *http.Request) {
	var req updatePaymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Malformed(w, err)
		return
	}
	p, err := h.service.UpdatePaymentStatus(r.Context(), UpdatePaymentStatusInput{
		PaymentID: chi.URLParam(r, "paymentID"),
		Status:    req.Status,
	})
	if err != nil {
		h.respondError(w, "update payment status", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toPaymentResponse(p))
}
