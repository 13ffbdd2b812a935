package payables

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// InvoiceStatus enumerates supplier invoice states.
type InvoiceStatus string

const (
	InvoiceStatusPending InvoiceStatus = "PENDING"
	InvoiceStatusPaid    InvoiceStatus = "PAID"
	InvoiceStatusOverdue InvoiceStatus = "OVERDUE"
)

// PaymentStatus enumerates payment states.
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "PENDING"
	PaymentStatusPaid    PaymentStatus = "PAID"
)

var (
	// ErrInvoiceNotFound indicates missing supplier invoice.
	ErrInvoiceNotFound = errors.New("payables: invoice not found")
	// ErrPaymentNotFound indicates missing payment.
	ErrPaymentNotFound = errors.New("payables: payment not found")
)

// SupplierInvoice is money owed to a supplier for received goods.
type SupplierInvoice struct {
	ID          string
	SupplierID  string
	FileName    string
	FileURL     string
	TotalAmount decimal.Decimal
	InvoiceDate time.Time
	Status      InvoiceStatus
	CreatedAt   time.Time
	Payments    []Payment
}

// Payment is one entry in an invoice's payment ledger.
type Payment struct {
	ID          string
	InvoiceID   string
	Amount      decimal.Decimal
	PaymentDate time.Time
	Status      PaymentStatus
	CreatedAt   time.Time
}

// CreateInvoiceInput is the payload produced by the upload collaborator.
type CreateInvoiceInput struct {
	SupplierID  string          `json:"supplier_id" validate:"required,max=64"`
	TotalAmount decimal.Decimal `json:"totalAmount" validate:"gte=0,money"`
	FileName    string          `json:"fileName" validate:"max=255"`
	FileURL     string          `json:"fileUrl" validate:"omitempty,url,max=2048"`
	InvoiceDate time.Time       `json:"invoiceDate" validate:"required"`
	Status      InvoiceStatus   `json:"status" validate:"omitempty,oneof=PENDING PAID OVERDUE"`
}

// RecordPaymentInput adds a payment to an existing invoice.
type RecordPaymentInput struct {
	InvoiceID   string          `json:"invoice_id" validate:"required"`
	Amount      decimal.Decimal `json:"amount" validate:"gte=0,money"`
	PaymentDate time.Time       `json:"payment_date"`
	Status      PaymentStatus   `json:"status" validate:"omitempty,oneof=PENDING PAID"`
}

// UpdatePaymentStatusInput changes the status of one payment.
type UpdatePaymentStatusInput struct {
	PaymentID string        `json:"payment_id" validate:"required"`
	Status    PaymentStatus `json:"status" validate:"required,oneof=PENDING PAID"`
}

// settledStatus promotes an invoice to PAID once payments cover its total. It
// never demotes: a PAID status set on creation or by earlier payments stays.
func settledStatus(current InvoiceStatus, total, paid decimal.Decimal) InvoiceStatus {
	if paid.GreaterThanOrEqual(total) {
		return InvoiceStatusPaid
	}
	return current
}
