package pos

import (
	"time"

	"github.com/shopspring/decimal"
)

// InvoiceStatusPending is the status of every invoice produced by checkout. Payment
// capture happens elsewhere.
const InvoiceStatusPending = "PENDING"

const idempotencyScope = "pos.checkout"

// CartItem is one line of a cart as submitted by the till.
type CartItem struct {
	ProductID string          `json:"product_id" validate:"required,max=64"`
	Quantity  int             `json:"quantity" validate:"gt=0,lte=2147483647"`
	Price     decimal.Decimal `json:"price" validate:"gte=0,money"`
}

// CheckoutInput is the cart plus the optional client supplied idempotency key.
type CheckoutInput struct {
	Items          []CartItem `json:"items" validate:"required,min=1,dive"`
	IdempotencyKey string     `json:"idempotency_key" validate:"max=255"`
}

// SalesInvoice records a completed sale. It is never mutated after creation.
type SalesInvoice struct {
	ID             string
	TotalAmount    decimal.Decimal
	Status         string
	IdempotencyKey string
	CreatedAt      time.Time
	Items          []SalesInvoiceItem
}

// SalesInvoiceItem snapshots the unit price at the time of sale.
type SalesInvoiceItem struct {
	ID        string
	InvoiceID string
	LineNo    int
	ProductID string
	Quantity  int
	Price     decimal.Decimal
}

// Subtotal is quantity times unit price.
func (i SalesInvoiceItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Receipt is what the till receives after checkout.
type Receipt struct {
	InvoiceID   string
	TotalAmount decimal.Decimal
	InvoiceDate time.Time
	Status      string
	// Replayed is set when the idempotency key matched an earlier checkout.
	Replayed bool
}

// ReceiptFor summarises an invoice.
func ReceiptFor(inv SalesInvoice) Receipt {
	return Receipt{
		InvoiceID:   inv.ID,
		TotalAmount: inv.TotalAmount,
		InvoiceDate: inv.CreatedAt,
		Status:      inv.Status,
	}
}

// CartTotal sums quantity times price over every line using exact decimal arithmetic.
func CartTotal(items []CartItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total
}
