package reports

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	// DefaultLowStockThreshold applies when none is configured.
	DefaultLowStockThreshold = 10
	defaultLimit             = 10
	maxLimit                 = 100
	defaultSummaryDays       = 7
	maxSummaryDays           = 366
	dashboardListSize        = 5
)

// Amount is a money value rendered as a JSON number with two decimals.
type Amount struct {
	decimal.Decimal
}

// MarshalJSON implements json.Marshaler.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.StringFixed(2)), nil
}

// LowStockItem is an active product whose stock fell below the threshold.
type LowStockItem struct {
	ProductID    string `json:"product_id"`
	Name         string `json:"name"`
	Stock        int    `json:"stock"`
	CategoryName string `json:"category_name"`
	SupplierName string `json:"supplier_name"`
}

// TopSellingItem aggregates sold quantity per product.
type TopSellingItem struct {
	ProductID    string `json:"product_id"`
	Name         string `json:"name"`
	QuantitySold int    `json:"quantity_sold"`
	Revenue      Amount `json:"revenue"`
}

// StockLevel is one row of the products-by-stock listing.
type StockLevel struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Stock     int    `json:"stock"`
	Price     Amount `json:"price"`
}

// CategorySummary rolls products up per category.
type CategorySummary struct {
	CategoryID   string `json:"category_id"`
	Name         string `json:"name"`
	ProductCount int    `json:"product_count"`
	TotalStock   int    `json:"total_stock"`
}

// DailySales is one point of the sales trend.
type DailySales struct {
	Day      time.Time `json:"day"`
	Invoices int       `json:"invoices"`
	Revenue  Amount    `json:"revenue"`
}

// SalesSummary describes sales over the trailing window of Days days.
type SalesSummary struct {
	Days         int              `json:"days"`
	Since        time.Time        `json:"since"`
	InvoiceCount int              `json:"invoice_count"`
	Revenue      Amount           `json:"revenue"`
	TopProducts  []TopSellingItem `json:"top_products"`
	Daily        []DailySales     `json:"daily"`
}

// Counts are the headline numbers of the dashboard.
type Counts struct {
	Products         int `json:"products"`
	Suppliers        int `json:"suppliers"`
	Categories       int `json:"categories"`
	SupplierInvoices int `json:"supplier_invoices"`
	SalesInvoices    int `json:"sales_invoices"`
	StockUnits       int `json:"stock_units"`
}

// StatusCount breaks supplier invoices down by status.
type StatusCount struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
	Amount Amount `json:"amount"`
}

// RecentInvoice is a supplier invoice shown on the dashboard.
type RecentInvoice struct {
	ID           string    `json:"id"`
	SupplierName string    `json:"supplier_name"`
	TotalAmount  Amount    `json:"total_amount"`
	Status       string    `json:"status"`
	InvoiceDate  time.Time `json:"invoice_date"`
}

// RecentPayment is a payment shown on the dashboard.
type RecentPayment struct {
	ID          string    `json:"id"`
	InvoiceID   string    `json:"invoice_id"`
	Amount      Amount    `json:"amount"`
	Status      string    `json:"status"`
	PaymentDate time.Time `json:"payment_date"`
}

// Dashboard aggregates every dashboard widget.
type Dashboard struct {
	Counts         Counts            `json:"counts"`
	LowStock       []LowStockItem    `json:"low_stock"`
	InvoiceStatus  []StatusCount     `json:"invoice_status"`
	RecentInvoices []RecentInvoice   `json:"recent_invoices"`
	RecentPayments []RecentPayment   `json:"recent_payments"`
	TopCategories  []CategorySummary `json:"top_categories"`
	GeneratedAt    time.Time         `json:"generated_at"`
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultLimit
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}
