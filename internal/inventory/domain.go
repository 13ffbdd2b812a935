package inventory

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/stockline/stockline/internal/shared"
)

var (
	// ErrProductNotFound indicates the product is missing or soft deleted.
	ErrProductNotFound = errors.New("inventory: product not found")
	// ErrInsufficientStock indicates the conditional decrement was rejected.
	ErrInsufficientStock = errors.New("inventory: insufficient stock")
	// ErrInvalidQuantity indicates a non-positive stock movement.
	ErrInvalidQuantity = errors.New("inventory: quantity must be positive")
)

// StockShortageError carries the stock observed after a rejected decrement.
type StockShortageError struct {
	ProductID string
	Requested int
	Available int
}

func (e *StockShortageError) Error() string {
	return fmt.Sprintf("inventory: product %s has %d units, %d requested", e.ProductID, e.Available, e.Requested)
}

func (e *StockShortageError) Unwrap() error { return ErrInsufficientStock }

// Product is a sellable item with its durable stock count.
type Product struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	Description string              `json:"description,omitempty"`
	Price       decimal.Decimal     `json:"price"`
	Stock       int                 `json:"stock"`
	CategoryID  string              `json:"category_id"`
	SupplierID  string              `json:"supplier_id"`
	Status      shared.RecordStatus `json:"status"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

// ProductView adds the names shown on the inventory page.
type ProductView struct {
	Product
	CategoryName string `json:"category_name"`
	SupplierName string `json:"supplier_name"`
}

// ListFilters narrows the paginated inventory listing.
type ListFilters struct {
	Page       int
	Limit      int
	Search     string
	CategoryID string
	SupplierID string
	SortBy     string
	SortDir    string
}

// RestockLine is one product delivered by a supplier. Lines are matched on
// name, category and supplier; a match gains Stock units, otherwise a product is created.
type RestockLine struct {
	Name        string          `json:"name" validate:"required,max=200"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price" validate:"gte=0,money"`
	Stock       int             `json:"stock" validate:"gte=0,lte=2147483647"`
	CategoryID  string          `json:"category_id" validate:"required"`
	SupplierID  string          `json:"supplier_id" validate:"required"`
}

// RestockedProduct reports the outcome for one accepted line.
type RestockedProduct struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Stock   int    `json:"stock"`
	Created bool   `json:"created"`
}

// SkippedLine reports a line rejected by validation.
type SkippedLine struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

// RestockResult summarises a bulk restock.
type RestockResult struct {
	Created  int                `json:"created"`
	Updated  int                `json:"updated"`
	Products []RestockedProduct `json:"products"`
	Skipped  []SkippedLine      `json:"skipped,omitempty"`
}
