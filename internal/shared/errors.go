package shared

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks caller-fixable input errors. No side effects happened.
	ErrValidation = errors.New("validation failed")
	// ErrInsufficientStock marks a stock guard rejection.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrTransaction marks a storage failure inside an atomic unit of work.
	ErrTransaction = errors.New("transaction failed")
)

// ValidationError reports which field, and for list payloads which item, failed.
// Item is zero based; -1 means the error is not tied to an item.
type ValidationError struct {
	Field  string
	Item   int
	Reason string
}

// NewValidationError builds an error that is not attached to a list item.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Item: -1, Reason: reason}
}

// NewItemValidationError builds an error for the item at index.
func NewItemValidationError(index int, field, reason string) *ValidationError {
	return &ValidationError{Field: field, Item: index, Reason: reason}
}

func (e *ValidationError) Error() string {
	if e.Item >= 0 {
		return fmt.Sprintf("validation failed: items[%d].%s %s", e.Item, e.Field, e.Reason)
	}
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed: %s %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// InsufficientStockError is returned when a line asks for more units than are available.
type InsufficientStockError struct {
	Item      int
	ProductID string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock: item %d product %s requested %d available %d", e.Item, e.ProductID, e.Requested, e.Available)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// NotFoundError names the missing entity. Item is -1 when not tied to a cart line.
type NotFoundError struct {
	Entity string
	ID     string
	Item   int
}

// NewNotFoundError builds a NotFoundError that is not tied to a cart line.
func NewNotFoundError(entity, id string) *NotFoundError {
	return &NotFoundError{Entity: entity, ID: id, Item: -1}
}

func (e *NotFoundError) Error() string {
	if e.Item >= 0 {
		return fmt.Sprintf("%s %s not found (item %d)", e.Entity, e.ID, e.Item)
	}
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// TransactionError wraps a storage failure. The transaction was rolled back.
// Retryable is set for serialization failures, deadlocks and lost connections.
type TransactionError struct {
	Op        string
	Err       error
	Retryable bool
}

func (e *TransactionError) Error() string {
	if e.Err == nil {
		return "transaction failed: " + e.Op
	}
	return fmt.Sprintf("transaction failed: %s: %v", e.Op, e.Err)
}

func (e *TransactionError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrTransaction}
	}
	return []error{ErrTransaction, e.Err}
}

// IsDomainError reports whether err already belongs to the taxonomy above.
func IsDomainError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInsufficientStock) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrTransaction)
}
