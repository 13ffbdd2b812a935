package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/stockline/stockline/internal/platform/db"
	"github.com/stockline/stockline/internal/shared"
)

// TxStore mutates product stock inside a transaction owned by the caller.
// It never begins or commits on its own.
type TxStore struct {
	tx pgx.Tx
}

// NewTxStore binds the store to an open transaction.
func NewTxStore(tx pgx.Tx) *TxStore {
	return &TxStore{tx: tx}
}

var _ StockTx = (*TxStore)(nil)

// DecrementStock removes qty units in one conditional statement. The row is only
// written when it is active and holds at least qty units at write time, so two
// concurrent decrements can never drive stock below zero. It returns the remaining stock.
func (s *TxStore) DecrementStock(ctx context.Context, productID string, qty int) (int, error) {
	if qty <= 0 {
		return 0, ErrInvalidQuantity
	}
	var remaining int
	err := s.tx.QueryRow(ctx, `UPDATE products
SET stock = stock - $2, updated_at = NOW()
WHERE id = $1 AND `+shared.ActiveOnly("")+` AND stock >= $2
RETURNING stock`, productID, qty).Scan(&remaining)
	switch {
	case err == nil:
		return remaining, nil
	case errors.Is(err, pgx.ErrNoRows):
		return 0, s.explainRejection(ctx, productID, qty)
	case db.HasCode(err, db.CodeCheckViolation):
		return 0, &StockShortageError{ProductID: productID, Requested: qty}
	default:
		return 0, fmt.Errorf("inventory: decrement stock: %w", err)
	}
}

// explainRejection tells a missing product apart from a short one after the
// conditional update matched nothing.
func (s *TxStore) explainRejection(ctx context.Context, productID string, qty int) error {
	var available int
	err := s.tx.QueryRow(ctx, `SELECT stock FROM products WHERE id = $1 AND `+shared.ActiveOnly(""), productID).Scan(&available)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrProductNotFound
	}
	if err != nil {
		return fmt.Errorf("inventory: probe stock: %w", err)
	}
	return &StockShortageError{ProductID: productID, Requested: qty, Available: available}
}

// IncrementStock adds qty units to an active product and returns the new stock.
func (s *TxStore) IncrementStock(ctx context.Context, productID string, qty int) (int, error) {
	if qty <= 0 {
		return 0, ErrInvalidQuantity
	}
	var stock int
	err := s.tx.QueryRow(ctx, `UPDATE products
SET stock = stock + $2, updated_at = NOW()
WHERE id = $1 AND `+shared.ActiveOnly("")+`
RETURNING stock`, productID, qty).Scan(&stock)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrProductNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("inventory: increment stock: %w", err)
	}
	return stock, nil
}

// UpsertProduct adds the line's units to the active product with the same name,
// category and supplier, or inserts it under id. The match and the increment happen
// in a single statement backed by the partial unique index on active products.
func (s *TxStore) UpsertProduct(ctx context.Context, id string, line RestockLine) (RestockedProduct, error) {
	out := RestockedProduct{Name: line.Name}
	err := s.tx.QueryRow(ctx, `INSERT INTO products (id, name, description, price, stock, category_id, supplier_id, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, 'ACTIVE', NOW(), NOW())
ON CONFLICT (name, category_id, supplier_id) WHERE status = 'ACTIVE'
DO UPDATE SET
    stock = products.stock + EXCLUDED.stock,
    price = EXCLUDED.price,
    description = COALESCE(NULLIF(EXCLUDED.description, ''), products.description),
    updated_at = NOW()
RETURNING id, stock, (xmax = 0)`,
		id, line.Name, line.Description, line.Price, line.Stock, line.CategoryID, line.SupplierID,
	).Scan(&out.ID, &out.Stock, &out.Created)
	if err != nil {
		if db.HasCode(err, db.CodeForeignKeyViolation) {
			constraint := db.ConstraintName(err)
			switch {
			case strings.Contains(constraint, "category"):
				return out, shared.NewNotFoundError("category", line.CategoryID)
			case strings.Contains(constraint, "supplier"):
				return out, shared.NewNotFoundError("supplier", line.SupplierID)
			}
		}
		return out, fmt.Errorf("inventory: upsert product: %w", err)
	}
	return out, nil
}
