package pos

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stockline/stockline/internal/inventory"
	"github.com/stockline/stockline/internal/platform/db"
	"github.com/stockline/stockline/internal/shared"
)

// Repository persists sales invoices in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ RepositoryPort = (*Repository)(nil)

type txRepo struct {
	tx    pgx.Tx
	stock *inventory.TxStore
}

var _ TxRepository = (*txRepo)(nil)

// WithTx runs fn in a read-committed transaction. The stock guard is a conditional
// update, so a waiting writer re-checks the row after the first one commits instead
// of failing with a serialization error.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, db.ReadCommitted, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx, stock: inventory.NewTxStore(tx)})
	})
}

// GetInvoice loads the invoice header and its items.
func (r *Repository) GetInvoice(ctx context.Context, id string) (SalesInvoice, error) {
	var inv SalesInvoice
	var key *string
	err := r.pool.QueryRow(ctx, `SELECT id, total_amount, status, idempotency_key, created_at
FROM sales_invoices WHERE id = $1`, id).Scan(&inv.ID, &inv.TotalAmount, &inv.Status, &key, &inv.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return SalesInvoice{}, ErrInvoiceNotFound
	}
	if err != nil {
		return SalesInvoice{}, fmt.Errorf("pos: get invoice: %w", err)
	}
	if key != nil {
		inv.IdempotencyKey = *key
	}

	rows, err := r.pool.Query(ctx, `SELECT id, invoice_id, line_no, product_id, quantity, price
FROM sales_invoice_items WHERE invoice_id = $1 ORDER BY line_no`, id)
	if err != nil {
		return SalesInvoice{}, fmt.Errorf("pos: get invoice items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var item SalesInvoiceItem
		if err := rows.Scan(&item.ID, &item.InvoiceID, &item.LineNo, &item.ProductID, &item.Quantity, &item.Price); err != nil {
			return SalesInvoice{}, err
		}
		inv.Items = append(inv.Items, item)
	}
	return inv, rows.Err()
}

func (t *txRepo) ClaimIdempotencyKey(ctx context.Context, key, invoiceID string) (string, bool, error) {
	return shared.ClaimIdempotencyKey(ctx, t.tx, idempotencyScope, key, invoiceID)
}

func (t *txRepo) InsertInvoice(ctx context.Context, invoice SalesInvoice) error {
	var key *string
	if invoice.IdempotencyKey != "" {
		key = &invoice.IdempotencyKey
	}
	_, err := t.tx.Exec(ctx, `INSERT INTO sales_invoices (id, total_amount, status, idempotency_key, created_at)
VALUES ($1, $2, $3, $4, $5)`, invoice.ID, invoice.TotalAmount, invoice.Status, key, invoice.CreatedAt)
	return err
}

// InsertItems sends every item in one batch round trip.
func (t *txRepo) InsertItems(ctx context.Context, items []SalesInvoiceItem) error {
	if len(items) == 0 {
		return errors.New("pos: invoice without items")
	}
	batch := &pgx.Batch{}
	for _, item := range items {
		batch.Queue(`INSERT INTO sales_invoice_items (id, invoice_id, line_no, product_id, quantity, price)
VALUES ($1, $2, $3, $4, $5, $6)`, item.ID, item.InvoiceID, item.LineNo, item.ProductID, item.Quantity, item.Price)
	}
	br := t.tx.SendBatch(ctx, batch)
	for i := range items {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return fmt.Errorf("item %d: %w", i, err)
		}
	}
	return br.Close()
}

func (t *txRepo) DecrementStock(ctx context.Context, productID string, qty int) (int, error) {
	return t.stock.DecrementStock(ctx, productID, qty)
}
