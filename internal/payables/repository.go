package payables

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/stockline/stockline/internal/platform/db"
	"github.com/stockline/stockline/internal/shared"
)

// Repository persists supplier invoices and payments in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ RepositoryPort = (*Repository)(nil)

type txRepo struct {
	tx pgx.Tx
}

var _ TxRepository = (*txRepo)(nil)

const invoiceColumns = `i.id, i.supplier_id, i.file_name, i.file_url, i.total_amount, i.invoice_date, i.status, i.created_at`

const paymentColumns = `p.id, p.invoice_id, p.amount, p.payment_date, p.status, p.created_at`

// WithTx executes the callback inside a read-committed transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, db.ReadCommitted, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

// GetInvoice loads an active invoice with its payments.
func (r *Repository) GetInvoice(ctx context.Context, id string) (SupplierInvoice, error) {
	inv, err := scanInvoice(r.pool.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM supplier_invoices i
WHERE i.id = $1 AND i.lifecycle = $2`, id, shared.RecordActive))
	if errors.Is(err, pgx.ErrNoRows) {
		return SupplierInvoice{}, ErrInvoiceNotFound
	}
	if err != nil {
		return SupplierInvoice{}, fmt.Errorf("payables: get invoice: %w", err)
	}
	payments, err := r.queryPayments(ctx, `WHERE p.invoice_id = $1`, id)
	if err != nil {
		return SupplierInvoice{}, err
	}
	inv.Payments = payments
	return inv, nil
}

// ListInvoices returns active invoices with payments, newest first.
func (r *Repository) ListInvoices(ctx context.Context) ([]SupplierInvoice, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+invoiceColumns+` FROM supplier_invoices i
JOIN suppliers s ON s.id = i.supplier_id AND `+shared.ActiveOnly("s")+`
WHERE i.lifecycle = $1
ORDER BY i.created_at DESC`, shared.RecordActive)
	if err != nil {
		return nil, fmt.Errorf("payables: list invoices: %w", err)
	}
	invoices, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (SupplierInvoice, error) {
		return scanInvoice(row)
	})
	if err != nil {
		return nil, fmt.Errorf("payables: scan invoices: %w", err)
	}
	if len(invoices) == 0 {
		return invoices, nil
	}

	ids := make([]string, len(invoices))
	index := make(map[string]int, len(invoices))
	for i, inv := range invoices {
		ids[i] = inv.ID
		index[inv.ID] = i
	}
	payments, err := r.queryPayments(ctx, `WHERE p.invoice_id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	for _, p := range payments {
		i := index[p.InvoiceID]
		invoices[i].Payments = append(invoices[i].Payments, p)
	}
	return invoices, nil
}

// ListPayments returns every payment of active invoices, newest first.
func (r *Repository) ListPayments(ctx context.Context) ([]Payment, error) {
	return r.queryPayments(ctx, `JOIN supplier_invoices i ON i.id = p.invoice_id AND i.lifecycle = 'ACTIVE'`)
}

func (r *Repository) queryPayments(ctx context.Context, clause string, args ...any) ([]Payment, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+paymentColumns+` FROM payments p `+clause+` ORDER BY p.created_at DESC`, args...)
	if err != nil {
		return nil, fmt.Errorf("payables: query payments: %w", err)
	}
	payments, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Payment, error) {
		return scanPayment(row)
	})
	if err != nil {
		return nil, fmt.Errorf("payables: scan payments: %w", err)
	}
	return payments, nil
}

func (t *txRepo) SupplierExists(ctx context.Context, supplierID string) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM suppliers WHERE id = $1 AND `+shared.ActiveOnly("")+`)`, supplierID).Scan(&exists)
	return exists, err
}

func (t *txRepo) InsertInvoice(ctx context.Context, inv SupplierInvoice) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO supplier_invoices (id, supplier_id, file_name, file_url, total_amount, invoice_date, status, lifecycle, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, 'ACTIVE', $8)`,
		inv.ID, inv.SupplierID, inv.FileName, inv.FileURL, inv.TotalAmount, inv.InvoiceDate, inv.Status, inv.CreatedAt)
	return err
}

func (t *txRepo) InsertPayment(ctx context.Context, p Payment) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO payments (id, invoice_id, amount, payment_date, status, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`, p.ID, p.InvoiceID, p.Amount, p.PaymentDate, p.Status, p.CreatedAt)
	return err
}

func (t *txRepo) GetInvoiceForUpdate(ctx context.Context, id string) (SupplierInvoice, error) {
	inv, err := scanInvoice(t.tx.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM supplier_invoices i
WHERE i.id = $1 AND i.lifecycle = $2
FOR UPDATE`, id, shared.RecordActive))
	if errors.Is(err, pgx.ErrNoRows) {
		return SupplierInvoice{}, ErrInvoiceNotFound
	}
	return inv, err
}

func (t *txRepo) UpdateInvoiceStatus(ctx context.Context, id string, status InvoiceStatus) error {
	tag, err := t.tx.Exec(ctx, `UPDATE supplier_invoices SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInvoiceNotFound
	}
	return nil
}

func (t *txRepo) UpdatePaymentStatus(ctx context.Context, id string, status PaymentStatus) (Payment, error) {
	p, err := scanPayment(t.tx.QueryRow(ctx, `UPDATE payments p SET status = $2 WHERE p.id = $1
RETURNING `+paymentColumns, id, status))
	if errors.Is(err, pgx.ErrNoRows) {
		return Payment{}, ErrPaymentNotFound
	}
	return p, err
}

func (t *txRepo) SumPaid(ctx context.Context, invoiceID string) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := t.tx.QueryRow(ctx, `SELECT COALESCE(SUM(amount), 0) FROM payments WHERE invoice_id = $1 AND status = $2`,
		invoiceID, PaymentStatusPaid).Scan(&sum)
	return sum, err
}

func scanInvoice(row pgx.Row) (SupplierInvoice, error) {
	var inv SupplierInvoice
	err := row.Scan(&inv.ID, &inv.SupplierID, &inv.FileName, &inv.FileURL, &inv.TotalAmount, &inv.InvoiceDate, &inv.Status, &inv.CreatedAt)
	return inv, err
}

func scanPayment(row pgx.Row) (Payment, error) {
	var p Payment
	err := row.Scan(&p.ID, &p.InvoiceID, &p.Amount, &p.PaymentDate, &p.Status, &p.CreatedAt)
	return p, err
}
