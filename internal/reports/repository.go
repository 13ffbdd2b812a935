package reports

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stockline/stockline/internal/shared"
)

// Repository runs the read-only reporting queries.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ RepositoryPort = (*Repository)(nil)

func collect[T any](ctx context.Context, pool *pgxpool.Pool, op, query string, args ...any) ([]T, error) {
	rows, err := pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("reports: %s: %w", op, err)
	}
	out, err := pgx.CollectRows(rows, pgx.RowToStructByPos[T])
	if err != nil {
		return nil, fmt.Errorf("reports: %s: %w", op, err)
	}
	return out, nil
}

// LowStock lists active products with fewer than threshold units, emptiest first.
func (r *Repository) LowStock(ctx context.Context, threshold, limit int) ([]LowStockItem, error) {
	return collect[LowStockItem](ctx, r.pool, "low stock", `SELECT p.id, p.name, p.stock, c.name, s.name
FROM products p
JOIN categories c ON c.id = p.category_id
JOIN suppliers s ON s.id = p.supplier_id
WHERE `+shared.ActiveOnly("p")+` AND p.stock < $1
ORDER BY p.stock ASC, p.name ASC
LIMIT $2`, threshold, limit)
}

// TopSelling ranks products by sold quantity. A nil since covers all time.
func (r *Repository) TopSelling(ctx context.Context, since *time.Time, limit int) ([]TopSellingItem, error) {
	return collect[TopSellingItem](ctx, r.pool, "top selling", `SELECT p.id, p.name, SUM(i.quantity)::bigint, COALESCE(SUM(i.quantity * i.price), 0)
FROM sales_invoice_items i
JOIN sales_invoices si ON si.id = i.invoice_id
JOIN products p ON p.id = i.product_id
WHERE ($1::timestamptz IS NULL OR si.created_at >= $1)
GROUP BY p.id, p.name
ORDER BY 3 DESC, p.name ASC
LIMIT $2`, since, limit)
}

// ProductsByStock lists active products, best stocked first.
func (r *Repository) ProductsByStock(ctx context.Context, limit int) ([]StockLevel, error) {
	return collect[StockLevel](ctx, r.pool, "products by stock", `SELECT p.id, p.name, p.stock, p.price
FROM products p
WHERE `+shared.ActiveOnly("p")+`
ORDER BY p.stock DESC, p.name ASC
LIMIT $1`, limit)
}

// CategoryRollup counts active products and units per active category.
func (r *Repository) CategoryRollup(ctx context.Context) ([]CategorySummary, error) {
	return collect[CategorySummary](ctx, r.pool, "category rollup", `SELECT c.id, c.name, COUNT(p.id)::bigint, COALESCE(SUM(p.stock), 0)::bigint
FROM categories c
LEFT JOIN products p ON p.category_id = c.id AND `+shared.ActiveOnly("p")+`
WHERE `+shared.ActiveOnly("c")+`
GROUP BY c.id, c.name
ORDER BY 4 DESC, c.name ASC`)
}

// SalesTotals returns the number of sales invoices and their revenue since the given time.
func (r *Repository) SalesTotals(ctx context.Context, since time.Time) (int, Amount, error) {
	var (
		count   int
		revenue Amount
	)
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*), COALESCE(SUM(total_amount), 0)
FROM sales_invoices WHERE created_at >= $1`, since).Scan(&count, &revenue)
	if err != nil {
		return 0, Amount{}, fmt.Errorf("reports: sales totals: %w", err)
	}
	return count, revenue, nil
}

// DailySales groups sales invoices per calendar day since the given time.
func (r *Repository) DailySales(ctx context.Context, since time.Time) ([]DailySales, error) {
	return collect[DailySales](ctx, r.pool, "daily sales", `SELECT date_trunc('day', created_at)::date, COUNT(*)::bigint, COALESCE(SUM(total_amount), 0)
FROM sales_invoices
WHERE created_at >= $1
GROUP BY 1
ORDER BY 1 ASC`, since)
}

// Counts loads the dashboard headline numbers in one round trip.
func (r *Repository) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	err := r.pool.QueryRow(ctx, `SELECT
    (SELECT COUNT(*) FROM products WHERE `+shared.ActiveOnly("")+`),
    (SELECT COUNT(*) FROM suppliers WHERE `+shared.ActiveOnly("")+`),
    (SELECT COUNT(*) FROM categories WHERE `+shared.ActiveOnly("")+`),
    (SELECT COUNT(*) FROM supplier_invoices WHERE lifecycle = 'ACTIVE'),
    (SELECT COUNT(*) FROM sales_invoices),
    (SELECT COALESCE(SUM(stock), 0) FROM products WHERE `+shared.ActiveOnly("")+`)`).
		Scan(&c.Products, &c.Suppliers, &c.Categories, &c.SupplierInvoices, &c.SalesInvoices, &c.StockUnits)
	if err != nil {
		return Counts{}, fmt.Errorf("reports: counts: %w", err)
	}
	return c, nil
}

// InvoiceStatus breaks active supplier invoices down by status.
func (r *Repository) InvoiceStatus(ctx context.Context) ([]StatusCount, error) {
	return collect[StatusCount](ctx, r.pool, "invoice status", `SELECT status, COUNT(*)::bigint, COALESCE(SUM(total_amount), 0)
FROM supplier_invoices
WHERE lifecycle = 'ACTIVE'
GROUP BY status
ORDER BY status ASC`)
}

// RecentInvoices returns the newest active supplier invoices.
func (r *Repository) RecentInvoices(ctx context.Context, limit int) ([]RecentInvoice, error) {
	return collect[RecentInvoice](ctx, r.pool, "recent invoices", `SELECT si.id, s.name, si.total_amount, si.status, si.invoice_date
FROM supplier_invoices si
JOIN suppliers s ON s.id = si.supplier_id
WHERE si.lifecycle = 'ACTIVE'
ORDER BY si.created_at DESC
LIMIT $1`, limit)
}

// RecentPayments returns the newest payments of active invoices.
func (r *Repository) RecentPayments(ctx context.Context, limit int) ([]RecentPayment, error) {
	return collect[RecentPayment](ctx, r.pool, "recent payments", `SELECT p.id, p.invoice_id, p.amount, p.status, p.payment_date
FROM payments p
JOIN supplier_invoices si ON si.id = p.invoice_id
WHERE si.lifecycle = 'ACTIVE'
ORDER BY p.created_at DESC
LIMIT $1`, limit)
}
