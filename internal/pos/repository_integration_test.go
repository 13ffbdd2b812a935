package pos

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/stockline/stockline/internal/shared"
	"github.com/stockline/stockline/internal/testing/pgtest"
)

func countRows(t *testing.T, pool *pgxpool.Pool, table string) int {
	t.Helper()
	var n int
	require.NoError(t, pool.QueryRow(context.Background(), `SELECT COUNT(*) FROM `+table).Scan(&n))
	return n
}

func TestPostgresCheckoutScenario(t *testing.T) {
	pool := pgtest.Pool(t)
	pgtest.SeedCatalog(t, pool)
	pgtest.SeedProduct(t, pool, "P1", "10.00", 5)
	pgtest.SeedProduct(t, pool, "P2", "5.00", 3)
	svc := NewService(NewRepository(pool), shared.NewAuditLogger(pool), nil, nil, discardLogger())

	receipt, err := svc.Checkout(context.Background(), CheckoutInput{Items: []CartItem{
		{ProductID: "P1", Quantity: 2, Price: price("10.00")},
		{ProductID: "P2", Quantity: 1, Price: price("5.00")},
	}})
	require.NoError(t, err)
	require.Equal(t, "25.00", receipt.TotalAmount.StringFixed(2))
	require.Equal(t, 3, pgtest.Stock(t, pool, "P1"))
	require.Equal(t, 2, pgtest.Stock(t, pool, "P2"))

	inv, err := svc.GetInvoice(context.Background(), receipt.InvoiceID)
	require.NoError(t, err)
	require.Len(t, inv.Items, 2)
	require.Equal(t, 1, countRows(t, pool, "audit_logs"))

	_, err = svc.Checkout(context.Background(), CheckoutInput{Items: []CartItem{
		{ProductID: "P2", Quantity: 1, Price: price("5.00")},
		{ProductID: "P1", Quantity: 10, Price: price("10.00")},
	}})
	require.ErrorIs(t, err, shared.ErrInsufficientStock)
	require.Equal(t, 2, pgtest.Stock(t, pool, "P2"))
	require.Equal(t, 1, countRows(t, pool, "sales_invoices"))
	require.Equal(t, 2, countRows(t, pool, "sales_invoice_items"))
}

func TestPostgresConcurrentCheckoutsOfLastUnits(t *testing.T) {
	pool := pgtest.Pool(t)
	pgtest.SeedCatalog(t, pool)
	pgtest.SeedProduct(t, pool, "P1", "1.00", 3)
	svc := NewService(NewRepository(pool), nil, nil, nil, discardLogger())

	errs := make([]error, 2)
	var g errgroup.Group
	for i := range errs {
		g.Go(func() error {
			_, errs[i] = svc.Checkout(context.Background(), CheckoutInput{Items: []CartItem{{ProductID: "P1", Quantity: 3, Price: price("1.00")}}})
			return nil
		})
	}
	require.NoError(t, g.Wait())

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		require.ErrorIs(t, err, shared.ErrInsufficientStock)
	}
	require.Equal(t, 1, succeeded)
	require.Equal(t, 0, pgtest.Stock(t, pool, "P1"))
	require.Equal(t, 1, countRows(t, pool, "sales_invoices"))
}

func TestPostgresIdempotentCheckout(t *testing.T) {
	pool := pgtest.Pool(t)
	pgtest.SeedCatalog(t, pool)
	pgtest.SeedProduct(t, pool, "P1", "1.00", 10)
	svc := NewService(NewRepository(pool), nil, nil, nil, discardLogger())
	input := CheckoutInput{IdempotencyKey: "retry-1", Items: []CartItem{{ProductID: "P1", Quantity: 2, Price: price("1.00")}}}

	receipts := make([]Receipt, 4)
	var g errgroup.Group
	for i := range receipts {
		g.Go(func() error {
			var err error
			receipts[i], err = svc.Checkout(context.Background(), input)
			return err
		})
	}
	require.NoError(t, g.Wait())

	for _, r := range receipts {
		require.Equal(t, receipts[0].InvoiceID, r.InvoiceID)
	}
	require.Equal(t, 8, pgtest.Stock(t, pool, "P1"))
	require.Equal(t, 1, countRows(t, pool, "sales_invoices"))
}
