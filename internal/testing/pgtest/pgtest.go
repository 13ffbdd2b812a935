// Package pgtest prepares a disposable PostgreSQL schema for integration tests.
// Tests are skipped unless STOCKLINE_TEST_PG_DSN points at a database that may be wiped.
package pgtest

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/stockline/stockline/internal/platform/db"
	_ "github.com/stockline/stockline/internal/testing/guard"
	"github.com/stockline/stockline/migrations"
)

// DSNEnv names the variable holding the integration database DSN.
const DSNEnv = "STOCKLINE_TEST_PG_DSN"

// Pool returns a migrated pool with every table emptied. The pool is closed on cleanup.
func Pool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv(DSNEnv)
	if dsn == "" {
		t.Skipf("%s not set; skipping postgres integration test", DSNEnv)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := db.New(ctx, dsn, db.Options{MaxConns: 8})
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	_, err = db.Migrate(ctx, pool, migrations.FS, nil)
	require.NoError(t, err)

	_, err = pool.Exec(ctx, `TRUNCATE audit_logs, idempotency_keys, payments, supplier_invoices,
sales_invoice_items, sales_invoices, products, categories, suppliers`)
	require.NoError(t, err)
	return pool
}

// SeedCatalog inserts one supplier S1 and one category C1.
func SeedCatalog(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()
	ctx := context.Background()
	_, err := pool.Exec(ctx, `INSERT INTO suppliers (id, name) VALUES ('S1', 'Supplier One')`)
	require.NoError(t, err)
	_, err = pool.Exec(ctx, `INSERT INTO categories (id, name) VALUES ('C1', 'General')`)
	require.NoError(t, err)
}

// SeedProduct inserts an active product priced at price with stock units.
func SeedProduct(t *testing.T, pool *pgxpool.Pool, id string, price string, stock int) {
	t.Helper()
	_, err := pool.Exec(context.Background(), `INSERT INTO products (id, name, price, stock, category_id, supplier_id)
VALUES ($1, $1, $2::numeric, $3, 'C1', 'S1')`, id, price, stock)
	require.NoError(t, err)
}

// Stock reads the current stock of a product.
func Stock(t *testing.T, pool *pgxpool.Pool, id string) int {
	t.Helper()
	var stock int
	require.NoError(t, pool.QueryRow(context.Background(), `SELECT stock FROM products WHERE id = $1`, id).Scan(&stock))
	return stock
}
