package inventory

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stockline/stockline/internal/platform/db"
	"github.com/stockline/stockline/internal/shared"
)

// Repository persists products in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ RepositoryPort = (*Repository)(nil)

const productColumns = `p.id, p.name, COALESCE(p.description, ''), p.price, p.stock, p.category_id, p.supplier_id, p.status, p.created_at, p.updated_at`

// WithTx runs fn in a read-committed transaction. Stock writes rely on conditional
// updates, so a stronger isolation level would only add serialization failures.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, StockTx) error) error {
	return db.WithTx(ctx, r.pool, db.ReadCommitted, func(tx pgx.Tx) error {
		return fn(ctx, NewTxStore(tx))
	})
}

// Get loads an active product.
func (r *Repository) Get(ctx context.Context, id string) (Product, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products p WHERE p.id = $1 AND `+shared.ActiveOnly("p"), id)
	p, err := scanProduct(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrProductNotFound
	}
	return p, err
}

// ListAvailable returns active products that still have units to sell.
func (r *Repository) ListAvailable(ctx context.Context) ([]Product, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+productColumns+` FROM products p
WHERE `+shared.ActiveOnly("p")+` AND p.stock > 0
ORDER BY p.name ASC`)
	if err != nil {
		return nil, fmt.Errorf("inventory: list available: %w", err)
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// List returns a page of active products with their category and supplier names.
func (r *Repository) List(ctx context.Context, filters ListFilters) ([]ProductView, int, error) {
	where := ` WHERE ` + shared.ActiveOnly("p")
	args := []any{}

	if filters.CategoryID != "" {
		args = append(args, filters.CategoryID)
		where += ` AND p.category_id = $` + strconv.Itoa(len(args))
	}
	if filters.SupplierID != "" {
		args = append(args, filters.SupplierID)
		where += ` AND p.supplier_id = $` + strconv.Itoa(len(args))
	}
	if filters.Search != "" {
		args = append(args, "%"+filters.Search+"%")
		n := strconv.Itoa(len(args))
		where += ` AND (p.name ILIKE $` + n + ` OR p.description ILIKE $` + n + `)`
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM products p`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("inventory: count products: %w", err)
	}

	query := `SELECT ` + productColumns + `, COALESCE(c.name, ''), COALESCE(s.name, '')
FROM products p
LEFT JOIN categories c ON c.id = p.category_id
LEFT JOIN suppliers s ON s.id = p.supplier_id` + where +
		` ORDER BY ` + sortOrder(filters.SortBy, filters.SortDir)

	if filters.Limit > 0 {
		page := shared.NewPagination(filters.Page, filters.Limit, total)
		args = append(args, page.PerPage, page.Offset())
		query += ` LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("inventory: list products: %w", err)
	}
	defer rows.Close()

	var products []ProductView
	for rows.Next() {
		var v ProductView
		p := &v.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Stock, &p.CategoryID, &p.SupplierID, &p.Status, &p.CreatedAt, &p.UpdatedAt, &v.CategoryName, &v.SupplierName); err != nil {
			return nil, 0, err
		}
		products = append(products, v)
	}
	return products, total, rows.Err()
}

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Stock, &p.CategoryID, &p.SupplierID, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func sortOrder(sortBy, sortDir string) string {
	dir := "ASC"
	if sortDir == "desc" {
		dir = "DESC"
	}
	switch sortBy {
	case "stock":
		return "p.stock " + dir + ", p.name ASC"
	case "price":
		return "p.price " + dir + ", p.name ASC"
	case "created_at":
		return "p.created_at " + dir
	default:
		return "p.name " + dir
	}
}
