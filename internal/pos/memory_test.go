package pos

import (
	"context"
	"errors"
	"sync"

	"github.com/stockline/stockline/internal/inventory"
	"github.com/stockline/stockline/internal/platform/db"
)

// memoryRepo serialises transactions and applies their writes only on success.
type memoryRepo struct {
	mu       sync.Mutex
	stock    map[string]int
	invoices map[string]SalesInvoice
	keys     map[string]string
	txCalls  int

	// failure injection
	failInsertItems  error
	failAfterDecrems int
}

type memoryTx struct {
	repo       *memoryRepo
	stock      map[string]int
	invoices   map[string]SalesInvoice
	keys       map[string]string
	decrements int
}

func newMemoryRepo(stock map[string]int) *memoryRepo {
	copied := make(map[string]int, len(stock))
	for id, qty := range stock {
		copied[id] = qty
	}
	return &memoryRepo{stock: copied, invoices: make(map[string]SalesInvoice), keys: make(map[string]string)}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.txCalls++
	tx := &memoryTx{
		repo:     r,
		stock:    cloneMap(r.stock),
		invoices: cloneMap(r.invoices),
		keys:     cloneMap(r.keys),
	}
	if err := fn(ctx, tx); err != nil {
		return db.Classify("execute", err)
	}
	r.stock, r.invoices, r.keys = tx.stock, tx.invoices, tx.keys
	return nil
}

func (r *memoryRepo) GetInvoice(ctx context.Context, id string) (SalesInvoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.invoices[id]
	if !ok {
		return SalesInvoice{}, ErrInvoiceNotFound
	}
	return inv, nil
}

func (r *memoryRepo) stockOf(id string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stock[id]
}

func (r *memoryRepo) invoiceCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.invoices)
}

func (tx *memoryTx) ClaimIdempotencyKey(ctx context.Context, key, invoiceID string) (string, bool, error) {
	if bound, ok := tx.keys[key]; ok {
		return bound, false, nil
	}
	tx.keys[key] = invoiceID
	return invoiceID, true, nil
}

func (tx *memoryTx) InsertInvoice(ctx context.Context, invoice SalesInvoice) error {
	if _, exists := tx.invoices[invoice.ID]; exists {
		return errors.New("duplicate invoice id")
	}
	invoice.Items = nil
	tx.invoices[invoice.ID] = invoice
	return nil
}

func (tx *memoryTx) InsertItems(ctx context.Context, items []SalesInvoiceItem) error {
	if tx.repo.failInsertItems != nil {
		return tx.repo.failInsertItems
	}
	for _, item := range items {
		inv, ok := tx.invoices[item.InvoiceID]
		if !ok {
			return errors.New("orphan item")
		}
		inv.Items = append(inv.Items, item)
		tx.invoices[item.InvoiceID] = inv
	}
	return nil
}

func (tx *memoryTx) DecrementStock(ctx context.Context, productID string, qty int) (int, error) {
	if tx.repo.failAfterDecrems > 0 && tx.decrements == tx.repo.failAfterDecrems {
		return 0, errors.New("connection reset by peer")
	}
	current, ok := tx.stock[productID]
	if !ok {
		return 0, inventory.ErrProductNotFound
	}
	if current < qty {
		return 0, &inventory.StockShortageError{ProductID: productID, Requested: qty, Available: current}
	}
	tx.stock[productID] = current - qty
	tx.decrements++
	return current - qty, nil
}

func cloneMap[K comparable, V any](in map[K]V) map[K]V {
	out := make(map[K]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
