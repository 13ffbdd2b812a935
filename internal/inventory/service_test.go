package inventory

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/stockline/stockline/internal/shared"
)

type memoryRepo struct {
	mu        sync.Mutex
	products  map[string]Product
	suppliers map[string]bool
	failOn    string
}

type memoryTx struct {
	products  map[string]Product
	suppliers map[string]bool
	failOn    string
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{products: make(map[string]Product), suppliers: map[string]bool{"S1": true, "S2": true}}
}

func (r *memoryRepo) seed(p Product) {
	p.Status = shared.RecordActive
	r.products[p.ID] = p
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, StockTx) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	staged := make(map[string]Product, len(r.products))
	for id, p := range r.products {
		staged[id] = p
	}
	tx := &memoryTx{products: staged, suppliers: r.suppliers, failOn: r.failOn}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	r.products = staged
	return nil
}

func (r *memoryRepo) Get(ctx context.Context, id string) (Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok || p.Status != shared.RecordActive {
		return Product{}, ErrProductNotFound
	}
	return p, nil
}

func (r *memoryRepo) ListAvailable(ctx context.Context) ([]Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Product
	for _, p := range r.products {
		if p.Status == shared.RecordActive && p.Stock > 0 {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *memoryRepo) List(ctx context.Context, filters ListFilters) ([]ProductView, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []ProductView
	for _, p := range r.products {
		out = append(out, ProductView{Product: p})
	}
	return out, len(out), nil
}

func (tx *memoryTx) DecrementStock(ctx context.Context, productID string, qty int) (int, error) {
	p, ok := tx.products[productID]
	if !ok || p.Status != shared.RecordActive {
		return 0, ErrProductNotFound
	}
	if p.Stock < qty {
		return 0, &StockShortageError{ProductID: productID, Requested: qty, Available: p.Stock}
	}
	p.Stock -= qty
	tx.products[productID] = p
	return p.Stock, nil
}

func (tx *memoryTx) IncrementStock(ctx context.Context, productID string, qty int) (int, error) {
	p, ok := tx.products[productID]
	if !ok {
		return 0, ErrProductNotFound
	}
	p.Stock += qty
	tx.products[productID] = p
	return p.Stock, nil
}

func (tx *memoryTx) UpsertProduct(ctx context.Context, id string, line RestockLine) (RestockedProduct, error) {
	if line.Name == tx.failOn {
		return RestockedProduct{}, errors.New("connection reset")
	}
	if !tx.suppliers[line.SupplierID] {
		return RestockedProduct{}, shared.NewNotFoundError("supplier", line.SupplierID)
	}
	for pid, p := range tx.products {
		if p.Status == shared.RecordActive && p.Name == line.Name && p.CategoryID == line.CategoryID && p.SupplierID == line.SupplierID {
			p.Stock += line.Stock
			p.Price = line.Price
			tx.products[pid] = p
			return RestockedProduct{ID: pid, Name: p.Name, Stock: p.Stock}, nil
		}
	}
	tx.products[id] = Product{ID: id, Name: line.Name, Price: line.Price, Stock: line.Stock, CategoryID: line.CategoryID, SupplierID: line.SupplierID, Status: shared.RecordActive}
	return RestockedProduct{ID: id, Name: line.Name, Stock: line.Stock, Created: true}, nil
}

type recordingAudit struct {
	logs []shared.AuditLog
}

func (a *recordingAudit) Record(ctx context.Context, log shared.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

type recordingIntegration struct {
	events []StockChangedEvent
	err    error
}

func (r *recordingIntegration) HandleStockChanged(ctx context.Context, evt StockChangedEvent) error {
	r.events = append(r.events, evt)
	return r.err
}

func TestRestockCreatesAndIncrements(t *testing.T) {
	repo := newMemoryRepo()
	repo.seed(Product{ID: "P1", Name: "Kopi", Price: decimal.NewFromInt(10), Stock: 4, CategoryID: "C1", SupplierID: "S1"})
	audit := &recordingAudit{}
	events := &recordingIntegration{}
	svc := NewService(repo, audit, events, nil)

	result, err := svc.Restock(context.Background(), []RestockLine{
		{Name: "Kopi", Price: decimal.NewFromInt(12), Stock: 6, CategoryID: "C1", SupplierID: "S1"},
		{Name: "Teh", Price: decimal.RequireFromString("7.50"), Stock: 3, CategoryID: "C1", SupplierID: "S1"},
	})
	require.NoError(t, err)
	require.Equal(t, 1, result.Created)
	require.Equal(t, 1, result.Updated)
	require.Empty(t, result.Skipped)

	kopi, err := svc.Get(context.Background(), "P1")
	require.NoError(t, err)
	require.Equal(t, 10, kopi.Stock)
	require.True(t, decimal.NewFromInt(12).Equal(kopi.Price))

	require.Len(t, audit.logs, 2)
	require.Len(t, events.events, 1)
	require.Equal(t, "restock", events.events[0].Source)
	require.Len(t, events.events[0].Movements, 2)
}

func TestRestockSkipsInvalidLines(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil, nil)

	result, err := svc.Restock(context.Background(), []RestockLine{
		{Name: "", Price: decimal.NewFromInt(1), Stock: 1, CategoryID: "C1", SupplierID: "S1"},
		{Name: "Gula", Price: decimal.NewFromInt(-1), Stock: 1, CategoryID: "C1", SupplierID: "S1"},
		{Name: "Susu", Price: decimal.NewFromInt(9), Stock: 2, CategoryID: "C1", SupplierID: "S1"},
	})
	require.NoError(t, err)
	require.Equal(t, 1, result.Created)
	require.Len(t, result.Skipped, 2)
	require.Equal(t, 0, result.Skipped[0].Index)
	require.Equal(t, 1, result.Skipped[1].Index)
}

func TestRestockSkipsLinesThatDoNotFitColumns(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil, nil)

	result, err := svc.Restock(context.Background(), []RestockLine{
		{Name: "Kopi", Price: decimal.RequireFromString("1.234"), Stock: 1, CategoryID: "C1", SupplierID: "S1"},
		{Name: "Teh", Price: decimal.RequireFromString("1000000000000"), Stock: 1, CategoryID: "C1", SupplierID: "S1"},
		{Name: "Beras", Price: decimal.NewFromInt(1), Stock: math.MaxInt32 + 1, CategoryID: "C1", SupplierID: "S1"},
		{Name: "Susu", Price: decimal.RequireFromString("9.50"), Stock: 2, CategoryID: "C1", SupplierID: "S1"},
	})
	require.NoError(t, err)
	require.Equal(t, 1, result.Created)
	require.Len(t, result.Skipped, 3)
	require.Contains(t, result.Skipped[0].Reason, "price must be an amount")
	require.Contains(t, result.Skipped[1].Reason, "price must be an amount")
	require.Contains(t, result.Skipped[2].Reason, "stock must be less than or equal to 2147483647")
}

func TestRestockRejectsWhenNothingValid(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil, nil)

	_, err := svc.Restock(context.Background(), []RestockLine{{Name: "x", Stock: -3, CategoryID: "C1", SupplierID: "S1"}})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Restock(context.Background(), nil)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestRestockRollsBackEveryLineOnFailure(t *testing.T) {
	repo := newMemoryRepo()
	repo.seed(Product{ID: "P1", Name: "Kopi", Price: decimal.NewFromInt(10), Stock: 4, CategoryID: "C1", SupplierID: "S1"})
	repo.failOn = "Teh"
	events := &recordingIntegration{}
	svc := NewService(repo, nil, events, nil)

	_, err := svc.Restock(context.Background(), []RestockLine{
		{Name: "Kopi", Price: decimal.NewFromInt(10), Stock: 6, CategoryID: "C1", SupplierID: "S1"},
		{Name: "Teh", Price: decimal.NewFromInt(5), Stock: 1, CategoryID: "C1", SupplierID: "S1"},
	})
	require.Error(t, err)

	kopi, err := svc.Get(context.Background(), "P1")
	require.NoError(t, err)
	require.Equal(t, 4, kopi.Stock)
	require.Len(t, repo.products, 1)
	require.Empty(t, events.events)
}

func TestRestockUnknownSupplier(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil, nil)
	_, err := svc.Restock(context.Background(), []RestockLine{{Name: "Roti", Price: decimal.NewFromInt(3), Stock: 1, CategoryID: "C1", SupplierID: "S9"}})
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestIntegrationFailureDoesNotFailRestock(t *testing.T) {
	events := &recordingIntegration{err: fmt.Errorf("redis down")}
	svc := NewService(newMemoryRepo(), nil, events, nil)
	_, err := svc.Restock(context.Background(), []RestockLine{{Name: "Roti", Price: decimal.NewFromInt(3), Stock: 1, CategoryID: "C1", SupplierID: "S1"}})
	require.NoError(t, err)
	require.Len(t, events.events, 1)
}

func TestGetMapsMissingProduct(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil, nil)
	_, err := svc.Get(context.Background(), "nope")
	var nf *shared.NotFoundError
	require.ErrorAs(t, err, &nf)
	require.Equal(t, "product", nf.Entity)
}

func TestListNormalisesPaging(t *testing.T) {
	repo := newMemoryRepo()
	for i := 0; i < 3; i++ {
		repo.seed(Product{ID: fmt.Sprintf("P%d", i), Name: fmt.Sprintf("item %d", i), Stock: i})
	}
	svc := NewService(repo, nil, nil, nil)

	products, page, err := svc.List(context.Background(), ListFilters{Page: -1, Limit: 1000})
	require.NoError(t, err)
	require.Len(t, products, 3)
	require.Equal(t, 1, page.Page)
	require.Equal(t, 10, page.PerPage)
	require.Equal(t, 1, page.TotalPages)
}

func TestIntegrationsJoinErrors(t *testing.T) {
	first := &recordingIntegration{err: errors.New("a")}
	second := &recordingIntegration{}
	err := Integrations{first, nil, second}.HandleStockChanged(context.Background(), StockChangedEvent{Source: "checkout"})
	require.Error(t, err)
	require.Len(t, first.events, 1)
	require.Len(t, second.events, 1)
}
