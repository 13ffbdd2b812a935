package payables

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/stockline/stockline/internal/platform/db"
	"github.com/stockline/stockline/internal/shared"
)

type memoryRepo struct {
	mu        sync.Mutex
	suppliers map[string]bool
	invoices  map[string]SupplierInvoice
	payments  map[string]Payment

	failInsertPayment error
}

type memoryTx struct {
	repo     *memoryRepo
	invoices map[string]SupplierInvoice
	payments map[string]Payment
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		suppliers: map[string]bool{"S1": true},
		invoices:  make(map[string]SupplierInvoice),
		payments:  make(map[string]Payment),
	}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	tx := &memoryTx{repo: r, invoices: make(map[string]SupplierInvoice), payments: make(map[string]Payment)}
	for k, v := range r.invoices {
		tx.invoices[k] = v
	}
	for k, v := range r.payments {
		tx.payments[k] = v
	}
	if err := fn(ctx, tx); err != nil {
		return db.Classify("execute", err)
	}
	r.invoices, r.payments = tx.invoices, tx.payments
	return nil
}

func (r *memoryRepo) paymentsOf(invoiceID string, all map[string]Payment) []Payment {
	var out []Payment
	for _, p := range all {
		if p.InvoiceID == invoiceID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *memoryRepo) GetInvoice(ctx context.Context, id string) (SupplierInvoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.invoices[id]
	if !ok {
		return SupplierInvoice{}, ErrInvoiceNotFound
	}
	inv.Payments = r.paymentsOf(id, r.payments)
	return inv, nil
}

func (r *memoryRepo) ListInvoices(ctx context.Context) ([]SupplierInvoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []SupplierInvoice
	for id, inv := range r.invoices {
		inv.Payments = r.paymentsOf(id, r.payments)
		out = append(out, inv)
	}
	return out, nil
}

func (r *memoryRepo) ListPayments(ctx context.Context) ([]Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Payment
	for _, p := range r.payments {
		out = append(out, p)
	}
	return out, nil
}

func (tx *memoryTx) SupplierExists(ctx context.Context, supplierID string) (bool, error) {
	return tx.repo.suppliers[supplierID], nil
}

func (tx *memoryTx) InsertInvoice(ctx context.Context, invoice SupplierInvoice) error {
	tx.invoices[invoice.ID] = invoice
	return nil
}

func (tx *memoryTx) InsertPayment(ctx context.Context, payment Payment) error {
	if tx.repo.failInsertPayment != nil {
		return tx.repo.failInsertPayment
	}
	if _, ok := tx.invoices[payment.InvoiceID]; !ok {
		return errors.New("foreign key violation")
	}
	tx.payments[payment.ID] = payment
	return nil
}

func (tx *memoryTx) GetInvoiceForUpdate(ctx context.Context, id string) (SupplierInvoice, error) {
	inv, ok := tx.invoices[id]
	if !ok {
		return SupplierInvoice{}, ErrInvoiceNotFound
	}
	return inv, nil
}

func (tx *memoryTx) UpdateInvoiceStatus(ctx context.Context, id string, status InvoiceStatus) error {
	inv, ok := tx.invoices[id]
	if !ok {
		return ErrInvoiceNotFound
	}
	inv.Status = status
	tx.invoices[id] = inv
	return nil
}

func (tx *memoryTx) UpdatePaymentStatus(ctx context.Context, id string, status PaymentStatus) (Payment, error) {
	p, ok := tx.payments[id]
	if !ok {
		return Payment{}, ErrPaymentNotFound
	}
	p.Status = status
	tx.payments[id] = p
	return p, nil
}

func (tx *memoryTx) SumPaid(ctx context.Context, invoiceID string) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, p := range tx.payments {
		if p.InvoiceID == invoiceID && p.Status == PaymentStatusPaid {
			sum = sum.Add(p.Amount)
		}
	}
	return sum, nil
}

type countingCache struct {
	bumps int
}

func (c *countingCache) Bump(ctx context.Context) error {
	c.bumps++
	return nil
}

func newTestService(repo *memoryRepo, cache CachePort) *Service {
	svc := NewService(repo, nil, cache, slog.New(slog.NewTextHandler(io.Discard, nil)))
	seq := 0
	svc.newID = func() string {
		seq++
		return "id-" + string(rune('a'+seq))
	}
	return svc
}

func invoiceInput(total string) CreateInvoiceInput {
	return CreateInvoiceInput{
		SupplierID:  "S1",
		TotalAmount: decimal.RequireFromString(total),
		FileName:    "inv-001.pdf",
		FileURL:     "https://files.example.com/inv-001.pdf",
		InvoiceDate: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestCreateInvoiceSeedsSinglePayment(t *testing.T) {
	repo := newMemoryRepo()
	cache := &countingCache{}
	svc := newTestService(repo, cache)

	inv, err := svc.CreateInvoice(context.Background(), invoiceInput("1500"))
	require.NoError(t, err)
	require.Equal(t, InvoiceStatusPending, inv.Status)
	require.Len(t, inv.Payments, 1)
	require.True(t, decimal.NewFromInt(1500).Equal(inv.Payments[0].Amount))
	require.Equal(t, PaymentStatusPending, inv.Payments[0].Status)

	stored, err := svc.GetInvoice(context.Background(), inv.ID)
	require.NoError(t, err)
	require.Len(t, stored.Payments, 1)
	require.True(t, stored.TotalAmount.Equal(stored.Payments[0].Amount))
	require.Equal(t, 1, cache.bumps)
}

func TestCreateInvoiceKeepsExplicitStatus(t *testing.T) {
	svc := newTestService(newMemoryRepo(), nil)
	input := invoiceInput("10")
	input.Status = InvoiceStatusOverdue

	inv, err := svc.CreateInvoice(context.Background(), input)
	require.NoError(t, err)
	require.Equal(t, InvoiceStatusOverdue, inv.Status)
}

func TestCreateInvoiceIsAtomic(t *testing.T) {
	repo := newMemoryRepo()
	repo.failInsertPayment = errors.New("connection lost")
	cache := &countingCache{}
	svc := newTestService(repo, cache)

	_, err := svc.CreateInvoice(context.Background(), invoiceInput("1500"))
	var txErr *shared.TransactionError
	require.ErrorAs(t, err, &txErr)
	require.Empty(t, repo.invoices)
	require.Empty(t, repo.payments)
	require.Zero(t, cache.bumps)
}

func TestCreateInvoiceUnknownSupplier(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, nil)
	input := invoiceInput("10")
	input.SupplierID = "S404"

	_, err := svc.CreateInvoice(context.Background(), input)
	require.ErrorIs(t, err, shared.ErrNotFound)
	require.Empty(t, repo.invoices)
}

func TestCreateInvoiceValidation(t *testing.T) {
	cases := map[string]func(*CreateInvoiceInput){
		"supplier":    func(in *CreateInvoiceInput) { in.SupplierID = "" },
		"totalAmount": func(in *CreateInvoiceInput) { in.TotalAmount = decimal.NewFromInt(-1) },
		"invoiceDate": func(in *CreateInvoiceInput) { in.InvoiceDate = time.Time{} },
		"status":      func(in *CreateInvoiceInput) { in.Status = "VOID" },
		"fileUrl":     func(in *CreateInvoiceInput) { in.FileURL = "not a url" },
		"sub cent":    func(in *CreateInvoiceInput) { in.TotalAmount = decimal.RequireFromString("10.005") },
		"overflow":    func(in *CreateInvoiceInput) { in.TotalAmount = decimal.RequireFromString("1000000000000") },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			repo := newMemoryRepo()
			input := invoiceInput("10")
			mutate(&input)
			_, err := newTestService(repo, nil).CreateInvoice(context.Background(), input)
			require.ErrorIs(t, err, shared.ErrValidation)
			require.Empty(t, repo.invoices)
		})
	}
}

func TestPaymentStatusSettlesInvoice(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, nil)
	ctx := context.Background()

	inv, err := svc.CreateInvoice(ctx, invoiceInput("100"))
	require.NoError(t, err)
	paymentID := inv.Payments[0].ID

	p, err := svc.UpdatePaymentStatus(ctx, UpdatePaymentStatusInput{PaymentID: paymentID, Status: PaymentStatusPaid})
	require.NoError(t, err)
	require.Equal(t, PaymentStatusPaid, p.Status)

	stored, err := svc.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	require.Equal(t, InvoiceStatusPaid, stored.Status)

	_, err = svc.UpdatePaymentStatus(ctx, UpdatePaymentStatusInput{PaymentID: paymentID, Status: PaymentStatusPending})
	require.NoError(t, err)
	stored, err = svc.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	require.Equal(t, InvoiceStatusPaid, stored.Status)
}

func TestExplicitlyPaidInvoiceStaysPaid(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, nil)
	ctx := context.Background()
	input := invoiceInput("100")
	input.Status = InvoiceStatusPaid

	inv, err := svc.CreateInvoice(ctx, input)
	require.NoError(t, err)
	require.Equal(t, InvoiceStatusPaid, inv.Status)

	_, err = svc.UpdatePaymentStatus(ctx, UpdatePaymentStatusInput{PaymentID: inv.Payments[0].ID, Status: PaymentStatusPending})
	require.NoError(t, err)
	stored, err := svc.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	require.Equal(t, InvoiceStatusPaid, stored.Status)

	_, err = svc.RecordPayment(ctx, RecordPaymentInput{InvoiceID: inv.ID, Amount: decimal.NewFromInt(5)})
	require.NoError(t, err)
	stored, err = svc.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	require.Equal(t, InvoiceStatusPaid, stored.Status)
}

func TestUpdatePaymentStatusErrors(t *testing.T) {
	svc := newTestService(newMemoryRepo(), nil)

	_, err := svc.UpdatePaymentStatus(context.Background(), UpdatePaymentStatusInput{PaymentID: "nope", Status: PaymentStatusPaid})
	require.ErrorIs(t, err, shared.ErrNotFound)

	_, err = svc.UpdatePaymentStatus(context.Background(), UpdatePaymentStatusInput{PaymentID: "nope", Status: "REFUNDED"})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestRecordPartialPayments(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, nil)
	ctx := context.Background()

	inv, err := svc.CreateInvoice(ctx, invoiceInput("100"))
	require.NoError(t, err)

	_, err = svc.RecordPayment(ctx, RecordPaymentInput{InvoiceID: inv.ID, Amount: decimal.NewFromInt(40), Status: PaymentStatusPaid})
	require.NoError(t, err)
	stored, err := svc.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	require.Equal(t, InvoiceStatusPending, stored.Status)
	require.Len(t, stored.Payments, 2)

	p, err := svc.RecordPayment(ctx, RecordPaymentInput{InvoiceID: inv.ID, Amount: decimal.NewFromInt(60), Status: PaymentStatusPaid})
	require.NoError(t, err)
	require.False(t, p.PaymentDate.IsZero())
	stored, err = svc.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	require.Equal(t, InvoiceStatusPaid, stored.Status)

	_, err = svc.RecordPayment(ctx, RecordPaymentInput{InvoiceID: "missing", Amount: decimal.NewFromInt(1)})
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestSettledStatus(t *testing.T) {
	hundred := decimal.NewFromInt(100)
	require.Equal(t, InvoiceStatusPaid, settledStatus(InvoiceStatusOverdue, hundred, hundred))
	require.Equal(t, InvoiceStatusPaid, settledStatus(InvoiceStatusPaid, hundred, decimal.NewFromInt(99)))
	require.Equal(t, InvoiceStatusPending, settledStatus(InvoiceStatusPending, hundred, decimal.NewFromInt(99)))
	require.Equal(t, InvoiceStatusOverdue, settledStatus(InvoiceStatusOverdue, hundred, decimal.Zero))
}
