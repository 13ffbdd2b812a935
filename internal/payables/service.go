package payables

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/stockline/stockline/internal/platform/validate"
	"github.com/stockline/stockline/internal/shared"
)

// TxRepository exposes transactional operations used by service.
type TxRepository interface {
	SupplierExists(ctx context.Context, supplierID string) (bool, error)
	InsertInvoice(ctx context.Context, invoice SupplierInvoice) error
	InsertPayment(ctx context.Context, payment Payment) error
	GetInvoiceForUpdate(ctx context.Context, id string) (SupplierInvoice, error)
	UpdateInvoiceStatus(ctx context.Context, id string, status InvoiceStatus) error
	UpdatePaymentStatus(ctx context.Context, id string, status PaymentStatus) (Payment, error)
	SumPaid(ctx context.Context, invoiceID string) (decimal.Decimal, error)
}

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetInvoice(ctx context.Context, id string) (SupplierInvoice, error)
	ListInvoices(ctx context.Context) ([]SupplierInvoice, error)
	ListPayments(ctx context.Context) ([]Payment, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// CachePort invalidates cached report projections.
type CachePort interface {
	Bump(ctx context.Context) error
}

// Service records supplier invoices and their payment ledger.
type Service struct {
	repo     RepositoryPort
	audit    AuditPort
	cache    CachePort
	logger   *slog.Logger
	validate *validator.Validate
	now      func() time.Time
	newID    func() string
}

// NewService builds Service. audit and cache may be nil.
func NewService(repo RepositoryPort, audit AuditPort, cache CachePort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:     repo,
		audit:    audit,
		cache:    cache,
		logger:   logger,
		validate: validate.New(),
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// CreateInvoice records the invoice and its initial payment of the full amount in
// one transaction. Either both rows exist afterwards or neither does.
func (s *Service) CreateInvoice(ctx context.Context, input CreateInvoiceInput) (SupplierInvoice, error) {
	if err := validate.Struct(s.validate, input); err != nil {
		return SupplierInvoice{}, err
	}
	if input.Status == "" {
		input.Status = InvoiceStatusPending
	}
	now := s.now().UTC()
	invoice := SupplierInvoice{
		ID:          s.newID(),
		SupplierID:  input.SupplierID,
		FileName:    input.FileName,
		FileURL:     input.FileURL,
		TotalAmount: input.TotalAmount,
		InvoiceDate: input.InvoiceDate,
		Status:      input.Status,
		CreatedAt:   now,
	}
	payment := Payment{
		ID:          s.newID(),
		InvoiceID:   invoice.ID,
		Amount:      input.TotalAmount,
		PaymentDate: now,
		Status:      PaymentStatusPending,
		CreatedAt:   now,
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		ok, err := tx.SupplierExists(ctx, input.SupplierID)
		if err != nil {
			return fmt.Errorf("payables: lookup supplier: %w", err)
		}
		if !ok {
			return shared.NewNotFoundError("supplier", input.SupplierID)
		}
		if err := tx.InsertInvoice(ctx, invoice); err != nil {
			return fmt.Errorf("payables: insert invoice: %w", err)
		}
		if err := tx.InsertPayment(ctx, payment); err != nil {
			return fmt.Errorf("payables: insert payment: %w", err)
		}
		return nil
	})
	if err != nil {
		return SupplierInvoice{}, err
	}

	invoice.Payments = []Payment{payment}
	s.afterCommit(ctx, "supplier_invoice.create", "supplier_invoice", invoice.ID, map[string]any{
		"supplier_id":  invoice.SupplierID,
		"total_amount": invoice.TotalAmount.StringFixed(2),
	})
	s.logger.Info("supplier invoice created",
		slog.String("invoice_id", invoice.ID),
		slog.String("supplier_id", invoice.SupplierID))
	return invoice, nil
}

// GetInvoice loads an invoice with its payments.
func (s *Service) GetInvoice(ctx context.Context, id string) (SupplierInvoice, error) {
	inv, err := s.repo.GetInvoice(ctx, id)
	if errors.Is(err, ErrInvoiceNotFound) {
		return SupplierInvoice{}, shared.NewNotFoundError("supplier invoice", id)
	}
	return inv, err
}

// ListInvoices returns active invoices, newest first, with their payments.
func (s *Service) ListInvoices(ctx context.Context) ([]SupplierInvoice, error) {
	return s.repo.ListInvoices(ctx)
}

// ListPayments returns every payment, newest first.
func (s *Service) ListPayments(ctx context.Context) ([]Payment, error) {
	return s.repo.ListPayments(ctx)
}

// RecordPayment adds a payment to an invoice. A paid payment that settles the
// invoice marks it PAID in the same transaction.
func (s *Service) RecordPayment(ctx context.Context, input RecordPaymentInput) (Payment, error) {
	if err := validate.Struct(s.validate, input); err != nil {
		return Payment{}, err
	}
	now := s.now().UTC()
	payment := Payment{
		ID:          s.newID(),
		InvoiceID:   input.InvoiceID,
		Amount:      input.Amount,
		PaymentDate: input.PaymentDate,
		Status:      input.Status,
		CreatedAt:   now,
	}
	if payment.PaymentDate.IsZero() {
		payment.PaymentDate = now
	}
	if payment.Status == "" {
		payment.Status = PaymentStatusPending
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetInvoiceForUpdate(ctx, input.InvoiceID); err != nil {
			return notFound(err, "supplier invoice", input.InvoiceID)
		}
		if err := tx.InsertPayment(ctx, payment); err != nil {
			return fmt.Errorf("payables: insert payment: %w", err)
		}
		return settle(ctx, tx, input.InvoiceID)
	})
	if err != nil {
		return Payment{}, err
	}
	s.afterCommit(ctx, "payment.create", "payment", payment.ID, map[string]any{
		"invoice_id": payment.InvoiceID,
		"amount":     payment.Amount.StringFixed(2),
	})
	return payment, nil
}

// UpdatePaymentStatus moves a payment between PENDING and PAID and re-derives the
// owning invoice's status.
func (s *Service) UpdatePaymentStatus(ctx context.Context, input UpdatePaymentStatusInput) (Payment, error) {
	if err := validate.Struct(s.validate, input); err != nil {
		return Payment{}, err
	}
	var updated Payment
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		p, err := tx.UpdatePaymentStatus(ctx, input.PaymentID, input.Status)
		if err != nil {
			return notFound(err, "payment", input.PaymentID)
		}
		updated = p
		return settle(ctx, tx, p.InvoiceID)
	})
	if err != nil {
		return Payment{}, err
	}
	s.afterCommit(ctx, "payment.status", "payment", updated.ID, map[string]any{"status": string(updated.Status)})
	return updated, nil
}

func settle(ctx context.Context, tx TxRepository, invoiceID string) error {
	inv, err := tx.GetInvoiceForUpdate(ctx, invoiceID)
	if err != nil {
		return notFound(err, "supplier invoice", invoiceID)
	}
	paid, err := tx.SumPaid(ctx, invoiceID)
	if err != nil {
		return fmt.Errorf("payables: sum payments: %w", err)
	}
	next := settledStatus(inv.Status, inv.TotalAmount, paid)
	if next == inv.Status {
		return nil
	}
	if err := tx.UpdateInvoiceStatus(ctx, invoiceID, next); err != nil {
		return fmt.Errorf("payables: update invoice status: %w", err)
	}
	return nil
}

func notFound(err error, entity, id string) error {
	if errors.Is(err, ErrInvoiceNotFound) || errors.Is(err, ErrPaymentNotFound) {
		return shared.NewNotFoundError(entity, id)
	}
	return err
}

func (s *Service) afterCommit(ctx context.Context, action, entity, id string, meta map[string]any) {
	if s.audit != nil {
		if err := s.audit.Record(ctx, shared.AuditLog{Action: action, Entity: entity, EntityID: id, Meta: meta}); err != nil {
			s.logger.Warn("audit payables", slog.String("action", action), slog.Any("error", err))
		}
	}
	if s.cache != nil {
		if err := s.cache.Bump(ctx); err != nil {
			s.logger.Warn("bump report cache", slog.Any("error", err))
		}
	}
}
