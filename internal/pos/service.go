package pos

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/stockline/stockline/internal/inventory"
	"github.com/stockline/stockline/internal/platform/validate"
	"github.com/stockline/stockline/internal/shared"
)

// ErrInvoiceNotFound indicates missing sales invoice.
var ErrInvoiceNotFound = errors.New("pos: sales invoice not found")

// TxRepository exposes the writes of one checkout. All of them share a transaction.
type TxRepository interface {
	// ClaimIdempotencyKey binds key to invoiceID. claimed is false when the key
	// already belongs to boundInvoiceID.
	ClaimIdempotencyKey(ctx context.Context, key, invoiceID string) (boundInvoiceID string, claimed bool, err error)
	InsertInvoice(ctx context.Context, invoice SalesInvoice) error
	InsertItems(ctx context.Context, items []SalesInvoiceItem) error
	DecrementStock(ctx context.Context, productID string, qty int) (int, error)
}

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetInvoice(ctx context.Context, id string) (SalesInvoice, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// MetricsPort receives one observation per checkout attempt.
type MetricsPort interface {
	ObserveCheckout(outcome string, duration time.Duration)
}

// Checkout outcomes reported to MetricsPort.
const (
	OutcomeSuccess           = "success"
	OutcomeReplayed          = "replayed"
	OutcomeValidation        = "validation_error"
	OutcomeInsufficientStock = "insufficient_stock"
	OutcomeNotFound          = "not_found"
	OutcomeTransaction       = "transaction_error"
)

// Service converts carts into sales invoices.
type Service struct {
	repo        RepositoryPort
	audit       AuditPort
	integration inventory.IntegrationHandler
	metrics     MetricsPort
	logger      *slog.Logger
	validate    *validator.Validate
	now         func() time.Time
	newID       func() string
}

// NewService builds Service. audit, integration and metrics may be nil.
func NewService(repo RepositoryPort, audit AuditPort, integration inventory.IntegrationHandler, metrics MetricsPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:        repo,
		audit:       audit,
		integration: integration,
		metrics:     metrics,
		logger:      logger,
		validate:    validate.New(),
		now:         time.Now,
		newID:       uuid.NewString,
	}
}

// Checkout validates the cart, then in one transaction records the invoice with
// its items and decrements stock for every line. Nothing is persisted unless every
// step succeeds. A repeated idempotency key returns the receipt of the first checkout.
func (s *Service) Checkout(ctx context.Context, input CheckoutInput) (Receipt, error) {
	started := s.now()
	receipt, err := s.checkout(ctx, input)
	if s.metrics != nil {
		s.metrics.ObserveCheckout(outcomeOf(receipt, err), s.now().Sub(started))
	}
	return receipt, err
}

func (s *Service) checkout(ctx context.Context, input CheckoutInput) (Receipt, error) {
	if err := ValidateCart(s.validate, input); err != nil {
		return Receipt{}, err
	}

	invoice := s.buildInvoice(input)
	order := lockOrder(input.Items)
	remaining := make(map[string]int, len(input.Items))
	var replayID string

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		replayID = ""
		clear(remaining)
		if input.IdempotencyKey != "" {
			bound, claimed, err := tx.ClaimIdempotencyKey(ctx, input.IdempotencyKey, invoice.ID)
			if err != nil {
				return err
			}
			if !claimed {
				replayID = bound
				return nil
			}
		}
		if err := tx.InsertInvoice(ctx, invoice); err != nil {
			return fmt.Errorf("pos: insert invoice: %w", err)
		}
		for _, idx := range order {
			item := input.Items[idx]
			left, err := tx.DecrementStock(ctx, item.ProductID, item.Quantity)
			if err != nil {
				return stockError(idx, item, err)
			}
			remaining[item.ProductID] = left
		}
		if err := tx.InsertItems(ctx, invoice.Items); err != nil {
			return fmt.Errorf("pos: insert items: %w", err)
		}
		return nil
	})
	if err != nil {
		s.logger.Warn("checkout rolled back",
			slog.Int("items", len(input.Items)),
			slog.Any("error", err))
		return Receipt{}, err
	}

	if replayID != "" {
		return s.replay(ctx, replayID, invoice)
	}

	s.afterCommit(ctx, invoice, remaining)
	s.logger.Info("checkout committed",
		slog.String("invoice_id", invoice.ID),
		slog.String("total_amount", invoice.TotalAmount.StringFixed(priceScale)),
		slog.Int("items", len(invoice.Items)))
	return ReceiptFor(invoice), nil
}

// GetInvoice loads a sales invoice with its items.
func (s *Service) GetInvoice(ctx context.Context, id string) (SalesInvoice, error) {
	if id == "" {
		return SalesInvoice{}, shared.NewValidationError("invoice_id", "is required")
	}
	inv, err := s.repo.GetInvoice(ctx, id)
	if errors.Is(err, ErrInvoiceNotFound) {
		return SalesInvoice{}, shared.NewNotFoundError("sales invoice", id)
	}
	return inv, err
}

func (s *Service) buildInvoice(input CheckoutInput) SalesInvoice {
	invoice := SalesInvoice{
		ID:             s.newID(),
		TotalAmount:    CartTotal(input.Items),
		Status:         InvoiceStatusPending,
		IdempotencyKey: input.IdempotencyKey,
		CreatedAt:      s.now().UTC(),
		Items:          make([]SalesInvoiceItem, 0, len(input.Items)),
	}
	for i, item := range input.Items {
		invoice.Items = append(invoice.Items, SalesInvoiceItem{
			ID:        s.newID(),
			InvoiceID: invoice.ID,
			LineNo:    i + 1,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     item.Price,
		})
	}
	return invoice
}

func (s *Service) replay(ctx context.Context, invoiceID string, attempted SalesInvoice) (Receipt, error) {
	existing, err := s.repo.GetInvoice(ctx, invoiceID)
	if err != nil {
		return Receipt{}, fmt.Errorf("pos: load replayed invoice: %w", err)
	}
	if !sameCart(existing, attempted) {
		return Receipt{}, shared.NewValidationError("idempotency_key", "was already used for a different cart")
	}
	s.logger.Info("checkout replayed", slog.String("invoice_id", existing.ID))
	receipt := ReceiptFor(existing)
	receipt.Replayed = true
	return receipt, nil
}

// sameCart reports whether attempted carries exactly the lines stored for existing.
func sameCart(existing, attempted SalesInvoice) bool {
	if len(existing.Items) != len(attempted.Items) || !existing.TotalAmount.Equal(attempted.TotalAmount) {
		return false
	}
	stored := append([]SalesInvoiceItem(nil), existing.Items...)
	sort.Slice(stored, func(a, b int) bool { return stored[a].LineNo < stored[b].LineNo })
	for i, want := range attempted.Items {
		got := stored[i]
		if got.ProductID != want.ProductID || got.Quantity != want.Quantity || !got.Price.Equal(want.Price) {
			return false
		}
	}
	return true
}

func (s *Service) afterCommit(ctx context.Context, invoice SalesInvoice, remaining map[string]int) {
	if s.audit != nil {
		err := s.audit.Record(ctx, shared.AuditLog{
			Action:   "sales_invoice.create",
			Entity:   "sales_invoice",
			EntityID: invoice.ID,
			Meta: map[string]any{
				"total_amount":    invoice.TotalAmount.StringFixed(priceScale),
				"items":           len(invoice.Items),
				"idempotency_key": invoice.IdempotencyKey,
			},
			At: invoice.CreatedAt,
		})
		if err != nil {
			s.logger.Warn("audit checkout", slog.String("invoice_id", invoice.ID), slog.Any("error", err))
		}
	}
	if s.integration == nil {
		return
	}
	sold := make(map[string]int, len(remaining))
	for _, item := range invoice.Items {
		sold[item.ProductID] += item.Quantity
	}
	evt := inventory.StockChangedEvent{Source: "checkout", Reference: invoice.ID, At: invoice.CreatedAt}
	for productID, qty := range sold {
		evt.Movements = append(evt.Movements, inventory.StockMovement{ProductID: productID, Delta: -qty, Remaining: remaining[productID]})
	}
	sort.Slice(evt.Movements, func(i, j int) bool { return evt.Movements[i].ProductID < evt.Movements[j].ProductID })
	if err := s.integration.HandleStockChanged(ctx, evt); err != nil {
		s.logger.Warn("stock changed integration", slog.String("invoice_id", invoice.ID), slog.Any("error", err))
	}
}

// lockOrder returns line indexes sorted by product so that concurrent carts touch
// product rows in the same order.
func lockOrder(items []CartItem) []int {
	order := make([]int, len(items))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return items[order[a]].ProductID < items[order[b]].ProductID
	})
	return order
}

func stockError(idx int, item CartItem, err error) error {
	var shortage *inventory.StockShortageError
	switch {
	case errors.As(err, &shortage):
		return &shared.InsufficientStockError{Item: idx, ProductID: item.ProductID, Requested: item.Quantity, Available: shortage.Available}
	case errors.Is(err, inventory.ErrInsufficientStock):
		return &shared.InsufficientStockError{Item: idx, ProductID: item.ProductID, Requested: item.Quantity}
	case errors.Is(err, inventory.ErrProductNotFound):
		return &shared.NotFoundError{Entity: "product", ID: item.ProductID, Item: idx}
	default:
		return fmt.Errorf("pos: decrement stock for item %d: %w", idx, err)
	}
}

func outcomeOf(receipt Receipt, err error) string {
	switch {
	case err == nil && receipt.Replayed:
		return OutcomeReplayed
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, shared.ErrValidation):
		return OutcomeValidation
	case errors.Is(err, shared.ErrInsufficientStock):
		return OutcomeInsufficientStock
	case errors.Is(err, shared.ErrNotFound):
		return OutcomeNotFound
	default:
		return OutcomeTransaction
	}
}
