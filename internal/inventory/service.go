package inventory

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/stockline/stockline/internal/platform/validate"
	"github.com/stockline/stockline/internal/shared"
)

// StockTx is the set of stock mutations available inside a transaction.
type StockTx interface {
	DecrementStock(ctx context.Context, productID string, qty int) (int, error)
	IncrementStock(ctx context.Context, productID string, qty int) (int, error)
	UpsertProduct(ctx context.Context, id string, line RestockLine) (RestockedProduct, error)
}

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, StockTx) error) error
	Get(ctx context.Context, id string) (Product, error)
	ListAvailable(ctx context.Context) ([]Product, error)
	List(ctx context.Context, filters ListFilters) ([]ProductView, int, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates product stock operations.
type Service struct {
	repo        RepositoryPort
	audit       AuditPort
	integration IntegrationHandler
	logger      *slog.Logger
	validate    *validator.Validate
	now         func() time.Time
}

// NewService builds Service. audit and integration may be nil.
func NewService(repo RepositoryPort, audit AuditPort, integration IntegrationHandler, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:        repo,
		audit:       audit,
		integration: integration,
		logger:      logger,
		validate:    validate.New(),
		now:         time.Now,
	}
}

// Get returns an active product.
func (s *Service) Get(ctx context.Context, id string) (Product, error) {
	if id == "" {
		return Product{}, shared.NewValidationError("id", "is required")
	}
	p, err := s.repo.Get(ctx, id)
	if errors.Is(err, ErrProductNotFound) {
		return Product{}, shared.NewNotFoundError("product", id)
	}
	return p, err
}

// ListAvailable lists products that can be sold right now.
func (s *Service) ListAvailable(ctx context.Context) ([]Product, error) {
	return s.repo.ListAvailable(ctx)
}

// List returns a page of the inventory.
func (s *Service) List(ctx context.Context, filters ListFilters) ([]ProductView, shared.Pagination, error) {
	if filters.Page <= 0 {
		filters.Page = 1
	}
	if filters.Limit <= 0 || filters.Limit > 100 {
		filters.Limit = 10
	}
	products, total, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return products, shared.NewPagination(filters.Page, filters.Limit, total), nil
}

// Restock applies a supplier delivery. Invalid lines are skipped and reported;
// the accepted lines are applied in one transaction.
func (s *Service) Restock(ctx context.Context, lines []RestockLine) (RestockResult, error) {
	if len(lines) == 0 {
		return RestockResult{}, shared.NewValidationError("products", "must not be empty")
	}

	var result RestockResult
	accepted := make([]int, 0, len(lines))
	for i, line := range lines {
		if err := validate.Struct(s.validate, line); err != nil {
			result.Skipped = append(result.Skipped, SkippedLine{Index: i, Reason: err.Error()})
			continue
		}
		accepted = append(accepted, i)
	}
	if len(accepted) == 0 {
		return result, shared.NewValidationError("products", "no valid products to restock")
	}

	// Stable identity order keeps concurrent restocks from locking rows in opposite orders.
	sort.SliceStable(accepted, func(a, b int) bool {
		la, lb := lines[accepted[a]], lines[accepted[b]]
		if la.SupplierID != lb.SupplierID {
			return la.SupplierID < lb.SupplierID
		}
		if la.CategoryID != lb.CategoryID {
			return la.CategoryID < lb.CategoryID
		}
		return la.Name < lb.Name
	})

	var movements []StockMovement
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx StockTx) error {
		result.Products = result.Products[:0]
		movements = movements[:0]
		for _, idx := range accepted {
			out, err := tx.UpsertProduct(ctx, uuid.NewString(), lines[idx])
			if err != nil {
				return err
			}
			result.Products = append(result.Products, out)
			if lines[idx].Stock > 0 {
				movements = append(movements, StockMovement{ProductID: out.ID, Delta: lines[idx].Stock, Remaining: out.Stock})
			}
		}
		return nil
	})
	if err != nil {
		return RestockResult{Skipped: result.Skipped}, err
	}

	for _, p := range result.Products {
		if p.Created {
			result.Created++
		} else {
			result.Updated++
		}
	}

	if s.audit != nil {
		for _, p := range result.Products {
			if err := s.audit.Record(ctx, shared.AuditLog{
				Action:   "product.restock",
				Entity:   "product",
				EntityID: p.ID,
				Meta:     map[string]any{"stock": p.Stock, "created": p.Created},
			}); err != nil {
				s.logger.Warn("audit restock", slog.String("product_id", p.ID), slog.Any("error", err))
			}
		}
	}
	s.emit(ctx, StockChangedEvent{Source: "restock", Movements: movements, At: s.now().UTC()})
	return result, nil
}

func (s *Service) emit(ctx context.Context, evt StockChangedEvent) {
	if s.integration == nil || len(evt.Movements) == 0 {
		return
	}
	if err := s.integration.HandleStockChanged(ctx, evt); err != nil {
		s.logger.Warn("stock changed integration", slog.String("source", evt.Source), slog.Any("error", err))
	}
}
