package inventory

import (
	"context"
	"errors"
	"time"
)

// StockMovement describes the committed change of one product.
type StockMovement struct {
	ProductID string
	Delta     int
	Remaining int
}

// StockChangedEvent is emitted after a stock mutation has been committed.
type StockChangedEvent struct {
	Source    string
	Reference string
	Movements []StockMovement
	At        time.Time
}

// IntegrationHandler receives inventory events after commit. Failures never undo
// the committed change.
type IntegrationHandler interface {
	HandleStockChanged(ctx context.Context, evt StockChangedEvent) error
}

// Integrations fans an event out to every handler and joins their errors.
type Integrations []IntegrationHandler

// HandleStockChanged implements IntegrationHandler.
func (h Integrations) HandleStockChanged(ctx context.Context, evt StockChangedEvent) error {
	var errs []error
	for _, handler := range h {
		if handler == nil {
			continue
		}
		if err := handler.HandleStockChanged(ctx, evt); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
