package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/stockline/stockline/internal/shared"
)

// TxBeginner is satisfied by *pgxpool.Pool and *pgx.Conn.
type TxBeginner interface {
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
}

// ReadCommitted is used by the write paths guarded by conditional updates.
var ReadCommitted = pgx.TxOptions{IsoLevel: pgx.ReadCommitted}

// WithTx executes fn within a transaction. The transaction is rolled back unless fn
// returns nil and the commit succeeds. Errors that are not already part of the shared
// error taxonomy are returned as *shared.TransactionError.
func WithTx(ctx context.Context, pool TxBeginner, opts pgx.TxOptions, fn func(pgx.Tx) error) error {
	tx, err := pool.BeginTx(ctx, opts)
	if err != nil {
		return Classify("begin", fmt.Errorf("platform/db: begin tx: %w", err))
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(tx); err != nil {
		return Classify("execute", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Classify("commit", fmt.Errorf("platform/db: commit tx: %w", err))
	}

	return nil
}

// Classify wraps err into a *shared.TransactionError unless it already carries a
// domain meaning. A value overflowing its column is the caller's to fix.
func Classify(op string, err error) error {
	if err == nil || shared.IsDomainError(err) {
		return err
	}
	if HasCode(err, CodeNumericOutOfRange) {
		return shared.NewValidationError("", "numeric value out of range")
	}
	return &shared.TransactionError{Op: op, Err: err, Retryable: IsRetryable(err)}
}
