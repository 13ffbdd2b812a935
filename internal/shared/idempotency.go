package shared

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RowQuerier is satisfied by pgx.Tx and *pgxpool.Pool.
type RowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ErrIdempotencyKeyRequired is returned when a claim is attempted with an empty key.
var ErrIdempotencyKeyRequired = errors.New("idempotency key required")

// ClaimIdempotencyKey binds key to resourceID within the caller's transaction.
// When the key was already claimed in scope it returns the bound resource and claimed=false.
// A concurrent claim of the same key blocks until the other transaction finishes.
func ClaimIdempotencyKey(ctx context.Context, q RowQuerier, scope, key, resourceID string) (string, bool, error) {
	if key == "" {
		return "", false, ErrIdempotencyKeyRequired
	}
	var bound string
	err := q.QueryRow(ctx, `INSERT INTO idempotency_keys (key, scope, resource_id, created_at)
VALUES ($1, $2, $3, NOW())
ON CONFLICT (key, scope) DO NOTHING
RETURNING resource_id`, key, scope, resourceID).Scan(&bound)
	if err == nil {
		return bound, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return "", false, fmt.Errorf("shared: claim idempotency key: %w", err)
	}
	if err := q.QueryRow(ctx, `SELECT resource_id FROM idempotency_keys WHERE key = $1 AND scope = $2`, key, scope).Scan(&bound); err != nil {
		return "", false, fmt.Errorf("shared: lookup idempotency key: %w", err)
	}
	return bound, false, nil
}

// IdempotencyStore maintains processed keys outside request transactions.
type IdempotencyStore struct {
	pool *pgxpool.Pool
}

// NewIdempotencyStore constructs the store.
func NewIdempotencyStore(pool *pgxpool.Pool) *IdempotencyStore {
	return &IdempotencyStore{pool: pool}
}

// Cleanup removes entries older than retention and returns how many were removed.
func (s *IdempotencyStore) Cleanup(ctx context.Context, olderThan time.Duration) (int64, error) {
	if s == nil {
		return 0, nil
	}
	cutoff := time.Now().Add(-olderThan)
	tag, err := s.pool.Exec(ctx, `DELETE FROM idempotency_keys WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("shared: cleanup idempotency keys: %w", err)
	}
	return tag.RowsAffected(), nil
}
