package shared

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditLog is one row of audit_logs. At defaults to the database clock.
type AuditLog struct {
	Action   string
	Entity   string
	EntityID string
	Meta     map[string]any
	At       time.Time
}

func (l AuditLog) check() error {
	switch {
	case l.Action == "":
		return errors.New("audit: action is required")
	case l.Entity == "":
		return errors.New("audit: entity is required")
	case l.EntityID == "":
		return errors.New("audit: entity id is required")
	}
	return nil
}

// AuditLogger appends to audit_logs outside any business transaction. Callers
// record after commit and treat failures as warnings.
type AuditLogger struct {
	pool *pgxpool.Pool
}

// NewAuditLogger returns a new AuditLogger.
func NewAuditLogger(pool *pgxpool.Pool) *AuditLogger {
	return &AuditLogger{pool: pool}
}

const insertAudit = `INSERT INTO audit_logs (action, entity, entity_id, meta, occurred_at)
VALUES (@action, @entity, @entity_id, @meta, COALESCE(@at, NOW()))`

// Record persists the log entry.
func (l *AuditLogger) Record(ctx context.Context, entry AuditLog) error {
	if l == nil || l.pool == nil {
		return errors.New("audit: logger not initialised")
	}
	if err := entry.check(); err != nil {
		return err
	}
	meta, err := json.Marshal(entry.Meta)
	if err != nil {
		return fmt.Errorf("audit: encode meta: %w", err)
	}
	args := pgx.NamedArgs{
		"action":    entry.Action,
		"entity":    entry.Entity,
		"entity_id": entry.EntityID,
		"meta":      meta,
		"at":        nil,
	}
	if !entry.At.IsZero() {
		args["at"] = entry.At.UTC()
	}
	if _, err := l.pool.Exec(ctx, insertAudit, args); err != nil {
		return fmt.Errorf("audit: insert %s %s: %w", entry.Entity, entry.EntityID, err)
	}
	return nil
}
