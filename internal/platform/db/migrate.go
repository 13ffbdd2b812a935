package db

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
)

// MigrationsTable records the applied schema version.
const MigrationsTable = "schema_migrations"

// MigrationState is the schema version after a migration run.
type MigrationState struct {
	Version uint
	// Changed is false when there was nothing to apply.
	Changed bool
}

// Migrate applies every pending NNNNNN_name.up.sql file in fsys.
func Migrate(ctx context.Context, pool *pgxpool.Pool, fsys fs.FS, logger *slog.Logger) (MigrationState, error) {
	return runMigrations(ctx, pool, fsys, logger, func(m *migrate.Migrate) error { return m.Up() })
}

// MigrateDown reverts the last steps migrations.
func MigrateDown(ctx context.Context, pool *pgxpool.Pool, fsys fs.FS, steps int, logger *slog.Logger) (MigrationState, error) {
	if steps <= 0 {
		return MigrationState{}, fmt.Errorf("platform/db: down steps must be positive, got %d", steps)
	}
	return runMigrations(ctx, pool, fsys, logger, func(m *migrate.Migrate) error { return m.Steps(-steps) })
}

func runMigrations(ctx context.Context, pool *pgxpool.Pool, fsys fs.FS, logger *slog.Logger, run func(*migrate.Migrate) error) (MigrationState, error) {
	src, err := iofs.New(fsys, ".")
	if err != nil {
		return MigrationState{}, fmt.Errorf("platform/db: open migrations: %w", err)
	}
	// Closing this handle releases its connections back to pool without closing pool.
	sqlDB := stdlib.OpenDBFromPool(pool)
	driver, err := migratepgx.WithInstance(sqlDB, &migratepgx.Config{MigrationsTable: MigrationsTable})
	if err != nil {
		_ = sqlDB.Close()
		return MigrationState{}, fmt.Errorf("platform/db: migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "pgx5", driver)
	if err != nil {
		_ = driver.Close()
		return MigrationState{}, fmt.Errorf("platform/db: migrator: %w", err)
	}
	defer func() {
		_, _ = m.Close()
	}()
	if logger != nil {
		m.Log = migrateLogger{logger: logger}
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			m.GracefulStop <- true
		case <-done:
		}
	}()

	state := MigrationState{Changed: true}
	if err := run(m); err != nil {
		if !errors.Is(err, migrate.ErrNoChange) {
			return MigrationState{}, fmt.Errorf("platform/db: migrate: %w", err)
		}
		state.Changed = false
	}
	if err := ctx.Err(); err != nil {
		return MigrationState{}, fmt.Errorf("platform/db: migrate: %w", err)
	}

	version, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		return state, nil
	case err != nil:
		return MigrationState{}, fmt.Errorf("platform/db: read schema version: %w", err)
	case dirty:
		return MigrationState{}, fmt.Errorf("platform/db: schema version %d is dirty", version)
	}
	state.Version = version
	return state, nil
}

// migrateLogger forwards migrate progress to slog.
type migrateLogger struct {
	logger *slog.Logger
}

func (l migrateLogger) Printf(format string, v ...any) {
	l.logger.Info(strings.TrimSpace(fmt.Sprintf(format, v...)), slog.String("component", "migrate"))
}

func (l migrateLogger) Verbose() bool { return false }
