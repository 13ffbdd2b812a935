package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stockline/stockline/cmd/stockline/cli"
	"github.com/stockline/stockline/internal/app"
	"github.com/stockline/stockline/internal/inventory"
	jobmetrics "github.com/stockline/stockline/internal/jobs"
	"github.com/stockline/stockline/internal/observability"
	"github.com/stockline/stockline/internal/payables"
	"github.com/stockline/stockline/internal/platform/cache"
	"github.com/stockline/stockline/internal/platform/db"
	"github.com/stockline/stockline/internal/pos"
	"github.com/stockline/stockline/internal/reports"
	"github.com/stockline/stockline/internal/shared"
	"github.com/stockline/stockline/jobs"
	"github.com/stockline/stockline/migrations"
)

const usage = `usage: stockline [command]

commands:
  serve                 run the HTTP API (default)
  migrate               apply pending database migrations
  migrate down <n>      revert the last n migrations
  jobs trigger <name>   enqueue a maintenance job
  jobs stats            print queue statistics
`

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	cmd := "serve"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}
	switch cmd {
	case "serve":
		err = serve(ctx, stop, cfg, logger)
	case "migrate":
		err = migrate(ctx, cfg, logger, os.Args[2:])
	case "jobs":
		err = runJobs(ctx, cfg, os.Args[2:])
	case "-h", "--help", "help":
		fmt.Print(usage)
		return
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		logger.Error(cmd+" failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func migrate(ctx context.Context, cfg *app.Config, logger *slog.Logger, args []string) error {
	pool, err := db.New(ctx, cfg.PGDSN, db.Options{MaxConns: 2})
	if err != nil {
		return err
	}
	defer pool.Close()

	if len(args) == 0 {
		state, err := db.Migrate(ctx, pool, migrations.FS, logger)
		if err != nil {
			return err
		}
		logger.Info("migrations applied", slog.Uint64("version", uint64(state.Version)), slog.Bool("changed", state.Changed))
		return nil
	}
	if args[0] != "down" || len(args) != 2 {
		return fmt.Errorf("migrate: usage: migrate [down <n>]")
	}
	steps, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("migrate down: invalid step count %q: %w", args[1], err)
	}
	state, err := db.MigrateDown(ctx, pool, migrations.FS, steps, logger)
	if err != nil {
		return err
	}
	logger.Info("migrations reverted", slog.Uint64("version", uint64(state.Version)), slog.Int("steps", steps))
	return nil
}

func runJobs(ctx context.Context, cfg *app.Config, args []string) error {
	if len(args) == 0 {
		return errors.New("jobs: missing subcommand")
	}
	ops := cli.NewJobsCLI(cfg.RedisAddr, cfg.IdempotencyRetention)
	defer func() { _ = ops.Close() }()

	switch args[0] {
	case "trigger":
		if len(args) < 2 {
			return fmt.Errorf("jobs trigger: name required, one of %v", cli.Triggerable())
		}
		info, err := ops.Trigger(ctx, args[1])
		if err != nil {
			return err
		}
		fmt.Printf("enqueued %s id=%s queue=%s\n", info.Type, info.ID, info.Queue)
		return nil
	case "stats":
		stats, err := ops.InspectQueues(ctx)
		if err != nil {
			return err
		}
		return cli.WriteStats(os.Stdout, stats)
	default:
		return fmt.Errorf("jobs: unknown subcommand %q", args[0])
	}
}

func serve(ctx context.Context, stop context.CancelFunc, cfg *app.Config, logger *slog.Logger) error {
	pool, err := db.New(ctx, cfg.PGDSN, db.Options{MaxConns: cfg.PGMaxConns})
	if err != nil {
		return err
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		return err
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	jobMetrics := jobmetrics.NewMetrics(metrics.Registerer())

	reportCache := reports.NewCache(redisClient, cfg.CacheTTL)
	if err := reportCache.ListenForInvalidation(ctx, ""); err != nil {
		logger.Warn("report cache invalidation listener", slog.Any("error", err))
	}

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	queue := jobs.NewClient(redisOpts)
	defer func() { _ = queue.Close() }()
	inspector := asynq.NewInspector(redisOpts)
	defer func() { _ = inspector.Close() }()

	alerter := jobs.NewLowStockAlerter(queue, cfg.LowStockThreshold, jobMetrics, logger)
	integrations := inventory.Integrations{reportCache, alerter}
	auditLogger := shared.NewAuditLogger(pool)

	inventoryService := inventory.NewService(inventory.NewRepository(pool), auditLogger, integrations, logger)
	posService := pos.NewService(pos.NewRepository(pool), auditLogger, integrations, metrics, logger)
	payablesService := payables.NewService(payables.NewRepository(pool), auditLogger, reportCache, logger)
	reportsService := reports.NewService(reports.NewRepository(pool), reportCache,
		reports.Options{LowStockThreshold: cfg.LowStockThreshold}, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:  logger,
		Config:  cfg,
		Metrics: metrics,
		Readiness: []app.ReadinessCheck{
			{Name: "postgres", Check: pingPool(pool)},
			{Name: "redis", Check: cache.Ping(redisClient)},
		},
		POSHandler:       pos.NewHandler(logger, posService),
		InventoryHandler: inventory.NewHandler(logger, inventoryService),
		PayablesHandler:  payables.NewHandler(logger, payablesService),
		ReportsHandler:   reports.NewHandler(logger, reportsService),
		JobHandler:       jobs.NewHandler(inspector, logger),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("env", cfg.AppEnv))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.AppShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}

func pingPool(pool *pgxpool.Pool) func(context.Context) error {
	return func(ctx context.Context) error { return pool.Ping(ctx) }
}
