package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/stockline/stockline/internal/inventory"
	"github.com/stockline/stockline/internal/observability"
	"github.com/stockline/stockline/internal/payables"
	"github.com/stockline/stockline/internal/platform/httpx"
	"github.com/stockline/stockline/internal/pos"
	"github.com/stockline/stockline/internal/reports"
	"github.com/stockline/stockline/jobs"
)

// ReadinessCheck probes one dependency for /readyz.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	Metrics          *observability.Metrics
	Readiness        []ReadinessCheck
	POSHandler       *pos.Handler
	InventoryHandler *inventory.Handler
	PayablesHandler  *payables.Handler
	ReportsHandler   *reports.Handler
	JobHandler       *jobs.Handler
}

// NewRouter constructs the chi.Router with Stockline defaults.
func NewRouter(params RouterParams) http.Handler {
	if params.Logger == nil {
		params.Logger = slog.Default()
	}
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteProblem(w, httpx.ProblemDetail{Title: "Not Found", Status: http.StatusNotFound, Code: httpx.CodeNotFound})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusMethodNotAllowed, "Method Not Allowed", r.Method+" is not supported on "+r.URL.Path)
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", readinessHandler(params.Logger, params.Readiness))

	rateLimit := 0
	if params.Config != nil {
		rateLimit = params.Config.RateLimitPerMinute
	}
	r.Route("/api/v1", func(api chi.Router) {
		api.Use(RateLimit(rateLimit))
		if params.POSHandler != nil {
			params.POSHandler.MountRoutes(api)
		}
		if params.InventoryHandler != nil {
			params.InventoryHandler.MountRoutes(api)
		}
		if params.PayablesHandler != nil {
			params.PayablesHandler.MountRoutes(api)
		}
		if params.ReportsHandler != nil {
			params.ReportsHandler.MountRoutes(api)
		}
	})

	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}

func readinessHandler(logger *slog.Logger, checks []ReadinessCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		results := make([]string, len(checks))
		g, gctx := errgroup.WithContext(ctx)
		for i, c := range checks {
			g.Go(func() error {
				if err := c.Check(gctx); err != nil {
					results[i] = "unavailable"
					logger.Warn("readiness check failed", slog.String("check", c.Name), slog.Any("error", err))
					return err
				}
				results[i] = "ok"
				return nil
			})
		}
		status := http.StatusOK
		if err := g.Wait(); err != nil {
			status = http.StatusServiceUnavailable
		}

		body := map[string]any{"status": "ok"}
		if status != http.StatusOK {
			body["status"] = "unavailable"
		}
		detail := make(map[string]string, len(checks))
		for i, c := range checks {
			detail[c.Name] = results[i]
		}
		body["checks"] = detail
		httpx.JSON(w, status, body)
	}
}
