package reports

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"
)

// RepositoryPort exposes the reporting queries the service relies on.
type RepositoryPort interface {
	LowStock(ctx context.Context, threshold, limit int) ([]LowStockItem, error)
	TopSelling(ctx context.Context, since *time.Time, limit int) ([]TopSellingItem, error)
	ProductsByStock(ctx context.Context, limit int) ([]StockLevel, error)
	CategoryRollup(ctx context.Context) ([]CategorySummary, error)
	SalesTotals(ctx context.Context, since time.Time) (int, Amount, error)
	DailySales(ctx context.Context, since time.Time) ([]DailySales, error)
	Counts(ctx context.Context) (Counts, error)
	InvoiceStatus(ctx context.Context) ([]StatusCount, error)
	RecentInvoices(ctx context.Context, limit int) ([]RecentInvoice, error)
	RecentPayments(ctx context.Context, limit int) ([]RecentPayment, error)
}

// Options tunes report thresholds.
type Options struct {
	LowStockThreshold int
}

// Service coordinates report queries with the cache layer.
type Service struct {
	repo      RepositoryPort
	cache     *Cache
	threshold int
	logger    *slog.Logger
	now       func() time.Time
}

// NewService wires a RepositoryPort with a Cache helper. cache may be nil.
func NewService(repo RepositoryPort, cache *Cache, opts Options, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.LowStockThreshold <= 0 {
		opts.LowStockThreshold = DefaultLowStockThreshold
	}
	return &Service{repo: repo, cache: cache, threshold: opts.LowStockThreshold, logger: logger, now: time.Now}
}

// Threshold is the stock level below which a product counts as low.
func (s *Service) Threshold() int { return s.threshold }

// fetch serves load through the versioned cache.
func fetch[T any](ctx context.Context, s *Service, load func(context.Context) (T, error), parts ...string) (T, error) {
	if s.cache == nil {
		return load(ctx)
	}
	key, err := s.cache.BuildKey(ctx, append([]string{"reports"}, parts...)...)
	if err != nil {
		s.logger.Warn("reports cache unavailable", slog.Any("error", err))
		return load(ctx)
	}
	var out T
	err = s.cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (any, error) {
		return load(ctx)
	})
	return out, err
}

// LowStock lists active products below the configured threshold, emptiest first.
func (s *Service) LowStock(ctx context.Context, limit int) ([]LowStockItem, error) {
	limit = clampLimit(limit)
	return fetch(ctx, s, func(ctx context.Context) ([]LowStockItem, error) {
		return s.repo.LowStock(ctx, s.threshold, limit)
	}, "low_stock", strconv.Itoa(s.threshold), strconv.Itoa(limit))
}

// TopSelling ranks products by units sold. days <= 0 covers all time.
func (s *Service) TopSelling(ctx context.Context, days, limit int) ([]TopSellingItem, error) {
	limit = clampLimit(limit)
	var since *time.Time
	window := "all"
	if days > 0 {
		t := s.windowStart(days)
		since = &t
		window = t.Format(time.DateOnly)
	}
	return fetch(ctx, s, func(ctx context.Context) ([]TopSellingItem, error) {
		return s.repo.TopSelling(ctx, since, limit)
	}, "top_selling", window, strconv.Itoa(limit))
}

// ProductsByStock lists active products ordered by stock, highest first.
func (s *Service) ProductsByStock(ctx context.Context, limit int) ([]StockLevel, error) {
	limit = clampLimit(limit)
	return fetch(ctx, s, func(ctx context.Context) ([]StockLevel, error) {
		return s.repo.ProductsByStock(ctx, limit)
	}, "products_by_stock", strconv.Itoa(limit))
}

// CategoryRollup reports product count and units per category.
func (s *Service) CategoryRollup(ctx context.Context) ([]CategorySummary, error) {
	return fetch(ctx, s, s.repo.CategoryRollup, "categories")
}

// SalesSummary reports invoice count, revenue, the five best sellers and the
// per-day trend over the trailing window.
func (s *Service) SalesSummary(ctx context.Context, days int) (SalesSummary, error) {
	if days <= 0 {
		days = defaultSummaryDays
	}
	if days > maxSummaryDays {
		days = maxSummaryDays
	}
	since := s.windowStart(days)
	return fetch(ctx, s, func(ctx context.Context) (SalesSummary, error) {
		summary := SalesSummary{Days: days, Since: since}
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			count, revenue, err := s.repo.SalesTotals(gctx, since)
			summary.InvoiceCount, summary.Revenue = count, revenue
			return err
		})
		g.Go(func() error {
			var err error
			summary.TopProducts, err = s.repo.TopSelling(gctx, &since, dashboardListSize)
			return err
		})
		g.Go(func() error {
			var err error
			summary.Daily, err = s.repo.DailySales(gctx, since)
			return err
		})
		if err := g.Wait(); err != nil {
			return SalesSummary{}, err
		}
		return summary, nil
	}, "sales_summary", since.Format(time.DateOnly))
}

// Dashboard loads every widget in parallel. One failing query fails the whole
// dashboard.
func (s *Service) Dashboard(ctx context.Context) (Dashboard, error) {
	return fetch(ctx, s, s.loadDashboard, "dashboard", strconv.Itoa(s.threshold))
}

func (s *Service) loadDashboard(ctx context.Context) (Dashboard, error) {
	var d Dashboard
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		d.Counts, err = s.repo.Counts(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		d.LowStock, err = s.repo.LowStock(gctx, s.threshold, dashboardListSize)
		return err
	})
	g.Go(func() error {
		var err error
		d.InvoiceStatus, err = s.repo.InvoiceStatus(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		d.RecentInvoices, err = s.repo.RecentInvoices(gctx, dashboardListSize)
		return err
	})
	g.Go(func() error {
		var err error
		d.RecentPayments, err = s.repo.RecentPayments(gctx, dashboardListSize)
		return err
	})
	g.Go(func() error {
		rollup, err := s.repo.CategoryRollup(gctx)
		if len(rollup) > dashboardListSize {
			rollup = rollup[:dashboardListSize]
		}
		d.TopCategories = rollup
		return err
	})
	if err := g.Wait(); err != nil {
		return Dashboard{}, err
	}
	d.GeneratedAt = s.now().UTC()
	return d, nil
}

// Warm precomputes the dashboard and the default report pages into the cache.
func (s *Service) Warm(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, err := s.Dashboard(gctx)
		return err
	})
	g.Go(func() error {
		_, err := s.LowStock(gctx, defaultLimit)
		return err
	})
	g.Go(func() error {
		_, err := s.SalesSummary(gctx, defaultSummaryDays)
		return err
	})
	return g.Wait()
}

// windowStart is midnight UTC of the first day in a trailing window of days days.
func (s *Service) windowStart(days int) time.Time {
	today := s.now().UTC().Truncate(24 * time.Hour)
	return today.AddDate(0, 0, -(days - 1))
}
