package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-ingest/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-ingest/pkg/models"
	"github.com/ekaya-inc/ekaya-ingest/pkg/repositories"
)

// ReportService answers the fixed business questions over a completed load.
// Every method returns apperrors.ErrNotLoaded unless the active load run is
// complete.
type ReportService interface {
	// TopSpendingCustomers returns the n customers with the highest total
	// payments on delivered orders, highest first.
	TopSpendingCustomers(ctx context.Context, n int) ([]models.CustomerSpend, error)

	// TopSellingCategories returns the n categories with the most order
	// items, highest first. Products without a category are ignored.
	TopSellingCategories(ctx context.Context, n int) ([]models.CategorySales, error)

	// MonthlySalesPattern returns the average delivered order value and
	// order count per purchase month, oldest first.
	MonthlySalesPattern(ctx context.Context) ([]models.MonthlySales, error)
}

type reportService struct {
	reports repositories.ReportRepository
	runs    repositories.LoadRunRepository
	cache   ReportCache
	logger  *zap.Logger
}

func NewReportService(
	reports repositories.ReportRepository,
	runs repositories.LoadRunRepository,
	cache ReportCache,
	logger *zap.Logger,
) ReportService {
	if cache == nil {
		cache = noopReportCache{}
	}
	return &reportService{
		reports: reports,
		runs:    runs,
		cache:   cache,
		logger:  logger.Named("report-service"),
	}
}

var _ ReportService = (*reportService)(nil)

func (s *reportService) TopSpendingCustomers(ctx context.Context, n int) ([]models.CustomerSpend, error) {
	if err := validateLimit(n); err != nil {
		return nil, err
	}
	return cachedReport(ctx, s, fmt.Sprintf("top-customers:%d", n), func() ([]models.CustomerSpend, error) {
		return s.reports.TopSpendingCustomers(ctx, n)
	})
}

func (s *reportService) TopSellingCategories(ctx context.Context, n int) ([]models.CategorySales, error) {
	if err := validateLimit(n); err != nil {
		return nil, err
	}
	return cachedReport(ctx, s, fmt.Sprintf("top-categories:%d", n), func() ([]models.CategorySales, error) {
		return s.reports.TopSellingCategories(ctx, n)
	})
}

func (s *reportService) MonthlySalesPattern(ctx context.Context) ([]models.MonthlySales, error) {
	return cachedReport(ctx, s, "monthly-sales", func() ([]models.MonthlySales, error) {
		return s.reports.MonthlySales(ctx)
	})
}

// ensureLoaded returns the active run if the relations may be queried.
func (s *reportService) ensureLoaded(ctx context.Context) (*models.LoadRun, error) {
	run, err := s.runs.GetActive(ctx)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, fmt.Errorf("%w: nothing has been loaded", apperrors.ErrNotLoaded)
	}
	if !run.Status.Queryable() {
		return nil, fmt.Errorf("%w: load run %s is %s", apperrors.ErrNotLoaded, run.ID, run.Status)
	}
	return run, nil
}

// cachedReport runs fetch for the active run, consulting the cache first.
// Cache failures are logged and never fail the report.
func cachedReport[T any](ctx context.Context, s *reportService, key string, fetch func() ([]T, error)) ([]T, error) {
	run, err := s.ensureLoaded(ctx)
	if err != nil {
		return nil, err
	}

	var result []T
	hit, err := s.cache.Get(ctx, run.ID, key, &result)
	if err != nil {
		s.logger.Warn("Report cache read failed", zap.String("key", key), zap.Error(err))
	}
	if hit {
		return result, nil
	}

	result, err = fetch()
	if err != nil {
		return nil, err
	}
	if result == nil {
		result = []T{}
	}

	if err := s.cache.Set(ctx, run.ID, key, result); err != nil {
		s.logger.Warn("Report cache write failed", zap.String("key", key), zap.Error(err))
	}
	return result, nil
}

func validateLimit(n int) error {
	if n < 1 {
		return fmt.Errorf("%w: n must be at least 1, got %d", apperrors.ErrInvalidParameter, n)
	}
	return nil
}
