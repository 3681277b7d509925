package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-ingest/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-ingest/pkg/models"
)

type reportTestContext struct {
	reports *mockReportRepo
	runs    *mockLoadRunRepo
	cache   *mockReportCache
	svc     ReportService
}

func setupReportTest(t *testing.T) *reportTestContext {
	t.Helper()
	reports := &mockReportRepo{
		customers: []models.CustomerSpend{
			{CustomerUniqueID: "B", TotalSpent: decimal.NewFromInt(250)},
			{CustomerUniqueID: "A", TotalSpent: decimal.NewFromInt(100)},
			{CustomerUniqueID: "C", TotalSpent: decimal.NewFromInt(40)},
		},
		categories: []models.CategorySales{
			{CategoryName: "toys", ItemsSold: 5},
			{CategoryName: "books", ItemsSold: 3},
		},
		monthly: []models.MonthlySales{
			{Year: 2017, Month: 1, AverageOrderValue: decimal.RequireFromString("150.00"), OrderCount: 2},
		},
	}
	runs := newMockLoadRunRepo()
	cache := newMockReportCache()
	return &reportTestContext{
		reports: reports,
		runs:    runs,
		cache:   cache,
		svc:     NewReportService(reports, runs, cache, zap.NewNop()),
	}
}

// completeRun records a finished, queryable run.
func (tc *reportTestContext) completeRun(t *testing.T) *models.LoadRun {
	t.Helper()
	run, err := tc.runs.Create(context.Background())
	require.NoError(t, err)
	require.NoError(t, tc.runs.Finish(context.Background(), run.ID, models.LoadStatusComplete, nil))
	return run
}

func TestReportService_TopSpendingCustomers(t *testing.T) {
	tc := setupReportTest(t)
	tc.completeRun(t)

	got, err := tc.svc.TopSpendingCustomers(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"B", "A", "C"},
		[]string{got[0].CustomerUniqueID, got[1].CustomerUniqueID, got[2].CustomerUniqueID})
	assert.Equal(t, 3, tc.reports.lastLimit)
}

func TestReportService_TopSellingCategories(t *testing.T) {
	tc := setupReportTest(t)
	tc.completeRun(t)

	got, err := tc.svc.TopSellingCategories(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, []models.CategorySales{{CategoryName: "toys", ItemsSold: 5}}, got)
}

func TestReportService_MonthlySalesPattern(t *testing.T) {
	tc := setupReportTest(t)
	tc.completeRun(t)

	got, err := tc.svc.MonthlySalesPattern(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 2017, got[0].Year)
	assert.Equal(t, 1, got[0].Month)
	assert.Equal(t, int64(2), got[0].OrderCount)
	assert.Equal(t, "150.00", got[0].AverageOrderValue.StringFixed(2))
}

func TestReportService_InvalidLimit(t *testing.T) {
	tc := setupReportTest(t)
	tc.completeRun(t)
	ctx := context.Background()

	for _, n := range []int{0, -1} {
		_, err := tc.svc.TopSpendingCustomers(ctx, n)
		assert.ErrorIs(t, err, apperrors.ErrInvalidParameter)

		_, err = tc.svc.TopSellingCategories(ctx, n)
		assert.ErrorIs(t, err, apperrors.ErrInvalidParameter)
	}
	assert.Zero(t, tc.reports.calls)
}

func TestReportService_NotLoaded(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, tc *reportTestContext)
	}{
		{
			name:  "never loaded",
			setup: func(t *testing.T, tc *reportTestContext) {},
		},
		{
			name: "in progress",
			setup: func(t *testing.T, tc *reportTestContext) {
				_, err := tc.runs.Create(context.Background())
				require.NoError(t, err)
			},
		},
		{
			name: "failed",
			setup: func(t *testing.T, tc *reportTestContext) {
				run, err := tc.runs.Create(context.Background())
				require.NoError(t, err)
				require.NoError(t, tc.runs.Finish(context.Background(), run.ID, models.LoadStatusFailed, nil))
			},
		},
		{
			name: "cleared",
			setup: func(t *testing.T, tc *reportTestContext) {
				tc.completeRun(t)
				tc.runs.clear()
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tc := setupReportTest(t)
			tt.setup(t, tc)
			ctx := context.Background()

			_, err := tc.svc.TopSpendingCustomers(ctx, 3)
			assert.ErrorIs(t, err, apperrors.ErrNotLoaded)
			_, err = tc.svc.TopSellingCategories(ctx, 3)
			assert.ErrorIs(t, err, apperrors.ErrNotLoaded)
			_, err = tc.svc.MonthlySalesPattern(ctx)
			assert.ErrorIs(t, err, apperrors.ErrNotLoaded)
			assert.Zero(t, tc.reports.calls)
		})
	}
}

func TestReportService_CachesPerRun(t *testing.T) {
	tc := setupReportTest(t)
	tc.completeRun(t)
	ctx := context.Background()

	first, err := tc.svc.TopSpendingCustomers(ctx, 2)
	require.NoError(t, err)
	second, err := tc.svc.TopSpendingCustomers(ctx, 2)
	require.NoError(t, err)

	assert.Equal(t, 1, tc.reports.calls, "second call is served from cache")
	require.Len(t, second, 2)
	for i := range first {
		assert.Equal(t, first[i].CustomerUniqueID, second[i].CustomerUniqueID)
		assert.True(t, first[i].TotalSpent.Equal(second[i].TotalSpent))
	}

	// A different limit is a different entry.
	_, err = tc.svc.TopSpendingCustomers(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, tc.reports.calls)

	// A new run invalidates everything cached for the previous one.
	tc.completeRun(t)
	_, err = tc.svc.TopSpendingCustomers(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, tc.reports.calls)
}

func TestReportService_CacheFailuresAreIgnored(t *testing.T) {
	tc := setupReportTest(t)
	tc.completeRun(t)
	tc.cache.getErr = errors.New("dial tcp: connection refused")
	tc.cache.setErr = errors.New("dial tcp: connection refused")

	got, err := tc.svc.TopSellingCategories(context.Background(), 5)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestReportService_EmptyResultIsNotNil(t *testing.T) {
	tc := setupReportTest(t)
	tc.completeRun(t)
	tc.reports.monthly = nil

	got, err := tc.svc.MonthlySalesPattern(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestReportService_RepositoryError(t *testing.T) {
	tc := setupReportTest(t)
	tc.completeRun(t)
	tc.reports.err = errors.New("relation \"orders\" does not exist")

	_, err := tc.svc.MonthlySalesPattern(context.Background())
	require.ErrorIs(t, err, tc.reports.err)
	assert.Zero(t, tc.cache.sets)
}

func TestReportService_NilCache(t *testing.T) {
	reports := &mockReportRepo{categories: []models.CategorySales{{CategoryName: "toys", ItemsSold: 1}}}
	runs := newMockLoadRunRepo()
	svc := NewReportService(reports, runs, nil, zap.NewNop())

	run, err := runs.Create(context.Background())
	require.NoError(t, err)
	require.NoError(t, runs.Finish(context.Background(), run.ID, models.LoadStatusComplete, nil))

	got, err := svc.TopSellingCategories(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestNewReportCache_NilClient(t *testing.T) {
	cache := NewReportCache(nil, time.Minute)
	_, ok := cache.(noopReportCache)
	assert.True(t, ok)
}
