package handlers

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ekaya-inc/ekaya-ingest/pkg/models"
)

type mockLoaderService struct {
	status     *models.LoadRun
	statusErr  error
	startErr   error
	started    int
	gotSources map[models.EntityKind]string
}

func (m *mockLoaderService) LoadAll(ctx context.Context, sources map[models.EntityKind]string) (*models.LoadReport, error) {
	return nil, nil
}

func (m *mockLoaderService) Start(ctx context.Context, sources map[models.EntityKind]string) (*models.LoadRun, error) {
	if m.startErr != nil {
		return nil, m.startErr
	}
	m.started++
	m.gotSources = sources
	return &models.LoadRun{ID: uuid.New(), Status: models.LoadStatusInProgress, StartedAt: time.Now().UTC()}, nil
}

func (m *mockLoaderService) Status(ctx context.Context) (*models.LoadRun, error) {
	if m.statusErr != nil {
		return nil, m.statusErr
	}
	if m.status == nil {
		return &models.LoadRun{Status: models.LoadStatusNone}, nil
	}
	return m.status, nil
}

type mockSchemaService struct {
	clearErr error
	clears   int
}

func (m *mockSchemaService) DefineSchema(ctx context.Context) error { return nil }

func (m *mockSchemaService) ClearAll(ctx context.Context) error {
	if m.clearErr != nil {
		return m.clearErr
	}
	m.clears++
	return nil
}

type mockReportService struct {
	customers  []models.CustomerSpend
	categories []models.CategorySales
	monthly    []models.MonthlySales
	err        error
	lastLimit  int
}

func (m *mockReportService) TopSpendingCustomers(ctx context.Context, n int) ([]models.CustomerSpend, error) {
	m.lastLimit = n
	return m.customers, m.err
}

func (m *mockReportService) TopSellingCategories(ctx context.Context, n int) ([]models.CategorySales, error) {
	m.lastLimit = n
	return m.categories, m.err
}

func (m *mockReportService) MonthlySalesPattern(ctx context.Context) ([]models.MonthlySales, error) {
	return m.monthly, m.err
}
