package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-ingest/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-ingest/pkg/models"
	"github.com/ekaya-inc/ekaya-ingest/pkg/repositories"
)

// mockDatasetRepo keeps committed rows in memory and enforces primary and
// foreign keys the way the real relations do.
type mockDatasetRepo struct {
	mu        sync.Mutex
	rows      map[models.EntityKind]map[string]models.Entity
	countErr  error
	clearErr  error
	clears    int
	rollbacks int
	// runs, when set, has its active run retired by ClearAll.
	runs *mockLoadRunRepo
	// failErr is returned by Insert for failKind once failAfter rows are pending.
	failKind  models.EntityKind
	failAfter int
	failErr   error
}

func newMockDatasetRepo() *mockDatasetRepo {
	m := &mockDatasetRepo{}
	m.reset()
	return m
}

func (m *mockDatasetRepo) reset() {
	m.rows = make(map[models.EntityKind]map[string]models.Entity)
	for _, k := range models.LoadOrder {
		m.rows[k] = make(map[string]models.Entity)
	}
}

func (m *mockDatasetRepo) count(kind models.EntityKind) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows[kind])
}

func (m *mockDatasetRepo) CountRows(ctx context.Context) (map[models.EntityKind]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.countErr != nil {
		return nil, m.countErr
	}
	counts := make(map[models.EntityKind]int64)
	for k, rows := range m.rows {
		counts[k] = int64(len(rows))
	}
	return counts, nil
}

func (m *mockDatasetRepo) ClearAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.clearErr != nil {
		return m.clearErr
	}
	m.clears++
	m.reset()
	if m.runs != nil {
		m.runs.clear()
	}
	return nil
}

func (m *mockDatasetRepo) BeginLoad(ctx context.Context, kind models.EntityKind) (repositories.EntityWriter, error) {
	return &mockEntityWriter{repo: m, kind: kind, pending: make(map[string]models.Entity)}, nil
}

func (m *mockDatasetRepo) exists(kind models.EntityKind, key string) bool {
	_, ok := m.rows[kind][key]
	return ok
}

type mockEntityWriter struct {
	repo    *mockDatasetRepo
	kind    models.EntityKind
	pending map[string]models.Entity
	done    bool
}

func (w *mockEntityWriter) Insert(ctx context.Context, e models.Entity) error {
	m := w.repo
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failErr != nil && m.failKind == w.kind && len(w.pending) >= m.failAfter {
		return m.failErr
	}

	if _, dup := w.pending[e.Key()]; dup || m.exists(w.kind, e.Key()) {
		return fmt.Errorf("%w: key (%s) already exists", apperrors.ErrUniquenessViolation, e.Key())
	}

	var missing string
	switch v := e.(type) {
	case *models.Order:
		if !m.exists(models.EntityCustomer, v.CustomerID) {
			missing = "customer " + v.CustomerID
		}
	case *models.OrderPayment:
		if !m.exists(models.EntityOrder, v.OrderID) {
			missing = "order " + v.OrderID
		}
	case *models.OrderItem:
		if !m.exists(models.EntityOrder, v.OrderID) {
			missing = "order " + v.OrderID
		} else if !m.exists(models.EntityProduct, v.ProductID) {
			missing = "product " + v.ProductID
		}
	}
	if missing != "" {
		return fmt.Errorf("%w: %s is not present", apperrors.ErrReferentialViolation, missing)
	}

	w.pending[e.Key()] = e
	return nil
}

func (w *mockEntityWriter) Commit(ctx context.Context) error {
	m := w.repo
	m.mu.Lock()
	defer m.mu.Unlock()
	if w.done {
		return errors.New("transaction already closed")
	}
	for k, e := range w.pending {
		m.rows[w.kind][k] = e
	}
	w.done = true
	return nil
}

func (w *mockEntityWriter) Rollback(ctx context.Context) error {
	m := w.repo
	m.mu.Lock()
	defer m.mu.Unlock()
	if !w.done {
		m.rollbacks++
	}
	w.done = true
	return nil
}

// mockLoadRunRepo records runs in memory.
type mockLoadRunRepo struct {
	mu        sync.Mutex
	runs      []*models.LoadRun
	active    *models.LoadRun
	getErr    error
	createErr error
	finishErr error
}

func newMockLoadRunRepo() *mockLoadRunRepo {
	return &mockLoadRunRepo{}
}

func (m *mockLoadRunRepo) Create(ctx context.Context) (*models.LoadRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return nil, m.createErr
	}
	run := &models.LoadRun{ID: uuid.New(), Status: models.LoadStatusInProgress, StartedAt: time.Now().UTC()}
	m.runs = append(m.runs, run)
	m.active = run
	return run, nil
}

func (m *mockLoadRunRepo) Finish(ctx context.Context, id uuid.UUID, status models.LoadStatus, report *models.LoadReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.finishErr != nil {
		return m.finishErr
	}
	for _, run := range m.runs {
		if run.ID == id {
			now := time.Now().UTC()
			run.Status = status
			run.FinishedAt = &now
			run.Report = report
			return nil
		}
	}
	return fmt.Errorf("load run %s not found", id)
}

func (m *mockLoadRunRepo) GetActive(ctx context.Context) (*models.LoadRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	if m.active == nil {
		return nil, nil
	}
	run := *m.active
	return &run, nil
}

// clear mirrors the run bookkeeping of DatasetRepository.ClearAll.
func (m *mockLoadRunRepo) clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active = nil
}

// mockReportRepo returns canned results and counts calls.
type mockReportRepo struct {
	customers  []models.CustomerSpend
	categories []models.CategorySales
	monthly    []models.MonthlySales
	err        error
	calls      int
	lastLimit  int
}

func (m *mockReportRepo) TopSpendingCustomers(ctx context.Context, limit int) ([]models.CustomerSpend, error) {
	m.calls++
	m.lastLimit = limit
	if m.err != nil {
		return nil, m.err
	}
	if limit < len(m.customers) {
		return m.customers[:limit], nil
	}
	return m.customers, nil
}

func (m *mockReportRepo) TopSellingCategories(ctx context.Context, limit int) ([]models.CategorySales, error) {
	m.calls++
	m.lastLimit = limit
	if m.err != nil {
		return nil, m.err
	}
	if limit < len(m.categories) {
		return m.categories[:limit], nil
	}
	return m.categories, nil
}

func (m *mockReportRepo) MonthlySales(ctx context.Context) ([]models.MonthlySales, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.monthly, nil
}

// mockReportCache is an in-memory ReportCache.
type mockReportCache struct {
	entries map[string][]byte
	getErr  error
	setErr  error
	sets    int
}

func newMockReportCache() *mockReportCache {
	return &mockReportCache{entries: make(map[string][]byte)}
}

func (c *mockReportCache) Get(ctx context.Context, runID uuid.UUID, key string, dest any) (bool, error) {
	if c.getErr != nil {
		return false, c.getErr
	}
	data, ok := c.entries[reportCacheKey(runID, key)]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(data, dest)
}

func (c *mockReportCache) Set(ctx context.Context, runID uuid.UUID, key string, value any) error {
	if c.setErr != nil {
		return c.setErr
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.sets++
	c.entries[reportCacheKey(runID, key)] = data
	return nil
}

// mockMigrator counts migration runs.
type mockMigrator struct {
	calls int
	err   error
}

func (m *mockMigrator) RunMigrations(logger *zap.Logger) error {
	m.calls++
	return m.err
}
