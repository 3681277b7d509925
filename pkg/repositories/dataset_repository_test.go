//go:build integration

package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-ingest/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-ingest/pkg/models"
	"github.com/ekaya-inc/ekaya-ingest/pkg/testhelpers"
)

// datasetTestContext holds test dependencies for dataset repository tests.
type datasetTestContext struct {
	t      *testing.T
	testDB *testhelpers.TestDB
	repo   DatasetRepository
}

func setupDatasetTest(t *testing.T) *datasetTestContext {
	testDB := testhelpers.GetTestDB(t)
	testDB.Reset(t)
	return &datasetTestContext{
		t:      t,
		testDB: testDB,
		repo:   NewDatasetRepository(testDB.DB),
	}
}

// insertAll loads entities of one kind in a single committed transaction and
// returns the per-row errors.
func (tc *datasetTestContext) insertAll(kind models.EntityKind, entities ...models.Entity) []error {
	tc.t.Helper()
	ctx := context.Background()

	w, err := tc.repo.BeginLoad(ctx, kind)
	require.NoError(tc.t, err)

	errs := make([]error, len(entities))
	for i, e := range entities {
		errs[i] = w.Insert(ctx, e)
	}
	require.NoError(tc.t, w.Commit(ctx))
	return errs
}

func ptr[T any](v T) *T { return &v }

func purchase(s string) time.Time {
	ts, err := time.Parse("2006-01-02 15:04:05", s)
	if err != nil {
		panic(err)
	}
	return ts
}

func TestDatasetRepository_InsertAndCount(t *testing.T) {
	tc := setupDatasetTest(t)

	errs := tc.insertAll(models.EntityCustomer,
		&models.Customer{CustomerID: "c1", CustomerUniqueID: "u1", ZipCodePrefix: ptr("01001")},
		&models.Customer{CustomerID: "c2", CustomerUniqueID: "u2"},
	)
	for _, err := range errs {
		require.NoError(t, err)
	}

	errs = tc.insertAll(models.EntityProduct,
		&models.Product{ProductID: "p1", CategoryName: ptr("toys"), WeightG: ptr(250)},
	)
	require.NoError(t, errs[0])

	errs = tc.insertAll(models.EntityOrder,
		&models.Order{OrderID: "o1", CustomerID: "c1", Status: "delivered", PurchaseTimestamp: purchase("2017-01-05 10:00:00")},
	)
	require.NoError(t, errs[0])

	errs = tc.insertAll(models.EntityOrderPayment,
		&models.OrderPayment{OrderID: "o1", Sequential: 1, PaymentType: ptr("credit_card"), Value: decimal.RequireFromString("99.90")},
	)
	require.NoError(t, errs[0])

	errs = tc.insertAll(models.EntityOrderItem,
		&models.OrderItem{OrderID: "o1", OrderItemID: 1, ProductID: "p1", Price: decimal.RequireFromString("89.90"), FreightValue: decimal.RequireFromString("10")},
	)
	require.NoError(t, errs[0])

	counts, err := tc.repo.CountRows(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[models.EntityKind]int64{
		models.EntityCustomer:     2,
		models.EntityProduct:      1,
		models.EntityOrder:        1,
		models.EntityOrderPayment: 1,
		models.EntityOrderItem:    1,
	}, counts)

	var zip string
	require.NoError(t, tc.testDB.DB.Pool.QueryRow(context.Background(),
		`SELECT customer_zip_code_prefix FROM customers WHERE customer_id = 'c1'`).Scan(&zip))
	assert.Equal(t, "01001", zip, "leading zeros must survive")
}

func TestDatasetRepository_RowFailuresDoNotAbortTransaction(t *testing.T) {
	tc := setupDatasetTest(t)

	errs := tc.insertAll(models.EntityCustomer,
		&models.Customer{CustomerID: "c1", CustomerUniqueID: "u1"},
		&models.Customer{CustomerID: "c1", CustomerUniqueID: "u1-dup"},
		&models.Customer{CustomerID: "c2", CustomerUniqueID: "u2"},
	)

	assert.NoError(t, errs[0])
	assert.ErrorIs(t, errs[1], apperrors.ErrUniquenessViolation)
	assert.NoError(t, errs[2])

	counts, err := tc.repo.CountRows(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts[models.EntityCustomer])
}

func TestDatasetRepository_ReferentialViolation(t *testing.T) {
	tc := setupDatasetTest(t)

	errs := tc.insertAll(models.EntityOrder,
		&models.Order{OrderID: "o1", CustomerID: "missing", Status: "delivered", PurchaseTimestamp: purchase("2017-01-05 10:00:00")},
		&models.Order{OrderID: "o2", CustomerID: "missing", Status: "shipped", PurchaseTimestamp: purchase("2017-01-06 10:00:00")},
	)

	for _, err := range errs {
		assert.ErrorIs(t, err, apperrors.ErrReferentialViolation)
	}

	counts, err := tc.repo.CountRows(context.Background())
	require.NoError(t, err)
	assert.Zero(t, counts[models.EntityOrder])
}

func TestDatasetRepository_RejectsWrongKind(t *testing.T) {
	tc := setupDatasetTest(t)
	ctx := context.Background()

	w, err := tc.repo.BeginLoad(ctx, models.EntityProduct)
	require.NoError(t, err)
	defer func() { _ = w.Rollback(ctx) }()

	err = w.Insert(ctx, &models.Customer{CustomerID: "c1", CustomerUniqueID: "u1"})
	require.Error(t, err)
	assert.False(t, apperrors.IsRecordLevel(err))
}

func TestDatasetRepository_RollbackDiscardsFile(t *testing.T) {
	tc := setupDatasetTest(t)
	ctx := context.Background()

	w, err := tc.repo.BeginLoad(ctx, models.EntityProduct)
	require.NoError(t, err)
	require.NoError(t, w.Insert(ctx, &models.Product{ProductID: "p1"}))
	require.NoError(t, w.Rollback(ctx))

	counts, err := tc.repo.CountRows(ctx)
	require.NoError(t, err)
	assert.Zero(t, counts[models.EntityProduct])
}

func TestDatasetRepository_ClearAll(t *testing.T) {
	tc := setupDatasetTest(t)
	ctx := context.Background()

	tc.insertAll(models.EntityCustomer, &models.Customer{CustomerID: "c1", CustomerUniqueID: "u1"})
	tc.insertAll(models.EntityProduct, &models.Product{ProductID: "p1"})
	tc.insertAll(models.EntityOrder,
		&models.Order{OrderID: "o1", CustomerID: "c1", Status: "delivered", PurchaseTimestamp: purchase("2017-01-05 10:00:00")})
	tc.insertAll(models.EntityOrderItem,
		&models.OrderItem{OrderID: "o1", OrderItemID: 1, ProductID: "p1", Price: decimal.NewFromInt(5), FreightValue: decimal.Zero})

	runs := NewLoadRunRepository(tc.testDB.DB)
	_, err := runs.Create(ctx)
	require.NoError(t, err)

	require.NoError(t, tc.repo.ClearAll(ctx))

	counts, err := tc.repo.CountRows(ctx)
	require.NoError(t, err)
	for kind, n := range counts {
		assert.Zero(t, n, "%s should be empty", kind)
	}

	active, err := runs.GetActive(ctx)
	require.NoError(t, err)
	assert.Nil(t, active, "clearing must retire the active run")

	// Clearing empty relations is a no-op.
	require.NoError(t, tc.repo.ClearAll(ctx))
}
