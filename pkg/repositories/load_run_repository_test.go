//go:build integration

package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-ingest/pkg/models"
	"github.com/ekaya-inc/ekaya-ingest/pkg/testhelpers"
)

func TestLoadRunRepository_Lifecycle(t *testing.T) {
	testDB := testhelpers.GetTestDB(t)
	testDB.Reset(t)
	repo := NewLoadRunRepository(testDB.DB)
	ctx := context.Background()

	active, err := repo.GetActive(ctx)
	require.NoError(t, err)
	assert.Nil(t, active)

	run, err := repo.Create(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, run.ID)
	assert.Equal(t, models.LoadStatusInProgress, run.Status)
	assert.False(t, run.StartedAt.IsZero())

	active, err = repo.GetActive(ctx)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, run.ID, active.ID)
	assert.Equal(t, models.LoadStatusInProgress, active.Status)
	assert.Nil(t, active.FinishedAt)
	assert.Nil(t, active.Report)

	report := &models.LoadReport{
		RunID:     run.ID,
		Status:    models.LoadStatusComplete,
		Delimiter: ";",
		StartedAt: run.StartedAt,
		Entities: []*models.EntityReport{
			{Kind: models.EntityCustomer, Inserted: 3, Rejected: 1,
				Rejections: []models.Rejection{{Line: 4, Code: "UniquenessViolation", Reason: "duplicate"}}},
		},
	}
	require.NoError(t, repo.Finish(ctx, run.ID, models.LoadStatusComplete, report))

	active, err = repo.GetActive(ctx)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, models.LoadStatusComplete, active.Status)
	require.NotNil(t, active.FinishedAt)
	require.NotNil(t, active.Report)
	assert.Equal(t, 3, active.Report.Entity(models.EntityCustomer).Inserted)
	assert.Equal(t, 4, active.Report.Entity(models.EntityCustomer).Rejections[0].Line)
}

func TestLoadRunRepository_NewestRunWins(t *testing.T) {
	testDB := testhelpers.GetTestDB(t)
	testDB.Reset(t)
	repo := NewLoadRunRepository(testDB.DB)
	ctx := context.Background()

	first, err := repo.Create(ctx)
	require.NoError(t, err)
	require.NoError(t, repo.Finish(ctx, first.ID, models.LoadStatusFailed, nil))

	time.Sleep(10 * time.Millisecond)
	second, err := repo.Create(ctx)
	require.NoError(t, err)

	active, err := repo.GetActive(ctx)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, second.ID, active.ID)
}

func TestLoadRunRepository_FinishUnknownRun(t *testing.T) {
	testDB := testhelpers.GetTestDB(t)
	testDB.Reset(t)
	repo := NewLoadRunRepository(testDB.DB)

	err := repo.Finish(context.Background(), uuid.New(), models.LoadStatusComplete, nil)
	require.Error(t, err)
}
