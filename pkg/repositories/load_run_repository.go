package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/ekaya-ingest/pkg/database"
	"github.com/ekaya-inc/ekaya-ingest/pkg/models"
)

// LoadRunRepository persists the lifecycle of load runs.
type LoadRunRepository interface {
	// Create inserts a new in-progress run.
	Create(ctx context.Context) (*models.LoadRun, error)
	// Finish records the final status and report of a run.
	Finish(ctx context.Context, id uuid.UUID, status models.LoadStatus, report *models.LoadReport) error
	// GetActive returns the newest run that has not been cleared, or nil.
	GetActive(ctx context.Context) (*models.LoadRun, error)
}

type loadRunRepository struct {
	db *database.DB
}

// NewLoadRunRepository creates a new LoadRunRepository.
func NewLoadRunRepository(db *database.DB) LoadRunRepository {
	return &loadRunRepository{db: db}
}

var _ LoadRunRepository = (*loadRunRepository)(nil)

func (r *loadRunRepository) Create(ctx context.Context) (*models.LoadRun, error) {
	run := &models.LoadRun{
		ID:     uuid.New(),
		Status: models.LoadStatusInProgress,
	}

	err := r.db.Pool.QueryRow(ctx, `
		INSERT INTO load_runs (id, status)
		VALUES ($1, $2)
		RETURNING started_at`,
		run.ID, run.Status,
	).Scan(&run.StartedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create load run: %w", err)
	}

	return run, nil
}

func (r *loadRunRepository) Finish(ctx context.Context, id uuid.UUID, status models.LoadStatus, report *models.LoadReport) error {
	var reportJSON []byte
	if report != nil {
		var err error
		reportJSON, err = json.Marshal(report)
		if err != nil {
			return fmt.Errorf("failed to marshal load report: %w", err)
		}
	}

	tag, err := r.db.Pool.Exec(ctx, `
		UPDATE load_runs
		SET status = $2, finished_at = now(), report = $3
		WHERE id = $1`,
		id, status, reportJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to finish load run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("load run %s not found", id)
	}
	return nil
}

func (r *loadRunRepository) GetActive(ctx context.Context) (*models.LoadRun, error) {
	var (
		run        models.LoadRun
		status     string
		finishedAt *time.Time
		clearedAt  *time.Time
		reportJSON []byte
	)

	err := r.db.Pool.QueryRow(ctx, `
		SELECT id, status, started_at, finished_at, cleared_at, report
		FROM load_runs
		WHERE cleared_at IS NULL
		ORDER BY started_at DESC
		LIMIT 1`,
	).Scan(&run.ID, &status, &run.StartedAt, &finishedAt, &clearedAt, &reportJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active load run: %w", err)
	}

	run.Status = models.LoadStatus(status)
	run.FinishedAt = finishedAt
	run.ClearedAt = clearedAt

	if len(reportJSON) > 0 {
		var report models.LoadReport
		if err := json.Unmarshal(reportJSON, &report); err != nil {
			return nil, fmt.Errorf("failed to unmarshal load report: %w", err)
		}
		run.Report = &report
	}

	return &run, nil
}
