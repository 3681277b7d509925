package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-ingest/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-ingest/pkg/models"
	"github.com/ekaya-inc/ekaya-ingest/pkg/records"
	"github.com/ekaya-inc/ekaya-ingest/pkg/repositories"
)

// LoaderService populates the dataset relations from the five input files.
type LoaderService interface {
	// LoadAll loads every kind in dependency order and returns the report.
	// Record-level failures are rejected and counted; a file-level failure
	// skips the file and every kind that depends on it. A database failure
	// outside a single row aborts the run and is returned together with the
	// partial report.
	//
	// Returns apperrors.ErrLoadInProgress if another load is running and
	// apperrors.ErrAlreadyLoaded if any relation already holds rows.
	LoadAll(ctx context.Context, sources map[models.EntityKind]string) (*models.LoadReport, error)

	// Start performs the same checks as LoadAll, then loads in the
	// background. It returns the in-progress run; poll Status for the result.
	Start(ctx context.Context, sources map[models.EntityKind]string) (*models.LoadRun, error)

	// Status returns the active load run. Its Status is LoadStatusNone when
	// nothing has been loaded since the last clear.
	Status(ctx context.Context) (*models.LoadRun, error)
}

// LoaderConfig configures the record parser and report size.
type LoaderConfig struct {
	Delimiter rune
	// MaxRejections caps the rejection reasons kept per kind. Zero keeps all.
	MaxRejections int
}

type loaderService struct {
	dataset repositories.DatasetRepository
	runs    repositories.LoadRunRepository
	guard   *LoadGuard
	cfg     LoaderConfig
	logger  *zap.Logger
}

func NewLoaderService(
	dataset repositories.DatasetRepository,
	runs repositories.LoadRunRepository,
	guard *LoadGuard,
	cfg LoaderConfig,
	logger *zap.Logger,
) LoaderService {
	if cfg.Delimiter == 0 {
		cfg.Delimiter = ';'
	}
	return &loaderService{
		dataset: dataset,
		runs:    runs,
		guard:   guard,
		cfg:     cfg,
		logger:  logger.Named("loader-service"),
	}
}

var _ LoaderService = (*loaderService)(nil)

func (s *loaderService) LoadAll(ctx context.Context, sources map[models.EntityKind]string) (*models.LoadReport, error) {
	run, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer s.guard.Release()

	return s.execute(ctx, run, sources)
}

func (s *loaderService) Start(ctx context.Context, sources map[models.EntityKind]string) (*models.LoadRun, error) {
	run, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}

	// The load outlives the request that started it.
	bgCtx := context.WithoutCancel(ctx)
	go func() {
		defer s.guard.Release()
		if _, err := s.execute(bgCtx, run, sources); err != nil {
			s.logger.Error("Background load failed",
				zap.String("run_id", run.ID.String()),
				zap.Error(err))
		}
	}()

	return run, nil
}

func (s *loaderService) Status(ctx context.Context) (*models.LoadRun, error) {
	run, err := s.runs.GetActive(ctx)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return &models.LoadRun{Status: models.LoadStatusNone}, nil
	}
	return run, nil
}

// begin takes the guard and records a new run. On success the caller owns
// the guard and must release it.
func (s *loaderService) begin(ctx context.Context) (*models.LoadRun, error) {
	if !s.guard.TryAcquire() {
		return nil, apperrors.ErrLoadInProgress
	}

	run, err := s.createRun(ctx)
	if err != nil {
		s.guard.Release()
		return nil, err
	}
	return run, nil
}

func (s *loaderService) createRun(ctx context.Context) (*models.LoadRun, error) {
	counts, err := s.dataset.CountRows(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to check relations: %w", err)
	}
	for _, kind := range models.LoadOrder {
		if counts[kind] > 0 {
			return nil, fmt.Errorf("%w: %s holds %d rows, clear before loading",
				apperrors.ErrAlreadyLoaded, kind.TableName(), counts[kind])
		}
	}

	run, err := s.runs.Create(ctx)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Load started", zap.String("run_id", run.ID.String()))
	return run, nil
}

func (s *loaderService) execute(ctx context.Context, run *models.LoadRun, sources map[models.EntityKind]string) (*models.LoadReport, error) {
	report := &models.LoadReport{
		RunID:     run.ID,
		Status:    models.LoadStatusInProgress,
		Delimiter: string(s.cfg.Delimiter),
		StartedAt: run.StartedAt,
	}

	// failed records kinds whose own file could not be loaded.
	var failed []models.EntityKind
	var fatal error

	for _, kind := range models.LoadOrder {
		entity := &models.EntityReport{Kind: kind, Source: sources[kind]}
		report.Entities = append(report.Entities, entity)

		if parent, ok := failedParent(kind, failed); ok {
			entity.Skipped = true
			entity.SkipReason = fmt.Sprintf("%s was not loaded", parent.TableName())
			entity.SkippedRows = s.countRows(entity.Source)
			s.logger.Warn("Skipping entity, a parent failed to load",
				zap.String("kind", string(kind)),
				zap.String("parent", string(parent)),
				zap.Int("skipped_rows", entity.SkippedRows))
			continue
		}

		err := s.loadFile(ctx, entity)
		if err == nil {
			s.logger.Info("Loaded entity",
				zap.String("kind", string(kind)),
				zap.Int("inserted", entity.Inserted),
				zap.Int("rejected", entity.Rejected))
			continue
		}

		if isFileLevel(err) {
			entity.Skipped = true
			entity.FileError = apperrors.Code(err)
			entity.SkipReason = err.Error()
			entity.SkippedRows = s.countRows(entity.Source)
			failed = append(failed, kind)
			s.logger.Warn("Entity file could not be loaded",
				zap.String("kind", string(kind)),
				zap.String("code", entity.FileError),
				zap.Error(err))
			continue
		}

		fatal = fmt.Errorf("load aborted while loading %s: %w", kind.TableName(), err)
		break
	}

	report.FinishedAt = time.Now().UTC()
	report.Status = models.LoadStatusComplete
	if fatal != nil || anyParentFailed(failed) {
		report.Status = models.LoadStatusFailed
	}

	// Record the outcome even when the caller's context is done, otherwise
	// the run would stay in progress forever.
	if err := s.runs.Finish(context.WithoutCancel(ctx), run.ID, report.Status, report); err != nil {
		s.logger.Error("Failed to record load run outcome",
			zap.String("run_id", run.ID.String()),
			zap.Error(err))
		if fatal == nil {
			fatal = err
		}
	}

	inserted, rejected, skipped := report.Totals()
	s.logger.Info("Load finished",
		zap.String("run_id", run.ID.String()),
		zap.String("status", string(report.Status)),
		zap.Int("inserted", inserted),
		zap.Int("rejected", rejected),
		zap.Int("skipped_kinds", skipped))

	return report, fatal
}

// loadFile streams one file into its relation inside one transaction.
// A returned error is either file-level (see isFileLevel) or fatal; row
// failures are recorded on entity and never returned.
func (s *loaderService) loadFile(ctx context.Context, entity *models.EntityReport) error {
	reader, err := records.Open(entity.Source, entity.Kind, s.cfg.Delimiter)
	if err != nil {
		return err
	}
	defer reader.Close()

	writer, err := s.dataset.BeginLoad(ctx, entity.Kind)
	if err != nil {
		return err
	}

	for rec, err := range reader.All() {
		if err != nil {
			var recErr *records.RecordError
			if errors.As(err, &recErr) {
				s.reject(entity, recErr.Line, recErr.Field, recErr.Err)
				continue
			}
			s.rollback(ctx, writer, entity.Kind)
			return err
		}

		if err := writer.Insert(ctx, rec.Entity); err != nil {
			if apperrors.IsRecordLevel(err) {
				s.reject(entity, rec.Line, "", err)
				continue
			}
			s.rollback(ctx, writer, entity.Kind)
			return err
		}
		entity.Inserted++
	}

	return writer.Commit(ctx)
}

func (s *loaderService) reject(entity *models.EntityReport, line int, field string, err error) {
	entity.Rejected++
	s.logger.Debug("Rejected record",
		zap.String("kind", string(entity.Kind)),
		zap.Int("line", line),
		zap.String("field", field),
		zap.Error(err))

	if s.cfg.MaxRejections > 0 && len(entity.Rejections) >= s.cfg.MaxRejections {
		entity.RejectionsTruncated = true
		return
	}
	entity.Rejections = append(entity.Rejections, models.Rejection{
		Line:   line,
		Field:  field,
		Code:   apperrors.Code(err),
		Reason: err.Error(),
	})
}

func (s *loaderService) rollback(ctx context.Context, writer repositories.EntityWriter, kind models.EntityKind) {
	if err := writer.Rollback(context.WithoutCancel(ctx)); err != nil {
		s.logger.Error("Failed to roll back entity load",
			zap.String("kind", string(kind)),
			zap.Error(err))
	}
}

// countRows reports how many rows a file held, or zero if it cannot be read.
func (s *loaderService) countRows(path string) int {
	if path == "" {
		return 0
	}
	if _, err := os.Stat(path); err != nil {
		return 0
	}
	n, err := records.CountRecords(path, s.cfg.Delimiter)
	if err != nil {
		s.logger.Debug("Could not count skipped rows", zap.String("path", path), zap.Error(err))
		return 0
	}
	return n
}

// failedParent returns the first failed kind that kind depends on.
func failedParent(kind models.EntityKind, failed []models.EntityKind) (models.EntityKind, bool) {
	for _, f := range failed {
		if kind.DependsOn(f) {
			return f, true
		}
	}
	return "", false
}

// anyParentFailed reports whether a failed kind left other kinds unloaded.
// A missing leaf file is reported but keeps the run queryable.
func anyParentFailed(failed []models.EntityKind) bool {
	for _, kind := range failed {
		if kind.HasDependents() {
			return true
		}
	}
	return false
}

func isFileLevel(err error) bool {
	return errors.Is(err, apperrors.ErrFileNotFound) || errors.Is(err, apperrors.ErrHeaderMismatch)
}
