package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-ingest/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-ingest/pkg/repositories"
)

// Migrator applies the embedded schema migrations.
type Migrator interface {
	RunMigrations(logger *zap.Logger) error
}

// SchemaService creates the dataset relations and empties them.
type SchemaService interface {
	// DefineSchema creates the five relations and their constraints.
	// Running it against an existing schema is a no-op.
	DefineSchema(ctx context.Context) error

	// ClearAll removes every row from the five relations in one transaction.
	// Returns apperrors.ErrLoadInProgress while a load is running.
	ClearAll(ctx context.Context) error
}

type schemaService struct {
	migrator Migrator
	dataset  repositories.DatasetRepository
	guard    *LoadGuard
	logger   *zap.Logger
}

func NewSchemaService(
	migrator Migrator,
	dataset repositories.DatasetRepository,
	guard *LoadGuard,
	logger *zap.Logger,
) SchemaService {
	return &schemaService{
		migrator: migrator,
		dataset:  dataset,
		guard:    guard,
		logger:   logger.Named("schema-service"),
	}
}

var _ SchemaService = (*schemaService)(nil)

func (s *schemaService) DefineSchema(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.migrator.RunMigrations(s.logger); err != nil {
		return fmt.Errorf("failed to define schema: %w", err)
	}
	return nil
}

func (s *schemaService) ClearAll(ctx context.Context) error {
	if !s.guard.TryAcquire() {
		return fmt.Errorf("cannot clear relations: %w", apperrors.ErrLoadInProgress)
	}
	defer s.guard.Release()

	if err := s.dataset.ClearAll(ctx); err != nil {
		s.logger.Error("Failed to clear relations", zap.Error(err))
		return err
	}

	s.logger.Info("Cleared all relations")
	return nil
}
