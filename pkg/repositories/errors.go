package repositories

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ekaya-inc/ekaya-ingest/pkg/apperrors"
)

// PostgreSQL SQLSTATE codes that reject a single row.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
	pgNotNullViolation    = "23502"
	pgNumericOutOfRange   = "22003"
)

// classifyInsertError maps row-level constraint failures onto the record
// error kinds. Anything else is returned wrapped and unclassified so the
// caller can treat it as fatal.
func classifyInsertError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return fmt.Errorf("failed to insert row: %w", err)
	}

	switch pgErr.Code {
	case pgUniqueViolation:
		return fmt.Errorf("%w: %s", apperrors.ErrUniquenessViolation, describe(pgErr))
	case pgForeignKeyViolation:
		return fmt.Errorf("%w: %s", apperrors.ErrReferentialViolation, describe(pgErr))
	case pgNotNullViolation:
		return fmt.Errorf("%w: %s", apperrors.ErrMandatoryFieldMissing, describe(pgErr))
	case pgCheckViolation, pgNumericOutOfRange:
		return fmt.Errorf("%w: %s", apperrors.ErrFieldCoercion, describe(pgErr))
	default:
		return fmt.Errorf("failed to insert row: %w", err)
	}
}

// describe prefers the server's DETAIL line, which names the offending key.
func describe(pgErr *pgconn.PgError) string {
	if pgErr.Detail != "" {
		return pgErr.Detail
	}
	return pgErr.Message
}
