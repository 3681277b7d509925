package repositories

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/ekaya-ingest/pkg/database"
	"github.com/ekaya-inc/ekaya-ingest/pkg/models"
)

// DatasetRepository provides write access to the five dataset relations.
type DatasetRepository interface {
	// CountRows returns the number of rows in every relation.
	CountRows(ctx context.Context) (map[models.EntityKind]int64, error)
	// ClearAll deletes every row children-first in one transaction and marks
	// active load runs as cleared. Nothing is deleted if any step fails.
	ClearAll(ctx context.Context) error
	// BeginLoad opens a transaction for inserting rows of kind.
	BeginLoad(ctx context.Context, kind models.EntityKind) (EntityWriter, error)
}

// EntityWriter inserts rows of a single kind inside one transaction.
type EntityWriter interface {
	// Insert adds one row under its own savepoint. Constraint failures wrap a
	// record-level apperrors sentinel and leave the transaction usable; any
	// other error means the transaction is broken and must be rolled back.
	Insert(ctx context.Context, entity models.Entity) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

type datasetRepository struct {
	db *database.DB
}

// NewDatasetRepository creates a new DatasetRepository.
func NewDatasetRepository(db *database.DB) DatasetRepository {
	return &datasetRepository{db: db}
}

var _ DatasetRepository = (*datasetRepository)(nil)

func (r *datasetRepository) CountRows(ctx context.Context) (map[models.EntityKind]int64, error) {
	counts := make(map[models.EntityKind]int64, len(models.LoadOrder))
	for _, kind := range models.LoadOrder {
		var n int64
		query := "SELECT count(*) FROM " + pgx.Identifier{kind.TableName()}.Sanitize()
		if err := r.db.Pool.QueryRow(ctx, query).Scan(&n); err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", kind.TableName(), err)
		}
		counts[kind] = n
	}
	return counts, nil
}

func (r *datasetRepository) ClearAll(ctx context.Context) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, kind := range models.ClearOrder {
		query := "DELETE FROM " + pgx.Identifier{kind.TableName()}.Sanitize()
		if _, err := tx.Exec(ctx, query); err != nil {
			return fmt.Errorf("failed to clear %s: %w", kind.TableName(), err)
		}
	}

	if _, err := tx.Exec(ctx, `UPDATE load_runs SET cleared_at = now() WHERE cleared_at IS NULL`); err != nil {
		return fmt.Errorf("failed to mark load runs cleared: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (r *datasetRepository) BeginLoad(ctx context.Context, kind models.EntityKind) (EntityWriter, error) {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin %s load: %w", kind, err)
	}
	return &entityWriter{tx: tx, kind: kind}, nil
}

type entityWriter struct {
	tx   pgx.Tx
	kind models.EntityKind
}

func (w *entityWriter) Insert(ctx context.Context, entity models.Entity) error {
	if entity.Kind() != w.kind {
		return fmt.Errorf("cannot insert %s into %s load", entity.Kind(), w.kind)
	}

	query, args, err := insertStatement(entity)
	if err != nil {
		return err
	}

	// pgx runs a nested Begin as SAVEPOINT, so one bad row only undoes itself.
	sp, err := w.tx.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to create savepoint: %w", err)
	}

	if _, execErr := sp.Exec(ctx, query, args...); execErr != nil {
		if rbErr := sp.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("failed to roll back savepoint after %v: %w", execErr, rbErr)
		}
		return classifyInsertError(execErr)
	}

	if err := sp.Commit(ctx); err != nil {
		return fmt.Errorf("failed to release savepoint: %w", err)
	}
	return nil
}

func (w *entityWriter) Commit(ctx context.Context) error {
	if err := w.tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit %s load: %w", w.kind, err)
	}
	return nil
}

func (w *entityWriter) Rollback(ctx context.Context) error {
	return w.tx.Rollback(ctx)
}

func insertStatement(entity models.Entity) (string, []any, error) {
	switch e := entity.(type) {
	case *models.Customer:
		return `
			INSERT INTO customers (customer_id, customer_unique_id, customer_zip_code_prefix,
			                       customer_city, customer_state)
			VALUES ($1, $2, $3, $4, $5)`,
			[]any{e.CustomerID, e.CustomerUniqueID, e.ZipCodePrefix, e.City, e.State}, nil

	case *models.Product:
		return `
			INSERT INTO products (product_id, product_category_name, product_name_length,
			                      product_description_length, product_photos_qty, product_weight_g,
			                      product_length_cm, product_height_cm, product_width_cm)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			[]any{e.ProductID, e.CategoryName, e.NameLength, e.DescriptionLength, e.PhotosQty,
				e.WeightG, e.LengthCm, e.HeightCm, e.WidthCm}, nil

	case *models.Order:
		return `
			INSERT INTO orders (order_id, customer_id, order_status, order_purchase_timestamp,
			                    order_approved_at, order_delivered_carrier_date,
			                    order_delivered_customer_date, order_estimated_delivery_date)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			[]any{e.OrderID, e.CustomerID, e.Status, e.PurchaseTimestamp, e.ApprovedAt,
				e.DeliveredCarrierDate, e.DeliveredCustomerDate, e.EstimatedDeliveryDate}, nil

	case *models.OrderPayment:
		return `
			INSERT INTO order_payments (order_id, payment_sequential, payment_type,
			                            payment_installments, payment_value)
			VALUES ($1, $2, $3, $4, $5)`,
			[]any{e.OrderID, e.Sequential, e.PaymentType, e.Installments, e.Value}, nil

	case *models.OrderItem:
		return `
			INSERT INTO order_items (order_id, order_item_id, product_id, seller_id,
			                         shipping_limit_date, price, freight_value)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			[]any{e.OrderID, e.OrderItemID, e.ProductID, e.SellerID, e.ShippingLimitDate,
				e.Price, e.FreightValue}, nil
	}
	return "", nil, fmt.Errorf("unsupported entity type %T", entity)
}
