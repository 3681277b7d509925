package repositories

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/ekaya-ingest/pkg/database"
	"github.com/ekaya-inc/ekaya-ingest/pkg/models"
)

// ReportRepository runs the read-only aggregate queries over the dataset.
type ReportRepository interface {
	TopSpendingCustomers(ctx context.Context, limit int) ([]models.CustomerSpend, error)
	TopSellingCategories(ctx context.Context, limit int) ([]models.CategorySales, error)
	MonthlySales(ctx context.Context) ([]models.MonthlySales, error)
}

type reportRepository struct {
	db *database.DB
}

// NewReportRepository creates a new ReportRepository.
func NewReportRepository(db *database.DB) ReportRepository {
	return &reportRepository{db: db}
}

var _ ReportRepository = (*reportRepository)(nil)

// Spend is attributed to the person (customer_unique_id), not to the
// per-order customer_id the dataset issues.
const topSpendingCustomersQuery = `
	SELECT c.customer_unique_id, SUM(p.payment_value) AS total_spent
	FROM orders o
	JOIN customers c ON c.customer_id = o.customer_id
	JOIN order_payments p ON p.order_id = o.order_id
	WHERE o.order_status = $1
	GROUP BY c.customer_unique_id
	ORDER BY total_spent DESC, c.customer_unique_id ASC
	LIMIT $2`

const topSellingCategoriesQuery = `
	SELECT pr.product_category_name, COUNT(*) AS items_sold
	FROM order_items oi
	JOIN products pr ON pr.product_id = oi.product_id
	WHERE pr.product_category_name IS NOT NULL
	GROUP BY pr.product_category_name
	ORDER BY items_sold DESC, pr.product_category_name ASC
	LIMIT $1`

const monthlySalesQuery = `
	WITH order_totals AS (
		SELECT o.order_id, o.order_purchase_timestamp, SUM(p.payment_value) AS total
		FROM orders o
		JOIN order_payments p ON p.order_id = o.order_id
		WHERE o.order_status = $1
		GROUP BY o.order_id, o.order_purchase_timestamp
	)
	SELECT
		EXTRACT(YEAR FROM order_purchase_timestamp)::int AS year,
		EXTRACT(MONTH FROM order_purchase_timestamp)::int AS month,
		ROUND(AVG(total), 2) AS average_order_value,
		COUNT(*) AS order_count
	FROM order_totals
	GROUP BY 1, 2
	ORDER BY 1, 2`

func (r *reportRepository) TopSpendingCustomers(ctx context.Context, limit int) ([]models.CustomerSpend, error) {
	rows, err := r.db.Pool.Query(ctx, topSpendingCustomersQuery, models.OrderStatusDelivered, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query top spending customers: %w", err)
	}

	result, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.CustomerSpend, error) {
		var c models.CustomerSpend
		err := row.Scan(&c.CustomerUniqueID, &c.TotalSpent)
		return c, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan top spending customers: %w", err)
	}
	return result, nil
}

func (r *reportRepository) TopSellingCategories(ctx context.Context, limit int) ([]models.CategorySales, error) {
	rows, err := r.db.Pool.Query(ctx, topSellingCategoriesQuery, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query top selling categories: %w", err)
	}

	result, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.CategorySales, error) {
		var c models.CategorySales
		err := row.Scan(&c.CategoryName, &c.ItemsSold)
		return c, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan top selling categories: %w", err)
	}
	return result, nil
}

func (r *reportRepository) MonthlySales(ctx context.Context) ([]models.MonthlySales, error) {
	rows, err := r.db.Pool.Query(ctx, monthlySalesQuery, models.OrderStatusDelivered)
	if err != nil {
		return nil, fmt.Errorf("failed to query monthly sales: %w", err)
	}

	result, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.MonthlySales, error) {
		var m models.MonthlySales
		err := row.Scan(&m.Year, &m.Month, &m.AverageOrderValue, &m.OrderCount)
		return m, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan monthly sales: %w", err)
	}
	return result, nil
}
