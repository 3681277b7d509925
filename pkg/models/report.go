package models

import "github.com/shopspring/decimal"

// CustomerSpend is one row of the top spending customers report.
type CustomerSpend struct {
	CustomerUniqueID string          `json:"customer_unique_id" yaml:"customer_unique_id"`
	TotalSpent       decimal.Decimal `json:"total_spent" yaml:"total_spent"`
}

// CategorySales is one row of the top selling categories report.
type CategorySales struct {
	CategoryName string `json:"product_category_name" yaml:"product_category_name"`
	ItemsSold    int64  `json:"items_sold" yaml:"items_sold"`
}

// MonthlySales is one row of the monthly sales pattern report.
// AverageOrderValue is the mean of the per-order payment totals in the month.
type MonthlySales struct {
	Year              int             `json:"year" yaml:"year"`
	Month             int             `json:"month" yaml:"month"`
	AverageOrderValue decimal.Decimal `json:"average_order_value" yaml:"average_order_value"`
	OrderCount        int64           `json:"order_count" yaml:"order_count"`
}
