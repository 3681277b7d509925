package models

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatusDelivered is the only status counted by the revenue and trend reports.
const OrderStatusDelivered = "delivered"

// Entity is a typed row of one of the five dataset relations.
type Entity interface {
	Kind() EntityKind
	// Key renders the primary key for log and rejection messages.
	Key() string
}

// Customer is a buyer account. CustomerUniqueID groups the per-order
// customer_id values that belong to the same person.
type Customer struct {
	CustomerID       string  `json:"customer_id"`
	CustomerUniqueID string  `json:"customer_unique_id"`
	ZipCodePrefix    *string `json:"customer_zip_code_prefix,omitempty"`
	City             *string `json:"customer_city,omitempty"`
	State            *string `json:"customer_state,omitempty"`
}

func (c *Customer) Kind() EntityKind { return EntityCustomer }
func (c *Customer) Key() string      { return c.CustomerID }

// Product is a catalog entry. Everything except the ID may be missing.
type Product struct {
	ProductID         string  `json:"product_id"`
	CategoryName      *string `json:"product_category_name,omitempty"`
	NameLength        *int    `json:"product_name_length,omitempty"`
	DescriptionLength *int    `json:"product_description_length,omitempty"`
	PhotosQty         *int    `json:"product_photos_qty,omitempty"`
	WeightG           *int    `json:"product_weight_g,omitempty"`
	LengthCm          *int    `json:"product_length_cm,omitempty"`
	HeightCm          *int    `json:"product_height_cm,omitempty"`
	WidthCm           *int    `json:"product_width_cm,omitempty"`
}

func (p *Product) Kind() EntityKind { return EntityProduct }
func (p *Product) Key() string      { return p.ProductID }

// Order is a purchase placed by a Customer.
type Order struct {
	OrderID               string     `json:"order_id"`
	CustomerID            string     `json:"customer_id"`
	Status                string     `json:"order_status"`
	PurchaseTimestamp     time.Time  `json:"order_purchase_timestamp"`
	ApprovedAt            *time.Time `json:"order_approved_at,omitempty"`
	DeliveredCarrierDate  *time.Time `json:"order_delivered_carrier_date,omitempty"`
	DeliveredCustomerDate *time.Time `json:"order_delivered_customer_date,omitempty"`
	EstimatedDeliveryDate *time.Time `json:"order_estimated_delivery_date,omitempty"`
}

func (o *Order) Kind() EntityKind { return EntityOrder }
func (o *Order) Key() string      { return o.OrderID }

// OrderPayment is one payment of an order. Split payments share an OrderID
// and are told apart by Sequential.
type OrderPayment struct {
	OrderID      string          `json:"order_id"`
	Sequential   int             `json:"payment_sequential"`
	PaymentType  *string         `json:"payment_type,omitempty"`
	Installments *int            `json:"payment_installments,omitempty"`
	Value        decimal.Decimal `json:"payment_value"`
}

func (p *OrderPayment) Kind() EntityKind { return EntityOrderPayment }
func (p *OrderPayment) Key() string      { return compositeKey(p.OrderID, p.Sequential) }

// OrderItem is one line of an order.
type OrderItem struct {
	OrderID           string          `json:"order_id"`
	OrderItemID       int             `json:"order_item_id"`
	ProductID         string          `json:"product_id"`
	SellerID          *string         `json:"seller_id,omitempty"`
	ShippingLimitDate *time.Time      `json:"shipping_limit_date,omitempty"`
	Price             decimal.Decimal `json:"price"`
	FreightValue      decimal.Decimal `json:"freight_value"`
}

func (i *OrderItem) Kind() EntityKind { return EntityOrderItem }
func (i *OrderItem) Key() string      { return compositeKey(i.OrderID, i.OrderItemID) }

func compositeKey(orderID string, n int) string {
	return orderID + "/" + strconv.Itoa(n)
}
