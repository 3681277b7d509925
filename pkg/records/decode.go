package records

import "github.com/ekaya-inc/ekaya-ingest/pkg/models"

// decoders build a typed entity from a fully coerced row.
var decoders = map[models.EntityKind]func(values) models.Entity{
	models.EntityCustomer:     decodeCustomer,
	models.EntityProduct:      decodeProduct,
	models.EntityOrder:        decodeOrder,
	models.EntityOrderPayment: decodeOrderPayment,
	models.EntityOrderItem:    decodeOrderItem,
}

func decodeCustomer(v values) models.Entity {
	return &models.Customer{
		CustomerID:       v.str("customer_id"),
		CustomerUniqueID: v.str("customer_unique_id"),
		ZipCodePrefix:    v.strPtr("customer_zip_code_prefix"),
		City:             v.strPtr("customer_city"),
		State:            v.strPtr("customer_state"),
	}
}

func decodeProduct(v values) models.Entity {
	return &models.Product{
		ProductID:         v.str("product_id"),
		CategoryName:      v.strPtr("product_category_name"),
		NameLength:        v.intPtr("product_name_length"),
		DescriptionLength: v.intPtr("product_description_length"),
		PhotosQty:         v.intPtr("product_photos_qty"),
		WeightG:           v.intPtr("product_weight_g"),
		LengthCm:          v.intPtr("product_length_cm"),
		HeightCm:          v.intPtr("product_height_cm"),
		WidthCm:           v.intPtr("product_width_cm"),
	}
}

func decodeOrder(v values) models.Entity {
	return &models.Order{
		OrderID:               v.str("order_id"),
		CustomerID:            v.str("customer_id"),
		Status:                v.str("order_status"),
		PurchaseTimestamp:     v.timestamp("order_purchase_timestamp"),
		ApprovedAt:            v.timePtr("order_approved_at"),
		DeliveredCarrierDate:  v.timePtr("order_delivered_carrier_date"),
		DeliveredCustomerDate: v.timePtr("order_delivered_customer_date"),
		EstimatedDeliveryDate: v.timePtr("order_estimated_delivery_date"),
	}
}

func decodeOrderPayment(v values) models.Entity {
	return &models.OrderPayment{
		OrderID:      v.str("order_id"),
		Sequential:   v.integer("payment_sequential"),
		PaymentType:  v.strPtr("payment_type"),
		Installments: v.intPtr("payment_installments"),
		Value:        v.decimal("payment_value"),
	}
}

func decodeOrderItem(v values) models.Entity {
	return &models.OrderItem{
		OrderID:           v.str("order_id"),
		OrderItemID:       v.integer("order_item_id"),
		ProductID:         v.str("product_id"),
		SellerID:          v.strPtr("seller_id"),
		ShippingLimitDate: v.timePtr("shipping_limit_date"),
		Price:             v.decimal("price"),
		FreightValue:      v.decimal("freight_value"),
	}
}
