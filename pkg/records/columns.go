package records

import "github.com/ekaya-inc/ekaya-ingest/pkg/models"

// fieldType is the semantic type a raw field is coerced to.
type fieldType int

const (
	typeString fieldType = iota
	typeInteger
	typeDecimal
	typeTimestamp
)

func (t fieldType) String() string {
	switch t {
	case typeInteger:
		return "integer"
	case typeDecimal:
		return "decimal"
	case typeTimestamp:
		return "timestamp"
	default:
		return "string"
	}
}

// column declares one attribute of an entity kind as it appears in the
// input header.
type column struct {
	name      string
	typ       fieldType
	mandatory bool
	// aliases are alternative header spellings found in published copies
	// of the dataset.
	aliases []string
}

var schemas = map[models.EntityKind][]column{
	models.EntityCustomer: {
		{name: "customer_id", typ: typeString, mandatory: true},
		{name: "customer_unique_id", typ: typeString, mandatory: true},
		{name: "customer_zip_code_prefix", typ: typeString},
		{name: "customer_city", typ: typeString},
		{name: "customer_state", typ: typeString},
	},
	models.EntityProduct: {
		{name: "product_id", typ: typeString, mandatory: true},
		{name: "product_category_name", typ: typeString},
		{name: "product_name_length", typ: typeInteger, aliases: []string{"product_name_lenght"}},
		{name: "product_description_length", typ: typeInteger, aliases: []string{"product_description_lenght"}},
		{name: "product_photos_qty", typ: typeInteger},
		{name: "product_weight_g", typ: typeInteger},
		{name: "product_length_cm", typ: typeInteger},
		{name: "product_height_cm", typ: typeInteger},
		{name: "product_width_cm", typ: typeInteger},
	},
	models.EntityOrder: {
		{name: "order_id", typ: typeString, mandatory: true},
		{name: "customer_id", typ: typeString, mandatory: true},
		{name: "order_status", typ: typeString, mandatory: true},
		{name: "order_purchase_timestamp", typ: typeTimestamp, mandatory: true},
		{name: "order_approved_at", typ: typeTimestamp},
		{name: "order_delivered_carrier_date", typ: typeTimestamp},
		{name: "order_delivered_customer_date", typ: typeTimestamp},
		{name: "order_estimated_delivery_date", typ: typeTimestamp},
	},
	models.EntityOrderPayment: {
		{name: "order_id", typ: typeString, mandatory: true},
		{name: "payment_sequential", typ: typeInteger, mandatory: true},
		{name: "payment_type", typ: typeString},
		{name: "payment_installments", typ: typeInteger},
		{name: "payment_value", typ: typeDecimal, mandatory: true},
	},
	models.EntityOrderItem: {
		{name: "order_id", typ: typeString, mandatory: true},
		{name: "order_item_id", typ: typeInteger, mandatory: true},
		{name: "product_id", typ: typeString, mandatory: true},
		{name: "seller_id", typ: typeString},
		{name: "shipping_limit_date", typ: typeTimestamp},
		{name: "price", typ: typeDecimal, mandatory: true},
		{name: "freight_value", typ: typeDecimal, mandatory: true},
	},
}

// Columns returns the canonical header names of kind, in declaration order.
func Columns(kind models.EntityKind) []string {
	cols := schemas[kind]
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.name
	}
	return names
}

// lookupColumn resolves a header name (canonical or alias) to its column.
func lookupColumn(kind models.EntityKind, header string) (column, bool) {
	for _, c := range schemas[kind] {
		if c.name == header {
			return c, true
		}
		for _, a := range c.aliases {
			if a == header {
				return c, true
			}
		}
	}
	return column{}, false
}
