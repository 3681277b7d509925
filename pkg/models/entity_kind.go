package models

import (
	"fmt"
	"strings"

	"github.com/jinzhu/inflection"
)

// EntityKind identifies one of the five dataset relations.
type EntityKind string

const (
	EntityCustomer     EntityKind = "customer"
	EntityProduct      EntityKind = "product"
	EntityOrder        EntityKind = "order"
	EntityOrderPayment EntityKind = "order_payment"
	EntityOrderItem    EntityKind = "order_item"
)

// LoadOrder lists entity kinds parents-first. Every foreign key of a kind
// points at a kind that appears earlier in the slice.
var LoadOrder = []EntityKind{
	EntityCustomer,
	EntityProduct,
	EntityOrder,
	EntityOrderPayment,
	EntityOrderItem,
}

// ClearOrder lists entity kinds children-first, the reverse of LoadOrder.
var ClearOrder = []EntityKind{
	EntityOrderItem,
	EntityOrderPayment,
	EntityOrder,
	EntityCustomer,
	EntityProduct,
}

// parents maps each kind to the kinds its foreign keys reference.
var parents = map[EntityKind][]EntityKind{
	EntityCustomer:     nil,
	EntityProduct:      nil,
	EntityOrder:        {EntityCustomer},
	EntityOrderPayment: {EntityOrder},
	EntityOrderItem:    {EntityOrder, EntityProduct},
}

// Parents returns the kinds directly referenced by k's foreign keys.
func (k EntityKind) Parents() []EntityKind {
	return parents[k]
}

// DependsOn reports whether k transitively references other.
func (k EntityKind) DependsOn(other EntityKind) bool {
	for _, p := range parents[k] {
		if p == other || p.DependsOn(other) {
			return true
		}
	}
	return false
}

// HasDependents reports whether any kind references k, directly or not.
func (k EntityKind) HasDependents() bool {
	for _, other := range LoadOrder {
		if other.DependsOn(k) {
			return true
		}
	}
	return false
}

// TableName returns the relation backing this kind, e.g. "order_items".
func (k EntityKind) TableName() string {
	return inflection.Plural(string(k))
}

// IsValid reports whether k is one of the five known kinds.
func (k EntityKind) IsValid() bool {
	_, ok := parents[k]
	return ok
}

// ParseEntityKind accepts a kind name ("order_item") or its table name
// ("order_items"), case-insensitively.
func ParseEntityKind(s string) (EntityKind, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	k := EntityKind(inflection.Singular(name))
	if !k.IsValid() {
		return "", fmt.Errorf("unknown entity kind %q", s)
	}
	return k, nil
}
