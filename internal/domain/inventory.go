package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/orderhub/orderhub/pkg/errors"
)

// Product is one stock-keeping unit shared by every platform listing
type Product struct {
	SKU               string
	Name              string
	Description       *string
	QuantityAvailable int
	QuantityReserved  int
	ReorderPoint      int
	ReorderQuantity   int
	Price             *decimal.Decimal
	Cost              *decimal.Decimal
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// NeedsReorder reports whether available stock is at or below the reorder point
func (p *Product) NeedsReorder() bool {
	return p.QuantityAvailable <= p.ReorderPoint
}

// Validate checks the catalog fields of a product
func (p *Product) Validate() error {
	if p.SKU == "" {
		return &errors.ErrValidation{Field: "sku", Message: "is required"}
	}
	if p.Name == "" {
		return &errors.ErrValidation{Field: "name", Message: "is required"}
	}
	if p.QuantityAvailable < 0 {
		return &errors.ErrValidation{Field: "quantity_available", Message: "must not be negative"}
	}
	if p.ReorderPoint < 0 {
		return &errors.ErrValidation{Field: "reorder_point", Message: "must not be negative"}
	}
	if p.ReorderQuantity < 0 {
		return &errors.ErrValidation{Field: "reorder_quantity", Message: "must not be negative"}
	}
	if p.Price != nil && p.Price.IsNegative() {
		return &errors.ErrValidation{Field: "price", Message: "must not be negative"}
	}
	if p.Cost != nil && p.Cost.IsNegative() {
		return &errors.ErrValidation{Field: "cost", Message: "must not be negative"}
	}
	return nil
}

func (p *Product) Clone() *Product {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Description = cloneString(p.Description)
	if p.Price != nil {
		v := *p.Price
		cp.Price = &v
	}
	if p.Cost != nil {
		v := *p.Cost
		cp.Cost = &v
	}
	return &cp
}

// InventoryChangeType names the kind of movement an inventory log records
type InventoryChangeType string

const (
	InventoryReservation InventoryChangeType = "reservation"
	InventoryRelease     InventoryChangeType = "release"
	InventoryAdjustment  InventoryChangeType = "adjustment"
)

// InventoryLog is one audited change of a product's available quantity
type InventoryLog struct {
	ID             uuid.UUID
	SKU            string
	ChangeType     InventoryChangeType
	QuantityBefore int
	QuantityAfter  int
	QuantityChange int
	Platform       *Platform
	OrderID        *uuid.UUID
	Reason         string
	CreatedAt      time.Time
}

// Reserve moves quantity from available to reserved. It reports false and
// leaves p unchanged when there is not enough available stock.
func (p *Product) Reserve(quantity int, now time.Time) (*InventoryLog, bool) {
	if quantity <= 0 || p.QuantityAvailable < quantity {
		return nil, false
	}
	before := p.QuantityAvailable
	p.QuantityAvailable -= quantity
	p.QuantityReserved += quantity
	p.UpdatedAt = now
	return p.logChange(InventoryReservation, before, now), true
}

// Release returns quantity from reserved to available
func (p *Product) Release(quantity int, now time.Time) *InventoryLog {
	before := p.QuantityAvailable
	p.QuantityAvailable += quantity
	p.QuantityReserved -= quantity
	if p.QuantityReserved < 0 {
		p.QuantityReserved = 0
	}
	p.UpdatedAt = now
	return p.logChange(InventoryRelease, before, now)
}

// SetAvailable overwrites the available quantity
func (p *Product) SetAvailable(quantity int, reason string, now time.Time) (*InventoryLog, error) {
	if quantity < 0 {
		return nil, &errors.ErrValidation{Field: "quantity", Message: "must not be negative"}
	}
	before := p.QuantityAvailable
	p.QuantityAvailable = quantity
	p.UpdatedAt = now
	log := p.logChange(InventoryAdjustment, before, now)
	log.Reason = reason
	return log, nil
}

func (p *Product) logChange(kind InventoryChangeType, before int, now time.Time) *InventoryLog {
	return &InventoryLog{
		ID:             uuid.New(),
		SKU:            p.SKU,
		ChangeType:     kind,
		QuantityBefore: before,
		QuantityAfter:  p.QuantityAvailable,
		QuantityChange: p.QuantityAvailable - before,
		CreatedAt:      now,
	}
}

// ReservationOutcome is what happened to one SKU of an order
type ReservationOutcome string

const (
	ReservationReserved     ReservationOutcome = "reserved"
	ReservationReleased     ReservationOutcome = "released"
	ReservationUnknownSKU   ReservationOutcome = "unknown_sku"
	ReservationInsufficient ReservationOutcome = "insufficient_stock"
	ReservationAlreadyHeld  ReservationOutcome = "already_reserved"
)

// Reservation reports the stock movement for one SKU of an order
type Reservation struct {
	SKU      string
	Quantity int
	Outcome  ReservationOutcome
}

// ItemQuantities sums line item quantities per SKU, in first-seen order.
// Items without a SKU are not stock-tracked.
func (o *Order) ItemQuantities() ([]string, map[string]int) {
	var skus []string
	qty := make(map[string]int)
	for _, item := range o.Items {
		if item.SKU == "" {
			continue
		}
		if _, seen := qty[item.SKU]; !seen {
			skus = append(skus, item.SKU)
		}
		qty[item.SKU] += item.Quantity
	}
	return skus, qty
}

// HoldsStock reports whether an order in status s keeps its stock reserved
func (s OrderStatus) HoldsStock() bool {
	return s.IsValid() && s != OrderStatusCancelled && s != OrderStatusRefunded
}

// ProductFilter represents filters for listing products
type ProductFilter struct {
	LowStock bool
	Limit    int
	Offset   int
}
