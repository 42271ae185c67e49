package domain

import (
	"time"

	"github.com/google/uuid"
)

// Reconcile applies incoming on top of existing and returns the record to
// store. existing may be nil, in which case incoming is inserted. Neither
// argument is modified.
//
// The stored status only moves forward. A regressing status is rejected
// while the other mutable fields are still applied, and the result carries
// an Anomaly describing the rejected transition.
func Reconcile(existing, incoming *Order, now time.Time) *UpsertResult {
	if existing == nil {
		order := incoming.Clone()
		if order.ID == uuid.Nil {
			order.ID = uuid.New()
		}
		if !order.Status.HasShipped() {
			order.TrackingNumber = nil
			order.Carrier = nil
		}
		order.CheckConsistency()
		order.CreatedAt = now
		order.UpdatedAt = now
		order.LastSyncedAt = now
		return &UpsertResult{Outcome: UpsertInserted, Order: order}
	}

	merged := existing.Clone()
	result := &UpsertResult{Outcome: UpsertUpdated, Order: merged, PreviousStatus: existing.Status}

	if existing.Status.CanTransitionTo(incoming.Status) {
		merged.Status = incoming.Status
	} else {
		result.Outcome = UpsertRejectedRegression
		result.Anomaly = &Anomaly{
			ID:              uuid.New(),
			Kind:            AnomalyStatusRegression,
			Platform:        existing.Platform,
			ExternalOrderID: existing.ExternalOrderID,
			OrderID:         existing.ID,
			StoredStatus:    existing.Status,
			IncomingStatus:  incoming.Status,
			DetectedAt:      now,
		}
	}

	if incoming.OrderNumber != "" {
		merged.OrderNumber = incoming.OrderNumber
	}
	if incoming.CustomerName != "" {
		merged.CustomerName = incoming.CustomerName
	}
	if incoming.CustomerEmail != nil {
		merged.CustomerEmail = cloneString(incoming.CustomerEmail)
	}
	if incoming.ShippingAddress != nil {
		addr := *incoming.ShippingAddress
		merged.ShippingAddress = &addr
	}
	if incoming.Currency != "" {
		merged.Currency = incoming.Currency
	}
	if len(incoming.Items) > 0 {
		merged.Items = incoming.Clone().Items
		merged.Subtotal = incoming.Subtotal
		merged.Tax = incoming.Tax
		merged.ShippingCost = incoming.ShippingCost
		merged.Total = incoming.Total
	}
	if merged.Status.HasShipped() {
		if incoming.TrackingNumber != nil {
			merged.TrackingNumber = cloneString(incoming.TrackingNumber)
		}
		if incoming.Carrier != nil {
			merged.Carrier = cloneString(incoming.Carrier)
		}
	}

	merged.CheckConsistency()
	merged.LastSyncedAt = now
	merged.UpdatedAt = now
	return result
}
